package composition

import (
	"fmt"
	"math/bits"
	"sort"

	"github.com/osse101/riddlegroup/internal/domain"
)

// CalculateDistribution splits total across members in proportion to weights,
// keeping every share within [1%, 70%] of total.
//
// Each share is weight times one common rate, clamped to the floor or the cap, with
// the rate chosen so the shares sum to total. Ranked by weight, the lightest members
// sit at the floor, the heaviest at the cap, and the rest split what remains by
// weight. Each candidate layout (how many at the floor, how many at the cap) counts
// as one iteration, so there are at most (n+1)(n+2)/2.
//
// Rounding residue goes one unit at a time to the largest remainders, ties to the
// lowest index. The bounds cannot all hold for a single member, when n floors
// exceed total, or when n caps fall short of it; those results are Degenerate and
// still sum to total.
func CalculateDistribution(members []string, weights []uint64, total uint64) (domain.Distribution, error) {
	n := len(members)
	if n == 0 {
		return domain.Distribution{}, fmt.Errorf("%w: %s", domain.ErrMalformedDistributionInput, ErrMsgNoMembers)
	}
	if len(weights) != n {
		return domain.Distribution{}, fmt.Errorf("%w: %s (%d members, %d weights)", domain.ErrMalformedDistributionInput, ErrMsgWeightMismatch, n, len(weights))
	}
	weightSum, ok := sumChecked(weights)
	if !ok {
		return domain.Distribution{}, fmt.Errorf("%w: %s", domain.ErrMalformedDistributionInput, ErrMsgWeightOverflow)
	}
	if weightSum == 0 {
		return domain.Distribution{}, fmt.Errorf("%w: %s", domain.ErrMalformedDistributionInput, ErrMsgZeroTotalWeight)
	}

	d := domain.Distribution{Shares: make([]uint64, n)}
	if n == 1 {
		d.Shares[0] = total
		d.Degenerate = true
		return d, nil
	}

	floor := mulDiv(total, DistributionFloorPercent, percentDenominator)
	ceiling := mulDiv(total, DistributionCapPercent, percentDenominator)

	if floor > 0 && uint64(n) > total/floor {
		evenSplit(d.Shares, total)
		d.Degenerate = true
		return d, nil
	}

	if capacity, ok := mulChecked(uint64(n), ceiling); ok && capacity < total {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		apportion(d.Shares, all, weights, weightSum, total)
		d.Degenerate = true
		return d, nil
	}

	d.Iterations, d.Clamped = fitBands(d.Shares, weights, floor, ceiling, total)

	if sum, ok := sumChecked(d.Shares); !ok || sum != total {
		return domain.Distribution{}, fmt.Errorf("%s: got %d, want %d", ErrMsgDoesNotReconcile, sum, total)
	}
	return d, nil
}

// fitBands fills shares when n*floor <= total <= n*cap. Zero-weight members sit at
// the floor unless every weighted member is already at the cap.
func fitBands(shares, weights []uint64, floor, ceiling, total uint64) (iterations int, clamped []int) {
	var zero, ranked []int
	for i, w := range weights {
		if w == 0 {
			zero = append(zero, i)
		} else {
			ranked = append(ranked, i)
		}
	}
	sort.SliceStable(ranked, func(x, y int) bool {
		return weights[ranked[x]] < weights[ranked[y]]
	})

	m := len(ranked)
	prefix := make([]uint64, m+1)
	for k, i := range ranked {
		prefix[k+1] = prefix[k] + weights[i]
	}
	base := uint64(len(zero)) * floor

	if top, ok := mulChecked(uint64(m), ceiling); ok && top < total-base {
		for _, i := range ranked {
			shares[i] = ceiling
		}
		extra := total - base - top
		part, odd := extra/uint64(len(zero)), extra%uint64(len(zero))
		for k, i := range zero {
			shares[i] = floor + part
			if uint64(k) < odd {
				shares[i]++
			}
		}
		clamped = append(clamped, ranked...)
		sort.Ints(clamped)
		return 1, clamped
	}

	for b := 0; b <= m; b++ {
		capped, ok := mulChecked(uint64(b), ceiling)
		if !ok || capped > total-base {
			break
		}
		for a := 0; a+b <= m; a++ {
			floored := uint64(a) * floor
			if floored > total-base-capped {
				break
			}
			iterations++
			rest := total - base - capped - floored
			hi := m - b
			if !layoutFits(weights, ranked, prefix, a, hi, floor, ceiling, rest) {
				continue
			}

			for _, i := range ranked[:a] {
				shares[i] = floor
			}
			for _, i := range ranked[hi:] {
				shares[i] = ceiling
			}
			for _, i := range zero {
				shares[i] = floor
			}
			if a < hi {
				apportion(shares, ranked[a:hi], weights, prefix[hi]-prefix[a], rest)
			}

			clamped = append(clamped, ranked[:a]...)
			clamped = append(clamped, ranked[hi:]...)
			clamped = append(clamped, zero...)
			sort.Ints(clamped)
			return iterations, clamped
		}
	}
	return iterations, nil
}

// layoutFits reports whether the ranked members [0,a) at the floor, [hi,m) at the
// cap and [a,hi) splitting rest by weight is consistent: one rate rest/bandWeight
// puts every band member inside the bounds and no pinned member on the wrong side
// of its bound.
func layoutFits(weights []uint64, ranked []int, prefix []uint64, a, hi int, floor, ceiling, rest uint64) bool {
	m := len(ranked)
	if a == hi {
		if rest != 0 {
			return false
		}
		if a == 0 || hi == m {
			return true
		}
		return cmp128(ceiling, weights[ranked[a-1]], floor, weights[ranked[hi]]) <= 0
	}

	band := prefix[hi] - prefix[a]
	if cmp128(rest, weights[ranked[a]], floor, band) < 0 {
		return false
	}
	if cmp128(rest, weights[ranked[hi-1]], ceiling, band) > 0 {
		return false
	}
	if a > 0 && cmp128(rest, weights[ranked[a-1]], floor, band) > 0 {
		return false
	}
	if hi < m && cmp128(rest, weights[ranked[hi]], ceiling, band) < 0 {
		return false
	}
	return true
}

// apportion sets each recipient's share to amount*weight/weightSum. Leftover units go
// one each to the largest remainders, ties to the lowest index.
func apportion(shares []uint64, recipients []int, weights []uint64, weightSum, amount uint64) {
	rems := make([]uint64, len(recipients))
	var given uint64
	for k, i := range recipients {
		hi, lo := bits.Mul64(amount, weights[i])
		q, r := bits.Div64(hi, lo, weightSum)
		shares[i] = q
		rems[k] = r
		given += q
	}

	order := make([]int, len(recipients))
	for k := range order {
		order[k] = k
	}
	sort.Slice(order, func(x, y int) bool {
		rx, ry := rems[order[x]], rems[order[y]]
		if rx != ry {
			return rx > ry
		}
		return recipients[order[x]] < recipients[order[y]]
	})
	for k := uint64(0); k < amount-given; k++ {
		shares[recipients[order[k]]]++
	}
}

// evenSplit divides total as evenly as possible, extra units to the lowest indices
func evenSplit(shares []uint64, total uint64) {
	n := uint64(len(shares))
	base := total / n
	extra := total % n
	for i := range shares {
		shares[i] = base
		if uint64(i) < extra {
			shares[i]++
		}
	}
}

// mulDiv returns a*b/c truncated, computed in 128 bits. Callers guarantee b <= c.
func mulDiv(a, b, c uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	q, _ := bits.Div64(hi, lo, c)
	return q
}

// mulChecked returns a*b and false if it overflows
func mulChecked(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}

// cmp128 compares a*b with c*d without overflow
func cmp128(a, b, c, d uint64) int {
	h1, l1 := bits.Mul64(a, b)
	h2, l2 := bits.Mul64(c, d)
	switch {
	case h1 != h2:
		if h1 < h2 {
			return -1
		}
		return 1
	case l1 != l2:
		if l1 < l2 {
			return -1
		}
		return 1
	}
	return 0
}

func sumChecked(values []uint64) (uint64, bool) {
	var sum, carry uint64
	for _, v := range values {
		sum, carry = bits.Add64(sum, v, 0)
		if carry != 0 {
			return 0, false
		}
	}
	return sum, true
}
