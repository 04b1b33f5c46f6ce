package composition

import (
	"context"
	"fmt"
	"math/bits"

	"golang.org/x/sync/errgroup"

	"github.com/osse101/riddlegroup/internal/domain"
	"github.com/osse101/riddlegroup/internal/ledger"
)

// DilutionSource reports how many groups a participant is simultaneously counted in
type DilutionSource interface {
	ActiveGroupCount(ctx context.Context, participant string) (uint64, error)
}

// Result is the outcome of a composition check. Reason is empty when Valid.
type Result struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func invalid(reason string) Result {
	return Result{Valid: false, Reason: reason}
}

// Validator holds no state beyond its reputation ledger
type Validator struct {
	ledger ledger.Reputation
}

// NewValidator creates a Validator reading balances from l
func NewValidator(l ledger.Reputation) *Validator {
	return &Validator{ledger: l}
}

// Balances returns the base reputation of each member in input order
func (v *Validator) Balances(ctx context.Context, members []string) ([]uint64, error) {
	balances := make([]uint64, len(members))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrentBalanceLookups)
	for i, member := range members {
		g.Go(func() error {
			bal, err := v.ledger.BalanceOf(gctx, member)
			if err != nil {
				return fmt.Errorf("%s (%s): %w", ErrContextFailedToReadBalance, member, err)
			}
			balances[i] = bal
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return balances, nil
}

// CountTiers classifies every member by current base reputation
func (v *Validator) CountTiers(ctx context.Context, members []string) (TierCounts, error) {
	var counts TierCounts
	balances, err := v.Balances(ctx, members)
	if err != nil {
		return counts, err
	}
	for _, bal := range balances {
		counts.add(TierOf(bal))
	}
	return counts, nil
}

// ValidateComposition checks, in order: duplicates, minimum size, maximum size,
// tier diversity and per-tier caps. The first failing check determines the reason.
// A non-nil error means the ledger could not be read, not that the group is invalid.
func (v *Validator) ValidateComposition(ctx context.Context, members []string) (Result, error) {
	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		if _, dup := seen[m]; dup {
			return invalid(ReasonDuplicateMember), nil
		}
		seen[m] = struct{}{}
	}

	if len(members) < domain.MinGroupMembers {
		return invalid(ReasonMinimumMembers), nil
	}
	if len(members) > domain.MaxGroupMembers {
		return invalid(ReasonMaximumMembers), nil
	}

	counts, err := v.CountTiers(ctx, members)
	if err != nil {
		return Result{}, err
	}

	if counts.Low == 0 || counts.Mid == 0 || counts.HighOrOracle() == 0 {
		return invalid(ReasonTierDiversity), nil
	}

	switch {
	case counts.HighOrOracle() > MaxHighOrOracleMembers:
		return invalid(ReasonTooManyHigh), nil
	case counts.Mid > MaxMidMembers:
		return invalid(ReasonTooManyMid), nil
	case counts.Low > MaxLowMembers:
		return invalid(ReasonTooManyLow), nil
	}

	return Result{Valid: true}, nil
}

// EffectiveReputations returns balance / max(1, activeGroupCount) for each member,
// truncating toward zero
func (v *Validator) EffectiveReputations(ctx context.Context, members []string, dilution DilutionSource) ([]uint64, error) {
	balances, err := v.Balances(ctx, members)
	if err != nil {
		return nil, err
	}

	// Dilution reads may share a single database transaction, so they stay sequential.
	effective := make([]uint64, len(members))
	for i, member := range members {
		count, err := dilution.ActiveGroupCount(ctx, member)
		if err != nil {
			return nil, fmt.Errorf("%s (%s): %w", ErrContextFailedToReadDilution, member, err)
		}
		effective[i] = balances[i] / max(count, 1)
	}
	return effective, nil
}

// CalculatePooledRON returns the arithmetic mean of the members' effective
// reputation. The sum is divided once by the member count, truncating toward zero.
func (v *Validator) CalculatePooledRON(ctx context.Context, members []string, dilution DilutionSource) (uint64, error) {
	if len(members) == 0 {
		return 0, fmt.Errorf("%w: %s", domain.ErrMalformedDistributionInput, ErrMsgNoMembers)
	}

	effective, err := v.EffectiveReputations(ctx, members, dilution)
	if err != nil {
		return 0, err
	}

	var sum, carry uint64
	for _, e := range effective {
		sum, carry = bits.Add64(sum, e, 0)
		if carry != 0 {
			return 0, fmt.Errorf("%w: %s", domain.ErrMalformedDistributionInput, ErrMsgReputationTooBig)
		}
	}
	return sum / uint64(len(members)), nil
}

// GetAccessibleRiddleTier returns the tier of riddle the members may attempt together
func (v *Validator) GetAccessibleRiddleTier(ctx context.Context, members []string, dilution DilutionSource) (domain.Tier, error) {
	pooled, err := v.CalculatePooledRON(ctx, members, dilution)
	if err != nil {
		return domain.TierLow, err
	}
	return TierOf(pooled), nil
}

// NoDilution treats every participant as a member of a single group
type NoDilution struct{}

// ActiveGroupCount always returns 1
func (NoDilution) ActiveGroupCount(context.Context, string) (uint64, error) {
	return 1, nil
}
