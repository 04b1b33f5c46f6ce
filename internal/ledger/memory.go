package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/osse101/riddlegroup/internal/domain"
)

// MemoryReputation is an in-process reputation ledger
type MemoryReputation struct {
	mu       sync.RWMutex
	balances map[string]uint64
}

// NewMemoryReputation creates a ledger seeded with the given balances
func NewMemoryReputation(seed map[string]uint64) *MemoryReputation {
	balances := make(map[string]uint64, len(seed))
	for k, v := range seed {
		balances[k] = v
	}
	return &MemoryReputation{balances: balances}
}

// BalanceOf returns the balance of participant, zero when unknown
func (l *MemoryReputation) BalanceOf(_ context.Context, participant string) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[participant], nil
}

// SetBalance overwrites the balance of participant
func (l *MemoryReputation) SetBalance(participant string, balance uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[participant] = balance
}

// Transfer is one recorded token movement
type Transfer struct {
	GroupID     int64
	Participant string
	Amount      uint64
	Fee         bool
}

type transferKey struct {
	groupID     int64
	participant string
	fee         bool
}

// MemoryToken is an in-process token ledger. Fees are debited from the payer's
// balance and credited to the treasury. A group pays or charges a participant at
// most once; repeats are ignored.
type MemoryToken struct {
	mu        sync.Mutex
	balances  map[string]uint64
	treasury  uint64
	transfers []Transfer
	seen      map[transferKey]struct{}
}

// NewMemoryToken creates an empty token ledger
func NewMemoryToken() *MemoryToken {
	return &MemoryToken{
		balances: make(map[string]uint64),
		seen:     make(map[transferKey]struct{}),
	}
}

// Distribute credits every payout not already made for the group
func (l *MemoryToken) Distribute(_ context.Context, groupID int64, payouts []domain.Payout) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range payouts {
		key := transferKey{groupID: groupID, participant: p.Participant}
		if _, ok := l.seen[key]; ok {
			continue
		}
		l.seen[key] = struct{}{}
		l.balances[p.Participant] += p.Amount
		l.transfers = append(l.transfers, Transfer{GroupID: groupID, Participant: p.Participant, Amount: p.Amount})
	}
	return nil
}

// ChargeFee debits amount from participant unless the group already charged it
func (l *MemoryToken) ChargeFee(_ context.Context, groupID int64, participant string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := transferKey{groupID: groupID, participant: participant, fee: true}
	if _, ok := l.seen[key]; ok {
		return nil
	}
	if l.balances[participant] < amount {
		return fmt.Errorf("%w: %s has %d, fee is %d", ErrInsufficientTokens, participant, l.balances[participant], amount)
	}
	l.seen[key] = struct{}{}
	l.balances[participant] -= amount
	l.treasury += amount
	l.transfers = append(l.transfers, Transfer{GroupID: groupID, Participant: participant, Amount: amount, Fee: true})
	return nil
}

// Credit adds tokens to participant outside of any group flow
func (l *MemoryToken) Credit(participant string, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[participant] += amount
}

// BalanceOf returns the token balance of participant
func (l *MemoryToken) BalanceOf(participant string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[participant]
}

// Treasury returns the fees collected so far
func (l *MemoryToken) Treasury() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.treasury
}

// Transfers returns a copy of the recorded movements
func (l *MemoryToken) Transfers() []Transfer {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Transfer, len(l.transfers))
	copy(out, l.transfers)
	return out
}
