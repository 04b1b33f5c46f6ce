package ledger

import (
	"context"

	"github.com/osse101/riddlegroup/internal/domain"
)

// Reputation is the read side of the reputation ledger. Balances are
// authoritative at the instant of the call.
type Reputation interface {
	BalanceOf(ctx context.Context, participant string) (uint64, error)
}

// Token is the payout sink. Distribute receives instructions that sum exactly to
// the group's payout total; ChargeFee debits a disband fee. Both apply at most once
// per group and participant, so a caller may repeat them after a failure.
type Token interface {
	Distribute(ctx context.Context, groupID int64, payouts []domain.Payout) error
	ChargeFee(ctx context.Context, groupID int64, participant string, amount uint64) error
}
