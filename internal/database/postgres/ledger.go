package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/osse101/riddlegroup/internal/domain"
	"github.com/osse101/riddlegroup/internal/ledger"
	"github.com/osse101/riddlegroup/internal/repository"
)

// ReputationLedger reads reputation balances from the reputation_balances table
type ReputationLedger struct {
	db *pgxpool.Pool
}

// NewReputationLedger creates a PostgreSQL-backed reputation ledger
func NewReputationLedger(db *pgxpool.Pool) *ReputationLedger {
	return &ReputationLedger{db: db}
}

// BalanceOf returns the balance of participant, zero when unknown
func (l *ReputationLedger) BalanceOf(ctx context.Context, participant string) (uint64, error) {
	return balanceOf(ctx, l.db, `SELECT balance FROM reputation_balances WHERE participant = $1`, participant)
}

// SetBalance overwrites the balance of participant
func (l *ReputationLedger) SetBalance(ctx context.Context, participant string, balance uint64) error {
	_, err := l.db.Exec(ctx, `
		INSERT INTO reputation_balances (participant, balance) VALUES ($1, $2)
		ON CONFLICT (participant) DO UPDATE
		SET balance = EXCLUDED.balance, updated_at = NOW()`, participant, balance)
	if err != nil {
		return fmt.Errorf("%s: %w", ErrMsgFailedToSetReputation, err)
	}
	return nil
}

func balanceOf(ctx context.Context, q querier, query, participant string) (uint64, error) {
	var balance uint64
	err := q.QueryRow(ctx, query, participant).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", ErrMsgFailedToGetBalance, err)
	}
	return balance, nil
}

// TokenLedger stores token balances and an append-only transfer log. Fees are
// recorded as transfers with is_fee set; the treasury is their sum. A group pays
// or charges a participant at most once: a repeated transfer is skipped, so
// retrying after a failed group commit does not move tokens twice.
type TokenLedger struct {
	db *pgxpool.Pool
}

// NewTokenLedger creates a PostgreSQL-backed token ledger
func NewTokenLedger(db *pgxpool.Pool) *TokenLedger {
	return &TokenLedger{db: db}
}

// Distribute credits every payout in one transaction
func (l *TokenLedger) Distribute(ctx context.Context, groupID int64, payouts []domain.Payout) error {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", ErrMsgFailedToBeginTransaction, err)
	}
	defer repository.SafeRollback(ctx, txn{tx: tx})

	for _, p := range payouts {
		recorded, err := recordTransfer(ctx, tx, groupID, p.Participant, p.Amount, false)
		if err != nil {
			return err
		}
		if !recorded {
			continue
		}
		if err := credit(ctx, tx, p.Participant, p.Amount); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: %w", ErrMsgFailedToCommitTransaction, err)
	}
	return nil
}

// ChargeFee debits amount from participant, failing with
// ledger.ErrInsufficientTokens when the balance is too low
func (l *TokenLedger) ChargeFee(ctx context.Context, groupID int64, participant string, amount uint64) error {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", ErrMsgFailedToBeginTransaction, err)
	}
	defer repository.SafeRollback(ctx, txn{tx: tx})

	recorded, err := recordTransfer(ctx, tx, groupID, participant, amount, true)
	if err != nil {
		return err
	}
	if !recorded {
		return nil
	}

	tag, err := tx.Exec(ctx, `
		UPDATE token_balances SET balance = balance - $2, updated_at = NOW()
		WHERE participant = $1 AND balance >= $2`, participant, amount)
	if err != nil {
		return fmt.Errorf("%s: %w", ErrMsgFailedToUpdateBalance, err)
	}
	if tag.RowsAffected() == 0 && amount > 0 {
		return fmt.Errorf("%w: %s, fee is %d", ledger.ErrInsufficientTokens, participant, amount)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: %w", ErrMsgFailedToCommitTransaction, err)
	}
	return nil
}

// Credit adds tokens to participant outside of any group flow
func (l *TokenLedger) Credit(ctx context.Context, participant string, amount uint64) error {
	if err := credit(ctx, l.db, participant, amount); err != nil {
		return fmt.Errorf("%s: %w", ErrMsgFailedToCreditTokens, err)
	}
	return nil
}

// BalanceOf returns the token balance of participant
func (l *TokenLedger) BalanceOf(ctx context.Context, participant string) (uint64, error) {
	return balanceOf(ctx, l.db, `SELECT balance FROM token_balances WHERE participant = $1`, participant)
}

// Treasury returns the fees collected so far
func (l *TokenLedger) Treasury(ctx context.Context) (uint64, error) {
	var total uint64
	err := l.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::BIGINT FROM token_transfers WHERE is_fee`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", ErrMsgFailedToReadTreasury, err)
	}
	return total, nil
}

// Transfers returns the recorded movements for a group in insertion order
func (l *TokenLedger) Transfers(ctx context.Context, groupID int64) ([]ledger.Transfer, error) {
	rows, err := l.db.Query(ctx, `
		SELECT group_id, participant, amount, is_fee FROM token_transfers
		WHERE group_id = $1 ORDER BY transfer_id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrMsgFailedToGetTransfers, err)
	}
	transfers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.Transfer, error) {
		var t ledger.Transfer
		err := row.Scan(&t.GroupID, &t.Participant, &t.Amount, &t.Fee)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrMsgFailedToGetTransfers, err)
	}
	return transfers, nil
}

func credit(ctx context.Context, q querier, participant string, amount uint64) error {
	_, err := q.Exec(ctx, `
		INSERT INTO token_balances (participant, balance) VALUES ($1, $2)
		ON CONFLICT (participant) DO UPDATE
		SET balance = token_balances.balance + EXCLUDED.balance, updated_at = NOW()`, participant, amount)
	if err != nil {
		return fmt.Errorf("%s: %w", ErrMsgFailedToUpdateBalance, err)
	}
	return nil
}

// recordTransfer reports false when the group already moved tokens for participant
func recordTransfer(ctx context.Context, q querier, groupID int64, participant string, amount uint64, fee bool) (bool, error) {
	tag, err := q.Exec(ctx, `
		INSERT INTO token_transfers (group_id, participant, amount, is_fee)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT token_transfers_once DO NOTHING`, groupID, participant, amount, fee)
	if err != nil {
		return false, fmt.Errorf("%s: %w", ErrMsgFailedToRecordTransfer, err)
	}
	return tag.RowsAffected() == 1, nil
}
