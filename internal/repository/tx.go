package repository

import (
	"context"
	"errors"

	"github.com/osse101/riddlegroup/internal/domain"
	"github.com/osse101/riddlegroup/internal/logger"
)

// Tx is the commit/rollback half shared by every store transaction.
// Both methods return domain.ErrTxClosed once either has succeeded.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// SafeRollback is meant for defer right after Begin. After a successful
// Commit the rollback is a no-op; any other failure is logged.
func SafeRollback(ctx context.Context, tx Tx) {
	err := tx.Rollback(ctx)
	if err == nil || errors.Is(err, domain.ErrTxClosed) {
		return
	}
	logger.FromContext(ctx).Error("Failed to rollback transaction", "error", err)
}
