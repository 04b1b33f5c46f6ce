package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/osse101/riddlegroup/internal/domain"
)

// txn adapts pgx.Tx to repository.Tx so closed transactions report domain.ErrTxClosed
type txn struct {
	tx pgx.Tx
}

func (t txn) Commit(ctx context.Context) error {
	return mapTxErr(t.tx.Commit(ctx))
}

func (t txn) Rollback(ctx context.Context) error {
	return mapTxErr(t.tx.Rollback(ctx))
}

// mapTxErr translates pgx's closed-transaction error to the domain sentinel
func mapTxErr(err error) error {
	if errors.Is(err, pgx.ErrTxClosed) {
		return domain.ErrTxClosed
	}
	return err
}

// isPgError reports whether err is a PostgreSQL error with the given SQLSTATE
func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// ptrTime returns nil for a NULL timestamp and a UTC copy otherwise
func ptrTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
