package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/osse101/riddlegroup/internal/domain"
	"github.com/osse101/riddlegroup/internal/repository"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const groupColumns = `
	g.group_id, g.state, g.creator, g.external_id, g.challenge_id,
	g.locked_era, g.locked_attempt_cost, g.locked_submission_cost,
	g.pooled_reputation, g.accessible_tier,
	g.created_at, g.finalized_at, g.activated_at, g.closed_at, g.succeeded`

// groupWithMembers reads a group and its ordered members in one statement
const groupWithMembers = `
	SELECT ` + groupColumns + `,
		COALESCE(array_agg(m.participant ORDER BY m.seq) FILTER (WHERE m.participant IS NOT NULL), '{}')
	FROM groups g
	LEFT JOIN group_members m ON m.group_id = g.group_id`

type groupRepository struct {
	db *pgxpool.Pool
}

// NewGroupRepository creates a new PostgreSQL group repository
func NewGroupRepository(db *pgxpool.Pool) repository.Group {
	return &groupRepository{db: db}
}

func scanGroup(row pgx.Row, extra ...any) (*domain.Group, error) {
	var g domain.Group
	var state string
	var tier int16
	dest := []any{
		&g.ID, &state, &g.Creator, &g.ExternalID, &g.ChallengeID,
		&g.LockedEra, &g.LockedAttemptCost, &g.LockedSubmissionCost,
		&g.PooledReputation, &tier,
		&g.CreatedAt, &g.FinalizedAt, &g.ActivatedAt, &g.ClosedAt, &g.Succeeded,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	g.State = domain.GroupState(state)
	g.AccessibleTier = domain.Tier(tier)
	g.CreatedAt = g.CreatedAt.UTC()
	g.FinalizedAt = ptrTime(g.FinalizedAt)
	g.ActivatedAt = ptrTime(g.ActivatedAt)
	g.ClosedAt = ptrTime(g.ClosedAt)
	return &g, nil
}

func scanGroupWithMembers(row pgx.Row) (*domain.Group, error) {
	var members []string
	g, err := scanGroup(row, &members)
	if err != nil {
		return nil, err
	}
	g.Members = members
	return g, nil
}

// GetGroup returns the committed group, or nil, nil when it does not exist
func (r *groupRepository) GetGroup(ctx context.Context, id int64) (*domain.Group, error) {
	row := r.db.QueryRow(ctx, groupWithMembers+` WHERE g.group_id = $1 GROUP BY g.group_id`, id)
	g, err := scanGroupWithMembers(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrMsgFailedToGetGroup, err)
	}
	return g, nil
}

// ListGroupsByState returns groups in the given state ordered by ID
func (r *groupRepository) ListGroupsByState(ctx context.Context, state domain.GroupState) ([]domain.Group, error) {
	rows, err := r.db.Query(ctx, groupWithMembers+` WHERE g.state = $1 GROUP BY g.group_id ORDER BY g.group_id`, string(state))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrMsgFailedToListGroups, err)
	}
	defer rows.Close()

	groups := make([]domain.Group, 0)
	for rows.Next() {
		g, err := scanGroupWithMembers(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ErrMsgFailedToListGroups, err)
		}
		groups = append(groups, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", ErrMsgFailedToListGroups, err)
	}
	return groups, nil
}

// GetActiveGroupCount returns the committed dilution counter of participant
func (r *groupRepository) GetActiveGroupCount(ctx context.Context, participant string) (uint64, error) {
	return activeGroupCount(ctx, r.db, participant)
}

func activeGroupCount(ctx context.Context, q querier, participant string) (uint64, error) {
	var count uint64
	err := q.QueryRow(ctx, `SELECT active_groups FROM participant_dilution WHERE participant = $1`, participant).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", ErrMsgFailedToGetDilution, err)
	}
	return count, nil
}

// BeginGroupTx starts a transaction for group mutations
func (r *groupRepository) BeginGroupTx(ctx context.Context) (repository.GroupTx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrMsgFailedToBeginTransaction, err)
	}
	return &groupTx{txn{tx: tx}}, nil
}

// groupTx implements repository.GroupTx over a pgx transaction
type groupTx struct {
	txn
}

// CreateGroup inserts g and its members in order, then sets g.ID
func (t *groupTx) CreateGroup(ctx context.Context, g *domain.Group) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO groups (
			state, creator, external_id, challenge_id,
			locked_era, locked_attempt_cost, locked_submission_cost,
			pooled_reputation, accessible_tier, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING group_id`,
		string(g.State), g.Creator, g.ExternalID, g.ChallengeID,
		g.LockedEra, g.LockedAttemptCost, g.LockedSubmissionCost,
		g.PooledReputation, int16(g.AccessibleTier), g.CreatedAt,
	).Scan(&g.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", ErrMsgFailedToInsertGroup, mapTxErr(err))
	}

	for _, m := range g.Members {
		if err := t.AddMember(ctx, g.ID, m); err != nil {
			return err
		}
	}
	return nil
}

// GetGroupForUpdate locks the group row until the transaction ends
func (t *groupTx) GetGroupForUpdate(ctx context.Context, id int64) (*domain.Group, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+groupColumns+` FROM groups g WHERE g.group_id = $1 FOR UPDATE`, id)
	g, err := scanGroup(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrMsgFailedToGetGroup, mapTxErr(err))
	}

	rows, err := t.tx.Query(ctx, `SELECT participant FROM group_members WHERE group_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrMsgFailedToGetMembers, mapTxErr(err))
	}
	members, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrMsgFailedToGetMembers, err)
	}
	g.Members = members
	return g, nil
}

func (t *groupTx) AddMember(ctx context.Context, groupID int64, participant string) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO group_members (group_id, participant) VALUES ($1, $2)`, groupID, participant)
	switch {
	case err == nil:
		return nil
	case isPgError(err, PgErrorCodeUniqueViolation):
		return fmt.Errorf("%w: %s", domain.ErrAlreadyMember, participant)
	case isPgError(err, PgErrorCodeForeignKeyViolation):
		return fmt.Errorf("%w: %d", domain.ErrGroupNotFound, groupID)
	default:
		return fmt.Errorf("%s: %w", ErrMsgFailedToInsertMember, mapTxErr(err))
	}
}

func (t *groupTx) RemoveMember(ctx context.Context, groupID int64, participant string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM group_members WHERE group_id = $1 AND participant = $2`, groupID, participant)
	if err != nil {
		return fmt.Errorf("%s: %w", ErrMsgFailedToDeleteMember, mapTxErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotMember, participant)
	}
	return nil
}

// UpdateGroup writes the mutable columns only
func (t *groupTx) UpdateGroup(ctx context.Context, g *domain.Group) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE groups SET
			state = $2,
			pooled_reputation = $3,
			accessible_tier = $4,
			finalized_at = $5,
			activated_at = $6,
			closed_at = $7,
			succeeded = $8
		WHERE group_id = $1`,
		g.ID, string(g.State), g.PooledReputation, int16(g.AccessibleTier),
		g.FinalizedAt, g.ActivatedAt, g.ClosedAt, g.Succeeded,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", ErrMsgFailedToUpdateGroup, mapTxErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", domain.ErrGroupNotFound, g.ID)
	}
	return nil
}

func (t *groupTx) IncrementActiveGroupCount(ctx context.Context, participant string) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO participant_dilution (participant, active_groups) VALUES ($1, 1)
		ON CONFLICT (participant) DO UPDATE
		SET active_groups = participant_dilution.active_groups + 1`, participant)
	if err != nil {
		return fmt.Errorf("%s: %w", ErrMsgFailedToUpdateDilution, mapTxErr(err))
	}
	return nil
}

// DecrementActiveGroupCount never lets the counter go below zero
func (t *groupTx) DecrementActiveGroupCount(ctx context.Context, participant string) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE participant_dilution SET active_groups = active_groups - 1
		WHERE participant = $1 AND active_groups > 0`, participant)
	if err != nil {
		return fmt.Errorf("%s: %w", ErrMsgFailedToUpdateDilution, mapTxErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrDilutionUnderflow, participant)
	}
	return nil
}

// ActiveGroupCount reads the counter as seen by this transaction
func (t *groupTx) ActiveGroupCount(ctx context.Context, participant string) (uint64, error) {
	return activeGroupCount(ctx, t.tx, participant)
}
