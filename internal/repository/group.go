package repository

import (
	"context"

	"github.com/osse101/riddlegroup/internal/domain"
)

// Group defines the interface for group data access.
// Reads outside a transaction return committed state only.
type Group interface {
	// GetGroup returns nil, nil when the group does not exist
	GetGroup(ctx context.Context, id int64) (*domain.Group, error)
	ListGroupsByState(ctx context.Context, state domain.GroupState) ([]domain.Group, error)
	GetActiveGroupCount(ctx context.Context, participant string) (uint64, error)

	// Transaction support
	BeginGroupTx(ctx context.Context) (GroupTx, error)
}

// GroupTx extends Tx with group mutations. A GroupTx is not safe for concurrent use.
type GroupTx interface {
	Tx // Commit, Rollback

	// CreateGroup inserts g with its members and assigns g.ID
	CreateGroup(ctx context.Context, g *domain.Group) error
	// GetGroupForUpdate locks the group row; returns nil, nil when not found
	GetGroupForUpdate(ctx context.Context, id int64) (*domain.Group, error)
	AddMember(ctx context.Context, groupID int64, participant string) error
	RemoveMember(ctx context.Context, groupID int64, participant string) error
	// UpdateGroup persists state, pooled reputation, tier, timestamps and outcome.
	// Locked costs and membership are not touched.
	UpdateGroup(ctx context.Context, g *domain.Group) error

	// Dilution counters
	IncrementActiveGroupCount(ctx context.Context, participant string) error
	// DecrementActiveGroupCount fails with domain.ErrDilutionUnderflow at zero
	DecrementActiveGroupCount(ctx context.Context, participant string) error
	ActiveGroupCount(ctx context.Context, participant string) (uint64, error)
}
