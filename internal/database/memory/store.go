// Package memory provides in-process implementations of the repository
// interfaces, used by the memory store mode and by service tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/osse101/riddlegroup/internal/domain"
	"github.com/osse101/riddlegroup/internal/repository"
)

// GroupStore implements repository.Group. Transactions are serialized: a
// GroupTx holds the store lock from BeginGroupTx until Commit or Rollback.
type GroupStore struct {
	mu       sync.Mutex
	groups   map[int64]*domain.Group
	dilution map[string]uint64
	nextID   int64
}

// NewGroupStore creates an empty store
func NewGroupStore() *GroupStore {
	return &GroupStore{
		groups:   make(map[int64]*domain.Group),
		dilution: make(map[string]uint64),
	}
}

// GetGroup returns a copy of the committed group, or nil, nil when not found
func (s *GroupStore) GetGroup(ctx context.Context, id int64) (*domain.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groups[id].Clone(), nil
}

// ListGroupsByState returns committed groups in the given state ordered by ID
func (s *GroupStore) ListGroupsByState(ctx context.Context, state domain.GroupState) ([]domain.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Group, 0)
	for _, g := range s.groups {
		if g.State == state {
			out = append(out, *g.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetActiveGroupCount returns the committed dilution counter of participant
func (s *GroupStore) GetActiveGroupCount(ctx context.Context, participant string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dilution[participant], nil
}

// BeginGroupTx blocks until no other transaction is open
func (s *GroupStore) BeginGroupTx(ctx context.Context) (repository.GroupTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", ErrMsgFailedToBeginTx, err)
	}
	s.mu.Lock()
	return &groupTx{store: s}, nil
}

// groupTx applies writes in place and keeps an undo journal for Rollback
type groupTx struct {
	store  *GroupStore
	undo   []func()
	closed bool
}

func (t *groupTx) Commit(_ context.Context) error {
	if t.closed {
		return domain.ErrTxClosed
	}
	t.closed = true
	t.undo = nil
	t.store.mu.Unlock()
	return nil
}

func (t *groupTx) Rollback(_ context.Context) error {
	if t.closed {
		return domain.ErrTxClosed
	}
	t.closed = true
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.store.mu.Unlock()
	return nil
}

func (t *groupTx) check(ctx context.Context) error {
	if t.closed {
		return domain.ErrTxClosed
	}
	return ctx.Err()
}

func (t *groupTx) CreateGroup(ctx context.Context, g *domain.Group) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	s := t.store
	prevID := s.nextID
	s.nextID++
	g.ID = s.nextID
	s.groups[g.ID] = g.Clone()

	id := g.ID
	t.undo = append(t.undo, func() {
		delete(s.groups, id)
		s.nextID = prevID
	})
	return nil
}

func (t *groupTx) GetGroupForUpdate(ctx context.Context, id int64) (*domain.Group, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	return t.store.groups[id].Clone(), nil
}

func (t *groupTx) stored(id int64) (*domain.Group, error) {
	g, ok := t.store.groups[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrGroupNotFound, id)
	}
	return g, nil
}

func (t *groupTx) AddMember(ctx context.Context, groupID int64, participant string) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	g, err := t.stored(groupID)
	if err != nil {
		return err
	}
	if g.HasMember(participant) {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyMember, participant)
	}
	prev := g.Members
	g.Members = append(slices.Clone(g.Members), participant)
	t.undo = append(t.undo, func() { g.Members = prev })
	return nil
}

func (t *groupTx) RemoveMember(ctx context.Context, groupID int64, participant string) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	g, err := t.stored(groupID)
	if err != nil {
		return err
	}
	idx := slices.Index(g.Members, participant)
	if idx < 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotMember, participant)
	}
	prev := g.Members
	g.Members = slices.Delete(slices.Clone(g.Members), idx, idx+1)
	t.undo = append(t.undo, func() { g.Members = prev })
	return nil
}

func (t *groupTx) UpdateGroup(ctx context.Context, g *domain.Group) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	stored, err := t.stored(g.ID)
	if err != nil {
		return err
	}
	prev := stored.Clone()
	next := g.Clone()

	stored.State = next.State
	stored.PooledReputation = next.PooledReputation
	stored.AccessibleTier = next.AccessibleTier
	stored.FinalizedAt = next.FinalizedAt
	stored.ActivatedAt = next.ActivatedAt
	stored.ClosedAt = next.ClosedAt
	stored.Succeeded = next.Succeeded

	t.undo = append(t.undo, func() { *stored = *prev })
	return nil
}

func (t *groupTx) IncrementActiveGroupCount(ctx context.Context, participant string) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	s := t.store
	prev, existed := s.dilution[participant]
	s.dilution[participant] = prev + 1
	t.undo = append(t.undo, restoreCounter(s, participant, prev, existed))
	return nil
}

func (t *groupTx) DecrementActiveGroupCount(ctx context.Context, participant string) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	s := t.store
	prev, existed := s.dilution[participant]
	if prev == 0 {
		return fmt.Errorf("%w: %s", domain.ErrDilutionUnderflow, participant)
	}
	if prev == 1 {
		delete(s.dilution, participant)
	} else {
		s.dilution[participant] = prev - 1
	}
	t.undo = append(t.undo, restoreCounter(s, participant, prev, existed))
	return nil
}

func (t *groupTx) ActiveGroupCount(ctx context.Context, participant string) (uint64, error) {
	if err := t.check(ctx); err != nil {
		return 0, err
	}
	return t.store.dilution[participant], nil
}

func restoreCounter(s *GroupStore, participant string, prev uint64, existed bool) func() {
	return func() {
		if existed {
			s.dilution[participant] = prev
		} else {
			delete(s.dilution, participant)
		}
	}
}
