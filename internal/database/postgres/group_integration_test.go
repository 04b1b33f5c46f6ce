package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osse101/riddlegroup/internal/composition"
	"github.com/osse101/riddlegroup/internal/domain"
	"github.com/osse101/riddlegroup/internal/event"
	"github.com/osse101/riddlegroup/internal/group"
	"github.com/osse101/riddlegroup/internal/repository"
)

func newGroup(creator string) *domain.Group {
	return &domain.Group{
		State:                domain.GroupStateForming,
		Creator:              creator,
		Members:              []string{creator},
		ExternalID:           "nft-1",
		ChallengeID:          "riddle-1",
		LockedEra:            3,
		LockedAttemptCost:    1_000,
		LockedSubmissionCost: 100,
		CreatedAt:            time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func createCommitted(t *testing.T, repo repository.Group, g *domain.Group) {
	t.Helper()
	ctx := context.Background()
	tx, err := repo.BeginGroupTx(ctx)
	require.NoError(t, err)
	defer repository.SafeRollback(ctx, tx)

	require.NoError(t, tx.CreateGroup(ctx, g))
	for _, m := range g.Members {
		require.NoError(t, tx.IncrementActiveGroupCount(ctx, m))
	}
	require.NoError(t, tx.Commit(ctx))
}

func TestGroupRepository_CreateAndGet(t *testing.T) {
	pool := requireDB(t)
	ctx := context.Background()
	repo := NewGroupRepository(pool)

	alice := participant(t, "alice")
	g := newGroup(alice)
	createCommitted(t, repo, g)
	require.NotZero(t, g.ID)

	got, err := repo.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, g.Creator, got.Creator)
	assert.Equal(t, []string{alice}, got.Members)
	assert.Equal(t, domain.GroupStateForming, got.State)
	assert.Equal(t, uint64(1_000), got.LockedAttemptCost)
	assert.True(t, g.CreatedAt.Equal(got.CreatedAt))
	assert.Nil(t, got.FinalizedAt)
	assert.Nil(t, got.Succeeded)

	count, err := repo.GetActiveGroupCount(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	missing, err := repo.GetGroup(ctx, -1)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGroupRepository_MembershipOrder(t *testing.T) {
	pool := requireDB(t)
	ctx := context.Background()
	repo := NewGroupRepository(pool)

	alice, bob, carol := participant(t, "alice"), participant(t, "bob"), participant(t, "carol")
	g := newGroup(alice)
	createCommitted(t, repo, g)

	tx, err := repo.BeginGroupTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.AddMember(ctx, g.ID, bob))
	require.NoError(t, tx.AddMember(ctx, g.ID, carol))
	require.NoError(t, tx.RemoveMember(ctx, g.ID, bob))
	require.NoError(t, tx.AddMember(ctx, g.ID, bob))

	locked, err := tx.GetGroupForUpdate(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{alice, carol, bob}, locked.Members, "rejoining moves to the end")
	require.NoError(t, tx.Commit(ctx))

	got, err := repo.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{alice, carol, bob}, got.Members)
}

func TestGroupRepository_MembershipErrors(t *testing.T) {
	pool := requireDB(t)
	ctx := context.Background()
	repo := NewGroupRepository(pool)

	alice := participant(t, "alice")
	g := newGroup(alice)
	createCommitted(t, repo, g)

	tx, err := repo.BeginGroupTx(ctx)
	require.NoError(t, err)
	err = tx.RemoveMember(ctx, g.ID, participant(t, "nobody"))
	assert.ErrorIs(t, err, domain.ErrNotMember)
	require.NoError(t, tx.Rollback(ctx))

	tx, err = repo.BeginGroupTx(ctx)
	require.NoError(t, err)
	err = tx.AddMember(ctx, g.ID, alice)
	assert.ErrorIs(t, err, domain.ErrAlreadyMember)
	require.NoError(t, tx.Rollback(ctx))

	tx, err = repo.BeginGroupTx(ctx)
	require.NoError(t, err)
	err = tx.AddMember(ctx, -1, alice)
	assert.ErrorIs(t, err, domain.ErrGroupNotFound)
	require.NoError(t, tx.Rollback(ctx))
}

func TestGroupRepository_UpdateLeavesLockedColumns(t *testing.T) {
	pool := requireDB(t)
	ctx := context.Background()
	repo := NewGroupRepository(pool)

	g := newGroup(participant(t, "alice"))
	createCommitted(t, repo, g)

	tx, err := repo.BeginGroupTx(ctx)
	require.NoError(t, err)
	locked, err := tx.GetGroupForUpdate(ctx, g.ID)
	require.NoError(t, err)

	now := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
	locked.State = domain.GroupStateReserved
	locked.PooledReputation = 18_500
	locked.AccessibleTier = domain.TierHigh
	locked.FinalizedAt = &now
	locked.LockedAttemptCost = 1 // ignored
	require.NoError(t, tx.UpdateGroup(ctx, locked))
	require.NoError(t, tx.Commit(ctx))

	got, err := repo.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GroupStateReserved, got.State)
	assert.Equal(t, uint64(18_500), got.PooledReputation)
	assert.Equal(t, domain.TierHigh, got.AccessibleTier)
	require.NotNil(t, got.FinalizedAt)
	assert.True(t, now.Equal(*got.FinalizedAt))
	assert.Equal(t, uint64(1_000), got.LockedAttemptCost)

	reserved, err := repo.ListGroupsByState(ctx, domain.GroupStateReserved)
	require.NoError(t, err)
	var ids []int64
	for _, r := range reserved {
		ids = append(ids, r.ID)
	}
	assert.Contains(t, ids, g.ID)
}

func TestGroupRepository_DilutionUnderflow(t *testing.T) {
	pool := requireDB(t)
	ctx := context.Background()
	repo := NewGroupRepository(pool)
	dave := participant(t, "dave")

	tx, err := repo.BeginGroupTx(ctx)
	require.NoError(t, err)
	defer repository.SafeRollback(ctx, tx)

	err = tx.DecrementActiveGroupCount(ctx, dave)
	assert.ErrorIs(t, err, domain.ErrDilutionUnderflow)
}

func TestGroupRepository_RollbackDiscardsWrites(t *testing.T) {
	pool := requireDB(t)
	ctx := context.Background()
	repo := NewGroupRepository(pool)
	erin := participant(t, "erin")

	tx, err := repo.BeginGroupTx(ctx)
	require.NoError(t, err)
	g := newGroup(erin)
	require.NoError(t, tx.CreateGroup(ctx, g))
	require.NoError(t, tx.IncrementActiveGroupCount(ctx, erin))

	inTx, err := tx.ActiveGroupCount(ctx, erin)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), inTx, "the transaction sees its own writes")

	committed, err := repo.GetActiveGroupCount(ctx, erin)
	require.NoError(t, err)
	assert.Zero(t, committed, "other readers do not")

	require.NoError(t, tx.Rollback(ctx))
	assert.ErrorIs(t, tx.Commit(ctx), domain.ErrTxClosed)

	got, err := repo.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLedgers(t *testing.T) {
	pool := requireDB(t)
	ctx := context.Background()
	reputation := NewReputationLedger(pool)
	tokens := NewTokenLedger(pool)
	alice, bob := participant(t, "alice"), participant(t, "bob")

	balance, err := reputation.BalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, balance)

	require.NoError(t, reputation.SetBalance(ctx, alice, 5_000))
	require.NoError(t, reputation.SetBalance(ctx, alice, 7_000))
	balance, err = reputation.BalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(7_000), balance)

	require.NoError(t, tokens.Distribute(ctx, 42, []domain.Payout{
		{Participant: alice, Amount: 70},
		{Participant: bob, Amount: 30},
	}))
	require.NoError(t, tokens.ChargeFee(ctx, 42, alice, 20))

	aliceTokens, err := tokens.BalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), aliceTokens)

	err = tokens.ChargeFee(ctx, 42, bob, 31)
	assert.Error(t, err)
	bobTokens, _ := tokens.BalanceOf(ctx, bob)
	assert.Equal(t, uint64(30), bobTokens, "failed fee leaves the balance alone")

	transfers, err := tokens.Transfers(ctx, 42)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(transfers), 3)

	treasury, err := tokens.Treasury(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, treasury, uint64(20))
}

// TestGroupService_Postgres runs the lifecycle against the real store and ledgers
func TestGroupService_Postgres(t *testing.T) {
	pool := requireDB(t)
	ctx := context.Background()

	reputation := NewReputationLedger(pool)
	tokens := NewTokenLedger(pool)
	low, mid, high := participant(t, "low"), participant(t, "mid"), participant(t, "high")
	require.NoError(t, reputation.SetBalance(ctx, low, 500))
	require.NoError(t, reputation.SetBalance(ctx, mid, 5_000))
	require.NoError(t, reputation.SetBalance(ctx, high, 50_000))

	svc := group.NewService(NewGroupRepository(pool), composition.NewValidator(reputation), tokens, event.NewMemoryBus(),
		group.Config{ChallengeContract: "challenge"})

	g, err := svc.CreateGroupFromNFT(ctx, "challenge", domain.CreateGroupParams{Creator: low, AttemptCost: 1_000, Era: 1})
	require.NoError(t, err)
	_, err = svc.JoinGroup(ctx, g.ID, mid, 1_000)
	require.NoError(t, err)
	_, err = svc.JoinGroup(ctx, g.ID, high, 1_000)
	require.NoError(t, err)

	g, err = svc.FinalizeGroup(ctx, g.ID, low)
	require.NoError(t, err)
	assert.Equal(t, uint64(18_500), g.PooledReputation)

	_, err = svc.ActivateGroup(ctx, "challenge", g.ID)
	require.NoError(t, err)
	result, err := svc.CompleteGroup(ctx, "challenge", g.ID, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(3_000), result.PayoutTotal)

	highTokens, err := tokens.BalanceOf(ctx, high)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_100), highTokens)

	for _, p := range []string{low, mid, high} {
		count, err := svc.ActiveGroupCount(ctx, p)
		require.NoError(t, err)
		assert.Zero(t, count, p)
	}
}

// commitFailingRepo rolls back and fails the next commit once armed
type commitFailingRepo struct {
	repository.Group
	armed atomic.Bool
}

func (r *commitFailingRepo) BeginGroupTx(ctx context.Context) (repository.GroupTx, error) {
	tx, err := r.Group.BeginGroupTx(ctx)
	if err != nil {
		return nil, err
	}
	return &commitFailingTx{GroupTx: tx, repo: r}, nil
}

type commitFailingTx struct {
	repository.GroupTx
	repo *commitFailingRepo
}

func (tx *commitFailingTx) Commit(ctx context.Context) error {
	if tx.repo.armed.CompareAndSwap(true, false) {
		_ = tx.GroupTx.Rollback(ctx)
		return errors.New("connection reset during commit")
	}
	return tx.GroupTx.Commit(ctx)
}

// TestGroupService_CompleteRetryPostgres retries completion after the group
// commit fails and checks that members are paid once
func TestGroupService_CompleteRetryPostgres(t *testing.T) {
	pool := requireDB(t)
	ctx := context.Background()

	reputation := NewReputationLedger(pool)
	tokens := NewTokenLedger(pool)
	low, mid, oracle := participant(t, "low"), participant(t, "mid"), participant(t, "oracle")
	require.NoError(t, reputation.SetBalance(ctx, low, 500))
	require.NoError(t, reputation.SetBalance(ctx, mid, 5_000))
	require.NoError(t, reputation.SetBalance(ctx, oracle, 500_000))

	repo := &commitFailingRepo{Group: NewGroupRepository(pool)}
	svc := group.NewService(repo, composition.NewValidator(reputation), tokens, event.NewMemoryBus(),
		group.Config{ChallengeContract: "challenge"})

	g, err := svc.CreateGroupFromNFT(ctx, "challenge", domain.CreateGroupParams{Creator: low, AttemptCost: 1_000, Era: 1})
	require.NoError(t, err)
	_, err = svc.JoinGroup(ctx, g.ID, mid, 1_000)
	require.NoError(t, err)
	_, err = svc.JoinGroup(ctx, g.ID, oracle, 1_000)
	require.NoError(t, err)
	_, err = svc.FinalizeGroup(ctx, g.ID, low)
	require.NoError(t, err)
	_, err = svc.ActivateGroup(ctx, "challenge", g.ID)
	require.NoError(t, err)

	repo.armed.Store(true)
	_, err = svc.CompleteGroup(ctx, "challenge", g.ID, true)
	require.Error(t, err)

	stored, err := repo.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GroupStateActive, stored.State)

	result, err := svc.CompleteGroup(ctx, "challenge", g.ID, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(3_000), result.PayoutTotal)

	want := map[string]uint64{low: 82, mid: 818, oracle: 2_100}
	for p, amount := range want {
		balance, err := tokens.BalanceOf(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, amount, balance, p)
	}

	transfers, err := tokens.Transfers(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, transfers, 3)
}

func TestTokenLedger_RepeatedTransfersApplyOnce(t *testing.T) {
	pool := requireDB(t)
	ctx := context.Background()
	tokens := NewTokenLedger(pool)
	alice := participant(t, "alice")
	const groupID = 9_001

	payouts := []domain.Payout{{Participant: alice, Amount: 40}}
	require.NoError(t, tokens.Distribute(ctx, groupID, payouts))
	require.NoError(t, tokens.Distribute(ctx, groupID, payouts))
	require.NoError(t, tokens.ChargeFee(ctx, groupID, alice, 15))
	require.NoError(t, tokens.ChargeFee(ctx, groupID, alice, 15))

	balance, err := tokens.BalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(25), balance)

	transfers, err := tokens.Transfers(ctx, groupID)
	require.NoError(t, err)
	var mine int
	for _, tr := range transfers {
		if tr.Participant == alice {
			mine++
		}
	}
	assert.Equal(t, 2, mine)
}

// TestGroupService_ConcurrentJoinsPostgres relies on row locks as well as the
// in-process mutex, using two services over one database
func TestGroupService_ConcurrentJoinsPostgres(t *testing.T) {
	pool := requireDB(t)
	ctx := context.Background()

	repo := NewGroupRepository(pool)
	validator := composition.NewValidator(NewReputationLedger(pool))
	cfg := group.Config{ChallengeContract: "challenge"}
	services := []group.Service{
		group.NewService(repo, validator, NewTokenLedger(pool), nil, cfg),
		group.NewService(repo, validator, NewTokenLedger(pool), nil, cfg),
	}

	g, err := services[0].CreateGroupFromNFT(ctx, "challenge", domain.CreateGroupParams{Creator: participant(t, "creator"), AttemptCost: 10})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	joined := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := services[i%2].JoinGroup(ctx, g.ID, participant(t, fmt.Sprintf("p%02d", i)), 10)
			if err == nil {
				mu.Lock()
				joined++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, domain.MaxGroupMembers-1, joined)
	got, err := repo.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, got.Members, domain.MaxGroupMembers)
}
