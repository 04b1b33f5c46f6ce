package group

import (
	"context"
	"fmt"
	"math"
	"math/bits"
	"strings"
	"time"

	"github.com/osse101/riddlegroup/internal/composition"
	"github.com/osse101/riddlegroup/internal/concurrency"
	"github.com/osse101/riddlegroup/internal/domain"
	"github.com/osse101/riddlegroup/internal/event"
	"github.com/osse101/riddlegroup/internal/ledger"
	"github.com/osse101/riddlegroup/internal/logger"
	"github.com/osse101/riddlegroup/internal/repository"
)

// Service manages the group lifecycle and its dilution counters
type Service interface {
	// Mutations
	CreateGroupFromNFT(ctx context.Context, caller string, params domain.CreateGroupParams) (*domain.Group, error)
	JoinGroup(ctx context.Context, groupID int64, participant string, ackCost uint64) (*domain.Group, error)
	LeaveGroup(ctx context.Context, groupID int64, participant string) (*domain.Group, error)
	FinalizeGroup(ctx context.Context, groupID int64, caller string) (*domain.Group, error)
	DisbandGroup(ctx context.Context, groupID int64, caller string) (*domain.Group, error)
	ActivateGroup(ctx context.Context, caller string, groupID int64) (*domain.Group, error)
	CompleteGroup(ctx context.Context, caller string, groupID int64, success bool) (*domain.GroupResult, error)

	// Queries
	GetGroup(ctx context.Context, groupID int64) (*domain.Group, error)
	GetGroupState(ctx context.Context, groupID int64) (domain.GroupState, error)
	GetGroupMemberCount(ctx context.Context, groupID int64) (int, error)
	GetGroupMembers(ctx context.Context, groupID int64) ([]string, error)
	GetGroupCosts(ctx context.Context, groupID int64) (domain.GroupCosts, error)
	IsGroupMember(ctx context.Context, groupID int64, participant string) (bool, error)
	ActiveGroupCount(ctx context.Context, participant string) (uint64, error)
	GetGroupCreator(ctx context.Context, groupID int64) (string, error)
	ListGroupsByState(ctx context.Context, state domain.GroupState) ([]domain.Group, error)
	CacheStats() CacheStats
}

// Config carries the service's tunables and collaborators' identities
type Config struct {
	// ChallengeContract is the only caller allowed to create, activate and complete groups
	ChallengeContract string
	JoinWindow        time.Duration
	DisbandFee        uint64
	Clock             func() time.Time
	CacheSize         int
	CacheTTL          time.Duration
}

type service struct {
	repo      repository.Group
	validator *composition.Validator
	tokens    ledger.Token
	bus       event.Bus
	locks     *concurrency.KeyedMutex[int64]
	cache     *groupCache
	cfg       Config
}

// NewService creates a new group service
func NewService(
	repo repository.Group,
	validator *composition.Validator,
	tokens ledger.Token,
	bus event.Bus,
	cfg Config,
) Service {
	if cfg.JoinWindow <= 0 {
		cfg.JoinWindow = domain.DefaultJoinWindow
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &service{
		repo:      repo,
		validator: validator,
		tokens:    tokens,
		bus:       bus,
		locks:     concurrency.NewKeyedMutex[int64](),
		cache:     newGroupCache(CacheConfig{Size: cfg.CacheSize, TTL: cfg.CacheTTL}),
		cfg:       cfg,
	}
}

func (s *service) now() time.Time {
	return s.cfg.Clock().UTC()
}

func (s *service) authorize(ctx context.Context, caller, op string) error {
	if s.cfg.ChallengeContract == "" || caller != s.cfg.ChallengeContract {
		logger.FromContext(ctx).Warn(LogMsgUnauthorizedCaller, "caller", caller, "operation", op)
		return fmt.Errorf("%w: %s", domain.ErrNotAuthorized, op)
	}
	return nil
}

// requireState guards membership edits, which leave the state unchanged
func requireState(g *domain.Group, want domain.GroupState, op string) error {
	if g.State != want {
		return &domain.WrongStateError{Operation: op, Current: g.State}
	}
	return nil
}

// requireTransition guards lifecycle moves against the domain transition table
func requireTransition(g *domain.Group, next domain.GroupState, op string) error {
	if !g.State.CanTransitionTo(next) {
		return &domain.WrongStateError{Operation: op, Current: g.State}
	}
	return nil
}

func (s *service) requireWindowOpen(g *domain.Group) error {
	deadline := g.JoinDeadline(s.cfg.JoinWindow)
	if !s.now().Before(deadline) {
		return fmt.Errorf("%w: closed at %s", domain.ErrJoinWindowClosed, deadline.Format(time.RFC3339))
	}
	return nil
}

// checkStorable rejects locked values the stores keep as signed 64-bit integers
func checkStorable(params domain.CreateGroupParams) error {
	locked := []struct {
		name  string
		value uint64
	}{
		{"era", params.Era},
		{"attempt_cost", params.AttemptCost},
		{"submission_cost", params.SubmissionCost},
	}
	for _, l := range locked {
		if l.value > math.MaxInt64 {
			return fmt.Errorf("%w: %s: %s=%d", domain.ErrInvalidInput, ErrMsgLockedValueTooBig, l.name, l.value)
		}
	}
	return nil
}

// collectiveCost is LockedAttemptCost times the member count
func collectiveCost(g *domain.Group) (uint64, error) {
	hi, lo := bits.Mul64(g.LockedAttemptCost, uint64(g.MemberCount()))
	if hi != 0 {
		return 0, fmt.Errorf("%w: %s", domain.ErrMalformedDistributionInput, ErrMsgCostOverflow)
	}
	return lo, nil
}

// mutate runs fn against the locked group inside a transaction. The per-group
// mutex is held until the commit is visible and the cached snapshot dropped.
func (s *service) mutate(ctx context.Context, groupID int64, fn func(tx repository.GroupTx, g *domain.Group) error) (*domain.Group, error) {
	unlock := s.locks.Lock(groupID)
	defer unlock()

	tx, err := s.repo.BeginGroupTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrContextFailedToBeginTx, err)
	}
	defer repository.SafeRollback(ctx, tx)

	g, err := tx.GetGroupForUpdate(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrContextFailedToLoadGroup, err)
	}
	if g == nil {
		return nil, fmt.Errorf("%w: %d", domain.ErrGroupNotFound, groupID)
	}

	if err := fn(tx, g); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", ErrContextFailedToCommit, err)
	}
	s.cache.Invalidate(groupID)
	return g, nil
}

func (s *service) publish(ctx context.Context, evt event.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, evt); err != nil {
		logger.FromContext(ctx).Error(LogMsgEventPublishFailed, "event_type", evt.Type, "error", err)
	}
}

// CreateGroupFromNFT opens a Forming group with the creator as its only member
func (s *service) CreateGroupFromNFT(ctx context.Context, caller string, params domain.CreateGroupParams) (*domain.Group, error) {
	if err := s.authorize(ctx, caller, OpCreate); err != nil {
		return nil, err
	}
	creator := strings.TrimSpace(params.Creator)
	if creator == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, ErrMsgCreatorRequired)
	}
	if err := checkStorable(params); err != nil {
		return nil, err
	}

	g := &domain.Group{
		State:                domain.GroupStateForming,
		Creator:              creator,
		Members:              []string{creator},
		ExternalID:           params.ExternalID,
		ChallengeID:          params.ChallengeID,
		LockedEra:            params.Era,
		LockedAttemptCost:    params.AttemptCost,
		LockedSubmissionCost: params.SubmissionCost,
		CreatedAt:            s.now(),
	}

	tx, err := s.repo.BeginGroupTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrContextFailedToBeginTx, err)
	}
	defer repository.SafeRollback(ctx, tx)

	if err := tx.CreateGroup(ctx, g); err != nil {
		return nil, fmt.Errorf("%s: %w", ErrContextFailedToCreateGroup, err)
	}
	if err := tx.IncrementActiveGroupCount(ctx, creator); err != nil {
		return nil, fmt.Errorf("%s: %w", ErrContextFailedToUpdateDilution, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", ErrContextFailedToCommit, err)
	}

	logger.FromContext(ctx).Info(LogMsgGroupCreated,
		"group_id", g.ID,
		"creator", creator,
		"external_id", g.ExternalID,
		"era", g.LockedEra,
		"attempt_cost", g.LockedAttemptCost)
	s.publish(ctx, event.NewGroupEvent(ctx, event.GroupCreated, g, creator, g.CreatedAt))
	return g, nil
}

// JoinGroup adds participant to a Forming group. Guards run in a fixed order so
// the first failing one decides the error.
func (s *service) JoinGroup(ctx context.Context, groupID int64, participant string, ackCost uint64) (*domain.Group, error) {
	if strings.TrimSpace(participant) == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, ErrMsgParticipantNeeded)
	}

	g, err := s.mutate(ctx, groupID, func(tx repository.GroupTx, g *domain.Group) error {
		if err := requireState(g, domain.GroupStateForming, OpJoin); err != nil {
			return err
		}
		if err := s.requireWindowOpen(g); err != nil {
			return err
		}
		if g.HasMember(participant) {
			return fmt.Errorf("%w: %s", domain.ErrAlreadyMember, participant)
		}
		if g.MemberCount() >= domain.MaxGroupMembers {
			return fmt.Errorf("%w: %d/%d", domain.ErrGroupFull, g.MemberCount(), domain.MaxGroupMembers)
		}
		if ackCost != g.LockedAttemptCost {
			return &domain.CostAcknowledgementError{Required: g.LockedAttemptCost, Acknowledged: ackCost}
		}

		if err := tx.AddMember(ctx, g.ID, participant); err != nil {
			return fmt.Errorf("%s: %w", ErrContextFailedToAddMember, err)
		}
		if err := tx.IncrementActiveGroupCount(ctx, participant); err != nil {
			return fmt.Errorf("%s: %w", ErrContextFailedToUpdateDilution, err)
		}
		g.Members = append(g.Members, participant)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info(LogMsgMemberJoined, "group_id", g.ID, "participant", participant, "member_count", g.MemberCount())
	s.publish(ctx, event.NewGroupEvent(ctx, event.GroupMemberJoined, g, participant, s.now()))
	return g, nil
}

// LeaveGroup removes a non-creator member from a Forming group
func (s *service) LeaveGroup(ctx context.Context, groupID int64, participant string) (*domain.Group, error) {
	g, err := s.mutate(ctx, groupID, func(tx repository.GroupTx, g *domain.Group) error {
		if err := requireState(g, domain.GroupStateForming, OpLeave); err != nil {
			return err
		}
		if !g.HasMember(participant) {
			return fmt.Errorf("%w: %s", domain.ErrNotMember, participant)
		}
		if participant == g.Creator {
			return domain.ErrCreatorCannotLeave
		}

		if err := tx.RemoveMember(ctx, g.ID, participant); err != nil {
			return fmt.Errorf("%s: %w", ErrContextFailedToRemoveMember, err)
		}
		if err := tx.DecrementActiveGroupCount(ctx, participant); err != nil {
			return fmt.Errorf("%s: %w", ErrContextFailedToUpdateDilution, err)
		}
		g.Members = removeMember(g.Members, participant)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info(LogMsgMemberLeft, "group_id", g.ID, "participant", participant, "member_count", g.MemberCount())
	s.publish(ctx, event.NewGroupEvent(ctx, event.GroupMemberLeft, g, participant, s.now()))
	return g, nil
}

func removeMember(members []string, participant string) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		if m != participant {
			out = append(out, m)
		}
	}
	return out
}

// FinalizeGroup validates composition and locks the pooled reputation
func (s *service) FinalizeGroup(ctx context.Context, groupID int64, caller string) (*domain.Group, error) {
	log := logger.FromContext(ctx)

	g, err := s.mutate(ctx, groupID, func(tx repository.GroupTx, g *domain.Group) error {
		if err := requireTransition(g, domain.GroupStateReserved, OpFinalize); err != nil {
			return err
		}
		if caller != g.Creator {
			return fmt.Errorf("%w: %s", domain.ErrNotCreator, caller)
		}
		if err := s.requireWindowOpen(g); err != nil {
			return err
		}

		result, err := s.validator.ValidateComposition(ctx, g.Members)
		if err != nil {
			return fmt.Errorf("%s: %w", ErrContextFailedToValidate, err)
		}
		if !result.Valid {
			log.Info(LogMsgCompositionRejected, "group_id", g.ID, "reason", result.Reason)
			return &domain.CompositionError{Reason: result.Reason}
		}

		pooled, err := s.validator.CalculatePooledRON(ctx, g.Members, tx)
		if err != nil {
			return fmt.Errorf("%s: %w", ErrContextFailedToPool, err)
		}

		now := s.now()
		g.PooledReputation = pooled
		g.AccessibleTier = composition.TierOf(pooled)
		g.State = domain.GroupStateReserved
		g.FinalizedAt = &now
		if err := tx.UpdateGroup(ctx, g); err != nil {
			return fmt.Errorf("%s: %w", ErrContextFailedToUpdateGroup, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info(LogMsgGroupFinalized,
		"group_id", g.ID,
		"member_count", g.MemberCount(),
		"pooled_reputation", g.PooledReputation,
		"tier", g.AccessibleTier.String(),
		"tier_name", g.AccessibleTier.DisplayName())
	s.publish(ctx, event.NewGroupEvent(ctx, event.GroupFinalized, g, "", *g.FinalizedAt))
	return g, nil
}

// DisbandGroup closes a Forming group, charging the creator the disband fee
func (s *service) DisbandGroup(ctx context.Context, groupID int64, caller string) (*domain.Group, error) {
	g, err := s.mutate(ctx, groupID, func(tx repository.GroupTx, g *domain.Group) error {
		if err := requireTransition(g, domain.GroupStateDisbanded, OpDisband); err != nil {
			return err
		}
		if caller != g.Creator {
			return fmt.Errorf("%w: %s", domain.ErrNotCreator, caller)
		}

		for _, m := range g.Members {
			if err := tx.DecrementActiveGroupCount(ctx, m); err != nil {
				return fmt.Errorf("%s: %w", ErrContextFailedToUpdateDilution, err)
			}
		}

		now := s.now()
		g.State = domain.GroupStateDisbanded
		g.ClosedAt = &now
		if err := tx.UpdateGroup(ctx, g); err != nil {
			return fmt.Errorf("%s: %w", ErrContextFailedToUpdateGroup, err)
		}

		// The token ledger commits on its own and ignores repeats, so it goes last
		// and a retry after a failed commit charges once
		if s.cfg.DisbandFee > 0 {
			if err := s.tokens.ChargeFee(ctx, g.ID, g.Creator, s.cfg.DisbandFee); err != nil {
				return fmt.Errorf("%s: %w", ErrContextFailedToChargeFee, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info(LogMsgGroupDisbanded, "group_id", g.ID, "fee", s.cfg.DisbandFee)
	s.publish(ctx, event.NewGroupEvent(ctx, event.GroupDisbanded, g, "", *g.ClosedAt))
	return g, nil
}

// ActivateGroup marks a Reserved group as attempting its riddle
func (s *service) ActivateGroup(ctx context.Context, caller string, groupID int64) (*domain.Group, error) {
	if err := s.authorize(ctx, caller, OpActivate); err != nil {
		return nil, err
	}

	g, err := s.mutate(ctx, groupID, func(tx repository.GroupTx, g *domain.Group) error {
		if err := requireTransition(g, domain.GroupStateActive, OpActivate); err != nil {
			return err
		}
		now := s.now()
		g.State = domain.GroupStateActive
		g.ActivatedAt = &now
		if err := tx.UpdateGroup(ctx, g); err != nil {
			return fmt.Errorf("%s: %w", ErrContextFailedToUpdateGroup, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info(LogMsgGroupActivated, "group_id", g.ID)
	s.publish(ctx, event.NewGroupEvent(ctx, event.GroupActivated, g, "", *g.ActivatedAt))
	return g, nil
}

// CompleteGroup records the attempt outcome, pays members on success and
// releases every member's dilution slot
func (s *service) CompleteGroup(ctx context.Context, caller string, groupID int64, success bool) (*domain.GroupResult, error) {
	if err := s.authorize(ctx, caller, OpComplete); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)

	result := &domain.GroupResult{GroupID: groupID, Success: success}
	g, err := s.mutate(ctx, groupID, func(tx repository.GroupTx, g *domain.Group) error {
		if err := requireTransition(g, domain.GroupStateCompleted, OpComplete); err != nil {
			return err
		}

		if success {
			// Weights are read before the counters drop so dilution still applies
			if err := s.settlePayouts(ctx, tx, g, result); err != nil {
				return err
			}
		}

		for _, m := range g.Members {
			if err := tx.DecrementActiveGroupCount(ctx, m); err != nil {
				return fmt.Errorf("%s: %w", ErrContextFailedToUpdateDilution, err)
			}
		}

		now := s.now()
		g.State = domain.GroupStateCompleted
		g.ClosedAt = &now
		g.Succeeded = &success
		if err := tx.UpdateGroup(ctx, g); err != nil {
			return fmt.Errorf("%s: %w", ErrContextFailedToUpdateGroup, err)
		}

		if len(result.Payouts) > 0 {
			// Last, for the same reason as the disband fee
			if err := s.tokens.Distribute(ctx, g.ID, result.Payouts); err != nil {
				return fmt.Errorf("%s: %w", ErrContextFailedToPay, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info(LogMsgGroupCompleted,
		"group_id", g.ID,
		"success", success,
		"payout_total", result.PayoutTotal,
		"clamped", len(result.Clamped))
	s.publish(ctx, event.NewGroupCompletedEvent(ctx, g, result.Payouts, *g.ClosedAt))
	return result, nil
}

// settlePayouts computes the capped weighted split of the collective attempt cost
func (s *service) settlePayouts(ctx context.Context, tx repository.GroupTx, g *domain.Group, result *domain.GroupResult) error {
	log := logger.FromContext(ctx)

	total, err := collectiveCost(g)
	if err != nil {
		return err
	}

	weights, err := s.validator.EffectiveReputations(ctx, g.Members, tx)
	if err != nil {
		return fmt.Errorf("%s: %w", ErrContextFailedToWeigh, err)
	}
	if allZero(weights) {
		log.Warn(LogMsgZeroWeightFallback, "group_id", g.ID)
		for i := range weights {
			weights[i] = 1
		}
	}

	dist, err := composition.CalculateDistribution(g.Members, weights, total)
	if err != nil {
		return fmt.Errorf("%s: %w", ErrContextFailedToDistribute, err)
	}
	if dist.Degenerate {
		log.Warn(LogMsgDegenerateSplit, "group_id", g.ID, "total", total, "shares", dist.Shares)
	}

	result.PayoutTotal = total
	result.Payouts = make([]domain.Payout, len(g.Members))
	for i, m := range g.Members {
		result.Payouts[i] = domain.Payout{Participant: m, Amount: dist.Shares[i]}
	}
	for _, idx := range dist.Clamped {
		result.Clamped = append(result.Clamped, g.Members[idx])
	}
	return nil
}

func allZero(values []uint64) bool {
	for _, v := range values {
		if v != 0 {
			return false
		}
	}
	return true
}

// GetGroup returns a committed snapshot of the group
func (s *service) GetGroup(ctx context.Context, groupID int64) (*domain.Group, error) {
	if g, ok := s.cache.Get(groupID); ok {
		return g, nil
	}
	g, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrContextFailedToLoadGroup, err)
	}
	if g == nil {
		return nil, fmt.Errorf("%w: %d", domain.ErrGroupNotFound, groupID)
	}
	s.cache.Set(g)
	return g, nil
}

func (s *service) GetGroupState(ctx context.Context, groupID int64) (domain.GroupState, error) {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return "", err
	}
	return g.State, nil
}

func (s *service) GetGroupMemberCount(ctx context.Context, groupID int64) (int, error) {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return 0, err
	}
	return g.MemberCount(), nil
}

func (s *service) GetGroupMembers(ctx context.Context, groupID int64) ([]string, error) {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return g.Members, nil
}

// GetGroupCosts returns the locked costs and the group's collective cost for
// its next attempt
func (s *service) GetGroupCosts(ctx context.Context, groupID int64) (domain.GroupCosts, error) {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return domain.GroupCosts{}, err
	}
	next, err := collectiveCost(g)
	if err != nil {
		return domain.GroupCosts{}, err
	}
	return domain.GroupCosts{
		Era:             g.LockedEra,
		AttemptCost:     g.LockedAttemptCost,
		SubmissionCost:  g.LockedSubmissionCost,
		NextAttemptCost: next,
	}, nil
}

func (s *service) IsGroupMember(ctx context.Context, groupID int64, participant string) (bool, error) {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return false, err
	}
	return g.HasMember(participant), nil
}

// ActiveGroupCount is never cached; it changes with every membership transaction
func (s *service) ActiveGroupCount(ctx context.Context, participant string) (uint64, error) {
	count, err := s.repo.GetActiveGroupCount(ctx, participant)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", ErrContextFailedToReadDilution, err)
	}
	return count, nil
}

func (s *service) GetGroupCreator(ctx context.Context, groupID int64) (string, error) {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return "", err
	}
	return g.Creator, nil
}

func (s *service) ListGroupsByState(ctx context.Context, state domain.GroupState) ([]domain.Group, error) {
	if !state.Valid() {
		return nil, fmt.Errorf("%w: %s %q", domain.ErrInvalidInput, ErrMsgUnknownState, state)
	}
	groups, err := s.repo.ListGroupsByState(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrContextFailedToListGroups, err)
	}
	return groups, nil
}

func (s *service) CacheStats() CacheStats {
	return s.cache.GetStats()
}
