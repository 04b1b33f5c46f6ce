package domain

import (
	"slices"
	"time"
)

// GroupState represents the lifecycle state of a group
type GroupState string

const (
	GroupStateForming   GroupState = "Forming"
	GroupStateReserved  GroupState = "Reserved"
	GroupStateActive    GroupState = "Active"
	GroupStateCompleted GroupState = "Completed"
	GroupStateDisbanded GroupState = "Disbanded"
)

// Group size bounds
const (
	MinGroupMembers = 3
	MaxGroupMembers = 11
)

// DefaultJoinWindow is how long a Forming group accepts members and finalization
const DefaultJoinWindow = 7 * 24 * time.Hour

var groupTransitions = map[GroupState][]GroupState{
	GroupStateForming:  {GroupStateReserved, GroupStateDisbanded},
	GroupStateReserved: {GroupStateActive},
	GroupStateActive:   {GroupStateCompleted},
}

// IsTerminal reports whether no further transition is possible from s
func (s GroupState) IsTerminal() bool {
	return s == GroupStateCompleted || s == GroupStateDisbanded
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next
func (s GroupState) CanTransitionTo(next GroupState) bool {
	return slices.Contains(groupTransitions[s], next)
}

// Valid reports whether s is a known state
func (s GroupState) Valid() bool {
	switch s {
	case GroupStateForming, GroupStateReserved, GroupStateActive, GroupStateCompleted, GroupStateDisbanded:
		return true
	}
	return false
}

// Group is a set of participants pooling reputation for one riddle attempt.
// LockedEra, LockedAttemptCost and LockedSubmissionCost are captured at creation
// and never change afterwards.
type Group struct {
	ID                   int64      `json:"id"`
	State                GroupState `json:"state"`
	Creator              string     `json:"creator"`
	Members              []string   `json:"members"`
	ExternalID           string     `json:"external_id"`
	ChallengeID          string     `json:"challenge_id"`
	LockedEra            uint64     `json:"locked_era"`
	LockedAttemptCost    uint64     `json:"locked_attempt_cost"`
	LockedSubmissionCost uint64     `json:"locked_submission_cost"`
	PooledReputation     uint64     `json:"pooled_reputation"`
	AccessibleTier       Tier       `json:"accessible_tier"`
	CreatedAt            time.Time  `json:"created_at"`
	FinalizedAt          *time.Time `json:"finalized_at,omitempty"`
	ActivatedAt          *time.Time `json:"activated_at,omitempty"`
	ClosedAt             *time.Time `json:"closed_at,omitempty"`
	Succeeded            *bool      `json:"succeeded,omitempty"`
}

// HasMember reports whether participant belongs to the group
func (g *Group) HasMember(participant string) bool {
	return slices.Contains(g.Members, participant)
}

// MemberCount returns the current number of members
func (g *Group) MemberCount() int {
	return len(g.Members)
}

// JoinDeadline is the instant after which the group no longer accepts members
func (g *Group) JoinDeadline(window time.Duration) time.Time {
	return g.CreatedAt.Add(window)
}

// Clone returns a deep copy so cached snapshots cannot be mutated by callers
func (g *Group) Clone() *Group {
	if g == nil {
		return nil
	}
	c := *g
	c.Members = slices.Clone(g.Members)
	c.FinalizedAt = cloneTime(g.FinalizedAt)
	c.ActivatedAt = cloneTime(g.ActivatedAt)
	c.ClosedAt = cloneTime(g.ClosedAt)
	if g.Succeeded != nil {
		v := *g.Succeeded
		c.Succeeded = &v
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// GroupCosts are the era-locked costs of a group
type GroupCosts struct {
	Era             uint64 `json:"era"`
	AttemptCost     uint64 `json:"attempt_cost"`
	SubmissionCost  uint64 `json:"submission_cost"`
	NextAttemptCost uint64 `json:"next_attempt_cost"`
}

// CreateGroupParams carries the values the challenge contract supplies when it
// originates a group
type CreateGroupParams struct {
	Creator        string `json:"creator"`
	ExternalID     string `json:"external_id"`
	ChallengeID    string `json:"challenge_id"`
	Era            uint64 `json:"era"`
	AttemptCost    uint64 `json:"attempt_cost"`
	SubmissionCost uint64 `json:"submission_cost"`
}

// Payout is one transfer instruction for the token ledger
type Payout struct {
	Participant string `json:"participant"`
	Amount      uint64 `json:"amount"`
}

// Distribution is the result of a capped weighted split.
// Shares are in input order; Clamped holds the ascending input indices that were
// pinned to the floor or the cap.
type Distribution struct {
	Shares     []uint64 `json:"shares"`
	Clamped    []int    `json:"clamped,omitempty"`
	Iterations int      `json:"iterations"`
	Degenerate bool     `json:"degenerate,omitempty"`
}

// Total returns the sum of all shares
func (d Distribution) Total() uint64 {
	var sum uint64
	for _, s := range d.Shares {
		sum += s
	}
	return sum
}

// GroupResult is the outcome of completing a group
type GroupResult struct {
	GroupID     int64    `json:"group_id"`
	Success     bool     `json:"success"`
	PayoutTotal uint64   `json:"payout_total"`
	Payouts     []Payout `json:"payouts,omitempty"`
	Clamped     []string `json:"clamped,omitempty"`
}
