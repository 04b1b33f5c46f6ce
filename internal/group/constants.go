package group

import "time"

// ============================================================================
// Cache Configuration
// ============================================================================

// CacheSchemaVersion is the current version of the cache schema
// Increment this when the cached data structure changes to auto-invalidate old entries
const CacheSchemaVersion = "1.0"

// DefaultCacheSize is the default maximum number of cached group snapshots
const DefaultCacheSize = 1000

// DefaultCacheTTL is the default time-to-live for cached group snapshots
const DefaultCacheTTL = 30 * time.Second

// ============================================================================
// Locking
// ============================================================================

// ============================================================================
// Operation names (used in state errors and logs)
// ============================================================================

const (
	OpCreate   = "create"
	OpJoin     = "join"
	OpLeave    = "leave"
	OpFinalize = "finalize"
	OpDisband  = "disband"
	OpActivate = "activate"
	OpComplete = "complete"
)

// ============================================================================
// Error Context Messages
// ============================================================================

const (
	ErrContextFailedToBeginTx        = "failed to begin group transaction"
	ErrContextFailedToCommit         = "failed to commit group transaction"
	ErrContextFailedToLoadGroup      = "failed to load group"
	ErrContextFailedToCreateGroup    = "failed to create group"
	ErrContextFailedToAddMember      = "failed to add member"
	ErrContextFailedToRemoveMember   = "failed to remove member"
	ErrContextFailedToUpdateGroup    = "failed to update group"
	ErrContextFailedToUpdateDilution = "failed to update active group count"
	ErrContextFailedToValidate       = "failed to validate composition"
	ErrContextFailedToPool           = "failed to calculate pooled reputation"
	ErrContextFailedToWeigh          = "failed to read member weights"
	ErrContextFailedToDistribute     = "failed to calculate distribution"
	ErrContextFailedToPay            = "failed to send payouts"
	ErrContextFailedToChargeFee      = "failed to charge disband fee"
	ErrContextFailedToListGroups     = "failed to list groups"
	ErrContextFailedToReadDilution   = "failed to read active group count"
)

// Validation details
const (
	ErrMsgCreatorRequired   = "creator is required"
	ErrMsgParticipantNeeded = "participant is required"
	ErrMsgCostOverflow      = "collective cost overflows"
	ErrMsgUnknownState      = "unknown group state"
	ErrMsgLockedValueTooBig = "locked value exceeds the storable maximum"
)

// ============================================================================
// Log Messages
// ============================================================================

const (
	LogMsgGroupCreated        = "Group created"
	LogMsgMemberJoined        = "Member joined group"
	LogMsgMemberLeft          = "Member left group"
	LogMsgGroupFinalized      = "Group finalized"
	LogMsgGroupDisbanded      = "Group disbanded"
	LogMsgGroupActivated      = "Group activated"
	LogMsgGroupCompleted      = "Group completed"
	LogMsgDegenerateSplit     = "Payout distribution fell outside floor and cap bands"
	LogMsgZeroWeightFallback  = "All member weights are zero, splitting payout evenly"
	LogMsgEventPublishFailed  = "Failed to publish group event"
	LogMsgUnauthorizedCaller  = "Rejected privileged call"
	LogMsgCompositionRejected = "Group composition rejected"
)
