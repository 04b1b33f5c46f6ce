package composition

// ============================================================================
// Composition Rules
// ============================================================================

// Per-tier member caps. High and Oracle members share one cap.
const (
	MaxHighOrOracleMembers = 2
	MaxMidMembers          = 4
	MaxLowMembers          = 5
)

// Composition failure reasons, reported in the order the checks run
const (
	ReasonDuplicateMember = "duplicate member"
	ReasonMinimumMembers  = "minimum 3 members"
	ReasonMaximumMembers  = "maximum 11 members"
	ReasonTierDiversity   = "tier diversity: need at least one low, mid, and high or oracle member"
	ReasonTooManyHigh     = "too many high or oracle members (max 2)"
	ReasonTooManyMid      = "too many mid members (max 4)"
	ReasonTooManyLow      = "too many low members (max 5)"
)

// ============================================================================
// Distribution Bounds
// ============================================================================

// Share bounds as a percentage of the distributed total. Both are truncated.
const (
	DistributionFloorPercent = 1
	DistributionCapPercent   = 70
	percentDenominator       = 100
)

// MaxConcurrentBalanceLookups bounds parallel reads against the reputation ledger
const MaxConcurrentBalanceLookups = 4

// ============================================================================
// Error Messages
// ============================================================================

// Error context messages for wrapped errors
const (
	ErrContextFailedToReadBalance  = "failed to read reputation balance"
	ErrContextFailedToReadDilution = "failed to read active group count"
)

// Malformed input details
const (
	ErrMsgNoMembers        = "member list is empty"
	ErrMsgWeightMismatch   = "weights do not match members"
	ErrMsgZeroTotalWeight  = "total weight is zero"
	ErrMsgWeightOverflow   = "total weight overflows"
	ErrMsgReputationTooBig = "pooled reputation overflows"
	ErrMsgDoesNotReconcile = "distribution does not reconcile to total"
)
