package metrics

// ============================================================================
// Metric Names
// ============================================================================

// HTTP metric names
const (
	MetricNameHTTPRequestsTotal    = "http_requests_total"
	MetricNameHTTPRequestDuration  = "http_request_duration_seconds"
	MetricNameHTTPRequestsInFlight = "http_requests_in_flight"
)

// Event metric names
const (
	MetricNameEventsPublished    = "events_published_total"
	MetricNameEventHandlerErrors = "event_handler_errors_total"
)

// Group metric names
const (
	MetricNameGroupTransitions  = "group_transitions_total"
	MetricNameGroupMembership   = "group_membership_changes_total"
	MetricNameGroupOutcomes     = "group_outcomes_total"
	MetricNameTokensDistributed = "group_tokens_distributed_total"
	MetricNameGroupSize         = "group_size_at_finalize"
	MetricNamePooledReputation  = "group_pooled_reputation"
)

// ============================================================================
// Metric Help Text
// ============================================================================

// HTTP metric help text
const (
	HelpTextHTTPRequestsTotal    = "Total number of HTTP requests"
	HelpTextHTTPRequestDuration  = "HTTP request latency in seconds"
	HelpTextHTTPRequestsInFlight = "Current number of HTTP requests being served"
)

// Event metric help text
const (
	HelpTextEventsPublished    = "Total number of events published"
	HelpTextEventHandlerErrors = "Total number of event handler errors"
)

// Group metric help text
const (
	HelpTextGroupTransitions  = "Total number of group lifecycle transitions by resulting state"
	HelpTextGroupMembership   = "Total number of members joining or leaving forming groups"
	HelpTextGroupOutcomes     = "Total number of completed groups by outcome"
	HelpTextTokensDistributed = "Total tokens paid out to group members"
	HelpTextGroupSize         = "Member count of groups at finalization"
	HelpTextPooledReputation  = "Pooled effective reputation of groups at finalization"
)

// ============================================================================
// Metric Label Names
// ============================================================================

// Common label names used across metrics
const (
	LabelMethod    = "method"
	LabelPath      = "path"
	LabelStatus    = "status"
	LabelType      = "type"
	LabelState     = "state"
	LabelDirection = "direction"
	LabelOutcome   = "outcome"
	LabelTier      = "tier"
)

// Label values
const (
	DirectionJoined = "joined"
	DirectionLeft   = "left"
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	PathUnmatched   = "unmatched"
)

// ============================================================================
// Histogram Buckets
// ============================================================================

// HTTPLatencyBuckets defines the histogram buckets for HTTP request duration
// in seconds, from 1ms to 10s
var HTTPLatencyBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// GroupSizeBuckets cover every legal group size
var GroupSizeBuckets = []float64{3, 4, 5, 6, 7, 8, 9, 10, 11}

// PooledReputationBuckets follow the tier thresholds
var PooledReputationBuckets = []float64{100, 1_000, 5_000, 10_000, 50_000, 100_000, 500_000}

// ============================================================================
// Log Messages
// ============================================================================

// Debug log messages
const (
	LogMsgUnexpectedPayload = "Event payload is not a group payload"
	LogMsgMetricsRecorded   = "Metrics recorded for event"
)
