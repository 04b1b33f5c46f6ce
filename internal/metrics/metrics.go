package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameHTTPRequestsTotal,
			Help: HelpTextHTTPRequestsTotal,
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricNameHTTPRequestDuration,
			Help:    HelpTextHTTPRequestDuration,
			Buckets: HTTPLatencyBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricNameHTTPRequestsInFlight,
			Help: HelpTextHTTPRequestsInFlight,
		},
	)
)

// Event Metrics
var (
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameEventsPublished,
			Help: HelpTextEventsPublished,
		},
		[]string{LabelType},
	)

	EventHandlerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameEventHandlerErrors,
			Help: HelpTextEventHandlerErrors,
		},
		[]string{LabelType},
	)
)

// Group Metrics
var (
	GroupTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameGroupTransitions,
			Help: HelpTextGroupTransitions,
		},
		[]string{LabelState},
	)

	GroupMembershipChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameGroupMembership,
			Help: HelpTextGroupMembership,
		},
		[]string{LabelDirection},
	)

	GroupOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameGroupOutcomes,
			Help: HelpTextGroupOutcomes,
		},
		[]string{LabelOutcome},
	)

	TokensDistributed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameTokensDistributed,
			Help: HelpTextTokensDistributed,
		},
	)

	GroupSizeAtFinalize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    MetricNameGroupSize,
			Help:    HelpTextGroupSize,
			Buckets: GroupSizeBuckets,
		},
	)

	PooledReputation = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricNamePooledReputation,
			Help:    HelpTextPooledReputation,
			Buckets: PooledReputationBuckets,
		},
		[]string{LabelTier},
	)
)
