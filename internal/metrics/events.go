package metrics

import (
	"context"

	"github.com/osse101/riddlegroup/internal/domain"
	"github.com/osse101/riddlegroup/internal/event"
	"github.com/osse101/riddlegroup/internal/logger"
)

// EventMetricsCollector subscribes to group events and records metrics
type EventMetricsCollector struct{}

// NewEventMetricsCollector creates a new event metrics collector
func NewEventMetricsCollector() *EventMetricsCollector {
	return &EventMetricsCollector{}
}

// Register subscribes to every group lifecycle event
func (e *EventMetricsCollector) Register(bus event.Bus) error {
	for _, eventType := range event.GroupTypes() {
		bus.Subscribe(eventType, e.HandleEvent)
	}
	return nil
}

// HandleEvent processes events and updates metrics
func (e *EventMetricsCollector) HandleEvent(ctx context.Context, evt event.Event) error {
	log := logger.FromContext(ctx)

	EventsPublished.WithLabelValues(string(evt.Type)).Inc()

	payload, err := event.DecodePayload[event.GroupPayloadV1](evt.Payload)
	if err != nil {
		log.Debug(LogMsgUnexpectedPayload, "type", evt.Type, "error", err)
		EventHandlerErrors.WithLabelValues(string(evt.Type)).Inc()
		return nil
	}

	switch evt.Type {
	case event.GroupCreated:
		GroupTransitions.WithLabelValues(string(domain.GroupStateForming)).Inc()

	case event.GroupMemberJoined:
		GroupMembershipChanges.WithLabelValues(DirectionJoined).Inc()

	case event.GroupMemberLeft:
		GroupMembershipChanges.WithLabelValues(DirectionLeft).Inc()

	case event.GroupFinalized:
		GroupTransitions.WithLabelValues(string(payload.State)).Inc()
		GroupSizeAtFinalize.Observe(float64(payload.MemberCount))
		PooledReputation.WithLabelValues(payload.AccessibleTier).Observe(float64(payload.PooledReputation))

	case event.GroupActivated, event.GroupDisbanded:
		GroupTransitions.WithLabelValues(string(payload.State)).Inc()

	case event.GroupCompleted:
		GroupTransitions.WithLabelValues(string(payload.State)).Inc()
		outcome := OutcomeFailure
		if payload.Success != nil && *payload.Success {
			outcome = OutcomeSuccess
		}
		GroupOutcomes.WithLabelValues(outcome).Inc()
		var paid uint64
		for _, p := range payload.Payouts {
			paid += p.Amount
		}
		TokensDistributed.Add(float64(paid))
	}

	log.Debug(LogMsgMetricsRecorded, "type", evt.Type)
	return nil
}
