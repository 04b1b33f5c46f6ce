package bootstrap

import (
	"context"
	"fmt"

	"github.com/osse101/riddlegroup/internal/domain"
	"github.com/osse101/riddlegroup/internal/event"
	"github.com/osse101/riddlegroup/internal/logger"
	"github.com/osse101/riddlegroup/internal/metrics"
)

// RegisterEventHandlers subscribes the metrics collector and the group audit
// logger to every group lifecycle event
func RegisterEventHandlers(eventBus event.Bus) error {
	metricsCollector := metrics.NewEventMetricsCollector()
	if err := metricsCollector.Register(eventBus); err != nil {
		return fmt.Errorf("%s: %w", ErrMsgFailedRegisterMetrics, err)
	}
	logger.Info(LogMsgMetricsCollectorRegistered)

	for _, eventType := range event.GroupTypes() {
		eventBus.Subscribe(eventType, logGroupEvent)
	}
	logger.Info(LogMsgAuditLoggerRegistered)

	return nil
}

// logGroupEvent writes one structured line per lifecycle transition
func logGroupEvent(ctx context.Context, evt event.Event) error {
	payload, err := event.DecodePayload[event.GroupPayloadV1](evt.Payload)
	if err != nil {
		return fmt.Errorf("%s: %w", ErrMsgFailedDecodeGroupEventForLogging, err)
	}

	args := []any{
		"type", evt.Type,
		"group_id", payload.GroupID,
		"state", payload.State,
		"members", payload.MemberCount,
	}
	if payload.Participant != "" {
		args = append(args, "participant", payload.Participant)
	}
	if payload.AccessibleTier != "" {
		if tier, err := domain.ParseTier(payload.AccessibleTier); err == nil {
			args = append(args, "tier_name", tier.DisplayName())
		}
	}
	if len(payload.Payouts) > 0 {
		args = append(args, "payouts", len(payload.Payouts))
	}
	logger.FromContext(ctx).Info(LogMsgGroupEvent, args...)
	return nil
}
