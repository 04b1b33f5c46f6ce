package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/osse101/riddlegroup/internal/domain"
	"github.com/osse101/riddlegroup/internal/logger"
)

// Type represents the type of an event
type Type string

// Metadata defines the type for event metadata
type Metadata interface{}

// Event represents a generic event in the system
type Event struct {
	ID       string      `json:"id"`
	Version  string      `json:"version"` // Event schema version (e.g., "1.0")
	Type     Type        `json:"type"`
	Payload  interface{} `json:"payload"`
	Metadata Metadata    `json:"metadata"`
}

// GetMetadataValue extracts a value from the event metadata safely
func (e Event) GetMetadataValue(key string) interface{} {
	if m, ok := e.Metadata.(map[string]interface{}); ok {
		return m[key]
	}
	return nil
}

// Group lifecycle event types
const (
	GroupCreated      Type = Type(domain.EventTypeGroupCreated)
	GroupMemberJoined Type = Type(domain.EventTypeGroupMemberJoined)
	GroupMemberLeft   Type = Type(domain.EventTypeGroupMemberLeft)
	GroupFinalized    Type = Type(domain.EventTypeGroupFinalized)
	GroupActivated    Type = Type(domain.EventTypeGroupActivated)
	GroupCompleted    Type = Type(domain.EventTypeGroupCompleted)
	GroupDisbanded    Type = Type(domain.EventTypeGroupDisbanded)
)

// GroupTypes lists every group lifecycle event type
func GroupTypes() []Type {
	types := domain.GroupEventTypes()
	out := make([]Type, len(types))
	for i, t := range types {
		out[i] = Type(t)
	}
	return out
}

// Typed event payloads for type safety

// GroupPayloadV1 is the typed payload for every group lifecycle event.
// Participant is set for membership events; Payouts only on a successful completion.
type GroupPayloadV1 struct {
	GroupID          int64             `json:"group_id"`
	State            domain.GroupState `json:"state"`
	Creator          string            `json:"creator"`
	Participant      string            `json:"participant,omitempty"`
	MemberCount      int               `json:"member_count"`
	PooledReputation uint64            `json:"pooled_reputation,omitempty"`
	AccessibleTier   string            `json:"accessible_tier,omitempty"`
	Success          *bool             `json:"success,omitempty"`
	Payouts          []domain.Payout   `json:"payouts,omitempty"`
	Timestamp        int64             `json:"timestamp"`
}

// NewGroupEvent builds a group lifecycle event from a committed group snapshot
func NewGroupEvent(ctx context.Context, eventType Type, g *domain.Group, participant string, at time.Time) Event {
	payload := GroupPayloadV1{
		GroupID:     g.ID,
		State:       g.State,
		Creator:     g.Creator,
		Participant: participant,
		MemberCount: g.MemberCount(),
		Success:     g.Succeeded,
		Timestamp:   at.Unix(),
	}
	if g.State != domain.GroupStateForming && g.State != domain.GroupStateDisbanded {
		payload.PooledReputation = g.PooledReputation
		payload.AccessibleTier = g.AccessibleTier.String()
	}

	metadata := map[string]interface{}{MetadataKeyGroupID: g.ID}
	if id := logger.GetRequestID(ctx); id != "" {
		metadata[MetadataKeyRequestID] = id
	}

	return Event{
		ID:       uuid.NewString(),
		Version:  EventSchemaVersion,
		Type:     eventType,
		Payload:  payload,
		Metadata: metadata,
	}
}

// NewGroupCompletedEvent attaches the payout instructions to a completion event
func NewGroupCompletedEvent(ctx context.Context, g *domain.Group, payouts []domain.Payout, at time.Time) Event {
	evt := NewGroupEvent(ctx, GroupCompleted, g, "", at)
	payload := evt.Payload.(GroupPayloadV1)
	payload.Payouts = payouts
	evt.Payload = payload
	return evt
}

// Handler is a function that handles an event
type Handler func(ctx context.Context, event Event) error

// Bus defines the interface for an event bus
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType Type, handler Handler)
}

// MemoryBus is an in-memory implementation of the Event Bus
type MemoryBus struct {
	handlers map[Type][]Handler
	mu       sync.RWMutex
}

// NewMemoryBus creates a new MemoryBus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		handlers: make(map[Type][]Handler),
	}
}

// Publish runs every subscriber synchronously and joins their errors
func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers, ok := b.handlers[event.Type]
	b.mu.RUnlock()

	if !ok {
		return nil
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf(LogMsgHandlerErrorFormat, len(errs), event.Type, errs)
	}

	return nil
}

// Subscribe subscribes a handler to an event type
func (b *MemoryBus) Subscribe(eventType Type, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}
