// Package bus provides the event bus that carries board change notifications
// between the controller, live-query subscribers and identity listeners.
package bus

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is one change notification. Board mutations travel on
// board.<id>.changed with Data["board_id"] set, per-user state on
// user.<id>.changed with Data["user_id"], sign-ins and sign-outs on
// identity.session.changed.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`   // e.g. card.moved, member.added, session.signed_in
	Source    string                 `json:"source"` // board-service or identity-service
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"` // ids of the entities the change touched
}

// NewEvent stamps an event with a fresh id and the current UTC time.
func NewEvent(eventType, source string, data map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// String returns Data[key] when it holds a string.
func (e *Event) String(key string) string {
	if e == nil || e.Data == nil {
		return ""
	}
	s, _ := e.Data[key].(string)
	return s
}

// EventHandler receives one event. A returned error is logged, never redelivered.
type EventHandler func(ctx context.Context, event *Event) error

// Subscription is released with Unsubscribe. Live board queries hold one per
// subscriber for as long as the subscriber watches the board.
type Subscription interface {
	Unsubscribe() error
	IsValid() bool
}

// EventBus carries change notifications between the board service, live
// queries, the activity log and identity listeners. Subjects may use NATS
// wildcards: "*" matches one token, ">" the rest.
type EventBus interface {
	// Publish fans event out to every matching subscriber.
	Publish(ctx context.Context, subject string, event *Event) error

	Subscribe(subject string, handler EventHandler) (Subscription, error)

	// QueueSubscribe delivers each event to one member of the queue group.
	QueueSubscribe(subject, queue string, handler EventHandler) (Subscription, error)

	// Request publishes event and waits up to timeout for the first reply.
	Request(ctx context.Context, subject string, event *Event, timeout time.Duration) (*Event, error)

	Close()

	// IsConnected reports whether publishes can currently reach subscribers.
	IsConnected() bool
}
