package event

import (
	"time"

	"github.com/google/uuid"
)

// AckToken is the delivery token attached to an Event. Implementations must
// make Ack idempotent: acknowledging twice has no additional effect.
type AckToken interface {
	// Ack removes the delivery from the redelivery queue.
	Ack() error

	// Nak leaves the delivery unacknowledged and asks the channel to
	// redeliver after delay. A zero delay uses the channel's default.
	Nak(delay time.Duration) error

	// Deliveries reports how many times this event has been delivered,
	// including the current attempt.
	Deliveries() uint64
}

// Event identifies one newly stored artifact. It is created by the message
// channel on ingestion and consumed exactly once logically (at-least-once
// physically) by the relay controller.
type Event struct {
	// ID identifies this delivery, not the artifact: a redelivered event
	// gets a fresh ID.
	ID string

	// Ref is the artifact's reference in the canonical store.
	Ref string

	// ReceivedAt is when this delivery arrived at the relay.
	ReceivedAt time.Time

	token AckToken
}

// New creates an Event for the given artifact reference and delivery token
func New(ref string, token AckToken) Event {
	return Event{
		ID:         uuid.NewString(),
		Ref:        ref,
		ReceivedAt: time.Now(),
		token:      token,
	}
}

// Ack acknowledges the delivery. Idempotent.
func (e Event) Ack() error {
	if e.token == nil {
		return nil
	}
	return e.token.Ack()
}

// Nak declines the delivery, permitting redelivery after delay
func (e Event) Nak(delay time.Duration) error {
	if e.token == nil {
		return nil
	}
	return e.token.Nak(delay)
}

// Deliveries reports the delivery attempt count, or 1 when unknown
func (e Event) Deliveries() uint64 {
	if e.token == nil {
		return 1
	}
	return e.token.Deliveries()
}

// Redelivered reports whether this event has been seen before
func (e Event) Redelivered() bool {
	return e.Deliveries() > 1
}
