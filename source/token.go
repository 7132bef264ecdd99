package source

import (
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/inferrelay/event"
)

// ackToken adapts a JetStream message to the event.AckToken interface.
// Ack is idempotent and wins over any later Nak: once acknowledged, the
// delivery is settled and Nak becomes a no-op.
type ackToken struct {
	msg   jetstream.Msg
	acked atomic.Bool
}

func newAckToken(msg jetstream.Msg) *ackToken {
	return &ackToken{msg: msg}
}

// Ack acknowledges the delivery. Repeated calls return nil without
// re-acknowledging.
func (t *ackToken) Ack() error {
	if t.acked.Swap(true) {
		return nil
	}
	return t.msg.Ack()
}

// Nak declines the delivery so the channel redelivers it after delay
func (t *ackToken) Nak(delay time.Duration) error {
	if t.acked.Load() {
		return nil
	}
	if delay <= 0 {
		return t.msg.Nak()
	}
	return t.msg.NakWithDelay(delay)
}

// Deliveries reports the channel's delivery count for this message
func (t *ackToken) Deliveries() uint64 {
	meta, err := t.msg.Metadata()
	if err != nil || meta == nil {
		return 1
	}
	return meta.NumDelivered
}

var _ event.AckToken = (*ackToken)(nil)
