// Package sink delivers failure reports to observability destinations.
package sink

import (
	"context"
	"time"
)

// Report describes one event that reached the FAILED state. It carries the
// full context an operator needs: which artifact, which pipeline stage, and
// what went wrong.
type Report struct {
	EventID    string    `json:"event_id"`
	Ref        string    `json:"ref"`
	Stage      string    `json:"stage"`
	Error      string    `json:"error"`
	Kind       string    `json:"kind"`
	Deliveries uint64    `json:"deliveries"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Sink receives failure reports. Implementations must be safe for
// concurrent use.
type Sink interface {
	Report(ctx context.Context, r Report) error
}
