package relay

// State tracks an in-flight event through the pipeline. The happy path is
// RECEIVED through ACKNOWLEDGED in order; FAILED is reachable from any
// non-terminal state on a permanent error.
type State int

// Pipeline states
const (
	StateReceived State = iota
	StateFetching
	StatePredicting
	StatePackaging
	StateStoring
	StateAcknowledged
	StateFailed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateFetching:
		return "fetching"
	case StatePredicting:
		return "predicting"
	case StatePackaging:
		return "packaging"
	case StateStoring:
		return "storing"
	case StateAcknowledged:
		return "acknowledged"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends an event's processing
func (s State) Terminal() bool {
	return s == StateAcknowledged || s == StateFailed
}
