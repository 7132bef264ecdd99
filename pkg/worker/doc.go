// Package worker provides a generic bounded worker pool.
//
// The pool processes items of any type T with a fixed number of goroutines
// pulling from a bounded queue. Submit is non-blocking: when the queue is
// full the item is dropped and ErrQueueFull returned, leaving backpressure
// decisions to the caller. Lifecycle follows the Initialize/Start/Stop
// pattern used across the relay; Stop drains in-flight work within a
// timeout.
//
// When constructed with WithMetricsRegistry the pool reports queue depth,
// throughput, failure counts, and per-item processing duration to the
// relay's prometheus registry.
package worker
