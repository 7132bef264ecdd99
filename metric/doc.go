// Package metric provides prometheus metrics for the relay.
//
// MetricsRegistry owns a dedicated prometheus registry holding the relay's
// core pipeline metrics (events received/processed, per-stage durations and
// failures, channel connectivity) plus any component metrics registered at
// runtime, such as the worker pool's queue instrumentation. Server exposes
// the registry over HTTP and doubles as the mount point for the health
// endpoint.
package metric
