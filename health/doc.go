// Package health provides thread-safe health tracking and aggregation for
// the relay's components.
//
// Each component (message channel, source, controller, store) reports its
// own status; the Monitor aggregates them into a single relay status using
// hierarchical rules: any unhealthy component makes the relay unhealthy,
// any degraded component with none unhealthy makes it degraded. The Handler
// serves the aggregated status over HTTP alongside the metrics endpoint.
package health
