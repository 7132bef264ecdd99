package health

import (
	"encoding/json"
	"net/http"
)

// Handler serves the aggregated health status as JSON. Healthy and degraded
// return 200 so a briefly lagging component does not restart the relay;
// unhealthy returns 503.
func Handler(monitor *Monitor, systemName string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := monitor.AggregateHealth(systemName)

		w.Header().Set("Content-Type", "application/json")
		if status.IsUnhealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})
}
