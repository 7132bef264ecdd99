// Package health tracks and aggregates component health for the relay
package health

import "time"

// Status represents the health state of a component or the whole relay
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"` // "healthy", "degraded", "unhealthy"
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
}

// IsHealthy returns true if the status is healthy
func (s Status) IsHealthy() bool {
	return s.Status == "healthy"
}

// IsDegraded returns true if the status is degraded
func (s Status) IsDegraded() bool {
	return s.Status == "degraded"
}

// IsUnhealthy returns true if the status is unhealthy
func (s Status) IsUnhealthy() bool {
	return s.Status == "unhealthy"
}

// NewHealthy creates a new healthy status
func NewHealthy(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   true,
		Status:    "healthy",
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewDegraded creates a new degraded status
func NewDegraded(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   false,
		Status:    "degraded",
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewUnhealthy creates a new unhealthy status
func NewUnhealthy(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   false,
		Status:    "unhealthy",
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Aggregate combines component statuses into one system status. Any
// unhealthy component makes the system unhealthy; any degraded component
// with none unhealthy makes it degraded.
func Aggregate(systemName string, statuses []Status) Status {
	aggregated := NewHealthy(systemName, "All components healthy")
	aggregated.SubStatuses = statuses

	degraded := 0
	unhealthy := 0
	for _, s := range statuses {
		switch {
		case s.IsUnhealthy():
			unhealthy++
		case s.IsDegraded():
			degraded++
		}
	}

	switch {
	case unhealthy > 0:
		aggregated.Healthy = false
		aggregated.Status = "unhealthy"
		aggregated.Message = "One or more components unhealthy"
	case degraded > 0:
		aggregated.Healthy = false
		aggregated.Status = "degraded"
		aggregated.Message = "One or more components degraded"
	}

	return aggregated
}
