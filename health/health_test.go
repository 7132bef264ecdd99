package health

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusConstructors(t *testing.T) {
	h := NewHealthy("source", "pulling")
	assert.True(t, h.IsHealthy())
	assert.True(t, h.Healthy)
	assert.False(t, h.Timestamp.IsZero())

	d := NewDegraded("channel", "reconnecting")
	assert.True(t, d.IsDegraded())
	assert.False(t, d.Healthy)

	u := NewUnhealthy("store", "bucket unreachable")
	assert.True(t, u.IsUnhealthy())
	assert.False(t, u.Healthy)
}

func TestAggregate(t *testing.T) {
	all := Aggregate("relay", []Status{
		NewHealthy("source", ""),
		NewHealthy("store", ""),
	})
	assert.True(t, all.IsHealthy())
	assert.Len(t, all.SubStatuses, 2)

	withDegraded := Aggregate("relay", []Status{
		NewHealthy("source", ""),
		NewDegraded("channel", "reconnecting"),
	})
	assert.True(t, withDegraded.IsDegraded())

	withUnhealthy := Aggregate("relay", []Status{
		NewDegraded("channel", ""),
		NewUnhealthy("store", ""),
	})
	assert.True(t, withUnhealthy.IsUnhealthy())
}

func TestMonitor(t *testing.T) {
	m := NewMonitor()
	assert.Zero(t, m.Count())

	m.UpdateHealthy("source", "pulling")
	m.UpdateUnhealthy("store", "bucket unreachable")

	status, ok := m.Get("source")
	require.True(t, ok)
	assert.True(t, status.IsHealthy())

	_, ok = m.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, 2, m.Count())
	assert.Len(t, m.GetAll(), 2)

	agg := m.AggregateHealth("relay")
	assert.True(t, agg.IsUnhealthy())

	// Recovery flips the aggregate back
	m.UpdateHealthy("store", "bucket reachable")
	assert.True(t, m.AggregateHealth("relay").IsHealthy())
}

func TestHandler(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("source", "pulling")

	handler := Handler(m, "relay")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, 200, rec.Code)

	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "relay", status.Component)
	assert.True(t, status.Healthy)

	m.UpdateUnhealthy("store", "bucket unreachable")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, 503, rec.Code)

	// Degraded still serves 200
	m.UpdateDegraded("store", "reconnecting")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, 200, rec.Code)
}
