package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_Validates(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "inferrelay", cfg.Service.Name)
	assert.Equal(t, "ARTIFACTS", cfg.Buckets.Artifacts)
	assert.Equal(t, "RESULTS", cfg.Buckets.Results)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.NATS.URL = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Buckets.Results = cfg.Buckets.Artifacts
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Predict.URL = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Fetch.MaxRetries = -1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Metrics.Port = 70000
	assert.Error(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `{
		"nats": {"url": "nats://broker:4222", "reconnect_wait": "10s"},
		"predict": {"url": "http://scoring:8501/predict", "model_ref": "classifier-v3", "timeout": "45s"},
		"fetch": {"max_retries": 5},
		"buckets": {"artifacts": "DICOM", "results": "INFERENCES"}
	}`)

	cfg, err := NewLoader().LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)
	assert.Equal(t, 10*time.Second, cfg.NATS.ReconnectWait)
	assert.Equal(t, "http://scoring:8501/predict", cfg.Predict.URL)
	assert.Equal(t, "classifier-v3", cfg.Predict.ModelRef)
	assert.Equal(t, 45*time.Second, cfg.Predict.Timeout)
	assert.Equal(t, 5, cfg.Fetch.MaxRetries)
	assert.Equal(t, "DICOM", cfg.Buckets.Artifacts)

	// Untouched fields keep defaults
	assert.Equal(t, "inferrelay", cfg.Service.Name)
	assert.Equal(t, 8, cfg.Relay.Workers)
}

func TestLoad_Layers(t *testing.T) {
	base := writeConfig(t, `{"nats": {"url": "nats://base:4222"}, "service": {"name": "relay-base"}}`)
	override := writeConfig(t, `{"nats": {"url": "nats://override:4222"}}`)

	loader := NewLoader()
	loader.AddLayer(base)
	loader.AddLayer(override)

	cfg, err := loader.Load()
	require.NoError(t, err)

	// Later layer wins, unrelated fields merge through
	assert.Equal(t, "nats://override:4222", cfg.NATS.URL)
	assert.Equal(t, "relay-base", cfg.Service.Name)
}

func TestLoad_InvalidConfigFails(t *testing.T) {
	path := writeConfig(t, `{"nats": {"url": ""}}`)

	_, err := NewLoader().LoadFile(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader().LoadFile("/does/not/exist.json")
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("INFERRELAY_NATS_URL", "nats://env:4222")
	t.Setenv("INFERRELAY_PREDICT_URL", "http://env:8501/predict")
	t.Setenv("INFERRELAY_BUCKET_RESULTS", "ENV_RESULTS")
	t.Setenv("INFERRELAY_METRICS_PORT", "9999")
	t.Setenv("INFERRELAY_METRICS_ENABLED", "false")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "nats://env:4222", cfg.NATS.URL)
	assert.Equal(t, "http://env:8501/predict", cfg.Predict.URL)
	assert.Equal(t, "ENV_RESULTS", cfg.Buckets.Results)
	assert.Equal(t, 9999, cfg.Metrics.Port)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestClone(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()

	clone.NATS.URL = "nats://elsewhere:4222"
	clone.Predict.Headers = map[string]string{"X-Auth": "token"}

	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Empty(t, cfg.Predict.Headers["X-Auth"])
}

func TestParseDurations_NestedAndUnknownKeys(t *testing.T) {
	data := map[string]any{
		"nats": map[string]any{
			"reconnect_wait": "2s",
			"url":            "nats://localhost:4222",
		},
		"relay": map[string]any{
			"nak_delay": "500ms",
		},
		"label": "30s",
	}

	parseDurations(data)

	nats := data["nats"].(map[string]any)
	assert.Equal(t, (2 * time.Second).Nanoseconds(), nats["reconnect_wait"])
	assert.Equal(t, "nats://localhost:4222", nats["url"])

	relay := data["relay"].(map[string]any)
	assert.Equal(t, (500 * time.Millisecond).Nanoseconds(), relay["nak_delay"])

	// Keys not known to hold durations stay untouched
	assert.Equal(t, "30s", data["label"])
}
