package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// maxConfigSize bounds config files to reject accidental large inputs
const maxConfigSize = 1 << 20

// durationKeys are config keys whose JSON values may be duration strings
// like "30s"; they are converted to nanoseconds before unmarshaling
var durationKeys = map[string]bool{
	"reconnect_wait": true,
	"timeout":        true,
	"fetch_timeout":  true,
	"ack_wait":       true,
	"backoff_base":   true,
	"max_backoff":    true,
	"event_timeout":  true,
	"nak_delay":      true,
	"nak_max_delay":  true,
}

// Loader loads configuration from layered JSON files with environment
// variable overrides. Later layers override earlier ones; environment
// variables override everything.
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: true,
		envPrefix:  "INFERRELAY",
	}
}

// AddLayer adds a configuration file layer
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		rawConfig, err := l.loadRawJSON(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		cfg = l.mergeFromMap(cfg, rawConfig)
	}

	l.applyEnvOverrides(cfg)

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadRawJSON loads a configuration file as a map
func (l *Loader) loadRawJSON(path string) (map[string]any, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return nil, err
	}

	parseDurations(rawConfig)

	return rawConfig, nil
}

// mergeFromMap merges a raw map over the base config, only overriding
// fields present in the map
func (l *Loader) mergeFromMap(base *Config, override map[string]any) *Config {
	if override == nil {
		return base
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return base
	}

	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return base
	}

	mergedMap := deepMergeMaps(baseMap, override)

	mergedJSON, err := json.Marshal(mergedMap)
	if err != nil {
		return base
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return base
	}

	return &merged
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any)

	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}

		if baseMap, baseOk := base[k].(map[string]any); baseOk {
			if overrideMap, overrideOk := v.(map[string]any); overrideOk {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		result[k] = v
	}

	return result
}

// parseDurations converts duration strings ("30s") to nanoseconds in place
// for keys known to hold durations, recursing into nested objects
func parseDurations(data map[string]any) {
	for key, value := range data {
		switch v := value.(type) {
		case map[string]any:
			parseDurations(v)
		case string:
			if durationKeys[key] {
				if d, err := time.ParseDuration(v); err == nil {
					data[key] = d.Nanoseconds()
				}
			}
		}
	}
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(l.envPrefix + "_SERVICE_NAME"); val != "" {
		cfg.Service.Name = val
	}
	if val := os.Getenv(l.envPrefix + "_ENVIRONMENT"); val != "" {
		cfg.Service.Environment = val
	}

	// NATS overrides
	if val := os.Getenv(l.envPrefix + "_NATS_URL"); val != "" {
		cfg.NATS.URL = val
	}
	if val := os.Getenv(l.envPrefix + "_NATS_USERNAME"); val != "" {
		cfg.NATS.Username = val
	}
	if val := os.Getenv(l.envPrefix + "_NATS_PASSWORD"); val != "" {
		cfg.NATS.Password = val
	}
	if val := os.Getenv(l.envPrefix + "_NATS_TOKEN"); val != "" {
		cfg.NATS.Token = val
	}

	// Source overrides
	if val := os.Getenv(l.envPrefix + "_SOURCE_STREAM"); val != "" {
		cfg.Source.Stream = val
	}
	if val := os.Getenv(l.envPrefix + "_SOURCE_SUBJECT"); val != "" {
		cfg.Source.Subject = val
	}
	if val := os.Getenv(l.envPrefix + "_SOURCE_DURABLE"); val != "" {
		cfg.Source.Durable = val
	}

	// Scoring endpoint overrides
	if val := os.Getenv(l.envPrefix + "_PREDICT_URL"); val != "" {
		cfg.Predict.URL = val
	}
	if val := os.Getenv(l.envPrefix + "_PREDICT_MODEL"); val != "" {
		cfg.Predict.ModelRef = val
	}

	// Bucket overrides
	if val := os.Getenv(l.envPrefix + "_BUCKET_ARTIFACTS"); val != "" {
		cfg.Buckets.Artifacts = val
	}
	if val := os.Getenv(l.envPrefix + "_BUCKET_RESULTS"); val != "" {
		cfg.Buckets.Results = val
	}

	// Metrics overrides
	if val := os.Getenv(l.envPrefix + "_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Metrics.Port = port
		}
	}
	if val := os.Getenv(l.envPrefix + "_METRICS_ENABLED"); val != "" {
		cfg.Metrics.Enabled = strings.EqualFold(val, "true") || val == "1"
	}

	// Sink overrides
	if val := os.Getenv(l.envPrefix + "_SINK_SUBJECT"); val != "" {
		cfg.Sink.Subject = val
	}
}
