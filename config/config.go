// Package config loads and validates the relay's configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/c360/inferrelay/fetcher"
	"github.com/c360/inferrelay/packager"
	"github.com/c360/inferrelay/predictor"
	"github.com/c360/inferrelay/relay"
	"github.com/c360/inferrelay/sink"
	"github.com/c360/inferrelay/source"
)

// Config represents the complete relay configuration. Loaded once at
// startup; the running relay never mutates it.
type Config struct {
	Service ServiceConfig    `json:"service"`
	NATS    NATSConfig       `json:"nats"`
	Source  source.Config    `json:"source"`
	Fetch   fetcher.Config   `json:"fetch"`
	Predict predictor.Config `json:"predict"`
	Package packager.Config  `json:"package"`
	Relay   relay.Config     `json:"relay"`
	Buckets BucketConfig     `json:"buckets"`
	Metrics MetricsConfig    `json:"metrics"`
	Sink    SinkConfig       `json:"sink"`
}

// ServiceConfig identifies this relay instance
type ServiceConfig struct {
	Name        string `json:"name"`
	Environment string `json:"environment,omitempty"` // "prod", "dev", "test"
}

// NATSConfig defines the message channel connection
type NATSConfig struct {
	URL           string        `json:"url"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	Timeout       time.Duration `json:"timeout,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
}

// BucketConfig names the ObjectStore buckets the relay reads and writes
type BucketConfig struct {
	Artifacts string `json:"artifacts"`
	Results   string `json:"results"`
}

// MetricsConfig defines the metrics endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port,omitempty"`
	Path    string `json:"path,omitempty"`
}

// SinkConfig defines where failure reports are published
type SinkConfig struct {
	Subject string `json:"subject,omitempty"`
}

// Validate checks the configuration for startup errors. Failures here are
// the only condition the relay exits non-zero on.
func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := c.Predict.Validate(); err != nil {
		return fmt.Errorf("predict: %w", err)
	}
	if c.Buckets.Artifacts == "" {
		return errors.New("buckets.artifacts is required")
	}
	if c.Buckets.Results == "" {
		return errors.New("buckets.results is required")
	}
	if c.Buckets.Artifacts == c.Buckets.Results {
		return errors.New("buckets.artifacts and buckets.results must differ")
	}
	if c.Fetch.MaxRetries < 0 {
		return errors.New("fetch.max_retries cannot be negative")
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port %d out of range", c.Metrics.Port)
	}
	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}

	return &clone
}

// Default returns the relay's default configuration
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "inferrelay",
			Environment: "dev",
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			Timeout:       5 * time.Second,
		},
		Source:  source.DefaultConfig(),
		Fetch:   fetcher.DefaultConfig(),
		Predict: predictor.DefaultConfig(),
		Package: packager.DefaultConfig(),
		Relay:   relay.DefaultConfig(),
		Buckets: BucketConfig{
			Artifacts: "ARTIFACTS",
			Results:   "RESULTS",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Sink: SinkConfig{
			Subject: sink.DefaultSubject,
		},
	}
}
