// Package fetcher resolves artifact references into binary payloads from
// the canonical store.
package fetcher

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/c360/inferrelay/errors"
	"github.com/c360/inferrelay/event"
	"github.com/c360/inferrelay/metric"
	"github.com/c360/inferrelay/pkg/retry"
	"github.com/c360/inferrelay/storage"
)

// Config holds retry tuning for artifact fetches
type Config struct {
	// MaxRetries is the number of additional attempts after the first
	MaxRetries int `json:"max_retries"`

	// BackoffBase is the initial delay between attempts; doubles per retry
	BackoffBase time.Duration `json:"backoff_base"`

	// MaxBackoff caps the delay between attempts
	MaxBackoff time.Duration `json:"max_backoff"`

	// Timeout bounds each individual fetch attempt
	Timeout time.Duration `json:"timeout"`
}

// DefaultConfig returns the default fetch configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries:  3,
		BackoffBase: 100 * time.Millisecond,
		MaxBackoff:  5 * time.Second,
		Timeout:     10 * time.Second,
	}
}

// retryConfig converts to the retry framework's attempt-based config
func (c Config) retryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  c.MaxRetries + 1,
		InitialDelay: c.BackoffBase,
		MaxDelay:     c.MaxBackoff,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Deps holds runtime dependencies for the fetcher
type Deps struct {
	Config  Config
	Store   storage.Store
	Metrics *metric.Metrics
	Logger  *slog.Logger
}

// Fetcher retrieves artifacts by reference with bounded retry. Not-found
// references are permanent: they fail immediately without consuming retries.
// Transient store errors are retried with exponential backoff; when retries
// run out the failure escalates to a permanent condition for the caller.
type Fetcher struct {
	config   Config
	retryCfg retry.Config
	store    storage.Store
	metrics  *metric.Metrics
	logger   *slog.Logger
}

// New creates a Fetcher from its dependencies
func New(deps Deps) *Fetcher {
	cfg := deps.Config
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultConfig().BackoffBase
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultConfig().MaxBackoff
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "fetcher")
	}

	return &Fetcher{
		config:   cfg,
		retryCfg: cfg.retryConfig(),
		store:    deps.Store,
		metrics:  deps.Metrics,
		logger:   logger,
	}
}

// Fetch resolves ref into an Artifact.
//
// Error contract:
//   - ErrArtifactNotFound when the reference is malformed or does not
//     resolve; permanent, never retried.
//   - ErrTransientFetch wrapped with ErrMaxRetriesExceeded when transient
//     store errors persist through every attempt.
func (f *Fetcher) Fetch(ctx context.Context, ref string) (event.Artifact, error) {
	if err := validateRef(ref); err != nil {
		if f.metrics != nil {
			f.metrics.StageFailures.WithLabelValues("fetch", "not_found").Inc()
		}
		return event.Artifact{}, err
	}

	artifact, err := retry.DoWithResult(ctx, f.retryCfg, func() (event.Artifact, error) {
		return f.fetchOnce(ctx, ref)
	})
	if err != nil {
		if stderrors.Is(err, errors.ErrArtifactNotFound) {
			if f.metrics != nil {
				f.metrics.StageFailures.WithLabelValues("fetch", "not_found").Inc()
			}
			return event.Artifact{}, err
		}

		// Transient failure that survived every attempt
		if f.metrics != nil {
			f.metrics.StageFailures.WithLabelValues("fetch", "retry_exhausted").Inc()
		}
		return event.Artifact{}, fmt.Errorf("%w: fetch %s: %w",
			errors.ErrMaxRetriesExceeded, ref, err)
	}

	return artifact, nil
}

// fetchOnce performs a single bounded fetch attempt
func (f *Fetcher) fetchOnce(ctx context.Context, ref string) (event.Artifact, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	data, err := f.store.Get(attemptCtx, ref)
	if err != nil {
		if stderrors.Is(err, storage.ErrKeyNotFound) {
			return event.Artifact{}, retry.NonRetryable(
				fmt.Errorf("%w: %s", errors.ErrArtifactNotFound, ref))
		}
		return event.Artifact{}, fmt.Errorf("%w: %s: %w", errors.ErrTransientFetch, ref, err)
	}

	return event.Artifact{Ref: ref, Data: data}, nil
}

// validateRef rejects references that can never resolve. Malformed
// references surface as ArtifactNotFound so the caller treats them as
// permanent without burning retry attempts.
func validateRef(ref string) error {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" || trimmed != ref {
		return fmt.Errorf("%w: malformed reference %q", errors.ErrArtifactNotFound, ref)
	}
	if strings.HasPrefix(ref, "/") || strings.Contains(ref, "..") {
		return fmt.Errorf("%w: malformed reference %q", errors.ErrArtifactNotFound, ref)
	}
	return nil
}
