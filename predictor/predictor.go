// Package predictor is the HTTP client for the scoring endpoint.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/c360/inferrelay/errors"
	"github.com/c360/inferrelay/event"
	"github.com/c360/inferrelay/metric"
	"github.com/c360/inferrelay/pkg/retry"
)

// Config holds configuration for the prediction client
type Config struct {
	// URL is the scoring endpoint
	URL string `json:"url"`

	// ModelRef identifies the model the endpoint should apply
	ModelRef string `json:"model_ref"`

	// Timeout bounds each scoring request. Scoring services queue under
	// load, so this must exceed typical queueing delay.
	Timeout time.Duration `json:"timeout"`

	// MaxTimeoutRetries is how many times a timed-out request is retried
	// before the failure becomes permanent
	MaxTimeoutRetries int `json:"max_timeout_retries"`

	// Headers are added to every request
	Headers map[string]string `json:"headers"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "url is required")
	}
	if _, err := url.Parse(c.URL); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "invalid URL format")
	}
	if c.ModelRef == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "model_ref is required")
	}
	if c.MaxTimeoutRetries < 0 || c.MaxTimeoutRetries > 10 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"max_timeout_retries must be between 0 and 10")
	}
	return nil
}

// DefaultConfig returns default configuration for the prediction client
func DefaultConfig() Config {
	return Config{
		URL:               "http://localhost:8501/predict",
		ModelRef:          "default",
		Timeout:           30 * time.Second,
		MaxTimeoutRetries: 2,
		Headers:           make(map[string]string),
	}
}

// response is the scoring endpoint's reply body
type response struct {
	Label        string             `json:"label"`
	Scores       map[string]float64 `json:"scores,omitempty"`
	Confidence   float64            `json:"confidence"`
	ModelVersion string             `json:"model_version"`
}

// errorResponse is the endpoint's reply body on rejection
type errorResponse struct {
	Error string `json:"error"`
}

// Deps holds runtime dependencies for the prediction client
type Deps struct {
	Config  Config
	Metrics *metric.Metrics
	Logger  *slog.Logger
}

// Client performs synchronous scoring calls against the prediction endpoint.
//
// Error contract:
//   - ServiceError (wrapping ErrPredictionService) when the endpoint rejects
//     the input; permanent, never retried.
//   - ErrPredictionTimeout wrapped with ErrMaxRetriesExceeded when every
//     attempt times out.
type Client struct {
	config     Config
	retryCfg   retry.Config
	httpClient *http.Client
	metrics    *metric.Metrics
	logger     *slog.Logger
}

// New creates a prediction client. The configuration must validate.
func New(deps Deps) (*Client, error) {
	cfg := deps.Config
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "predictor")
	}

	return &Client{
		config: cfg,
		retryCfg: retry.Config{
			MaxAttempts:  cfg.MaxTimeoutRetries + 1,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2.0,
			AddJitter:    true,
		},
		httpClient: &http.Client{Timeout: cfg.Timeout},
		metrics:    deps.Metrics,
		logger:     logger,
	}, nil
}

// Predict scores the artifact and returns the structured result
func (c *Client) Predict(ctx context.Context, artifact event.Artifact) (event.PredictionResult, error) {
	result, err := retry.DoWithResult(ctx, c.retryCfg, func() (event.PredictionResult, error) {
		return c.predictOnce(ctx, artifact)
	})
	if err != nil {
		if stderrors.Is(err, errors.ErrPredictionService) || errors.IsInvalid(err) {
			if c.metrics != nil {
				c.metrics.StageFailures.WithLabelValues("predict", "rejected").Inc()
			}
			return event.PredictionResult{}, err
		}

		kind := "retry_exhausted"
		if stderrors.Is(err, errors.ErrPredictionTimeout) {
			kind = "timeout"
		}
		if c.metrics != nil {
			c.metrics.StageFailures.WithLabelValues("predict", kind).Inc()
		}
		return event.PredictionResult{}, fmt.Errorf("%w: predict %s: %w",
			errors.ErrMaxRetriesExceeded, artifact.Ref, err)
	}

	return result, nil
}

// Ready reports whether the scoring endpoint is reachable. Any HTTP
// response counts as reachable; only transport failures do not.
func (c *Client) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.config.URL, nil)
	if err != nil {
		return errors.WrapInvalid(err, "Client", "Ready", "build request")
	}
	for key, value := range c.config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.WrapTransient(err, "Client", "Ready", "reach endpoint")
	}
	_ = resp.Body.Close()
	return nil
}

// predictOnce performs a single scoring request
func (c *Client) predictOnce(ctx context.Context, artifact event.Artifact) (event.PredictionResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL,
		bytes.NewReader(artifact.Data))
	if err != nil {
		return event.PredictionResult{}, retry.NonRetryable(
			errors.WrapInvalid(err, "Client", "Predict", "build request"))
	}

	contentType := artifact.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Artifact-Ref", artifact.Ref)
	req.Header.Set("X-Model-Ref", c.config.ModelRef)
	for key, value := range c.config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return event.PredictionResult{}, fmt.Errorf("%w: %s after %v",
				errors.ErrPredictionTimeout, artifact.Ref, c.config.Timeout)
		}
		return event.PredictionResult{}, errors.WrapTransient(err, "Client", "Predict", "send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return event.PredictionResult{}, errors.WrapTransient(err, "Client", "Predict", "read response")
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return c.decodeResult(artifact.Ref, body)

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// The endpoint rejected the input. Retrying the same payload
		// cannot change the answer.
		return event.PredictionResult{}, retry.NonRetryable(&errors.ServiceError{
			Code:    resp.StatusCode,
			Message: serviceMessage(body, resp.Status),
		})

	default:
		return event.PredictionResult{}, errors.WrapTransient(
			fmt.Errorf("HTTP %d", resp.StatusCode),
			"Client", "Predict", "score artifact")
	}
}

// decodeResult parses a successful scoring reply
func (c *Client) decodeResult(ref string, body []byte) (event.PredictionResult, error) {
	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return event.PredictionResult{}, retry.NonRetryable(
			errors.WrapInvalid(err, "Client", "Predict", "decode response"))
	}

	result := event.PredictionResult{
		ArtifactRef:  ref,
		Label:        r.Label,
		Scores:       r.Scores,
		Confidence:   r.Confidence,
		ModelVersion: r.ModelVersion,
	}
	if result.ModelVersion == "" {
		result.ModelVersion = c.config.ModelRef
	}
	if err := result.Validate(); err != nil {
		return event.PredictionResult{}, retry.NonRetryable(
			errors.WrapInvalid(err, "Client", "Predict", "validate result"))
	}

	return result, nil
}

// serviceMessage extracts the endpoint's error message, falling back to the
// HTTP status line
func serviceMessage(body []byte, status string) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		return er.Error
	}
	return status
}

// isTimeout reports whether err is a request timeout
func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ue *url.Error
	if stderrors.As(err, &ue) {
		return ue.Timeout()
	}
	return false
}
