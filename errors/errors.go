// Package errors provides standardized error handling for relay components.
// It includes error classification, the relay's error taxonomy, and helper
// functions for consistent error wrapping across the pipeline stages.
package errors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/c360/inferrelay/pkg/retry"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Relay error taxonomy. Each pipeline stage surfaces one of these sentinels
// (possibly wrapped) so the controller can decide between retry, redelivery,
// and terminal failure.
var (
	// ErrTransientUnavailable indicates the message channel is unreachable.
	// The source adapter retries with backoff; the condition is never terminal.
	ErrTransientUnavailable = errors.New("message channel unavailable")

	// ErrArtifactNotFound indicates the artifact reference does not resolve.
	// Permanent: the controller moves the event to FAILED without retrying.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrTransientFetch indicates a retryable network condition during fetch.
	ErrTransientFetch = errors.New("transient fetch error")

	// ErrPredictionTimeout indicates no response from the scoring endpoint
	// within the configured timeout. Retryable up to a small bound.
	ErrPredictionTimeout = errors.New("prediction timeout")

	// ErrPredictionService indicates the scoring endpoint rejected the input.
	// Non-retryable.
	ErrPredictionService = errors.New("prediction service rejected request")

	// ErrStoreRejected indicates the canonical store declined the result
	// write. Surfaced, not retried.
	ErrStoreRejected = errors.New("result store rejected write")

	// Component lifecycle errors
	ErrAlreadyStarted = errors.New("component already started")
	ErrNotStarted     = errors.New("component not started")
	ErrShuttingDown   = errors.New("component is shutting down")

	// Connection errors
	ErrNoConnection      = errors.New("no connection available")
	ErrConnectionTimeout = errors.New("connection timeout")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")

	// Retry errors
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

// ClassifiedError wraps an error with its classification and the component
// context in which it occurred.
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient checks if an error is transient and should be retried
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	return errors.Is(err, ErrTransientUnavailable) ||
		errors.Is(err, ErrTransientFetch) ||
		errors.Is(err, ErrPredictionTimeout) ||
		errors.Is(err, ErrConnectionTimeout) ||
		errors.Is(err, ErrNoConnection) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsPermanent reports whether an error terminates the current delivery
// attempt. Permanent errors move the event to FAILED; the channel redelivers
// it later under at-least-once semantics.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, ErrArtifactNotFound) ||
		errors.Is(err, ErrPredictionService) ||
		errors.Is(err, ErrStoreRejected) ||
		errors.Is(err, ErrMaxRetriesExceeded) ||
		IsInvalid(err) ||
		IsFatal(err)
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingConfig)
}

// IsInvalid checks if an error is due to invalid input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return false
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}

	if IsTransient(err) {
		return ErrorTransient
	}
	if IsFatal(err) {
		return ErrorFatal
	}
	if IsInvalid(err) {
		return ErrorInvalid
	}

	// Default to transient for unknown errors to allow retry
	return ErrorTransient
}

// newClassified creates a new classified error
// This is an internal helper - use WrapTransient(), WrapFatal(), or WrapInvalid() instead.
func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

// ServiceError carries the code and message returned by the scoring endpoint
// when it rejects a request. It wraps ErrPredictionService so callers can use
// errors.Is for classification and errors.As for the detail.
type ServiceError struct {
	Code    int
	Message string
}

// Error implements the error interface
func (se *ServiceError) Error() string {
	return fmt.Sprintf("%v: code=%d %s", ErrPredictionService, se.Code, se.Message)
}

// Unwrap returns ErrPredictionService for errors.Is checks
func (se *ServiceError) Unwrap() error {
	return ErrPredictionService
}

// RetryConfig defines configuration for retry operations
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns a sensible default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// ToRetryConfig converts the errors package RetryConfig to the retry
// framework's Config type. The conversion adds 1 to MaxRetries (converting
// "additional attempts" to "total attempts") and enables jitter.
func (rc RetryConfig) ToRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  rc.MaxRetries + 1,
		InitialDelay: rc.InitialDelay,
		MaxDelay:     rc.MaxDelay,
		Multiplier:   rc.BackoffFactor,
		AddJitter:    true,
	}
}
