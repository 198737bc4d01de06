package extraction

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"
)

// RetryPolicy defines how calls to external services are retried.
type RetryPolicy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // doubled after each failed attempt
	MaxDelay    time.Duration
	Jitter      bool
}

// DefaultRetryPolicy returns the standard policy for external service calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Jitter:      true,
	}
}

// RetryableError wraps an error to indicate the call may be retried.
type RetryableError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%v (retry after %v)", e.Err, e.RetryAfter)
	}
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError marks an error as retryable.
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

// IsRetryable checks whether an error should trigger a retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable *RetryableError
	return errors.As(err, &retryable)
}

// StatusError carries an HTTP status from an external service.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("service returned %d: %s", e.Code, e.Message)
}

// ClassifyStatus wraps a service error according to its HTTP status:
// rate limits and 5xx responses are retryable, other 4xx are not.
func ClassifyStatus(code int, message string) error {
	err := &StatusError{Code: code, Message: message}
	if code == http.StatusTooManyRequests || code >= 500 {
		return NewRetryableError(err)
	}
	return err
}

// Retry executes fn with bounded exponential backoff. Non-retryable errors
// and exhaustion both propagate the last error; nothing is swallowed.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !IsRetryable(err) {
			return err
		}

		if attempt == policy.MaxAttempts-1 {
			break
		}

		backoff := backoffFor(policy, attempt)

		var retryErr *RetryableError
		if errors.As(err, &retryErr) && retryErr.RetryAfter > 0 {
			backoff = retryErr.RetryAfter
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("max attempts exceeded (%d): %w", policy.MaxAttempts, lastErr)
}

func backoffFor(policy RetryPolicy, attempt int) time.Duration {
	backoff := policy.BaseDelay << uint(attempt)
	if policy.MaxDelay > 0 && backoff > policy.MaxDelay {
		backoff = policy.MaxDelay
	}

	if policy.Jitter {
		backoff += time.Duration(rand.Int63n(int64(backoff)/10 + 1))
	}

	return backoff
}
