package extraction

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func testPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   5 * time.Millisecond,
		MaxDelay:    50 * time.Millisecond,
	}
}

func TestRetry_Success(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testPolicy(), func() error {
		attempts++
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetry_SuccessAfterRetries(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testPolicy(), func() error {
		attempts++
		if attempts < 3 {
			return NewRetryableError(errors.New("temporary error"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_ExhaustionPropagatesLastError(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testPolicy(), func() error {
		attempts++
		return NewRetryableError(errors.New("persistent error"))
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts total, got %d", attempts)
	}
}

func TestRetry_NonRetryableErrorStopsImmediately(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testPolicy(), func() error {
		attempts++
		return errors.New("validation error")
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt for non-retryable error, got %d", attempts)
	}
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond}
	err := Retry(ctx, policy, func() error {
		return NewRetryableError(errors.New("keep trying"))
	})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code      int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusUnprocessableEntity, false},
	}

	for _, tt := range tests {
		err := ClassifyStatus(tt.code, "boom")
		if got := IsRetryable(err); got != tt.retryable {
			t.Errorf("status %d: IsRetryable = %v, want %v", tt.code, got, tt.retryable)
		}

		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Errorf("status %d: expected StatusError in chain", tt.code)
		} else if statusErr.Code != tt.code {
			t.Errorf("status %d: wrapped code %d", tt.code, statusErr.Code)
		}
	}
}
