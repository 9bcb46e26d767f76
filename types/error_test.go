package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := NewError(ErrSessionNotFound, "session missing")
	if got := err.Error(); got != "[SESSION_NOT_FOUND] session missing" {
		t.Errorf("unexpected message: %s", got)
	}

	cause := errors.New("redis: connection refused")
	err = NewError(ErrExecutorFatal, "checkpoint write failed").WithCause(cause)
	if got := err.Error(); got != "[EXECUTOR_FATAL] checkpoint write failed: redis: connection refused" {
		t.Errorf("unexpected message: %s", got)
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to match the wrapped cause")
	}
}

func TestTransientPermanent(t *testing.T) {
	tr := Transient("model overloaded", nil)
	if !IsRetryable(tr) {
		t.Error("transient error should be retryable")
	}
	if GetErrorCode(tr) != ErrCollaboratorTransient {
		t.Errorf("unexpected code: %s", GetErrorCode(tr))
	}

	pe := Permanent("malformed response", errors.New("unexpected end of JSON input"))
	if IsRetryable(pe) {
		t.Error("permanent error should not be retryable")
	}
	if !HasCode(pe, ErrCollaboratorPermanent) {
		t.Errorf("unexpected code: %s", GetErrorCode(pe))
	}
}

func TestGetErrorCodeUnwraps(t *testing.T) {
	inner := NewError(ErrRateLimitExceeded, "too many requests")
	wrapped := fmt.Errorf("gate: %w", inner)
	if GetErrorCode(wrapped) != ErrRateLimitExceeded {
		t.Errorf("expected code to survive wrapping, got %q", GetErrorCode(wrapped))
	}
	if GetErrorCode(errors.New("plain")) != "" {
		t.Error("plain errors should yield an empty code")
	}
}
