package apperrors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestWrap_MatchesKindAndCause(t *testing.T) {
	err := Wrap(ErrTimeout, "classify", context.DeadlineExceeded)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected cause to be reachable")
	}
	if KindOf(err) != ErrTimeout {
		t.Fatalf("unexpected kind %v", KindOf(err))
	}
}

func TestWrap_NilIsNil(t *testing.T) {
	if Wrap(ErrNotFound, "get", nil) != nil {
		t.Fatalf("expected nil")
	}
}

func TestKindOf_SurvivesFmtWrapping(t *testing.T) {
	inner := New(ErrNotFound, "calls.get", "call %s", "abc")
	outer := fmt.Errorf("route: %w", inner)
	if KindOf(outer) != ErrNotFound {
		t.Fatalf("expected not found, got %v", KindOf(outer))
	}
	if !IsNotFound(outer) {
		t.Fatalf("expected IsNotFound")
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{New(ErrTranscription, "t", "boom"), true},
		{New(ErrClassification, "c", "boom"), true},
		{New(ErrTimeout, "c", "slow"), true},
		{New(ErrMalformedResult, "c", "junk"), false},
		{New(ErrValidation, "v", "bad"), false},
		{New(ErrInvalidTransition, "v", "terminal"), false},
		{errors.New("plain"), false},
	}
	for _, tc := range cases {
		if got := Retryable(tc.err); got != tc.want {
			t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestError_Message(t *testing.T) {
	err := New(ErrValidation, "calls.create", "caller_number is required")
	if got := err.Error(); got != "calls.create: validation failed: caller_number is required" {
		t.Fatalf("unexpected message %q", got)
	}
}
