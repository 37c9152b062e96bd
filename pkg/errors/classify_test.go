package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestIsRetryableTypedCodes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code Code
		want bool
	}{
		{CodeValidation, false},
		{CodeCapacity, false},
		{CodeNotFound, false},
		{CodeReservation, false},
		{CodePayment, false},
		{CodeTransient, true},
		{CodeDependency, true},
		{CodeInternal, true},
	}
	for _, tc := range cases {
		if got := IsRetryable(New(tc.code, "x")); got != tc.want {
			t.Fatalf("code %s: retryable = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestIsRetryableMessagePatterns(t *testing.T) {
	t.Parallel()

	nonRetryable := []string{
		"invalid quantity",
		"request unauthorized",
		"cart not found",
		"insufficient stock for charm-bead",
		"quantity exceeds limit",
	}
	for _, msg := range nonRetryable {
		if IsRetryable(stdErrors.New(msg)) {
			t.Fatalf("%q should be non-retryable", msg)
		}
	}

	retryable := []string{
		"connection refused",
		"i/o timeout",
		"upstream returned 503",
	}
	for _, msg := range retryable {
		if !IsRetryable(stdErrors.New(msg)) {
			t.Fatalf("%q should be retryable", msg)
		}
	}
}

func TestIsRetryableContextAndNil(t *testing.T) {
	t.Parallel()

	if IsRetryable(nil) {
		t.Fatal("nil error is not retryable")
	}
	if IsRetryable(fmt.Errorf("op: %w", context.Canceled)) {
		t.Fatal("cancellation must not be retried")
	}
}
