package errors

import (
	"context"
	stdErrors "errors"
	"strings"
)

// Message fragments that mark a failure as permanent when the error does not
// carry a typed code. Collaborator gateways (inventory, payments, remote cart
// store) surface plain errors, so classification falls back to the text.
var nonRetryableFragments = []string{
	"invalid",
	"unauthorized",
	"forbidden",
	"not found",
	"insufficient stock",
	"capacity",
	"exceeds",
	"required",
	"mismatch",
	"already exists",
}

// IsRetryable reports whether a retry of the failed operation could succeed.
// Typed errors answer from their code metadata; untyped errors are matched
// against known permanent-failure fragments and default to retryable, since
// an unrecognized failure is most likely network- or timeout-shaped.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if stdErrors.Is(err, context.Canceled) {
		return false
	}
	if typed := As(err); typed != nil {
		return MetadataFor(typed.Code()).Retryable
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range nonRetryableFragments {
		if strings.Contains(msg, fragment) {
			return false
		}
	}
	return true
}
