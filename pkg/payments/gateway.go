// Package payments wraps the payment processor behind a small gateway
// interface so the checkout pipeline never talks to the Square SDK directly.
package payments

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/charmforge/charmforge-backend/pkg/enums"
)

// PaymentInfo carries the tokenized payment source supplied by the storefront.
type PaymentInfo struct {
	SourceID       string `json:"source_id"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// ChargeRequest describes one charge against an order.
type ChargeRequest struct {
	OrderNumber string
	Amount      decimal.Decimal
	Currency    string
	Payment     PaymentInfo
}

// PaymentResult reports the processor's decision for a charge.
type PaymentResult struct {
	Status          enums.PaymentStatus
	PaymentIntentID string
}

// Gateway processes charges. Implementations must return a typed error with
// a retryable code only for transport-level failures; declines are final.
type Gateway interface {
	ProcessPayment(ctx context.Context, req ChargeRequest) (*PaymentResult, error)
}
