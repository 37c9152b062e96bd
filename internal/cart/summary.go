package cart

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/charmforge/charmforge-backend/pkg/config"
)

// PricingPolicy carries the rates used to derive a cart summary.
type PricingPolicy struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	StandardShippingFee   decimal.Decimal
}

// PricingPolicyFromConfig parses the configured pricing knobs.
func PricingPolicyFromConfig(cfg config.PricingConfig) (PricingPolicy, error) {
	taxRate, threshold, fee, err := cfg.Rates()
	if err != nil {
		return PricingPolicy{}, fmt.Errorf("loading pricing policy: %w", err)
	}
	return PricingPolicy{
		TaxRate:               taxRate,
		FreeShippingThreshold: threshold,
		StandardShippingFee:   fee,
	}, nil
}

// ComputeSummary derives the summary as a pure function of the item list.
// Tax rounds to cents; shipping is free at or above the threshold. Discount
// stays zero until a discount engine exists.
func ComputeSummary(items []CartItem, pricing PricingPolicy) CartSummary {
	subtotal := decimal.Zero
	itemCount := 0
	for _, item := range items {
		subtotal = subtotal.Add(item.TotalPrice)
		itemCount += item.Quantity
	}

	tax := subtotal.Mul(pricing.TaxRate).Round(2)

	shipping := decimal.Zero
	if len(items) > 0 && subtotal.LessThan(pricing.FreeShippingThreshold) {
		shipping = pricing.StandardShippingFee
	}

	discount := decimal.Zero
	total := subtotal.Add(tax).Add(shipping).Sub(discount)

	return CartSummary{
		Subtotal:  subtotal,
		Tax:       tax,
		Shipping:  shipping,
		Discount:  discount,
		Total:     total,
		ItemCount: itemCount,
	}
}
