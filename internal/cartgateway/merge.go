package cartgateway

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/charmforge/charmforge-backend/internal/cart"
)

// MergeCartData folds a guest cart into a user cart. User lines come first;
// guest quantities are summed into equivalent non-custom user lines and every
// other guest line is appended as-is. Custom designs never merge, each one is
// a distinct identity. Totals are recomputed wholesale afterward.
func MergeCartData(guest, user *cart.CartSnapshot, pricing cart.PricingPolicy) cart.CartSnapshot {
	var merged cart.CartSnapshot
	if user != nil {
		merged = user.Clone()
	}

	if guest != nil {
		guestCopy := guest.Clone()
		for _, line := range guestCopy.Items {
			if idx := mergeTarget(merged.Items, line); idx >= 0 {
				target := &merged.Items[idx]
				target.Quantity += line.Quantity
				target.TotalPrice = target.UnitPrice.Mul(decimal.NewFromInt(int64(target.Quantity)))
				target.LastUpdated = laterOf(target.LastUpdated, line.LastUpdated)
				continue
			}
			merged.Items = append(merged.Items, line)
		}
	}

	merged.Summary = cart.ComputeSummary(merged.Items, pricing)
	merged.Version++
	merged.LastUpdated = time.Now().UTC()
	return merged
}

// mergeTarget finds an equivalent non-custom line for the candidate, or -1.
func mergeTarget(items []cart.CartItem, candidate cart.CartItem) int {
	if candidate.IsCustomDesign {
		return -1
	}
	for idx, item := range items {
		if !item.IsCustomDesign && item.ProductID == candidate.ProductID {
			return idx
		}
	}
	return -1
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
