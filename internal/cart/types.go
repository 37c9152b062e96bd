// Package cart holds the in-memory authoritative cart state for an active
// session: line items, the derived summary, and a linear undo/redo history.
package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DesignComponent is one inventory reference inside a custom design. The
// placement payload is opaque; only the inventory id matters for reservation.
type DesignComponent struct {
	InventoryID uuid.UUID `json:"inventory_id"`
	Placement   string    `json:"placement,omitempty"`
}

// DesignSnapshot is the ordered component list captured when a custom design
// is added to the cart.
type DesignSnapshot struct {
	Components []DesignComponent `json:"components"`
}

// CartItem is one cart line. CartItemID is the stable line identity; the same
// ProductID may appear on multiple lines when the lines are custom designs.
type CartItem struct {
	CartItemID     uuid.UUID       `json:"cart_item_id"`
	ProductID      string          `json:"product_id"`
	Title          string          `json:"title"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Quantity       int             `json:"quantity"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	IsCustomDesign bool            `json:"is_custom_design"`
	InventoryID    *uuid.UUID      `json:"inventory_id,omitempty"`
	Design         *DesignSnapshot `json:"design,omitempty"`
	AddedAt        time.Time       `json:"added_at"`
	LastUpdated    time.Time       `json:"last_updated"`
}

// CartSummary is derived wholesale from the item list and never stored on its
// own. Discount is a zero placeholder until a discount engine exists.
type CartSummary struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Shipping  decimal.Decimal `json:"shipping"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

// CartSnapshot is the unit of persistence and of undo/redo history.
type CartSnapshot struct {
	Items       []CartItem  `json:"items"`
	Summary     CartSummary `json:"summary"`
	Version     int         `json:"version"`
	SessionID   string      `json:"session_id,omitempty"`
	UserID      string      `json:"user_id,omitempty"`
	LastUpdated time.Time   `json:"last_updated"`
}

func (d *DesignSnapshot) clone() *DesignSnapshot {
	if d == nil {
		return nil
	}
	out := &DesignSnapshot{Components: make([]DesignComponent, len(d.Components))}
	copy(out.Components, d.Components)
	return out
}

func (i CartItem) clone() CartItem {
	out := i
	if i.InventoryID != nil {
		id := *i.InventoryID
		out.InventoryID = &id
	}
	out.Design = i.Design.clone()
	return out
}

func cloneItems(items []CartItem) []CartItem {
	out := make([]CartItem, len(items))
	for idx, item := range items {
		out[idx] = item.clone()
	}
	return out
}

// Clone deep-copies the snapshot so callers can mutate their copy freely.
func (s CartSnapshot) Clone() CartSnapshot {
	out := s
	out.Items = cloneItems(s.Items)
	return out
}
