package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/charmforge/charmforge-backend/pkg/enums"
	"github.com/charmforge/charmforge-backend/pkg/types"
)

// Order is the persisted order header. Created once at checkout; only its
// status fields mutate afterwards, and rows are never deleted.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber     string              `gorm:"column:order_number;uniqueIndex:ux_orders_order_number;not null" json:"order_number"`
	SessionID       *string             `gorm:"column:session_id" json:"session_id,omitempty"`
	UserID          *string             `gorm:"column:user_id" json:"user_id,omitempty"`
	Status          enums.OrderStatus   `gorm:"column:status;not null;default:'pending'" json:"status"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;not null;default:'pending'" json:"payment_status"`
	PaymentIntentID *string             `gorm:"column:payment_intent_id" json:"payment_intent_id,omitempty"`
	Subtotal        decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null" json:"subtotal"`
	Tax             decimal.Decimal     `gorm:"column:tax;type:numeric(12,2);not null" json:"tax"`
	Shipping        decimal.Decimal     `gorm:"column:shipping;type:numeric(12,2);not null" json:"shipping"`
	Discount        decimal.Decimal     `gorm:"column:discount;type:numeric(12,2);not null" json:"discount"`
	Total           decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null" json:"total"`
	ShippingAddress *types.Address      `gorm:"column:shipping_address;type:jsonb;serializer:json" json:"shipping_address,omitempty"`
	BillingAddress  *types.Address      `gorm:"column:billing_address;type:jsonb;serializer:json" json:"billing_address,omitempty"`
	Items           []OrderItem         `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string { return "orders" }
