package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/charmforge/charmforge-backend/pkg/enums"
)

// OrderItem is one cart line frozen into an order, carrying the exact
// inventory ids consumed so fulfillment and audits can trace stock.
type OrderItem struct {
	ID                 uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID            uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	ItemName           string                 `gorm:"column:item_name;not null" json:"item_name"`
	ProductID          string                 `gorm:"column:product_id;not null" json:"product_id"`
	Quantity           int                    `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice          decimal.Decimal        `gorm:"column:unit_price;type:numeric(12,2);not null" json:"unit_price"`
	TotalPrice         decimal.Decimal        `gorm:"column:total_price;type:numeric(12,2);not null" json:"total_price"`
	IsCustomDesign     bool                   `gorm:"column:is_custom_design;not null;default:false" json:"is_custom_design"`
	UsedInventoryItems []uuid.UUID            `gorm:"column:used_inventory_items;type:jsonb;serializer:json" json:"used_inventory_items"`
	ProductionStatus   enums.ProductionStatus `gorm:"column:production_status;not null;default:'queued'" json:"production_status"`
	CreatedAt          time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time              `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (OrderItem) TableName() string { return "order_items" }
