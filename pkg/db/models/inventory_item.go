package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/charmforge/charmforge-backend/pkg/enums"
)

// InventoryItem tracks available/reserved counts per sellable component.
type InventoryItem struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name         string                `gorm:"column:name;not null" json:"name"`
	Status       enums.InventoryStatus `gorm:"column:status;not null;default:'active'" json:"status"`
	AvailableQty int                   `gorm:"column:available_qty;not null;default:0" json:"available_qty"`
	ReservedQty  int                   `gorm:"column:reserved_qty;not null;default:0" json:"reserved_qty"`
	UpdatedAt    time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (InventoryItem) TableName() string { return "inventory_items" }
