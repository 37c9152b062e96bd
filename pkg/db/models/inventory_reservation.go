package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryReservation is one transient hold placed under a reservation id.
// All holds for a checkout share the id, so release and commit can operate
// on the whole set.
type InventoryReservation struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ReservationID uuid.UUID `gorm:"column:reservation_id;type:uuid;not null;index" json:"reservation_id"`
	InventoryID   uuid.UUID `gorm:"column:inventory_id;type:uuid;not null" json:"inventory_id"`
	Quantity      int       `gorm:"column:quantity;not null" json:"quantity"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (InventoryReservation) TableName() string { return "inventory_reservations" }
