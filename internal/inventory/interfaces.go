// Package inventory manages stock holds for checkout. A reservation moves
// units from available to reserved; commit makes the decrement permanent and
// release returns the units. All holds for one checkout share a reservation
// id so rollback and commit operate on the whole set.
package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/charmforge/charmforge-backend/pkg/db/models"
)

// Gateway is the inventory contract consumed by checkout.
type Gateway interface {
	WithTx(tx *gorm.DB) Gateway
	Reserve(ctx context.Context, inventoryID uuid.UUID, quantity int, reservationID uuid.UUID) error
	ReleaseReservation(ctx context.Context, reservationID uuid.UUID) error
	CommitReservation(ctx context.Context, reservationID uuid.UUID) error
	GetItem(ctx context.Context, inventoryID uuid.UUID) (*models.InventoryItem, error)
}
