package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/charmforge/charmforge-backend/pkg/db/models"
	"github.com/charmforge/charmforge-backend/pkg/enums"
	pkgerrors "github.com/charmforge/charmforge-backend/pkg/errors"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory gateway bound to the provided DB.
func NewRepository(db *gorm.DB) Gateway {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Gateway {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Reserve moves quantity units from available to reserved under the shared
// reservation id. The guard on available_qty makes over-selling impossible
// even with concurrent reservations.
func (r *repository) Reserve(ctx context.Context, inventoryID uuid.UUID, quantity int, reservationID uuid.UUID) error {
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reserve quantity must be at least 1")
	}
	if reservationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation id is required")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.InventoryItem{}).
			Where("id = ? AND status = ? AND available_qty >= ?", inventoryID, enums.InventoryStatusActive, quantity).
			Updates(map[string]any{
				"available_qty": gorm.Expr("available_qty - ?", quantity),
				"reserved_qty":  gorm.Expr("reserved_qty + ?", quantity),
				"updated_at":    time.Now().UTC(),
			})
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserving inventory")
		}
		if res.RowsAffected == 0 {
			return r.classifyReserveFailure(tx, inventoryID, quantity)
		}

		hold := models.InventoryReservation{
			ID:            uuid.New(),
			ReservationID: reservationID,
			InventoryID:   inventoryID,
			Quantity:      quantity,
		}
		if err := tx.Create(&hold).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recording reservation")
		}
		return nil
	})
}

func (r *repository) classifyReserveFailure(tx *gorm.DB, inventoryID uuid.UUID, quantity int) error {
	var item models.InventoryItem
	err := tx.First(&item, "id = ?", inventoryID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "inventory item %s not found", inventoryID)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading inventory item")
	}
	if item.Status != enums.InventoryStatusActive {
		return pkgerrors.Newf(pkgerrors.CodeReservation, "inventory item %s is %s", inventoryID, item.Status)
	}
	return pkgerrors.Newf(pkgerrors.CodeReservation,
		"insufficient stock for %s: requested %d, available %d", inventoryID, quantity, item.AvailableQty)
}

// ReleaseReservation returns every hold under the id to available stock.
// Releasing an unknown or already-released id is a no-op.
func (r *repository) ReleaseReservation(ctx context.Context, reservationID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		holds, err := holdsFor(tx, reservationID)
		if err != nil {
			return err
		}
		for _, hold := range holds {
			res := tx.Model(&models.InventoryItem{}).
				Where("id = ?", hold.InventoryID).
				Updates(map[string]any{
					"available_qty": gorm.Expr("available_qty + ?", hold.Quantity),
					"reserved_qty":  gorm.Expr("reserved_qty - ?", hold.Quantity),
					"updated_at":    time.Now().UTC(),
				})
			if res.Error != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "releasing inventory hold")
			}
		}
		return deleteHolds(tx, reservationID)
	})
}

// CommitReservation converts the holds into a permanent decrement: reserved
// units are consumed and the hold rows removed.
func (r *repository) CommitReservation(ctx context.Context, reservationID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		holds, err := holdsFor(tx, reservationID)
		if err != nil {
			return err
		}
		for _, hold := range holds {
			res := tx.Model(&models.InventoryItem{}).
				Where("id = ?", hold.InventoryID).
				Updates(map[string]any{
					"reserved_qty": gorm.Expr("reserved_qty - ?", hold.Quantity),
					"updated_at":   time.Now().UTC(),
				})
			if res.Error != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "committing inventory hold")
			}
		}
		return deleteHolds(tx, reservationID)
	})
}

func (r *repository) GetItem(ctx context.Context, inventoryID uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.WithContext(ctx).First(&item, "id = ?", inventoryID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "inventory item %s not found", inventoryID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading inventory item")
	}
	return &item, nil
}

func holdsFor(tx *gorm.DB, reservationID uuid.UUID) ([]models.InventoryReservation, error) {
	var holds []models.InventoryReservation
	err := tx.Where("reservation_id = ?", reservationID).Find(&holds).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading reservation holds")
	}
	return holds, nil
}

func deleteHolds(tx *gorm.DB, reservationID uuid.UUID) error {
	err := tx.Where("reservation_id = ?", reservationID).Delete(&models.InventoryReservation{}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deleting reservation holds")
	}
	return nil
}
