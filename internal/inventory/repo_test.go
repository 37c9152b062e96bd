package inventory

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/charmforge/charmforge-backend/pkg/db/models"
	"github.com/charmforge/charmforge-backend/pkg/enums"
	pkgerrors "github.com/charmforge/charmforge-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	ddl := []string{
		`CREATE TABLE inventory_items (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			available_qty INTEGER NOT NULL DEFAULT 0,
			reserved_qty INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME
		)`,
		`CREATE TABLE inventory_reservations (
			id TEXT PRIMARY KEY,
			reservation_id TEXT NOT NULL,
			inventory_id TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			created_at DATETIME
		)`,
	}
	for _, stmt := range ddl {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func seedItem(t *testing.T, db *gorm.DB, available int, status enums.InventoryStatus) uuid.UUID {
	t.Helper()
	item := models.InventoryItem{
		ID:           uuid.New(),
		Name:         "silver charm",
		Status:       status,
		AvailableQty: available,
	}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return item.ID
}

func loadItem(t *testing.T, db *gorm.DB, id uuid.UUID) models.InventoryItem {
	t.Helper()
	var item models.InventoryItem
	if err := db.First(&item, "id = ?", id).Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	return item
}

func TestReserveMovesAvailableToReserved(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	itemID := seedItem(t, db, 5, enums.InventoryStatusActive)
	reservationID := uuid.New()

	if err := repo.Reserve(context.Background(), itemID, 3, reservationID); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	item := loadItem(t, db, itemID)
	if item.AvailableQty != 2 || item.ReservedQty != 3 {
		t.Fatalf("available=%d reserved=%d, want 2/3", item.AvailableQty, item.ReservedQty)
	}

	var holds []models.InventoryReservation
	if err := db.Where("reservation_id = ?", reservationID).Find(&holds).Error; err != nil {
		t.Fatalf("load holds: %v", err)
	}
	if len(holds) != 1 || holds[0].Quantity != 3 {
		t.Fatalf("unexpected holds: %+v", holds)
	}
}

func TestReserveInsufficientStock(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	itemID := seedItem(t, db, 2, enums.InventoryStatusActive)

	err := repo.Reserve(context.Background(), itemID, 3, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeReservation {
		t.Fatalf("expected reservation error, got %v", err)
	}

	item := loadItem(t, db, itemID)
	if item.AvailableQty != 2 || item.ReservedQty != 0 {
		t.Fatal("failed reservation must not change stock")
	}
}

func TestReserveInactiveItem(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	itemID := seedItem(t, db, 5, enums.InventoryStatusDiscontinued)

	err := repo.Reserve(context.Background(), itemID, 1, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeReservation {
		t.Fatalf("expected reservation error for inactive item, got %v", err)
	}
}

func TestReserveUnknownItem(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)

	err := repo.Reserve(context.Background(), uuid.New(), 1, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReleaseReservationRestoresStock(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	first := seedItem(t, db, 5, enums.InventoryStatusActive)
	second := seedItem(t, db, 4, enums.InventoryStatusActive)
	reservationID := uuid.New()

	if err := repo.Reserve(context.Background(), first, 2, reservationID); err != nil {
		t.Fatalf("reserve first: %v", err)
	}
	if err := repo.Reserve(context.Background(), second, 1, reservationID); err != nil {
		t.Fatalf("reserve second: %v", err)
	}

	if err := repo.ReleaseReservation(context.Background(), reservationID); err != nil {
		t.Fatalf("release: %v", err)
	}

	for _, id := range []uuid.UUID{first, second} {
		item := loadItem(t, db, id)
		if item.ReservedQty != 0 {
			t.Fatalf("item %s still has %d reserved", id, item.ReservedQty)
		}
	}
	if loadItem(t, db, first).AvailableQty != 5 {
		t.Fatal("first item stock not restored")
	}

	// Releasing again is a no-op.
	if err := repo.ReleaseReservation(context.Background(), reservationID); err != nil {
		t.Fatalf("second release: %v", err)
	}
}

func TestCommitReservationConsumesStock(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	itemID := seedItem(t, db, 5, enums.InventoryStatusActive)
	reservationID := uuid.New()

	if err := repo.Reserve(context.Background(), itemID, 2, reservationID); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := repo.CommitReservation(context.Background(), reservationID); err != nil {
		t.Fatalf("commit: %v", err)
	}

	item := loadItem(t, db, itemID)
	if item.AvailableQty != 3 || item.ReservedQty != 0 {
		t.Fatalf("available=%d reserved=%d, want 3/0", item.AvailableQty, item.ReservedQty)
	}

	var count int64
	db.Model(&models.InventoryReservation{}).Where("reservation_id = ?", reservationID).Count(&count)
	if count != 0 {
		t.Fatal("committed holds must be removed")
	}
}

func TestGetItem(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	itemID := seedItem(t, db, 7, enums.InventoryStatusActive)

	item, err := repo.GetItem(context.Background(), itemID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.AvailableQty != 7 {
		t.Fatalf("available = %d, want 7", item.AvailableQty)
	}

	if _, err := repo.GetItem(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected not found for unknown item")
	}
}
