package cartgateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charmforge/charmforge-backend/internal/cart"
	"github.com/charmforge/charmforge-backend/pkg/db/models"
	pkgerrors "github.com/charmforge/charmforge-backend/pkg/errors"
)

// GuestKeyPrefix scopes guest entries in the local store. User carts never
// touch the fallback, so guest keys are the only shape stored here.
const GuestKeyPrefix = "guest:"

// SQLiteStore is the durable local fallback, a single key-value table in a
// sqlite file next to the process.
type SQLiteStore struct {
	db *gorm.DB
}

var _ LocalStore = (*SQLiteStore)(nil)

func NewSQLiteStore(db *gorm.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("local store db required")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, key string, snapshot cart.CartSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding cart snapshot")
	}
	entry := models.LocalCartEntry{
		Key:       key,
		Payload:   payload,
		UpdatedAt: time.Now().UTC(),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).
		Create(&entry).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "writing local cart entry")
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*cart.CartSnapshot, error) {
	var entry models.LocalCartEntry
	err := s.db.WithContext(ctx).First(&entry, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading local cart entry")
	}
	var snapshot cart.CartSnapshot
	if err := json.Unmarshal(entry.Payload, &snapshot); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decoding cart snapshot")
	}
	return &snapshot, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Delete(&models.LocalCartEntry{}, "key = ?", key).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deleting local cart entry")
	}
	return nil
}

// SweepBefore removes entries under prefix not touched since cutoff and
// reports how many rows went away.
func (s *SQLiteStore) SweepBefore(ctx context.Context, prefix string, cutoff time.Time) (int, error) {
	res := s.db.WithContext(ctx).
		Where("key LIKE ? AND updated_at < ?", prefix+"%", cutoff).
		Delete(&models.LocalCartEntry{})
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "sweeping local cart entries")
	}
	return int(res.RowsAffected), nil
}
