package models

import "time"

// LocalCartEntry is one key-value row in the sqlite fallback store. Payload
// holds a JSON-encoded cart snapshot; UpdatedAt drives the TTL sweep.
type LocalCartEntry struct {
	Key       string    `gorm:"column:key;primaryKey" json:"key"`
	Payload   []byte    `gorm:"column:payload;not null" json:"payload"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (LocalCartEntry) TableName() string { return "local_cart_entries" }
