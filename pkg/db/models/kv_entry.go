package models

import "time"

// KVEntry is one row of the key-value table backing persisted carts.
type KVEntry struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Value     string    `gorm:"column:value;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (KVEntry) TableName() string {
	return "kv_entries"
}
