package models

import "time"

// PriceHistoryEntry is an append-only price observation for a product or
// variant stream. Consecutive entries with an identical price are never
// stored; callers must check the most recent entry before inserting.
type PriceHistoryEntry struct {
	BaseModel

	ProductID string  `gorm:"type:uuid;not null;index:idx_history_product_time" json:"product_id"`
	VariantID *string `gorm:"type:uuid;index:idx_history_variant_time" json:"variant_id,omitempty"`

	Price      float64   `gorm:"not null" json:"price"`
	RecordedAt time.Time `gorm:"not null;index:idx_history_product_time;index:idx_history_variant_time" json:"recorded_at"`
}
