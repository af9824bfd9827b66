package models

import "time"

// Scraping status values recorded after a scrape attempt.
const (
	ScrapingStatusSuccess = "success"
	ScrapingStatusFailure = "failure"
	ScrapingStatusPending = "pending"
)

// Product is a tracked item. BasePrice is the current market price of the
// product itself; variants carry their own prices.
type Product struct {
	BaseModel

	Name      string  `gorm:"not null;index" json:"name"`
	URL       string  `gorm:"not null;index" json:"url"`
	BasePrice float64 `gorm:"not null" json:"base_price"`

	ImageURL    string `json:"image_url,omitempty"`
	Description string `json:"description,omitempty"`
	Brand       string `gorm:"index" json:"brand,omitempty"`
	Category    string `gorm:"index" json:"category,omitempty"`

	IsActive  bool   `gorm:"default:true;index:idx_products_owner_active" json:"is_active"`
	CreatedBy string `gorm:"type:uuid;not null;index:idx_products_owner_active,priority:1;index" json:"created_by"`

	LastScrapedAt  *time.Time `json:"last_scraped_at,omitempty"`
	ScrapingStatus string     `json:"scraping_status,omitempty"`

	Variants []ProductVariant `gorm:"foreignKey:ProductID" json:"variants,omitempty"`
}
