package database

import (
	"gorm.io/gorm"

	"github.com/lvidal/pricealert/internal/models"
)

// AutoMigrate applies the application schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.ProductVariant{},
		&models.PriceAlert{},
		&models.PriceHistoryEntry{},
		&models.EmailVerificationToken{},
	)
}
