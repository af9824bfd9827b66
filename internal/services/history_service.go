package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/lvidal/pricealert/internal/models"
	apperrors "github.com/lvidal/pricealert/pkg/errors"
)

// HistoryService maintains the append-only price-history streams.
type HistoryService struct {
	db *gorm.DB
}

// NewHistoryService constructs a HistoryService.
func NewHistoryService(db *gorm.DB) (*HistoryService, error) {
	if db == nil {
		return nil, errors.New("history service: db is required")
	}
	return &HistoryService{db: db}, nil
}

// Record appends a price observation for a product/variant stream. Exact
// duplicates of the most recent entry are suppressed so consecutive
// identical prices never accumulate. Returns true when an entry was written.
func (s *HistoryService) Record(ctx context.Context, productID string, variantID *string, price float64, at time.Time) (bool, error) {
	ctx = ensureContext(ctx)
	if productID == "" {
		return false, apperrors.NewBadRequest("product id is required")
	}

	var last models.PriceHistoryEntry
	err := s.streamQuery(ctx, productID, variantID).
		Order("recorded_at DESC").
		First(&last).Error
	if err == nil && last.Price == price {
		return false, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("history service: latest entry: %w", err)
	}

	entry := models.PriceHistoryEntry{
		ProductID:  productID,
		VariantID:  variantID,
		Price:      price,
		RecordedAt: at,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return false, fmt.Errorf("history service: insert entry: %w", err)
	}
	return true, nil
}

// ForProduct returns the history stream for a product, or for one of its
// variants when variantID is set, oldest first.
func (s *HistoryService) ForProduct(ctx context.Context, productID string, variantID *string) ([]models.PriceHistoryEntry, error) {
	ctx = ensureContext(ctx)
	if productID == "" {
		return nil, apperrors.NewBadRequest("product id is required")
	}

	var entries []models.PriceHistoryEntry
	if err := s.streamQuery(ctx, productID, variantID).
		Order("recorded_at ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("history service: list entries: %w", err)
	}
	return entries, nil
}

func (s *HistoryService) streamQuery(ctx context.Context, productID string, variantID *string) *gorm.DB {
	query := s.db.WithContext(ctx).
		Model(&models.PriceHistoryEntry{}).
		Where("product_id = ?", productID)
	if variantID != nil {
		query = query.Where("variant_id = ?", *variantID)
	} else {
		query = query.Where("variant_id IS NULL")
	}
	return query
}
