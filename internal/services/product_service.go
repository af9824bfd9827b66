package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lvidal/pricealert/internal/models"
	apperrors "github.com/lvidal/pricealert/pkg/errors"
)

// CreateProductInput defines attributes for registering a tracked product.
type CreateProductInput struct {
	Name        string
	URL         string
	BasePrice   float64
	ImageURL    string
	Description string
	Brand       string
	Category    string
	CreatedBy   string
}

// CreateVariantInput defines attributes for adding a product variant.
type CreateVariantInput struct {
	ProductID  string
	Name       string
	Price      float64
	Attributes models.VariantAttributes
	SKU        string
	CreatedBy  string
}

// ScrapeUpdateInput carries the outcome of a scrape attempt to apply to a
// product record.
type ScrapeUpdateInput struct {
	Price       float64
	Title       string
	ImageURL    string
	Description string
	Brand       string
	Succeeded   bool
}

// ProductService manages products, their variants, and owner scoping.
type ProductService struct {
	db      *gorm.DB
	history *HistoryService
	now     func() time.Time
}

// NewProductService constructs a ProductService.
func NewProductService(db *gorm.DB, history *HistoryService) (*ProductService, error) {
	if db == nil {
		return nil, errors.New("product service: db is required")
	}
	if history == nil {
		return nil, errors.New("product service: history service is required")
	}
	return &ProductService{db: db, history: history, now: time.Now}, nil
}

// Create registers a product for the owner. Creation is idempotent per
// (owner, URL): an existing active product with the same URL is returned
// instead of inserting a duplicate. A new product seeds its history stream.
func (s *ProductService) Create(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	ctx = ensureContext(ctx)
	if input.CreatedBy == "" {
		return nil, apperrors.ErrUnauthorized
	}

	name := strings.TrimSpace(input.Name)
	url := strings.TrimSpace(input.URL)
	if name == "" || url == "" {
		return nil, apperrors.NewBadRequest("name and url are required")
	}

	var existing models.Product
	err := s.db.WithContext(ctx).
		Where("created_by = ? AND is_active = ? AND url = ?", input.CreatedBy, true, url).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("product service: lookup existing: %w", err)
	}

	product := models.Product{
		Name:        name,
		URL:         url,
		BasePrice:   input.BasePrice,
		ImageURL:    strings.TrimSpace(input.ImageURL),
		Description: strings.TrimSpace(input.Description),
		Brand:       strings.TrimSpace(input.Brand),
		Category:    strings.TrimSpace(input.Category),
		IsActive:    true,
		CreatedBy:   input.CreatedBy,
	}
	if err := s.db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, fmt.Errorf("product service: create product: %w", err)
	}

	if _, err := s.history.Record(ctx, product.ID, nil, product.BasePrice, s.now().UTC()); err != nil {
		return nil, err
	}

	return &product, nil
}

// Get returns a product the caller owns.
func (s *ProductService) Get(ctx context.Context, productID, ownerID string) (*models.Product, error) {
	ctx = ensureContext(ctx)
	return s.ownedProduct(ctx, productID, ownerID)
}

// GetByURL returns the caller's product registered under the given URL.
func (s *ProductService) GetByURL(ctx context.Context, url, ownerID string) (*models.Product, error) {
	ctx = ensureContext(ctx)
	if ownerID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	var product models.Product
	err := s.db.WithContext(ctx).
		Where("created_by = ? AND url = ?", ownerID, strings.TrimSpace(url)).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("product service: get by url: %w", err)
	}
	return &product, nil
}

// ListActive returns the caller's active products, newest first.
func (s *ProductService) ListActive(ctx context.Context, ownerID string) ([]models.Product, error) {
	ctx = ensureContext(ctx)
	if ownerID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	var products []models.Product
	if err := s.db.WithContext(ctx).
		Where("created_by = ? AND is_active = ?", ownerID, true).
		Order("created_at DESC").
		Find(&products).Error; err != nil {
		return nil, fmt.Errorf("product service: list products: %w", err)
	}
	return products, nil
}

// Search filters the caller's active products by a term matched against
// name, brand, category, and URL. An empty term returns everything.
func (s *ProductService) Search(ctx context.Context, ownerID, term string) ([]models.Product, error) {
	ctx = ensureContext(ctx)
	if ownerID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	query := s.db.WithContext(ctx).
		Where("created_by = ? AND is_active = ?", ownerID, true)

	if term = strings.TrimSpace(term); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		query = query.Where(
			"LOWER(name) LIKE ? OR LOWER(brand) LIKE ? OR LOWER(category) LIKE ? OR LOWER(url) LIKE ?",
			like, like, like, like,
		)
	}

	var products []models.Product
	if err := query.Order("created_at DESC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("product service: search products: %w", err)
	}
	return products, nil
}

// UpdateBasePrice sets a new base price on an owned product and appends a
// history entry.
func (s *ProductService) UpdateBasePrice(ctx context.Context, productID, ownerID string, newPrice float64) error {
	ctx = ensureContext(ctx)
	product, err := s.ownedProduct(ctx, productID, ownerID)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Model(product).Update("base_price", newPrice).Error; err != nil {
		return fmt.Errorf("product service: update base price: %w", err)
	}

	_, err = s.history.Record(ctx, product.ID, nil, newPrice, s.now().UTC())
	return err
}

// Deactivate soft-disables an owned product. Rows are never hard-deleted.
func (s *ProductService) Deactivate(ctx context.Context, productID, ownerID string) error {
	ctx = ensureContext(ctx)
	product, err := s.ownedProduct(ctx, productID, ownerID)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Model(product).Update("is_active", false).Error; err != nil {
		return fmt.Errorf("product service: deactivate: %w", err)
	}
	return nil
}

// CreateVariant adds a variant to an owned product and seeds its history
// stream.
func (s *ProductService) CreateVariant(ctx context.Context, input CreateVariantInput) (*models.ProductVariant, error) {
	ctx = ensureContext(ctx)
	product, err := s.ownedProduct(ctx, input.ProductID, input.CreatedBy)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("variant name is required")
	}

	variant := models.ProductVariant{
		ProductID:   product.ID,
		Name:        name,
		Price:       input.Price,
		Attributes:  datatypes.NewJSONType(input.Attributes),
		SKU:         strings.TrimSpace(input.SKU),
		IsAvailable: true,
	}
	if err := s.db.WithContext(ctx).Create(&variant).Error; err != nil {
		return nil, fmt.Errorf("product service: create variant: %w", err)
	}

	if _, err := s.history.Record(ctx, product.ID, &variant.ID, variant.Price, s.now().UTC()); err != nil {
		return nil, err
	}

	return &variant, nil
}

// ListAvailableVariants returns the available variants of a product.
func (s *ProductService) ListAvailableVariants(ctx context.Context, productID string) ([]models.ProductVariant, error) {
	ctx = ensureContext(ctx)

	var variants []models.ProductVariant
	if err := s.db.WithContext(ctx).
		Where("product_id = ? AND is_available = ?", productID, true).
		Order("created_at ASC").
		Find(&variants).Error; err != nil {
		return nil, fmt.Errorf("product service: list variants: %w", err)
	}
	return variants, nil
}

// UpdateVariantPrice sets a new price on a variant of an owned product and
// appends a history entry.
func (s *ProductService) UpdateVariantPrice(ctx context.Context, variantID, ownerID string, newPrice float64) error {
	ctx = ensureContext(ctx)
	if ownerID == "" {
		return apperrors.ErrUnauthorized
	}

	var variant models.ProductVariant
	if err := s.db.WithContext(ctx).First(&variant, "id = ?", variantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("product service: get variant: %w", err)
	}

	if _, err := s.ownedProduct(ctx, variant.ProductID, ownerID); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Model(&variant).Update("price", newPrice).Error; err != nil {
		return fmt.Errorf("product service: update variant price: %w", err)
	}

	_, err := s.history.Record(ctx, variant.ProductID, &variant.ID, newPrice, s.now().UTC())
	return err
}

// History returns the price history of an owned product, or of one of its
// variants when variantID is set.
func (s *ProductService) History(ctx context.Context, productID, ownerID string, variantID *string) ([]models.PriceHistoryEntry, error) {
	ctx = ensureContext(ctx)
	if _, err := s.ownedProduct(ctx, productID, ownerID); err != nil {
		return nil, err
	}
	return s.history.ForProduct(ctx, productID, variantID)
}

// ApplyScrapeResult stores the outcome of a scrape attempt: metadata fields
// when extracted, the scrape status, and a base-price update (with history)
// when a usable price was found.
func (s *ProductService) ApplyScrapeResult(ctx context.Context, productID, ownerID string, input ScrapeUpdateInput) (*models.Product, error) {
	ctx = ensureContext(ctx)
	product, err := s.ownedProduct(ctx, productID, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	status := models.ScrapingStatusFailure
	if input.Succeeded {
		status = models.ScrapingStatusSuccess
	}

	updates := map[string]any{
		"scraping_status": status,
		"last_scraped_at": now,
	}
	if title := strings.TrimSpace(input.Title); title != "" {
		updates["name"] = title
	}
	if img := strings.TrimSpace(input.ImageURL); img != "" {
		updates["image_url"] = img
	}
	if desc := strings.TrimSpace(input.Description); desc != "" {
		updates["description"] = desc
	}
	if brand := strings.TrimSpace(input.Brand); brand != "" {
		updates["brand"] = brand
	}

	priceChanged := input.Succeeded && input.Price > 0 && input.Price != product.BasePrice
	if priceChanged {
		updates["base_price"] = input.Price
	}

	if err := s.db.WithContext(ctx).Model(product).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("product service: apply scrape result: %w", err)
	}

	if priceChanged {
		if _, err := s.history.Record(ctx, product.ID, nil, input.Price, now); err != nil {
			return nil, err
		}
	}

	var refreshed models.Product
	if err := s.db.WithContext(ctx).First(&refreshed, "id = ?", product.ID).Error; err != nil {
		return nil, fmt.Errorf("product service: reload product: %w", err)
	}
	return &refreshed, nil
}

// ownedProduct fetches a product and enforces createdBy == caller. Missing
// rows and ownership mismatches are both reported as not found so callers
// cannot probe other users' catalogues.
func (s *ProductService) ownedProduct(ctx context.Context, productID, ownerID string) (*models.Product, error) {
	if ownerID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	if productID == "" {
		return nil, apperrors.NewBadRequest("product id is required")
	}

	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("product service: get product: %w", err)
	}
	if product.CreatedBy != ownerID {
		return nil, apperrors.ErrNotFound
	}
	return &product, nil
}
