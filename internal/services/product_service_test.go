package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lvidal/pricealert/internal/database/testutil"
	"github.com/lvidal/pricealert/internal/models"
	apperrors "github.com/lvidal/pricealert/pkg/errors"
)

func newProductService(t *testing.T, db *gorm.DB) *ProductService {
	t.Helper()
	history, err := NewHistoryService(db)
	require.NoError(t, err)
	svc, err := NewProductService(db, history)
	require.NoError(t, err)
	return svc
}

func TestProductServiceCreateIsIdempotentPerURL(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := seedTestUser(t, db, "owner")
	svc := newProductService(t, db)

	input := CreateProductInput{
		Name:      "Kettle",
		URL:       "https://shop.example.com/kettle",
		BasePrice: 45,
		CreatedBy: user.ID,
	}

	first, err := svc.Create(context.Background(), input)
	require.NoError(t, err)

	second, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.Product{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	byURL, err := svc.GetByURL(context.Background(), input.URL, user.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, byURL.ID)

	// Creation seeds the history stream once.
	history, err := svc.History(context.Background(), first.ID, user.ID, nil)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, 45.0, history[0].Price)
}

func TestProductServiceOwnershipIsOpaque(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	owner := seedTestUser(t, db, "owner")
	intruder := seedTestUser(t, db, "intruder")
	svc := newProductService(t, db)

	product, err := svc.Create(context.Background(), CreateProductInput{
		Name:      "Kettle",
		URL:       "https://shop.example.com/kettle",
		BasePrice: 45,
		CreatedBy: owner.ID,
	})
	require.NoError(t, err)

	// Another user's probe looks identical to a missing product.
	_, err = svc.Get(context.Background(), product.ID, intruder.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.Get(context.Background(), "b7f7f7aa-0000-4000-8000-000000000000", owner.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProductServiceSearch(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := seedTestUser(t, db, "owner")
	svc := newProductService(t, db)

	ctx := context.Background()
	_, err := svc.Create(ctx, CreateProductInput{
		Name: "Ethiopian Coffee Beans", Brand: "Roastery",
		URL: "https://shop.example.com/coffee", BasePrice: 14, CreatedBy: user.ID,
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateProductInput{
		Name: "Green Tea", Category: "tea",
		URL: "https://shop.example.com/tea", BasePrice: 8, CreatedBy: user.ID,
	})
	require.NoError(t, err)

	found, err := svc.Search(ctx, user.ID, "coffee")
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "Ethiopian Coffee Beans", found[0].Name)

	all, err := svc.Search(ctx, user.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestProductServiceUpdateBasePriceAppendsHistory(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := seedTestUser(t, db, "owner")
	svc := newProductService(t, db)

	ctx := context.Background()
	product, err := svc.Create(ctx, CreateProductInput{
		Name: "Kettle", URL: "https://shop.example.com/kettle",
		BasePrice: 45, CreatedBy: user.ID,
	})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateBasePrice(ctx, product.ID, user.ID, 39))

	history, err := svc.History(ctx, product.ID, user.ID, nil)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, 39.0, history[1].Price)
}

func TestProductServiceVariants(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := seedTestUser(t, db, "owner")
	svc := newProductService(t, db)

	ctx := context.Background()
	product, err := svc.Create(ctx, CreateProductInput{
		Name: "Protein Powder", URL: "https://shop.example.com/protein",
		BasePrice: 30, CreatedBy: user.ID,
	})
	require.NoError(t, err)

	variant, err := svc.CreateVariant(ctx, CreateVariantInput{
		ProductID: product.ID,
		Name:      "Vanilla 1kg",
		Price:     33,
		Attributes: models.VariantAttributes{
			Size:   "1kg",
			Flavor: "vanilla",
		},
		CreatedBy: user.ID,
	})
	require.NoError(t, err)
	require.True(t, variant.IsAvailable)
	require.Equal(t, "vanilla", variant.Attributes.Data().Flavor)

	variants, err := svc.ListAvailableVariants(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, variants, 1)

	require.NoError(t, svc.UpdateVariantPrice(ctx, variant.ID, user.ID, 29))

	history, err := svc.History(ctx, product.ID, user.ID, &variant.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, 29.0, history[1].Price)
}

func TestProductServiceDeactivateIsSoft(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := seedTestUser(t, db, "owner")
	svc := newProductService(t, db)

	ctx := context.Background()
	product, err := svc.Create(ctx, CreateProductInput{
		Name: "Kettle", URL: "https://shop.example.com/kettle",
		BasePrice: 45, CreatedBy: user.ID,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, product.ID, user.ID))

	active, err := svc.ListActive(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, active)

	// The row survives and stays readable.
	reloaded, err := svc.Get(ctx, product.ID, user.ID)
	require.NoError(t, err)
	require.False(t, reloaded.IsActive)
}

func TestProductServiceApplyScrapeResult(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := seedTestUser(t, db, "owner")
	svc := newProductService(t, db)

	ctx := context.Background()
	product, err := svc.Create(ctx, CreateProductInput{
		Name: "Kettle", URL: "https://shop.example.com/kettle",
		BasePrice: 45, CreatedBy: user.ID,
	})
	require.NoError(t, err)

	updated, err := svc.ApplyScrapeResult(ctx, product.ID, user.ID, ScrapeUpdateInput{
		Price:       41,
		Title:       "Electric Kettle 1.7L",
		ImageURL:    "https://cdn.example.com/kettle.jpg",
		Description: "Stainless steel",
		Succeeded:   true,
	})
	require.NoError(t, err)

	require.Equal(t, models.ScrapingStatusSuccess, updated.ScrapingStatus)
	require.NotNil(t, updated.LastScrapedAt)
	require.Equal(t, "Electric Kettle 1.7L", updated.Name)
	require.Equal(t, 41.0, updated.BasePrice)

	history, err := svc.History(ctx, product.ID, user.ID, nil)
	require.NoError(t, err)
	require.Len(t, history, 2)

	// A failed scrape records the status without touching prices.
	failed, err := svc.ApplyScrapeResult(ctx, product.ID, user.ID, ScrapeUpdateInput{})
	require.NoError(t, err)
	require.Equal(t, models.ScrapingStatusFailure, failed.ScrapingStatus)
	require.Equal(t, 41.0, failed.BasePrice)
}
