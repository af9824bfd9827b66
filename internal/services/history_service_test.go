package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lvidal/pricealert/internal/database/testutil"
	"github.com/lvidal/pricealert/internal/models"
)

func TestHistoryRecordSuppressesConsecutiveDuplicates(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := seedTestUser(t, db, "owner")
	product := seedTestProduct(t, db, user.ID)

	svc, err := NewHistoryService(db)
	require.NoError(t, err)

	ctx := context.Background()
	at := time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC)

	written, err := svc.Record(ctx, product.ID, nil, 120, at)
	require.NoError(t, err)
	require.True(t, written)

	written, err = svc.Record(ctx, product.ID, nil, 120, at.Add(time.Hour))
	require.NoError(t, err)
	require.False(t, written)

	written, err = svc.Record(ctx, product.ID, nil, 110, at.Add(2*time.Hour))
	require.NoError(t, err)
	require.True(t, written)

	// The old price returning is a real change, not a duplicate.
	written, err = svc.Record(ctx, product.ID, nil, 120, at.Add(3*time.Hour))
	require.NoError(t, err)
	require.True(t, written)

	entries, err := svc.ForProduct(ctx, product.ID, nil)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, []float64{120, 110, 120}, []float64{entries[0].Price, entries[1].Price, entries[2].Price})
}

func TestHistoryStreamsAreIndependentPerVariant(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := seedTestUser(t, db, "owner")
	product := seedTestProduct(t, db, user.ID)

	variant := &models.ProductVariant{
		ProductID:   product.ID,
		Name:        "500g",
		Price:       70,
		IsAvailable: true,
	}
	require.NoError(t, db.Create(variant).Error)

	svc, err := NewHistoryService(db)
	require.NoError(t, err)

	ctx := context.Background()
	at := time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC)

	_, err = svc.Record(ctx, product.ID, nil, 120, at)
	require.NoError(t, err)

	// The same price on the variant stream is not a duplicate of the
	// base stream.
	written, err := svc.Record(ctx, product.ID, &variant.ID, 120, at)
	require.NoError(t, err)
	require.True(t, written)

	base, err := svc.ForProduct(ctx, product.ID, nil)
	require.NoError(t, err)
	require.Len(t, base, 1)
	require.Nil(t, base[0].VariantID)

	scoped, err := svc.ForProduct(ctx, product.ID, &variant.ID)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	require.NotNil(t, scoped[0].VariantID)
	require.Equal(t, variant.ID, *scoped[0].VariantID)
}

func TestHistoryEntriesAreOrderedOldestFirst(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := seedTestUser(t, db, "owner")
	product := seedTestProduct(t, db, user.ID)

	svc, err := NewHistoryService(db)
	require.NoError(t, err)

	ctx := context.Background()
	at := time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC)
	for i, price := range []float64{120, 100, 90} {
		_, err := svc.Record(ctx, product.ID, nil, price, at.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}

	entries, err := svc.ForProduct(ctx, product.ID, nil)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.True(t, entries[0].RecordedAt.Before(entries[2].RecordedAt))
	require.Equal(t, 120.0, entries[0].Price)
	require.Equal(t, 90.0, entries[2].Price)
}
