package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/lvidal/pricealert/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

func TestEvaluateAnyDrop(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		baseline    float64
		marketPrice float64
		wantNotify  bool
	}{
		{name: "price dropped", baseline: 100, marketPrice: 90, wantNotify: true},
		{name: "price unchanged", baseline: 100, marketPrice: 100, wantNotify: false},
		{name: "price increased", baseline: 100, marketPrice: 110, wantNotify: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			alert := &models.PriceAlert{AlertType: models.AlertTypeAnyDrop, CurrentPrice: tc.baseline}
			decision := Evaluate(alert, tc.marketPrice, now)

			require.Equal(t, tc.wantNotify, decision.Notify)
			if tc.wantNotify {
				require.True(t, decision.DeactivateAfterNotify)
				require.NotEmpty(t, decision.Message)
			}
			require.Equal(t, -1, decision.TriggeredThreshold)
		})
	}
}

func TestEvaluateLegacyRowDefaultsToAnyDrop(t *testing.T) {
	alert := &models.PriceAlert{CurrentPrice: 50}
	decision := Evaluate(alert, 49, time.Now())

	require.True(t, decision.Notify)
	require.True(t, decision.DeactivateAfterNotify)
}

func TestEvaluateFixedPrice(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		target      *float64
		baseline    float64
		marketPrice float64
		wantNotify  bool
	}{
		{name: "below target", target: floatPtr(60), baseline: 80, marketPrice: 55, wantNotify: true},
		{name: "exactly at target", target: floatPtr(60), baseline: 80, marketPrice: 60, wantNotify: true},
		{name: "above target", target: floatPtr(60), baseline: 80, marketPrice: 65, wantNotify: false},
		{name: "fires regardless of baseline", target: floatPtr(60), baseline: 10, marketPrice: 59, wantNotify: true},
		{name: "missing target never fires", target: nil, baseline: 80, marketPrice: 1, wantNotify: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			alert := &models.PriceAlert{
				AlertType:    models.AlertTypeFixedPrice,
				CurrentPrice: tc.baseline,
				TargetPrice:  tc.target,
			}
			decision := Evaluate(alert, tc.marketPrice, now)
			require.Equal(t, tc.wantNotify, decision.Notify)
		})
	}
}

func TestEvaluateSingleThresholdPercentage(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		baseline    float64
		threshold   float64
		marketPrice float64
		wantNotify  bool
	}{
		{name: "drop exceeds threshold", baseline: 50, threshold: 20, marketPrice: 39, wantNotify: true},
		{name: "drop exactly at threshold", baseline: 100, threshold: 10, marketPrice: 90, wantNotify: true},
		{name: "drop below threshold", baseline: 100, threshold: 20, marketPrice: 85, wantNotify: false},
		{name: "price increase", baseline: 100, threshold: 20, marketPrice: 120, wantNotify: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			alert := &models.PriceAlert{
				AlertType:           models.AlertTypePercentage,
				CurrentPrice:        tc.baseline,
				PercentageThreshold: floatPtr(tc.threshold),
			}
			decision := Evaluate(alert, tc.marketPrice, now)

			require.Equal(t, tc.wantNotify, decision.Notify)
			if tc.wantNotify {
				// The single-threshold path retires the alert entirely.
				require.True(t, decision.DeactivateAfterNotify)
			}
		})
	}
}

func TestEvaluatePercentageZeroBaselineNeverFires(t *testing.T) {
	alert := &models.PriceAlert{
		AlertType:           models.AlertTypePercentage,
		CurrentPrice:        0,
		PercentageThreshold: floatPtr(10),
	}
	decision := Evaluate(alert, 5, time.Now())
	require.False(t, decision.Notify)
}

func TestEvaluateMultiThreshold(t *testing.T) {
	now := time.Now()

	newAlert := func(thresholds []models.Threshold) *models.PriceAlert {
		return &models.PriceAlert{
			AlertType:          models.AlertTypePercentage,
			CurrentPrice:       100,
			MultipleThresholds: datatypes.NewJSONType(thresholds),
		}
	}

	t.Run("first untriggered match fires and stays active", func(t *testing.T) {
		alert := newAlert([]models.Threshold{
			{Percentage: 10},
			{Percentage: 20},
		})

		decision := Evaluate(alert, 85, now) // 15% drop
		require.True(t, decision.Notify)
		require.Equal(t, 0, decision.TriggeredThreshold)
		require.False(t, decision.DeactivateAfterNotify)
	})

	t.Run("triggered thresholds are skipped", func(t *testing.T) {
		alert := newAlert([]models.Threshold{
			{Percentage: 10, Triggered: true},
			{Percentage: 20},
		})

		decision := Evaluate(alert, 75, now) // 25% drop
		require.True(t, decision.Notify)
		require.Equal(t, 1, decision.TriggeredThreshold)
	})

	t.Run("only one threshold fires per pass", func(t *testing.T) {
		alert := newAlert([]models.Threshold{
			{Percentage: 10},
			{Percentage: 20},
		})

		decision := Evaluate(alert, 70, now) // 30% drop meets both
		require.True(t, decision.Notify)
		require.Equal(t, 0, decision.TriggeredThreshold)
	})

	t.Run("all triggered means no notification", func(t *testing.T) {
		alert := newAlert([]models.Threshold{
			{Percentage: 10, Triggered: true},
			{Percentage: 20, Triggered: true},
		})

		decision := Evaluate(alert, 50, now)
		require.False(t, decision.Notify)
		require.Equal(t, -1, decision.TriggeredThreshold)
	})
}

func TestEvaluateSeasonal(t *testing.T) {
	newAlert := func(ctx models.SeasonalContext, baseline float64) *models.PriceAlert {
		return &models.PriceAlert{
			AlertType:       models.AlertTypeSeasonal,
			CurrentPrice:    baseline,
			SeasonalContext: datatypes.NewJSONType(ctx),
		}
	}

	tests := []struct {
		name        string
		ctx         models.SeasonalContext
		now         time.Time
		marketPrice float64
		wantNotify  bool
	}{
		{
			name:        "black friday window with drop",
			ctx:         models.SeasonalContext{BlackFriday: true},
			now:         time.Date(2025, time.November, 28, 10, 0, 0, 0, time.UTC),
			marketPrice: 90,
			wantNotify:  true,
		},
		{
			name:        "black friday flag off",
			ctx:         models.SeasonalContext{},
			now:         time.Date(2025, time.November, 28, 10, 0, 0, 0, time.UTC),
			marketPrice: 90,
			wantNotify:  false,
		},
		{
			name:        "before black friday window",
			ctx:         models.SeasonalContext{BlackFriday: true},
			now:         time.Date(2025, time.November, 23, 10, 0, 0, 0, time.UTC),
			marketPrice: 90,
			wantNotify:  false,
		},
		{
			name:        "christmas window",
			ctx:         models.SeasonalContext{Christmas: true},
			now:         time.Date(2025, time.December, 26, 10, 0, 0, 0, time.UTC),
			marketPrice: 90,
			wantNotify:  true,
		},
		{
			name:        "december before christmas window",
			ctx:         models.SeasonalContext{Christmas: true},
			now:         time.Date(2025, time.December, 19, 10, 0, 0, 0, time.UTC),
			marketPrice: 90,
			wantNotify:  false,
		},
		{
			name:        "summer sale in july",
			ctx:         models.SeasonalContext{SummerSale: true},
			now:         time.Date(2025, time.July, 15, 10, 0, 0, 0, time.UTC),
			marketPrice: 90,
			wantNotify:  true,
		},
		{
			name:        "in window but price did not drop",
			ctx:         models.SeasonalContext{SummerSale: true},
			now:         time.Date(2025, time.July, 15, 10, 0, 0, 0, time.UTC),
			marketPrice: 100,
			wantNotify:  false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			alert := newAlert(tc.ctx, 100)
			decision := Evaluate(alert, tc.marketPrice, tc.now)
			require.Equal(t, tc.wantNotify, decision.Notify)
		})
	}
}
