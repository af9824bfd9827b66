package alerts

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lvidal/pricealert/internal/models"
	"github.com/lvidal/pricealert/pkg/logger"
	"github.com/lvidal/pricealert/pkg/metrics"
)

// Notification carries everything the dispatch layer needs to deliver a
// price-drop notice for one alert.
type Notification struct {
	Alert       models.PriceAlert
	User        models.User
	ProductName string
	VariantName string
	NewPrice    float64
	TargetPrice *float64
	ProductURL  string
	Message     string
}

// Notifier delivers price-drop notifications. Delivery is best effort: the
// engine applies alert-state updates regardless of the returned error.
type Notifier interface {
	NotifyPriceDrop(ctx context.Context, n Notification) error
}

// Result summarises one evaluation pass.
type Result struct {
	Processed int
	Notified  int
}

// Engine runs the periodic alert-evaluation pass: a single sequential scan
// over all active alerts, comparing each against the current market price
// and dispatching at most one notification per alert per pass.
type Engine struct {
	db       *gorm.DB
	notifier Notifier
	now      func() time.Time
	log      *zap.Logger
}

// Option customises the Engine.
type Option func(*Engine)

// WithNow overrides the clock, primarily for tests.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine constructs an Engine. The notifier may be nil, in which case
// qualifying alerts still have their state updated but nothing is delivered.
func NewEngine(db *gorm.DB, notifier Notifier, opts ...Option) (*Engine, error) {
	if db == nil {
		return nil, errors.New("alert engine: db is required")
	}

	engine := &Engine{
		db:       db,
		notifier: notifier,
		now:      time.Now,
		log:      logger.WithModule("alerts"),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// Run executes one evaluation pass. The pass is bounded by the set of active
// alerts at start; alerts created mid-pass are picked up next time.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	var active []models.PriceAlert
	if err := e.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at ASC").
		Find(&active).Error; err != nil {
		return Result{}, err
	}

	result := Result{Processed: len(active)}
	if len(active) == 0 {
		e.log.Debug("no active alerts")
		return result, nil
	}

	e.log.Info("processing active alerts", zap.Int("count", len(active)))

	for i := range active {
		alert := &active[i]
		metrics.AlertsProcessed.Inc()

		if notified := e.processAlert(ctx, alert); notified {
			result.Notified++
		}
	}

	e.log.Info("alert pass finished",
		zap.Int("processed", result.Processed),
		zap.Int("notified", result.Notified),
	)
	return result, nil
}

// processAlert evaluates and persists a single alert. It returns true when a
// notification was delivered.
func (e *Engine) processAlert(ctx context.Context, alert *models.PriceAlert) bool {
	if alert.ProductID == "" {
		e.log.Warn("alert missing product reference, deactivating", zap.String("alert_id", alert.ID))
		e.applyCheck(ctx, alert, nil, true)
		return false
	}

	var product models.Product
	if err := e.db.WithContext(ctx).First(&product, "id = ?", alert.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			e.log.Warn("product for alert not found, deactivating",
				zap.String("alert_id", alert.ID),
				zap.String("product_id", alert.ProductID),
			)
			e.applyCheck(ctx, alert, nil, true)
		} else {
			e.log.Error("product lookup failed", zap.String("alert_id", alert.ID), zap.Error(err))
			e.applyCheck(ctx, alert, nil, false)
		}
		return false
	}

	productName := product.Name
	marketPrice := product.BasePrice

	if alert.VariantID != nil {
		var variant models.ProductVariant
		err := e.db.WithContext(ctx).First(&variant, "id = ?", *alert.VariantID).Error
		if err != nil || variant.ProductID != alert.ProductID {
			e.log.Warn("variant for alert missing or mismatched, deactivating",
				zap.String("alert_id", alert.ID),
				zap.Stringp("variant_id", alert.VariantID),
			)
			e.applyCheck(ctx, alert, nil, true)
			return false
		}
		marketPrice = variant.Price
		productName = product.Name + " - " + variant.Name
	}

	if marketPrice <= 0 {
		// Ambiguous, likely an unscraped product. Recoverable, so only
		// record the check.
		e.applyCheck(ctx, alert, nil, false)
		return false
	}

	decision := Evaluate(alert, marketPrice, e.now())
	if !decision.Notify {
		if marketPrice != alert.CurrentPrice {
			e.applyCheck(ctx, alert, &marketPrice, false)
		} else {
			e.applyCheck(ctx, alert, nil, false)
		}
		return false
	}

	if decision.TriggeredThreshold >= 0 {
		e.markThresholdTriggered(ctx, alert, decision.TriggeredThreshold)
	}

	notified := e.dispatch(ctx, alert, &product, productName, marketPrice, decision)
	if !notified {
		// Keep the alert armed when the owner could not be notified, but
		// track the observed price.
		e.applyCheck(ctx, alert, &marketPrice, false)
		return false
	}

	e.applyCheck(ctx, alert, &marketPrice, decision.DeactivateAfterNotify)
	return true
}

// dispatch resolves the alert owner and hands the notification to the
// notifier. Returns false when the owner is unresolvable; delivery errors
// still count as dispatched since state updates are decoupled from delivery.
func (e *Engine) dispatch(ctx context.Context, alert *models.PriceAlert, product *models.Product, productName string, marketPrice float64, decision Decision) bool {
	var user models.User
	if err := e.db.WithContext(ctx).First(&user, "id = ?", alert.CreatedBy).Error; err != nil || user.Email == "" {
		e.log.Warn("alert owner missing or has no email, skipping notification",
			zap.String("alert_id", alert.ID),
			zap.String("user_id", alert.CreatedBy),
		)
		return false
	}

	if e.notifier == nil {
		return true
	}

	err := e.notifier.NotifyPriceDrop(ctx, Notification{
		Alert:       *alert,
		User:        user,
		ProductName: productName,
		VariantName: alert.VariantName,
		NewPrice:    marketPrice,
		TargetPrice: alert.TargetPrice,
		ProductURL:  product.URL,
		Message:     decision.Message,
	})
	if err != nil {
		// Best effort: log and move on, the alert state is updated anyway.
		e.log.Error("notification dispatch failed",
			zap.String("alert_id", alert.ID),
			zap.Error(err),
		)
	}
	return true
}

// markThresholdTriggered flips one threshold's triggered flag so it never
// notifies twice. The alert itself stays active for remaining thresholds.
func (e *Engine) markThresholdTriggered(ctx context.Context, alert *models.PriceAlert, idx int) {
	thresholds := alert.MultipleThresholds.Data()
	if idx < 0 || idx >= len(thresholds) {
		return
	}

	now := e.now()
	thresholds[idx].Triggered = true
	thresholds[idx].NotifiedAt = &now
	alert.MultipleThresholds = datatypes.NewJSONType(thresholds)

	if err := e.db.WithContext(ctx).Model(&models.PriceAlert{}).
		Where("id = ?", alert.ID).
		Update("multiple_thresholds", alert.MultipleThresholds).Error; err != nil {
		e.log.Error("persist triggered threshold failed", zap.String("alert_id", alert.ID), zap.Error(err))
	}
}

// applyCheck records the outcome of one alert check: lastChecked always,
// the new baseline price when one was observed, deactivation when requested,
// and a price-history entry when the observed price is genuinely new.
func (e *Engine) applyCheck(ctx context.Context, alert *models.PriceAlert, newPrice *float64, deactivate bool) {
	now := e.now()
	updates := map[string]any{"last_checked_at": now}
	if newPrice != nil {
		updates["current_price"] = *newPrice
		alert.CurrentPrice = *newPrice
	}
	if deactivate {
		updates["is_active"] = false
		alert.IsActive = false
	}
	alert.LastCheckedAt = &now

	if err := e.db.WithContext(ctx).Model(&models.PriceAlert{}).
		Where("id = ?", alert.ID).
		Updates(updates).Error; err != nil {
		e.log.Error("persist alert check failed", zap.String("alert_id", alert.ID), zap.Error(err))
		return
	}

	if newPrice != nil && alert.ProductID != "" {
		e.recordHistory(ctx, alert.ProductID, alert.VariantID, *newPrice, now)
	}
}

// recordHistory appends a price-history entry unless the most recent entry
// for the same product/variant stream already carries this price.
func (e *Engine) recordHistory(ctx context.Context, productID string, variantID *string, price float64, now time.Time) {
	query := e.db.WithContext(ctx).Where("product_id = ?", productID)
	if variantID != nil {
		query = query.Where("variant_id = ?", *variantID)
	} else {
		query = query.Where("variant_id IS NULL")
	}

	var last models.PriceHistoryEntry
	err := query.Order("recorded_at DESC").First(&last).Error
	if err == nil && last.Price == price {
		return
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		e.log.Error("price history lookup failed", zap.String("product_id", productID), zap.Error(err))
		return
	}

	entry := models.PriceHistoryEntry{
		ProductID:  productID,
		VariantID:  variantID,
		Price:      price,
		RecordedAt: now,
	}
	if err := e.db.WithContext(ctx).Create(&entry).Error; err != nil {
		e.log.Error("price history insert failed", zap.String("product_id", productID), zap.Error(err))
	}
}
