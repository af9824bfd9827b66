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

// DefaultMaxDailyNotifications caps per-alert notifications when the caller
// does not override the throttle settings.
const DefaultMaxDailyNotifications = 3

// CreateAlertInput defines attributes for registering a price alert.
type CreateAlertInput struct {
	ProductID   string
	VariantID   *string
	ProductName string
	VariantName string

	CurrentPrice float64
	TargetPrice  *float64

	UserContact string
	ContactType string

	AlertType           string
	PercentageThreshold *float64
	MultipleThresholds  []models.Threshold
	SeasonalContext     *models.SeasonalContext

	MaxDailyNotifications *int
	GroupSimilarAlerts    *bool

	CreatedBy string
}

// UpdateAlertInput defines the owner-editable fields of an alert.
type UpdateAlertInput struct {
	TargetPrice *float64
	UserContact string
	ContactType string
	IsActive    *bool
}

// AlertWithProduct pairs an alert with its product for list views. Product
// is nil when the referenced product no longer exists.
type AlertWithProduct struct {
	models.PriceAlert
	Product *models.Product `json:"product,omitempty"`
}

// AlertService manages price-alert CRUD on behalf of owners. The periodic
// evaluation itself lives in the alerts package.
type AlertService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAlertService constructs an AlertService.
func NewAlertService(db *gorm.DB) (*AlertService, error) {
	if db == nil {
		return nil, errors.New("alert service: db is required")
	}
	return &AlertService{db: db, now: time.Now}, nil
}

// Create registers an alert. At most one active alert may exist per
// (owner, product, variant) tuple; duplicates are rejected. The alert type
// is inferred from the provided parameters when percentage or target-price
// fields are present, with percentage fields taking precedence.
func (s *AlertService) Create(ctx context.Context, input CreateAlertInput) (*models.PriceAlert, error) {
	ctx = ensureContext(ctx)
	if input.CreatedBy == "" {
		return nil, apperrors.ErrUnauthorized
	}
	if input.ProductID == "" {
		return nil, apperrors.NewBadRequest("product id is required")
	}
	if strings.TrimSpace(input.UserContact) == "" {
		return nil, apperrors.NewBadRequest("contact is required")
	}
	if !validContactType(input.ContactType) {
		return nil, apperrors.NewBadRequest("contact type must be email, whatsapp, or telegram")
	}

	alertType := inferAlertType(input)

	settings := models.NotificationSettings{
		MaxDailyNotifications: DefaultMaxDailyNotifications,
		GroupSimilarAlerts:    true,
	}
	if input.MaxDailyNotifications != nil && *input.MaxDailyNotifications > 0 {
		settings.MaxDailyNotifications = *input.MaxDailyNotifications
	}
	if input.GroupSimilarAlerts != nil {
		settings.GroupSimilarAlerts = *input.GroupSimilarAlerts
	}

	now := s.now().UTC()
	alert := models.PriceAlert{
		ProductID:            input.ProductID,
		VariantID:            input.VariantID,
		ProductName:          strings.TrimSpace(input.ProductName),
		VariantName:          strings.TrimSpace(input.VariantName),
		CurrentPrice:         input.CurrentPrice,
		TargetPrice:          input.TargetPrice,
		UserContact:          strings.TrimSpace(input.UserContact),
		ContactType:          input.ContactType,
		IsActive:             true,
		LastCheckedAt:        &now,
		CreatedBy:            input.CreatedBy,
		AlertType:            alertType,
		PercentageThreshold:  input.PercentageThreshold,
		MultipleThresholds:   datatypes.NewJSONType(input.MultipleThresholds),
		NotificationSettings: datatypes.NewJSONType(settings),
	}
	if input.SeasonalContext != nil {
		alert.SeasonalContext = datatypes.NewJSONType(*input.SeasonalContext)
	}

	// The duplicate check and the insert run in one transaction to narrow
	// the read-then-insert window for concurrent requests on the same key.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&models.PriceAlert{}).
			Where("created_by = ? AND product_id = ? AND is_active = ?", input.CreatedBy, input.ProductID, true)
		if input.VariantID != nil {
			query = query.Where("variant_id = ?", *input.VariantID)
		} else {
			query = query.Where("variant_id IS NULL")
		}

		var count int64
		if err := query.Count(&count).Error; err != nil {
			return fmt.Errorf("alert service: check existing: %w", err)
		}
		if count > 0 {
			return apperrors.ErrAlertExists
		}

		return tx.Create(&alert).Error
	})
	if err != nil {
		return nil, err
	}

	return &alert, nil
}

// Update patches owner-editable fields of an alert.
func (s *AlertService) Update(ctx context.Context, alertID, ownerID string, input UpdateAlertInput) (*models.PriceAlert, error) {
	ctx = ensureContext(ctx)
	alert, err := s.ownedAlert(ctx, alertID, ownerID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.TargetPrice != nil {
		updates["target_price"] = *input.TargetPrice
	}
	if contact := strings.TrimSpace(input.UserContact); contact != "" {
		updates["user_contact"] = contact
	}
	if input.ContactType != "" {
		if !validContactType(input.ContactType) {
			return nil, apperrors.NewBadRequest("contact type must be email, whatsapp, or telegram")
		}
		updates["contact_type"] = input.ContactType
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
		updates["last_checked_at"] = s.now().UTC()
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(alert).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("alert service: update alert: %w", err)
		}
	}

	return s.ownedAlert(ctx, alertID, ownerID)
}

// SetActive toggles an alert and stamps lastChecked.
func (s *AlertService) SetActive(ctx context.Context, alertID, ownerID string, active bool) error {
	ctx = ensureContext(ctx)
	alert, err := s.ownedAlert(ctx, alertID, ownerID)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Model(alert).Updates(map[string]any{
		"is_active":       active,
		"last_checked_at": s.now().UTC(),
	}).Error; err != nil {
		return fmt.Errorf("alert service: set active: %w", err)
	}
	return nil
}

// Delete removes an alert entirely.
func (s *AlertService) Delete(ctx context.Context, alertID, ownerID string) error {
	ctx = ensureContext(ctx)
	alert, err := s.ownedAlert(ctx, alertID, ownerID)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(alert).Error; err != nil {
		return fmt.Errorf("alert service: delete alert: %w", err)
	}
	return nil
}

// ListForUser returns the caller's alerts, newest first, each paired with
// its product when the product still exists.
func (s *AlertService) ListForUser(ctx context.Context, ownerID string) ([]AlertWithProduct, error) {
	ctx = ensureContext(ctx)
	if ownerID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	var alerts []models.PriceAlert
	if err := s.db.WithContext(ctx).
		Where("created_by = ?", ownerID).
		Order("created_at DESC").
		Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("alert service: list alerts: %w", err)
	}

	result := make([]AlertWithProduct, 0, len(alerts))
	for _, alert := range alerts {
		row := AlertWithProduct{PriceAlert: alert}
		if alert.ProductID != "" {
			var product models.Product
			if err := s.db.WithContext(ctx).First(&product, "id = ?", alert.ProductID).Error; err == nil {
				row.Product = &product
			}
		}
		result = append(result, row)
	}
	return result, nil
}

// Get returns a single alert the caller owns.
func (s *AlertService) Get(ctx context.Context, alertID, ownerID string) (*models.PriceAlert, error) {
	ctx = ensureContext(ctx)
	return s.ownedAlert(ctx, alertID, ownerID)
}

func (s *AlertService) ownedAlert(ctx context.Context, alertID, ownerID string) (*models.PriceAlert, error) {
	if ownerID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	if alertID == "" {
		return nil, apperrors.NewBadRequest("alert id is required")
	}

	var alert models.PriceAlert
	if err := s.db.WithContext(ctx).First(&alert, "id = ?", alertID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("alert service: get alert: %w", err)
	}
	if alert.CreatedBy != ownerID {
		return nil, apperrors.ErrNotFound
	}
	return &alert, nil
}

// inferAlertType resolves the stored alert type. Explicit types are kept
// unless parameter presence implies otherwise: a target price implies
// fixed_price, and any percentage field wins over that.
func inferAlertType(input CreateAlertInput) string {
	alertType := defaultIfEmpty(input.AlertType, models.AlertTypeAnyDrop)
	if input.TargetPrice != nil {
		alertType = models.AlertTypeFixedPrice
	}
	if input.PercentageThreshold != nil || len(input.MultipleThresholds) > 0 {
		alertType = models.AlertTypePercentage
	}
	return alertType
}

func validContactType(contactType string) bool {
	switch contactType {
	case models.ContactTypeEmail, models.ContactTypeWhatsApp, models.ContactTypeTelegram:
		return true
	}
	return false
}
