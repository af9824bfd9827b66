package models

import (
	"time"

	"gorm.io/datatypes"
)

// Alert types. Rows created before the alert-type column existed have an
// empty value and are treated as AlertTypeAnyDrop.
const (
	AlertTypeFixedPrice = "fixed_price"
	AlertTypePercentage = "percentage"
	AlertTypeAnyDrop    = "any_drop"
	AlertTypeSeasonal   = "seasonal"
)

// Contact channels. Only email delivery is implemented; the others are
// acknowledged without dispatch.
const (
	ContactTypeEmail    = "email"
	ContactTypeWhatsApp = "whatsapp"
	ContactTypeTelegram = "telegram"
)

// Threshold is one entry of a multi-threshold percentage alert. Triggered
// flips to true after the threshold notifies; it never notifies again.
type Threshold struct {
	Percentage float64    `json:"percentage"`
	Triggered  bool       `json:"triggered"`
	NotifiedAt *time.Time `json:"notified_at,omitempty"`
}

// SeasonalContext gates a seasonal alert to specific calendar windows.
type SeasonalContext struct {
	BlackFriday bool `json:"is_black_friday_alert"`
	Christmas   bool `json:"is_christmas_alert"`
	SummerSale  bool `json:"is_summer_sale_alert"`
}

// NotificationSettings throttles outbound notifications per alert.
type NotificationSettings struct {
	MaxDailyNotifications int        `json:"max_daily_notifications"`
	LastNotificationDate  *time.Time `json:"last_notification_date,omitempty"`
	NotificationsToday    int        `json:"notifications_today"`
	GroupSimilarAlerts    bool       `json:"group_similar_alerts"`
}

// PriceAlert watches a product (or one of its variants) for a qualifying
// price change. CurrentPrice is the baseline the evaluation pass compares
// the market price against; it tracks the latest observed price.
type PriceAlert struct {
	BaseModel

	ProductID string  `gorm:"type:uuid;index:idx_alerts_product_variant" json:"product_id"`
	VariantID *string `gorm:"type:uuid;index:idx_alerts_product_variant" json:"variant_id,omitempty"`

	ProductName string `gorm:"not null" json:"product_name"`
	VariantName string `json:"variant_name,omitempty"`

	CurrentPrice float64  `gorm:"not null" json:"current_price"`
	TargetPrice  *float64 `json:"target_price,omitempty"`

	UserContact string `gorm:"not null" json:"user_contact"`
	ContactType string `gorm:"not null" json:"contact_type"`

	IsActive      bool       `gorm:"default:true;index" json:"is_active"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	CreatedBy     string     `gorm:"type:uuid;not null;index" json:"created_by"`

	AlertType           string   `json:"alert_type,omitempty"`
	PercentageThreshold *float64 `json:"percentage_threshold,omitempty"`

	MultipleThresholds   datatypes.JSONType[[]Threshold]          `json:"multiple_thresholds"`
	SeasonalContext      datatypes.JSONType[SeasonalContext]      `json:"seasonal_context"`
	NotificationSettings datatypes.JSONType[NotificationSettings] `json:"notification_settings"`
}

// EffectiveType resolves the alert type, defaulting legacy rows to any_drop.
func (a *PriceAlert) EffectiveType() string {
	if a.AlertType == "" {
		return AlertTypeAnyDrop
	}
	return a.AlertType
}
