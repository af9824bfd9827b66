package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lvidal/pricealert/internal/models"
	"github.com/lvidal/pricealert/internal/services"
	"github.com/lvidal/pricealert/pkg/response"
)

// AlertHandler exposes price-alert CRUD endpoints.
type AlertHandler struct {
	alerts *services.AlertService
}

// NewAlertHandler constructs an AlertHandler.
func NewAlertHandler(alerts *services.AlertService) (*AlertHandler, error) {
	if alerts == nil {
		return nil, errors.New("alert handler: alert service is required")
	}
	return &AlertHandler{alerts: alerts}, nil
}

type thresholdRequest struct {
	Percentage float64 `json:"percentage" validate:"gt=0,lte=100"`
}

type seasonalContextRequest struct {
	BlackFriday bool `json:"black_friday"`
	Christmas   bool `json:"christmas"`
	SummerSale  bool `json:"summer_sale"`
}

type createAlertRequest struct {
	ProductID   string  `json:"product_id" validate:"required"`
	VariantID   *string `json:"variant_id"`
	ProductName string  `json:"product_name" validate:"max=200"`
	VariantName string  `json:"variant_name" validate:"max=200"`

	CurrentPrice float64  `json:"current_price" validate:"gte=0"`
	TargetPrice  *float64 `json:"target_price" validate:"omitempty,gt=0"`

	UserContact string `json:"user_contact" validate:"required,max=200"`
	ContactType string `json:"contact_type" validate:"required,oneof=email whatsapp telegram"`

	AlertType           string                  `json:"alert_type" validate:"omitempty,oneof=fixed_price percentage any_drop seasonal"`
	PercentageThreshold *float64                `json:"percentage_threshold" validate:"omitempty,gt=0,lte=100"`
	MultipleThresholds  []thresholdRequest      `json:"multiple_thresholds" validate:"dive"`
	SeasonalContext     *seasonalContextRequest `json:"seasonal_context"`

	MaxDailyNotifications *int  `json:"max_daily_notifications" validate:"omitempty,gt=0"`
	GroupSimilarAlerts    *bool `json:"group_similar_alerts"`
}

// Create registers a price alert for the caller.
func (h *AlertHandler) Create(c *gin.Context) {
	var req createAlertRequest
	if !bindAndValidate(c, &req) {
		return
	}

	input := services.CreateAlertInput{
		ProductID:             req.ProductID,
		VariantID:             req.VariantID,
		ProductName:           req.ProductName,
		VariantName:           req.VariantName,
		CurrentPrice:          req.CurrentPrice,
		TargetPrice:           req.TargetPrice,
		UserContact:           req.UserContact,
		ContactType:           req.ContactType,
		AlertType:             req.AlertType,
		PercentageThreshold:   req.PercentageThreshold,
		MaxDailyNotifications: req.MaxDailyNotifications,
		GroupSimilarAlerts:    req.GroupSimilarAlerts,
		CreatedBy:             currentUserID(c),
	}
	for _, t := range req.MultipleThresholds {
		input.MultipleThresholds = append(input.MultipleThresholds, models.Threshold{Percentage: t.Percentage})
	}
	if req.SeasonalContext != nil {
		input.SeasonalContext = &models.SeasonalContext{
			BlackFriday: req.SeasonalContext.BlackFriday,
			Christmas:   req.SeasonalContext.Christmas,
			SummerSale:  req.SeasonalContext.SummerSale,
		}
	}

	alert, err := h.alerts.Create(requestContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"alert": alert})
}

// List returns the caller's alerts with their products.
func (h *AlertHandler) List(c *gin.Context) {
	alerts, err := h.alerts.ListForUser(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"alerts": alerts})
}

// Get returns a single alert the caller owns.
func (h *AlertHandler) Get(c *gin.Context) {
	alert, err := h.alerts.Get(requestContext(c), c.Param("id"), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"alert": alert})
}

type updateAlertRequest struct {
	TargetPrice *float64 `json:"target_price" validate:"omitempty,gt=0"`
	UserContact string   `json:"user_contact" validate:"max=200"`
	ContactType string   `json:"contact_type" validate:"omitempty,oneof=email whatsapp telegram"`
	IsActive    *bool    `json:"is_active"`
}

// Update patches an owned alert.
func (h *AlertHandler) Update(c *gin.Context) {
	var req updateAlertRequest
	if !bindAndValidate(c, &req) {
		return
	}

	alert, err := h.alerts.Update(requestContext(c), c.Param("id"), currentUserID(c), services.UpdateAlertInput{
		TargetPrice: req.TargetPrice,
		UserContact: req.UserContact,
		ContactType: req.ContactType,
		IsActive:    req.IsActive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"alert": alert})
}

// Delete removes an owned alert.
func (h *AlertHandler) Delete(c *gin.Context) {
	if err := h.alerts.Delete(requestContext(c), c.Param("id"), currentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
