package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lvidal/pricealert/internal/alerts"
	"github.com/lvidal/pricealert/internal/models"
	"github.com/lvidal/pricealert/pkg/logger"
	"github.com/lvidal/pricealert/pkg/metrics"
)

// NotificationService routes price-drop notifications to the channel the
// alert asked for. Email is the only channel with real delivery; whatsapp
// and telegram are accepted but only logged until those integrations land.
type NotificationService struct {
	email *EmailService
	log   *zap.Logger
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(email *EmailService) (*NotificationService, error) {
	if email == nil {
		return nil, errors.New("notification service: email service is required")
	}
	return &NotificationService{
		email: email,
		log:   logger.WithModule("notifications"),
	}, nil
}

// NotifyPriceDrop implements alerts.Notifier.
func (s *NotificationService) NotifyPriceDrop(ctx context.Context, n alerts.Notification) error {
	channel := n.Alert.ContactType
	if channel == "" {
		channel = models.ContactTypeEmail
	}

	switch channel {
	case models.ContactTypeEmail:
		err := s.email.SendPriceDrop(ctx, PriceDropEmailInput{
			To:          n.User.Email,
			Name:        n.User.Name,
			ProductName: n.ProductName,
			VariantName: n.VariantName,
			NewPrice:    n.NewPrice,
			TargetPrice: n.TargetPrice,
			ProductURL:  n.ProductURL,
			Message:     n.Message,
		})
		if err != nil {
			metrics.NotificationsSent.WithLabelValues(channel, "failure").Inc()
			return fmt.Errorf("notification service: send email: %w", err)
		}
		metrics.NotificationsSent.WithLabelValues(channel, "success").Inc()
		s.log.Info("price drop email sent",
			zap.String("alert_id", n.Alert.ID),
			zap.String("to", n.User.Email),
			zap.Float64("new_price", n.NewPrice),
		)
		return nil

	case models.ContactTypeWhatsApp, models.ContactTypeTelegram:
		// No provider wired yet; record the intent so the pass stays honest.
		metrics.NotificationsSent.WithLabelValues(channel, "skipped").Inc()
		s.log.Info("notification channel not yet integrated, logging only",
			zap.String("alert_id", n.Alert.ID),
			zap.String("channel", channel),
			zap.String("contact", n.Alert.UserContact),
			zap.String("message", n.Message),
		)
		return nil

	default:
		metrics.NotificationsSent.WithLabelValues(channel, "failure").Inc()
		return fmt.Errorf("notification service: unknown channel %q", channel)
	}
}
