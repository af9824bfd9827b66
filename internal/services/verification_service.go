package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lvidal/pricealert/internal/models"
	apperrors "github.com/lvidal/pricealert/pkg/errors"
	"github.com/lvidal/pricealert/pkg/logger"
	"github.com/lvidal/pricealert/pkg/mail"
	"github.com/lvidal/pricealert/pkg/metrics"
)

// DefaultTokenTTL is how long an email verification token stays redeemable.
const DefaultTokenTTL = 24 * time.Hour

// VerificationService manages email verification tokens: issuing them on
// registration, redeeming them from the verification link, and sweeping
// expired ones.
type VerificationService struct {
	db       *gorm.DB
	email    *EmailService
	tokenTTL time.Duration
	now      func() time.Time
	log      *zap.Logger
}

// VerificationOption customises a VerificationService.
type VerificationOption func(*VerificationService)

// WithTokenTTL overrides the token lifetime.
func WithTokenTTL(ttl time.Duration) VerificationOption {
	return func(s *VerificationService) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithVerificationNow overrides the clock, primarily for tests.
func WithVerificationNow(now func() time.Time) VerificationOption {
	return func(s *VerificationService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewVerificationService constructs a VerificationService. The email service
// may be nil, in which case tokens are issued without sending mail.
func NewVerificationService(db *gorm.DB, email *EmailService, opts ...VerificationOption) (*VerificationService, error) {
	if db == nil {
		return nil, errors.New("verification service: db is required")
	}

	svc := &VerificationService{
		db:       db,
		email:    email,
		tokenTTL: DefaultTokenTTL,
		now:      time.Now,
		log:      logger.WithModule("verification"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Issue creates a verification token for the user and emails the
// verification link. Already-verified accounts and accounts with a pending
// unexpired token are skipped, so re-issuing is an idempotent no-op while a
// token is live. Stale tokens are purged before the new one is written.
func (s *VerificationService) Issue(ctx context.Context, userID string) (*models.EmailVerificationToken, error) {
	ctx = ensureContext(ctx)

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("verification service: get user: %w", err)
	}

	if user.EmailVerified() {
		metrics.VerificationEmails.WithLabelValues("skipped").Inc()
		return nil, nil
	}

	now := s.now().UTC()

	var pending models.EmailVerificationToken
	err := s.db.WithContext(ctx).
		Where("user_id = ?", user.ID).
		First(&pending).Error
	if err == nil && !pending.Expired(now) {
		metrics.VerificationEmails.WithLabelValues("skipped").Inc()
		return &pending, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("verification service: check pending token: %w", err)
	}

	token := models.EmailVerificationToken{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(s.tokenTTL),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).
			Delete(&models.EmailVerificationToken{}).Error; err != nil {
			return fmt.Errorf("verification service: purge old tokens: %w", err)
		}
		return tx.Create(&token).Error
	})
	if err != nil {
		return nil, err
	}

	if s.email != nil {
		if err := s.email.SendVerification(ctx, user.Email, user.Name, token.Token); err != nil {
			if errors.Is(err, mail.ErrSMTPDisabled) {
				s.log.Warn("smtp disabled, verification email not sent",
					zap.String("user_id", user.ID),
				)
			} else {
				// The token stays valid; the user can request another email.
				s.log.Error("verification email failed",
					zap.String("user_id", user.ID),
					zap.Error(err),
				)
			}
			metrics.VerificationEmails.WithLabelValues("failure").Inc()
			return &token, nil
		}
		metrics.VerificationEmails.WithLabelValues("sent").Inc()
	}

	return &token, nil
}

// Redeem consumes a verification token. Unknown tokens fail with
// ErrTokenInvalid. Expired tokens are deleted and fail with ErrTokenExpired.
// Valid tokens mark the account verified and are deleted, so a second redeem
// of the same token fails as invalid.
func (s *VerificationService) Redeem(ctx context.Context, tokenValue string) (*models.User, error) {
	ctx = ensureContext(ctx)
	if tokenValue == "" {
		return nil, apperrors.ErrTokenInvalid
	}

	var token models.EmailVerificationToken
	if err := s.db.WithContext(ctx).First(&token, "token = ?", tokenValue).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTokenInvalid
		}
		return nil, fmt.Errorf("verification service: get token: %w", err)
	}

	now := s.now().UTC()
	if token.Expired(now) {
		if err := s.db.WithContext(ctx).Delete(&token).Error; err != nil {
			s.log.Error("delete expired token failed", zap.String("token_id", token.ID), zap.Error(err))
		}
		return nil, apperrors.ErrTokenExpired
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", token.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Orphaned token; drop it and treat the redeem as invalid.
			_ = s.db.WithContext(ctx).Delete(&token).Error
			return nil, apperrors.ErrTokenInvalid
		}
		return nil, fmt.Errorf("verification service: get user: %w", err)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Update("email_verified_at", now).Error; err != nil {
			return fmt.Errorf("verification service: mark verified: %w", err)
		}
		return tx.Delete(&token).Error
	})
	if err != nil {
		return nil, err
	}

	user.EmailVerifiedAt = &now
	s.log.Info("email verified", zap.String("user_id", user.ID))
	return &user, nil
}

// Sweep backs the periodic verification-email job: it drops expired tokens
// and issues a token plus email to every active unverified user that has no
// pending one. Returns the number of tokens issued.
func (s *VerificationService) Sweep(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	res := s.db.WithContext(ctx).
		Where("expires_at <= ?", s.now().UTC()).
		Delete(&models.EmailVerificationToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("verification service: sweep tokens: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.log.Info("expired verification tokens removed", zap.Int64("count", res.RowsAffected))
	}

	var pendingUsers []models.User
	if err := s.db.WithContext(ctx).
		Where("email_verified_at IS NULL AND is_active = ?", true).
		Find(&pendingUsers).Error; err != nil {
		return 0, fmt.Errorf("verification service: list unverified users: %w", err)
	}

	var issued int64
	for i := range pendingUsers {
		var pending int64
		if err := s.db.WithContext(ctx).Model(&models.EmailVerificationToken{}).
			Where("user_id = ?", pendingUsers[i].ID).
			Count(&pending).Error; err != nil {
			return issued, fmt.Errorf("verification service: count pending tokens: %w", err)
		}
		if pending > 0 {
			continue
		}
		if _, err := s.Issue(ctx, pendingUsers[i].ID); err != nil {
			s.log.Error("sweep issue failed",
				zap.String("user_id", pendingUsers[i].ID),
				zap.Error(err),
			)
			continue
		}
		issued++
	}

	if issued > 0 {
		s.log.Info("verification emails issued", zap.Int64("count", issued))
	}
	return issued, nil
}
