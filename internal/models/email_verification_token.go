package models

import "time"

// EmailVerificationToken is a single-use, time-boxed verification token.
// At most one row exists per user; issuing a new token purges older ones.
type EmailVerificationToken struct {
	BaseModel

	UserID    string    `gorm:"type:uuid;not null;index" json:"user_id"`
	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}

// Expired reports whether the token is past its validity window.
func (t *EmailVerificationToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}
