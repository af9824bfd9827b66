package models

import "time"

// User describes a registered account. Email is the notification identity;
// EmailVerifiedAt is nil until the verification token is redeemed.
type User struct {
	BaseModel

	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	Name string `json:"name"`

	IsActive        bool       `gorm:"default:true" json:"is_active"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`

	LastLoginAt *time.Time `json:"last_login_at"`
}

// EmailVerified reports whether the account completed email verification.
func (u *User) EmailVerified() bool {
	return u.EmailVerifiedAt != nil
}
