package models

import "time"

// OTP purposes scoping a code to the flow that issued it.
const (
	PurposeEmailVerification = "email_verification"
	PurposePasswordReset     = "password_reset"
)

// OTPValidity is the window during which an issued code is accepted.
const OTPValidity = 10 * time.Minute

// Otp stores a purpose-scoped one-time passcode. At most one usable code per
// (email, purpose) exists at a time; issuance deletes stale predecessors.
type Otp struct {
	BaseModel

	Email     string    `gorm:"index;not null" json:"email"`
	OtpCode   string    `gorm:"index;not null" json:"-"`
	Purpose   string    `gorm:"index;not null" json:"purpose"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	Used      bool      `gorm:"default:false" json:"used"`

	UserID string `gorm:"type:uuid;index" json:"user_id"`
}

// ExpiredAt reports whether the code is past its validity window at the given instant.
func (o *Otp) ExpiredAt(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
