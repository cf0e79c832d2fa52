package models

import "time"

// RefreshTokenValidity is how long a persisted refresh token may be redeemed.
const RefreshTokenValidity = 7 * 24 * time.Hour

// RefreshToken is a persisted session handle. A token is single-use: rotation
// or expiry detection deletes the record, so a redeemed token can never be
// presented again.
type RefreshToken struct {
	BaseModel

	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	UserID    string    `gorm:"type:uuid;index;not null" json:"user_id"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// ExpiredAt reports whether the token is stale at the given instant.
func (r *RefreshToken) ExpiredAt(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
