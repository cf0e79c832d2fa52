package models

import (
	"time"

	"gorm.io/datatypes"
)

// Login types distinguishing password-based accounts from federated ones.
const (
	LoginTypeCredential = "credential"
	LoginTypeGoogle     = "google"
)

// DefaultUserType is the role tag assigned to new registrations.
const DefaultUserType = "member"

// User describes an account. Credential users always carry a password hash;
// Google-linked users are always verified.
type User struct {
	BaseModel

	Email    string  `gorm:"uniqueIndex;not null" json:"email"`
	Username *string `gorm:"uniqueIndex" json:"username"`
	Password *string `json:"-"`

	FullName     string          `json:"full_name"`
	Phone        *string         `json:"phone"`
	Gender       *string         `json:"gender"`
	DateOfBirth  *datatypes.Date `json:"date_of_birth"`
	ProfilePhoto *string         `json:"profile_photo"`

	UserType  string  `gorm:"default:member" json:"user_type"`
	LoginType string  `gorm:"default:credential" json:"login_type"`
	GoogleID  *string `gorm:"index" json:"-"`

	IsVerified bool `gorm:"default:false" json:"is_verified"`
	IsActive   bool `gorm:"default:true" json:"is_active"`

	LastLogin *time.Time `json:"last_login"`

	Otps          []Otp          `gorm:"foreignKey:UserID" json:"-"`
	RefreshTokens []RefreshToken `gorm:"foreignKey:UserID" json:"-"`
}

// HasPassword reports whether the account has a usable password hash.
func (u *User) HasPassword() bool {
	return u.Password != nil && *u.Password != ""
}
