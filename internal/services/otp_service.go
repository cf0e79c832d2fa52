package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"gorm.io/gorm"

	"github.com/zacode-app/zacode-auth/internal/models"
	"github.com/zacode-app/zacode-auth/pkg/metrics"
)

// Storage-level OTP errors. AuthService maps them onto flow-specific API errors.
var (
	ErrOtpNotFound = errors.New("otp: not found")
	ErrOtpExpired  = errors.New("otp: expired")
)

// DeletionScope selects which prior codes are removed before issuing a new
// one. The scopes differ per endpoint: login replaces everything, resend only
// replaces codes that were never used.
type DeletionScope int

const (
	// ScopeNone leaves prior codes untouched (first issue during registration).
	ScopeNone DeletionScope = iota
	// ScopeAll removes every prior code for (email, purpose).
	ScopeAll
	// ScopeUnused removes only unused prior codes for (email, purpose).
	ScopeUnused
)

// OtpOption customises the OtpService.
type OtpOption func(*OtpService)

// WithOtpClock injects a custom time source.
func WithOtpClock(clock func() time.Time) OtpOption {
	return func(s *OtpService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithOtpValidity overrides the code validity window.
func WithOtpValidity(d time.Duration) OtpOption {
	return func(s *OtpService) {
		if d > 0 {
			s.validity = d
		}
	}
}

// OtpService generates, issues, and verifies purpose-scoped one-time passcodes.
type OtpService struct {
	db       *gorm.DB
	validity time.Duration
	now      func() time.Time
}

// NewOtpService constructs an OtpService backed by the provided database.
func NewOtpService(db *gorm.DB, opts ...OtpOption) (*OtpService, error) {
	if db == nil {
		return nil, errors.New("otp service: db is required")
	}

	svc := &OtpService{
		db:       db,
		validity: models.OTPValidity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Generate draws a 6-digit code uniformly from [100000, 999999] using a
// cryptographically secure source.
func (s *OtpService) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("otp: generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Issue deletes prior codes per the requested scope and persists a fresh one.
// Delete and insert run in one transaction so a concurrent issue for the same
// (email, purpose) cannot leave two usable codes behind.
func (s *OtpService) Issue(ctx context.Context, email, purpose, userID string, scope DeletionScope) (*models.Otp, error) {
	code, err := s.Generate()
	if err != nil {
		return nil, err
	}

	otp := &models.Otp{
		Email:     email,
		OtpCode:   code,
		Purpose:   purpose,
		ExpiresAt: s.now().Add(s.validity),
		UserID:    userID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch scope {
		case ScopeAll:
			if err := tx.Where("email = ? AND purpose = ?", email, purpose).
				Delete(&models.Otp{}).Error; err != nil {
				return err
			}
		case ScopeUnused:
			if err := tx.Where("email = ? AND purpose = ? AND used = ?", email, purpose, false).
				Delete(&models.Otp{}).Error; err != nil {
				return err
			}
		}
		return tx.Create(otp).Error
	})
	if err != nil {
		return nil, fmt.Errorf("otp: issue: %w", err)
	}

	metrics.OTPIssued.WithLabelValues(purpose).Inc()
	return otp, nil
}

// Verify returns the newest unused code matching (email, code, purpose), or
// ErrOtpNotFound / ErrOtpExpired.
func (s *OtpService) Verify(ctx context.Context, email, code, purpose string) (*models.Otp, error) {
	var otp models.Otp
	err := s.db.WithContext(ctx).
		Where("email = ? AND otp_code = ? AND purpose = ? AND used = ?", email, code, purpose, false).
		Order("created_at DESC").
		First(&otp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOtpNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("otp: find: %w", err)
	}

	if otp.ExpiredAt(s.now()) {
		return nil, ErrOtpExpired
	}
	return &otp, nil
}

// VerifyByCode is the legacy lookup keyed by code value alone, used by the
// verify-email and reset-password compatibility endpoints. Kept separate so
// the primary path retains its (email, code) match requirement.
func (s *OtpService) VerifyByCode(ctx context.Context, code, purpose string) (*models.Otp, error) {
	var otp models.Otp
	err := s.db.WithContext(ctx).
		Where("otp_code = ? AND purpose = ? AND used = ?", code, purpose, false).
		Order("created_at DESC").
		First(&otp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOtpNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("otp: find by code: %w", err)
	}

	if otp.ExpiredAt(s.now()) {
		return nil, ErrOtpExpired
	}
	return &otp, nil
}

// FindLatest returns the newest code matching (email, code, purpose)
// regardless of its used flag. The second phase of the password reset uses
// this because the first phase may already have consumed the code.
func (s *OtpService) FindLatest(ctx context.Context, email, code, purpose string) (*models.Otp, error) {
	var otp models.Otp
	err := s.db.WithContext(ctx).
		Where("email = ? AND otp_code = ? AND purpose = ?", email, code, purpose).
		Order("created_at DESC").
		First(&otp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOtpNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("otp: find latest: %w", err)
	}

	if otp.ExpiredAt(s.now()) {
		return nil, ErrOtpExpired
	}
	return &otp, nil
}

// Consume marks a code as used. A consumed code never verifies again.
func (s *OtpService) Consume(ctx context.Context, otp *models.Otp) error {
	if err := s.db.WithContext(ctx).
		Model(otp).
		Update("used", true).Error; err != nil {
		return fmt.Errorf("otp: consume: %w", err)
	}
	otp.Used = true
	return nil
}

// PurgeUsed bulk-deletes consumed codes for (email, purpose) so stale records
// do not accumulate.
func (s *OtpService) PurgeUsed(ctx context.Context, email, purpose string) error {
	if err := s.db.WithContext(ctx).
		Where("email = ? AND purpose = ? AND used = ?", email, purpose, true).
		Delete(&models.Otp{}).Error; err != nil {
		return fmt.Errorf("otp: purge used: %w", err)
	}
	return nil
}
