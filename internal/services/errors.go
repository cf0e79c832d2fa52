package services

import (
	"errors"

	"github.com/zacode-app/zacode-auth/pkg/mail"

	apperrors "github.com/zacode-app/zacode-auth/pkg/errors"
)

// Flow errors surfaced to API consumers. Messages are part of the contract
// the frontend matches on, so keep them byte-for-byte stable.
var (
	// Registration / Google OAuth conflicts.
	ErrEmailTakenGoogle     = apperrors.NewConflict("Email already registered with Google. Please use Google Sign In.")
	ErrEmailTakenCredential = apperrors.NewConflict("Email already registered with password. Please login with email and password.")
	ErrEmailRegistered      = apperrors.NewConflict("Email already registered")
	ErrUsernameTaken        = apperrors.NewConflict("Username already taken")
	ErrGoogleIDMismatch     = apperrors.NewConflict("Email already registered with different Google account.")

	// Login rejects Google-linked accounts with a redirect message rather
	// than the generic credentials error.
	ErrGoogleAccountLogin = apperrors.NewUnauthorized("Email already registered with Google. Please use Google Sign In.")

	// OTP verification.
	ErrInvalidOTP      = apperrors.NewBadRequest("Invalid OTP code")
	ErrOTPExpired      = apperrors.NewBadRequest("OTP code has expired")
	ErrInvalidResetOTP = apperrors.NewBadRequest("Invalid or expired OTP code")

	// Legacy token paths.
	ErrInvalidVerificationToken = apperrors.NewBadRequest("Invalid or expired verification token")
	ErrVerificationTokenExpired = apperrors.NewBadRequest("Verification token has expired")
	ErrInvalidResetToken        = apperrors.NewBadRequest("Invalid or expired token")

	// Session refresh.
	ErrInvalidRefreshToken = apperrors.NewUnauthorized("Invalid or expired refresh token")
)

// mapDeliveryError converts mailer failures into the delivery error taxonomy.
// Disabled SMTP is not a failure: deployments without a mail relay still
// complete flows, the code simply is not delivered.
func mapDeliveryError(err error) error {
	switch {
	case err == nil, errors.Is(err, mail.ErrDisabled):
		return nil
	case errors.Is(err, mail.ErrDeliveryLimit):
		return apperrors.ErrEmailLimitExceeded.WithInternal(err)
	case errors.Is(err, mail.ErrDeliveryConfig):
		return apperrors.ErrEmailConfig.WithInternal(err)
	default:
		return apperrors.ErrEmailSend.WithInternal(err)
	}
}
