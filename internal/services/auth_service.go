package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/zacode-app/zacode-auth/internal/auth"
	"github.com/zacode-app/zacode-auth/internal/database"
	"github.com/zacode-app/zacode-auth/internal/models"
	"github.com/zacode-app/zacode-auth/pkg/crypto"
	"github.com/zacode-app/zacode-auth/pkg/logger"
	"github.com/zacode-app/zacode-auth/pkg/mail"
	"github.com/zacode-app/zacode-auth/pkg/metrics"

	apperrors "github.com/zacode-app/zacode-auth/pkg/errors"
)

const legacyVerificationTokenBytes = 32

// AuthOption customises the AuthService.
type AuthOption func(*AuthService)

// WithAuthClock injects a custom time source.
func WithAuthClock(clock func() time.Time) AuthOption {
	return func(s *AuthService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// AuthService orchestrates the registration, login, verification, and reset
// flows on top of the OTP service, token issuer, and mailer.
type AuthService struct {
	db     *gorm.DB
	jwt    *auth.JWTService
	otp    *OtpService
	mailer mail.Mailer
	now    func() time.Time
	log    *zap.Logger
}

// NewAuthService constructs the auth orchestrator with explicit dependencies.
func NewAuthService(db *gorm.DB, jwtSvc *auth.JWTService, otpSvc *OtpService, mailer mail.Mailer, opts ...AuthOption) (*AuthService, error) {
	if db == nil {
		return nil, errors.New("auth service: db is required")
	}
	if jwtSvc == nil {
		return nil, errors.New("auth service: jwt service is required")
	}
	if otpSvc == nil {
		return nil, errors.New("auth service: otp service is required")
	}
	if mailer == nil {
		mailer = mail.NopMailer{}
	}

	svc := &AuthService{
		db:     db,
		jwt:    jwtSvc,
		otp:    otpSvc,
		mailer: mailer,
		now:    time.Now,
		log:    logger.WithModule("auth"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// RegisterInput carries the fields accepted by the register endpoint.
type RegisterInput struct {
	FullName    string
	Email       string
	Password    string
	UserType    string
	Username    string
	Phone       string
	Gender      string
	DateOfBirth *time.Time
}

// AuthResult bundles a user with a freshly issued token pair.
type AuthResult struct {
	User   *models.User
	Tokens auth.TokenPair
}

// LoginResult is the outcome of a credential login: either a token pair, or a
// requires-verification response carrying no session tokens.
type LoginResult struct {
	User                 *models.User
	Tokens               auth.TokenPair
	RequiresVerification bool
	VerificationToken    string
}

// GoogleInput carries the profile fields forwarded by the frontend after the
// Google sign-in dance.
type GoogleInput struct {
	Email        string
	GoogleID     string
	FullName     string
	ProfilePhoto string
}

// Register creates an unverified credential user, issues the first
// verification OTP, and dispatches it. The returned user carries no tokens:
// the caller must verify the email first.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := normalizeEmail(in.Email)

	existing, err := s.findUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.LoginType == models.LoginTypeGoogle {
			return nil, ErrEmailTakenGoogle
		}
		return nil, ErrEmailTakenCredential
	}

	if in.Username != "" {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("username = ?", in.Username).
			Count(&count).Error; err != nil {
			return nil, apperrors.Wrap(err, "Registration failed")
		}
		if count > 0 {
			return nil, ErrUsernameTaken
		}
	}

	hash, err := crypto.HashPassword(in.Password)
	if err != nil {
		return nil, apperrors.Wrap(err, "Registration failed")
	}

	userType := in.UserType
	if userType == "" {
		userType = models.DefaultUserType
	}

	user := &models.User{
		Email:        email,
		FullName:     in.FullName,
		Username:     optional(in.Username),
		Password:     &hash,
		UserType:     userType,
		Phone:        optional(in.Phone),
		Gender:       optional(in.Gender),
		DateOfBirth:  dateOf(in.DateOfBirth),
		LoginType:    models.LoginTypeCredential,
		IsVerified:   false,
		IsActive:     true,
	}

	if err := s.createUser(ctx, user); err != nil {
		return nil, err
	}

	otp, err := s.otp.Issue(ctx, user.Email, models.PurposeEmailVerification, user.ID, ScopeNone)
	if err != nil {
		return nil, apperrors.Wrap(err, "Registration failed")
	}

	if err := s.dispatchOTP(ctx, user, otp); err != nil {
		return nil, err
	}

	return user, nil
}

// Login authenticates a credential user. Unverified accounts receive a fresh
// OTP and a requires-verification result without session tokens.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.findUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Generic failure: never reveal whether the email or password was wrong.
		return nil, apperrors.ErrInvalidCredentials
	}

	if user.LoginType == models.LoginTypeGoogle {
		return nil, ErrGoogleAccountLogin
	}

	if !user.HasPassword() {
		return nil, apperrors.ErrInvalidCredentials
	}

	if !crypto.VerifyPassword(*user.Password, password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.IsVerified {
		otp, err := s.otp.Issue(ctx, user.Email, models.PurposeEmailVerification, user.ID, ScopeAll)
		if err != nil {
			return nil, apperrors.Wrap(err, "Login failed")
		}
		if err := s.dispatchOTP(ctx, user, otp); err != nil {
			return nil, err
		}

		// Opaque token kept for the legacy verification link flow.
		verificationToken, err := crypto.GenerateToken(legacyVerificationTokenBytes)
		if err != nil {
			return nil, apperrors.Wrap(err, "Login failed")
		}

		return &LoginResult{
			User:                 user,
			RequiresVerification: true,
			VerificationToken:    verificationToken,
		}, nil
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(user).
		Update("last_login", now).Error; err != nil {
		return nil, apperrors.Wrap(err, "Login failed")
	}
	user.LastLogin = &now

	tokens, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, apperrors.Wrap(err, "Login failed")
	}

	return &LoginResult{User: user, Tokens: tokens}, nil
}

// VerifyOTP consumes an email-verification code, flips the account to
// verified, and issues the first session.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (*AuthResult, error) {
	email = normalizeEmail(email)

	otp, err := s.otp.Verify(ctx, email, code, models.PurposeEmailVerification)
	if err != nil {
		return nil, mapOtpError(err, ErrInvalidOTP, ErrOTPExpired)
	}

	if err := s.otp.Consume(ctx, otp); err != nil {
		return nil, apperrors.Wrap(err, "OTP verification failed")
	}

	user, err := s.findUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.Wrap(gorm.ErrRecordNotFound, "OTP verification failed")
	}

	if err := s.markVerified(ctx, user); err != nil {
		return nil, apperrors.Wrap(err, "OTP verification failed")
	}

	if err := s.otp.PurgeUsed(ctx, email, models.PurposeEmailVerification); err != nil {
		return nil, apperrors.Wrap(err, "OTP verification failed")
	}

	tokens, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, apperrors.Wrap(err, "OTP verification failed")
	}

	return &AuthResult{User: user, Tokens: tokens}, nil
}

// ResendOTP issues a fresh verification code for an existing account,
// replacing only codes that were never used.
func (s *AuthService) ResendOTP(ctx context.Context, email string) error {
	user, err := s.findUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if user == nil {
		return apperrors.ErrUserNotFound
	}

	otp, err := s.otp.Issue(ctx, user.Email, models.PurposeEmailVerification, user.ID, ScopeUnused)
	if err != nil {
		return apperrors.Wrap(err, "Failed to resend OTP")
	}

	return s.dispatchOTP(ctx, user, otp)
}

// VerifyEmail is the legacy verification link path: the opaque token is
// looked up as if it were the 6-digit code. Compatibility shim only; new
// integrations must use VerifyOTP.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*AuthResult, error) {
	otp, err := s.otp.VerifyByCode(ctx, token, models.PurposeEmailVerification)
	if err != nil {
		return nil, mapOtpError(err, ErrInvalidVerificationToken, ErrVerificationTokenExpired)
	}

	if err := s.otp.Consume(ctx, otp); err != nil {
		return nil, apperrors.Wrap(err, "Email verification failed")
	}

	user, err := s.findUserByID(ctx, otp.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.Wrap(gorm.ErrRecordNotFound, "Email verification failed")
	}

	if err := s.markVerified(ctx, user); err != nil {
		return nil, apperrors.Wrap(err, "Email verification failed")
	}

	tokens, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, apperrors.Wrap(err, "Email verification failed")
	}

	return &AuthResult{User: user, Tokens: tokens}, nil
}

// GoogleOAuth upserts a federated account keyed by email and issues a
// session. Federated identities arrive pre-verified.
func (s *AuthService) GoogleOAuth(ctx context.Context, in GoogleInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)
	now := s.now()

	user, err := s.findUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if user != nil {
		if user.LoginType == models.LoginTypeCredential && user.HasPassword() {
			return nil, ErrEmailTakenCredential
		}
		if user.GoogleID != nil && *user.GoogleID != in.GoogleID {
			// Same email, different federated subject: reject to prevent
			// account takeover through an email collision.
			return nil, ErrGoogleIDMismatch
		}

		updates := map[string]any{
			"google_id":   in.GoogleID,
			"login_type":  models.LoginTypeGoogle,
			"is_verified": true,
			"last_login":  now,
		}
		if in.ProfilePhoto != "" {
			updates["profile_photo"] = in.ProfilePhoto
		}
		if in.FullName != "" {
			updates["full_name"] = in.FullName
		}

		if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(err, "Google OAuth failed")
		}

		user.GoogleID = &in.GoogleID
		user.LoginType = models.LoginTypeGoogle
		user.IsVerified = true
		user.LastLogin = &now
		if in.ProfilePhoto != "" {
			user.ProfilePhoto = &in.ProfilePhoto
		}
		if in.FullName != "" {
			user.FullName = in.FullName
		}
	} else {
		fullName := in.FullName
		if fullName == "" {
			fullName = localPart(email)
		}

		user = &models.User{
			Email:        email,
			FullName:     fullName,
			ProfilePhoto: optional(in.ProfilePhoto),
			GoogleID:     &in.GoogleID,
			LoginType:    models.LoginTypeGoogle,
			IsVerified:   true,
			IsActive:     true,
			LastLogin:    &now,
		}
		if err := s.createUser(ctx, user); err != nil {
			return nil, err
		}
	}

	tokens, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, apperrors.Wrap(err, "Google OAuth failed")
	}

	return &AuthResult{User: user, Tokens: tokens}, nil
}

// Refresh redeems a refresh token for a brand-new pair. The presented token
// is checked structurally before any store lookup, and the persisted record
// is deleted whether it is redeemed or found expired: rotation, not reuse.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if _, err := s.jwt.VerifyRefreshToken(refreshToken); err != nil {
		return nil, ErrInvalidRefreshToken
	}

	var record models.RefreshToken
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("token = ?", refreshToken).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "Token refresh failed")
	}

	if record.ExpiredAt(s.now()) {
		// Lazy reaping: drop the stale record on detection.
		_ = s.db.WithContext(ctx).Delete(&models.RefreshToken{}, "id = ?", record.ID).Error
		return nil, ErrInvalidRefreshToken
	}

	user := record.User
	if user.ID == "" {
		return nil, ErrInvalidRefreshToken
	}

	if err := s.db.WithContext(ctx).
		Delete(&models.RefreshToken{}, "id = ?", record.ID).Error; err != nil {
		return nil, apperrors.Wrap(err, "Token refresh failed")
	}

	tokens, err := s.issueSession(ctx, &user)
	if err != nil {
		return nil, apperrors.Wrap(err, "Token refresh failed")
	}

	return &AuthResult{User: &user, Tokens: tokens}, nil
}

// ForgotPassword issues a password-reset code for credential accounts. It
// reports success identically whether or not the account exists, so the
// endpoint cannot be used to enumerate registered emails.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.findUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if user == nil || !user.HasPassword() {
		return nil
	}

	otp, err := s.otp.Issue(ctx, user.Email, models.PurposePasswordReset, user.ID, ScopeAll)
	if err != nil {
		return apperrors.Wrap(err, "Failed to process password reset request")
	}

	return s.dispatchOTP(ctx, user, otp)
}

// VerifyOTPReset validates and consumes a reset code without touching the
// password, supporting a two-phase reset UI.
func (s *AuthService) VerifyOTPReset(ctx context.Context, email, code string) error {
	otp, err := s.otp.Verify(ctx, normalizeEmail(email), code, models.PurposePasswordReset)
	if err != nil {
		return mapOtpError(err, ErrInvalidResetOTP, ErrOTPExpired)
	}
	if err := s.otp.Consume(ctx, otp); err != nil {
		return apperrors.Wrap(err, "OTP verification failed")
	}
	return nil
}

// VerifyResetPassword completes the two-phase reset: the same code is
// re-validated (tolerating used=true, since VerifyOTPReset may have consumed
// it) and the password replaced. No session tokens are issued; the user must
// log in with the new password.
func (s *AuthService) VerifyResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)

	otp, err := s.otp.FindLatest(ctx, email, code, models.PurposePasswordReset)
	if err != nil {
		return mapOtpError(err, ErrInvalidOTP, ErrOTPExpired)
	}

	if !otp.Used {
		if err := s.otp.Consume(ctx, otp); err != nil {
			return apperrors.Wrap(err, "Password reset failed")
		}
	}

	user, err := s.findUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return apperrors.Wrap(gorm.ErrRecordNotFound, "Password reset failed")
	}

	if err := s.updatePassword(ctx, user, newPassword); err != nil {
		return err
	}

	if err := s.otp.PurgeUsed(ctx, email, models.PurposePasswordReset); err != nil {
		return apperrors.Wrap(err, "Password reset failed")
	}

	return nil
}

// ResetPassword is the legacy single-step reset: the opaque token is looked
// up as the code, must be unused, and a fresh session is issued on success —
// unlike VerifyResetPassword, which forces a new login. Both behaviors are
// relied upon by existing callers and are deliberately kept distinct.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (*AuthResult, error) {
	otp, err := s.otp.VerifyByCode(ctx, token, models.PurposePasswordReset)
	if err != nil {
		return nil, ErrInvalidResetToken
	}

	if err := s.otp.Consume(ctx, otp); err != nil {
		return nil, apperrors.Wrap(err, "Password reset failed")
	}

	user, err := s.findUserByID(ctx, otp.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.Wrap(gorm.ErrRecordNotFound, "Password reset failed")
	}

	if err := s.updatePassword(ctx, user, newPassword); err != nil {
		return nil, err
	}

	tokens, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, apperrors.Wrap(err, "Password reset failed")
	}

	return &AuthResult{User: user, Tokens: tokens}, nil
}

// CurrentUser loads a user by id for the authentication gate.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	return s.findUserByID(ctx, userID)
}

// issueSession mints a token pair and persists the refresh half. Token
// issuance is the last write in every flow so a mid-flow failure never leaves
// a redeemable session behind.
func (s *AuthService) issueSession(ctx context.Context, user *models.User) (auth.TokenPair, error) {
	tokens, err := s.jwt.GeneratePair(user)
	if err != nil {
		return auth.TokenPair{}, err
	}

	record := &models.RefreshToken{
		Token:     tokens.RefreshToken,
		UserID:    user.ID,
		ExpiresAt: s.now().Add(s.jwt.RefreshTokenTTL()),
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return auth.TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
	}

	return tokens, nil
}

// createUser persists a user, translating unique-constraint races into the
// same conflict messages the pre-checks produce.
func (s *AuthService) createUser(ctx context.Context, user *models.User) error {
	err := s.db.WithContext(ctx).Create(user).Error
	if err == nil {
		return nil
	}

	err = database.ConflictFor(err, s.conflictField(ctx, user))
	if conflict, ok := database.AsConflict(err); ok {
		if conflict.Field == "email" {
			return ErrEmailRegistered
		}
		return ErrUsernameTaken
	}
	return apperrors.Wrap(err, "Registration failed")
}

// conflictField decides which unique column a failed insert collided on.
func (s *AuthService) conflictField(ctx context.Context, user *models.User) string {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", user.Email).
		Count(&count).Error; err == nil && count > 0 {
		return "email"
	}
	return "username"
}

func (s *AuthService) dispatchOTP(ctx context.Context, user *models.User, otp *models.Otp) error {
	err := s.mailer.SendOTP(ctx, user.Email, otp.OtpCode, otp.Purpose, user.FullName)
	if mapped := mapDeliveryError(err); mapped != nil {
		metrics.EmailDeliveries.WithLabelValues("failure").Inc()
		s.log.Error("otp delivery failed",
			zap.String("purpose", otp.Purpose),
			zap.Error(err),
		)
		return mapped
	}

	metrics.EmailDeliveries.WithLabelValues("success").Inc()
	return nil
}

func (s *AuthService) markVerified(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Model(user).
		Update("is_verified", true).Error; err != nil {
		return err
	}
	user.IsVerified = true
	return nil
}

func (s *AuthService) updatePassword(ctx context.Context, user *models.User, newPassword string) error {
	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return apperrors.Wrap(err, "Password reset failed")
	}

	if err := s.db.WithContext(ctx).Model(user).
		Update("password", hash).Error; err != nil {
		return apperrors.Wrap(err, "Password reset failed")
	}
	user.Password = &hash
	return nil
}

func (s *AuthService) findUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "Internal server error")
	}
	return &user, nil
}

func (s *AuthService) findUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "Internal server error")
	}
	return &user, nil
}

// mapOtpError converts storage-level OTP errors into the endpoint's messages.
func mapOtpError(err error, notFound, expired error) error {
	switch {
	case errors.Is(err, ErrOtpNotFound):
		return notFound
	case errors.Is(err, ErrOtpExpired):
		return expired
	default:
		return apperrors.Wrap(err, "OTP verification failed")
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func dateOf(t *time.Time) *datatypes.Date {
	if t == nil {
		return nil
	}
	d := datatypes.Date(*t)
	return &d
}

func localPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
