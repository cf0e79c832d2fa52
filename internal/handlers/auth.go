package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zacode-app/zacode-auth/internal/auth"
	"github.com/zacode-app/zacode-auth/internal/middleware"
	"github.com/zacode-app/zacode-auth/internal/models"
	"github.com/zacode-app/zacode-auth/internal/services"
	"github.com/zacode-app/zacode-auth/pkg/metrics"
	"github.com/zacode-app/zacode-auth/pkg/response"

	apperrors "github.com/zacode-app/zacode-auth/pkg/errors"
)

const dateLayout = "2006-01-02"

// AuthHandler exposes the authentication flows over HTTP.
type AuthHandler struct {
	svc *services.AuthService
}

func NewAuthHandler(svc *services.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// sessionPayload is the body shape shared by every endpoint that opens a
// session: the sanitized user next to the token fields, flat in data.
func sessionPayload(user *models.User, tokens auth.TokenPair) gin.H {
	return gin.H{
		"user":          user,
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_in":    tokens.ExpiresIn,
	}
}

type registerRequest struct {
	FullName    string `json:"full_name" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	Username    string `json:"username" validate:"omitempty,min=3,max=32"`
	UserType    string `json:"user_type" validate:"omitempty,oneof=member admin"`
	Phone       string `json:"phone" validate:"omitempty,max=20"`
	Gender      string `json:"gender" validate:"omitempty,oneof=male female other"`
	DateOfBirth string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type verifyOTPRequest struct {
	Email   string `json:"email" validate:"required,email"`
	OtpCode string `json:"otp_code" validate:"required,len=6,numeric"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type tokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type googleOAuthRequest struct {
	Email        string `json:"email" validate:"required,email"`
	GoogleID     string `json:"google_id" validate:"required"`
	FullName     string `json:"full_name" validate:"omitempty,max=100"`
	ProfilePhoto string `json:"profile_photo" validate:"omitempty,url"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type verifyResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OtpCode     string `json:"otp_code" validate:"required,len=6,numeric"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
}

// The legacy endpoint reads newPassword in camelCase; the two-phase flow
// reads new_password. Both spellings are load-bearing for existing clients.
type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=128"`
}

// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	input := services.RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
		UserType: req.UserType,
		Phone:    req.Phone,
		Gender:   req.Gender,
	}
	if req.DateOfBirth != "" {
		dob, err := time.Parse(dateLayout, req.DateOfBirth)
		if err != nil {
			response.Error(c, apperrors.NewBadRequest("date_of_birth must be formatted as YYYY-MM-DD"))
			return
		}
		input.DateOfBirth = &dob
	}

	user, err := h.svc.Register(c.Request.Context(), input)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("register", "failure").Inc()
		response.Error(c, err)
		return
	}

	metrics.AuthAttempts.WithLabelValues("register", "success").Inc()
	response.Success(c, http.StatusCreated, gin.H{
		"message":               "Registration successful. Please verify your email.",
		"user":                  user,
		"requires_verification": true,
	})
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("login", "failure").Inc()
		response.Error(c, err)
		return
	}

	if result.RequiresVerification {
		metrics.AuthAttempts.WithLabelValues("login", "unverified").Inc()
		response.Success(c, http.StatusOK, gin.H{
			"requires_verification": true,
			"verification_token":    result.VerificationToken,
			"user":                  result.User,
		})
		return
	}

	metrics.AuthAttempts.WithLabelValues("login", "success").Inc()
	response.Success(c, http.StatusOK, sessionPayload(result.User, result.Tokens))
}

// POST /api/v1/auth/verify-otp
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.svc.VerifyOTP(c.Request.Context(), req.Email, req.OtpCode)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("verify_otp", "failure").Inc()
		response.Error(c, err)
		return
	}

	metrics.AuthAttempts.WithLabelValues("verify_otp", "success").Inc()
	response.Success(c, http.StatusOK, sessionPayload(result.User, result.Tokens))
}

// POST /api/v1/auth/resend-otp
func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var req emailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.svc.ResendOTP(c.Request.Context(), req.Email); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "OTP has been resent to your email"})
}

// POST /api/v1/auth/verify-email
//
// Legacy path kept for older clients that follow an emailed link instead of
// typing the code.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req tokenRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.svc.VerifyEmail(c.Request.Context(), req.Token)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("verify_email", "failure").Inc()
		response.Error(c, err)
		return
	}

	metrics.AuthAttempts.WithLabelValues("verify_email", "success").Inc()
	response.Success(c, http.StatusOK, sessionPayload(result.User, result.Tokens))
}

// POST /api/v1/auth/google-oauth
func (h *AuthHandler) GoogleOAuth(c *gin.Context) {
	var req googleOAuthRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.svc.GoogleOAuth(c.Request.Context(), services.GoogleInput{
		Email:        req.Email,
		GoogleID:     req.GoogleID,
		FullName:     req.FullName,
		ProfilePhoto: req.ProfilePhoto,
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("google_oauth", "failure").Inc()
		response.Error(c, err)
		return
	}

	metrics.AuthAttempts.WithLabelValues("google_oauth", "success").Inc()
	response.Success(c, http.StatusOK, sessionPayload(result.User, result.Tokens))
}

// POST /api/v1/auth/refresh-token
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("refresh", "failure").Inc()
		response.Error(c, err)
		return
	}

	metrics.AuthAttempts.WithLabelValues("refresh", "success").Inc()
	response.Success(c, http.StatusOK, sessionPayload(result.User, result.Tokens))
}

// POST /api/v1/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.svc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		response.Error(c, err)
		return
	}

	// Same response whether or not the account exists.
	response.Success(c, http.StatusOK, gin.H{
		"message": "If the email exists, a password reset OTP has been sent",
	})
}

// POST /api/v1/auth/verify-otp-reset
func (h *AuthHandler) VerifyOTPReset(c *gin.Context) {
	var req verifyOTPRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.svc.VerifyOTPReset(c.Request.Context(), req.Email, req.OtpCode); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "OTP verified successfully"})
}

// POST /api/v1/auth/verify-reset-password
func (h *AuthHandler) VerifyResetPassword(c *gin.Context) {
	var req verifyResetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.svc.VerifyResetPassword(c.Request.Context(), req.Email, req.OtpCode, req.NewPassword)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("password_reset", "failure").Inc()
		response.Error(c, err)
		return
	}

	metrics.AuthAttempts.WithLabelValues("password_reset", "success").Inc()
	response.Success(c, http.StatusOK, gin.H{"message": "Password has been reset successfully"})
}

// POST /api/v1/auth/reset-password
//
// Legacy single-step reset kept for older clients. It issues tokens on
// success, unlike the two-phase flow.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.svc.ResetPassword(c.Request.Context(), req.Token, req.NewPassword)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("password_reset", "failure").Inc()
		response.Error(c, err)
		return
	}

	metrics.AuthAttempts.WithLabelValues("password_reset", "success").Inc()
	response.Success(c, http.StatusOK, sessionPayload(result.User, result.Tokens))
}

// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user})
}
