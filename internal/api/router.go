package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/zacode-app/zacode-auth/internal/app"
	"github.com/zacode-app/zacode-auth/internal/handlers"
	"github.com/zacode-app/zacode-auth/internal/middleware"
	"github.com/zacode-app/zacode-auth/internal/services"

	iauth "github.com/zacode-app/zacode-auth/internal/auth"
)

// NewRouter builds the Gin engine, wires middleware and registers the
// authentication routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, authSvc *services.AuthService, cfg *app.Config) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if authSvc == nil {
		return nil, fmt.Errorf("auth service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	if cfg.Server.RateLimit.Enabled {
		r.Use(middleware.RateLimit(cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window))
	}

	r.GET("/", handlers.Root())
	if cfg.Monitoring.Health.Enabled {
		r.GET("/healthz", handlers.Health(db))
	}
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler := handlers.NewAuthHandler(authSvc)
	requireAuth := middleware.Auth(jwt, authSvc)

	auth := r.Group("/api/v1/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/verify-otp", authHandler.VerifyOTP)
		auth.POST("/resend-otp", authHandler.ResendOTP)
		auth.POST("/verify-email", authHandler.VerifyEmail)
		auth.POST("/google-oauth", authHandler.GoogleOAuth)
		auth.POST("/refresh-token", authHandler.Refresh)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/verify-otp-reset", authHandler.VerifyOTPReset)
		auth.POST("/verify-reset-password", authHandler.VerifyResetPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)

		auth.GET("/me", requireAuth, authHandler.Me)
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
