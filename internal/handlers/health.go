package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/zacode-app/zacode-auth/pkg/response"
)

// Root answers the banner probe used by frontends and uptime checks.
func Root() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"message": "API Server is running"})
	}
}

// Health returns a simple status payload useful for readiness checks. The
// database ping distinguishes a live process from a serving one.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		httpStatus := http.StatusOK

		if db != nil {
			if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
				status = "degraded"
				httpStatus = http.StatusServiceUnavailable
			}
		}

		response.Success(c, httpStatus, gin.H{"status": status})
	}
}
