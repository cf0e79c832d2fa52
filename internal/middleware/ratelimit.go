package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zacode-app/zacode-auth/pkg/response"

	apperrors "github.com/zacode-app/zacode-auth/pkg/errors"
)

// RateLimit limits requests per (clientIP, path) within a fixed window. This
// is an in-memory limiter suitable for single-instance deployments; credential
// endpoints sit behind it to slow down guessing.
func RateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	type counter struct {
		count     int
		windowEnd time.Time
	}

	var (
		mu        sync.Mutex
		data      = make(map[string]*counter)
		lastSweep = time.Now()
	)

	// Expired counters are swept inline, at most once per window, while the
	// lock is already held. No background goroutine to leak per limiter.
	sweep := func(now time.Time) {
		if now.Sub(lastSweep) < window {
			return
		}
		lastSweep = now
		for k, v := range data {
			if now.After(v.windowEnd) {
				delete(data, k)
			}
		}
	}

	return func(c *gin.Context) {
		if maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		key := c.ClientIP() + "|" + c.FullPath()
		now := time.Now()

		mu.Lock()
		sweep(now)
		ct, ok := data[key]
		if !ok || now.After(ct.windowEnd) {
			ct = &counter{windowEnd: now.Add(window)}
			data[key] = ct
		}
		ct.count++
		count := ct.count
		resetIn := time.Until(ct.windowEnd)
		mu.Unlock()

		remaining := maxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(resetIn.Seconds())))

		if count > maxRequests {
			response.Error(c, apperrors.New(
				"RATE_LIMIT_EXCEEDED",
				"Too many requests, please try again later",
				http.StatusTooManyRequests,
			))
			c.Abort()
			return
		}

		c.Next()
	}
}
