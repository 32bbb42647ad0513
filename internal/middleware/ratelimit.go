package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/charlesng35/livecss/pkg/errors"
	"github.com/charlesng35/livecss/pkg/logger"
	"github.com/charlesng35/livecss/pkg/metrics"
	"github.com/charlesng35/livecss/pkg/response"
)

const rateLimitKeyPrefix = "ratelimit:"

// RateLimit returns a middleware that limits requests per (clientIP,path) within a fixed window.
// Counters live in the given RateStore so several instances can share one budget. When the
// store fails the request is let through.
func RateLimit(store RateStore, maxRequests int, window time.Duration) gin.HandlerFunc {
	log := logger.WithModule("ratelimit")

	return func(c *gin.Context) {
		if store == nil || maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		key := rateLimitKeyPrefix + c.ClientIP() + "|" + path

		count, ttl, err := store.Increment(c.Request.Context(), key, window)
		if err != nil {
			log.Warn("rate limit store unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		if ttl <= 0 || ttl > window {
			ttl = window
		}

		remaining := maxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(math.Ceil(ttl.Seconds()))))

		if count > maxRequests {
			metrics.RateLimited.Inc()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(ttl.Seconds()))))
			response.Error(c, appErrors.ErrRateLimit)
			c.Abort()
			return
		}

		c.Next()
	}
}
