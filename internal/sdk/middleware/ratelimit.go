package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// RateLimit allows maxRequests per client IP per fixed window, counted in
// Redis so every instance shares the budget.
func RateLimit(client *redis.Client, maxRequests int, window time.Duration, logger *slog.Logger) gin.HandlerFunc {
	if client == nil {
		panic("RateLimit: nil redis client")
	}
	if maxRequests <= 0 {
		panic("RateLimit: maxRequests must be positive")
	}
	if window <= 0 {
		panic("RateLimit: window must be positive")
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := "ratelimit:" + c.ClientIP()

		// The first hit of a window creates the key with its TTL; later hits
		// only increment, so the window never slides.
		pipe := client.TxPipeline()
		pipe.SetNX(ctx, key, 0, window)
		incr := pipe.Incr(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			logger.Error("rate limit: redis pipeline failed", "error", err, "request_id", GetRequestID(c))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "rate_limit_unavailable"})
			return
		}

		count := incr.Val()
		remaining := int64(maxRequests) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(maxRequests) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too_many_requests"})
			return
		}

		c.Next()
	}
}
