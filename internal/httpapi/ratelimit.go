package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"callcard-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitValidate throttles voucher validation per device using a fixed
// Redis window. Keys on the X-Device-Id header when present, client IP
// otherwise. Redis outages fail open so validation keeps working.
func RateLimitValidate(rdb *redis.Client, log *slog.Logger, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next()
			return
		}

		subject := c.GetHeader("X-Device-Id")
		if subject == "" {
			subject = c.ClientIP()
		}
		key := "rl:validate:" + subject

		allowed, err := utils.AllowRate(c.Request.Context(), rdb, key, limit, window)
		if err != nil {
			log.Warn("rate limit check failed, allowing request", "key", key, "error", err)
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
