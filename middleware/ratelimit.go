package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"eduquiz-platform/internal/config"
	"eduquiz-platform/internal/logger"
	"eduquiz-platform/utils"
)

// RateLimitMiddleware enforces a fixed-window request limit per caller in
// Redis. Authenticated callers are keyed by user ID, anonymous ones by IP.
func RateLimitMiddleware(cfg *config.Config, rdb *redis.Client) gin.HandlerFunc {
	window := time.Duration(cfg.RateLimitWindow) * time.Second

	return func(c *gin.Context) {
		caller := GetUserID(c)
		if caller == "" {
			caller = c.ClientIP()
		}
		key := fmt.Sprintf("ratelimit:%s:%d", caller, time.Now().Unix()/int64(window.Seconds()))

		count, err := rdb.Incr(c.Request.Context(), key).Result()
		if err != nil {
			// Redis being down should not take the API down with it
			logger.Warn("Rate limit check failed, allowing request", "error", err)
			c.Next()
			return
		}
		if count == 1 {
			rdb.Expire(c.Request.Context(), key, window)
		}

		if count > int64(cfg.RateLimitReqs) {
			utils.RespondWithTooManyRequests(c, "Rate limit exceeded, slow down")
			c.Abort()
			return
		}

		c.Next()
	}
}
