package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/partimages/backend/internal/config"
	"github.com/partimages/backend/internal/logging"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiter creates a fixed window rate limiting middleware keyed by
// client IP. It is a no-op without Redis.
func RateLimiter(redisClient *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil || cfg.RateLimitRequests <= 0 {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		key := fmt.Sprintf("rate_limit:%s", c.ClientIP())
		count, err := redisClient.Incr(ctx, key).Result()
		if err != nil {
			// If Redis is not available, bypass the rate limiter
			logging.Warn("redis not available for rate limiting", logging.SourceAPI, zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			redisClient.Expire(ctx, key, cfg.RateLimitDuration)
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.RateLimitRequests))
		if count > int64(cfg.RateLimitRequests) {
			ttl, _ := redisClient.TTL(ctx, key).Result()
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(ttl).Unix()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests",
				"retry_after": ttl.Seconds(),
			})
			return
		}
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", int64(cfg.RateLimitRequests)-count))

		c.Next()
	}
}
