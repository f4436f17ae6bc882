package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/partimages/backend/internal/config"
	"github.com/redis/go-redis/v9"
)

// UploadRateLimit caps the number of upload requests per caller per day.
// Callers are identified by the authenticated user or, without auth, by IP.
func UploadRateLimit(redisClient *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil || cfg.UploadDailyLimit <= 0 || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		caller := c.GetString("userID")
		if caller == "" {
			caller = c.ClientIP()
		}

		// Resets daily at midnight
		now := time.Now()
		key := fmt.Sprintf("upload_limit:%s:%s", caller, now.Format("2006-01-02"))

		count, err := redisClient.Incr(ctx, key).Result()
		if err != nil {
			// Redis error - don't block upload
			c.Next()
			return
		}
		if count == 1 {
			midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
			redisClient.Expire(ctx, key, midnight.Sub(now))
		}

		if count > int64(cfg.UploadDailyLimit) {
			ttl, _ := redisClient.TTL(ctx, key).Result()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":               "upload_rate_limit_exceeded",
				"message":             "Too many uploads today. Please try again tomorrow.",
				"retry_after_hours":   int(ttl.Hours()),
				"uploads_today":       count - 1,
				"max_uploads_per_day": cfg.UploadDailyLimit,
			})
			return
		}

		c.Next()
	}
}
