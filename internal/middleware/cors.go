package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/partimages/backend/internal/config"
)

// CORS creates a CORS middleware from the configured origins. Outside
// production any origin is accepted.
func CORS(cfg *config.Config) gin.HandlerFunc {
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowed[strings.TrimRight(origin, "/")] = true
	}

	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			if allowed[strings.TrimRight(origin, "/")] {
				return true
			}
			return !cfg.IsProduction()
		},
		AllowMethods:     cfg.AllowedMethods,
		AllowHeaders:     append([]string{"Origin", "X-Request-ID"}, cfg.AllowedHeaders...),
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	})
}
