package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/partimages/backend/internal/logging"
	"github.com/partimages/backend/pkg/jwt"
	"go.uber.org/zap"
)

// Auth requires a valid HS256 bearer token. With an empty secret every
// request passes through.
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := jwt.ValidateToken(parts[1], secret)
		if err != nil || (claims.TokenType != "" && claims.TokenType != jwt.AccessToken) {
			logging.Warn("rejected token", logging.SourceAPI, zap.String("path", c.FullPath()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("userID", claims.Principal())
		c.Next()
	}
}
