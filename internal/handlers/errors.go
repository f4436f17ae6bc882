package handlers

import (
	"errors"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/partimages/backend/internal/logging"
	"go.uber.org/zap"
)

// abortWithError logs the cause, reports it to Sentry and responds with
// {"error": message}.
func abortWithError(c *gin.Context, code int, message string, traceErr error) {
	if traceErr == nil {
		traceErr = errors.New(message)
	}

	fields := []zap.Field{
		logging.SourceAPI,
		zap.String("request_id", c.GetString("requestID")),
		zap.Int("status", code),
		zap.Error(traceErr),
	}
	if code >= 500 {
		logging.Error(message, fields...)
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureException(traceErr)
		}
	} else {
		logging.Debug(message, fields...)
	}

	_ = c.Error(traceErr)
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}
