package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const requestIDKey = "requestID"

// RequestLogger logs one line per request and tags the request with an id,
// echoed back in the X-Request-Id header.
func RequestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		requestID := ctx.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx.Set(requestIDKey, requestID)
		ctx.Header("X-Request-Id", requestID)

		ctx.Next()

		entry := log.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     ctx.Request.Method,
			"path":       ctx.Request.URL.Path,
			"status":     ctx.Writer.Status(),
			"latency":    time.Since(start).String(),
			"client_ip":  ctx.ClientIP(),
		})
		switch status := ctx.Writer.Status(); {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request handled")
		}
	}
}

// Logger returns the request scoped logger.
func Logger(ctx *gin.Context, log logrus.FieldLogger) logrus.FieldLogger {
	if id, ok := ctx.Get(requestIDKey); ok {
		return log.WithField("request_id", id)
	}
	return log
}
