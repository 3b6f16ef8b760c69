package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/amiyamandal-dev/repoportal/internal/web"
	"github.com/amiyamandal-dev/repoportal/pkg/logger"
)

// RequestIDHeader carries the id assigned to each request
const RequestIDHeader = "X-Request-ID"

// LoggerMiddleware creates request logging middleware
func LoggerMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)

		// Process request
		c.Next()

		duration := time.Since(startTime)
		statusCode := c.Writer.Status()

		fields := []interface{}{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		}
		if sid := web.SessionID(c); sid != "" {
			fields = append(fields, "session_id", sid)
		}

		if statusCode >= 500 {
			log.Warn("HTTP Request", fields...)
		} else {
			log.Info("HTTP Request", fields...)
		}

		// Log errors if any
		if len(c.Errors) > 0 {
			log.Error("Request errors", "request_id", requestID, "errors", c.Errors.String())
		}
	}
}
