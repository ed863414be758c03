package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"onboarding-api/internal/log"
)

// LoggingMiddleware adds trace IDs and structured logging to requests.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Generate trace ID - check Cloud Run trace header first
		traceID := c.GetHeader("X-Cloud-Trace-Context")
		if traceID != "" {
			// Extract trace ID from Cloud Run format: "TRACE_ID/SPAN_ID;o=TRACE_TRUE"
			if slashIndex := strings.Index(traceID, "/"); slashIndex != -1 {
				traceID = traceID[:slashIndex]
			}
		} else {
			traceID = c.GetHeader("X-Trace-ID")
			if traceID == "" {
				traceID = uuid.NewString()
			}
		}

		c.Set("trace_id", traceID)
		c.Header("X-Trace-ID", traceID)
		c.Request = c.Request.WithContext(log.WithTraceID(c.Request.Context(), traceID))

		startTime := time.Now()
		logger := log.WithContext(c)
		logger.Debug("Request started",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"user_agent", c.Request.UserAgent(),
			"remote_addr", c.ClientIP(),
		)

		c.Next()

		logger.Info("Request completed",
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_seconds", time.Since(startTime).Seconds(),
		)
	}
}

func abortWithDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}
