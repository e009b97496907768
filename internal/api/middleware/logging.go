// Package middleware is the API Service's (C8) gin middleware chain
// (SPEC_FULL.md §4.6): request-scoped structured logging,
// AppError-to-JSON error mapping, per-route rate limiting, and the
// guild-context/RLS binding. Each file generalizes its
// internal/middleware bot-handler counterpart from a
// context.WithValue-on-a-bot.Update shape to a gin.Context shape.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gamenight/scheduler/internal/telemetry"
)

// Logging stamps every request with a correlation id and logs
// completion with duration, mirroring
// internal/middleware/logging.go's BotLoggingMiddleware (per-update
// correlation id + duration-on-completion), generalized to gin's
// request/response cycle.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		correlationID := uuid.New().String()

		ctx := telemetry.WithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Correlation-ID", correlationID)

		logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
			"operation": "http_request", "method": c.Request.Method, "path": c.FullPath(),
		})
		logger.Info("request received")

		c.Next()

		logger.WithFields(map[string]interface{}{
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("request completed")
	}
}
