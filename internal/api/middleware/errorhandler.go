package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	apperrors "github.com/gamenight/scheduler/internal/errors"
	"github.com/gamenight/scheduler/internal/telemetry"
)

// Recovery converts a panic into a 500 AppError response instead of
// crashing the process, mirroring
// internal/middleware/error_handler.go's panic-recovery deferred
// handler (stack trace captured, logged, turned into an AppError) —
// generalized from "send the user a chat message" to "write a JSON
// response".
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				correlationID := telemetry.GetCorrelationID(c.Request.Context())
				logger := telemetry.GetContextualLogger(c.Request.Context()).WithFields(map[string]interface{}{
					"operation":   "error_handler_panic",
					"panic_value": fmt.Sprintf("%v", r),
					"stack_trace": string(debug.Stack()),
				})
				logger.Error("panic recovered in request handler")

				err := apperrors.NewInternalError(fmt.Sprintf("panic: %v", r), nil).WithCorrelationID(correlationID)
				RespondError(c, err)
				c.Abort()
			}
		}()
		c.Next()
	}
}

// RespondError writes err as the taxonomy-appropriate JSON response
// (spec §7), logging at the severity internal/middleware/error_handler.go
// uses per ErrorType (validation/auth/notfound log at warn/info,
// everything else at error).
func RespondError(c *gin.Context, err error) {
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		correlationID := telemetry.GetCorrelationID(c.Request.Context())
		appErr = apperrors.NewInternalError("an unexpected error occurred", err).WithCorrelationID(correlationID)
	}

	logger := telemetry.GetContextualLogger(c.Request.Context()).WithFields(map[string]interface{}{
		"operation": "api_error", "error_type": string(appErr.Type), "error_code": appErr.Code,
	})
	switch appErr.Type {
	case apperrors.ErrorTypeValidation, apperrors.ErrorTypeAuthentication, apperrors.ErrorTypeAuthorization, apperrors.ErrorTypeRateLimit:
		logger.Warn(appErr.Message)
	case apperrors.ErrorTypeNotFound, apperrors.ErrorTypeConflict:
		logger.Info(appErr.Message)
	default:
		logger.Error(appErr.Message)
	}

	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}

	body := gin.H{"error": appErr.Code, "message": appErr.Message}
	for k, v := range appErr.Metadata {
		body[k] = v
	}
	c.JSON(status, body)
}
