package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clinicledger/internal/core/apperror"
	"clinicledger/internal/core/idempotency"
	"clinicledger/pkg/logger"
)

// ErrorHandler renders the last error of the request as JSON. Internal causes
// are logged, never returned.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		// The handler already answered.
		if c.Writer.Written() {
			return
		}

		status := http.StatusInternalServerError
		var body gin.H

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil {
				logger.Error(c.Request.Context(), "request error",
					"code", appErr.Code,
					"cause", appErr.Err,
				)
			}
			status = appErr.HTTPStatus
			body = gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": appErr.Details,
			}
		} else {
			logger.Error(c.Request.Context(), "unhandled error", "error", err)
			body = gin.H{
				"code":    apperror.CodeInternal,
				"message": "Internal server error",
				"details": map[string]any{
					"request_id": c.GetString(ctxRequestID),
				},
			}
		}

		failIdempotency(c, status, body)
		c.JSON(status, body)
	}
}

// failIdempotency stores a 4xx response under the request's key so a retry
// replays it. Server errors release the key instead: nothing was written and
// the caller may retry. Best effort.
func failIdempotency(c *gin.Context, status int, body any) {
	key := c.GetString(ctxIdempotencyKey)
	if key == "" {
		return
	}
	store, ok := c.Value(ctxIdempotency).(idempotency.Store)
	if !ok {
		return
	}
	if status >= http.StatusInternalServerError {
		if err := store.ReleaseKey(c.Request.Context(), key); err != nil {
			logger.Warn(c.Request.Context(), "release idempotency key", "key", key, "error", err)
		}
		return
	}
	if err := store.FailKey(c.Request.Context(), key, status, "application/json", body); err != nil {
		logger.Warn(c.Request.Context(), "store idempotent failure", "key", key, "error", err)
	}
}

// CompleteIdempotency stores a successful response under the request's key.
// Handlers call it right before writing the response.
func CompleteIdempotency(c *gin.Context, status int, contentType string, body any) {
	key := c.GetString(ctxIdempotencyKey)
	if key == "" {
		return
	}
	store, ok := c.Value(ctxIdempotency).(idempotency.Store)
	if !ok {
		return
	}
	if err := store.CompleteKey(c.Request.Context(), key, status, contentType, body); err != nil {
		logger.Warn(c.Request.Context(), "store idempotent response", "key", key, "error", err)
	}
}
