package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"restopos/internal/core/apperror"
	"restopos/pkg/logger"
)

// ErrorHandler renders the last error as {code, message, details}.
// Internal causes are logged, never returned.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		ctx := c.Request.Context()

		appErr, ok := apperror.AsAppError(err)
		if !ok {
			logger.Error(ctx, "unhandled error", "error", err)
			appErr = apperror.NewInternal(err)
		} else if appErr.Err != nil {
			logger.Error(ctx, "request error", "code", appErr.Code, "cause", appErr.Err)
		}

		body := gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
			"details": appErr.Details,
		}
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		if status >= http.StatusInternalServerError {
			body["message"] = "Internal server error"
			body["details"] = map[string]any{"request_id": c.GetString("request_id")}
		}

		// Client errors replay; server errors free the key so the client can retry.
		if key, store, ok := idempotencyFrom(c); ok {
			if status >= http.StatusInternalServerError {
				_ = store.ReleaseKey(ctx, key)
			} else {
				_ = store.FailKey(ctx, key, status, "application/json", body)
			}
		}

		c.JSON(status, body)
	}
}
