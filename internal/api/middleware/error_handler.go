// Package middleware provides HTTP middleware for Safeguard.
//
// Import Path: safeguard.io/safeguard/internal/api/middleware
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "safeguard.io/safeguard/internal/pkg/errors"
	"safeguard.io/safeguard/internal/pkg/logger"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Status      string                 `json:"status"`
	Kind        apperrors.Kind         `json:"kind"`
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	Params      map[string]interface{} `json:"params,omitempty"`
	FieldErrors []apperrors.FieldError `json:"field_errors,omitempty"`
	RequestID   string                 `json:"request_id,omitempty"`
}

// ErrorHandler is a Gin middleware that provides centralized error handling.
// It captures errors added via c.Error() and returns a consistent JSON response.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		render(c, c.Errors.Last().Err)
	}
}

// AbortWithError stops the chain and renders err.
func AbortWithError(c *gin.Context, err error) {
	c.Abort()
	render(c, err)
}

func render(c *gin.Context, err error) {
	rid := GetRequestID(c.Request.Context())

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus < http.StatusInternalServerError {
		logger.Warn("Request error",
			zap.String("request_id", rid),
			zap.String("code", appErr.Code),
			zap.String("message", appErr.Message),
			zap.Int("status", appErr.HTTPStatus),
			zap.Error(appErr.Err),
		)
		c.JSON(appErr.HTTPStatus, ErrorResponse{
			Status:      "error",
			Kind:        appErr.Kind(),
			Code:        appErr.Code,
			Message:     appErr.Message,
			Params:      appErr.Params,
			FieldErrors: appErr.FieldErrors,
			RequestID:   rid,
		})
		return
	}

	// Internal failures never leak their cause to the client.
	logger.Error("Unhandled request error", zap.String("request_id", rid), zap.Error(err))
	status, code := http.StatusInternalServerError, apperrors.CodeInternalError
	if appErr != nil {
		status, code = appErr.HTTPStatus, appErr.Code
	}
	c.JSON(status, ErrorResponse{
		Status:    "error",
		Kind:      apperrors.KindInternal,
		Code:      code,
		Message:   "An internal error occurred",
		RequestID: rid,
	})
}
