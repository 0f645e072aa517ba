package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/keyforge/license-panel/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors. The legacy
// frontend's two competing shapes are collapsed into this one.
type errorResponse struct {
	Status bool   `json:"status"`
	Reason string `json:"reason"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"status":false,"reason":"<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		_ = c.JSON(code, errorResponse{Status: false, Reason: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	// A failed login that has not yet escalated carries the remaining count.
	var rejected *domain.LoginRejectedError
	if errors.As(err, &rejected) {
		return http.StatusUnauthorized, rejected.Error()
	}

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"

	case errors.Is(err, domain.ErrIPBlocked),
		errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrAccountDisabled),
		errors.Is(err, domain.ErrAccountExpired),
		errors.Is(err, domain.ErrServerOff),
		errors.Is(err, domain.ErrSelfBalance),
		errors.Is(err, domain.ErrSelfServerOff),
		errors.Is(err, domain.ErrInvalidAPIKey),
		errors.Is(err, domain.ErrDeviceLimit),
		errors.Is(err, domain.ErrKeyInactive),
		errors.Is(err, domain.ErrKeyExpired):
		return http.StatusForbidden, err.Error()

	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrKeyNotFound),
		errors.Is(err, domain.ErrReferralNotFound),
		errors.Is(err, domain.ErrEmailUnknown):
		return http.StatusNotFound, err.Error()

	case errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict, err.Error()

	case errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrKeyTooShort),
		errors.Is(err, domain.ErrInvalidKeyType),
		errors.Is(err, domain.ErrKeyExhausted),
		errors.Is(err, domain.ErrInvalidPayload),
		errors.Is(err, domain.ErrExpiryRequired),
		errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrReferralInvalid),
		errors.Is(err, domain.ErrOTPInvalid),
		errors.Is(err, domain.ErrResetToken):
		return http.StatusBadRequest, err.Error()
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
