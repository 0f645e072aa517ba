package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyforge/license-panel/internal/core/ports"
)

// ActivityHandler handles HTTP requests for the audit trail and analytics.
type ActivityHandler struct {
	service ports.ActivityService
}

func NewActivityHandler(service ports.ActivityService) *ActivityHandler {
	return &ActivityHandler{service: service}
}

// List handles GET /activities scoped by visibility.
func (h *ActivityHandler) List(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}
	rows, err := h.service.List(c.Request().Context(), caller)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, rows)
}

// Analytics handles GET /analytics.
func (h *ActivityHandler) Analytics(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}
	stats, err := h.service.Analytics(c.Request().Context(), caller)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, stats)
}
