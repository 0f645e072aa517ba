package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyforge/license-panel/internal/api/metrics"
	"github.com/keyforge/license-panel/internal/core/ports"
)

type addBalanceRequest struct {
	Username string  `json:"username" validate:"required"`
	Amount   float64 `json:"amount" validate:"required,gt=0"`
}

type serverStatusRequest struct {
	Username string `json:"username" validate:"required"`
	Status   *bool  `json:"status" validate:"required"`
}

// UserHandler handles HTTP requests for balances and the server-status
// kill switch.
type UserHandler struct {
	service ports.UserService
}

func NewUserHandler(service ports.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// Balances handles GET /balance.
func (h *UserHandler) Balances(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}
	views, err := h.service.Balances(c.Request().Context(), caller)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, views)
}

// AddBalance handles POST /balance.
func (h *UserHandler) AddBalance(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	var req addBalanceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.service.AddBalance(c.Request().Context(), caller, req.Username, req.Amount); err != nil {
		return err
	}
	metrics.BalanceCreditsTotal.Inc()
	return ok(c, http.StatusOK, nil)
}

// ServerStatuses handles GET /users-server-status.
func (h *UserHandler) ServerStatuses(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}
	views, err := h.service.ServerStatuses(c.Request().Context(), caller)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, views)
}

// SetServerStatus handles POST /users-server-status.
func (h *UserHandler) SetServerStatus(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	var req serverStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.service.SetServerStatus(c.Request().Context(), caller, req.Username, *req.Status); err != nil {
		return err
	}
	return ok(c, http.StatusOK, nil)
}
