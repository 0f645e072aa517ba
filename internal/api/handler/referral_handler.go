package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyforge/license-panel/internal/core/domain"
	"github.com/keyforge/license-panel/internal/core/ports"
)

type generateReferralRequest struct {
	Role           string  `json:"role" validate:"required"`
	InitialBalance float64 `json:"initial_balance" validate:"omitempty,min=0"`
	ExpiryDays     int     `json:"expiry_days" validate:"required,min=1"`
}

// ReferralHandler handles HTTP requests for signup code management.
type ReferralHandler struct {
	service ports.ReferralService
}

func NewReferralHandler(service ports.ReferralService) *ReferralHandler {
	return &ReferralHandler{service: service}
}

// Generate handles POST /referrals.
func (h *ReferralHandler) Generate(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	var req generateReferralRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return err
	}

	code, err := h.service.Generate(c.Request().Context(), caller, ports.GenerateReferralInput{
		Role:           role,
		InitialBalance: req.InitialBalance,
		ExpiryDays:     req.ExpiryDays,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, code)
}

// List handles GET /referrals scoped by visibility.
func (h *ReferralHandler) List(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}
	codes, err := h.service.List(c.Request().Context(), caller)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, codes)
}

// Delete handles DELETE /referrals?code=....
func (h *ReferralHandler) Delete(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}
	code := c.QueryParam("code")
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code is required")
	}
	if err := h.service.Delete(c.Request().Context(), caller, code); err != nil {
		return err
	}
	return ok(c, http.StatusOK, nil)
}
