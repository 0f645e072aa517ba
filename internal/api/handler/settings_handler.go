package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyforge/license-panel/internal/core/domain"
	"github.com/keyforge/license-panel/internal/core/ports"
)

type priceTierRequest struct {
	Duration int     `json:"duration" validate:"required,min=1"`
	Price    float64 `json:"price" validate:"required,gt=0"`
	Type     string  `json:"type" validate:"required,oneof=hours days"`
}

type updateSettingsRequest struct {
	PricePerDay     float64            `json:"price_per_day" validate:"required,gt=0"`
	DurationPricing []priceTierRequest `json:"duration_pricing" validate:"omitempty,dive"`
}

// SettingsHandler handles HTTP requests for the pricing document.
type SettingsHandler struct {
	service ports.SettingsService
}

func NewSettingsHandler(service ports.SettingsService) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// Get handles GET /settings.
func (h *SettingsHandler) Get(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}
	settings, err := h.service.Get(c.Request().Context(), caller)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, settings)
}

// Update handles POST /settings. The stored version is bumped by the
// service; the request never carries one.
func (h *SettingsHandler) Update(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	var req updateSettingsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	tiers := make([]domain.PriceTier, 0, len(req.DurationPricing))
	for _, t := range req.DurationPricing {
		tiers = append(tiers, domain.PriceTier{
			Duration: t.Duration,
			Price:    t.Price,
			Type:     domain.DurationType(t.Type),
		})
	}

	updated, err := h.service.Update(c.Request().Context(), caller, &domain.PricingSettings{
		PricePerDay:     req.PricePerDay,
		DurationPricing: tiers,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, updated)
}
