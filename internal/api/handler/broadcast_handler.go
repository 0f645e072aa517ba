package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/keyforge/license-panel/internal/core/ports"
)

type broadcastRequest struct {
	Message string `json:"message" validate:"required,min=1,max=4000"`
}

// BroadcastHandler relays operator notices through the configured broadcaster.
type BroadcastHandler struct {
	broadcaster ports.Broadcaster
	activities  ports.ActivityService
	log         zerolog.Logger
}

func NewBroadcastHandler(broadcaster ports.Broadcaster, activities ports.ActivityService, log zerolog.Logger) *BroadcastHandler {
	return &BroadcastHandler{broadcaster: broadcaster, activities: activities, log: log}
}

// Broadcast handles POST /broadcast.
func (h *BroadcastHandler) Broadcast(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	var req broadcastRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.broadcaster.Broadcast(req.Message); err != nil {
		h.log.Error().Err(err).Msg("broadcast delivery failed")
		return echo.NewHTTPError(http.StatusBadGateway, "broadcast delivery failed")
	}
	h.activities.Record(c.Request().Context(), caller, "broadcast", "notice", "", req.Message)
	return ok(c, http.StatusOK, nil)
}
