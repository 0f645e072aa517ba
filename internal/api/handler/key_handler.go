package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyforge/license-panel/internal/api/metrics"
	"github.com/keyforge/license-panel/internal/core/domain"
	"github.com/keyforge/license-panel/internal/core/ports"
)

// KeyHandler handles HTTP requests for key issuance, management, and the
// external connect boundary.
type KeyHandler struct {
	service ports.KeyService
}

func NewKeyHandler(service ports.KeyService) *KeyHandler {
	return &KeyHandler{service: service}
}

// Issue handles POST /generate-key.
//
// @Summary      Issue a license key
// @Tags         keys
// @Accept       json
// @Produce      json
// @Param        body  body      issueKeyRequest  true  "Issue request"
// @Success      201   {object}  envelope
// @Failure      400   {object}  map[string]any
// @Failure      403   {object}  map[string]any
// @Router       /generate-key [post]
func (h *KeyHandler) Issue(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	var req issueKeyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	key, err := h.service.Issue(c.Request().Context(), caller, ports.IssueKeyInput{
		KeyType:       domain.KeyType(req.KeyType),
		CustomKeyName: req.CustomKeyName,
		Duration:      req.Duration,
		DurationType:  domain.DurationType(req.DurationType),
		Price:         req.Price,
		ExpiryDate:    req.ExpiryDate,
		MaxDevices:    req.MaxDevices,
	})
	if err != nil {
		metrics.KeyIssueErrorsTotal.WithLabelValues(issueErrorReason(err)).Inc()
		return err
	}
	metrics.KeysIssuedTotal.WithLabelValues(string(key.KeyType)).Inc()
	return ok(c, http.StatusCreated, toKeyView(key))
}

// List handles GET /keys scoped to the caller's visibility.
func (h *KeyHandler) List(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}
	keys, err := h.service.List(c.Request().Context(), caller)
	if err != nil {
		return err
	}
	views := make([]keyView, 0, len(keys))
	for _, k := range keys {
		views = append(views, toKeyView(k))
	}
	return ok(c, http.StatusOK, views)
}

// Edit handles PUT /keys. When the body targets a single key the field
// updates apply to it; the keys+active form flips status in bulk.
func (h *KeyHandler) Edit(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	var req editKeyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if len(req.Keys) > 0 {
		if req.Active == nil {
			return echo.NewHTTPError(http.StatusBadRequest, "active is required for bulk updates")
		}
		modified, err := h.service.BulkSetActive(c.Request().Context(), caller, req.Keys, *req.Active)
		if err != nil {
			return err
		}
		return ok(c, http.StatusOK, map[string]int64{"modified": modified})
	}
	if req.Key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "key is required")
	}

	if err := h.service.Edit(c.Request().Context(), caller, ports.KeyEditInput{
		Key:        req.Key,
		IsActive:   req.IsActive,
		MaxDevices: req.MaxDevices,
		ExpiryDate: req.ExpiryDate,
		Price:      req.Price,
	}); err != nil {
		return err
	}
	return ok(c, http.StatusOK, nil)
}

// Delete handles DELETE /keys?key=....
func (h *KeyHandler) Delete(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}
	key := c.QueryParam("key")
	if key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "key is required")
	}
	if err := h.service.Delete(c.Request().Context(), caller, key); err != nil {
		return err
	}
	return ok(c, http.StatusOK, nil)
}

// ResetUUIDs handles POST /keys/reset-uuids?key=.... Idempotent.
func (h *KeyHandler) ResetUUIDs(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}
	key := c.QueryParam("key")
	if key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "key is required")
	}
	if err := h.service.ResetUUIDs(c.Request().Context(), caller, key); err != nil {
		return err
	}
	return ok(c, http.StatusOK, nil)
}

// Connect handles POST /api/connect, the unauthenticated boundary called by
// the downstream product. The body is the obfuscated payload; the API key
// travels in the X-API-Key header.
//
// @Summary      Activate / validate a key from the downstream product
// @Tags         connect
// @Accept       text/plain
// @Produce      json
// @Param        X-API-Key  header    string  true  "Shared API key"
// @Success      200        {object}  envelope
// @Failure      401        {object}  map[string]any
// @Failure      403        {object}  map[string]any
// @Router       /api/connect [post]
func (h *KeyHandler) Connect(c echo.Context) error {
	var req struct {
		Payload string `json:"payload"`
	}
	if err := c.Bind(&req); err != nil || req.Payload == "" {
		metrics.ConnectsTotal.WithLabelValues("rejected").Inc()
		return domain.ErrInvalidPayload
	}

	result, err := h.service.Connect(c.Request().Context(), ports.ConnectInput{
		Payload: req.Payload,
		APIKey:  c.Request().Header.Get("X-API-Key"),
	})
	if err != nil {
		metrics.ConnectsTotal.WithLabelValues("rejected").Inc()
		return err
	}
	metrics.ConnectsTotal.WithLabelValues("accepted").Inc()
	return ok(c, http.StatusOK, result)
}

func issueErrorReason(err error) string {
	switch err {
	case domain.ErrInsufficientBalance:
		return "insufficient_balance"
	case domain.ErrKeyExhausted:
		return "exhausted"
	case domain.ErrKeyTooShort:
		return "key_too_short"
	case domain.ErrServerOff:
		return "server_off"
	case domain.ErrForbidden:
		return "forbidden"
	default:
		return "other"
	}
}
