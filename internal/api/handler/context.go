package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyforge/license-panel/internal/core/domain"
	"github.com/keyforge/license-panel/internal/core/ports"
)

// ctxCaller extracts the principal injected by the session middleware and
// fast-fails before any service call: both fields present proves the
// middleware ran and the role string is one of the closed set.
func ctxCaller(c echo.Context) (ports.Caller, error) {
	username, _ := c.Get("username").(string)
	rawRole, _ := c.Get("role").(string)
	if username == "" || rawRole == "" {
		return ports.Caller{}, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	role, err := domain.ParseRole(rawRole)
	if err != nil {
		return ports.Caller{}, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	return ports.Caller{Username: username, Role: role}, nil
}
