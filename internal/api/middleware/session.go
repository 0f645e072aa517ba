package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyforge/license-panel/internal/core/ports"
)

// Session resolves the admin-token cookie to an unexpired session and injects
// username/role into the request context. There is no refresh: an expired
// session means re-login.
func Session(auth ports.AuthService, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}

			session, err := auth.Resolve(c.Request().Context(), cookie.Value)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}

			c.Set("username", session.Username)
			c.Set("role", string(session.Role))
			c.Set("token", cookie.Value)

			return next(c)
		}
	}
}
