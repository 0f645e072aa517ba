package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyforge/license-panel/internal/api/metrics"
	"github.com/keyforge/license-panel/internal/core/domain"
	"github.com/keyforge/license-panel/internal/core/ports"
)

type AuthHandler struct {
	auth       ports.AuthService
	cookieName string
}

func NewAuthHandler(auth ports.AuthService, cookieName string) *AuthHandler {
	return &AuthHandler{auth: auth, cookieName: cookieName}
}

// Login authenticates the user and sets the session cookie.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  envelope
// @Failure      401   {object}  map[string]any
// @Failure      403   {object}  map[string]any
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.auth.Login(c.Request().Context(), ports.LoginInput{
		Username:  req.Username,
		Password:  req.Password,
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrIPBlocked) {
			metrics.LoginsTotal.WithLabelValues("blocked").Inc()
			metrics.IPBlocksTotal.Inc()
		} else {
			metrics.LoginsTotal.WithLabelValues("failure").Inc()
		}
		return err
	}
	metrics.LoginsTotal.WithLabelValues("success").Inc()

	c.SetCookie(&http.Cookie{
		Name:     h.cookieName,
		Value:    result.Token,
		Path:     "/",
		Expires:  result.Session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return ok(c, http.StatusOK, loginResponse{
		Username: result.User.Username,
		Role:     result.User.Role,
		Balance:  result.User.Balance,
	})
}

// Register redeems a referral code into a new account.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.auth.Register(c.Request().Context(), ports.RegisterInput{
		Code:     req.ReferralCode,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, user)
}

// Logout deletes the session. Calling it twice is safe.
func (h *AuthHandler) Logout(c echo.Context) error {
	token := ""
	if cookie, err := c.Cookie(h.cookieName); err == nil {
		token = cookie.Value
	}
	if err := h.auth.Logout(c.Request().Context(), token); err != nil {
		return err
	}

	// Expire the cookie client-side as well.
	c.SetCookie(&http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return ok(c, http.StatusOK, nil)
}

// Status resolves the cookie to {authenticated, session?}. Never errors: an
// absent or expired session yields authenticated=false.
func (h *AuthHandler) Status(c echo.Context) error {
	cookie, err := c.Cookie(h.cookieName)
	if err != nil || cookie.Value == "" {
		return ok(c, http.StatusOK, statusResponse{Authenticated: false})
	}

	session, err := h.auth.Resolve(c.Request().Context(), cookie.Value)
	if err != nil {
		return ok(c, http.StatusOK, statusResponse{Authenticated: false})
	}
	return ok(c, http.StatusOK, statusResponse{
		Authenticated: true,
		Session: &sessionView{
			Username:  session.Username,
			Role:      session.Role,
			ExpiresAt: session.ExpiresAt,
		},
	})
}

// SendOTP mails a one-time password-reset code.
func (h *AuthHandler) SendOTP(c echo.Context) error {
	var req sendOTPRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.auth.SendOTP(c.Request().Context(), req.Email); err != nil {
		return err
	}
	metrics.OTPRequestsTotal.Inc()
	return ok(c, http.StatusOK, nil)
}

// VerifyOTP consumes the code and returns a short-lived reset token.
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req verifyOTPRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	token, err := h.auth.VerifyOTP(c.Request().Context(), req.Email, req.Code)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, map[string]string{"reset_token": token})
}

// ResetPassword installs a new password given a valid reset token.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.auth.ResetPassword(c.Request().Context(), req.ResetToken, req.NewPassword); err != nil {
		return err
	}
	return ok(c, http.StatusOK, nil)
}

// BlockedIPs lists current and historical IP blocks.
func (h *AuthHandler) BlockedIPs(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}
	blocks, err := h.auth.ListBlockedIPs(c.Request().Context(), caller)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, blocks)
}

// Unblock removes every block row for an IP.
func (h *AuthHandler) Unblock(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}
	ip := c.QueryParam("ip")
	if ip == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "ip is required")
	}
	if err := h.auth.Unblock(c.Request().Context(), caller, ip); err != nil {
		return err
	}
	return ok(c, http.StatusOK, nil)
}
