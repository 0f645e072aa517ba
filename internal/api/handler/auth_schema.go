package handler

import (
	"time"

	"github.com/keyforge/license-panel/internal/core/domain"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	ReferralCode string `json:"referral_code" validate:"required"`
	Username     string `json:"username" validate:"required,min=3"`
	Email        string `json:"email" validate:"omitempty,email"`
	Password     string `json:"password" validate:"required,min=6"`
}

type sendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6"`
}

type resetPasswordRequest struct {
	ResetToken  string `json:"reset_token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

type sessionView struct {
	Username  string      `json:"username"`
	Role      domain.Role `json:"role"`
	ExpiresAt time.Time   `json:"expires_at"`
}

type statusResponse struct {
	Authenticated bool         `json:"authenticated"`
	Session       *sessionView `json:"session,omitempty"`
}

type loginResponse struct {
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
	Balance  float64     `json:"balance"`
}
