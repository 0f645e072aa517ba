package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("access forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrAccountExpired     = errors.New("account has expired")
	ErrIPBlocked          = errors.New("ip address is blocked")
	ErrServerOff          = errors.New("server status is off")

	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("username already taken")
	ErrInvalidRole  = errors.New("invalid role")

	ErrInsufficientBalance = errors.New("insufficient balance")

	ErrKeyNotFound    = errors.New("key not found")
	ErrKeyExhausted   = errors.New("could not generate a unique key")
	ErrKeyTooShort    = errors.New("custom key must be at least 4 characters")
	ErrInvalidKeyType = errors.New("invalid key type")
	ErrDeviceLimit    = errors.New("device limit reached")
	ErrKeyInactive    = errors.New("key is inactive")
	ErrKeyExpired     = errors.New("key has expired")

	ErrInvalidPayload = errors.New("invalid payload")
	ErrInvalidAPIKey  = errors.New("invalid api key")

	ErrReferralNotFound = errors.New("referral code not found")
	ErrReferralInvalid  = errors.New("referral code is invalid or used")
	ErrExpiryRequired   = errors.New("expiry days is required and must be positive")

	ErrOTPInvalid    = errors.New("invalid or expired otp")
	ErrEmailUnknown  = errors.New("no account with that email")
	ErrResetToken    = errors.New("invalid or expired reset token")
	ErrSelfBalance   = errors.New("cannot modify own balance")
	ErrSelfServerOff = errors.New("cannot turn off own server status")
)

// LoginRejectedError is returned on a failed credential check that did not
// (yet) escalate to an IP block; Remaining is the number of attempts left
// before the block triggers.
type LoginRejectedError struct {
	Remaining int
}

func (e *LoginRejectedError) Error() string {
	return fmt.Sprintf("invalid credentials, %d attempts remaining", e.Remaining)
}

func (e *LoginRejectedError) Unwrap() error { return ErrInvalidCredentials }
