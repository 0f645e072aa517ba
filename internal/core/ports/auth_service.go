package ports

import (
	"context"

	"github.com/keyforge/license-panel/internal/core/domain"
)

// Caller identifies the authenticated principal behind a request.
type Caller struct {
	Username string
	Role     domain.Role
}

// LoginInput carries everything the login gate needs.
type LoginInput struct {
	Username  string
	Password  string
	IP        string
	UserAgent string
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token     string
	Session   *domain.Session
	User      *domain.User
}

// RegisterInput redeems a referral code into a new account.
type RegisterInput struct {
	Code     string
	Username string
	Email    string
	Password string
}

// AuthService implements the login gate (IP blocking included), registration
// via referral redemption, session lifecycle, the forgot-password flow, and
// blocked-IP administration.
type AuthService interface {
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	// Logout is idempotent: a missing or already-deleted token is a no-op.
	Logout(ctx context.Context, token string) error
	// Resolve maps a bearer token to its unexpired session.
	Resolve(ctx context.Context, token string) (*domain.Session, error)

	SendOTP(ctx context.Context, email string) error
	// VerifyOTP consumes the code and returns a short-lived signed reset token.
	VerifyOTP(ctx context.Context, email, code string) (string, error)
	ResetPassword(ctx context.Context, resetToken, newPassword string) error

	ListBlockedIPs(ctx context.Context, caller Caller) ([]*domain.BlockedIP, error)
	Unblock(ctx context.Context, caller Caller, ip string) error
}
