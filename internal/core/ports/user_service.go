package ports

import (
	"context"

	"github.com/keyforge/license-panel/internal/core/domain"
)

// BalanceView is one row of the balance listing.
type BalanceView struct {
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
	Balance  float64     `json:"balance"`
}

// ServerStatusView is one row of the server-status listing. Effective is the
// AND over the user's own flag and every ancestor's.
type ServerStatusView struct {
	Username  string      `json:"username"`
	Role      domain.Role `json:"role"`
	Own       bool        `json:"server_status"`
	Effective bool        `json:"effective_server_status"`
}

// UserService implements balance management and the server-status kill switch.
type UserService interface {
	Balances(ctx context.Context, caller Caller) ([]BalanceView, error)
	// AddBalance credits target. Owners may not act on their own balance.
	AddBalance(ctx context.Context, caller Caller, target string, amount float64) error
	ServerStatuses(ctx context.Context, caller Caller) ([]ServerStatusView, error)
	// SetServerStatus toggles target and cascades to every descendant via the
	// createdBy chain. Turning off one's own server status is forbidden.
	SetServerStatus(ctx context.Context, caller Caller, target string, on bool) error
	// EffectiveServerStatus walks the createdBy chain with a visited-set
	// guard; OFF anywhere on the chain wins.
	EffectiveServerStatus(ctx context.Context, username string) (bool, error)
}
