package ports

import (
	"context"

	"github.com/keyforge/license-panel/internal/core/domain"
)

// UserListFilter scopes a user listing according to the visibility matrix.
// ExcludeCreators carries the usernames of super owners when the caller is an
// owner (owner scope hides super-owner-authored rows).
type UserListFilter struct {
	Visibility      domain.Visibility
	Caller          string
	ExcludeCreators []string
	Role            domain.Role // optional: restrict to one role
}

// UserRepository defines persistence operations for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, filter UserListFilter) ([]*domain.User, error)
	ListByCreator(ctx context.Context, creator string) ([]*domain.User, error)
	ListUsernamesByRole(ctx context.Context, role domain.Role) ([]string, error)
	Count(ctx context.Context) (int64, error)

	// Debit atomically decrements balance by amount iff balance >= amount.
	// Returns domain.ErrInsufficientBalance when the conditional update
	// matches no document.
	Debit(ctx context.Context, username string, amount float64) error
	Credit(ctx context.Context, username string, amount float64) error
	SetBalance(ctx context.Context, username string, balance float64) error

	UpdatePasswordHash(ctx context.Context, username, hash string) error
	UpdateUsername(ctx context.Context, oldName, newName string) error
	SetActive(ctx context.Context, username string, active bool) error
	SetServerStatus(ctx context.Context, username string, on bool) error

	// SuspendForSystemExpiry snapshots isActive into previousIsActive and
	// deactivates the account; RestoreFromSystemExpiry reverses it.
	SuspendForSystemExpiry(ctx context.Context, username string) error
	RestoreFromSystemExpiry(ctx context.Context, username string) error
	// ListSuspendedBySystemExpiry returns users carrying a previousIsActive
	// snapshot.
	ListSuspendedBySystemExpiry(ctx context.Context) ([]*domain.User, error)
}
