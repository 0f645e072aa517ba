package ports

import (
	"context"

	"github.com/keyforge/license-panel/internal/core/domain"
)

// ActivityListFilter scopes an activity listing. SuppressRoles is always
// populated with super_owner by the service layer: super-owner-authored
// entries are hidden from everyone, including super owners themselves.
type ActivityListFilter struct {
	Visibility    domain.Visibility
	Caller        string
	SuppressRoles []domain.Role
	Limit         int64
}

// ActivityRepository persists the append-only audit trail.
type ActivityRepository interface {
	Insert(ctx context.Context, a *domain.Activity) error
	List(ctx context.Context, filter ActivityListFilter) ([]*domain.Activity, error)
}
