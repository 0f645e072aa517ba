package service

import (
	"context"
	"errors"

	"github.com/keyforge/license-panel/internal/core/domain"
	"github.com/keyforge/license-panel/internal/core/ports"
)

// hierarchy answers the visibility and ancestry questions every service needs:
// which rows a caller may see or touch, what a user's effective server status
// is, and who a user's descendants are.
type hierarchy struct {
	users ports.UserRepository
}

// filter resolves the caller's listing scope on a resource. For owner scope it
// also resolves the super-owner usernames whose rows must be excluded.
func (h hierarchy) filter(ctx context.Context, caller ports.Caller, res domain.Resource) (domain.Visibility, []string, error) {
	vis := caller.Role.VisibilityOf(res)
	if vis == domain.VisibilityNone {
		return vis, nil, domain.ErrForbidden
	}
	if vis != domain.VisibilityNonSuperOwner {
		return vis, nil, nil
	}
	exclude, err := h.users.ListUsernamesByRole(ctx, domain.RoleSuperOwner)
	if err != nil {
		return vis, nil, err
	}
	return vis, exclude, nil
}

// canMutate reports whether caller may edit/delete/disable a row created by
// creator. Mutation mirrors visibility.
func (h hierarchy) canMutate(ctx context.Context, caller ports.Caller, creator string) (bool, error) {
	switch caller.Role {
	case domain.RoleSuperOwner:
		return true, nil
	case domain.RoleOwner:
		if creator == domain.SystemCreator {
			return true, nil
		}
		u, err := h.users.FindByUsername(ctx, creator)
		if err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				return true, nil
			}
			return false, err
		}
		return u.Role != domain.RoleSuperOwner, nil
	case domain.RoleAdmin:
		return creator == caller.Username, nil
	default:
		return false, nil
	}
}

// effectiveServerStatus walks the createdBy chain; OFF anywhere wins. The
// visited set guards against creator cycles in legacy data.
func (h hierarchy) effectiveServerStatus(ctx context.Context, username string) (bool, error) {
	visited := map[string]struct{}{}
	current := username
	for current != "" && current != domain.SystemCreator {
		if _, seen := visited[current]; seen {
			break
		}
		visited[current] = struct{}{}

		u, err := h.users.FindByUsername(ctx, current)
		if err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				break
			}
			return false, err
		}
		if !u.ServerStatus {
			return false, nil
		}
		current = u.CreatedBy
	}
	return true, nil
}

// descendants returns every username reachable from root via the createdBy
// chain, excluding root itself. Breadth-first with a visited set.
func (h hierarchy) descendants(ctx context.Context, root string) ([]string, error) {
	var out []string
	visited := map[string]struct{}{root: {}}
	queue := []string{root}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		children, err := h.users.ListByCreator(ctx, current)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			if _, seen := visited[c.Username]; seen {
				continue
			}
			visited[c.Username] = struct{}{}
			out = append(out, c.Username)
			queue = append(queue, c.Username)
		}
	}
	return out, nil
}

// visibleUsers lists the accounts the caller may see on user-centric views:
// everything for super owners, everything non-super-owner for owners, own
// account plus own creations for admins.
func (h hierarchy) visibleUsers(ctx context.Context, caller ports.Caller) ([]*domain.User, error) {
	vis, exclude, err := h.filter(ctx, caller, domain.ResourceUsers)
	if err != nil {
		return nil, err
	}
	return h.users.List(ctx, ports.UserListFilter{
		Visibility:      vis,
		Caller:          caller.Username,
		ExcludeCreators: exclude,
	})
}
