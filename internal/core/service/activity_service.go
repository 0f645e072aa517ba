package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/keyforge/license-panel/internal/core/domain"
	"github.com/keyforge/license-panel/internal/core/ports"
)

const defaultActivityLimit = 200

// ActivityService reads the audit trail and computes analytics over the
// caller's visible set.
type ActivityService struct {
	activities ports.ActivityRepository
	keys       ports.KeyRepository
	hierarchy  hierarchy
	log        zerolog.Logger
}

func NewActivityService(
	activities ports.ActivityRepository,
	keys ports.KeyRepository,
	users ports.UserRepository,
	log zerolog.Logger,
) *ActivityService {
	return &ActivityService{
		activities: activities,
		keys:       keys,
		hierarchy:  hierarchy{users: users},
		log:        log,
	}
}

// List returns scoped audit rows. Super-owner-authored entries are suppressed
// for every caller, super owners included.
func (s *ActivityService) List(ctx context.Context, caller ports.Caller) ([]*domain.Activity, error) {
	vis, _, err := s.hierarchy.filter(ctx, caller, domain.ResourceActivities)
	if err != nil {
		return nil, err
	}
	return s.activities.List(ctx, ports.ActivityListFilter{
		Visibility:    vis,
		Caller:        caller.Username,
		SuppressRoles: []domain.Role{domain.RoleSuperOwner},
		Limit:         defaultActivityLimit,
	})
}

// Analytics aggregates counts over the caller's visible users and keys.
func (s *ActivityService) Analytics(ctx context.Context, caller ports.Caller) (*ports.Analytics, error) {
	if !caller.Role.Manages() {
		return nil, domain.ErrForbidden
	}

	users, err := s.hierarchy.visibleUsers(ctx, caller)
	if err != nil {
		return nil, err
	}
	vis, exclude, err := s.hierarchy.filter(ctx, caller, domain.ResourceKeys)
	if err != nil {
		return nil, err
	}
	keys, err := s.keys.List(ctx, ports.KeyListFilter{
		Visibility:      vis,
		Caller:          caller.Username,
		ExcludeCreators: exclude,
	})
	if err != nil {
		return nil, err
	}

	out := &ports.Analytics{UsersByRole: map[domain.Role]int{}}
	for _, u := range users {
		out.UsersByRole[u.Role]++
		out.TotalBalance += u.Balance
	}
	out.TotalKeys = len(keys)
	for _, k := range keys {
		if k.IsActive {
			out.ActiveKeys++
		}
	}
	return out, nil
}

// Record appends an audit row on behalf of a handler-level action (e.g.
// broadcast). Best-effort like every other activity write.
func (s *ActivityService) Record(ctx context.Context, caller ports.Caller, action, targetType, target, details string) {
	a := &domain.Activity{
		Username:   caller.Username,
		Role:       caller.Role,
		Action:     action,
		TargetType: targetType,
		Target:     target,
		Details:    details,
		Timestamp:  time.Now().UTC(),
	}
	if err := s.activities.Insert(ctx, a); err != nil {
		s.log.Warn().Err(err).Str("action", action).Msg("failed to record activity")
	}
}
