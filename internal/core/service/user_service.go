package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/keyforge/license-panel/internal/core/domain"
	"github.com/keyforge/license-panel/internal/core/ports"
)

// UserService implements balance management and the server-status kill switch.
type UserService struct {
	users     ports.UserRepository
	activity  ports.ActivityRepository
	hierarchy hierarchy
	log       zerolog.Logger
}

func NewUserService(users ports.UserRepository, activity ports.ActivityRepository, log zerolog.Logger) *UserService {
	return &UserService{
		users:     users,
		activity:  activity,
		hierarchy: hierarchy{users: users},
		log:       log,
	}
}

// Balances returns the caller's own balance plus, for managing roles, the
// balances of every visible account.
func (s *UserService) Balances(ctx context.Context, caller ports.Caller) ([]ports.BalanceView, error) {
	if !caller.Role.Manages() {
		self, err := s.users.FindByUsername(ctx, caller.Username)
		if err != nil {
			return nil, err
		}
		return []ports.BalanceView{{Username: self.Username, Role: self.Role, Balance: self.Balance}}, nil
	}

	visible, err := s.hierarchy.visibleUsers(ctx, caller)
	if err != nil {
		return nil, err
	}
	out := make([]ports.BalanceView, 0, len(visible))
	for _, u := range visible {
		out = append(out, ports.BalanceView{Username: u.Username, Role: u.Role, Balance: u.Balance})
	}
	return out, nil
}

// AddBalance credits target. Owners may never act on their own balance, and
// the target must be inside the caller's mutation scope.
func (s *UserService) AddBalance(ctx context.Context, caller ports.Caller, target string, amount float64) error {
	if !caller.Role.Manages() {
		return domain.ErrForbidden
	}
	if amount <= 0 {
		return domain.ErrInvalidPayload
	}
	if caller.Role == domain.RoleOwner && target == caller.Username {
		return domain.ErrSelfBalance
	}

	user, err := s.users.FindByUsername(ctx, target)
	if err != nil {
		return err
	}
	ok, err := s.hierarchy.canMutate(ctx, caller, user.CreatedBy)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrForbidden
	}

	if err := s.users.Credit(ctx, target, amount); err != nil {
		return err
	}
	s.record(ctx, caller, "add_balance", "user", target, fmt.Sprintf("amount=%.2f", amount))
	return nil
}

// ServerStatuses lists visible users with their own and effective flags.
func (s *UserService) ServerStatuses(ctx context.Context, caller ports.Caller) ([]ports.ServerStatusView, error) {
	if !caller.Role.Manages() {
		return nil, domain.ErrForbidden
	}
	visible, err := s.hierarchy.visibleUsers(ctx, caller)
	if err != nil {
		return nil, err
	}
	out := make([]ports.ServerStatusView, 0, len(visible))
	for _, u := range visible {
		eff := u.ServerStatus
		if eff {
			eff, err = s.hierarchy.effectiveServerStatus(ctx, u.Username)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, ports.ServerStatusView{
			Username:  u.Username,
			Role:      u.Role,
			Own:       u.ServerStatus,
			Effective: eff,
		})
	}
	return out, nil
}

// SetServerStatus toggles target and cascades the flag to every descendant
// reachable via the createdBy chain. Nobody may turn off their own flag.
func (s *UserService) SetServerStatus(ctx context.Context, caller ports.Caller, target string, on bool) error {
	if !caller.Role.Manages() {
		return domain.ErrForbidden
	}
	if !on && target == caller.Username {
		return domain.ErrSelfServerOff
	}

	user, err := s.users.FindByUsername(ctx, target)
	if err != nil {
		return err
	}
	ok, err := s.hierarchy.canMutate(ctx, caller, user.CreatedBy)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrForbidden
	}

	if err := s.users.SetServerStatus(ctx, target, on); err != nil {
		return err
	}
	descendants, err := s.hierarchy.descendants(ctx, target)
	if err != nil {
		return err
	}
	for _, name := range descendants {
		if err := s.users.SetServerStatus(ctx, name, on); err != nil {
			s.log.Warn().Err(err).Str("username", name).Msg("cascade server status failed")
		}
	}

	s.record(ctx, caller, "set_server_status", "user", target,
		fmt.Sprintf("on=%t cascaded=%d", on, len(descendants)))
	return nil
}

// EffectiveServerStatus walks the createdBy chain; OFF anywhere wins.
func (s *UserService) EffectiveServerStatus(ctx context.Context, username string) (bool, error) {
	return s.hierarchy.effectiveServerStatus(ctx, username)
}

func (s *UserService) record(ctx context.Context, caller ports.Caller, action, targetType, target, details string) {
	a := &domain.Activity{
		Username:   caller.Username,
		Role:       caller.Role,
		Action:     action,
		TargetType: targetType,
		Target:     target,
		Details:    details,
		Timestamp:  time.Now().UTC(),
	}
	if err := s.activity.Insert(ctx, a); err != nil {
		s.log.Warn().Err(err).Str("action", action).Msg("failed to record activity")
	}
}
