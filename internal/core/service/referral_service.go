package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/keyforge/license-panel/internal/core/domain"
	"github.com/keyforge/license-panel/internal/core/ports"
)

// ReferralService mints and manages single-use signup codes.
type ReferralService struct {
	referrals ports.ReferralRepository
	activity  ports.ActivityRepository
	hierarchy hierarchy
	log       zerolog.Logger
}

func NewReferralService(
	referrals ports.ReferralRepository,
	users ports.UserRepository,
	activity ports.ActivityRepository,
	log zerolog.Logger,
) *ReferralService {
	return &ReferralService{
		referrals: referrals,
		activity:  activity,
		hierarchy: hierarchy{users: users},
		log:       log,
	}
}

// Generate mints a code. ExpiryDays is mandatory and positive; the creation
// matrix decides who may mint which role.
func (s *ReferralService) Generate(ctx context.Context, caller ports.Caller, in ports.GenerateReferralInput) (*domain.ReferralCode, error) {
	if !caller.Role.Manages() {
		return nil, domain.ErrForbidden
	}
	if in.ExpiryDays <= 0 {
		return nil, domain.ErrExpiryRequired
	}
	if _, err := domain.ParseRole(string(in.Role)); err != nil {
		return nil, err
	}
	if !caller.Role.CanMintReferral(in.Role) {
		return nil, domain.ErrForbidden
	}
	if in.InitialBalance < 0 {
		return nil, domain.ErrInvalidPayload
	}

	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate referral: %w", err)
	}
	now := time.Now().UTC()
	code := &domain.ReferralCode{
		Code:           hex.EncodeToString(raw),
		Role:           in.Role,
		CreatedBy:      caller.Username,
		CreatedAt:      now,
		IsActive:       true,
		InitialBalance: in.InitialBalance,
		ExpiryDays:     in.ExpiryDays,
		ExpiryDate:     now.AddDate(0, 0, in.ExpiryDays),
	}
	if err := s.referrals.Insert(ctx, code); err != nil {
		return nil, err
	}

	s.record(ctx, caller, "generate_referral", "referral", code.Code,
		fmt.Sprintf("role=%s balance=%.2f days=%d", in.Role, in.InitialBalance, in.ExpiryDays))
	return code, nil
}

// List returns codes scoped by the visibility matrix.
func (s *ReferralService) List(ctx context.Context, caller ports.Caller) ([]*domain.ReferralCode, error) {
	vis, exclude, err := s.hierarchy.filter(ctx, caller, domain.ResourceReferrals)
	if err != nil {
		return nil, err
	}
	return s.referrals.List(ctx, ports.ReferralListFilter{
		Visibility:      vis,
		Caller:          caller.Username,
		ExcludeCreators: exclude,
	})
}

// Delete removes a code after the ownership check.
func (s *ReferralService) Delete(ctx context.Context, caller ports.Caller, code string) error {
	if !caller.Role.Manages() {
		return domain.ErrForbidden
	}
	r, err := s.referrals.FindByCode(ctx, code)
	if err != nil {
		return err
	}
	ok, err := s.hierarchy.canMutate(ctx, caller, r.CreatedBy)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrForbidden
	}
	if err := s.referrals.Delete(ctx, code); err != nil {
		return err
	}
	s.record(ctx, caller, "delete_referral", "referral", code, "")
	return nil
}

func (s *ReferralService) record(ctx context.Context, caller ports.Caller, action, targetType, target, details string) {
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
