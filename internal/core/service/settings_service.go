package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/keyforge/license-panel/internal/core/domain"
	"github.com/keyforge/license-panel/internal/core/ports"
)

// SettingsService reads and updates the versioned pricing document.
// Only owners and super owners may touch it.
type SettingsService struct {
	settings ports.SettingsRepository
	log      zerolog.Logger
}

func NewSettingsService(settings ports.SettingsRepository, log zerolog.Logger) *SettingsService {
	return &SettingsService{settings: settings, log: log}
}

func (s *SettingsService) Get(ctx context.Context, caller ports.Caller) (*domain.PricingSettings, error) {
	if caller.Role != domain.RoleSuperOwner && caller.Role != domain.RoleOwner {
		return nil, domain.ErrForbidden
	}
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = domain.DefaultPricing()
		if err := s.settings.Put(ctx, cfg); err != nil {
			s.log.Warn().Err(err).Msg("failed to install default pricing")
		}
	}
	return cfg, nil
}

func (s *SettingsService) Update(ctx context.Context, caller ports.Caller, in *domain.PricingSettings) (*domain.PricingSettings, error) {
	if caller.Role != domain.RoleSuperOwner && caller.Role != domain.RoleOwner {
		return nil, domain.ErrForbidden
	}
	if in.PricePerDay < 0 {
		return nil, domain.ErrInvalidPayload
	}
	for _, t := range in.DurationPricing {
		if t.Duration <= 0 || t.Price < 0 {
			return nil, domain.ErrInvalidPayload
		}
		if t.Type != domain.DurationDays && t.Type != domain.DurationHours {
			return nil, domain.ErrInvalidPayload
		}
	}

	current, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if current != nil {
		in.Version = current.Version + 1
	} else if in.Version == 0 {
		in.Version = 1
	}

	if err := s.settings.Put(ctx, in); err != nil {
		return nil, err
	}
	s.log.Info().Int("version", in.Version).Float64("price_per_day", in.PricePerDay).Msg("pricing updated")
	return in, nil
}
