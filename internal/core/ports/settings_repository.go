package ports

import (
	"context"

	"github.com/keyforge/license-panel/internal/core/domain"
)

// SettingsRepository persists the versioned pricing document.
type SettingsRepository interface {
	// Get returns the current settings, or (nil, nil) when none exist yet.
	Get(ctx context.Context) (*domain.PricingSettings, error)
	// Put upserts the settings document, bumping its version.
	Put(ctx context.Context, s *domain.PricingSettings) error
}
