package ports

import (
	"context"

	"github.com/keyforge/license-panel/internal/core/domain"
)

// Analytics aggregates counts over the caller's visible set.
type Analytics struct {
	UsersByRole  map[domain.Role]int `json:"users_by_role"`
	TotalKeys    int                 `json:"total_keys"`
	ActiveKeys   int                 `json:"active_keys"`
	TotalBalance float64             `json:"total_balance"`
}

// ActivityService reads the audit trail and computes analytics.
type ActivityService interface {
	List(ctx context.Context, caller Caller) ([]*domain.Activity, error)
	Analytics(ctx context.Context, caller Caller) (*Analytics, error)
	// Record appends an audit row; failures are logged, never surfaced.
	Record(ctx context.Context, caller Caller, action, targetType, target, details string)
}

// SettingsService reads and updates the pricing document.
type SettingsService interface {
	Get(ctx context.Context, caller Caller) (*domain.PricingSettings, error)
	Update(ctx context.Context, caller Caller, s *domain.PricingSettings) (*domain.PricingSettings, error)
}
