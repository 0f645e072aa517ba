package ports

import (
	"context"

	"github.com/keyforge/license-panel/internal/core/domain"
)

// GenerateReferralInput carries a code-minting request. ExpiryDays is
// mandatory and must be positive.
type GenerateReferralInput struct {
	Role           domain.Role
	InitialBalance float64
	ExpiryDays     int
}

// ReferralService mints and manages single-use signup codes.
type ReferralService interface {
	Generate(ctx context.Context, caller Caller, in GenerateReferralInput) (*domain.ReferralCode, error)
	List(ctx context.Context, caller Caller) ([]*domain.ReferralCode, error)
	Delete(ctx context.Context, caller Caller, code string) error
}
