package ports

import (
	"context"
	"time"

	"github.com/keyforge/license-panel/internal/core/domain"
)

// ReferralListFilter scopes a referral listing.
type ReferralListFilter struct {
	Visibility      domain.Visibility
	Caller          string
	ExcludeCreators []string
}

// ReferralRepository persists single-use signup codes.
type ReferralRepository interface {
	Insert(ctx context.Context, r *domain.ReferralCode) error
	FindByCode(ctx context.Context, code string) (*domain.ReferralCode, error)
	// Redeem atomically flips an active, unused code to used. Returns
	// domain.ErrReferralInvalid when no redeemable document matches, so a
	// second redemption of the same code always fails.
	Redeem(ctx context.Context, code, usedBy string, at time.Time) (*domain.ReferralCode, error)
	List(ctx context.Context, filter ReferralListFilter) ([]*domain.ReferralCode, error)
	Delete(ctx context.Context, code string) error
}
