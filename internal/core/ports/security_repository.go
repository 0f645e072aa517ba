package ports

import (
	"context"
	"time"

	"github.com/keyforge/license-panel/internal/core/domain"
)

// SecurityRepository persists login attempts and IP blocks.
type SecurityRepository interface {
	InsertAttempt(ctx context.Context, a *domain.LoginAttempt) error
	// CountFailures counts failed attempts for ip since the given time.
	CountFailures(ctx context.Context, ip string, since time.Time) (int64, error)

	InsertBlock(ctx context.Context, b *domain.BlockedIP) error
	// ActiveBlock returns the current block for ip (permanent, or temporary
	// with expiresAt > now), or (nil, nil) when the IP is clean.
	ActiveBlock(ctx context.Context, ip string, now time.Time) (*domain.BlockedIP, error)
	ListBlocks(ctx context.Context) ([]*domain.BlockedIP, error)
	// DeleteBlock removes all block rows for ip; missing rows are a no-op.
	DeleteBlock(ctx context.Context, ip string) error
}
