package ports

import (
	"context"
	"time"

	"github.com/keyforge/license-panel/internal/core/domain"
)

// SessionRepository persists opaque bearer sessions. Expiry is enforced by the
// Find query filter; expired rows are never purged here.
type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	// Find returns the session for token iff expiresAt > now; otherwise
	// domain.ErrUnauthorized.
	Find(ctx context.Context, token string, now time.Time) (*domain.Session, error)
	// Delete removes the session row; deleting a missing token is a no-op.
	Delete(ctx context.Context, token string) error
}
