package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keyforge/license-panel/internal/core/domain"
)

// OTPStore keeps forgot-password one-time codes with a TTL.
// Key format: otp:<email>
type OTPStore struct {
	client *redis.Client
}

// NewOTPStore creates an OTPStore wrapping the given Redis client.
func NewOTPStore(client *redis.Client) *OTPStore {
	return &OTPStore{client: client}
}

// Save stores the code for email, replacing any previous one.
func (s *OTPStore) Save(ctx context.Context, email, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(email), code, ttl).Err(); err != nil {
		return fmt.Errorf("otp save: %w", err)
	}
	return nil
}

// Consume returns and deletes the stored code in one round trip, so a code
// can only ever be checked once.
func (s *OTPStore) Consume(ctx context.Context, email string) (string, error) {
	code, err := s.client.GetDel(ctx, s.key(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrOTPInvalid
		}
		return "", fmt.Errorf("otp consume: %w", err)
	}
	return code, nil
}

func (s *OTPStore) key(email string) string {
	return "otp:" + email
}
