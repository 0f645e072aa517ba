package ports

import (
	"context"
	"time"
)

// OTPStore keeps forgot-password one-time codes with a TTL (Redis-backed).
type OTPStore interface {
	Save(ctx context.Context, email, code string, ttl time.Duration) error
	// Consume returns and deletes the stored code for email; a second call
	// for the same email fails.
	Consume(ctx context.Context, email string) (string, error)
}

// Mailer is the outbound SMTP collaborator for OTP delivery.
type Mailer interface {
	SendOTP(to, code string) error
}

// Broadcaster relays maintenance notices to operators (Telegram-backed).
type Broadcaster interface {
	Broadcast(msg string) error
}
