package ports

import (
	"context"
	"time"

	"github.com/keyforge/license-panel/internal/core/domain"
)

// IssueKeyInput carries the generation request. Duration+Price are used
// verbatim when both are supplied; otherwise the price is computed from
// ExpiryDate and the flat per-day rate.
type IssueKeyInput struct {
	KeyType       domain.KeyType
	CustomKeyName string
	Duration      *int
	DurationType  domain.DurationType
	Price         *float64
	ExpiryDate    *time.Time
	MaxDevices    int
}

// KeyEditInput carries a single-key edit.
type KeyEditInput struct {
	Key        string
	IsActive   *bool
	MaxDevices *int
	ExpiryDate *time.Time
	Price      *float64
}

// ConnectInput is the deobfuscated boundary request from the downstream
// product: the raw base64 payload plus the presented API key.
type ConnectInput struct {
	Payload string
	APIKey  string
}

// ConnectResult is returned to the downstream product on a valid connect.
type ConnectResult struct {
	Key        string    `json:"key"`
	ExpiryDate time.Time `json:"expiry_date"`
	Devices    int       `json:"devices"`
	MaxDevices int       `json:"max_devices"`
}

// KeyService implements key issuance, billing, management, and the external
// connect/activation boundary.
type KeyService interface {
	Issue(ctx context.Context, caller Caller, in IssueKeyInput) (*domain.Key, error)
	List(ctx context.Context, caller Caller) ([]*domain.Key, error)
	Edit(ctx context.Context, caller Caller, in KeyEditInput) error
	BulkSetActive(ctx context.Context, caller Caller, keys []string, active bool) (int64, error)
	Delete(ctx context.Context, caller Caller, key string) error
	// ResetUUIDs zeroes currentDevices and drops device rows; idempotent.
	ResetUUIDs(ctx context.Context, caller Caller, key string) error
	Connect(ctx context.Context, in ConnectInput) (*ConnectResult, error)
}
