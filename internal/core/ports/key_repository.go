package ports

import (
	"context"
	"time"

	"github.com/keyforge/license-panel/internal/core/domain"
)

// KeyListFilter scopes a key listing according to the visibility matrix.
type KeyListFilter struct {
	Visibility      domain.Visibility
	Caller          string
	ExcludeCreators []string
}

// KeyUpdate carries the mutable fields of an edit; nil fields are untouched.
type KeyUpdate struct {
	IsActive   *bool
	MaxDevices *int
	ExpiryDate *time.Time
	Price      *float64
}

// KeyRepository defines persistence operations for license keys and their
// registered devices.
type KeyRepository interface {
	Insert(ctx context.Context, k *domain.Key) error
	Exists(ctx context.Context, key string) (bool, error)
	FindByKey(ctx context.Context, key string) (*domain.Key, error)
	List(ctx context.Context, filter KeyListFilter) ([]*domain.Key, error)
	Update(ctx context.Context, key string, upd KeyUpdate) error
	// BulkSetActive flips isActive on every named key, returning the number
	// of documents modified.
	BulkSetActive(ctx context.Context, keys []string, active bool) (int64, error)
	Delete(ctx context.Context, key string) error

	// Activate stamps activatedAt and the real expiry on first use.
	Activate(ctx context.Context, key string, at, expiry time.Time) error
	IncrementDevices(ctx context.Context, key string) error
	// ResetDevices zeroes currentDevices; resetting an already-reset key is a
	// no-op, not an error.
	ResetDevices(ctx context.Context, key string) error

	InsertDevice(ctx context.Context, d *domain.Device) error
	FindDevice(ctx context.Context, key, uuid string) (*domain.Device, error)
	DeleteDevicesByKey(ctx context.Context, key string) error
}
