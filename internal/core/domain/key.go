package domain

import "time"

// KeyType selects the key string generation scheme.
type KeyType string

const (
	KeyTypeRandom KeyType = "random"
	KeyTypeName   KeyType = "name"
	KeyTypeCustom KeyType = "custom"
)

// DurationType is the unit of a key's licensed duration.
type DurationType string

const (
	DurationHours DurationType = "hours"
	DurationDays  DurationType = "days"
)

// PlaceholderExpiry is stored on a key until its first activation; the real
// expiry is computed from duration/durationType at that point.
var PlaceholderExpiry = time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC)

// Key is the licensed artifact consumed by the downstream product.
type Key struct {
	ID             string       `json:"id"`
	Key            string       `json:"key"`
	KeyType        KeyType      `json:"key_type"`
	MaxDevices     int          `json:"max_devices"`
	CurrentDevices int          `json:"current_devices"`
	ExpiryDate     time.Time    `json:"expiry_date"`
	ActivatedAt    *time.Time   `json:"activated_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	IsActive       bool         `json:"is_active"`
	Price          float64      `json:"price"`
	Duration       int          `json:"duration"`
	DurationType   DurationType `json:"duration_type"`
	CreatedBy      string       `json:"created_by"`
}

// Activated reports whether the key has seen its first device connect.
func (k *Key) Activated() bool {
	return k.ActivatedAt != nil
}

// LicenseDuration converts duration + durationType to a time.Duration.
func (k *Key) LicenseDuration() time.Duration {
	if k.DurationType == DurationHours {
		return time.Duration(k.Duration) * time.Hour
	}
	return time.Duration(k.Duration) * 24 * time.Hour
}

// Device is one registered consumer of a key, identified by the UUID the
// downstream product sends on connect.
type Device struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	UUID        string    `json:"uuid"`
	ActivatedAt time.Time `json:"activated_at"`
}
