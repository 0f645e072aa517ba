package handler

import (
	"time"

	"github.com/keyforge/license-panel/internal/core/domain"
)

type issueKeyRequest struct {
	KeyType       string     `json:"key_type" validate:"required,oneof=random name custom"`
	CustomKeyName string     `json:"custom_key_name"`
	Duration      *int       `json:"duration"`
	DurationType  string     `json:"duration_type" validate:"omitempty,oneof=hours days"`
	Price         *float64   `json:"price"`
	ExpiryDate    *time.Time `json:"expiry_date"`
	MaxDevices    int        `json:"max_devices" validate:"omitempty,min=1"`
}

// editKeyRequest covers both edit forms: a single-key field update, and the
// bulk keys+active status flip.
type editKeyRequest struct {
	Key        string     `json:"key"`
	IsActive   *bool      `json:"is_active"`
	MaxDevices *int       `json:"max_devices" validate:"omitempty,min=1"`
	ExpiryDate *time.Time `json:"expiry_date"`
	Price      *float64   `json:"price"`

	Keys   []string `json:"keys"`
	Active *bool    `json:"active"`
}

type keyView struct {
	Key            string              `json:"key"`
	KeyType        domain.KeyType      `json:"key_type"`
	CreatedBy      string              `json:"created_by"`
	Price          float64             `json:"price"`
	ExpiryDate     time.Time           `json:"expiry_date"`
	IsActive       bool                `json:"is_active"`
	Activated      bool                `json:"activated"`
	CurrentDevices int                 `json:"current_devices"`
	MaxDevices     int                 `json:"max_devices"`
	Duration       int                 `json:"duration,omitempty"`
	DurationType   domain.DurationType `json:"duration_type,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

func toKeyView(k *domain.Key) keyView {
	return keyView{
		Key:            k.Key,
		KeyType:        k.KeyType,
		CreatedBy:      k.CreatedBy,
		Price:          k.Price,
		ExpiryDate:     k.ExpiryDate,
		IsActive:       k.IsActive,
		Activated:      k.Activated(),
		CurrentDevices: k.CurrentDevices,
		MaxDevices:     k.MaxDevices,
		Duration:       k.Duration,
		DurationType:   k.DurationType,
		CreatedAt:      k.CreatedAt,
	}
}
