package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/keyforge/license-panel/internal/core/domain"
	"github.com/keyforge/license-panel/internal/core/ports"
	"github.com/keyforge/license-panel/pkg/connect"
)

const (
	keyCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// maxKeyAttempts bounds the generate-and-check collision loop.
	maxKeyAttempts = 10
	// customKeyPrefixLen is how much of a colliding custom key survives
	// before the random suffix is appended.
	customKeyPrefixLen = 12
)

// ConnectConfig holds the shared secrets of the downstream connect boundary.
type ConnectConfig struct {
	APIKey    string
	XORSecret string
}

// KeyService implements key issuance, billing, management, and the external
// connect/activation boundary.
type KeyService struct {
	keys      ports.KeyRepository
	users     ports.UserRepository
	settings  ports.SettingsRepository
	activity  ports.ActivityRepository
	hierarchy hierarchy
	connect   ConnectConfig
	log       zerolog.Logger
}

func NewKeyService(
	keys ports.KeyRepository,
	users ports.UserRepository,
	settings ports.SettingsRepository,
	activity ports.ActivityRepository,
	connectCfg ConnectConfig,
	log zerolog.Logger,
) *KeyService {
	return &KeyService{
		keys:      keys,
		users:     users,
		settings:  settings,
		activity:  activity,
		hierarchy: hierarchy{users: users},
		connect:   connectCfg,
		log:       log,
	}
}

// Issue generates a key and debits the issuer. The balance check runs before
// any mutation, and the debit itself is an atomic decrement-if-sufficient, so
// concurrent issuance cannot overspend.
func (s *KeyService) Issue(ctx context.Context, caller ports.Caller, in ports.IssueKeyInput) (*domain.Key, error) {
	issuer, err := s.users.FindByUsername(ctx, caller.Username)
	if err != nil {
		return nil, err
	}

	price, duration, durationType, err := s.resolvePricing(ctx, in)
	if err != nil {
		return nil, err
	}

	if issuer.Balance < price {
		return nil, domain.ErrInsufficientBalance
	}

	on, err := s.hierarchy.effectiveServerStatus(ctx, caller.Username)
	if err != nil {
		return nil, err
	}
	if !on {
		return nil, domain.ErrServerOff
	}

	keyType := in.KeyType
	if keyType == "" {
		keyType = domain.KeyTypeRandom
	}
	keyString, err := s.generateUnique(ctx, caller.Username, keyType, in.CustomKeyName, duration, durationType)
	if err != nil {
		return nil, err
	}

	if err := s.users.Debit(ctx, caller.Username, price); err != nil {
		return nil, err
	}

	maxDevices := in.MaxDevices
	if maxDevices <= 0 {
		maxDevices = 1
	}
	now := time.Now().UTC()
	key := &domain.Key{
		Key:            keyString,
		KeyType:        keyType,
		MaxDevices:     maxDevices,
		CurrentDevices: 0,
		// The real expiry is applied at first activation.
		ExpiryDate:   domain.PlaceholderExpiry,
		CreatedAt:    now,
		IsActive:     true,
		Price:        price,
		Duration:     duration,
		DurationType: durationType,
		CreatedBy:    caller.Username,
	}
	if err := s.keys.Insert(ctx, key); err != nil {
		// The debit already landed; credit back rather than leak balance.
		if cerr := s.users.Credit(ctx, caller.Username, price); cerr != nil {
			s.log.Error().Err(cerr).Str("username", caller.Username).Msg("refund after failed key insert also failed")
		}
		return nil, fmt.Errorf("issue key: %w", err)
	}

	s.record(ctx, caller, "generate_key", "key", keyString,
		fmt.Sprintf("duration=%d%s price=%.2f", duration, durationType, price))
	s.log.Info().Str("key", keyString).Str("username", caller.Username).Float64("price", price).Msg("key issued")
	return key, nil
}

// resolvePricing applies the explicit duration+price when both are supplied;
// otherwise it computes ceiling days from the expiry date at the legacy flat
// per-day rate. The tiered durationPricing table is deliberately not consulted
// on the computed branch.
func (s *KeyService) resolvePricing(ctx context.Context, in ports.IssueKeyInput) (price float64, duration int, dt domain.DurationType, err error) {
	dt = in.DurationType
	if dt == "" {
		dt = domain.DurationDays
	}
	if dt != domain.DurationDays && dt != domain.DurationHours {
		return 0, 0, "", domain.ErrInvalidPayload
	}

	if in.Duration != nil && in.Price != nil {
		if *in.Duration <= 0 || *in.Price < 0 {
			return 0, 0, "", domain.ErrInvalidPayload
		}
		return *in.Price, *in.Duration, dt, nil
	}

	if in.ExpiryDate == nil {
		return 0, 0, "", domain.ErrInvalidPayload
	}
	days := int(math.Ceil(time.Until(*in.ExpiryDate).Hours() / 24))
	if days <= 0 {
		return 0, 0, "", domain.ErrInvalidPayload
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return 0, 0, "", err
	}
	if cfg == nil {
		cfg = domain.DefaultPricing()
	}
	return float64(days) * cfg.PricePerDay, days, domain.DurationDays, nil
}

// generateUnique runs the generate-and-check loop, bounded at maxKeyAttempts.
func (s *KeyService) generateUnique(ctx context.Context, username string, keyType domain.KeyType, customName string, duration int, dt domain.DurationType) (string, error) {
	var custom string
	if keyType == domain.KeyTypeCustom {
		custom = strings.TrimSpace(customName)
		if len(custom) < 4 {
			return "", domain.ErrKeyTooShort
		}
	}

	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		var candidate string
		switch keyType {
		case domain.KeyTypeCustom:
			candidate = custom
			if attempt > 0 {
				// Collision: keep the first 12 characters, add a random tail.
				base := custom
				if len(base) > customKeyPrefixLen {
					base = base[:customKeyPrefixLen]
				}
				candidate = base + randAlnum(4)
			}
		case domain.KeyTypeName:
			candidate = nameKey(duration, dt, username)
		case domain.KeyTypeRandom:
			candidate = randAlnum(16)
		default:
			return "", domain.ErrInvalidKeyType
		}

		exists, err := s.keys.Exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", domain.ErrKeyExhausted
}

// nameKey renders the human-readable pattern {duration}{H|D}>{username}-{rand}.
func nameKey(duration int, dt domain.DurationType, username string) string {
	unit := "D"
	if dt == domain.DurationHours {
		unit = "H"
	}
	tail := 5 + int(randInt(2))
	return fmt.Sprintf("%d%s>%s-%s", duration, unit, username, randAlnum(tail))
}

// List returns keys scoped by the visibility matrix.
func (s *KeyService) List(ctx context.Context, caller ports.Caller) ([]*domain.Key, error) {
	vis, exclude, err := s.hierarchy.filter(ctx, caller, domain.ResourceKeys)
	if err != nil {
		return nil, err
	}
	return s.keys.List(ctx, ports.KeyListFilter{
		Visibility:      vis,
		Caller:          caller.Username,
		ExcludeCreators: exclude,
	})
}

// Edit mutates a single key after the ownership check.
func (s *KeyService) Edit(ctx context.Context, caller ports.Caller, in ports.KeyEditInput) error {
	key, err := s.authorizeMutation(ctx, caller, in.Key)
	if err != nil {
		return err
	}
	if err := s.keys.Update(ctx, key.Key, ports.KeyUpdate{
		IsActive:   in.IsActive,
		MaxDevices: in.MaxDevices,
		ExpiryDate: in.ExpiryDate,
		Price:      in.Price,
	}); err != nil {
		return err
	}
	s.record(ctx, caller, "edit_key", "key", key.Key, "")
	return nil
}

// BulkSetActive flips isActive across the caller's keys; each key is
// authorization-checked individually, skipping the ones out of scope.
func (s *KeyService) BulkSetActive(ctx context.Context, caller ports.Caller, keys []string, active bool) (int64, error) {
	allowed := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, err := s.authorizeMutation(ctx, caller, k); err != nil {
			if errors.Is(err, domain.ErrForbidden) || errors.Is(err, domain.ErrKeyNotFound) {
				continue
			}
			return 0, err
		}
		allowed = append(allowed, k)
	}
	if len(allowed) == 0 {
		return 0, nil
	}
	n, err := s.keys.BulkSetActive(ctx, allowed, active)
	if err != nil {
		return 0, err
	}
	s.record(ctx, caller, "bulk_update_keys", "key", "", fmt.Sprintf("active=%t count=%d", active, n))
	return n, nil
}

// Delete removes a key and cascades the delete to its device rows.
func (s *KeyService) Delete(ctx context.Context, caller ports.Caller, key string) error {
	k, err := s.authorizeMutation(ctx, caller, key)
	if err != nil {
		return err
	}
	if err := s.keys.Delete(ctx, k.Key); err != nil {
		return err
	}
	if err := s.keys.DeleteDevicesByKey(ctx, k.Key); err != nil {
		s.log.Warn().Err(err).Str("key", k.Key).Msg("device cascade delete failed")
	}
	s.record(ctx, caller, "delete_key", "key", k.Key, "")
	return nil
}

// ResetUUIDs zeroes currentDevices and drops device rows. Resetting an
// already-reset key is a clean no-op.
func (s *KeyService) ResetUUIDs(ctx context.Context, caller ports.Caller, key string) error {
	k, err := s.authorizeMutation(ctx, caller, key)
	if err != nil {
		return err
	}
	if err := s.keys.ResetDevices(ctx, k.Key); err != nil {
		return err
	}
	if err := s.keys.DeleteDevicesByKey(ctx, k.Key); err != nil {
		s.log.Warn().Err(err).Str("key", k.Key).Msg("device cascade delete failed")
	}
	s.record(ctx, caller, "reset_uuids", "key", k.Key, "")
	return nil
}

func (s *KeyService) authorizeMutation(ctx context.Context, caller ports.Caller, key string) (*domain.Key, error) {
	k, err := s.keys.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	ok, err := s.hierarchy.canMutate(ctx, caller, k.CreatedBy)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrForbidden
	}
	return k, nil
}

// Connect handles the downstream product boundary: an XOR-obfuscated,
// base64-encoded "key_UUID" payload presented with the shared API key. First
// use stamps activatedAt and converts the placeholder expiry into the real
// one; subsequent connects register devices up to maxDevices.
func (s *KeyService) Connect(ctx context.Context, in ports.ConnectInput) (*ports.ConnectResult, error) {
	if in.APIKey == "" || in.APIKey != s.connect.APIKey {
		return nil, domain.ErrInvalidAPIKey
	}

	payload, err := connect.Decode(in.Payload, s.connect.XORSecret)
	if err != nil {
		return nil, domain.ErrInvalidPayload
	}
	sep := strings.LastIndex(payload, "_")
	if sep <= 0 || sep == len(payload)-1 {
		return nil, domain.ErrInvalidPayload
	}
	keyString, uuid := payload[:sep], payload[sep+1:]

	key, err := s.keys.FindByKey(ctx, keyString)
	if err != nil {
		return nil, err
	}
	if !key.IsActive {
		return nil, domain.ErrKeyInactive
	}

	now := time.Now().UTC()
	expiry := key.ExpiryDate
	if !key.Activated() {
		expiry = now.Add(key.LicenseDuration())
		if err := s.keys.Activate(ctx, key.Key, now, expiry); err != nil {
			return nil, err
		}
		key.ActivatedAt = &now
		key.ExpiryDate = expiry
	} else if now.After(key.ExpiryDate) {
		return nil, domain.ErrKeyExpired
	}

	if _, err := s.keys.FindDevice(ctx, key.Key, uuid); err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			return nil, err
		}
		if key.CurrentDevices >= key.MaxDevices {
			return nil, domain.ErrDeviceLimit
		}
		if err := s.keys.InsertDevice(ctx, &domain.Device{Key: key.Key, UUID: uuid, ActivatedAt: now}); err != nil {
			return nil, err
		}
		if err := s.keys.IncrementDevices(ctx, key.Key); err != nil {
			return nil, err
		}
		key.CurrentDevices++
	}

	return &ports.ConnectResult{
		Key:        key.Key,
		ExpiryDate: expiry,
		Devices:    key.CurrentDevices,
		MaxDevices: key.MaxDevices,
	}, nil
}

func (s *KeyService) record(ctx context.Context, caller ports.Caller, action, targetType, target, details string) {
	a := &domain.Activity{
		Username:   caller.Username,
		Role:       caller.Role,
		Action:     action,
		TargetType: targetType,
		Target:     target,
		Details:    details,
		Timestamp:  time.Now().UTC(),
	}
	if err := s.activity.Insert(ctx, a); err != nil {
		s.log.Warn().Err(err).Str("action", action).Msg("failed to record activity")
	}
}

// randAlnum returns n random characters from the uppercase-alphanumeric set.
func randAlnum(n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = keyCharset[randInt(int64(len(keyCharset)))]
	}
	return string(out)
}

func randInt(max int64) int64 {
	v, err := rand.Int(rand.Reader, big.NewInt(max))
	if err != nil {
		// fallback: stable but unique enough for a retry loop
		return time.Now().UnixNano() % max
	}
	return v.Int64()
}
