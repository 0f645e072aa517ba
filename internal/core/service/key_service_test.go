package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/keyforge/license-panel/internal/core/domain"
	"github.com/keyforge/license-panel/internal/core/ports"
	"github.com/keyforge/license-panel/pkg/connect"
)

type keyFixture struct {
	keys     *stubKeyRepo
	users    *stubUserRepo
	settings *stubSettingsRepo
	activity *stubActivityRepo
	svc      *KeyService
}

func newKeyFixture() *keyFixture {
	f := &keyFixture{
		keys:     newStubKeyRepo(),
		users:    newStubUserRepo(),
		settings: newStubSettingsRepo(),
		activity: newStubActivityRepo(),
	}
	f.svc = NewKeyService(f.keys, f.users, f.settings, f.activity,
		ConnectConfig{APIKey: "shared-api-key", XORSecret: "xor-secret"},
		zerolog.Nop())
	return f
}

func (f *keyFixture) seedIssuer(t *testing.T, username string, role domain.Role, balance float64) ports.Caller {
	t.Helper()
	seedUser(t, f.users, username, "pass11", role, func(u *domain.User) {
		u.Balance = balance
	})
	return ports.Caller{Username: username, Role: role}
}

func intPtr(v int) *int             { return &v }
func float64Ptr(v float64) *float64 { return &v }

func TestKeyService_Issue_ComputedPriceDebitsBalance(t *testing.T) {
	f := newKeyFixture()
	caller := f.seedIssuer(t, "adm", domain.RoleAdmin, 100)

	expiry := time.Now().UTC().Add(5 * 24 * time.Hour)
	key, err := f.svc.Issue(context.Background(), caller, ports.IssueKeyInput{
		KeyType:    domain.KeyTypeRandom,
		ExpiryDate: &expiry,
	})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if key.Price != 50 {
		t.Fatalf("price = %.2f, want 50 (5 days at flat rate 10)", key.Price)
	}
	if key.Duration != 5 || key.DurationType != domain.DurationDays {
		t.Fatalf("duration = %d %s, want 5 days", key.Duration, key.DurationType)
	}
	if !key.ExpiryDate.Equal(domain.PlaceholderExpiry) {
		t.Fatalf("fresh key must carry the placeholder expiry, got %s", key.ExpiryDate)
	}
	if len(key.Key) != 16 {
		t.Fatalf("random key length = %d, want 16", len(key.Key))
	}

	issuer, _ := f.users.FindByUsername(context.Background(), "adm")
	if issuer.Balance != 50 {
		t.Fatalf("issuer balance = %.2f, want 50", issuer.Balance)
	}
}

func TestKeyService_Issue_ComputedPriceIgnoresTiers(t *testing.T) {
	f := newKeyFixture()
	caller := f.seedIssuer(t, "adm", domain.RoleAdmin, 1000)

	// A 7-day tier at 60 exists, but the computed path must keep applying
	// the flat per-day rate: 7 * 10 = 70.
	_ = f.settings.Put(context.Background(), &domain.PricingSettings{
		Version:     1,
		PricePerDay: 10,
		DurationPricing: []domain.PriceTier{
			{Duration: 7, Price: 60, Type: domain.DurationDays},
		},
	})

	expiry := time.Now().UTC().Add(7 * 24 * time.Hour)
	key, err := f.svc.Issue(context.Background(), caller, ports.IssueKeyInput{
		KeyType:    domain.KeyTypeRandom,
		ExpiryDate: &expiry,
	})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if key.Price != 70 {
		t.Fatalf("price = %.2f, want 70 (flat rate, tier not consulted)", key.Price)
	}
}

func TestKeyService_Issue_ExplicitDurationAndPrice(t *testing.T) {
	f := newKeyFixture()
	caller := f.seedIssuer(t, "adm", domain.RoleAdmin, 100)

	key, err := f.svc.Issue(context.Background(), caller, ports.IssueKeyInput{
		KeyType:      domain.KeyTypeName,
		Duration:     intPtr(12),
		DurationType: domain.DurationHours,
		Price:        float64Ptr(25),
	})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if key.Price != 25 || key.Duration != 12 || key.DurationType != domain.DurationHours {
		t.Fatalf("unexpected key pricing: %+v", key)
	}
	if !strings.HasPrefix(key.Key, "12H>adm-") {
		t.Fatalf("name key = %q, want 12H>adm-<rand>", key.Key)
	}

	issuer, _ := f.users.FindByUsername(context.Background(), "adm")
	if issuer.Balance != 75 {
		t.Fatalf("issuer balance = %.2f, want 75", issuer.Balance)
	}
}

func TestKeyService_Issue_RecordsGenerationScheme(t *testing.T) {
	f := newKeyFixture()
	caller := f.seedIssuer(t, "adm", domain.RoleAdmin, 1000)
	expiry := time.Now().UTC().Add(5 * 24 * time.Hour)

	// Omitted key type falls back to random, and the resolved scheme must be
	// stamped on the key, not just used for generation.
	key, err := f.svc.Issue(context.Background(), caller, ports.IssueKeyInput{
		ExpiryDate: &expiry,
	})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if key.KeyType != domain.KeyTypeRandom {
		t.Fatalf("key type = %q, want random for omitted scheme", key.KeyType)
	}
	if stored := f.keys.keys[key.Key]; stored.KeyType != domain.KeyTypeRandom {
		t.Fatalf("persisted key type = %q, want random", stored.KeyType)
	}

	key, err = f.svc.Issue(context.Background(), caller, ports.IssueKeyInput{
		KeyType:       domain.KeyTypeCustom,
		CustomKeyName: "SCHEMED-KEY-01",
		ExpiryDate:    &expiry,
	})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if key.KeyType != domain.KeyTypeCustom {
		t.Fatalf("key type = %q, want custom", key.KeyType)
	}
	if stored := f.keys.keys[key.Key]; stored.KeyType != domain.KeyTypeCustom {
		t.Fatalf("persisted key type = %q, want custom", stored.KeyType)
	}
}

func TestKeyService_Issue_InsufficientBalance(t *testing.T) {
	f := newKeyFixture()
	caller := f.seedIssuer(t, "adm", domain.RoleAdmin, 40)

	expiry := time.Now().UTC().Add(5 * 24 * time.Hour)
	_, err := f.svc.Issue(context.Background(), caller, ports.IssueKeyInput{
		KeyType:    domain.KeyTypeRandom,
		ExpiryDate: &expiry,
	})
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	issuer, _ := f.users.FindByUsername(context.Background(), "adm")
	if issuer.Balance != 40 {
		t.Fatalf("failed issue must not touch the balance, got %.2f", issuer.Balance)
	}
	if len(f.keys.keys) != 0 {
		t.Fatalf("failed issue must not insert a key")
	}
}

func TestKeyService_Issue_CustomKeyTooShort(t *testing.T) {
	f := newKeyFixture()
	caller := f.seedIssuer(t, "adm", domain.RoleAdmin, 100)

	_, err := f.svc.Issue(context.Background(), caller, ports.IssueKeyInput{
		KeyType:       domain.KeyTypeCustom,
		CustomKeyName: "  ab  ",
		Duration:      intPtr(1),
		Price:         float64Ptr(10),
	})
	if !errors.Is(err, domain.ErrKeyTooShort) {
		t.Fatalf("expected ErrKeyTooShort, got %v", err)
	}
}

func TestKeyService_Issue_CustomKeyCollisionGetsSuffix(t *testing.T) {
	f := newKeyFixture()
	caller := f.seedIssuer(t, "adm", domain.RoleAdmin, 100)

	_ = f.keys.Insert(context.Background(), &domain.Key{Key: "MYCUSTOMKEY01", CreatedBy: "adm"})

	key, err := f.svc.Issue(context.Background(), caller, ports.IssueKeyInput{
		KeyType:       domain.KeyTypeCustom,
		CustomKeyName: "MYCUSTOMKEY01",
		Duration:      intPtr(1),
		Price:         float64Ptr(10),
	})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if key.Key == "MYCUSTOMKEY01" {
		t.Fatalf("collision must not reuse the existing key")
	}
	if !strings.HasPrefix(key.Key, "MYCUSTOMKEY0") || len(key.Key) != 16 {
		t.Fatalf("colliding key = %q, want 12-char prefix plus 4-char suffix", key.Key)
	}
}

func TestKeyService_Issue_ServerOffAnywhereInChain(t *testing.T) {
	f := newKeyFixture()
	seedUser(t, f.users, "boss", "pass11", domain.RoleOwner, func(u *domain.User) {
		u.ServerStatus = false
	})
	seedUser(t, f.users, "adm", "pass11", domain.RoleAdmin, func(u *domain.User) {
		u.CreatedBy = "boss"
		u.Balance = 100
	})

	_, err := f.svc.Issue(context.Background(), ports.Caller{Username: "adm", Role: domain.RoleAdmin}, ports.IssueKeyInput{
		KeyType:  domain.KeyTypeRandom,
		Duration: intPtr(1),
		Price:    float64Ptr(10),
	})
	if !errors.Is(err, domain.ErrServerOff) {
		t.Fatalf("expected ErrServerOff, got %v", err)
	}
	adm, _ := f.users.FindByUsername(context.Background(), "adm")
	if adm.Balance != 100 {
		t.Fatalf("server-off rejection must not debit, got %.2f", adm.Balance)
	}
}

func TestKeyService_ResetUUIDs_Idempotent(t *testing.T) {
	f := newKeyFixture()
	caller := f.seedIssuer(t, "adm", domain.RoleAdmin, 100)

	_ = f.keys.Insert(context.Background(), &domain.Key{Key: "KEY1", CreatedBy: "adm", CurrentDevices: 2, MaxDevices: 3, IsActive: true})
	_ = f.keys.InsertDevice(context.Background(), &domain.Device{Key: "KEY1", UUID: "dev-a"})
	_ = f.keys.InsertDevice(context.Background(), &domain.Device{Key: "KEY1", UUID: "dev-b"})

	if err := f.svc.ResetUUIDs(context.Background(), caller, "KEY1"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	k, _ := f.keys.FindByKey(context.Background(), "KEY1")
	if k.CurrentDevices != 0 {
		t.Fatalf("devices not zeroed: %d", k.CurrentDevices)
	}
	if len(f.keys.devices) != 0 {
		t.Fatalf("device rows not cascaded")
	}

	if err := f.svc.ResetUUIDs(context.Background(), caller, "KEY1"); err != nil {
		t.Fatalf("second reset must be a no-op, got %v", err)
	}
}

func TestKeyService_BulkSetActive_SkipsOutOfScope(t *testing.T) {
	f := newKeyFixture()
	caller := f.seedIssuer(t, "adm", domain.RoleAdmin, 100)
	seedUser(t, f.users, "other", "pass11", domain.RoleAdmin)

	_ = f.keys.Insert(context.Background(), &domain.Key{Key: "MINE1", CreatedBy: "adm", IsActive: true})
	_ = f.keys.Insert(context.Background(), &domain.Key{Key: "THEIRS", CreatedBy: "other", IsActive: true})

	n, err := f.svc.BulkSetActive(context.Background(), caller, []string{"MINE1", "THEIRS", "MISSING"}, false)
	if err != nil {
		t.Fatalf("bulk failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("modified = %d, want 1", n)
	}
	mine, _ := f.keys.FindByKey(context.Background(), "MINE1")
	theirs, _ := f.keys.FindByKey(context.Background(), "THEIRS")
	if mine.IsActive || !theirs.IsActive {
		t.Fatalf("scope violated: mine=%t theirs=%t", mine.IsActive, theirs.IsActive)
	}
}

func TestKeyService_Connect_ActivationAndDeviceLimit(t *testing.T) {
	f := newKeyFixture()
	_ = f.keys.Insert(context.Background(), &domain.Key{
		Key:          "LICENSE01",
		MaxDevices:   1,
		ExpiryDate:   domain.PlaceholderExpiry,
		IsActive:     true,
		Duration:     5,
		DurationType: domain.DurationDays,
		CreatedBy:    "adm",
	})

	payload, err := connect.Encode("LICENSE01_device-uuid-1", "xor-secret")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// Wrong API key never reaches the datastore.
	if _, err := f.svc.Connect(context.Background(), ports.ConnectInput{Payload: payload, APIKey: "nope"}); !errors.Is(err, domain.ErrInvalidAPIKey) {
		t.Fatalf("expected ErrInvalidAPIKey, got %v", err)
	}

	before := time.Now().UTC()
	result, err := f.svc.Connect(context.Background(), ports.ConnectInput{Payload: payload, APIKey: "shared-api-key"})
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if result.Devices != 1 || result.MaxDevices != 1 {
		t.Fatalf("unexpected device counts: %+v", result)
	}

	// First connect converts the placeholder into now + licensed duration.
	wantExpiry := before.Add(5 * 24 * time.Hour)
	if result.ExpiryDate.Before(wantExpiry.Add(-time.Minute)) || result.ExpiryDate.After(wantExpiry.Add(time.Minute)) {
		t.Fatalf("expiry = %s, want about %s", result.ExpiryDate, wantExpiry)
	}

	// Reconnecting the same device does not consume a slot.
	result, err = f.svc.Connect(context.Background(), ports.ConnectInput{Payload: payload, APIKey: "shared-api-key"})
	if err != nil || result.Devices != 1 {
		t.Fatalf("re-connect changed device count: %+v err=%v", result, err)
	}

	// A second device exceeds maxDevices.
	payload2, _ := connect.Encode("LICENSE01_device-uuid-2", "xor-secret")
	if _, err := f.svc.Connect(context.Background(), ports.ConnectInput{Payload: payload2, APIKey: "shared-api-key"}); !errors.Is(err, domain.ErrDeviceLimit) {
		t.Fatalf("expected ErrDeviceLimit, got %v", err)
	}
}

func TestKeyService_Connect_RejectsInactiveExpiredAndGarbage(t *testing.T) {
	f := newKeyFixture()
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	_ = f.keys.Insert(context.Background(), &domain.Key{
		Key: "OFFKEY", IsActive: false, ExpiryDate: domain.PlaceholderExpiry, CreatedBy: "adm",
	})
	_ = f.keys.Insert(context.Background(), &domain.Key{
		Key: "OLDKEY", IsActive: true, ExpiryDate: past, ActivatedAt: &past, CreatedBy: "adm",
	})

	off, _ := connect.Encode("OFFKEY_dev", "xor-secret")
	if _, err := f.svc.Connect(context.Background(), ports.ConnectInput{Payload: off, APIKey: "shared-api-key"}); !errors.Is(err, domain.ErrKeyInactive) {
		t.Fatalf("expected ErrKeyInactive, got %v", err)
	}

	old, _ := connect.Encode("OLDKEY_dev", "xor-secret")
	if _, err := f.svc.Connect(context.Background(), ports.ConnectInput{Payload: old, APIKey: "shared-api-key"}); !errors.Is(err, domain.ErrKeyExpired) {
		t.Fatalf("expected ErrKeyExpired, got %v", err)
	}

	if _, err := f.svc.Connect(context.Background(), ports.ConnectInput{Payload: "!!!not-base64!!!", APIKey: "shared-api-key"}); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}

	noSep, _ := connect.Encode("payload-without-separator", "xor-secret")
	if _, err := f.svc.Connect(context.Background(), ports.ConnectInput{Payload: noSep, APIKey: "shared-api-key"}); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for missing separator, got %v", err)
	}
}

func TestKeyService_List_AdminSeesOwnCreatedOnly(t *testing.T) {
	f := newKeyFixture()
	f.seedIssuer(t, "adm", domain.RoleAdmin, 100)

	_ = f.keys.Insert(context.Background(), &domain.Key{Key: "MINE1", CreatedBy: "adm"})
	_ = f.keys.Insert(context.Background(), &domain.Key{Key: "THEIRS", CreatedBy: "other"})

	keys, err := f.svc.List(context.Background(), ports.Caller{Username: "adm", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(keys) != 1 || keys[0].Key != "MINE1" {
		t.Fatalf("unexpected listing: %+v", keys)
	}
}

func TestKeyService_List_OwnerExcludesSuperOwnerKeys(t *testing.T) {
	f := newKeyFixture()
	seedUser(t, f.users, "root", "pass11", domain.RoleSuperOwner)
	seedUser(t, f.users, "boss", "pass11", domain.RoleOwner)

	_ = f.keys.Insert(context.Background(), &domain.Key{Key: "ROOTKEY", CreatedBy: "root"})
	_ = f.keys.Insert(context.Background(), &domain.Key{Key: "ADMKEY", CreatedBy: "adm"})

	keys, err := f.svc.List(context.Background(), ports.Caller{Username: "boss", Role: domain.RoleOwner})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(keys) != 1 || keys[0].Key != "ADMKEY" {
		t.Fatalf("owner must not see super-owner keys: %+v", keys)
	}
}

func TestKeyService_Issue_ResellerSpendsOwnBalance(t *testing.T) {
	f := newKeyFixture()
	caller := f.seedIssuer(t, "rsl", domain.RoleReseller, 30)

	key, err := f.svc.Issue(context.Background(), caller, ports.IssueKeyInput{
		KeyType:  domain.KeyTypeRandom,
		Duration: intPtr(1),
		Price:    float64Ptr(10),
	})
	if err != nil {
		t.Fatalf("reseller issue failed: %v", err)
	}
	if key.CreatedBy != "rsl" {
		t.Fatalf("createdBy = %q, want rsl", key.CreatedBy)
	}
	rsl, _ := f.users.FindByUsername(context.Background(), "rsl")
	if rsl.Balance != 20 {
		t.Fatalf("reseller balance = %.2f, want 20", rsl.Balance)
	}
}
