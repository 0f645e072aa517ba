package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/keyforge/license-panel/internal/core/domain"
	"github.com/keyforge/license-panel/internal/core/ports"
)

type referralFixture struct {
	referrals *stubReferralRepo
	users     *stubUserRepo
	activity  *stubActivityRepo
	svc       *ReferralService
}

func newReferralFixture() *referralFixture {
	f := &referralFixture{
		referrals: newStubReferralRepo(),
		users:     newStubUserRepo(),
		activity:  newStubActivityRepo(),
	}
	f.svc = NewReferralService(f.referrals, f.users, f.activity, zerolog.Nop())
	return f
}

func TestReferralService_Generate_CreationMatrix(t *testing.T) {
	f := newReferralFixture()

	cases := []struct {
		caller  domain.Role
		target  domain.Role
		allowed bool
	}{
		{domain.RoleSuperOwner, domain.RoleSuperOwner, true},
		{domain.RoleSuperOwner, domain.RoleReseller, true},
		{domain.RoleOwner, domain.RoleSuperOwner, false},
		{domain.RoleOwner, domain.RoleOwner, true},
		{domain.RoleOwner, domain.RoleAdmin, true},
		{domain.RoleAdmin, domain.RoleReseller, true},
		{domain.RoleAdmin, domain.RoleAdmin, false},
		{domain.RoleAdmin, domain.RoleOwner, false},
	}

	for _, tc := range cases {
		_, err := f.svc.Generate(context.Background(), ports.Caller{Username: "caller", Role: tc.caller}, ports.GenerateReferralInput{
			Role:       tc.target,
			ExpiryDays: 30,
		})
		if tc.allowed && err != nil {
			t.Errorf("%s minting %s: unexpected error %v", tc.caller, tc.target, err)
		}
		if !tc.allowed && !errors.Is(err, domain.ErrForbidden) {
			t.Errorf("%s minting %s: expected ErrForbidden, got %v", tc.caller, tc.target, err)
		}
	}
}

func TestReferralService_Generate_ResellerForbidden(t *testing.T) {
	f := newReferralFixture()
	_, err := f.svc.Generate(context.Background(), ports.Caller{Username: "rsl", Role: domain.RoleReseller}, ports.GenerateReferralInput{
		Role:       domain.RoleReseller,
		ExpiryDays: 30,
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestReferralService_Generate_ExpiryDaysMandatory(t *testing.T) {
	f := newReferralFixture()
	_, err := f.svc.Generate(context.Background(), ports.Caller{Username: "adm", Role: domain.RoleAdmin}, ports.GenerateReferralInput{
		Role: domain.RoleReseller,
	})
	if !errors.Is(err, domain.ErrExpiryRequired) {
		t.Fatalf("expected ErrExpiryRequired, got %v", err)
	}
}

func TestReferralService_Generate_CodeShape(t *testing.T) {
	f := newReferralFixture()
	code, err := f.svc.Generate(context.Background(), ports.Caller{Username: "adm", Role: domain.RoleAdmin}, ports.GenerateReferralInput{
		Role:           domain.RoleReseller,
		InitialBalance: 100,
		ExpiryDays:     14,
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(code.Code) != 32 {
		t.Fatalf("code length = %d, want 32 hex chars", len(code.Code))
	}
	if !code.Redeemable() {
		t.Fatalf("fresh code must be redeemable")
	}
	if code.CreatedBy != "adm" || code.InitialBalance != 100 || code.ExpiryDays != 14 {
		t.Fatalf("unexpected code: %+v", code)
	}
}

func TestReferralService_List_AdminSeesOwnOnly(t *testing.T) {
	f := newReferralFixture()
	_ = f.referrals.Insert(context.Background(), &domain.ReferralCode{Code: "A", CreatedBy: "adm", IsActive: true})
	_ = f.referrals.Insert(context.Background(), &domain.ReferralCode{Code: "B", CreatedBy: "other", IsActive: true})

	codes, err := f.svc.List(context.Background(), ports.Caller{Username: "adm", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(codes) != 1 || codes[0].Code != "A" {
		t.Fatalf("unexpected listing: %+v", codes)
	}
}

func TestReferralService_Delete_ScopeChecked(t *testing.T) {
	f := newReferralFixture()
	seedUser(t, f.users, "other", "pass11", domain.RoleAdmin)
	_ = f.referrals.Insert(context.Background(), &domain.ReferralCode{Code: "X", CreatedBy: "other", IsActive: true})

	if err := f.svc.Delete(context.Background(), ports.Caller{Username: "adm", Role: domain.RoleAdmin}, "X"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := f.svc.Delete(context.Background(), ports.Caller{Username: "other", Role: domain.RoleAdmin}, "X"); err != nil {
		t.Fatalf("own delete failed: %v", err)
	}
}
