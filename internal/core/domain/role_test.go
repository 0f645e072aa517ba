package domain

import "testing"

func TestParseRole(t *testing.T) {
	for _, valid := range []string{"super_owner", "owner", "admin", "reseller"} {
		if _, err := ParseRole(valid); err != nil {
			t.Errorf("ParseRole(%q) errored: %v", valid, err)
		}
	}
	for _, invalid := range []string{"", "root", "Admin", "superowner"} {
		if _, err := ParseRole(invalid); err != ErrInvalidRole {
			t.Errorf("ParseRole(%q) = %v, want ErrInvalidRole", invalid, err)
		}
	}
}

func TestVisibilityMatrix(t *testing.T) {
	cases := []struct {
		role Role
		res  Resource
		want Visibility
	}{
		{RoleSuperOwner, ResourceUsers, VisibilityAll},
		{RoleSuperOwner, ResourceActivities, VisibilityAll},
		{RoleOwner, ResourceUsers, VisibilityNonSuperOwner},
		{RoleOwner, ResourceKeys, VisibilityNonSuperOwner},
		{RoleAdmin, ResourceUsers, VisibilityOwnCreated},
		{RoleAdmin, ResourceReferrals, VisibilityOwnCreated},
		{RoleReseller, ResourceUsers, VisibilityNone},
		{RoleReseller, ResourceKeys, VisibilitySelf},
		{RoleReseller, ResourceReferrals, VisibilityNone},
		{RoleReseller, ResourceActivities, VisibilitySelf},
	}
	for _, tc := range cases {
		if got := tc.role.VisibilityOf(tc.res); got != tc.want {
			t.Errorf("%s on %s = %d, want %d", tc.role, tc.res, got, tc.want)
		}
	}

	if Role("ghost").VisibilityOf(ResourceKeys) != VisibilityNone {
		t.Errorf("unknown roles must see nothing")
	}
}

func TestReferralGrants(t *testing.T) {
	if !RoleSuperOwner.CanMintReferral(RoleSuperOwner) {
		t.Errorf("super owner must mint every role")
	}
	if RoleOwner.CanMintReferral(RoleSuperOwner) {
		t.Errorf("owner must not mint super owners")
	}
	if !RoleAdmin.CanMintReferral(RoleReseller) {
		t.Errorf("admin must mint resellers")
	}
	if RoleAdmin.CanMintReferral(RoleAdmin) {
		t.Errorf("admin must not mint admins")
	}
	if RoleReseller.CanMintReferral(RoleReseller) {
		t.Errorf("resellers mint nothing")
	}
}

func TestManages(t *testing.T) {
	if !RoleAdmin.Manages() || !RoleOwner.Manages() || !RoleSuperOwner.Manages() {
		t.Errorf("managing roles misclassified")
	}
	if RoleReseller.Manages() {
		t.Errorf("resellers are not managers")
	}
}
