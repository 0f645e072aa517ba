package domain

// Role is the closed set of account roles. Role strings double as stored
// values; they must never change once data exists.
type Role string

const (
	RoleSuperOwner Role = "super_owner"
	RoleOwner      Role = "owner"
	RoleAdmin      Role = "admin"
	RoleReseller   Role = "reseller"
)

// ParseRole validates a raw role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSuperOwner, RoleOwner, RoleAdmin, RoleReseller:
		return Role(s), nil
	}
	return "", ErrInvalidRole
}

// Resource identifies a management surface for visibility decisions.
type Resource string

const (
	ResourceUsers      Resource = "users"
	ResourceKeys       Resource = "keys"
	ResourceReferrals  Resource = "referrals"
	ResourceActivities Resource = "activities"
)

// Visibility is the scope of rows a role may see on a management listing.
type Visibility int

const (
	// VisibilityNone: the surface is forbidden for this role.
	VisibilityNone Visibility = iota
	// VisibilitySelf: only rows implicating the caller itself.
	VisibilitySelf
	// VisibilityOwnCreated: rows whose createdBy is the caller, plus the
	// caller's own row where that applies.
	VisibilityOwnCreated
	// VisibilityNonSuperOwner: everything except rows authored by a super owner.
	VisibilityNonSuperOwner
	// VisibilityAll: everything.
	VisibilityAll
)

// visibilityMatrix is the single source of truth for who sees what.
// Resellers keep read access to keys and activities implicating themselves;
// every other management surface is closed to them.
var visibilityMatrix = map[Role]map[Resource]Visibility{
	RoleSuperOwner: {
		ResourceUsers:      VisibilityAll,
		ResourceKeys:       VisibilityAll,
		ResourceReferrals:  VisibilityAll,
		ResourceActivities: VisibilityAll,
	},
	RoleOwner: {
		ResourceUsers:      VisibilityNonSuperOwner,
		ResourceKeys:       VisibilityNonSuperOwner,
		ResourceReferrals:  VisibilityNonSuperOwner,
		ResourceActivities: VisibilityNonSuperOwner,
	},
	RoleAdmin: {
		ResourceUsers:      VisibilityOwnCreated,
		ResourceKeys:       VisibilityOwnCreated,
		ResourceReferrals:  VisibilityOwnCreated,
		ResourceActivities: VisibilityOwnCreated,
	},
	RoleReseller: {
		ResourceUsers:      VisibilityNone,
		ResourceKeys:       VisibilitySelf,
		ResourceReferrals:  VisibilityNone,
		ResourceActivities: VisibilitySelf,
	},
}

// VisibilityOf reports the listing scope for role r on resource res.
func (r Role) VisibilityOf(res Resource) Visibility {
	m, ok := visibilityMatrix[r]
	if !ok {
		return VisibilityNone
	}
	return m[res]
}

// Manages reports whether the role may use management surfaces at all.
func (r Role) Manages() bool {
	return r == RoleSuperOwner || r == RoleOwner || r == RoleAdmin
}

// referralGrants defines which code roles each role may mint.
var referralGrants = map[Role][]Role{
	RoleSuperOwner: {RoleSuperOwner, RoleOwner, RoleAdmin, RoleReseller},
	RoleOwner:      {RoleOwner, RoleAdmin, RoleReseller},
	RoleAdmin:      {RoleReseller},
}

// CanMintReferral reports whether role r may create a referral code that
// grants target.
func (r Role) CanMintReferral(target Role) bool {
	for _, t := range referralGrants[r] {
		if t == target {
			return true
		}
	}
	return false
}
