package domain

import "time"

// SystemCreator is the createdBy value of bootstrap accounts.
const SystemCreator = "system"

// UnlimitedBalance is the sentinel balance assigned to super owners.
// Large enough that no realistic sequence of debits exhausts it.
const UnlimitedBalance = 999_999_999

// User is the identity + billing + lifecycle record.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	IsActive     bool      `json:"is_active"`
	Balance      float64   `json:"balance"`
	Email        string    `json:"email,omitempty"`
	ServerStatus bool      `json:"server_status"`
	// AccountExpiryDate is optional; a past value blocks login.
	AccountExpiryDate *time.Time `json:"account_expiry_date,omitempty"`
	// PreviousIsActive is only populated while a system-owner-expiry cascade
	// has disabled the account, so the original state can be restored.
	PreviousIsActive *bool `json:"-"`
}

// Expired reports whether the account is past its expiry date.
func (u *User) Expired(now time.Time) bool {
	return u.AccountExpiryDate != nil && now.After(*u.AccountExpiryDate)
}

// IsSystemOwner reports whether u is the distinguished bootstrap owner whose
// expiry drives the global disable/restore cascade.
func (u *User) IsSystemOwner() bool {
	return u.Role == RoleOwner && u.CreatedBy == SystemCreator
}
