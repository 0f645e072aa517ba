package domain

import "time"

// ReferralCode is a single-use signup token. It pre-assigns a role, a starting
// balance, and an account expiry to whoever redeems it.
type ReferralCode struct {
	ID             string     `json:"id"`
	Code           string     `json:"code"`
	Role           Role       `json:"role"`
	CreatedBy      string     `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	IsActive       bool       `json:"is_active"`
	UsedBy         string     `json:"used_by,omitempty"`
	UsedAt         *time.Time `json:"used_at,omitempty"`
	InitialBalance float64    `json:"initial_balance"`
	ExpiryDays     int        `json:"expiry_days"`
	ExpiryDate     time.Time  `json:"expiry_date"`
}

// Redeemable reports whether the code can still be consumed.
func (r *ReferralCode) Redeemable() bool {
	return r.IsActive && r.UsedBy == ""
}
