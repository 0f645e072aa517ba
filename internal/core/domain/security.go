package domain

import "time"

// LoginAttempt is an append-only audit row recorded for every login POST,
// successful or not.
type LoginAttempt struct {
	ID        string    `json:"id"`
	IP        string    `json:"ip"`
	Username  string    `json:"username"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	UserAgent string    `json:"user_agent"`
}

// BlockedIP marks an IP as rejected at the login gate. Temporary blocks carry
// an ExpiresAt; permanent blocks only ever come from administrative action.
type BlockedIP struct {
	ID           string     `json:"id"`
	IP           string     `json:"ip"`
	BlockedAt    time.Time  `json:"blocked_at"`
	Reason       string     `json:"reason"`
	AttemptCount int        `json:"attempt_count"`
	IsPermanent  bool       `json:"is_permanent"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Active reports whether the block still applies.
func (b *BlockedIP) Active(now time.Time) bool {
	if b.IsPermanent {
		return true
	}
	return b.ExpiresAt != nil && b.ExpiresAt.After(now)
}
