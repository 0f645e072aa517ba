package domain

import "time"

// Activity is one append-only record of an administrative action. Writes are
// best-effort: a failed insert never fails the parent operation.
type Activity struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Role       Role      `json:"role"`
	Action     string    `json:"action"`
	TargetType string    `json:"target_type,omitempty"`
	Target     string    `json:"target,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
