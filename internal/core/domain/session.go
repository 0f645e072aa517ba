package domain

import "time"

// SessionTTL is the fixed lifetime of a login session. There is no refresh;
// re-login is required after expiry.
const SessionTTL = 30 * time.Minute

// Session is an opaque bearer credential. Expired rows are ignored by query
// filter and persist until incidentally cleaned; there is no background reaper.
type Session struct {
	Token     string    `json:"-"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether the session is still usable.
func (s *Session) Valid(now time.Time) bool {
	return s.ExpiresAt.After(now)
}
