package session

import "time"

// Record is the server-side state for one session. It is the only entity this
// package persists; both backends share it.
//
// ID is the bearer credential found in the client's session cookie and carries
// 256 bits of randomness. CSRFToken is bound 1:1 to the session and handed to
// the client in a separate script-readable cookie (double-submit pattern);
// rotation regenerates both together.
type Record struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"owner_id"`
	CreatedAt  time.Time  `json:"created_at"`
	LastSeenAt time.Time  `json:"last_seen_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ReauthAt   *time.Time `json:"reauth_at,omitempty"`
	CSRFToken  string     `json:"csrf_token"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// liveAt reports whether the record is valid at now.
// Both expiry timers are inclusive: a session is still live exactly at the
// idle threshold and exactly at the absolute deadline, and dead one instant past.
func (r Record) liveAt(now time.Time, idle time.Duration) bool {
	if r.RevokedAt != nil {
		return false
	}
	if now.After(r.ExpiresAt) {
		return false
	}
	if idle > 0 && now.Sub(r.LastSeenAt) > idle {
		return false
	}
	return true
}
