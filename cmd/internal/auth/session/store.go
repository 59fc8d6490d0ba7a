package session

import "context"

// Store abstracts session persistence. MemoryStore and PostgresStore must
// satisfy this contract identically; conformance is pinned by the shared test
// suite in this package.
//
// Absent, revoked, and expired sessions are indistinguishable to callers (all
// report ok=false) so that the session namespace cannot be enumerated. The
// error return is reserved for storage unavailability and is fatal to the
// caller; it never encodes an authorization outcome.
type Store interface {
	// Create issues a fresh session for ownerID with new random ID and CSRF
	// token. It is never idempotent: every call produces a new record.
	Create(ctx context.Context, ownerID string) (Record, error)

	// Get returns the record if it is live, refreshing its last-seen timestamp
	// as a side effect (subject to touch throttling in the shared backend).
	Get(ctx context.Context, sessionID string) (Record, bool, error)

	// Invalidate marks the session revoked. Idempotent: revoking an unknown or
	// already-revoked session reports false, never an error.
	Invalidate(ctx context.Context, sessionID string) (bool, error)

	// RevokeAll revokes every live session for an owner and reports how many
	// were revoked. Used on password change or suspected compromise.
	RevokeAll(ctx context.Context, ownerID string) (int, error)

	// MarkReauth records a fresh password confirmation on a live session.
	// False if the session is not live.
	MarkReauth(ctx context.Context, sessionID string) (bool, error)

	// RecentlyReauthed reports whether the session is live and its last
	// password confirmation falls within the configured reauth window
	// (inclusive at the boundary).
	RecentlyReauthed(ctx context.Context, sessionID string) (bool, error)

	// Rotate atomically replaces a live session with a new record carrying a
	// fresh ID and CSRF token but the same owner, creation time, absolute
	// deadline, and reauth mark. No reader may observe a state where the old
	// and new IDs are both valid, or where neither is. Not idempotent: once
	// the old ID is revoked, a second Rotate on it reports false.
	Rotate(ctx context.Context, oldSessionID string) (Record, bool, error)

	// CSRFToken returns the CSRF token bound to a live session.
	CSRFToken(ctx context.Context, sessionID string) (string, bool, error)

	// Cleanup physically removes sessions past their absolute deadline and
	// tombstones older than the retention window. It never removes a live
	// record and is safe to run concurrently with all other operations.
	Cleanup(ctx context.Context) (int, error)

	// CountActive reports the number of live sessions.
	CountActive(ctx context.Context) (int, error)

	// Reset unconditionally clears all session state. Test/ops only.
	Reset(ctx context.Context) error
}
