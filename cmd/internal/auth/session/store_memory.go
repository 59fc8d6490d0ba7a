package session

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is the in-process Store backend: a single mutex over a map of
// live records, for single-instance and development deployments.
//
// Revocation is modeled as removal from the live map; the map never holds a
// tombstone. Every operation takes the lock for its full critical section, so
// Rotate's pop-old/insert-new pair is atomic by construction. The optional
// Snapshotter runs while the lock is held and must stay a fast local write.
type MemoryStore struct {
	mu    sync.Mutex
	cfg   Config
	clock Clock
	snap  Snapshotter
	live  map[string]Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-process session store. snap may be nil for a
// pure in-memory store; when set, previously snapshotted records that are
// still live are restored.
func NewMemoryStore(cfg Config, clock Clock, snap Snapshotter) (*MemoryStore, error) {
	if clock == nil {
		clock = SystemClock{}
	}

	s := &MemoryStore{
		cfg:   cfg,
		clock: clock,
		snap:  snap,
		live:  make(map[string]Record),
	}

	if snap != nil {
		records, err := snap.Load()
		if err != nil {
			return nil, err
		}
		now := clock.NowUTC()
		for _, rec := range records {
			// Dead records are not worth restoring.
			if rec.liveAt(now, cfg.IdleTimeout) {
				s.live[rec.ID] = rec
			}
		}
	}

	return s, nil
}

// Create issues a new session for ownerID.
func (s *MemoryStore) Create(_ context.Context, ownerID string) (Record, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return Record{}, ErrInvalidOwner
	}

	id, csrf, err := newSessionTokens()
	if err != nil {
		return Record{}, err
	}

	now := s.clock.NowUTC()
	rec := Record{
		ID:         id,
		OwnerID:    ownerID,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(s.cfg.MaxLifetime),
		CSRFToken:  csrf,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.live[id] = rec
	s.saveLocked()

	sessionsCreated.WithLabelValues(backendMemory).Inc()
	return rec, nil
}

// Get returns the session if live and refreshes its last-seen timestamp.
func (s *MemoryStore) Get(_ context.Context, sessionID string) (Record, bool, error) {
	now := s.clock.NowUTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.live[sessionID]
	if !ok || !rec.liveAt(now, s.cfg.IdleTimeout) {
		return Record{}, false, nil
	}

	rec.LastSeenAt = now
	s.live[sessionID] = rec
	s.saveLocked()

	return rec, true, nil
}

// Invalidate removes the session from the live map.
func (s *MemoryStore) Invalidate(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live[sessionID]; !ok {
		return false, nil
	}

	delete(s.live, sessionID)
	s.saveLocked()

	sessionsRevoked.WithLabelValues(backendMemory).Inc()
	return true, nil
}

// RevokeAll removes every live session owned by ownerID.
func (s *MemoryStore) RevokeAll(_ context.Context, ownerID string) (int, error) {
	now := s.clock.NowUTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, rec := range s.live {
		if rec.OwnerID == ownerID && rec.liveAt(now, s.cfg.IdleTimeout) {
			delete(s.live, id)
			count++
		}
	}

	if count > 0 {
		s.saveLocked()
		sessionsRevoked.WithLabelValues(backendMemory).Add(float64(count))
	}
	return count, nil
}

// MarkReauth stamps a password re-confirmation on a live session.
func (s *MemoryStore) MarkReauth(_ context.Context, sessionID string) (bool, error) {
	now := s.clock.NowUTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.live[sessionID]
	if !ok || !rec.liveAt(now, s.cfg.IdleTimeout) {
		return false, nil
	}

	// Stamping with now keeps reauth_at monotonically non-decreasing.
	rec.ReauthAt = &now
	s.live[sessionID] = rec
	s.saveLocked()

	return true, nil
}

// RecentlyReauthed reports whether the session's reauth mark is inside the window.
func (s *MemoryStore) RecentlyReauthed(_ context.Context, sessionID string) (bool, error) {
	now := s.clock.NowUTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.live[sessionID]
	if !ok || !rec.liveAt(now, s.cfg.IdleTimeout) {
		return false, nil
	}
	if rec.ReauthAt == nil {
		return false, nil
	}
	return now.Sub(*rec.ReauthAt) <= s.cfg.ReauthWindow, nil
}

// Rotate replaces a live session with a fresh ID + CSRF pair under one lock
// acquisition, preserving owner, creation time, deadline, and reauth mark.
func (s *MemoryStore) Rotate(_ context.Context, oldSessionID string) (Record, bool, error) {
	newID, newCSRF, err := newSessionTokens()
	if err != nil {
		return Record{}, false, err
	}

	now := s.clock.NowUTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.live[oldSessionID]
	if !ok || !old.liveAt(now, s.cfg.IdleTimeout) {
		return Record{}, false, nil
	}

	next := Record{
		ID:         newID,
		OwnerID:    old.OwnerID,
		CreatedAt:  old.CreatedAt,
		LastSeenAt: now,
		ExpiresAt:  old.ExpiresAt,
		ReauthAt:   old.ReauthAt,
		CSRFToken:  newCSRF,
	}

	delete(s.live, oldSessionID)
	s.live[newID] = next
	s.saveLocked()

	sessionsRotated.WithLabelValues(backendMemory).Inc()
	return next, true, nil
}

// CSRFToken returns the token bound to a live session without touching it.
func (s *MemoryStore) CSRFToken(_ context.Context, sessionID string) (string, bool, error) {
	now := s.clock.NowUTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.live[sessionID]
	if !ok || !rec.liveAt(now, s.cfg.IdleTimeout) {
		return "", false, nil
	}
	return rec.CSRFToken, true, nil
}

// Cleanup removes sessions whose absolute deadline has passed.
func (s *MemoryStore) Cleanup(_ context.Context) (int, error) {
	now := s.clock.NowUTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, rec := range s.live {
		if now.After(rec.ExpiresAt) {
			delete(s.live, id)
			count++
		}
	}

	if count > 0 {
		s.saveLocked()
		sessionsCleaned.WithLabelValues(backendMemory).Add(float64(count))
	}
	return count, nil
}

// CountActive reports the number of live sessions.
func (s *MemoryStore) CountActive(_ context.Context) (int, error) {
	now := s.clock.NowUTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, rec := range s.live {
		if rec.liveAt(now, s.cfg.IdleTimeout) {
			count++
		}
	}
	return count, nil
}

// Reset unconditionally clears all state.
func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.live = make(map[string]Record)
	s.saveLocked()
	return nil
}

// saveLocked snapshots the live map. Best-effort: errors are swallowed so that
// disk trouble never fails a session operation. Callers must hold s.mu.
func (s *MemoryStore) saveLocked() {
	if s.snap == nil {
		return
	}

	records := make([]Record, 0, len(s.live))
	for _, rec := range s.live {
		records = append(records, rec)
	}
	_ = s.snap.Save(records)
}
