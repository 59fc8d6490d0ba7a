package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the shared-storage Store backend, for deployments where
// several instances must agree on one session authority.
//
// Revocation is soft: rows get a revoked_at tombstone instead of being deleted,
// preserving audit visibility until Cleanup removes them after the retention
// window. Each operation runs in its own transaction (or a single implicitly
// transactional statement); no connection is held across calls.
//
// Expected schema (managed externally, default schema "sb"):
//
//	CREATE TABLE sb.sessions (
//	    id           text PRIMARY KEY,
//	    owner_id     text NOT NULL,
//	    created_at   timestamptz NOT NULL,
//	    last_seen_at timestamptz NOT NULL,
//	    expires_at   timestamptz NOT NULL,
//	    reauth_at    timestamptz,
//	    csrf_token   text NOT NULL,
//	    revoked_at   timestamptz
//	);
type PostgresStore struct {
	pool   *pgxpool.Pool
	cfg    Config
	clock  Clock
	schema string
}

var _ Store = (*PostgresStore)(nil)

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the session store (default "sb").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("session: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("session: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore creates a Postgres-backed session store. The pool is owned
// by the caller; this store never closes it.
func NewPostgresStore(pool *pgxpool.Pool, cfg Config, clock Clock, opts ...PostgresOption) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("session: nil pool")
	}
	if clock == nil {
		clock = SystemClock{}
	}

	s := &PostgresStore{
		pool:   pool,
		cfg:    cfg,
		clock:  clock,
		schema: "sb",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "sessions"}.Sanitize()
}

// liveWhere is the SQL liveness predicate shared by every read. $now and
// $idleCutoff are bound by the caller; boundaries are inclusive to match
// Record.liveAt.
const liveWhere = `revoked_at IS NULL AND expires_at >= $2 AND last_seen_at >= $3`

func (s *PostgresStore) liveArgs(now time.Time) (time.Time, time.Time) {
	return now, now.Add(-s.cfg.IdleTimeout)
}

// Create inserts a fresh session row.
func (s *PostgresStore) Create(ctx context.Context, ownerID string) (Record, error) {
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

	_, err = s.pool.Exec(ctx, `
		INSERT INTO `+s.table()+` (
			id, owner_id, created_at, last_seen_at, expires_at, reauth_at, csrf_token, revoked_at
		) VALUES ($1, $2, $3, $3, $4, NULL, $5, NULL)
	`, rec.ID, rec.OwnerID, now, rec.ExpiresAt, rec.CSRFToken)
	if err != nil {
		return Record{}, err
	}

	sessionsCreated.WithLabelValues(backendPostgres).Inc()
	return rec, nil
}

// Get loads a live session and refreshes last_seen_at, skipping the write when
// less than TouchInterval has elapsed since the previous touch. The
// read-then-maybe-write happens inside one transaction; two concurrent touches
// both deciding to write is a benign last-write-wins race.
func (s *PostgresStore) Get(ctx context.Context, sessionID string) (Record, bool, error) {
	now := s.clock.NowUTC()
	nowArg, idleCutoff := s.liveArgs(now)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec, err := scanSession(tx.QueryRow(ctx, `
		SELECT id, owner_id, created_at, last_seen_at, expires_at, reauth_at, csrf_token, revoked_at
		FROM `+s.table()+`
		WHERE id = $1 AND `+liveWhere+`
	`, sessionID, nowArg, idleCutoff))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}

	if now.Sub(rec.LastSeenAt) >= s.cfg.TouchInterval {
		if _, err := tx.Exec(ctx, `
			UPDATE `+s.table()+` SET last_seen_at = $2 WHERE id = $1
		`, sessionID, now); err != nil {
			return Record{}, false, err
		}
		rec.LastSeenAt = now
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Invalidate tombstones a session. Reports false for unknown or
// already-revoked IDs, matching the in-process backend.
func (s *PostgresStore) Invalidate(ctx context.Context, sessionID string) (bool, error) {
	now := s.clock.NowUTC()

	ct, err := s.pool.Exec(ctx, `
		UPDATE `+s.table()+`
		SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`, sessionID, now)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 0 {
		return false, nil
	}

	sessionsRevoked.WithLabelValues(backendPostgres).Inc()
	return true, nil
}

// RevokeAll tombstones every live session for an owner.
func (s *PostgresStore) RevokeAll(ctx context.Context, ownerID string) (int, error) {
	now := s.clock.NowUTC()
	nowArg, idleCutoff := s.liveArgs(now)

	ct, err := s.pool.Exec(ctx, `
		UPDATE `+s.table()+`
		SET revoked_at = $4
		WHERE owner_id = $1 AND `+liveWhere+`
	`, ownerID, nowArg, idleCutoff, now)
	if err != nil {
		return 0, err
	}

	count := int(ct.RowsAffected())
	if count > 0 {
		sessionsRevoked.WithLabelValues(backendPostgres).Add(float64(count))
	}
	return count, nil
}

// MarkReauth stamps reauth_at on a live session.
func (s *PostgresStore) MarkReauth(ctx context.Context, sessionID string) (bool, error) {
	now := s.clock.NowUTC()
	nowArg, idleCutoff := s.liveArgs(now)

	ct, err := s.pool.Exec(ctx, `
		UPDATE `+s.table()+`
		SET reauth_at = $4
		WHERE id = $1 AND `+liveWhere+`
	`, sessionID, nowArg, idleCutoff, now)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// RecentlyReauthed reports whether a live session's reauth mark is inside the window.
func (s *PostgresStore) RecentlyReauthed(ctx context.Context, sessionID string) (bool, error) {
	now := s.clock.NowUTC()
	nowArg, idleCutoff := s.liveArgs(now)

	var reauthAt *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT reauth_at FROM `+s.table()+`
		WHERE id = $1 AND `+liveWhere+`
	`, sessionID, nowArg, idleCutoff).Scan(&reauthAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if reauthAt == nil {
		return false, nil
	}
	return now.Sub(*reauthAt) <= s.cfg.ReauthWindow, nil
}

// Rotate revokes the old row and inserts the replacement inside one
// transaction with a single commit, so a reader in a separate transaction
// observes either the pre-rotation or the post-rotation world, never an
// intermediate one. The old row is locked first to serialize concurrent
// rotations (single-writer).
func (s *PostgresStore) Rotate(ctx context.Context, oldSessionID string) (Record, bool, error) {
	newID, newCSRF, err := newSessionTokens()
	if err != nil {
		return Record{}, false, err
	}

	now := s.clock.NowUTC()
	nowArg, idleCutoff := s.liveArgs(now)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	old, err := scanSession(tx.QueryRow(ctx, `
		SELECT id, owner_id, created_at, last_seen_at, expires_at, reauth_at, csrf_token, revoked_at
		FROM `+s.table()+`
		WHERE id = $1 AND `+liveWhere+`
		FOR UPDATE
	`, oldSessionID, nowArg, idleCutoff))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
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

	if _, err := tx.Exec(ctx, `
		INSERT INTO `+s.table()+` (
			id, owner_id, created_at, last_seen_at, expires_at, reauth_at, csrf_token, revoked_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)
	`, next.ID, next.OwnerID, next.CreatedAt, next.LastSeenAt, next.ExpiresAt, next.ReauthAt, next.CSRFToken); err != nil {
		return Record{}, false, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE `+s.table()+`
		SET revoked_at = $2, last_seen_at = $2
		WHERE id = $1
	`, oldSessionID, now); err != nil {
		return Record{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, false, err
	}

	sessionsRotated.WithLabelValues(backendPostgres).Inc()
	return next, true, nil
}

// CSRFToken returns the token bound to a live session without touching it.
func (s *PostgresStore) CSRFToken(ctx context.Context, sessionID string) (string, bool, error) {
	now := s.clock.NowUTC()
	nowArg, idleCutoff := s.liveArgs(now)

	var csrf string
	err := s.pool.QueryRow(ctx, `
		SELECT csrf_token FROM `+s.table()+`
		WHERE id = $1 AND `+liveWhere+`
	`, sessionID, nowArg, idleCutoff).Scan(&csrf)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return csrf, true, nil
}

// Cleanup deletes rows past their absolute deadline and tombstones older than
// the retention window. The liveness predicate guarantees no live row matches.
func (s *PostgresStore) Cleanup(ctx context.Context) (int, error) {
	now := s.clock.NowUTC()

	ct, err := s.pool.Exec(ctx, `
		DELETE FROM `+s.table()+`
		WHERE expires_at < $1
		   OR (revoked_at IS NOT NULL AND revoked_at < $2)
	`, now, now.Add(-s.cfg.Retention))
	if err != nil {
		return 0, err
	}

	count := int(ct.RowsAffected())
	if count > 0 {
		sessionsCleaned.WithLabelValues(backendPostgres).Add(float64(count))
	}
	return count, nil
}

// CountActive reports the number of live sessions.
func (s *PostgresStore) CountActive(ctx context.Context) (int, error) {
	now := s.clock.NowUTC()
	nowArg, idleCutoff := s.liveArgs(now)

	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM `+s.table()+`
		WHERE revoked_at IS NULL AND expires_at >= $1 AND last_seen_at >= $2
	`, nowArg, idleCutoff).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Reset unconditionally clears all rows. Test/ops only.
func (s *PostgresStore) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM `+s.table())
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.CreatedAt,
		&rec.LastSeenAt,
		&rec.ExpiresAt,
		&rec.ReauthAt,
		&rec.CSRFToken,
		&rec.RevokedAt,
	)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}
