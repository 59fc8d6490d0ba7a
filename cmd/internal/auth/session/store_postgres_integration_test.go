package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Integration tests are opt-in and require SB_TEST_DATABASE_URL. In non-CI
// runs, unreachable Postgres skips rather than fails to keep local runs fast.

func TestPostgresStoreLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	defer mustDropSchema(t, pool, schema)
	mustApplySessionSchema(t, pool, schema)

	clock := newFakeClock()
	cfg := DefaultConfig()
	store, err := NewPostgresStore(pool, cfg, clock, WithSchema(schema))
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}

	rec, err := store.Create(ctx, "ada")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, ok, err := store.Get(ctx, rec.ID)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.OwnerID != "ada" || got.CSRFToken != rec.CSRFToken {
		t.Fatalf("Get mismatch: %+v", got)
	}

	// Rotation: old ID stops resolving but leaves a tombstoned row; the
	// replacement keeps owner, creation time, and deadline.
	clock.Advance(time.Minute)
	next, ok, err := store.Rotate(ctx, rec.ID)
	if err != nil || !ok {
		t.Fatalf("Rotate: ok=%v err=%v", ok, err)
	}
	if next.ID == rec.ID || next.CSRFToken == rec.CSRFToken {
		t.Fatal("rotation must issue fresh tokens")
	}
	if !next.ExpiresAt.Equal(rec.ExpiresAt.Truncate(time.Microsecond)) && !next.ExpiresAt.Equal(rec.ExpiresAt) {
		t.Fatalf("rotation changed the deadline: %v -> %v", rec.ExpiresAt, next.ExpiresAt)
	}
	if _, ok, _ := store.Get(ctx, rec.ID); ok {
		t.Fatal("old ID must stop resolving after rotation")
	}
	var revokedAt *time.Time
	err = pool.QueryRow(ctx, `
		SELECT revoked_at FROM `+pgx.Identifier{schema, "sessions"}.Sanitize()+` WHERE id = $1
	`, rec.ID).Scan(&revokedAt)
	if err != nil {
		t.Fatalf("read old row: %v", err)
	}
	if revokedAt == nil {
		t.Fatal("old row must carry a revocation tombstone, not be deleted")
	}

	// Second rotation of the dead ID fails and leaves the row count alone.
	if _, ok, _ := store.Rotate(ctx, rec.ID); ok {
		t.Fatal("second rotation of the same old ID must fail")
	}
	n, err := store.CountActive(ctx)
	if err != nil || n != 1 {
		t.Fatalf("CountActive = %d err=%v, want 1", n, err)
	}
}

func TestPostgresStoreReauthAndRevokeAll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	defer mustDropSchema(t, pool, schema)
	mustApplySessionSchema(t, pool, schema)

	clock := newFakeClock()
	cfg := DefaultConfig()
	store, err := NewPostgresStore(pool, cfg, clock, WithSchema(schema))
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}

	rec, err := store.Create(ctx, "ada")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if ok, _ := store.RecentlyReauthed(ctx, rec.ID); ok {
		t.Fatal("unmarked session must not report recent reauth")
	}
	marked, err := store.MarkReauth(ctx, rec.ID)
	if err != nil || !marked {
		t.Fatalf("MarkReauth: marked=%v err=%v", marked, err)
	}
	clock.Advance(cfg.ReauthWindow)
	if ok, _ := store.RecentlyReauthed(ctx, rec.ID); !ok {
		t.Fatal("reauth must hold exactly at the window boundary")
	}
	clock.Advance(time.Second)
	if ok, _ := store.RecentlyReauthed(ctx, rec.ID); ok {
		t.Fatal("reauth must lapse past the window boundary")
	}

	other, err := store.Create(ctx, "grace")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Create(ctx, "ada"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	n, err := store.RevokeAll(ctx, "ada")
	if err != nil || n != 2 {
		t.Fatalf("RevokeAll = %d err=%v, want 2", n, err)
	}
	if _, ok, _ := store.Get(ctx, other.ID); !ok {
		t.Fatal("other owner's session must survive RevokeAll")
	}
}

func TestPostgresStoreCleanupRetention(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	defer mustDropSchema(t, pool, schema)
	mustApplySessionSchema(t, pool, schema)

	clock := newFakeClock()
	cfg := DefaultConfig()
	store, err := NewPostgresStore(pool, cfg, clock, WithSchema(schema))
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}

	rec, err := store.Create(ctx, "ada")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Invalidate(ctx, rec.ID); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	// A fresh tombstone is inside the retention window and survives Cleanup.
	n, err := store.Cleanup(ctx)
	if err != nil || n != 0 {
		t.Fatalf("Cleanup = %d err=%v, want 0", n, err)
	}

	// Past the retention window the tombstone is removable.
	clock.Advance(cfg.Retention + time.Minute)
	n, err = store.Cleanup(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Cleanup = %d err=%v, want 1", n, err)
	}
}

func TestPostgresStoreTouchThrottle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	defer mustDropSchema(t, pool, schema)
	mustApplySessionSchema(t, pool, schema)

	clock := newFakeClock()
	cfg := DefaultConfig()
	store, err := NewPostgresStore(pool, cfg, clock, WithSchema(schema))
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}

	rec, err := store.Create(ctx, "ada")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Inside the throttle window the read must not move last_seen_at.
	clock.Advance(cfg.TouchInterval / 2)
	if _, ok, _ := store.Get(ctx, rec.ID); !ok {
		t.Fatal("Get inside throttle window must succeed")
	}
	stored := mustReadLastSeen(ctx, t, pool, schema, rec.ID)
	if !stored.Equal(rec.LastSeenAt.Truncate(time.Microsecond)) && !stored.Equal(rec.LastSeenAt) {
		t.Fatalf("last_seen_at moved inside the throttle window: %v -> %v", rec.LastSeenAt, stored)
	}

	// At the throttle boundary the read persists the touch.
	clock.Advance(cfg.TouchInterval / 2)
	if _, ok, _ := store.Get(ctx, rec.ID); !ok {
		t.Fatal("Get at throttle boundary must succeed")
	}
	stored = mustReadLastSeen(ctx, t, pool, schema, rec.ID)
	if !stored.After(rec.LastSeenAt) {
		t.Fatalf("last_seen_at not persisted at throttle boundary: %v", stored)
	}
}

func mustReadLastSeen(ctx context.Context, t *testing.T, pool *pgxpool.Pool, schema, id string) time.Time {
	t.Helper()

	var lastSeen time.Time
	err := pool.QueryRow(ctx, `
		SELECT last_seen_at FROM `+pgx.Identifier{schema, "sessions"}.Sanitize()+` WHERE id = $1
	`, id).Scan(&lastSeen)
	if err != nil {
		t.Fatalf("read last_seen_at: %v", err)
	}
	return lastSeen
}

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("SB_TEST_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: SB_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse SB_TEST_DATABASE_URL: %v", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		if shouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable (SB_TEST_DATABASE_URL set): %v", err)
		}
		t.Fatalf("acquire: %v", err)
	}
	c.Release()

	return pool
}

func mustCreateTestSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		t.Fatalf("rand: %v", err)
	}
	schema := "sb_it_" + hex.EncodeToString(buf)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, `CREATE SCHEMA `+pgx.Identifier{schema}.Sanitize()); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return schema
}

func mustDropSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
}

func mustApplySessionSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	table := pgx.Identifier{schema, "sessions"}.Sanitize()
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id           TEXT PRIMARY KEY,
  owner_id     TEXT NOT NULL,
  created_at   TIMESTAMPTZ NOT NULL,
  last_seen_at TIMESTAMPTZ NOT NULL,
  expires_at   TIMESTAMPTZ NOT NULL,
  reauth_at    TIMESTAMPTZ NULL,
  csrf_token   TEXT NOT NULL,
  revoked_at   TIMESTAMPTZ NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_owner_id ON %s (owner_id);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON %s (expires_at);
`, table, table, table)

	if _, err := pool.Exec(ctx, ddl); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
}

func shouldSkipIntegration(err error) bool {
	if err == nil {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host") {
		return true
	}
	return false
}
