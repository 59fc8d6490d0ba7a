package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JFRP-89/ScenarioBuilder-sub000/cmd/internal/auth/ids"
	"github.com/JFRP-89/ScenarioBuilder-sub000/cmd/internal/auth/session"
	"github.com/JFRP-89/ScenarioBuilder-sub000/cmd/security/password"
)

const pgUniqueViolation = "23505"

var credIdentRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PostgresCredentialStore persists accounts in Postgres.
//
// Expected schema (applied by migrations, not by this package):
//
//	CREATE TABLE sb.users (
//	    id              text PRIMARY KEY,
//	    username        text NOT NULL UNIQUE,
//	    name            text NOT NULL DEFAULT '',
//	    email           text NOT NULL DEFAULT '',
//	    password_hash   text NOT NULL,
//	    failed_attempts integer NOT NULL DEFAULT 0,
//	    locked_until    timestamptz,
//	    created_at      timestamptz NOT NULL,
//	    updated_at      timestamptz NOT NULL
//	);
//
// username holds the normalized form; the UNIQUE constraint is the final
// arbiter of collisions under concurrent registration.
type PostgresCredentialStore struct {
	pool  *pgxpool.Pool
	pw    password.Config
	clock session.Clock

	schema    string
	maxFailed int
	lockFor   time.Duration
}

// PostgresCredentialOption customizes a PostgresCredentialStore.
type PostgresCredentialOption func(*PostgresCredentialStore)

// WithCredentialSchema overrides the default "sb" schema.
func WithCredentialSchema(schema string) PostgresCredentialOption {
	return func(s *PostgresCredentialStore) { s.schema = schema }
}

// NewPostgresCredentialStore builds a store over an existing pool. A nil
// clock falls back to the system clock.
func NewPostgresCredentialStore(pool *pgxpool.Pool, pw password.Config, clock session.Clock, opts ...PostgresCredentialOption) (*PostgresCredentialStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres credential store: nil pool")
	}
	if clock == nil {
		clock = session.SystemClock{}
	}
	s := &PostgresCredentialStore{
		pool:      pool,
		pw:        pw,
		clock:     clock,
		schema:    "sb",
		maxFailed: defaultMaxFailedAttempts,
		lockFor:   defaultLockoutWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !credIdentRe.MatchString(s.schema) {
		return nil, fmt.Errorf("postgres credential store: invalid schema %q", s.schema)
	}
	return s, nil
}

func (s *PostgresCredentialStore) table() string {
	return pgx.Identifier{s.schema, "users"}.Sanitize()
}

func (s *PostgresCredentialStore) VerifyCredentials(ctx context.Context, username, passwd string) (bool, error) {
	var hash string
	err := s.pool.QueryRow(ctx, `
		SELECT password_hash FROM `+s.table()+` WHERE username = $1
	`, username).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("verify credentials: %w", err)
	}

	ok, err := s.pw.Verify(hash, passwd)
	if errors.Is(err, password.ErrInvalidHash) {
		return false, nil
	}
	return ok, err
}

func (s *PostgresCredentialStore) IsLocked(ctx context.Context, username string) (bool, *time.Time, error) {
	now := s.clock.NowUTC()

	var until *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT locked_until FROM `+s.table()+` WHERE username = $1
	`, username).Scan(&until)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("is locked: %w", err)
	}
	if until == nil {
		return false, nil, nil
	}
	if now.Before(*until) {
		u := until.UTC()
		return true, &u, nil
	}

	// Expired lock clears lazily so counters restart clean.
	_, err = s.pool.Exec(ctx, `
		UPDATE `+s.table()+`
		SET failed_attempts = 0, locked_until = NULL, updated_at = $2
		WHERE username = $1
	`, username, now)
	if err != nil {
		return false, nil, fmt.Errorf("clear expired lock: %w", err)
	}
	return false, nil, nil
}

func (s *PostgresCredentialStore) RecordFailedAttempt(ctx context.Context, username string) (bool, *time.Time, error) {
	now := s.clock.NowUTC()

	var attempts int
	err := s.pool.QueryRow(ctx, `
		UPDATE `+s.table()+`
		SET failed_attempts = failed_attempts + 1, updated_at = $2
		WHERE username = $1
		RETURNING failed_attempts
	`, username, now).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("record failed attempt: %w", err)
	}
	if attempts < s.maxFailed {
		return false, nil, nil
	}

	until := now.Add(s.lockFor)
	_, err = s.pool.Exec(ctx, `
		UPDATE `+s.table()+`
		SET locked_until = $2, updated_at = $3
		WHERE username = $1
	`, username, until, now)
	if err != nil {
		return false, nil, fmt.Errorf("set lockout: %w", err)
	}
	return true, &until, nil
}

func (s *PostgresCredentialStore) ClearFailedAttempts(ctx context.Context, username string) error {
	now := s.clock.NowUTC()
	_, err := s.pool.Exec(ctx, `
		UPDATE `+s.table()+`
		SET failed_attempts = 0, locked_until = NULL, updated_at = $2
		WHERE username = $1
	`, username, now)
	if err != nil {
		return fmt.Errorf("clear failed attempts: %w", err)
	}
	return nil
}

func (s *PostgresCredentialStore) GetUserProfile(ctx context.Context, username string) (Profile, bool, error) {
	var p Profile
	err := s.pool.QueryRow(ctx, `
		SELECT username, name, email FROM `+s.table()+` WHERE username = $1
	`, username).Scan(&p.Username, &p.Name, &p.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, false, nil
	}
	if err != nil {
		return Profile{}, false, fmt.Errorf("get profile: %w", err)
	}
	return p, true, nil
}

func (s *PostgresCredentialStore) UpdateUserProfile(ctx context.Context, username, name, email string) (bool, error) {
	now := s.clock.NowUTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE `+s.table()+`
		SET name = $2, email = $3, updated_at = $4
		WHERE username = $1
	`, username, name, email, now)
	if err != nil {
		return false, fmt.Errorf("update profile: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresCredentialStore) ChangePassword(ctx context.Context, username, newPassword string) (bool, error) {
	hash, err := s.pw.Hash(newPassword)
	if err != nil {
		return false, err
	}

	now := s.clock.NowUTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE `+s.table()+`
		SET password_hash = $2, updated_at = $3
		WHERE username = $1
	`, username, hash, now)
	if err != nil {
		return false, fmt.Errorf("change password: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresCredentialStore) CreateUser(ctx context.Context, username, passwd, name, email string) (bool, error) {
	hash, err := s.pw.Hash(passwd)
	if err != nil {
		return false, err
	}

	now := s.clock.NowUTC()
	id, err := ids.NewULID(now)
	if err != nil {
		return false, err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO `+s.table()+`
			(id, username, name, email, password_hash, failed_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $6)
	`, id, username, name, email, hash, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return false, nil
		}
		return false, fmt.Errorf("create user: %w", err)
	}
	return true, nil
}

func (s *PostgresCredentialStore) UserExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM `+s.table()+` WHERE username = $1)
	`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return exists, nil
}
