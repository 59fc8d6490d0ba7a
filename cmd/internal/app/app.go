// Package app wires the ScenarioBuilder session authority: config, logging,
// store backends, and the background cleanup janitor.
//
// It is intentionally small and deterministic to keep CI gates strict and
// behavior predictable.
package app

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JFRP-89/ScenarioBuilder-sub000/cmd/internal/auth"
	"github.com/JFRP-89/ScenarioBuilder-sub000/cmd/internal/auth/session"
	"github.com/JFRP-89/ScenarioBuilder-sub000/cmd/security/password"
)

// App owns the wired auth service and its backends. Transports (HTTP, RPC)
// are expected to embed this runtime and call into Auth.
type App struct {
	cfg Config
	log Logger

	Auth     *auth.Service
	Sessions session.Store

	dbPool    *pgxpool.Pool
	dbEnabled bool
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}

	clock := session.SystemClock{}

	var (
		sessions session.Store
		creds    auth.CredentialStore
		pool     *pgxpool.Pool
	)

	if cfg.DatabaseURL != "" {
		pool, err = NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}

		sessions, err = session.NewPostgresStore(pool, sessCfg, clock, session.WithSchema(cfg.DBSchema))
		if err != nil {
			pool.Close()
			return nil, err
		}
		creds, err = auth.NewPostgresCredentialStore(pool, pwCfg, clock, auth.WithCredentialSchema(cfg.DBSchema))
		if err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema)
	} else {
		var snap session.Snapshotter
		if cfg.SnapshotPath != "" {
			fs, err := session.NewFileSnapshot(cfg.SnapshotPath)
			if err != nil {
				return nil, err
			}
			snap = fs
		}

		sessions, err = session.NewMemoryStore(sessCfg, clock, snap)
		if err != nil {
			return nil, err
		}
		creds = auth.NewMemoryCredentialStore(pwCfg, clock)
		log.Info("db.disabled.inmemory_store", "snapshot", cfg.SnapshotPath != "")
	}

	svc := auth.NewService(sessions, creds, clock, log, pwCfg)

	return &App{
		cfg:       cfg,
		log:       log,
		Auth:      svc,
		Sessions:  sessions,
		dbPool:    pool,
		dbEnabled: pool != nil,
	}, nil
}

// Run drives the cleanup janitor and blocks until context cancellation.
func (a *App) Run(ctx context.Context) error {
	interval := a.cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	a.log.Info("janitor.start", "interval", interval.String(), "db_enabled", a.dbEnabled)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("janitor.stop", "reason", "context_done")
			a.Close()
			return nil
		case <-ticker.C:
			n, err := a.Sessions.Cleanup(ctx)
			if err != nil {
				a.log.Error("janitor.cleanup.fail", "err", err)
				continue
			}
			if n > 0 {
				a.log.Info("janitor.cleanup", "removed", n)
			}
		}
	}
}

// Close releases backend resources. Safe to call more than once.
func (a *App) Close() {
	if a.dbPool != nil {
		a.dbPool.Close()
		a.dbPool = nil
	}
}
