package session

import (
	"os"
	"time"
)

// Config defines all runtime configuration for the session subsystem.
//
// It controls the two expiry timers (idle and absolute), the reauth window
// that gates sensitive operations, and the shared-backend tuning knobs.
//
// This struct is intentionally explicit and environment-driven so that
// production deployments can tune security parameters without code changes.
type Config struct {
	// IdleTimeout expires a session after inactivity, measured from its
	// last-seen timestamp.
	IdleTimeout time.Duration

	// MaxLifetime is the absolute ceiling on session age, independent of
	// activity.
	MaxLifetime time.Duration

	// ReauthWindow bounds how long a password re-confirmation keeps gating
	// sensitive operations open.
	ReauthWindow time.Duration

	// TouchInterval throttles how often the shared backend persists the
	// last-seen timestamp, to bound write amplification under high request
	// rates. The in-process backend ignores it.
	TouchInterval time.Duration

	// Retention is how long revoked tombstones stay visible in the shared
	// backend before Cleanup may remove them.
	Retention time.Duration
}

// DefaultConfig returns secure defaults suitable for development.
//
// Production environments should override values via environment variables.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:   15 * time.Minute,
		MaxLifetime:   12 * time.Hour,
		ReauthWindow:  5 * time.Minute,
		TouchInterval: time.Minute,
		Retention:     24 * time.Hour,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional (durations must be valid Go duration strings):
//   - SB_SESSION_IDLE_TIMEOUT
//   - SB_SESSION_MAX_LIFETIME
//   - SB_SESSION_REAUTH_WINDOW
//   - SB_SESSION_TOUCH_INTERVAL
//   - SB_SESSION_RETENTION
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("SB_SESSION_IDLE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.IdleTimeout = d
	}

	if v := os.Getenv("SB_SESSION_MAX_LIFETIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.MaxLifetime = d
	}

	if v := os.Getenv("SB_SESSION_REAUTH_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.ReauthWindow = d
	}

	if v := os.Getenv("SB_SESSION_TOUCH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.TouchInterval = d
	}

	if v := os.Getenv("SB_SESSION_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.Retention = d
	}

	// Invariants: the idle timer must fit inside the absolute lifetime, and
	// the touch throttle must be shorter than the idle timer it feeds.
	if cfg.IdleTimeout > cfg.MaxLifetime {
		return Config{}, ErrConfig
	}
	if cfg.TouchInterval >= cfg.IdleTimeout {
		return Config{}, ErrConfig
	}

	return cfg, nil
}
