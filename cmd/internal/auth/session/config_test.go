package session

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.IdleTimeout != 15*time.Minute {
		t.Fatalf("IdleTimeout = %v, want 15m", cfg.IdleTimeout)
	}
	if cfg.MaxLifetime != 12*time.Hour {
		t.Fatalf("MaxLifetime = %v, want 12h", cfg.MaxLifetime)
	}
	if cfg.ReauthWindow != 5*time.Minute {
		t.Fatalf("ReauthWindow = %v, want 5m", cfg.ReauthWindow)
	}
	if cfg.TouchInterval != time.Minute {
		t.Fatalf("TouchInterval = %v, want 1m", cfg.TouchInterval)
	}
	if cfg.Retention != 24*time.Hour {
		t.Fatalf("Retention = %v, want 24h", cfg.Retention)
	}
}

func TestLoadConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("SB_SESSION_IDLE_TIMEOUT", "30m")
	t.Setenv("SB_SESSION_MAX_LIFETIME", "24h")
	t.Setenv("SB_SESSION_REAUTH_WINDOW", "10m")
	t.Setenv("SB_SESSION_TOUCH_INTERVAL", "2m")
	t.Setenv("SB_SESSION_RETENTION", "48h")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}

	if cfg.IdleTimeout != 30*time.Minute {
		t.Fatalf("IdleTimeout = %v, want 30m", cfg.IdleTimeout)
	}
	if cfg.MaxLifetime != 24*time.Hour {
		t.Fatalf("MaxLifetime = %v, want 24h", cfg.MaxLifetime)
	}
	if cfg.ReauthWindow != 10*time.Minute {
		t.Fatalf("ReauthWindow = %v, want 10m", cfg.ReauthWindow)
	}
	if cfg.TouchInterval != 2*time.Minute {
		t.Fatalf("TouchInterval = %v, want 2m", cfg.TouchInterval)
	}
	if cfg.Retention != 48*time.Hour {
		t.Fatalf("Retention = %v, want 48h", cfg.Retention)
	}
}

func TestLoadConfigFromEnvInvalid(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"garbage duration", "SB_SESSION_IDLE_TIMEOUT", "fifteen minutes"},
		{"zero idle", "SB_SESSION_IDLE_TIMEOUT", "0s"},
		{"negative lifetime", "SB_SESSION_MAX_LIFETIME", "-1h"},
		{"zero reauth window", "SB_SESSION_REAUTH_WINDOW", "0s"},
		{"negative touch", "SB_SESSION_TOUCH_INTERVAL", "-1s"},
		{"zero retention", "SB_SESSION_RETENTION", "0s"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestLoadConfigFromEnvInvariants(t *testing.T) {
	t.Run("idle exceeds lifetime", func(t *testing.T) {
		t.Setenv("SB_SESSION_IDLE_TIMEOUT", "2h")
		t.Setenv("SB_SESSION_MAX_LIFETIME", "1h")
		if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
			t.Fatalf("expected ErrConfig, got %v", err)
		}
	})

	t.Run("touch not below idle", func(t *testing.T) {
		t.Setenv("SB_SESSION_IDLE_TIMEOUT", "1m")
		t.Setenv("SB_SESSION_TOUCH_INTERVAL", "1m")
		if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
			t.Fatalf("expected ErrConfig, got %v", err)
		}
	})
}
