package app

import (
	"testing"
	"time"
)

func TestEnvString(t *testing.T) {
	t.Setenv("SB_TEST_STR", "  hello ")
	if got := EnvString("SB_TEST_STR", "def"); got != "hello" {
		t.Fatalf("EnvString = %q, want hello", got)
	}
	if got := EnvString("SB_TEST_STR_MISSING", "def"); got != "def" {
		t.Fatalf("EnvString = %q, want def", got)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("SB_TEST_BOOL", "true")
	if !EnvBool("SB_TEST_BOOL", false) {
		t.Fatal("EnvBool = false, want true")
	}
	t.Setenv("SB_TEST_BOOL", "not-a-bool")
	if !EnvBool("SB_TEST_BOOL", true) {
		t.Fatal("invalid value must fall back to default")
	}
}

func TestEnvInt32(t *testing.T) {
	t.Setenv("SB_TEST_INT", "25")
	if got := EnvInt32("SB_TEST_INT", 10); got != 25 {
		t.Fatalf("EnvInt32 = %d, want 25", got)
	}
	t.Setenv("SB_TEST_INT", "-3")
	if got := EnvInt32("SB_TEST_INT", 10); got != 10 {
		t.Fatalf("negative value must fall back to default, got %d", got)
	}
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("SB_TEST_DUR", "90s")
	if got := EnvDuration("SB_TEST_DUR", time.Minute); got != 90*time.Second {
		t.Fatalf("EnvDuration = %v, want 90s", got)
	}
	t.Setenv("SB_TEST_DUR", "0s")
	if got := EnvDuration("SB_TEST_DUR", time.Minute); got != time.Minute {
		t.Fatalf("non-positive value must fall back to default, got %v", got)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"SB_LOG_LEVEL", "SB_DATABASE_URL", "SB_DB_MAX_CONNS", "SB_DB_MIN_CONNS",
		"SB_DB_SCHEMA", "SB_SNAPSHOT_PATH", "SB_CLEANUP_INTERVAL",
	} {
		t.Setenv(key, "")
	}
	cfg := LoadConfig()

	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.DBSchema != "sb" {
		t.Fatalf("DBSchema = %q, want sb", cfg.DBSchema)
	}
	if cfg.DBMaxConns != 10 || cfg.DBMinConns != 0 {
		t.Fatalf("pool sizing = %d/%d, want 10/0", cfg.DBMaxConns, cfg.DBMinConns)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Fatalf("CleanupInterval = %v, want 5m", cfg.CleanupInterval)
	}
}
