package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	LogLevel string

	// DatabaseURL selects the backend: when set, sessions and credentials
	// live in Postgres; when empty, everything stays in process.
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	DBSchema    string

	// SnapshotPath enables best-effort disk persistence for the in-memory
	// session store. Ignored when DatabaseURL is set.
	SnapshotPath string

	// CleanupInterval is the period of the background janitor that removes
	// expired rows and aged tombstones.
	CleanupInterval time.Duration
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		LogLevel: EnvString("SB_LOG_LEVEL", "info"),

		DatabaseURL: EnvString("SB_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("SB_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("SB_DB_MIN_CONNS", 0),
		DBSchema:    EnvString("SB_DB_SCHEMA", "sb"),

		SnapshotPath: EnvString("SB_SNAPSHOT_PATH", ""),

		CleanupInterval: EnvDuration("SB_CLEANUP_INTERVAL", 5*time.Minute),
	}
}
