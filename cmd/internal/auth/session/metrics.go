package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Backend label values used by both stores.
const (
	backendMemory   = "memory"
	backendPostgres = "postgres"
)

var (
	sessionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sb_sessions_created_total",
		Help: "Sessions issued, by backend.",
	}, []string{"backend"})

	sessionsRotated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sb_sessions_rotated_total",
		Help: "Session identifier rotations, by backend.",
	}, []string{"backend"})

	sessionsRevoked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sb_sessions_revoked_total",
		Help: "Sessions revoked by logout or bulk revocation, by backend.",
	}, []string{"backend"})

	sessionsCleaned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sb_sessions_cleanup_removed_total",
		Help: "Sessions physically removed by cleanup sweeps, by backend.",
	}, []string{"backend"})
)
