// Package token provides opaque-token primitives for ScenarioBuilder.
//
// It is the single source of truth for session-identifier generation and
// hashing behavior.
//
// Design goals:
// - Session identifiers and CSRF tokens carry at least 256 bits of entropy.
// - Default dev/back-compat mode: SHA-256(token) when no HMAC key is configured.
// - Production-enforced mode: HMAC-SHA256(token, key) when policy requires it.
// - Stable 64-char hex output for storage and constant-time comparison.
//
// Environment:
// - SB_TOKEN_HMAC_KEY: when set, enables HMAC mode.
package token
