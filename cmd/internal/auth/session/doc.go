// Package session implements ScenarioBuilder's server-side session authority.
//
// It provides opaque cookie-credential sessions with idle and absolute expiry,
// CSRF-token binding (double-submit pattern), atomic identifier rotation,
// re-authentication windows, and per-owner bulk revocation.
//
// Two conformant backends are provided: an in-process mutex-guarded map with
// optional best-effort disk snapshots, and a PostgreSQL store with soft
// revocation (tombstone column) and throttled last-seen write-back.
//
// Transport (HTTP/cookie) integration is intentionally out of scope here.
package session
