// Package password provides password hashing and verification for ScenarioBuilder.
//
// It implements Argon2id hashing with a PHC-style encoded string format:
// - Configurable Argon2id cost parameters (via environment variables)
// - Password policy validation (length bounds, minimal weak-pattern rejection)
// - Strict hash decoding and verification with anti-DoS bounds
//
// Security notes:
// - Hash strings are treated as untrusted input during Verify and are validated accordingly.
// - Verification refuses hashes with parameters that exceed reasonable bounds.
package password
