// Package auth orchestrates ScenarioBuilder's login, logout, registration,
// re-authentication, and profile-update flows.
//
// Service sits between the HTTP layer (out of scope) and two capabilities:
// the session.Store that owns session lifecycle, and the CredentialStore that
// owns passwords, lockout counters, and profile fields. Every public method
// returns a structured Result; expected conditions (bad credentials, expired
// sessions, validation failures) never surface as Go errors. Only storage
// unavailability propagates as an error, and it always fails closed.
//
// Denial messages are deliberately indistinguishable across unknown user,
// wrong password, and malformed input so the account namespace cannot be
// enumerated.
package auth
