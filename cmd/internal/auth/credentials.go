package auth

import (
	"context"
	"time"
)

// Profile is the subset of account data the auth flows expose.
type Profile struct {
	Username string
	Name     string
	Email    string
}

// CredentialStore is the external credential/profile capability consumed by
// Service. Implementations own password hashing and the lockout policy's
// backing store; Service only drives the contract.
//
// All usernames passed in are already normalized (trimmed, lower-cased).
// Errors mean storage failure only; "no such user" is reported in-band.
type CredentialStore interface {
	// VerifyCredentials reports whether password matches the stored hash.
	// Unknown users verify as false, not as an error.
	VerifyCredentials(ctx context.Context, username, password string) (bool, error)

	// IsLocked reports whether the account is currently locked out and, when
	// known, until when.
	IsLocked(ctx context.Context, username string) (bool, *time.Time, error)

	// RecordFailedAttempt bumps the failed-attempt counter and reports whether
	// that attempt tripped the lockout, with the lockout deadline.
	RecordFailedAttempt(ctx context.Context, username string) (bool, *time.Time, error)

	// ClearFailedAttempts resets the counter and any active lockout.
	ClearFailedAttempts(ctx context.Context, username string) error

	// GetUserProfile returns the account's profile fields.
	GetUserProfile(ctx context.Context, username string) (Profile, bool, error)

	// UpdateUserProfile stores new name/email values. False if the user is unknown.
	UpdateUserProfile(ctx context.Context, username, name, email string) (bool, error)

	// ChangePassword replaces the stored password hash. False if the user is unknown.
	ChangePassword(ctx context.Context, username, newPassword string) (bool, error)

	// CreateUser registers a new account. False on duplicate username.
	CreateUser(ctx context.Context, username, password, name, email string) (bool, error)

	// UserExists reports whether the username is taken.
	UserExists(ctx context.Context, username string) (bool, error)
}
