package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JFRP-89/ScenarioBuilder-sub000/cmd/internal/auth/session"
	"github.com/JFRP-89/ScenarioBuilder-sub000/cmd/security/password"
	"github.com/JFRP-89/ScenarioBuilder-sub000/cmd/security/token"
)

// Service drives the authentication flows on top of a session store and a
// credential store. It is safe for concurrent use as long as its dependencies
// are.
type Service struct {
	sessions session.Store
	creds    CredentialStore
	clock    session.Clock
	log      *slog.Logger
	pw       password.Config
}

// NewService wires the auth flows. A nil clock falls back to the system clock
// and a nil logger falls back to slog.Default.
func NewService(sessions session.Store, creds CredentialStore, clock session.Clock, log *slog.Logger, pw password.Config) *Service {
	if clock == nil {
		clock = session.SystemClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		sessions: sessions,
		creds:    creds,
		clock:    clock,
		log:      log,
		pw:       pw,
	}
}

// Authenticate verifies a username/password pair and, on success, issues a
// fresh session. Unknown users, wrong passwords, and malformed input all get
// the same denial message. Malformed input is rejected before the credential
// store is consulted and does not count as a failed attempt.
func (s *Service) Authenticate(ctx context.Context, username, passwd string) (Result, error) {
	uname := strings.TrimSpace(username)
	if !validUsername(uname) || !plausiblePassword(passwd, s.pw) {
		s.log.Debug("auth.login.malformed")
		return denied(msgInvalidCredentials), nil
	}
	norm := normalizeUsername(uname)

	locked, until, err := s.creds.IsLocked(ctx, norm)
	if err != nil {
		return Result{}, err
	}
	if locked {
		s.log.Info("auth.login.locked", "owner", norm)
		return denied(lockedMessage(until)), nil
	}

	ok, err := s.creds.VerifyCredentials(ctx, norm, passwd)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		tripped, _, err := s.creds.RecordFailedAttempt(ctx, norm)
		if err != nil {
			return Result{}, err
		}
		if tripped {
			s.log.Info("auth.lockout.tripped", "owner", norm)
		}
		s.log.Debug("auth.login.failed", "owner", norm)
		return denied(msgInvalidCredentials), nil
	}

	if err := s.creds.ClearFailedAttempts(ctx, norm); err != nil {
		return Result{}, err
	}

	rec, err := s.sessions.Create(ctx, norm)
	if err != nil {
		return Result{}, err
	}
	s.log.Info("auth.login.ok", "owner", norm, "sid", token.MaskHex(rec.ID))

	return Result{
		OK:        true,
		Message:   msgSignedIn,
		OwnerID:   norm,
		SessionID: rec.ID,
		CSRFToken: rec.CSRFToken,
	}, nil
}

// Logout invalidates the presented session. It is idempotent: unknown or
// already-dead sessions still report success, since the caller's goal (not
// being signed in) is met either way.
func (s *Service) Logout(ctx context.Context, sessionID string) (Result, error) {
	removed, err := s.sessions.Invalidate(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	if removed {
		s.log.Info("auth.logout", "sid", token.MaskHex(sessionID))
	}
	return Result{OK: true, Message: msgSignedOut}, nil
}

// GetProfile resolves the session and returns the owner's profile. The
// session lookup counts as activity and pushes the idle deadline forward.
func (s *Service) GetProfile(ctx context.Context, sessionID string) (Result, error) {
	rec, live, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	if !live {
		return denied(msgNotSignedIn), nil
	}

	prof, found, err := s.creds.GetUserProfile(ctx, rec.OwnerID)
	if err != nil {
		return Result{}, err
	}
	if !found {
		// Account removed while the session was live. Deny without detail.
		return denied(msgNotSignedIn), nil
	}

	return Result{OK: true, OwnerID: rec.OwnerID, Profile: &prof}, nil
}

// Reauth re-verifies the session owner's password to open the step-up window
// for sensitive operations. Success marks the session re-authenticated and
// rotates its identifier; the caller must adopt the returned tokens. Failures
// feed the same lockout bookkeeping as Authenticate.
func (s *Service) Reauth(ctx context.Context, sessionID, passwd string) (Result, error) {
	rec, live, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	if !live {
		return denied(msgNotSignedIn), nil
	}
	owner := rec.OwnerID

	if !plausiblePassword(passwd, s.pw) {
		return denied(msgInvalidCredentials), nil
	}

	locked, until, err := s.creds.IsLocked(ctx, owner)
	if err != nil {
		return Result{}, err
	}
	if locked {
		return denied(lockedMessage(until)), nil
	}

	ok, err := s.creds.VerifyCredentials(ctx, owner, passwd)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		if _, _, err := s.creds.RecordFailedAttempt(ctx, owner); err != nil {
			return Result{}, err
		}
		s.log.Debug("auth.reauth.failed", "owner", owner)
		return denied(msgInvalidCredentials), nil
	}

	if err := s.creds.ClearFailedAttempts(ctx, owner); err != nil {
		return Result{}, err
	}

	marked, err := s.sessions.MarkReauth(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	if !marked {
		return denied(msgNotSignedIn), nil
	}

	rotated, ok2, err := s.sessions.Rotate(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	if !ok2 {
		return denied(msgNotSignedIn), nil
	}
	s.log.Info("auth.reauth.ok", "owner", owner, "sid", token.MaskHex(rotated.ID))

	return Result{
		OK:        true,
		Message:   msgReauthConfirmed,
		OwnerID:   owner,
		SessionID: rotated.ID,
		CSRFToken: rotated.CSRFToken,
	}, nil
}

// UpdateProfile stores new profile fields and optionally changes the
// password. A password change revokes every session the owner holds and
// issues a fresh one, so stolen cookies die with the old password.
func (s *Service) UpdateProfile(ctx context.Context, sessionID, name, email, newPassword, confirmPassword string) (Result, error) {
	rec, live, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	if !live {
		return denied(msgNotSignedIn), nil
	}
	owner := rec.OwnerID

	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	changingPassword := newPassword != "" || confirmPassword != ""

	var errs []string
	if !validDisplayName(name) {
		errs = append(errs, errNameLength)
	}
	if email != "" && !validEmail(email) {
		errs = append(errs, errEmailFormat)
	}
	if changingPassword {
		if newPassword == "" || confirmPassword == "" {
			errs = append(errs, errPasswordConfirm)
		} else if newPassword != confirmPassword {
			errs = append(errs, errPasswordMatch)
		} else if msg, ok := passwordPolicyMessage(newPassword, s.pw); !ok {
			errs = append(errs, msg)
		}
	}
	if len(errs) > 0 {
		return invalid(errs), nil
	}

	updated, err := s.creds.UpdateUserProfile(ctx, owner, name, email)
	if err != nil {
		return Result{}, err
	}
	if !updated {
		return denied(msgNotSignedIn), nil
	}

	if !changingPassword {
		s.log.Info("auth.profile.updated", "owner", owner)
		return Result{OK: true, Message: msgProfileUpdated, OwnerID: owner}, nil
	}

	changed, err := s.creds.ChangePassword(ctx, owner, newPassword)
	if err != nil {
		return Result{}, err
	}
	if !changed {
		return denied(msgNotSignedIn), nil
	}

	revoked, err := s.sessions.RevokeAll(ctx, owner)
	if err != nil {
		return Result{}, err
	}
	fresh, err := s.sessions.Create(ctx, owner)
	if err != nil {
		return Result{}, err
	}
	s.log.Info("auth.password.changed", "owner", owner, "revoked", revoked, "sid", token.MaskHex(fresh.ID))

	return Result{
		OK:        true,
		Message:   msgProfileAndPassword,
		OwnerID:   owner,
		SessionID: fresh.ID,
		CSRFToken: fresh.CSRFToken,
	}, nil
}

// Register creates a new account and signs it in. All validation failures are
// collected and returned together rather than one at a time. Reserved
// usernames get the same "taken" message as a real collision.
func (s *Service) Register(ctx context.Context, username, passwd, confirmPassword, name, email string) (Result, error) {
	uname := strings.TrimSpace(username)
	norm := normalizeUsername(uname)
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	var errs []string
	if !validUsername(uname) {
		errs = append(errs, errUsernameFormat)
	} else if isReservedUsername(norm) {
		errs = append(errs, msgUsernameTaken)
	}
	if msg, ok := passwordPolicyMessage(passwd, s.pw); !ok {
		errs = append(errs, msg)
	}
	if passwd != confirmPassword {
		errs = append(errs, errPasswordMatch)
	}
	if !validDisplayName(name) {
		errs = append(errs, errNameLength)
	}
	if email != "" && !validEmail(email) {
		errs = append(errs, errEmailFormat)
	}
	if len(errs) > 0 {
		return invalid(errs), nil
	}

	created, err := s.creds.CreateUser(ctx, norm, passwd, name, email)
	if err != nil {
		return Result{}, err
	}
	if !created {
		return invalid([]string{msgUsernameTaken}), nil
	}

	rec, err := s.sessions.Create(ctx, norm)
	if err != nil {
		return Result{}, err
	}
	s.log.Info("auth.register.ok", "owner", norm, "sid", token.MaskHex(rec.ID))

	return Result{
		OK:        true,
		Message:   msgRegistered,
		OwnerID:   norm,
		SessionID: rec.ID,
		CSRFToken: rec.CSRFToken,
	}, nil
}

// CheckUsernameAvailable reports whether a username can be registered.
// Malformed, reserved, and taken names all get the same answer so the probe
// reveals nothing beyond availability.
func (s *Service) CheckUsernameAvailable(ctx context.Context, username string) (Result, error) {
	uname := strings.TrimSpace(username)
	if !validUsername(uname) {
		return denied(msgUsernameTaken), nil
	}
	norm := normalizeUsername(uname)
	if isReservedUsername(norm) {
		return denied(msgUsernameTaken), nil
	}

	taken, err := s.creds.UserExists(ctx, norm)
	if err != nil {
		return Result{}, err
	}
	if taken {
		return denied(msgUsernameTaken), nil
	}
	return Result{OK: true, Message: msgUsernameFree}, nil
}

// RecentlyReauthed reports whether the session confirmed its owner's password
// within the step-up window. Gate destructive operations on this.
func (s *Service) RecentlyReauthed(ctx context.Context, sessionID string) (bool, error) {
	return s.sessions.RecentlyReauthed(ctx, sessionID)
}

// plausiblePassword bounds the candidate before any hashing work. It is a
// shape check, not the registration policy: existing accounts may hold
// passwords from older, looser policies.
func plausiblePassword(passwd string, cfg password.Config) bool {
	if passwd == "" {
		return false
	}
	return utf8.RuneCountInString(passwd) <= cfg.Policy.MaxLength
}

// passwordPolicyMessage maps a policy violation to its user-facing message.
func passwordPolicyMessage(passwd string, cfg password.Config) (string, bool) {
	switch err := cfg.Validate(passwd); {
	case err == nil:
		return "", true
	case errors.Is(err, password.ErrPasswordTooShort):
		return "Password is too short.", false
	case errors.Is(err, password.ErrPasswordTooLong):
		return "Password is too long.", false
	case errors.Is(err, password.ErrWeakPassword):
		return "Password is too easy to guess.", false
	default:
		return "Password is not acceptable.", false
	}
}

func lockedMessage(until *time.Time) string {
	if until == nil {
		return msgLockedGeneric
	}
	return "Account temporarily locked until " + until.UTC().Format(time.RFC1123) + "."
}
