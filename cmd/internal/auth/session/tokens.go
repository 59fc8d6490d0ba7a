package session

import "github.com/JFRP-89/ScenarioBuilder-sub000/cmd/security/token"

// sessionTokenBytes sizes session IDs and CSRF tokens at 256 bits of entropy.
const sessionTokenBytes = 32

// newSessionTokens returns a fresh (sessionID, csrfToken) pair. The two values
// always change together: on creation and on rotation.
func newSessionTokens() (sessionID string, csrfToken string, err error) {
	sessionID, err = token.NewOpaque(sessionTokenBytes)
	if err != nil {
		return "", "", err
	}
	csrfToken, err = token.NewOpaque(sessionTokenBytes)
	if err != nil {
		return "", "", err
	}
	return sessionID, csrfToken, nil
}
