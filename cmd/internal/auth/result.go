package auth

// Result is the structured outcome every Service method hands back to the
// HTTP boundary. The transport layer maps OK to status codes and applies the
// returned tokens to cookies; this package never touches transport concerns.
type Result struct {
	OK        bool
	Message   string
	OwnerID   string
	SessionID string
	CSRFToken string
	Profile   *Profile
	Errors    []string
}

// User-facing messages. Denials share one shape per class so that failure
// reasons cannot be told apart from the outside.
const (
	msgInvalidCredentials = "Invalid username or password."
	msgLockedGeneric      = "Account temporarily locked. Try again later."
	msgNotSignedIn        = "Not signed in."
	msgSignedIn           = "Signed in."
	msgSignedOut          = "Signed out."
	msgReauthConfirmed    = "Identity confirmed."
	msgRegistered         = "Account created."
	msgUsernameTaken      = "That username is not available."
	msgUsernameFree       = "Username is available."
	msgProfileUpdated     = "Profile updated."
	msgProfileAndPassword = "Profile and password updated."
	msgFixErrors          = "Please correct the errors below."
)

func denied(msg string) Result {
	return Result{OK: false, Message: msg}
}

func invalid(errs []string) Result {
	return Result{OK: false, Message: msgFixErrors, Errors: errs}
}
