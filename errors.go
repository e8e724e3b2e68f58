package authcard

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTransition is returned when the card is asked to move between
// two view modes that are not connected in the transition table.
var ErrInvalidTransition = errors.New("invalid view mode transition")

// ErrMissingUserID is returned when sign up succeeds without an identifier.
var ErrMissingUserID = errors.New("sign up returned no user id")

// ErrPageNotFound is returned when a page id is unknown to the registry.
var ErrPageNotFound = errors.New("page not found")

// ErrSnapshotNotFound is returned by snapshot stores for unknown ids.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrStaleSnapshot is returned when a snapshot revision is older than the stored one.
var ErrStaleSnapshot = errors.New("stale snapshot revision")

const (
	invalidCredentialsMessage = "Invalid login credentials"

	friendlyInvalidCredentials = "Invalid email or password. Please try again."
	friendlyAlreadyRegistered  = "This email is already registered. Try signing in instead."
	defaultSignInFailure       = "Sign in failed. Please try again."
	defaultSignUpFailure       = "Registration failed. Please try again."
	missingUserIDMessage       = "User creation failed. Please try again."
)

// AuthError is an error reported by the authentication backend.
type AuthError struct {
	Status  int
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("auth request failed with status %d", e.Status)
	}
	return e.Message
}

// ValidationError is a local, synchronous validation failure. Message is
// user facing.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsInvalidCredentials reports whether err carries the backend's invalid
// credentials sentinel message.
func IsInvalidCredentials(err error) bool {
	if err == nil {
		return false
	}
	return backendMessage(err) == invalidCredentialsMessage
}

// IsAlreadyRegistered reports whether err says the email has an account.
func IsAlreadyRegistered(err error) bool {
	if err == nil {
		return false
	}
	msg := backendMessage(err)
	return strings.Contains(msg, "already registered") ||
		strings.Contains(msg, "already been registered")
}

// SignInErrorMessage maps a sign in failure to the message shown to users.
func SignInErrorMessage(err error) string {
	if IsInvalidCredentials(err) {
		return friendlyInvalidCredentials
	}
	if msg := backendMessage(err); msg != "" {
		return msg
	}
	return defaultSignInFailure
}

// SignUpErrorMessage maps a sign up failure to the message shown to users.
func SignUpErrorMessage(err error) string {
	if errors.Is(err, ErrMissingUserID) {
		return missingUserIDMessage
	}
	if IsAlreadyRegistered(err) {
		return friendlyAlreadyRegistered
	}
	if msg := backendMessage(err); msg != "" {
		return msg
	}
	return defaultSignUpFailure
}

func backendMessage(err error) string {
	if err == nil {
		return ""
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Message
	}
	return err.Error()
}

const (
	fallbackConfigHint = "The authentication backend is not configured. Please check your deployment settings."
	fallbackUnexpected = "An unexpected error occurred."
)

// FallbackMessage is the text shown by the fallback view for a render
// failure. Failures that point at backend setup get a configuration hint.
func FallbackMessage(reason string) string {
	lower := strings.ToLower(reason)
	switch {
	case strings.TrimSpace(reason) == "":
		return fallbackUnexpected
	case strings.Contains(lower, "backend"),
		strings.Contains(lower, "supabase"),
		strings.Contains(lower, "invalid url"):
		return fallbackConfigHint
	}
	return reason
}
