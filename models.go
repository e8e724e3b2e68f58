package authcard

import (
	"strings"
	"time"
)

// ViewMode selects what the card currently mounts.
type ViewMode string

const (
	ModeSignIn              ViewMode = "sign-in"
	ModeRegister            ViewMode = "register"
	ModeRegistrationSuccess ViewMode = "post-registration-success"
)

// ParseViewMode returns the view mode for s, accepting the short aliases
// used by the card tabs.
func ParseViewMode(s string) (ViewMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ModeSignIn), "login", "signin":
		return ModeSignIn, true
	case string(ModeRegister), "signup", "sign-up":
		return ModeRegister, true
	case string(ModeRegistrationSuccess), "success":
		return ModeRegistrationSuccess, true
	}
	return "", false
}

// Direction picks the entry/exit animation offset: +1 entering register,
// -1 entering sign in.
type Direction int

const (
	DirectionForward  Direction = 1
	DirectionBackward Direction = -1
)

// Offset is the horizontal offset in pixels the incoming panel enters from.
func (d Direction) Offset() int {
	if d > 0 {
		return 60
	}
	return -60
}

// Credentials are the sign in form values.
type Credentials struct {
	Email    string
	Password string
}

// RegistrationProfile are the registration form values.
type RegistrationProfile struct {
	Name     string
	Email    string
	Password string
}

// FieldValues carries typed, not yet submitted, input values. Passwords
// are not part of it.
type FieldValues struct {
	Name  string
	Email string
}

// SignUpOptions carries the extra attributes attached to a new account.
type SignUpOptions struct {
	DisplayName string
}

// User is the subset of the backend user the card needs.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the backend session handed back after sign in.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthResult is returned by SignIn and SignUp.
type AuthResult struct {
	User    *User    `json:"user"`
	Session *Session `json:"session,omitempty"`
}

// ProfileRecord is the profile row inserted after sign up.
type ProfileRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// NewProfileRecord builds the record for a new account, normalizing the email.
func NewProfileRecord(id, name, email string, now time.Time) ProfileRecord {
	return ProfileRecord{
		ID:        id,
		Name:      strings.TrimSpace(name),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		CreatedAt: now.UTC(),
	}
}

// RegisteredUser is what the registration flow hands to the card on success.
type RegisteredUser struct {
	Name  string
	Email string
}
