package authcard

import (
	"context"
	"fmt"
	"time"
)

// Logger is the minimal logging surface used across the package.
// Args are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Authenticator is the backend collaborator that verifies credentials
// and creates accounts.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*AuthResult, error)
	SignUp(ctx context.Context, email, password string, opts SignUpOptions) (*AuthResult, error)
}

// ProfileStore persists the profile record created after sign up.
type ProfileStore interface {
	InsertProfile(ctx context.Context, record ProfileRecord) error
}

// Backend bundles both collaborator contracts.
type Backend interface {
	Authenticator
	ProfileStore
}

// Scheduler runs fn once after d. Scheduled continuations are never
// cancelled.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

// Navigator is notified when the shell performs its hard redirect.
type Navigator interface {
	Navigate(pageID, destination string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(pageID, destination string)

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(pageID, destination string) {
	if f != nil {
		f(pageID, destination)
	}
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) { d.print("DBG", msg, args) }
func (d defLogger) Info(msg string, args ...any)  { d.print("INF", msg, args) }
func (d defLogger) Warn(msg string, args ...any)  { d.print("WRN", msg, args) }
func (d defLogger) Error(msg string, args ...any) { d.print("ERR", msg, args) }

func (d defLogger) print(level, msg string, args []any) {
	line := "[" + level + "] AUTHCARD " + msg
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			line += fmt.Sprintf(" %v=%v", args[i], args[i+1])
		} else {
			line += fmt.Sprintf(" %v", args[i])
		}
	}
	fmt.Println(line)
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
