package authcard

import (
	"time"
)

// Shell owns the page exit: a one-way exiting flag, the overlay and the
// delayed hard redirect.
type Shell struct {
	env *flowEnv

	destination string
	navigator   Navigator

	exiting       bool
	exitStartedAt time.Time
	navigated     bool
}

func newShell(env *flowEnv, destination string, navigator Navigator) *Shell {
	return &Shell{
		env:         env,
		destination: destination,
		navigator:   navigator,
	}
}

// enter starts the exit sequence. Only the first call has any effect.
func (s *Shell) enter() {
	if s.exiting {
		return
	}
	s.exiting = true
	s.exitStartedAt = s.env.now()
	s.env.record(ActivityEventShellExit, "", map[string]any{"destination": s.destination})
	s.env.schedule(s.env.timings.RedirectDelay, s.navigate)
}

func (s *Shell) navigate() {
	if s.navigated {
		return
	}
	s.navigated = true
	s.env.record(ActivityEventShellNavigate, "", map[string]any{"destination": s.destination})
	if s.navigator != nil {
		s.navigator.Navigate(s.env.pageID, s.destination)
	}
}

// restore resumes an exit sequence read from a snapshot. A redirect whose
// deadline already passed is applied immediately.
func (s *Shell) restore(exiting bool, startedAt time.Time, navigated bool) {
	if !exiting {
		return
	}
	s.exiting = true
	s.exitStartedAt = startedAt
	if navigated {
		s.navigated = true
		return
	}

	remaining := s.remaining(s.env.now())
	if remaining <= 0 {
		s.navigate()
		return
	}
	s.env.schedule(remaining, s.navigate)
}

func (s *Shell) remaining(now time.Time) time.Duration {
	if !s.exiting {
		return 0
	}
	left := s.env.timings.RedirectDelay - now.Sub(s.exitStartedAt)
	if left < 0 {
		return 0
	}
	return left
}

// Exiting reports whether the exit sequence has started.
func (s *Shell) Exiting() bool {
	var v bool
	s.env.loop.Read(func() { v = s.exiting })
	return v
}

// Navigated reports whether the hard redirect has been performed.
func (s *Shell) Navigated() bool {
	var v bool
	s.env.loop.Read(func() { v = s.navigated })
	return v
}

// Destination is the redirect target.
func (s *Shell) Destination() string {
	return s.destination
}
