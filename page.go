package authcard

import (
	"context"
	"errors"
	"strings"
	"time"
)

// flowEnv is what every component of one page shares.
type flowEnv struct {
	loop      *EventLoop
	backend   Backend
	scheduler Scheduler
	timings   Timings
	logger    Logger
	activity  ActivitySink
	now       func() time.Time
	pageID    string
}

// PageDeps are the collaborators of a Page.
type PageDeps struct {
	Backend     Backend
	Scheduler   Scheduler
	Timings     Timings
	Destination string
	Navigator   Navigator
	Logger      Logger
	Activity    ActivitySink
	Clock       func() time.Time
}

// Snapshot is the persisted part of a page. It never carries credentials,
// profile data or feedback.
type Snapshot struct {
	ID            string    `json:"id"`
	Revision      int64     `json:"revision"`
	Mode          ViewMode  `json:"mode"`
	Direction     Direction `json:"direction"`
	Exiting       bool      `json:"exiting"`
	ExitStartedAt time.Time `json:"exit_started_at,omitempty"`
	Navigated     bool      `json:"navigated"`
}

// SnapshotStore persists page snapshots. Save must reject a snapshot whose
// revision is not newer than the stored one with ErrStaleSnapshot.
type SnapshotStore interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context, id string) (*Snapshot, error)
	Delete(ctx context.Context, id string) error
}

// Page is one visitor's instance of the shell and the card.
type Page struct {
	id  string
	env *flowEnv

	shell *Shell
	card  *Card

	revision int64
	failed   bool
	failure  string
	lastSeen time.Time

	observer func(Snapshot)
}

// NewPage builds a page in sign in mode.
func NewPage(id string, deps PageDeps) (*Page, error) {
	if deps.Backend == nil {
		return nil, errors.New("authcard: page requires a backend")
	}
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("authcard: page requires an id")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	scheduler := deps.Scheduler
	if scheduler == nil {
		scheduler = TimerScheduler{}
	}

	env := &flowEnv{
		loop:      &EventLoop{},
		backend:   deps.Backend,
		scheduler: scheduler,
		timings:   deps.Timings.withDefaults(),
		logger:    normalizeLogger(deps.Logger),
		activity:  normalizeActivitySink(deps.Activity),
		now:       clock,
		pageID:    id,
	}

	p := &Page{
		id:       id,
		env:      env,
		lastSeen: clock(),
	}
	p.shell = newShell(env, deps.Destination, deps.Navigator)
	p.card = newCard(env, p.shell.enter)
	env.loop.settled = p.settled

	return p, nil
}

// ID returns the page id.
func (p *Page) ID() string {
	return p.id
}

// Card returns the view state machine.
func (p *Page) Card() *Card {
	return p.card
}

// Shell returns the exit shell.
func (p *Page) Shell() *Shell {
	return p.shell
}

// Do runs fn on the page loop.
func (p *Page) Do(fn func()) {
	p.env.loop.Do(fn)
}

// Touch marks the page as used.
func (p *Page) Touch() {
	p.env.loop.Read(func() { p.lastSeen = p.env.now() })
}

// LastSeen returns the last time the page handled a request.
func (p *Page) LastSeen() time.Time {
	var t time.Time
	p.env.loop.Read(func() { t = p.lastSeen })
	return t
}

// SubmitLogin forwards creds to the mounted login flow. It returns nil when
// sign in is not the current mode.
func (p *Page) SubmitLogin(ctx context.Context, creds Credentials) *Session {
	flow := p.card.Login()
	if flow == nil {
		return nil
	}
	return flow.Submit(ctx, creds)
}

// SubmitRegistration forwards the profile to the mounted registration
// flow.
func (p *Page) SubmitRegistration(ctx context.Context, profile RegistrationProfile) (*RegisteredUser, error) {
	flow := p.card.Register()
	if flow == nil {
		return nil, ErrInvalidTransition
	}
	return flow.Submit(ctx, profile)
}

// EditFields stores values typed into the mounted form.
func (p *Page) EditFields(values FieldValues) {
	if flow := p.card.Login(); flow != nil {
		flow.Edit(values)
		return
	}
	if flow := p.card.Register(); flow != nil {
		flow.Edit(values)
	}
}

// ToggleVisibility flips the password visibility of the mounted flow.
func (p *Page) ToggleVisibility() {
	if flow := p.card.Login(); flow != nil {
		flow.ToggleVisibility()
		return
	}
	if flow := p.card.Register(); flow != nil {
		flow.ToggleVisibility()
	}
}

// Fail marks the page as failed. A failed page only renders the fallback.
func (p *Page) Fail(reason string) {
	p.env.loop.Do(func() {
		if p.failed {
			return
		}
		p.failed = true
		p.failure = reason
		p.env.logger.Error("page failed", "page", p.id, "reason", reason)
		p.env.record(ActivityEventPageFailed, "", nil)
	})
}

// Failed reports whether the page rendered the fallback.
func (p *Page) Failed() bool {
	var v bool
	p.env.loop.Read(func() { v = p.failed })
	return v
}

// Snapshot returns the persisted view of the page.
func (p *Page) Snapshot() Snapshot {
	var s Snapshot
	p.env.loop.Read(func() { s = p.snapshot() })
	return s
}

func (p *Page) snapshot() Snapshot {
	return Snapshot{
		ID:            p.id,
		Revision:      p.revision,
		Mode:          p.card.mode,
		Direction:     p.card.direction,
		Exiting:       p.shell.exiting,
		ExitStartedAt: p.shell.exitStartedAt,
		Navigated:     p.shell.navigated,
	}
}

// Restore applies a snapshot to a fresh page.
func (p *Page) Restore(snap Snapshot) {
	p.env.loop.Do(func() {
		p.revision = snap.Revision
		p.card.restore(snap.Mode, snap.Direction)
		p.shell.restore(snap.Exiting, snap.ExitStartedAt, snap.Navigated)
	})
}

// observe installs the hook fed with a snapshot after every event.
func (p *Page) observe(fn func(Snapshot)) {
	p.env.loop.Read(func() { p.observer = fn })
}

func (p *Page) settled() func() {
	if p.observer == nil {
		return nil
	}
	p.revision++
	snap := p.snapshot()
	observer := p.observer
	return func() { observer(snap) }
}
