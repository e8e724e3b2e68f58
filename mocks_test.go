package authcard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockBackend implements Backend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	args := m.Called(ctx, email, password)
	res, _ := args.Get(0).(*AuthResult)
	return res, args.Error(1)
}

func (m *MockBackend) SignUp(ctx context.Context, email, password string, opts SignUpOptions) (*AuthResult, error) {
	args := m.Called(ctx, email, password, opts)
	res, _ := args.Get(0).(*AuthResult)
	return res, args.Error(1)
}

func (m *MockBackend) InsertProfile(ctx context.Context, record ProfileRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// manualScheduler holds continuations until Fire is called.
type manualScheduler struct {
	mu      sync.Mutex
	pending []scheduledFunc
}

type scheduledFunc struct {
	delay time.Duration
	fn    func()
}

func (s *manualScheduler) AfterFunc(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, scheduledFunc{delay: d, fn: fn})
}

// Fire runs every continuation pending at call time and returns how many ran.
func (s *manualScheduler) Fire() int {
	s.mu.Lock()
	due := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, item := range due {
		item.fn()
	}
	return len(due)
}

func (s *manualScheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, 0, len(s.pending))
	for _, item := range s.pending {
		out = append(out, item.delay)
	}
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSink struct {
	mu     sync.Mutex
	events []ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Count(eventType ActivityEventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

func (s *recordingSink) Last(eventType ActivityEventType) (ActivityEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].EventType == eventType {
			return s.events[i], true
		}
	}
	return ActivityEvent{}, false
}

type navigation struct {
	pageID      string
	destination string
}

type recordingNavigator struct {
	mu    sync.Mutex
	calls []navigation
}

func (n *recordingNavigator) Navigate(pageID, destination string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, navigation{pageID, destination})
}

func (n *recordingNavigator) Calls() []navigation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]navigation(nil), n.calls...)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// fakeStore is an in memory SnapshotStore with the revision check.
type fakeStore struct {
	mu      sync.Mutex
	snaps   map[string]Snapshot
	saveErr error
	saves   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{snaps: map[string]Snapshot{}}
}

func (s *fakeStore) Save(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	if current, ok := s.snaps[snap.ID]; ok && current.Revision >= snap.Revision {
		return ErrStaleSnapshot
	}
	s.snaps[snap.ID] = snap
	return nil
}

func (s *fakeStore) Load(_ context.Context, id string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[id]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return &snap, nil
}

func (s *fakeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, id)
	return nil
}

func (s *fakeStore) Get(id string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[id]
	return snap, ok
}

type testHarness struct {
	backend   *MockBackend
	scheduler *manualScheduler
	clock     *testClock
	sink      *recordingSink
	navigator *recordingNavigator
}

func newHarness() *testHarness {
	return &testHarness{
		backend:   &MockBackend{},
		scheduler: &manualScheduler{},
		clock:     newTestClock(),
		sink:      &recordingSink{},
		navigator: &recordingNavigator{},
	}
}

func (h *testHarness) deps() PageDeps {
	return PageDeps{
		Backend:     h.backend,
		Scheduler:   h.scheduler,
		Timings:     DefaultTimings(),
		Destination: "/app",
		Navigator:   h.navigator,
		Logger:      nopLogger{},
		Activity:    h.sink,
		Clock:       h.clock.Now,
	}
}

func (h *testHarness) page(t *testing.T) *Page {
	t.Helper()
	page, err := NewPage("page-1", h.deps())
	if err != nil {
		t.Fatalf("new page: %v", err)
	}
	return page
}

func signedIn(email string) *AuthResult {
	return &AuthResult{
		User:    &User{ID: "user-1", Email: email},
		Session: &Session{AccessToken: "token-1"},
	}
}
