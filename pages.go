package authcard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultPageTTL is how long an idle page is kept.
	DefaultPageTTL = 30 * time.Minute

	snapshotTimeout = 2 * time.Second
)

// Pages is the registry of live pages.
type Pages struct {
	mu    sync.Mutex
	pages map[string]*Page

	deps   PageDeps
	store  SnapshotStore
	ttl    time.Duration
	logger Logger
	now    func() time.Time
	newID  func() string
}

// PagesOption configures a registry.
type PagesOption func(*Pages)

// WithSnapshotStore persists every page event and restores unknown ids.
func WithSnapshotStore(store SnapshotStore) PagesOption {
	return func(p *Pages) {
		p.store = store
	}
}

// WithPageTTL sets the idle eviction delay.
func WithPageTTL(ttl time.Duration) PagesOption {
	return func(p *Pages) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

// WithPageIDs replaces the uuid page id generator.
func WithPageIDs(fn func() string) PagesOption {
	return func(p *Pages) {
		if fn != nil {
			p.newID = fn
		}
	}
}

// NewPages creates a registry building pages from deps.
func NewPages(deps PageDeps, opts ...PagesOption) *Pages {
	p := &Pages{
		pages:  map[string]*Page{},
		deps:   deps,
		ttl:    DefaultPageTTL,
		logger: normalizeLogger(deps.Logger),
		now:    deps.Clock,
		newID:  uuid.NewString,
	}
	if p.now == nil {
		p.now = time.Now
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Create starts a new page.
func (p *Pages) Create(ctx context.Context) (*Page, error) {
	page, err := p.build(p.newID())
	if err != nil {
		return nil, err
	}
	p.save(ctx, page, page.Snapshot())
	p.attach(page)
	return page, nil
}

// Get returns the page for id, restoring it from the snapshot store when
// it is not live in this process.
func (p *Pages) Get(ctx context.Context, id string) (*Page, error) {
	if id == "" {
		return nil, ErrPageNotFound
	}

	p.mu.Lock()
	page, ok := p.pages[id]
	p.mu.Unlock()
	if ok {
		page.Touch()
		return page, nil
	}

	if p.store == nil {
		return nil, ErrPageNotFound
	}

	snap, err := p.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSnapshotNotFound) {
			return nil, ErrPageNotFound
		}
		return nil, err
	}

	page, err = p.build(id)
	if err != nil {
		return nil, err
	}
	// the restore itself is saved, so a redirect applied on restore sticks
	p.observeSnapshots(page)
	page.Restore(*snap)
	p.logger.Debug("page restored", "page", id, "mode", string(snap.Mode), "revision", snap.Revision)

	p.mu.Lock()
	defer p.mu.Unlock()
	if live, ok := p.pages[id]; ok {
		// another request restored it first
		return live, nil
	}
	p.pages[id] = page
	return page, nil
}

// GetOrCreate resolves id or starts a new page. created reports which.
func (p *Pages) GetOrCreate(ctx context.Context, id string) (page *Page, created bool, err error) {
	page, err = p.Get(ctx, id)
	if err == nil {
		return page, false, nil
	}
	if !errors.Is(err, ErrPageNotFound) {
		p.logger.Warn("page restore failed", "page", id, "error", err)
	}
	page, err = p.Create(ctx)
	return page, err == nil, err
}

// Discard drops the page and its snapshot.
func (p *Pages) Discard(ctx context.Context, id string) {
	p.mu.Lock()
	delete(p.pages, id)
	p.mu.Unlock()

	if p.store == nil {
		return
	}
	if err := p.store.Delete(ctx, id); err != nil && !errors.Is(err, ErrSnapshotNotFound) {
		p.logger.Warn("snapshot delete failed", "page", id, "error", err)
	}
}

// Sweep evicts pages idle for longer than the TTL and returns how many
// were dropped. Snapshots expire on their own.
func (p *Pages) Sweep(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	evicted := 0
	for id, page := range p.pages {
		if now.Sub(page.LastSeen()) > p.ttl {
			delete(p.pages, id)
			evicted++
		}
	}
	return evicted
}

// Run sweeps idle pages every interval until ctx is done.
func (p *Pages) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := p.Sweep(p.now()); n > 0 {
				p.logger.Debug("pages evicted", "count", n)
			}
		}
	}
}

// Len returns the number of live pages.
func (p *Pages) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pages)
}

// TTL returns the idle eviction delay.
func (p *Pages) TTL() time.Duration {
	return p.ttl
}

func (p *Pages) build(id string) (*Page, error) {
	return NewPage(id, p.deps)
}

func (p *Pages) attach(page *Page) {
	p.observeSnapshots(page)

	p.mu.Lock()
	p.pages[page.ID()] = page
	p.mu.Unlock()
}

func (p *Pages) observeSnapshots(page *Page) {
	if p.store == nil {
		return
	}
	page.observe(func(snap Snapshot) {
		ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		defer cancel()
		p.save(ctx, page, snap)
	})
}

func (p *Pages) save(ctx context.Context, page *Page, snap Snapshot) {
	if p.store == nil {
		return
	}
	err := p.store.Save(ctx, snap)
	switch {
	case err == nil:
	case errors.Is(err, ErrStaleSnapshot):
		p.logger.Debug("stale snapshot skipped", "page", snap.ID, "revision", snap.Revision)
	default:
		p.logger.Warn("snapshot save failed", "page", snap.ID, "error", err)
		page.env.record(ActivityEventSnapshotFailure, "", map[string]any{"revision": snap.Revision})
	}
}
