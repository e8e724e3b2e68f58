package store

import (
	"context"
	"sync"
	"time"

	authcard "github.com/goliatone/go-authcard"
)

type memoryEntry struct {
	snap      authcard.Snapshot
	expiresAt time.Time
}

// Memory keeps snapshots in process memory.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

var _ authcard.SnapshotStore = (*Memory)(nil)

// NewMemory creates a store whose entries expire after ttl. Zero keeps
// entries forever.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: map[string]memoryEntry{},
		ttl:     ttl,
		now:     time.Now,
	}
}

// Save implements authcard.SnapshotStore.
func (m *Memory) Save(_ context.Context, snap authcard.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if current, ok := m.live(snap.ID, now); ok && current.snap.Revision >= snap.Revision {
		return authcard.ErrStaleSnapshot
	}

	entry := memoryEntry{snap: snap}
	if m.ttl > 0 {
		entry.expiresAt = now.Add(m.ttl)
	}
	m.entries[snap.ID] = entry
	return nil
}

// Load implements authcard.SnapshotStore.
func (m *Memory) Load(_ context.Context, id string) (*authcard.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.live(id, m.now())
	if !ok {
		return nil, authcard.ErrSnapshotNotFound
	}
	snap := entry.snap
	return &snap, nil
}

// Delete implements authcard.SnapshotStore.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

func (m *Memory) live(id string, now time.Time) (memoryEntry, bool) {
	entry, ok := m.entries[id]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
		delete(m.entries, id)
		return memoryEntry{}, false
	}
	return entry, true
}
