package pageview

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned by a Source for unknown pages or revisions.
var ErrNotFound = errors.New("pageview: page not found")

// Page is one revision of page source.
type Page struct {
	ID       uint64
	Title    string
	Revision uint64
	Source   string
	Touched  time.Time // last edit or purge
}

// Source loads page source. Implementations must be safe for concurrent use.
type Source interface {
	// Current returns the latest revision.
	Current(ctx context.Context, id uint64) (Page, error)
	// Revision returns a specific, possibly older revision.
	Revision(ctx context.Context, id, rev uint64) (Page, error)
}

// MemorySource keeps every revision in memory.
type MemorySource struct {
	mu    sync.RWMutex
	pages map[uint64][]Page // index = revision-1
	now   func() time.Time
}

var _ Source = (*MemorySource)(nil)

func NewMemorySource() *MemorySource {
	return &MemorySource{pages: make(map[uint64][]Page), now: time.Now}
}

// Save stores a new revision of page id and returns it.
func (m *MemorySource) Save(id uint64, title, source string) Page {
	m.mu.Lock()
	defer m.mu.Unlock()
	revs := m.pages[id]
	p := Page{ID: id, Title: title, Revision: uint64(len(revs)) + 1, Source: source, Touched: m.now()}
	m.pages[id] = append(revs, p)
	return p
}

// Touch bumps the touched time of the current revision (a purge).
func (m *MemorySource) Touch(id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	revs := m.pages[id]
	if len(revs) == 0 {
		return ErrNotFound
	}
	revs[len(revs)-1].Touched = m.now()
	return nil
}

func (m *MemorySource) Current(_ context.Context, id uint64) (Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	revs := m.pages[id]
	if len(revs) == 0 {
		return Page{}, ErrNotFound
	}
	return revs[len(revs)-1], nil
}

func (m *MemorySource) Revision(_ context.Context, id, rev uint64) (Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	revs := m.pages[id]
	if rev == 0 || rev > uint64(len(revs)) {
		return Page{}, ErrNotFound
	}
	return revs[rev-1], nil
}
