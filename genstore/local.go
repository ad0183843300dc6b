package genstore

import (
	"context"
	"sync"
	"time"
)

type localEntry struct {
	gen    uint64
	bumped time.Time
}

// Local keeps page generations in-process.
// With a positive cleanup interval and retention, a background loop forgets pages
// not bumped within retention. Keep retention well above the render-cache TTL.
type Local struct {
	mu   sync.RWMutex
	gens map[string]localEntry

	stop chan struct{}
	done sync.WaitGroup
	once sync.Once
}

var _ GenStore = (*Local)(nil)

func NewLocal(cleanupInterval, retention time.Duration) *Local {
	s := &Local{gens: make(map[string]localEntry)}
	if cleanupInterval <= 0 || retention <= 0 {
		return s
	}
	s.stop = make(chan struct{})
	ticker := time.NewTicker(cleanupInterval)
	s.done.Add(1)
	go func() {
		defer s.done.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Cleanup(retention)
			case <-s.stop:
				return
			}
		}
	}()
	return s
}

func (s *Local) Snapshot(_ context.Context, k string) (uint64, error) {
	s.mu.RLock()
	e := s.gens[k]
	s.mu.RUnlock()
	return e.gen, nil
}

func (s *Local) Bump(_ context.Context, k string) (uint64, error) {
	now := time.Now()
	s.mu.Lock()
	e := s.gens[k]
	e.gen++
	e.bumped = now
	s.gens[k] = e
	s.mu.Unlock()
	return e.gen, nil
}

func (s *Local) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)
	s.mu.Lock()
	for k, e := range s.gens {
		if e.bumped.Before(cutoff) {
			delete(s.gens, k)
		}
	}
	s.mu.Unlock()
}

// Len returns the number of tracked pages.
func (s *Local) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.gens)
}

func (s *Local) Close(_ context.Context) error {
	s.once.Do(func() {
		if s.stop != nil {
			close(s.stop)
			s.done.Wait()
		}
	})
	return nil
}
