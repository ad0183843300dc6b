// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/randselect"
//	"github.com/unkn0wn-root/randselect/hooks/async"
//	"github.com/unkn0wn-root/randselect/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    SelfHealEvery:   10, // sample logs: ~every 10th self-heal
//	    PopulatedEvery:  100,
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	engine := randselect.New(randselect.Options{Hooks: hooks})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/randselect"
)

// Hooks forwards events to inner on a worker pool. Events are dropped when
// the queue is full; a view never waits on a hook.
type Hooks struct {
	inner randselect.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once

	mu     sync.RWMutex
	closed bool
}

var _ randselect.Hooks = (*Hooks)(nil)

func New(inner randselect.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events sent after Close
// are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) InvalidWeights(p uint64, err error) { h.try(func() { h.inner.InvalidWeights(p, err) }) }
func (h *Hooks) DanglingToken(p uint64, n int)      { h.try(func() { h.inner.DanglingToken(p, n) }) }
func (h *Hooks) IterationBound(p uint64, passes, dropped int) {
	h.try(func() { h.inner.IterationBound(p, passes, dropped) })
}
func (h *Hooks) ValidationRepaired(p uint64, approx, exact bool) {
	h.try(func() { h.inner.ValidationRepaired(p, approx, exact) })
}
func (h *Hooks) ValidationPopulated(p uint64, r bool, src string) {
	h.try(func() { h.inner.ValidationPopulated(p, r, src) })
}
func (h *Hooks) RenderSelfHeal(k, r string)   { h.try(func() { h.inner.RenderSelfHeal(k, r) }) }
func (h *Hooks) ProviderSetRejected(k string) { h.try(func() { h.inner.ProviderSetRejected(k) }) }
