package randselect

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// They are called on every view.
type Hooks interface {
	// A <choose> had zero or non-finite total weight; an error fragment was rendered.
	InvalidWeights(page uint64, err error)

	// Tokens without a registered set were dropped from a response.
	DanglingToken(page uint64, count int)

	// Substitution hit the pass bound; dropped tokens were left unresolved.
	IterationBound(page uint64, passes, dropped int)

	// The fast validation cache disagreed with the exact flag and was deleted.
	ValidationRepaired(page uint64, approx, exact bool)

	// The fast validation cache missed and was populated.
	// source ∈ {"store", "store_error"}
	ValidationPopulated(page uint64, randomized bool, source string)

	// A render-cache entry was deleted on read.
	// reason ∈ {"corrupt", "gen_mismatch", "value_decode"}
	RenderSelfHeal(storageKey, reason string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) InvalidWeights(uint64, error)             {}
func (NopHooks) DanglingToken(uint64, int)                {}
func (NopHooks) IterationBound(uint64, int, int)          {}
func (NopHooks) ValidationRepaired(uint64, bool, bool)    {}
func (NopHooks) ValidationPopulated(uint64, bool, string) {}
func (NopHooks) RenderSelfHeal(string, string)            {}
func (NopHooks) ProviderSetRejected(string)               {}

// MultiHooks fans every event out to each element in order.
type MultiHooks []Hooks

var _ Hooks = MultiHooks(nil)

func (m MultiHooks) InvalidWeights(page uint64, err error) {
	for _, h := range m {
		h.InvalidWeights(page, err)
	}
}

func (m MultiHooks) DanglingToken(page uint64, count int) {
	for _, h := range m {
		h.DanglingToken(page, count)
	}
}

func (m MultiHooks) IterationBound(page uint64, passes, dropped int) {
	for _, h := range m {
		h.IterationBound(page, passes, dropped)
	}
}

func (m MultiHooks) ValidationRepaired(page uint64, approx, exact bool) {
	for _, h := range m {
		h.ValidationRepaired(page, approx, exact)
	}
}

func (m MultiHooks) ValidationPopulated(page uint64, randomized bool, source string) {
	for _, h := range m {
		h.ValidationPopulated(page, randomized, source)
	}
}

func (m MultiHooks) RenderSelfHeal(storageKey, reason string) {
	for _, h := range m {
		h.RenderSelfHeal(storageKey, reason)
	}
}

func (m MultiHooks) ProviderSetRejected(storageKey string) {
	for _, h := range m {
		h.ProviderSetRejected(storageKey)
	}
}
