package randselect

import (
	"errors"
)

// Options tune an Engine. All fields are optional.
type Options struct {
	Logger    Logger  // if nil, NopLogger is used
	Hooks     Hooks   // if nil, NopHooks is used
	Entropy   Entropy // default source for Resolve; nil => DefaultEntropy()
	MaxPasses int     // substitution pass bound; 0 => DefaultMaxPasses
	Marker    Marker  // id generation and error fragment text
}

// Engine ties marker embedding at render time to substitution at view time.
// It holds no per-page state and is safe for concurrent use.
type Engine struct {
	log       Logger
	hooks     Hooks
	entropy   Entropy
	maxPasses int
	marker    Marker
}

func New(opts Options) *Engine {
	e := &Engine{marker: opts.Marker}
	e.log = coalesce[Logger](opts.Logger, NopLogger{})
	e.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	e.entropy = coalesce[Entropy](opts.Entropy, DefaultEntropy())
	e.maxPasses = coalesce(opts.MaxPasses, DefaultMaxPasses)
	return e
}

// Choose embeds opts for one randomized occurrence on page and returns the
// token to splice into the rendered output, or an inline error fragment.
func (e *Engine) Choose(page uint64, meta *Metadata, opts []Option) string {
	out, err := e.marker.Choose(meta, opts)
	if err != nil {
		e.invalid(page, len(opts), err)
	}
	return out
}

// ChooseInt is Choose for integer multiplicities.
func (e *Engine) ChooseInt(page uint64, meta *Metadata, opts []IntOption) string {
	out, err := e.marker.ChooseInt(meta, opts)
	if err != nil {
		e.invalid(page, len(opts), err)
	}
	return out
}

func (e *Engine) invalid(page uint64, n int, err error) {
	e.hooks.InvalidWeights(page, err)
	e.log.Debug("invalid choice weights", Fields{"page": page, "options": n, "err": err})
}

// Resolve runs the substitution pass over a finalized artifact. rnd may be nil
// to use the engine's source. It never fails the view: problems are logged,
// reported to hooks and the offending tokens dropped.
func (e *Engine) Resolve(art *Artifact, rnd Entropy) Result {
	if !art.Meta.Randomized && !HasTokens(art.Text) {
		return Result{Text: art.Text}
	}
	if rnd == nil {
		rnd = e.entropy
	}
	res, err := Substitute(art.Text, &art.Meta, rnd, e.maxPasses)
	if err == nil {
		return res
	}
	var te *TokenError
	if !errors.As(err, &te) {
		e.log.Error("substitution failed", Fields{"page": art.Page, "err": err})
		return res
	}
	switch {
	case errors.Is(err, ErrIterationBound):
		e.hooks.IterationBound(art.Page, te.Passes, res.Dropped)
		e.log.Error("substitution pass bound exceeded", Fields{
			"page": art.Page, "rev": art.Revision, "passes": te.Passes, "dropped": res.Dropped,
		})
	case errors.Is(err, ErrDanglingToken):
		e.hooks.DanglingToken(art.Page, len(te.IDs))
		e.log.Warn("dropped dangling choice tokens", Fields{
			"page": art.Page, "rev": art.Revision, "count": len(te.IDs), "first": te.IDs[0],
		})
	}
	return res
}
