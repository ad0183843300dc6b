// Package sloghooks reports randselect events through log/slog, with sampling
// for the ones that fire on every view.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/randselect"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery  uint64
	PopulatedEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr  atomic.Uint64
	populatedCtr atomic.Uint64
}

var _ randselect.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) InvalidWeights(page uint64, err error) {
	if h.l == nil {
		return
	}
	h.l.Info("randselect.invalid_weights",
		"page", page,
		"err", err)
}

func (h *Hooks) DanglingToken(page uint64, count int) {
	if h.l == nil {
		return
	}
	h.l.Warn("randselect.dangling_token",
		"page", page,
		"count", count)
}

func (h *Hooks) IterationBound(page uint64, passes, dropped int) {
	if h.l == nil {
		return
	}
	h.l.Error("randselect.iteration_bound",
		"page", page,
		"passes", passes,
		"dropped", dropped)
}

func (h *Hooks) ValidationRepaired(page uint64, approx, exact bool) {
	if h.l == nil {
		return
	}
	h.l.Info("randselect.validation_repaired",
		"page", page,
		"approx", approx,
		"exact", exact)
}

func (h *Hooks) ValidationPopulated(page uint64, randomized bool, source string) {
	if h.l == nil || !sample(h.opts.PopulatedEvery, &h.populatedCtr) {
		return
	}
	h.l.Debug("randselect.validation_populated",
		"page", page,
		"randomized", randomized,
		"source", source)
}

func (h *Hooks) RenderSelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("randselect.render_self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("randselect.provider_set_rejected",
		"key", h.redact(storageKey))
}
