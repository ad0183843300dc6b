// Package rendercache caches rendered artifacts (text plus metadata bag) over a
// byte provider, with compare-and-swap safety via per-page generations.
//
// A read never returns an artifact written under an older page generation:
// corrupt, foreign or stale entries are deleted on read (self-heal). Because the
// metadata bag is stored in the same entry as the text, a hit always restores
// the choice sets its placeholder tokens refer to.
//
// Keys:
//
//	render:<ns>:<page>:<variant>  - one artifact per page and render-options variant
//
// CAS pattern:
//
//	obs := cache.SnapshotGen(ctx, page) // before loading the page source
//	art := render(page)
//	_   = cache.SetWithGen(ctx, key, art, obs, 0) // write iff gen still == obs
package rendercache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/unkn0wn-root/randselect"
	c "github.com/unkn0wn-root/randselect/codec"
	gen "github.com/unkn0wn-root/randselect/genstore"
	"github.com/unkn0wn-root/randselect/internal/util"
	"github.com/unkn0wn-root/randselect/internal/wire"
	pr "github.com/unkn0wn-root/randselect/provider"
)

const (
	defaultTTL          = 24 * time.Hour
	defaultGenRetention = 30 * 24 * time.Hour
	defaultSweep        = time.Hour
)

// Key addresses one cached render.
type Key struct {
	Page    uint64
	Variant string // "" => canonical
}

// VariantOf derives the Variant of a set of render options.
func VariantOf(opts map[string]string) string { return util.VariantHash(opts) }

type SetCostFunc func(key string, raw []byte) int64

// Cache is the render cache API.
type Cache interface {
	Enabled() bool
	Close(context.Context) error

	Get(ctx context.Context, key Key) (art randselect.Artifact, ok bool, err error)
	SetWithGen(ctx context.Context, key Key, art randselect.Artifact, observedGen uint64, ttl time.Duration) error
	// Invalidate bumps the page generation (all variants go stale) and deletes key.
	Invalidate(ctx context.Context, key Key) error

	SnapshotGen(ctx context.Context, page uint64) uint64
}

// Options tune the cache. Only Namespace and Provider are required.
type Options struct {
	Namespace string // logical namespace, e.g. "wiki:prod"
	Provider  pr.Provider
	Codec     c.Codec[randselect.Artifact] // nil => CBOR

	Logger          randselect.Logger // if nil, NopLogger is used
	Hooks           randselect.Hooks  // if nil, NopHooks is used
	DefaultTTL      time.Duration     // 0 => 24h
	CleanupInterval time.Duration     // local gen store sweep; 0 => 1h
	GenRetention    time.Duration     // 0 => 30d
	Disabled        bool              // default false (enabled)
	ComputeSetCost  SetCostFunc       // default len(raw)
	GenStore        gen.GenStore      // nil => genstore.Local
}

type cache struct {
	ns             string
	provider       pr.Provider
	codec          c.Codec[randselect.Artifact]
	log            randselect.Logger
	hooks          randselect.Hooks
	enabled        bool
	defaultTTL     time.Duration
	computeSetCost SetCostFunc
	gen            gen.GenStore
}

func New(opts Options) (Cache, error) {
	return newCache(opts)
}

func newCache(opts Options) (*cache, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("rendercache: provider is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("rendercache: namespace is required")
	}

	rc := &cache{
		ns:       opts.Namespace,
		provider: opts.Provider,
		codec:    opts.Codec,
		enabled:  !opts.Disabled,
		log:      randselect.NopLogger{},
		hooks:    randselect.NopHooks{},
	}
	if rc.codec == nil {
		cb, err := c.NewCBOR[randselect.Artifact](c.CBOROptions{})
		if err != nil {
			return nil, fmt.Errorf("rendercache: default codec: %w", err)
		}
		rc.codec = cb
	}
	if opts.Logger != nil {
		rc.log = opts.Logger
	}
	if opts.Hooks != nil {
		rc.hooks = opts.Hooks
	}
	rc.defaultTTL = opts.DefaultTTL
	if rc.defaultTTL <= 0 {
		rc.defaultTTL = defaultTTL
	}
	if opts.ComputeSetCost != nil {
		rc.computeSetCost = opts.ComputeSetCost
	} else {
		rc.computeSetCost = func(_ string, raw []byte) int64 { return int64(len(raw)) }
	}

	if opts.GenStore != nil {
		rc.gen = opts.GenStore
	} else {
		sweep, retention := opts.CleanupInterval, opts.GenRetention
		if sweep <= 0 {
			sweep = defaultSweep
		}
		if retention <= 0 {
			retention = defaultGenRetention
		}
		rc.gen = gen.NewLocal(sweep, retention)
	}
	return rc, nil
}

func (rc *cache) Enabled() bool { return rc.enabled }

func (rc *cache) Close(ctx context.Context) error {
	// gen store first (best effort)
	if rc.gen != nil {
		_ = rc.gen.Close(ctx)
	}
	return rc.provider.Close(ctx)
}

func (rc *cache) Get(ctx context.Context, key Key) (randselect.Artifact, bool, error) {
	var zero randselect.Artifact
	if !rc.enabled {
		return zero, false, nil
	}
	k := rc.storageKey(key)
	raw, ok, err := rc.provider.Get(ctx, k)
	if err != nil || !ok {
		return zero, false, err
	}
	g, flags, payload, err := wire.Decode(raw)
	if err != nil {
		rc.heal(ctx, k, "corrupt")
		return zero, false, nil
	}
	if g != rc.snapshotGen(ctx, key.Page) {
		rc.heal(ctx, k, "gen_mismatch")
		return zero, false, nil
	}
	art, err := rc.codec.Decode(payload)
	if err != nil {
		rc.heal(ctx, k, "value_decode")
		return zero, false, nil
	}
	if art.Page != key.Page || art.Meta.Randomized != flags.Has(wire.FlagRandomized) {
		// header and payload disagree: written by something else
		rc.heal(ctx, k, "corrupt")
		return zero, false, nil
	}
	return art, true, nil
}

func (rc *cache) heal(ctx context.Context, storageKey, reason string) {
	_ = rc.provider.Del(ctx, storageKey)
	rc.hooks.RenderSelfHeal(storageKey, reason)
	rc.log.Debug("render cache self-heal", randselect.Fields{"key": storageKey, "reason": reason})
}

func (rc *cache) SetWithGen(ctx context.Context, key Key, art randselect.Artifact, observedGen uint64, ttl time.Duration) error {
	if !rc.enabled {
		return nil
	}
	if art.Meta.Uncacheable {
		rc.log.Debug("SetWithGen skipped (uncacheable render)", randselect.Fields{"page": key.Page})
		return nil
	}
	if art.Page != key.Page {
		return fmt.Errorf("rendercache: artifact page %d stored under page %d", art.Page, key.Page)
	}
	if ttl <= 0 {
		ttl = rc.defaultTTL
	}
	if rc.snapshotGen(ctx, key.Page) != observedGen {
		// page edited while rendering; skip stale write
		rc.log.Debug("SetWithGen skipped (gen mismatch)", randselect.Fields{"page": key.Page, "obs": observedGen})
		return nil
	}
	payload, err := rc.codec.Encode(art)
	if err != nil {
		return err
	}
	var flags wire.Flags
	if art.Meta.Randomized {
		flags |= wire.FlagRandomized
	}
	k := rc.storageKey(key)
	wireb := wire.Encode(observedGen, flags, payload)
	ok, err := rc.provider.Set(ctx, k, wireb, rc.computeSetCost(k, wireb), ttl)
	if err != nil {
		return err
	}
	if !ok {
		rc.hooks.ProviderSetRejected(k)
		rc.log.Debug("SetWithGen rejected by provider (pressure)", randselect.Fields{"key": k})
	}
	return nil
}

func (rc *cache) Invalidate(ctx context.Context, key Key) error {
	if !rc.enabled {
		return nil
	}
	k := rc.storageKey(key)
	newGen, bumpErr := rc.gen.Bump(ctx, util.PageKey(key.Page))
	delErr := rc.provider.Del(ctx, k)
	if bumpErr != nil || delErr != nil {
		rc.log.Error("invalidate failed", randselect.Fields{"page": key.Page, "bump_err": bumpErr, "del_err": delErr})
		return &InvalidateError{Page: key.Page, BumpErr: bumpErr, DelErr: delErr}
	}
	rc.log.Debug("invalidated page (bumped gen + cleared entry)", randselect.Fields{"page": key.Page, "newGen": newGen})
	return nil
}

func (rc *cache) SnapshotGen(ctx context.Context, page uint64) uint64 {
	return rc.snapshotGen(ctx, page)
}

func (rc *cache) snapshotGen(ctx context.Context, page uint64) uint64 {
	g, err := rc.gen.Snapshot(ctx, util.PageKey(page))
	if err != nil {
		// Conservative: treat as 0; entries under a newer gen miss and self-heal
		rc.log.Warn("gen snapshot error", randselect.Fields{"page": page, "err": err})
		return 0
	}
	return g
}

func (rc *cache) storageKey(key Key) string {
	v := key.Variant
	if v == "" {
		v = util.VariantHash(nil)
	}
	return "render:" + rc.ns + ":" + strconv.FormatUint(key.Page, 10) + ":" + v
}
