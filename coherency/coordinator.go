package coherency

import (
	"context"
	"errors"
	"time"

	"github.com/unkn0wn-root/randselect"
)

// Options configure a Coordinator. Cache and Store are required.
type Options struct {
	Cache  ValidationCache
	Store  PropertyStore
	Config Config

	Logger randselect.Logger // if nil, NopLogger is used
	Hooks  randselect.Hooks  // if nil, NopHooks is used
	Now    func() time.Time  // if nil, time.Now
}

// Coordinator owns the per-page cache coherency decisions. It keeps no state of
// its own; every operation is read-only, an idempotent overwrite or a delete, so
// retried or duplicate calls are safe without locking.
type Coordinator struct {
	cache ValidationCache
	store PropertyStore
	cfg   Config
	log   randselect.Logger
	hooks randselect.Hooks
	now   func() time.Time
}

func New(opts Options) (*Coordinator, error) {
	if opts.Cache == nil {
		return nil, errors.New("coherency: validation cache is required")
	}
	if opts.Store == nil {
		return nil, errors.New("coherency: property store is required")
	}
	c := &Coordinator{
		cache: opts.Cache,
		store: opts.Store,
		cfg:   opts.Config,
		log:   randselect.NopLogger{},
		hooks: randselect.NopHooks{},
		now:   time.Now,
	}
	if opts.Logger != nil {
		c.log = opts.Logger
	}
	if opts.Hooks != nil {
		c.hooks = opts.Hooks
	}
	if opts.Now != nil {
		c.now = opts.Now
	}
	return c, nil
}

// Config returns the effective configuration.
func (c *Coordinator) Config() Config { return c.cfg }

// LastModified runs before the page is loaded. For primary views of pages that
// (approximately) use randomization it sets times[LastModifiedKey] to now, so
// the newest modification time defeats If-Modified-Since and the body is sent.
//
// Non-view actions and pinned revisions are left alone, as is everything when
// the conditional-GET suppression is configured off. Store errors fail open:
// the page is treated as not randomized.
func (c *Coordinator) LastModified(ctx context.Context, req Request, times map[string]time.Time) Observation {
	if c.cfg.KeepIfModifiedSince || !req.IsPrimaryView() {
		return Observation{}
	}

	v, hit, err := c.cache.GetOrCompute(ctx, req.Page, c.cfg.validationTTL(), func(ctx context.Context) (bool, error) {
		r, err := c.store.Randomized(ctx, req.Page)
		if err != nil {
			c.hooks.ValidationPopulated(uint64(req.Page), false, "store_error")
			c.log.Warn("page property lookup failed", randselect.Fields{"page": req.Page, "err": err})
			return false, err
		}
		c.hooks.ValidationPopulated(uint64(req.Page), r, "store")
		return r, nil
	})
	if err != nil {
		c.log.Warn("validation cache lookup failed; assuming not randomized", randselect.Fields{
			"page": req.Page, "err": err,
		})
		v = false
	}
	if !hit {
		c.log.Debug("validation cache miss", randselect.Fields{"page": req.Page, "randomized": v})
	}

	if v && times != nil {
		times[LastModifiedKey] = c.now()
	}
	return Observation{Checked: true, Approx: v}
}

// Repair compares what the fast path believed with the exact flag of the
// artifact that was actually served, and deletes the fast entry on a mismatch.
// It reports whether a delete was issued.
func (c *Coordinator) Repair(ctx context.Context, page PageID, exact bool, obs Observation) bool {
	if !obs.Checked || obs.Approx == exact {
		return false
	}
	c.drop(ctx, page, obs.Approx, exact)
	return true
}

// Publish is the render-time touch point: it records the exact flag durably and
// drops a disagreeing fast entry so the next lookup repopulates from the store.
// Both steps are best-effort and independent.
func (c *Coordinator) Publish(ctx context.Context, page PageID, exact bool) error {
	err := c.store.SetRandomized(ctx, page, exact)
	if err != nil {
		c.log.Warn("page property write failed", randselect.Fields{"page": page, "err": err})
	}
	approx, ok, perr := c.cache.Peek(ctx, page)
	if perr != nil {
		c.log.Debug("validation cache peek failed", randselect.Fields{"page": page, "err": perr})
		return err
	}
	if ok && approx != exact {
		c.drop(ctx, page, approx, exact)
	}
	return err
}

func (c *Coordinator) drop(ctx context.Context, page PageID, approx, exact bool) {
	if err := c.cache.Delete(ctx, page); err != nil {
		c.log.Warn("validation cache delete failed", randselect.Fields{"page": page, "err": err})
		return
	}
	c.hooks.ValidationRepaired(uint64(page), approx, exact)
	c.log.Debug("validation cache repaired", randselect.Fields{"page": page, "approx": approx, "exact": exact})
}

// AdjustEdgeCache runs once the artifact is known. It repairs the fast cache
// against the exact flag and, for randomized article views, marks the response
// and lowers the CDN max-age to the configured ceiling.
func (c *Coordinator) AdjustEdgeCache(ctx context.Context, req Request, obs Observation, exact bool, resp Response) {
	c.Repair(ctx, req.Page, exact, obs)
	if !exact || !req.Article || !req.IsView() {
		return
	}
	// a front cache could use this to keep several variants
	resp.SetHeader(HeaderName, "1")

	if d, ok := c.cfg.edgeMaxAge(); ok {
		resp.LowerCDNMaxAge(d)
	}
}
