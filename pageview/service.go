// Package pageview serves page views end to end: conditional-GET validation,
// render-cache lookup or render, per-view substitution and edge-cache policy.
package pageview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unkn0wn-root/randselect"
	"github.com/unkn0wn-root/randselect/coherency"
	"github.com/unkn0wn-root/randselect/markup"
	"github.com/unkn0wn-root/randselect/rendercache"
)

// Options wire a Service. Everything but Logger and Now is required.
type Options struct {
	Engine      *randselect.Engine
	Renderer    *markup.Renderer
	Renders     rendercache.Cache
	Coordinator *coherency.Coordinator
	Pages       Source

	Logger randselect.Logger // if nil, NopLogger is used
	Now    func() time.Time  // if nil, time.Now
}

type Service struct {
	engine  *randselect.Engine
	render  *markup.Renderer
	renders rendercache.Cache
	coord   *coherency.Coordinator
	pages   Source
	log     randselect.Logger
	now     func() time.Time
}

func New(opts Options) (*Service, error) {
	switch {
	case opts.Engine == nil:
		return nil, errors.New("pageview: engine is required")
	case opts.Renderer == nil:
		return nil, errors.New("pageview: renderer is required")
	case opts.Renders == nil:
		return nil, errors.New("pageview: render cache is required")
	case opts.Coordinator == nil:
		return nil, errors.New("pageview: coordinator is required")
	case opts.Pages == nil:
		return nil, errors.New("pageview: page source is required")
	}
	s := &Service{
		engine:  opts.Engine,
		render:  opts.Renderer,
		renders: opts.Renders,
		coord:   opts.Coordinator,
		pages:   opts.Pages,
		log:     opts.Logger,
		now:     opts.Now,
	}
	if s.log == nil {
		s.log = randselect.NopLogger{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Request is one page request.
type Request struct {
	Page    uint64
	Action  string // "" or "view"
	OldID   uint64 // 0 => current revision
	Variant map[string]string

	IfModifiedSince time.Time // zero => unconditional
}

func (r Request) coordRequest(article bool) coherency.Request {
	cr := coherency.Request{Page: coherency.PageID(r.Page), Action: r.Action, Article: article}
	if r.OldID != 0 {
		cr.OldID = fmt.Sprint(r.OldID)
	}
	return cr
}

// View is the outcome of a request.
type View struct {
	NotModified  bool
	Body         string
	Title        string
	Revision     uint64
	LastModified time.Time
	Randomized   bool
	CacheHit     bool
}

// View serves req. resp receives the response header and CDN max-age
// adjustments; it is not touched for a 304.
func (s *Service) View(ctx context.Context, req Request, resp coherency.Response) (View, error) {
	cur, err := s.pages.Current(ctx, req.Page)
	if err != nil {
		return View{}, err
	}

	times := map[string]time.Time{"page": cur.Touched}
	obs := s.coord.LastModified(ctx, req.coordRequest(false), times)
	lastMod := newest(times)
	if notModified(lastMod, req.IfModifiedSince) {
		return View{NotModified: true, LastModified: lastMod}, nil
	}

	var (
		art randselect.Artifact
		hit bool
	)
	if req.OldID != 0 {
		pg, err := s.pages.Revision(ctx, req.Page, req.OldID)
		if err != nil {
			return View{}, err
		}
		// pinned revisions are rendered fresh and never cached
		art = s.renderPage(pg)
	} else {
		art, hit = s.current(ctx, cur, req.Variant)
	}

	res := s.engine.Resolve(&art, nil)
	s.coord.AdjustEdgeCache(ctx, req.coordRequest(true), obs, art.Meta.Randomized, resp)

	return View{
		Body:         res.Text,
		Title:        cur.Title,
		Revision:     art.Revision,
		LastModified: lastMod,
		Randomized:   art.Meta.Randomized,
		CacheHit:     hit,
	}, nil
}

// current returns the artifact of the latest revision, from the render cache
// when possible.
func (s *Service) current(ctx context.Context, pg Page, variant map[string]string) (randselect.Artifact, bool) {
	key := rendercache.Key{Page: pg.ID, Variant: rendercache.VariantOf(variant)}
	art, ok, err := s.renders.Get(ctx, key)
	if err != nil {
		s.log.Warn("render cache get failed; rendering", randselect.Fields{"page": pg.ID, "err": err})
	}
	if ok && art.Revision == pg.Revision {
		return art, true
	}

	obsGen := s.renders.SnapshotGen(ctx, pg.ID)
	art = s.renderPage(pg)
	if err := s.renders.SetWithGen(ctx, key, art, obsGen, 0); err != nil {
		s.log.Warn("render cache set failed", randselect.Fields{"page": pg.ID, "err": err})
	}
	if err := s.coord.Publish(ctx, coherency.PageID(pg.ID), art.Meta.Randomized); err != nil {
		s.log.Warn("publishing randomization flag failed", randselect.Fields{"page": pg.ID, "err": err})
	}
	return art, false
}

func (s *Service) renderPage(pg Page) randselect.Artifact {
	var meta randselect.Metadata
	text, err := s.render.Render(pg.ID, pg.Source, &meta)
	if err != nil {
		s.log.Warn("page render incomplete", randselect.Fields{"page": pg.ID, "rev": pg.Revision, "err": err})
	}
	return randselect.Artifact{
		Page:       pg.ID,
		Revision:   pg.Revision,
		Text:       text,
		Meta:       meta,
		RenderedAt: s.now(),
	}
}

// Purge drops every cached render of page. Call it after an edit.
func (s *Service) Purge(ctx context.Context, page uint64) error {
	return s.renders.Invalidate(ctx, rendercache.Key{Page: page})
}

func newest(times map[string]time.Time) time.Time {
	var t time.Time
	for _, v := range times {
		if v.After(t) {
			t = v
		}
	}
	return t
}

// notModified compares at HTTP-date resolution.
func notModified(lastMod, ims time.Time) bool {
	if ims.IsZero() || lastMod.IsZero() {
		return false
	}
	return !lastMod.Truncate(time.Second).After(ims)
}
