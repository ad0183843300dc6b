// Package app wires a configured randselect server from its parts.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	stdslog "log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/unkn0wn-root/randselect"
	c "github.com/unkn0wn-root/randselect/codec"
	"github.com/unkn0wn-root/randselect/coherency"
	"github.com/unkn0wn-root/randselect/config"
	"github.com/unkn0wn-root/randselect/flagcache"
	gen "github.com/unkn0wn-root/randselect/genstore"
	asynchook "github.com/unkn0wn-root/randselect/hooks/async"
	promhooks "github.com/unkn0wn-root/randselect/hooks/prom"
	"github.com/unkn0wn-root/randselect/markup"
	"github.com/unkn0wn-root/randselect/pageview"
	"github.com/unkn0wn-root/randselect/propstore"
	pr "github.com/unkn0wn-root/randselect/provider"
	bcp "github.com/unkn0wn-root/randselect/provider/bigcache"
	rcp "github.com/unkn0wn-root/randselect/provider/ristretto"
	rdp "github.com/unkn0wn-root/randselect/provider/redis"
	"github.com/unkn0wn-root/randselect/rendercache"
	"github.com/unkn0wn-root/randselect/server"
	"github.com/unkn0wn-root/randselect/sloghooks"
)

// App is a fully wired server. Close releases every backend.
type App struct {
	Engine   *randselect.Engine
	Renderer *markup.Renderer
	Service  *pageview.Service
	Pages    *pageview.MemorySource
	Handlers *server.Handlers
	Registry *prometheus.Registry

	closers []func(context.Context) error
}

// Options carry the process-level pieces Build does not create itself.
type Options struct {
	Logger randselect.Logger // if nil, NopLogger is used
	Slog   *stdslog.Logger   // event log target when hooks.log_events is set
}

func Build(ctx context.Context, cfg config.Config, opts Options) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = randselect.NopLogger{}
	}

	a := &App{Registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = a.Close(ctx)
		}
	}()

	hooks := a.hooks(cfg.Hooks, opts.Slog)

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if cfg.RenderCache.GenStore != "redis" {
			// otherwise the gen store closes it with the render cache
			a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
		}
	}

	renderProv, err := newProvider(ctx, cfg.RenderCache, rdb)
	if err != nil {
		return nil, fmt.Errorf("render cache provider: %w", err)
	}
	codec, err := newCodec(cfg.RenderCache.Codec)
	if err != nil {
		return nil, err
	}
	var gens gen.GenStore
	if cfg.RenderCache.GenStore == "redis" {
		gens = gen.NewRedis(rdb, cfg.Namespace, 0)
	}
	renders, err := rendercache.New(rendercache.Options{
		Namespace:  cfg.Namespace,
		Provider:   renderProv,
		Codec:      codec,
		Logger:     log,
		Hooks:      hooks,
		DefaultTTL: cfg.RenderCache.TTL,
		Disabled:   cfg.RenderCache.Disabled,
		GenStore:   gens,
	})
	if err != nil {
		_ = renderProv.Close(ctx)
		return nil, err
	}
	a.closers = append(a.closers, renders.Close)

	flagProv, err := newProvider(ctx, cfg.ValidationCache, rdb)
	if err != nil {
		return nil, fmt.Errorf("validation cache provider: %w", err)
	}
	a.closers = append(a.closers, flagProv.Close)
	flags, err := flagcache.New(flagcache.Options{Namespace: cfg.Namespace, Provider: flagProv, Logger: log})
	if err != nil {
		return nil, err
	}

	store, err := a.store(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	coord, err := coherency.New(coherency.Options{
		Cache:  flags,
		Store:  store,
		Config: cfg.Coherency,
		Logger: log,
		Hooks:  hooks,
	})
	if err != nil {
		return nil, err
	}

	a.Engine = randselect.New(randselect.Options{
		Logger:    log,
		Hooks:     hooks,
		MaxPasses: cfg.Substitution.MaxPasses,
		Marker:    randselect.Marker{InvalidWeightsMessage: cfg.Substitution.InvalidWeightsMessage},
	})
	a.Renderer, err = markup.New(markup.Options{Engine: a.Engine, Logger: log})
	if err != nil {
		return nil, err
	}

	a.Pages = pageview.NewMemorySource()
	for _, p := range cfg.Pages {
		a.Pages.Save(p.ID, p.Title, p.Source)
	}

	a.Service, err = pageview.New(pageview.Options{
		Engine:      a.Engine,
		Renderer:    a.Renderer,
		Renders:     renders,
		Coordinator: coord,
		Pages:       a.Pages,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}
	a.Handlers, err = server.NewHandlers(server.Options{
		Service:   a.Service,
		Editor:    a.Pages,
		Logger:    log,
		Gatherer:  a.Registry,
		CDNMaxAge: cfg.CDNMaxAge,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// hooks stacks the configured event sinks.
func (a *App) hooks(cfg config.HooksConfig, sl *stdslog.Logger) randselect.Hooks {
	var sinks []randselect.Hooks
	if cfg.Metrics {
		sinks = append(sinks, promhooks.New(a.Registry))
	}
	if cfg.LogEvents && sl != nil {
		sinks = append(sinks, sloghooks.New(sl, sloghooks.Options{SelfHealEvery: uint64(max(cfg.SelfHealLog, 0))}))
	}
	var h randselect.Hooks
	switch len(sinks) {
	case 0:
		return randselect.NopHooks{}
	case 1:
		h = sinks[0]
	default:
		h = randselect.MultiHooks(sinks)
	}
	if cfg.AsyncQueue > 0 {
		ah := asynchook.New(h, 1, cfg.AsyncQueue)
		a.closers = append(a.closers, func(context.Context) error { ah.Close(); return nil })
		return ah
	}
	return h
}

func (a *App) store(ctx context.Context, cfg config.StoreConfig) (coherency.PropertyStore, error) {
	if cfg.Driver == "memory" {
		return propstore.NewMemory(), nil
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return db.Close() })
	s, err := propstore.NewSQLite(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	return s, nil
}

func newProvider(ctx context.Context, cfg config.CacheConfig, rdb *redis.Client) (pr.Provider, error) {
	switch cfg.Provider {
	case "ristretto":
		return rcp.New(rcp.Config{NumCounters: max(cfg.NumCounters, 1e4), MaxCost: max(cfg.MaxCost, 1<<20), BufferItems: 64})
	case "bigcache":
		return bcp.New(ctx, bcp.Config{LifeWindow: cfg.TTL, HardMaxCacheSizeMB: cfg.MaxSizeMB})
	case "redis":
		// the client is shared and closed by the App
		return rdp.New(rdp.Config{Client: rdb})
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func newCodec(name string) (c.Codec[randselect.Artifact], error) {
	switch name {
	case "msgpack":
		return c.Msgpack[randselect.Artifact]{}, nil
	case "json":
		return c.JSON[randselect.Artifact]{}, nil
	case "cbor", "":
		return c.NewCBOR[randselect.Artifact](c.CBOROptions{Deterministic: true})
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// Close releases backends in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
