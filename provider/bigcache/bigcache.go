// Package bigcache adapts allegro/bigcache to provider.Provider.
//
// BigCache has no per-entry TTL: every entry lives for Config.LifeWindow. Size
// the window to the longest TTL the cache serves (e.g. the validation TTL when
// backing flagcache).
package bigcache

import (
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"

	pr "github.com/unkn0wn-root/randselect/provider"
)

const defaultLifeWindow = 10 * time.Minute

type Provider struct {
	c *bc.BigCache
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	LifeWindow         time.Duration // 0 => 10m
	CleanWindow        time.Duration
	Shards             int // power of two; 0 => library default
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(ctx context.Context, cfg Config) (*Provider, error) {
	life := cfg.LifeWindow
	if life <= 0 {
		life = defaultLifeWindow
	}
	conf := bc.DefaultConfig(life)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.Shards > 0 {
		conf.Shards = cfg.Shards
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	conf.Verbose = false
	c, err := bc.New(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := p.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	// per-call TTL is ignored; LifeWindow applies
	if err := p.c.Set(key, value); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	if err := p.c.Delete(key); err != nil && !errors.Is(err, bc.ErrEntryNotFound) {
		return err
	}
	return nil
}

func (p *Provider) Close(_ context.Context) error {
	return p.c.Close()
}
