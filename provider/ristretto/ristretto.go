// Package ristretto adapts dgraph-io/ristretto to provider.Provider.
// Ristretto admission is probabilistic: Set may report ok=false, and a
// successful Set becomes visible asynchronously (call Wait in tests).
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/unkn0wn-root/randselect/provider"
)

type Provider struct {
	c *rc.Cache
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	NumCounters int64 // ~10x expected entries
	MaxCost     int64 // total cost budget; the render cache passes the encoded size
	BufferItems int64 // 64 is the recommended value
	Metrics     bool
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, isBytes := v.([]byte)
	if !isBytes {
		// self-heal: drop unexpected entry shape
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	return p.c.SetWithTTL(key, value, cost, ttl), nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

// Wait blocks until buffered writes are applied.
func (p *Provider) Wait() { p.c.Wait() }

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics exposes ristretto counters (nil unless Config.Metrics).
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }
