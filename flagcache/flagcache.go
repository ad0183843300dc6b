// Package flagcache implements coherency.ValidationCache on top of any byte
// provider (ristretto, bigcache, redis). Concurrent misses for the same page
// share one compute call.
package flagcache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/randselect"
	c "github.com/unkn0wn-root/randselect/codec"
	"github.com/unkn0wn-root/randselect/coherency"
	pr "github.com/unkn0wn-root/randselect/provider"
)

// Options configure a Cache. Provider is required.
type Options struct {
	Namespace string     // key prefix scope; "" => "default"
	Provider  pr.Provider
	Codec     c.Codec[bool] // nil => codec.ProtoBool
	Logger    randselect.Logger
}

// Cache stores one boolean per page.
type Cache struct {
	ns       string
	provider pr.Provider
	codec    c.Codec[bool]
	log      randselect.Logger
	flight   singleflight.Group
}

var _ coherency.ValidationCache = (*Cache)(nil)

func New(opts Options) (*Cache, error) {
	if opts.Provider == nil {
		return nil, errors.New("flagcache: provider is required")
	}
	fc := &Cache{
		ns:       opts.Namespace,
		provider: opts.Provider,
		codec:    opts.Codec,
		log:      opts.Logger,
	}
	if fc.ns == "" {
		fc.ns = "default"
	}
	if fc.codec == nil {
		fc.codec = c.ProtoBool{}
	}
	if fc.log == nil {
		fc.log = randselect.NopLogger{}
	}
	return fc, nil
}

func (fc *Cache) key(page coherency.PageID) string {
	return "vflag:" + fc.ns + ":" + strconv.FormatUint(uint64(page), 10)
}

func (fc *Cache) Peek(ctx context.Context, page coherency.PageID) (bool, bool, error) {
	k := fc.key(page)
	raw, ok, err := fc.provider.Get(ctx, k)
	if err != nil || !ok {
		return false, false, err
	}
	v, err := fc.codec.Decode(raw)
	if err != nil {
		_ = fc.provider.Del(ctx, k) // self-heal
		fc.log.Debug("dropped undecodable validation flag", randselect.Fields{"key": k, "err": err})
		return false, false, nil
	}
	return v, true, nil
}

func (fc *Cache) GetOrCompute(ctx context.Context, page coherency.PageID, ttl time.Duration,
	compute func(context.Context) (bool, error)) (bool, bool, error) {
	if v, ok, err := fc.Peek(ctx, page); err == nil && ok {
		return v, true, nil
	} else if err != nil {
		fc.log.Debug("validation flag get failed; computing", randselect.Fields{"page": page, "err": err})
	}

	k := fc.key(page)
	res, err, _ := fc.flight.Do(k, func() (any, error) {
		v, err := compute(ctx)
		if err != nil {
			// not stored: the next request retries the lookup
			return false, err
		}
		raw, err := fc.codec.Encode(v)
		if err != nil {
			return v, nil
		}
		if ok, err := fc.provider.Set(ctx, k, raw, 1, ttl); err != nil {
			fc.log.Warn("validation flag set failed", randselect.Fields{"key": k, "err": err})
		} else if !ok {
			fc.log.Debug("validation flag set rejected by provider (pressure)", randselect.Fields{"key": k})
		}
		return v, nil
	})
	if err != nil {
		return false, false, err
	}
	return res.(bool), false, nil
}

func (fc *Cache) Delete(ctx context.Context, page coherency.PageID) error {
	return fc.provider.Del(ctx, fc.key(page))
}
