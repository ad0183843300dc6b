package genstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares page generations across replicas and survives restarts.
// With a TTL, generation keys expire after ttl without bumps; readers then
// observe gen=0 and stale entries self-heal on the next bump.
type Redis struct {
	rdb redis.UniversalClient
	ns  string
	ttl time.Duration
}

var _ GenStore = (*Redis)(nil)

// NewRedis creates a Redis-backed generation store. ttl <= 0 disables expiry.
func NewRedis(client redis.UniversalClient, namespace string, ttl time.Duration) *Redis {
	return &Redis{rdb: client, ns: namespace, ttl: ttl}
}

func (s *Redis) key(k string) string { return "gen:" + s.ns + ":" + k }

func (s *Redis) Snapshot(ctx context.Context, pageKey string) (uint64, error) {
	res, err := s.rdb.Get(ctx, s.key(pageKey)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	u, err := strconv.ParseUint(res, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis gen parse: %w", err)
	}
	return u, nil
}

// Bump increments the generation. With a TTL, INCR and EXPIRE share one
// pipelined round-trip.
func (s *Redis) Bump(ctx context.Context, pageKey string) (uint64, error) {
	k := s.key(pageKey)
	if s.ttl <= 0 {
		return s.rdb.Incr(ctx, k).Uint64()
	}
	var incr *redis.IntCmd
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return uint64(incr.Val()), nil
}

func (s *Redis) Cleanup(time.Duration) {} // Redis expiry handles it

func (s *Redis) Close(context.Context) error { return s.rdb.Close() }
