// Package kv is the Presence Store (spec.md §2.3, §6): a key-value layer
// holding ephemeral state the hub would rather lose than serve stale —
// online status, capability snapshots, tunnel correlation responses. None of
// it is consulted through the Persistence Store, and none of it survives a
// process restart when the in-memory backend is used.
package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/watchhub/signalhub/internal/config"
)

// KV is the Presence Store interface. Every method takes a context so
// callers can propagate cancellation/deadlines; the in-memory backend
// currently ignores it, the Redis backend honors it end to end.
type KV interface {
	Has(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error)

	// RPush appends a value to a list stored under key. Returns the new length.
	RPush(ctx context.Context, key string, value []byte) (int64, error)
	// LDrain atomically returns all elements of the list and deletes the key.
	LDrain(ctx context.Context, key string) ([][]byte, error)

	// HSet/HGet/HDel/HGetAll back the devices:online hash (spec.md §6): one
	// hash field per device ID, so a single key answers "which devices are
	// online" without a Scan over per-device keys.
	HSet(ctx context.Context, key, field string, value []byte) error
	HGet(ctx context.Context, key, field string) ([]byte, error)
	HDel(ctx context.Context, key, field string) error
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)

	Close() error
}

// MakeKV creates a new Presence Store client, backed by Redis when
// cfg.Redis.Enabled is set and by an in-process map otherwise. The in-process
// backend only makes sense for a single hub instance: it can't see presence
// state set by another instance, so cfg.Redis.Enabled must be true whenever
// the hub is deployed with more than one replica (spec.md §5).
func MakeKV(ctx context.Context, cfg *config.Config) (KV, error) {
	if cfg.Redis.Enabled {
		redisKV, err := makeKVFromRedis(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis kv: %w", err)
		}
		return redisKV, nil
	}

	return makeInMemoryKV(), nil
}
