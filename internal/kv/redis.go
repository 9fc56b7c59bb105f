package kv

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/watchhub/signalhub/internal/config"
)

const connsPerCPU = 10
const maxIdleTime = 10 * time.Minute

func makeKVFromRedis(ctx context.Context, cfg *config.Config) (KV, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password:        cfg.Redis.Password,
		PoolFIFO:        true,
		PoolSize:        runtime.GOMAXPROCS(0) * connsPerCPU,
		MinIdleConns:    runtime.GOMAXPROCS(0),
		ConnMaxIdleTime: maxIdleTime,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisKV{client: client}, nil
}

type redisKV struct {
	client *redis.Client
}

func (k *redisKV) Has(ctx context.Context, key string) (bool, error) {
	n, err := k.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("kv: has %q: %w", key, err)
	}
	return n > 0, nil
}

func (k *redisKV) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := k.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv: get %q: %w", key, err)
	}
	return v, nil
}

func (k *redisKV) Set(ctx context.Context, key string, value []byte) error {
	if err := k.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("kv: set %q: %w", key, err)
	}
	return nil
}

func (k *redisKV) Delete(ctx context.Context, key string) error {
	if err := k.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("kv: delete %q: %w", key, err)
	}
	return nil
}

func (k *redisKV) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return k.Delete(ctx, key)
	}
	ok, err := k.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return fmt.Errorf("kv: expire %q: %w", key, err)
	}
	if !ok {
		return ErrKeyNotFound
	}
	return nil
}

func (k *redisKV) Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
	if match == "" {
		match = "*"
	}
	keys, next, err := k.client.Scan(ctx, cursor, match, count).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("kv: scan %q: %w", match, err)
	}
	return keys, next, nil
}

func (k *redisKV) RPush(ctx context.Context, key string, value []byte) (int64, error) {
	n, err := k.client.RPush(ctx, key, value).Result()
	if err != nil {
		return 0, fmt.Errorf("kv: rpush %q: %w", key, err)
	}
	return n, nil
}

func (k *redisKV) LDrain(ctx context.Context, key string) ([][]byte, error) {
	pipe := k.client.TxPipeline()
	rangeCmd := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("kv: ldrain %q: %w", key, err)
	}
	values, err := rangeCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("kv: ldrain %q: %w", key, err)
	}
	out := make([][]byte, len(values))
	for i, v := range values {
		out[i] = []byte(v)
	}
	return out, nil
}

func (k *redisKV) HSet(ctx context.Context, key, field string, value []byte) error {
	if err := k.client.HSet(ctx, key, field, value).Err(); err != nil {
		return fmt.Errorf("kv: hset %q/%q: %w", key, field, err)
	}
	return nil
}

func (k *redisKV) HGet(ctx context.Context, key, field string) ([]byte, error) {
	v, err := k.client.HGet(ctx, key, field).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv: hget %q/%q: %w", key, field, err)
	}
	return v, nil
}

func (k *redisKV) HDel(ctx context.Context, key, field string) error {
	if err := k.client.HDel(ctx, key, field).Err(); err != nil {
		return fmt.Errorf("kv: hdel %q/%q: %w", key, field, err)
	}
	return nil
}

func (k *redisKV) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	fields, err := k.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("kv: hgetall %q: %w", key, err)
	}
	out := make(map[string][]byte, len(fields))
	for field, value := range fields {
		out[field] = []byte(value)
	}
	return out, nil
}

func (k *redisKV) Close() error {
	if err := k.client.Close(); err != nil {
		return fmt.Errorf("kv: close: %w", err)
	}
	return nil
}
