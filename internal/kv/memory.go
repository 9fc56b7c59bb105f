package kv

import (
	"context"
	"errors"
	"path"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// ErrKeyNotFound is returned by Get/HGet when the key or field is absent or
// has expired.
var ErrKeyNotFound = errors.New("kv: key not found")

// entry is one Presence Store row. A single type backs plain values, lists,
// and hashes because the interface never mixes operations across kinds for
// the same key in practice, and it keeps the map itself to one shard set.
type entry struct {
	mu    sync.Mutex
	value []byte
	list  [][]byte
	hash  map[string][]byte

	expiresAt time.Time // zero means no expiry
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

type inMemoryKV struct {
	data *xsync.Map[string, *entry]
}

func makeInMemoryKV() KV {
	return &inMemoryKV{
		data: xsync.NewMap[string, *entry](),
	}
}

func (k *inMemoryKV) load(key string) (*entry, bool) {
	e, ok := k.data.Load(key)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	expired := e.expired(time.Now())
	e.mu.Unlock()
	if expired {
		k.data.Delete(key)
		return nil, false
	}
	return e, true
}

func (k *inMemoryKV) Has(_ context.Context, key string) (bool, error) {
	_, ok := k.load(key)
	return ok, nil
}

func (k *inMemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := k.load(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value, nil
}

func (k *inMemoryKV) Set(_ context.Context, key string, value []byte) error {
	e, _ := k.data.LoadOrStore(key, &entry{})
	e.mu.Lock()
	e.value = value
	e.expiresAt = time.Time{}
	e.mu.Unlock()
	return nil
}

func (k *inMemoryKV) Delete(_ context.Context, key string) error {
	k.data.Delete(key)
	return nil
}

func (k *inMemoryKV) Expire(_ context.Context, key string, ttl time.Duration) error {
	e, ok := k.load(key)
	if !ok {
		return ErrKeyNotFound
	}
	if ttl <= 0 {
		k.data.Delete(key)
		return nil
	}
	e.mu.Lock()
	e.expiresAt = time.Now().Add(ttl)
	e.mu.Unlock()
	return nil
}

func (k *inMemoryKV) Scan(_ context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
	now := time.Now()
	var keys []string
	k.data.Range(func(key string, e *entry) bool {
		e.mu.Lock()
		expired := e.expired(now)
		e.mu.Unlock()
		if expired {
			return true
		}
		if match == "" {
			keys = append(keys, key)
			return true
		}
		if ok, err := path.Match(match, key); err == nil && ok {
			keys = append(keys, key)
		}
		return true
	})
	// The in-memory backend has no pagination state; it always returns
	// every matching key in one pass and a zero cursor, matching Redis's
	// SCAN contract for "iteration complete".
	_ = count
	return keys, 0, nil
}

func (k *inMemoryKV) RPush(_ context.Context, key string, value []byte) (int64, error) {
	e, _ := k.data.LoadOrStore(key, &entry{})
	e.mu.Lock()
	e.list = append(e.list, value)
	n := int64(len(e.list))
	e.mu.Unlock()
	return n, nil
}

func (k *inMemoryKV) LDrain(_ context.Context, key string) ([][]byte, error) {
	e, ok := k.data.Load(key)
	if !ok {
		return nil, nil
	}
	e.mu.Lock()
	list := e.list
	e.mu.Unlock()
	k.data.Delete(key)
	return list, nil
}

func (k *inMemoryKV) HSet(_ context.Context, key, field string, value []byte) error {
	e, _ := k.data.LoadOrStore(key, &entry{})
	e.mu.Lock()
	if e.hash == nil {
		e.hash = make(map[string][]byte)
	}
	e.hash[field] = value
	e.mu.Unlock()
	return nil
}

func (k *inMemoryKV) HGet(_ context.Context, key, field string) ([]byte, error) {
	e, ok := k.load(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.hash[field]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return v, nil
}

func (k *inMemoryKV) HDel(_ context.Context, key, field string) error {
	e, ok := k.load(key)
	if !ok {
		return nil
	}
	e.mu.Lock()
	delete(e.hash, field)
	e.mu.Unlock()
	return nil
}

func (k *inMemoryKV) HGetAll(_ context.Context, key string) (map[string][]byte, error) {
	e, ok := k.load(key)
	if !ok {
		return map[string][]byte{}, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string][]byte, len(e.hash))
	for field, value := range e.hash {
		out[field] = value
	}
	return out, nil
}

func (k *inMemoryKV) Close() error {
	return nil
}
