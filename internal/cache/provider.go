// Package cache stores the loaded dataset and assistant sessions behind a
// small key/value interface backed by process memory or Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Provider is the key/value store shared by the dataset loader and the
// assistant session store.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Close() error
}

var (
	// ErrCacheMiss signals that a key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")
	// ErrCorruptEntry wraps values that no longer decode.
	ErrCorruptEntry = errors.New("corrupt cache entry")
)

// GetJSON reads key and decodes it into a T.
func GetJSON[T any](ctx context.Context, p Provider, key string) (T, error) {
	var v T
	data, err := p.Get(ctx, key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %s: %v", ErrCorruptEntry, key, err)
	}
	return v, nil
}

// SetJSON encodes v and stores it under key for ttl.
func SetJSON(ctx context.Context, p Provider, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return p.Set(ctx, key, data, ttl)
}

// NoopProvider stores nothing; every read misses.
type NoopProvider struct{}

func (NoopProvider) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (NoopProvider) Del(context.Context, string) error { return nil }

func (NoopProvider) Close() error { return nil }
