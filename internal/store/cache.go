package store

import (
	"bytes"
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// CachedBackend keeps recently used documents in memory in front of another
// Backend. The cache is only filled after the inner write succeeded, so a
// failed write never becomes visible to readers.
type CachedBackend struct {
	inner Backend
	cache *cache.Cache
}

// NewCachedBackend wraps inner with an expiring in-memory cache.
func NewCachedBackend(inner Backend, ttl, cleanup time.Duration) *CachedBackend {
	return &CachedBackend{
		inner: inner,
		cache: cache.New(ttl, cleanup),
	}
}

// Get serves key from memory when possible.
func (b *CachedBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if x, found := b.cache.Get(key); found {
		return bytes.Clone(x.([]byte)), nil
	}
	data, err := b.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	b.cache.Set(key, bytes.Clone(data), cache.DefaultExpiration)
	return data, nil
}

// Put writes through to the inner backend.
func (b *CachedBackend) Put(ctx context.Context, key string, data []byte) error {
	if err := b.inner.Put(ctx, key, data); err != nil {
		b.cache.Delete(key)
		return err
	}
	b.cache.Set(key, bytes.Clone(data), cache.DefaultExpiration)
	return nil
}

// Delete removes key from both layers.
func (b *CachedBackend) Delete(ctx context.Context, key string) error {
	b.cache.Delete(key)
	return b.inner.Delete(ctx, key)
}

// Ping checks the inner backend.
func (b *CachedBackend) Ping(ctx context.Context) error {
	return b.inner.Ping(ctx)
}

// Close flushes the cache and closes the inner backend.
func (b *CachedBackend) Close() error {
	b.cache.Flush()
	return b.inner.Close()
}
