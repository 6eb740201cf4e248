package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// Store is a byte-value cache with per-entry expiry
type Store interface {
	// Get returns the value for key; ok is false on a miss or an expired entry
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Health(ctx context.Context) error
	Close() error
}

// DefaultComputeTimeout bounds one shared computation
const DefaultComputeTimeout = 45 * time.Second

// Memoizer caches the result of a computation per key.
// Concurrent misses on the same key share one computation.
type Memoizer struct {
	store   Store
	ttl     time.Duration
	timeout time.Duration
	group   singleflight.Group
}

// NewMemoizer creates a memoizer writing entries with the given TTL
func NewMemoizer(store Store, ttl time.Duration) *Memoizer {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Memoizer{
		store:   store,
		ttl:     ttl,
		timeout: DefaultComputeTimeout,
	}
}

// TTL returns the lifetime of memoized values
func (m *Memoizer) TTL() time.Duration {
	return m.ttl
}

// Cached reports whether key currently holds a value
func (m *Memoizer) Cached(ctx context.Context, key string) bool {
	_, ok := m.lookup(ctx, key)
	return ok
}

// Do returns the cached value for key or computes it with fn.
// Errors from fn are returned to every waiting caller and never cached.
// Store failures are logged and treated as a miss.
//
// fn runs on a context detached from any single caller and bounded by the
// compute timeout; a caller whose ctx ends stops waiting without failing
// the others.
func (m *Memoizer) Do(ctx context.Context, key string, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	if value, ok := m.lookup(ctx, key); ok {
		return value, nil
	}

	results := m.group.DoChan(key, func() (interface{}, error) {
		computeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()

		// Another caller may have filled the entry while we waited
		if value, ok := m.lookup(computeCtx, key); ok {
			return value, nil
		}

		value, err := fn(computeCtx)
		if err != nil {
			return nil, err
		}

		if err := m.store.Set(computeCtx, key, value, m.ttl); err != nil {
			slog.Warn("Cache write failed", "key", key, "error", err)
		}
		return value, nil
	})

	var res singleflight.Result
	select {
	case res = <-results:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}

	value, ok := res.Val.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected type from memoizer: got %T", res.Val)
	}
	if res.Shared {
		slog.Debug("Cache miss shared with concurrent caller", "key", key)
	}
	return value, nil
}

func (m *Memoizer) lookup(ctx context.Context, key string) ([]byte, bool) {
	value, ok, err := m.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Warn("Cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	return value, ok
}
