// Package memo memoizes slow lookups such as EHR availability. Identical
// concurrent loads share one upstream call; each caller keeps its own
// cancellation scope through its context.
package memo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

type Options struct {
	TTL time.Duration
	// LoadTimeout bounds a shared load after every waiter has gone away.
	LoadTimeout time.Duration
	Logger      zerolog.Logger
}

// Stats counts cache outcomes since construction.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Shared int64 `json:"shared"`
	Errors int64 `json:"errors"`
}

// Cache memoizes values of type T. Values are stored as JSON so that a
// redis-backed store can be shared between processes.
type Cache[T any] struct {
	store       Store
	ttl         time.Duration
	loadTimeout time.Duration
	logger      zerolog.Logger
	group       singleflight.Group
	// gen advances on Invalidate and Purge. A load started under an older
	// generation returns its value to its waiters but is not stored.
	gen atomic.Uint64

	hits, misses, shared, errs atomic.Int64
}

func New[T any](store Store, opts Options) *Cache[T] {
	if opts.TTL <= 0 {
		opts.TTL = time.Minute
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 30 * time.Second
	}
	return &Cache[T]{
		store:       store,
		ttl:         opts.TTL,
		loadTimeout: opts.LoadTimeout,
		logger:      opts.Logger,
	}
}

// Get returns the cached value for key or runs load once for all concurrent
// callers of the same key. If ctx ends first Get returns ctx.Err(); the shared
// load keeps running for the remaining waiters. Failed loads are not cached.
func (c *Cache[T]) Get(ctx context.Context, key string, load func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if b, ok, err := c.store.Get(ctx, key); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("memo store read failed")
	} else if ok {
		var v T
		if err := json.Unmarshal(b, &v); err == nil {
			c.hits.Add(1)
			return v, nil
		}
		_ = c.store.Delete(ctx, key)
	}

	c.misses.Add(1)
	gen := c.gen.Load()
	ch := c.group.DoChan(key+"#"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		v, err := load(lctx)
		if err != nil {
			c.errs.Add(1)
			return v, err
		}
		if c.gen.Load() != gen {
			return v, nil
		}
		if b, err := json.Marshal(v); err == nil {
			if err := c.store.Set(lctx, key, b, c.ttl); err != nil {
				c.logger.Warn().Err(err).Str("key", key).Msg("memo store write failed")
			}
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.shared.Add(1)
		}
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Invalidate drops one key. Loads already in flight are not written back.
func (c *Cache[T]) Invalidate(ctx context.Context, key string) error {
	c.gen.Add(1)
	return c.store.Delete(ctx, key)
}

// Purge drops every cached value. Loads already in flight are not written
// back.
func (c *Cache[T]) Purge(ctx context.Context) error {
	c.gen.Add(1)
	return c.store.Purge(ctx)
}

func (c *Cache[T]) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Shared: c.shared.Load(),
		Errors: c.errs.Load(),
	}
}

// Key hashes the request identity (method, URL, body...) into a stable key.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}
