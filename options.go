package localize

import (
	"context"
	"fmt"
	"net/url"

	"github.com/shredbx/localize/cache"
	cacheredis "github.com/shredbx/localize/cache/redis"
	cachevalkey "github.com/shredbx/localize/cache/valkey"
	"github.com/shredbx/localize/store"
	"github.com/shredbx/localize/store/pool"
	"github.com/shredbx/localize/workerpool"
	"github.com/shredbx/localize/write"
)

// Option configures an Engine during construction.
type Option func(ctx context.Context, e *Engine) error

// DefaultCacheName is the registry name of the engine's caching tier.
const DefaultCacheName = "translations"

// WithRawCache injects a pre-built caching tier, replacing URI selection.
// This is how tests swap in deterministic or failing caches.
func WithRawCache(raw cache.RawCache) Option {
	return func(_ context.Context, e *Engine) error {
		e.rawCache = raw
		e.cacheMan.AddCache(DefaultCacheName, raw)
		return nil
	}
}

// WithStore injects a pre-built translation store, replacing the postgres
// repository.
func WithStore(s store.Store) Option {
	return func(_ context.Context, e *Engine) error {
		e.store = s
		return nil
	}
}

// WithDatabasePool injects an existing connection pool for the repository.
func WithDatabasePool(dbPool pool.Pool) Option {
	return func(ctx context.Context, e *Engine) error {
		e.store = store.NewRepository(dbPool, e.cfg.MaxValueBytes)
		return nil
	}
}

// WithWorkerManager injects an existing worker pool manager.
func WithWorkerManager(workMan workerpool.Manager) Option {
	return func(_ context.Context, e *Engine) error {
		e.workMan = workMan
		return nil
	}
}

// WithBroadcaster injects an invalidation broadcaster, replacing the NATS
// connection configured through NatsURL.
func WithBroadcaster(b write.Broadcaster) Option {
	return func(_ context.Context, e *Engine) error {
		e.broadcaster = b
		return nil
	}
}

// setupCache builds the caching tier from the configured URI scheme unless
// an option already supplied one.
func (e *Engine) setupCache(_ context.Context) error {
	if e.rawCache != nil {
		return nil
	}

	parsed, err := url.Parse(e.cfg.CacheURI)
	if err != nil {
		return fmt.Errorf("parse cache uri: %w", err)
	}

	var raw cache.RawCache
	switch parsed.Scheme {
	case "", "mem":
		raw = cache.NewInMemoryCache()
	case "redis":
		raw, err = cacheredis.New(cacheredis.Options{Addr: e.cfg.CacheURI})
	case "valkey":
		// The valkey client speaks the redis URI scheme.
		parsed.Scheme = "redis"
		raw, err = cachevalkey.New(
			cache.WithURI(parsed.String()),
			cache.WithName(DefaultCacheName),
			cache.WithMaxAge(e.cfg.CacheTTL),
		)
	default:
		return fmt.Errorf("unsupported cache scheme %q", parsed.Scheme)
	}
	if err != nil {
		return err
	}

	e.rawCache = raw
	e.cacheMan.AddCache(DefaultCacheName, raw)
	return nil
}

// setupStore connects the postgres repository unless an option already
// supplied a store.
func (e *Engine) setupStore(ctx context.Context) error {
	if e.store != nil {
		return nil
	}

	if e.cfg.DatabaseURL == "" {
		return fmt.Errorf("a database url or an injected store is required")
	}

	dbPool := pool.NewPool(ctx)
	if err := dbPool.AddConnection(ctx, e.cfg.DatabaseURL, false); err != nil {
		return err
	}
	if e.cfg.ReplicaDatabaseURL != "" {
		if err := dbPool.AddConnection(ctx, e.cfg.ReplicaDatabaseURL, true); err != nil {
			return err
		}
	}

	if err := store.Migrate(ctx, dbPool); err != nil {
		return err
	}

	e.closers = append(e.closers, dbPool.Close)
	e.store = store.NewRepository(dbPool, e.cfg.MaxValueBytes)
	return nil
}
