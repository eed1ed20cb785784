// Package localize is a localized content resolution and caching engine. It
// serves per-locale text values with a single-hop fallback to the base
// locale, a best-effort TTL-bounded caching tier in front of a durable
// postgres store, and conservative cache invalidation on every write.
package localize

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pitabwire/util"

	"github.com/shredbx/localize/cache"
	"github.com/shredbx/localize/config"
	"github.com/shredbx/localize/resolve"
	"github.com/shredbx/localize/store"
	"github.com/shredbx/localize/store/seed"
	"github.com/shredbx/localize/translation"
	"github.com/shredbx/localize/workerpool"
	"github.com/shredbx/localize/write"
)

// Engine holds together the translation store, the caching tier, the
// resolver and the write coordinator. An instance is scoped to stay for the
// lifetime of the application.
type Engine struct {
	cfg *config.Localization

	rawCache    cache.RawCache
	cacheMan    cache.Manager
	store       store.Store
	resolver    *resolve.Resolver
	coordinator *write.Coordinator
	broadcaster write.Broadcaster
	workMan     workerpool.Manager

	closers []func(ctx context.Context)
}

// New creates an engine from the configuration and options. Unless
// overridden by options, the caching tier is selected by the CacheURI scheme
// and the store connects to DatabaseURL.
func New(ctx context.Context, cfg *config.Localization, opts ...Option) (*Engine, error) {
	if cfg == nil {
		loaded, err := config.FromEnv[config.Localization]()
		if err != nil {
			return nil, err
		}
		cfg = &loaded
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg, cacheMan: cache.NewManager()}

	for _, opt := range opts {
		if err := opt(ctx, e); err != nil {
			return nil, err
		}
	}

	if err := e.setupWorkerPool(ctx); err != nil {
		return nil, err
	}
	if err := e.setupCache(ctx); err != nil {
		return nil, err
	}
	if err := e.setupStore(ctx); err != nil {
		return nil, err
	}

	e.resolver = resolve.NewResolver(e.store, e.rawCache, e.workMan, resolve.Options{
		BaseLocale:   cfg.BaseLocale,
		Locales:      cfg.Locales,
		CacheTTL:     cfg.CacheTTL,
		JitterPct:    cfg.CacheTTLJitterPct,
		CacheTimeout: cfg.CacheOpTimeout,
	})

	if err := e.setupBroadcast(ctx); err != nil {
		return nil, err
	}

	e.coordinator = write.NewCoordinator(e.store, e.resolver, e.broadcaster)

	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() *config.Localization {
	return e.cfg
}

// Resolver exposes the read path.
func (e *Engine) Resolver() *resolve.Resolver {
	return e.resolver
}

// Store exposes the underlying translation store.
func (e *Engine) Store() store.Store {
	return e.store
}

// Resolve returns the value for the key after applying the fallback chain.
func (e *Engine) Resolve(ctx context.Context, key translation.Key) (*translation.ResolvedValue, error) {
	return e.resolver.Resolve(ctx, key)
}

// ResolveAll bulk-renders every field of an entity in one locale.
func (e *Engine) ResolveAll(
	ctx context.Context,
	namespace string,
	entityID *uuid.UUID,
	locale string,
) (map[string]*translation.ResolvedValue, error) {
	return e.resolver.ResolveAll(ctx, namespace, entityID, locale)
}

// Write persists a translation value and invalidates every locale's cache
// entry for the written triple before returning. Authorization is the
// caller's responsibility.
func (e *Engine) Write(
	ctx context.Context,
	key translation.Key,
	value, actingUser string,
	expectedVersion *uint,
) (*translation.Record, error) {
	return e.coordinator.Write(ctx, key, value, actingUser, expectedVersion)
}

// Seeder returns a bulk seeder for the given namespace, writing through the
// last-write-wins store path.
func (e *Engine) Seeder(namespace string) *seed.Seeder {
	return seed.NewSeeder(e.store, e.workMan, namespace)
}

// MatchLocale maps a requested language tag onto the configured locale set.
func (e *Engine) MatchLocale(requested string) string {
	return e.cfg.MatchLocale(requested)
}

// Stop releases every resource held by the engine.
func (e *Engine) Stop(ctx context.Context) {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i](ctx)
	}

	if e.broadcaster != nil {
		e.broadcaster.Close()
	}
	if e.workMan != nil {
		_ = e.workMan.Shutdown(ctx)
	}
	if err := e.cacheMan.Close(); err != nil {
		util.Log(ctx).WithError(err).Warn("failed to close caches")
	}
}

func (e *Engine) setupWorkerPool(ctx context.Context) error {
	if e.workMan != nil {
		return nil
	}

	workMan, err := workerpool.NewManager(ctx, workerpool.WithCapacity(e.cfg.WorkerPoolSize))
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	e.workMan = workMan
	return nil
}

func (e *Engine) setupBroadcast(ctx context.Context) error {
	if e.broadcaster == nil && e.cfg.NatsURL != "" {
		broadcaster, err := write.NewNatsBroadcaster(e.cfg.NatsURL)
		if err != nil {
			return fmt.Errorf("create invalidation broadcaster: %w", err)
		}
		e.broadcaster = broadcaster
	}

	if e.broadcaster == nil {
		return nil
	}

	// Apply invalidations from other replicas to the local caching tier.
	if err := write.Subscribe(ctx, e.broadcaster, e.resolver); err != nil {
		util.Log(ctx).WithError(err).Warn("invalidation subscription unavailable")
	}
	return nil
}
