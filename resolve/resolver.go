// Package resolve implements the read path of the localization engine: cache
// first, then the store override, then a single base locale hop.
package resolve

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/shredbx/localize/cache"
	"github.com/shredbx/localize/store"
	"github.com/shredbx/localize/translation"
	"github.com/shredbx/localize/workerpool"
)

const instrumentationName = "github.com/shredbx/localize/resolve"

// Options configures a Resolver.
type Options struct {
	BaseLocale   string
	Locales      []string
	CacheTTL     time.Duration
	JitterPct    int
	CacheTimeout time.Duration
}

// Resolver serves resolved values with fallback semantics over an unreliable
// cache. A failing cache degrades latency only, never correctness.
type Resolver struct {
	store   store.Store
	cache   cache.Cache[translation.Key, translation.ResolvedValue]
	workMan workerpool.Manager
	opts    Options

	tracer        trace.Tracer
	cacheHits     metric.Int64Counter
	cacheMisses   metric.Int64Counter
	fallbacks     metric.Int64Counter
	degradedReads metric.Int64Counter
}

// NewResolver wires a resolver over the store and the raw caching tier.
// workMan may be nil, disabling background cache repopulation on bulk reads.
func NewResolver(translationStore store.Store, raw cache.RawCache, workMan workerpool.Manager, opts Options) *Resolver {
	if opts.CacheTimeout <= 0 {
		opts.CacheTimeout = 150 * time.Millisecond
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 15 * time.Minute
	}

	meter := otel.Meter(instrumentationName)
	cacheHits, _ := meter.Int64Counter("localize.resolver.cache_hits")
	cacheMisses, _ := meter.Int64Counter("localize.resolver.cache_misses")
	fallbacks, _ := meter.Int64Counter("localize.resolver.fallbacks")
	degradedReads, _ := meter.Int64Counter("localize.resolver.degraded_reads")

	return &Resolver{
		store:   translationStore,
		cache:   cache.NewGenericCache[translation.Key, translation.ResolvedValue](raw, translation.Key.CacheKey),
		workMan: workMan,
		opts:    opts,

		tracer:        otel.Tracer(instrumentationName),
		cacheHits:     cacheHits,
		cacheMisses:   cacheMisses,
		fallbacks:     fallbacks,
		degradedReads: degradedReads,
	}
}

// BaseLocale returns the terminal locale of the fallback chain.
func (r *Resolver) BaseLocale() string {
	return r.opts.BaseLocale
}

// Locales returns the configured locale set.
func (r *Resolver) Locales() []string {
	return r.opts.Locales
}

// Resolve returns the value for the key after applying the fallback chain:
// cache, override at the requested locale, then the base locale. Cache
// failures are absorbed as misses; the base locale is the single terminal
// hop. Returns translation.ErrNotFound when neither an override nor a base
// value exists.
func (r *Resolver) Resolve(ctx context.Context, key translation.Key) (*translation.ResolvedValue, error) {
	ctx, span := r.tracer.Start(ctx, "Resolver.Resolve")
	defer span.End()

	if err := key.Validate(r.opts.Locales); err != nil {
		return nil, err
	}

	degraded := false

	cacheCtx, cancel := context.WithTimeout(ctx, r.opts.CacheTimeout)
	cached, found, err := r.cache.Get(cacheCtx, key)
	cancel()
	switch {
	case err != nil:
		// Treat any cache failure as a miss and stay off the cache for the
		// rest of this call.
		degraded = true
		r.degradedReads.Add(ctx, 1)
		util.Log(ctx).WithError(err).WithField("key", key.String()).
			Warn("translation cache unavailable, serving from store")
	case found:
		r.cacheHits.Add(ctx, 1)
		return &cached, nil
	}

	r.cacheMisses.Add(ctx, 1)

	resolved, err := r.resolveFromStore(ctx, key)
	if err != nil {
		return nil, err
	}

	if !degraded {
		r.populate(ctx, key, *resolved)
	}

	return resolved, nil
}

// resolveFromStore reads the override for the key and falls back to the base
// locale once.
func (r *Resolver) resolveFromStore(ctx context.Context, key translation.Key) (*translation.ResolvedValue, error) {
	record, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if record.HasValue() {
		return &translation.ResolvedValue{
			Key:     key,
			Value:   record.Value,
			Source:  translation.SourceOverride,
			Version: record.Version,
		}, nil
	}

	if key.Locale != r.opts.BaseLocale {
		baseRecord, baseErr := r.store.Get(ctx, key.WithLocale(r.opts.BaseLocale))
		if baseErr != nil {
			return nil, baseErr
		}
		if baseRecord.HasValue() {
			r.fallbacks.Add(ctx, 1)
			return &translation.ResolvedValue{
				Key:     key,
				Value:   baseRecord.Value,
				Source:  translation.SourceFallback,
				Version: baseRecord.Version,
			}, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", translation.ErrNotFound, key)
}

// populate opportunistically caches a resolved value under the originally
// requested key. Failures are logged and swallowed.
func (r *Resolver) populate(ctx context.Context, key translation.Key, resolved translation.ResolvedValue) {
	cacheCtx, cancel := context.WithTimeout(ctx, r.opts.CacheTimeout)
	defer cancel()

	if err := r.cache.Set(cacheCtx, key, resolved, r.jitteredTTL()); err != nil {
		util.Log(ctx).WithError(err).WithField("key", key.String()).
			Warn("failed to populate translation cache")
	}
}

// jitteredTTL spreads entry expiry to avoid a synchronized stampede on the
// store.
func (r *Resolver) jitteredTTL() time.Duration {
	jitterPct := r.opts.JitterPct
	if jitterPct <= 0 {
		return r.opts.CacheTTL
	}

	maxJitter := int64(r.opts.CacheTTL) * int64(jitterPct) / 100
	if maxJitter <= 0 {
		return r.opts.CacheTTL
	}

	jitter := rand.Int64N(2*maxJitter+1) - maxJitter
	return r.opts.CacheTTL + time.Duration(jitter)
}

// ResolveAll bulk-renders every field of an entity in one locale from a
// single store round trip, applying the same per-field fallback as Resolve.
// Cache entries for the resolved keys are repopulated in the background.
func (r *Resolver) ResolveAll(
	ctx context.Context,
	namespace string,
	entityID *uuid.UUID,
	locale string,
) (map[string]*translation.ResolvedValue, error) {
	ctx, span := r.tracer.Start(ctx, "Resolver.ResolveAll")
	defer span.End()

	probe := translation.Key{Namespace: namespace, EntityID: entityID, Field: "-", Locale: locale}
	if err := probe.Validate(r.opts.Locales); err != nil {
		return nil, err
	}

	records, err := r.store.GetAll(ctx, namespace, entityID)
	if err != nil {
		return nil, err
	}

	byField := make(map[string]map[string]*translation.Record)
	for _, record := range records {
		locales, ok := byField[record.Field]
		if !ok {
			locales = make(map[string]*translation.Record)
			byField[record.Field] = locales
		}
		locales[record.Locale] = record
	}

	resolved := make(map[string]*translation.ResolvedValue, len(byField))
	for field, locales := range byField {
		key := translation.Key{Namespace: namespace, EntityID: entityID, Field: field, Locale: locale}

		if record := locales[locale]; record.HasValue() {
			resolved[field] = &translation.ResolvedValue{
				Key:     key,
				Value:   record.Value,
				Source:  translation.SourceOverride,
				Version: record.Version,
			}
			continue
		}

		if record := locales[r.opts.BaseLocale]; locale != r.opts.BaseLocale && record.HasValue() {
			r.fallbacks.Add(ctx, 1)
			resolved[field] = &translation.ResolvedValue{
				Key:     key,
				Value:   record.Value,
				Source:  translation.SourceFallback,
				Version: record.Version,
			}
		}
	}

	r.repopulateAsync(ctx, resolved)

	return resolved, nil
}

// repopulateAsync refreshes cache entries for bulk-resolved keys on the
// worker pool, best effort.
func (r *Resolver) repopulateAsync(ctx context.Context, resolved map[string]*translation.ResolvedValue) {
	if r.workMan == nil || len(resolved) == 0 {
		return
	}

	pool, err := r.workMan.GetPool()
	if err != nil {
		return
	}

	values := make([]translation.ResolvedValue, 0, len(resolved))
	for _, value := range resolved {
		values = append(values, *value)
	}

	submitErr := pool.Submit(ctx, func() {
		bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.CacheTimeout*time.Duration(len(values)+1))
		defer cancel()

		for _, value := range values {
			if setErr := r.cache.Set(bgCtx, value.Key, value, r.jitteredTTL()); setErr != nil {
				util.Log(bgCtx).WithError(setErr).WithField("key", value.Key.String()).
					Warn("failed to repopulate translation cache")
				return
			}
		}
	})
	if submitErr != nil {
		util.Log(ctx).WithError(submitErr).Debug("bulk cache repopulation skipped")
	}
}

// Invalidate removes the cache entries of every configured locale for the
// given triple. A base locale write can change the resolved value of every
// non-overridden locale, so invalidating only the written locale would leave
// stale reads until TTL expiry. Cache failures are logged and swallowed: a
// missed invalidation causes only a bounded staleness window.
func (r *Resolver) Invalidate(ctx context.Context, namespace string, entityID *uuid.UUID, field string) {
	for _, locale := range r.opts.Locales {
		key := translation.Key{Namespace: namespace, EntityID: entityID, Field: field, Locale: locale}

		cacheCtx, cancel := context.WithTimeout(ctx, r.opts.CacheTimeout)
		err := r.cache.Delete(cacheCtx, key)
		cancel()
		if err != nil {
			util.Log(ctx).WithError(err).WithField("key", key.String()).
				Warn("failed to invalidate translation cache entry")
		}
	}
}
