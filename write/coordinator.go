// Package write coordinates translation writes: persistence through the
// store followed by conservative cache invalidation across every configured
// locale, and optionally an invalidation broadcast to other replicas.
package write

import (
	"context"

	"github.com/google/uuid"
	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/shredbx/localize/store"
	"github.com/shredbx/localize/translation"
)

const instrumentationName = "github.com/shredbx/localize/write"

// Invalidator is the resolver-owned hook removing cache entries for every
// locale of a (namespace, entity, field) triple.
type Invalidator interface {
	Invalidate(ctx context.Context, namespace string, entityID *uuid.UUID, field string)
	Locales() []string
}

// Coordinator validates and persists writes, then invalidates before
// returning. Authorization happens upstream; the coordinator trusts its
// caller.
type Coordinator struct {
	store       store.Store
	invalidator Invalidator
	broadcaster Broadcaster
	locales     []string

	tracer trace.Tracer
}

// NewCoordinator wires a write coordinator. broadcaster may be nil when
// cross-replica invalidation is not configured.
func NewCoordinator(translationStore store.Store, invalidator Invalidator, broadcaster Broadcaster) *Coordinator {
	return &Coordinator{
		store:       translationStore,
		invalidator: invalidator,
		broadcaster: broadcaster,
		locales:     invalidator.Locales(),

		tracer: otel.Tracer(instrumentationName),
	}
}

// Write persists the value under the key and invalidates the cache entry of
// every configured locale for the written triple before returning.
// Validation and concurrent-modification failures from the store propagate
// unchanged; cache and broadcast failures are logged and swallowed since a
// missed invalidation only ever causes staleness bounded by the TTL.
func (c *Coordinator) Write(
	ctx context.Context,
	key translation.Key,
	value, actingUser string,
	expectedVersion *uint,
) (*translation.Record, error) {
	ctx, span := c.tracer.Start(ctx, "Coordinator.Write")
	defer span.End()

	if err := key.Validate(c.locales); err != nil {
		return nil, err
	}

	record, err := c.store.Put(ctx, key, value, actingUser, expectedVersion)
	if err != nil {
		return nil, err
	}

	c.invalidator.Invalidate(ctx, key.Namespace, key.EntityID, key.Field)

	if c.broadcaster != nil {
		if pubErr := c.broadcaster.Publish(ctx, Invalidation{
			Namespace: key.Namespace,
			EntityID:  key.EntityRef(),
			Field:     key.Field,
			Locales:   c.locales,
		}); pubErr != nil {
			util.Log(ctx).WithError(pubErr).WithField("key", key.String()).
				Warn("failed to broadcast cache invalidation")
		}
	}

	return record, nil
}
