// Package store implements the durable translation store: one row per
// translation key, point lookups, bulk reads and optimistic-concurrency
// writes on postgres.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/shredbx/localize/translation"
)

// Store is the source of truth for translation records. Cache entries are
// always reconstructible from it.
type Store interface {
	// Get returns the record for the key, or nil when none exists.
	Get(ctx context.Context, key translation.Key) (*translation.Record, error)

	// GetAll returns every record of every locale for the given namespace
	// and entity, nil entityID addressing global keys.
	GetAll(ctx context.Context, namespace string, entityID *uuid.UUID) ([]*translation.Record, error)

	// Put stores a value under the key. With expectedVersion set it performs
	// optimistic concurrency control and fails with a
	// ConcurrentModificationError on mismatch; without it the write is an
	// unconditional last-write-wins upsert. Values over the configured
	// maximum are rejected with a ValidationError before any I/O.
	Put(
		ctx context.Context,
		key translation.Key,
		value, updatedBy string,
		expectedVersion *uint,
	) (*translation.Record, error)
}
