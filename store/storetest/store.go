// Package storetest provides an in-memory reference implementation of
// store.Store for unit tests, mirroring the persistence semantics of the
// gorm repository including optimistic locking and the size limit.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pitabwire/util"

	"github.com/shredbx/localize/config"
	"github.com/shredbx/localize/store"
	"github.com/shredbx/localize/translation"
)

// MemoryStore is a thread-safe in-memory Store.
type MemoryStore struct {
	mu            sync.Mutex
	records       map[string]*translation.Record
	maxValueBytes int

	// FailWith, when set, makes every operation return this error.
	FailWith error
}

// New creates an empty in-memory store with the default size limit.
func New() *MemoryStore {
	return &MemoryStore{
		records:       make(map[string]*translation.Record),
		maxValueBytes: config.DefaultMaxValueBytes,
	}
}

func (m *MemoryStore) Get(_ context.Context, key translation.Key) (*translation.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return nil, m.FailWith
	}

	record, ok := m.records[key.CacheKey()]
	if !ok {
		return nil, nil
	}
	clone := *record
	return &clone, nil
}

func (m *MemoryStore) GetAll(
	_ context.Context,
	namespace string,
	entityID *uuid.UUID,
) ([]*translation.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return nil, m.FailWith
	}

	entityRef := ""
	if entityID != nil {
		entityRef = entityID.String()
	}

	var records []*translation.Record
	for _, record := range m.records {
		if record.Namespace == namespace && record.EntityID == entityRef {
			clone := *record
			records = append(records, &clone)
		}
	}
	return records, nil
}

func (m *MemoryStore) Put(
	_ context.Context,
	key translation.Key,
	value, updatedBy string,
	expectedVersion *uint,
) (*translation.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return nil, m.FailWith
	}

	if len(value) > m.maxValueBytes {
		return nil, &translation.ValidationError{Reason: "value exceeds maximum size"}
	}

	existing, exists := m.records[key.CacheKey()]

	if expectedVersion != nil {
		if *expectedVersion == 0 && exists {
			return nil, &translation.ConcurrentModificationError{Key: key, ExpectedVersion: *expectedVersion}
		}
		if *expectedVersion > 0 && (!exists || existing.Version != *expectedVersion) {
			return nil, &translation.ConcurrentModificationError{Key: key, ExpectedVersion: *expectedVersion}
		}
	}

	if !exists {
		record := &translation.Record{
			BaseModel: translation.BaseModel{
				ID:         util.IDString(),
				CreatedAt:  time.Now(),
				ModifiedAt: time.Now(),
				Version:    1,
			},
			Namespace: key.Namespace,
			EntityID:  key.EntityRef(),
			Field:     key.Field,
			Locale:    key.Locale,
			Value:     value,
			UpdatedBy: updatedBy,
		}
		m.records[key.CacheKey()] = record
		clone := *record
		return &clone, nil
	}

	existing.Value = value
	existing.UpdatedBy = updatedBy
	existing.ModifiedAt = time.Now()
	existing.Version++
	clone := *existing
	return &clone, nil
}

// Len reports how many records the store holds.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

var _ store.Store = (*MemoryStore)(nil)
