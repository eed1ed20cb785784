package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shredbx/localize/config"
	"github.com/shredbx/localize/store/pool"
	"github.com/shredbx/localize/translation"
)

const pgUniqueViolationCode = "23505"

// repository is the gorm-backed Store implementation.
type repository struct {
	dbPool        pool.Pool
	maxValueBytes int
}

// NewRepository creates a translation store over the supplied connection
// pool. maxValueBytes bounds accepted values; zero applies the default.
func NewRepository(dbPool pool.Pool, maxValueBytes int) Store {
	if maxValueBytes <= 0 {
		maxValueBytes = config.DefaultMaxValueBytes
	}
	return &repository{
		dbPool:        dbPool,
		maxValueBytes: maxValueBytes,
	}
}

// Migrate ensures the translation_records table exists.
func Migrate(ctx context.Context, dbPool pool.Pool) error {
	return dbPool.Migrate(ctx, &translation.Record{})
}

func (r *repository) Get(ctx context.Context, key translation.Key) (*translation.Record, error) {
	record := &translation.Record{}
	err := r.dbPool.DB(ctx, true).
		Where("namespace = ? AND entity_id = ? AND field = ? AND locale = ?",
			key.Namespace, key.EntityRef(), key.Field, key.Locale).
		First(record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func (r *repository) GetAll(
	ctx context.Context,
	namespace string,
	entityID *uuid.UUID,
) ([]*translation.Record, error) {
	entityRef := ""
	if entityID != nil {
		entityRef = entityID.String()
	}

	var records []*translation.Record
	err := r.dbPool.DB(ctx, true).
		Where("namespace = ? AND entity_id = ?", namespace, entityRef).
		Order("field, locale").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) Put(
	ctx context.Context,
	key translation.Key,
	value, updatedBy string,
	expectedVersion *uint,
) (*translation.Record, error) {
	if len(value) > r.maxValueBytes {
		return nil, &translation.ValidationError{
			Reason: "value exceeds maximum size",
		}
	}

	if expectedVersion == nil {
		return r.putUnconditional(ctx, key, value, updatedBy)
	}
	return r.putVersioned(ctx, key, value, updatedBy, *expectedVersion)
}

// putUnconditional is the last-write-wins administrative path: a single
// upsert on the composite key, bumping the version on conflict.
func (r *repository) putUnconditional(
	ctx context.Context,
	key translation.Key,
	value, updatedBy string,
) (*translation.Record, error) {
	record := newRecord(key, value, updatedBy)

	err := r.dbPool.DB(ctx, false).
		Clauses(
			clause.OnConflict{
				Columns: []clause.Column{
					{Name: "namespace"}, {Name: "entity_id"}, {Name: "field"}, {Name: "locale"},
				},
				DoUpdates: clause.Assignments(map[string]any{
					"value":       value,
					"updated_by":  updatedBy,
					"modified_at": time.Now(),
					"version":     gorm.Expr("translation_records.version + 1"),
				}),
			},
			clause.Returning{},
		).
		Create(record).Error
	if err != nil {
		return nil, err
	}
	return record, nil
}

// putVersioned performs optimistic concurrency control. expectedVersion 0
// asserts the record does not exist yet; any positive version guards an
// in-place update.
func (r *repository) putVersioned(
	ctx context.Context,
	key translation.Key,
	value, updatedBy string,
	expectedVersion uint,
) (*translation.Record, error) {
	if expectedVersion == 0 {
		record := newRecord(key, value, updatedBy)
		err := r.dbPool.DB(ctx, false).Create(record).Error
		if err != nil {
			if isUniqueViolation(err) {
				return nil, &translation.ConcurrentModificationError{Key: key, ExpectedVersion: expectedVersion}
			}
			return nil, err
		}
		return record, nil
	}

	record, err := r.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, &translation.ConcurrentModificationError{Key: key, ExpectedVersion: expectedVersion}
	}

	record.Value = value
	record.UpdatedBy = updatedBy

	// The version check ensures the record was not modified since the caller
	// read expectedVersion; BeforeUpdate bumps the version being written.
	result := r.dbPool.DB(ctx, false).
		Model(record).
		Select("value", "updated_by", "modified_at", "version").
		Where("id = ? AND version = ?", record.ID, expectedVersion).
		Updates(record)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, &translation.ConcurrentModificationError{Key: key, ExpectedVersion: expectedVersion}
	}

	return record, nil
}

func newRecord(key translation.Key, value, updatedBy string) *translation.Record {
	return &translation.Record{
		Namespace: key.Namespace,
		EntityID:  key.EntityRef(),
		Field:     key.Field,
		Locale:    key.Locale,
		Value:     value,
		UpdatedBy: updatedBy,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode
}
