// Package pool manages gorm database connections for the translation store,
// with optional read replicas selected round-robin.
package pool

import (
	"context"
	"sync"
	"sync/atomic"

	"gorm.io/gorm"
)

// Pool hands out database handles for the translation store.
type Pool interface {
	DB(ctx context.Context, readOnly bool) *gorm.DB

	AddConnection(ctx context.Context, dsn string, readOnly bool, opts ...Option) error

	Migrate(ctx context.Context, models ...any) error

	Close(ctx context.Context)
}

type pool struct {
	readIdx     uint64       // atomic counter for round-robin
	writeIdx    uint64       // atomic counter for round-robin
	mu          sync.RWMutex // protects db slices
	allReadDBs  []*gorm.DB
	allWriteDBs []*gorm.DB
}

// NewPool creates an empty connection pool.
func NewPool(_ context.Context) Pool {
	return &pool{
		allReadDBs:  []*gorm.DB{},
		allWriteDBs: []*gorm.DB{},
	}
}

// AddConnection safely adds a DB connection to the pool.
func (s *pool) AddConnection(ctx context.Context, dsn string, readOnly bool, opts ...Option) error {
	poolOpts := defaultOptions()
	for _, opt := range opts {
		opt(poolOpts)
	}

	db, err := s.createConnection(ctx, dsn, poolOpts)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if readOnly {
		s.allReadDBs = append(s.allReadDBs, db)
	} else {
		s.allWriteDBs = append(s.allWriteDBs, db)
	}
	s.mu.Unlock()
	return nil
}

// DB returns a connection of the requested kind, falling back to a writable
// one when no replica is registered.
func (s *pool) DB(ctx context.Context, readOnly bool) *gorm.DB {
	var idx *uint64
	var selectedDB *gorm.DB

	s.mu.RLock()
	if readOnly {
		idx = &s.readIdx
		if len(s.allReadDBs) != 0 {
			selectedDB = s.selectOne(s.allReadDBs, idx)
		}
	}

	if selectedDB == nil {
		idx = &s.writeIdx
		selectedDB = s.selectOne(s.allWriteDBs, idx)
	}
	s.mu.RUnlock()

	if selectedDB == nil {
		return nil
	}

	return selectedDB.Session(&gorm.Session{NewDB: true}).WithContext(ctx)
}

// selectOne uses atomic round-robin for high concurrency.
func (s *pool) selectOne(dbs []*gorm.DB, idx *uint64) *gorm.DB {
	if len(dbs) == 0 {
		return nil
	}
	pos := atomic.AddUint64(idx, 1)
	return dbs[int(pos-1)%len(dbs)]
}

// Migrate auto-migrates the supplied models on the writable connection.
func (s *pool) Migrate(ctx context.Context, models ...any) error {
	db := s.DB(ctx, false)
	if db == nil {
		return ErrNoWritableDatabase
	}
	return db.AutoMigrate(models...)
}

func (s *pool) Close(_ context.Context) {
	s.mu.RLock()
	readDBs := append([]*gorm.DB(nil), s.allReadDBs...)
	writeDBs := append([]*gorm.DB(nil), s.allWriteDBs...)
	s.mu.RUnlock()

	for _, db := range readDBs {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	}
	for _, db := range writeDBs {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	}
}
