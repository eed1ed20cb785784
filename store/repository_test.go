package store_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/shredbx/localize/config"
	"github.com/shredbx/localize/store"
	"github.com/shredbx/localize/store/pool"
	"github.com/shredbx/localize/translation"
)

const postgresImage = "postgres:latest"

// RepositorySuite exercises the gorm-backed store against a real postgres
// instance. It needs a docker daemon; run with -short to skip.
type RepositorySuite struct {
	suite.Suite

	ctx       context.Context
	container *tcPostgres.PostgresContainer
	dbPool    pool.Pool
	store     store.Store
}

func TestRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration suite in short mode")
	}
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := tcPostgres.Run(s.ctx, postgresImage,
		tcPostgres.WithDatabase("localize_test"),
		tcPostgres.WithUsername("localize"),
		tcPostgres.WithPassword("l0c@lize"),
		tcPostgres.BasicWaitStrategies(),
		tcPostgres.WithSQLDriver("pgx"),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.dbPool = pool.NewPool(s.ctx)
	s.Require().NoError(s.dbPool.AddConnection(s.ctx, dsn, false))
	s.Require().NoError(store.Migrate(s.ctx, s.dbPool))

	s.store = store.NewRepository(s.dbPool, config.DefaultMaxValueBytes)
}

func (s *RepositorySuite) TearDownSuite() {
	if s.dbPool != nil {
		s.dbPool.Close(s.ctx)
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(s.ctx))
	}
}

func (s *RepositorySuite) TestGetMissingReturnsNil() {
	record, err := s.store.Get(s.ctx, translation.NewKey("repo-suite", "missing.field", "en"))
	s.Require().NoError(err)
	s.Nil(record)
}

func (s *RepositorySuite) TestPutAndGetRoundTrip() {
	key := translation.NewKey("repo-suite", "roundtrip.title", "en")

	created, err := s.store.Put(s.ctx, key, "Welcome", "admin", nil)
	s.Require().NoError(err)
	s.Equal(uint(1), created.Version)
	s.NotEmpty(created.ID)

	fetched, err := s.store.Get(s.ctx, key)
	s.Require().NoError(err)
	s.Require().NotNil(fetched)
	s.Equal("Welcome", fetched.Value)
	s.Equal("admin", fetched.UpdatedBy)
	s.Equal(key, fetched.Key())
}

func (s *RepositorySuite) TestUnconditionalPutIncrementsVersion() {
	key := translation.NewKey("repo-suite", "lww.title", "en")

	first, err := s.store.Put(s.ctx, key, "one", "a", nil)
	s.Require().NoError(err)
	s.Equal(uint(1), first.Version)

	second, err := s.store.Put(s.ctx, key, "two", "b", nil)
	s.Require().NoError(err)
	s.Equal(uint(2), second.Version)
	s.Equal(first.ID, second.ID)

	fetched, err := s.store.Get(s.ctx, key)
	s.Require().NoError(err)
	s.Equal("two", fetched.Value)
	s.Equal("b", fetched.UpdatedBy)
}

func (s *RepositorySuite) TestExpectAbsentCreate() {
	key := translation.NewKey("repo-suite", "fresh.title", "en")

	zero := uint(0)
	created, err := s.store.Put(s.ctx, key, "brand new", "admin", &zero)
	s.Require().NoError(err)
	s.Equal(uint(1), created.Version)

	// A second expect-absent write on the same key loses.
	_, err = s.store.Put(s.ctx, key, "too late", "editor", &zero)
	s.Require().Error(err)
	s.True(translation.ErrorIsConcurrentModification(err))
}

func (s *RepositorySuite) TestVersionedUpdate() {
	key := translation.NewKey("repo-suite", "versioned.title", "en")

	created, err := s.store.Put(s.ctx, key, "v1", "admin", nil)
	s.Require().NoError(err)

	expected := created.Version
	updated, err := s.store.Put(s.ctx, key, "v2", "editor", &expected)
	s.Require().NoError(err)
	s.Equal(created.Version+1, updated.Version)

	// The stale writer is rejected and nothing changes.
	_, err = s.store.Put(s.ctx, key, "stale", "laggard", &expected)
	s.Require().Error(err)
	s.True(translation.ErrorIsConcurrentModification(err))

	fetched, err := s.store.Get(s.ctx, key)
	s.Require().NoError(err)
	s.Equal("v2", fetched.Value)
}

func (s *RepositorySuite) TestVersionedUpdateOnMissingRecord() {
	expected := uint(3)
	_, err := s.store.Put(s.ctx, translation.NewKey("repo-suite", "ghost.title", "en"), "x", "admin", &expected)
	s.Require().Error(err)
	s.True(translation.ErrorIsConcurrentModification(err))
}

func (s *RepositorySuite) TestOversizedValueRejectedBeforeWrite() {
	key := translation.NewKey("repo-suite", "oversized.title", "en")

	_, err := s.store.Put(s.ctx, key, strings.Repeat("x", config.DefaultMaxValueBytes+1), "admin", nil)
	s.Require().Error(err)
	s.True(translation.ErrorIsValidation(err))

	record, err := s.store.Get(s.ctx, key)
	s.Require().NoError(err)
	s.Nil(record)
}

func (s *RepositorySuite) TestValueAtExactLimit() {
	key := translation.NewKey("repo-suite", "limit.title", "en")

	record, err := s.store.Put(s.ctx, key, strings.Repeat("x", config.DefaultMaxValueBytes), "admin", nil)
	s.Require().NoError(err)
	s.Len(record.Value, config.DefaultMaxValueBytes)
}

func (s *RepositorySuite) TestEmptyValueIsStoredNotDeleted() {
	key := translation.NewKey("repo-suite", "cleared.title", "th")

	_, err := s.store.Put(s.ctx, key, "ชื่อ", "admin", nil)
	s.Require().NoError(err)

	cleared, err := s.store.Put(s.ctx, key, "", "admin", nil)
	s.Require().NoError(err)
	s.Equal(uint(2), cleared.Version)

	fetched, err := s.store.Get(s.ctx, key)
	s.Require().NoError(err)
	s.Require().NotNil(fetched)
	s.Empty(fetched.Value)
	s.False(fetched.HasValue())
}

func (s *RepositorySuite) TestEntityScopedKeysAreDistinct() {
	entityA := uuid.New()
	entityB := uuid.New()

	keyA := translation.NewEntityKey("properties", entityA, "name", "en")
	keyB := translation.NewEntityKey("properties", entityB, "name", "en")
	global := translation.NewKey("properties", "name", "en")

	_, err := s.store.Put(s.ctx, keyA, "Riverside Villa", "admin", nil)
	s.Require().NoError(err)
	_, err = s.store.Put(s.ctx, keyB, "Hilltop Condo", "admin", nil)
	s.Require().NoError(err)
	_, err = s.store.Put(s.ctx, global, "Property", "admin", nil)
	s.Require().NoError(err)

	fetchedA, err := s.store.Get(s.ctx, keyA)
	s.Require().NoError(err)
	s.Equal("Riverside Villa", fetchedA.Value)

	fetchedB, err := s.store.Get(s.ctx, keyB)
	s.Require().NoError(err)
	s.Equal("Hilltop Condo", fetchedB.Value)

	fetchedGlobal, err := s.store.Get(s.ctx, global)
	s.Require().NoError(err)
	s.Equal("Property", fetchedGlobal.Value)
}

func (s *RepositorySuite) TestGetAllScopesByEntity() {
	entity := uuid.New()

	_, err := s.store.Put(s.ctx, translation.NewEntityKey("listings", entity, "name", "en"), "Cozy Loft", "admin", nil)
	s.Require().NoError(err)
	_, err = s.store.Put(s.ctx, translation.NewEntityKey("listings", entity, "name", "th"), "ลอฟท์", "admin", nil)
	s.Require().NoError(err)
	_, err = s.store.Put(s.ctx, translation.NewEntityKey("listings", entity, "summary", "en"), "Bright and airy", "admin", nil)
	s.Require().NoError(err)
	_, err = s.store.Put(s.ctx, translation.NewKey("listings", "name", "en"), "Listing", "admin", nil)
	s.Require().NoError(err)

	records, err := s.store.GetAll(s.ctx, "listings", &entity)
	s.Require().NoError(err)
	s.Len(records, 3)
	for _, record := range records {
		s.Equal(entity.String(), record.EntityID)
	}

	namespaceWide, err := s.store.GetAll(s.ctx, "listings", nil)
	s.Require().NoError(err)
	s.Len(namespaceWide, 1)
	s.Equal("Listing", namespaceWide[0].Value)
}

func (s *RepositorySuite) TestConcurrentGuardedWritersExactlyOneWins() {
	key := translation.NewKey("repo-suite", "contended.title", "en")

	created, err := s.store.Put(s.ctx, key, "base", "admin", nil)
	s.Require().NoError(err)

	const writers = 8
	results := make(chan error, writers)
	for i := 0; i < writers; i++ {
		go func() {
			expected := created.Version
			ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
			defer cancel()
			_, putErr := s.store.Put(ctx, key, "contender", "editor", &expected)
			results <- putErr
		}()
	}

	winners := 0
	for i := 0; i < writers; i++ {
		err = <-results
		if err == nil {
			winners++
			continue
		}
		s.True(translation.ErrorIsConcurrentModification(err), "unexpected error: %v", err)
	}
	s.Equal(1, winners)
}
