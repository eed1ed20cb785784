package resolve_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/shredbx/localize/cache"
	"github.com/shredbx/localize/resolve"
	"github.com/shredbx/localize/store/storetest"
	"github.com/shredbx/localize/translation"
)

var errCacheDown = errors.New("connection refused")

// failingCache simulates an unavailable caching tier while counting calls.
type failingCache struct {
	mu       sync.Mutex
	getCalls int
	setCalls int
}

func (f *failingCache) Get(context.Context, string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	return nil, false, errCacheDown
}

func (f *failingCache) Set(context.Context, string, []byte, time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	return errCacheDown
}

func (f *failingCache) Delete(context.Context, string) error  { return errCacheDown }
func (f *failingCache) Exists(context.Context, string) (bool, error) {
	return false, errCacheDown
}
func (f *failingCache) Flush(context.Context) error { return errCacheDown }
func (f *failingCache) Close() error                { return nil }

func (f *failingCache) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls, f.setCalls
}

type ResolverSuite struct {
	suite.Suite

	ctx   context.Context
	store *storetest.MemoryStore
	raw   cache.RawCache
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = storetest.New()
	s.raw = cache.NewInMemoryCache()
}

func (s *ResolverSuite) TearDownTest() {
	s.NoError(s.raw.Close())
}

func (s *ResolverSuite) newResolver() *resolve.Resolver {
	return resolve.NewResolver(s.store, s.raw, nil, resolve.Options{
		BaseLocale: "en",
		Locales:    []string{"en", "th"},
		CacheTTL:   time.Minute,
		JitterPct:  10,
	})
}

func (s *ResolverSuite) seed(key translation.Key, value string) {
	_, err := s.store.Put(s.ctx, key, value, "seeder", nil)
	s.Require().NoError(err)
}

func (s *ResolverSuite) TestFallbackToBaseLocale() {
	key := translation.NewKey("content-dictionary", "homepage.title", "en")
	s.seed(key, "Welcome")

	resolver := s.newResolver()

	resolved, err := resolver.Resolve(s.ctx, key.WithLocale("th"))
	s.Require().NoError(err)
	s.Equal("Welcome", resolved.Value)
	s.Equal(translation.SourceFallback, resolved.Source)

	// The cache entry lands under the originally requested key.
	_, found, err := s.raw.Get(s.ctx, key.WithLocale("th").CacheKey())
	s.NoError(err)
	s.True(found)
	_, found, err = s.raw.Get(s.ctx, key.CacheKey())
	s.NoError(err)
	s.False(found)
}

func (s *ResolverSuite) TestOverridePrecedence() {
	key := translation.NewKey("content-dictionary", "homepage.title", "en")
	s.seed(key, "Welcome")
	s.seed(key.WithLocale("th"), "ยินดีต้อนรับ")

	resolver := s.newResolver()

	resolved, err := resolver.Resolve(s.ctx, key.WithLocale("th"))
	s.Require().NoError(err)
	s.Equal("ยินดีต้อนรับ", resolved.Value)
	s.Equal(translation.SourceOverride, resolved.Source)

	base, err := resolver.Resolve(s.ctx, key)
	s.Require().NoError(err)
	s.Equal("Welcome", base.Value)
	s.Equal(translation.SourceOverride, base.Source)
}

func (s *ResolverSuite) TestEmptyOverrideResolvesAsAbsent() {
	key := translation.NewKey("content-dictionary", "homepage.title", "en")
	s.seed(key, "Welcome")
	s.seed(key.WithLocale("th"), "")

	resolved, err := s.newResolver().Resolve(s.ctx, key.WithLocale("th"))
	s.Require().NoError(err)
	s.Equal("Welcome", resolved.Value)
	s.Equal(translation.SourceFallback, resolved.Source)
}

func (s *ResolverSuite) TestNotFoundWhenBaseMissing() {
	// A sideways locale value must not satisfy a request for another locale.
	key := translation.NewKey("content-dictionary", "homepage.subtitle", "th")
	s.seed(key, "คำบรรยาย")

	resolver := s.newResolver()

	_, err := resolver.Resolve(s.ctx, key.WithLocale("en"))
	s.Require().Error(err)
	s.True(translation.ErrorIsNotFound(err))

	_, err = resolver.Resolve(s.ctx, translation.NewKey("content-dictionary", "absent", "th"))
	s.Require().Error(err)
	s.True(translation.ErrorIsNotFound(err))
}

func (s *ResolverSuite) TestUnconfiguredLocaleRejected() {
	_, err := s.newResolver().Resolve(s.ctx, translation.NewKey("content-dictionary", "homepage.title", "fr"))
	s.Require().Error(err)
	s.True(translation.ErrorIsValidation(err))
}

func (s *ResolverSuite) TestCacheHitSkipsStore() {
	key := translation.NewKey("content-dictionary", "homepage.title", "en")
	s.seed(key, "Welcome")

	resolver := s.newResolver()

	first, err := resolver.Resolve(s.ctx, key.WithLocale("th"))
	s.Require().NoError(err)

	// Mutate the store behind the cache's back; without invalidation the
	// cached resolution keeps serving.
	s.seed(key, "Changed")

	second, err := resolver.Resolve(s.ctx, key.WithLocale("th"))
	s.Require().NoError(err)
	s.Equal(first.Value, second.Value)
	s.Equal(first.Source, second.Source)
}

func (s *ResolverSuite) TestIdempotentReads() {
	key := translation.NewKey("content-dictionary", "homepage.title", "en")
	s.seed(key, "Welcome")

	resolver := s.newResolver()

	first, err := resolver.Resolve(s.ctx, key.WithLocale("th"))
	s.Require().NoError(err)

	for range 5 {
		next, nextErr := resolver.Resolve(s.ctx, key.WithLocale("th"))
		s.Require().NoError(nextErr)
		s.Equal(first.Value, next.Value)
		s.Equal(first.Source, next.Source)
		s.Equal(first.Version, next.Version)
	}
}

func (s *ResolverSuite) TestGracefulDegradation() {
	key := translation.NewKey("content-dictionary", "homepage.title", "en")
	s.seed(key, "Welcome")

	failing := &failingCache{}
	degradedResolver := resolve.NewResolver(s.store, failing, nil, resolve.Options{
		BaseLocale: "en",
		Locales:    []string{"en", "th"},
		CacheTTL:   time.Minute,
	})

	resolved, err := degradedResolver.Resolve(s.ctx, key.WithLocale("th"))
	s.Require().NoError(err)
	s.Equal("Welcome", resolved.Value)
	s.Equal(translation.SourceFallback, resolved.Source)

	healthy, err := s.newResolver().Resolve(s.ctx, key.WithLocale("th"))
	s.Require().NoError(err)
	s.Equal(healthy.Value, resolved.Value)
	s.Equal(healthy.Source, resolved.Source)

	// Degraded reads never attempt to repopulate the broken cache.
	gets, sets := failing.calls()
	s.Equal(1, gets)
	s.Equal(0, sets)
}

func (s *ResolverSuite) TestInvalidateDropsEveryLocale() {
	key := translation.NewKey("content-dictionary", "homepage.title", "en")
	s.seed(key, "Welcome")

	resolver := s.newResolver()

	_, err := resolver.Resolve(s.ctx, key)
	s.Require().NoError(err)
	_, err = resolver.Resolve(s.ctx, key.WithLocale("th"))
	s.Require().NoError(err)

	resolver.Invalidate(s.ctx, key.Namespace, key.EntityID, key.Field)

	for _, locale := range []string{"en", "th"} {
		_, found, getErr := s.raw.Get(s.ctx, key.WithLocale(locale).CacheKey())
		s.NoError(getErr)
		s.False(found)
	}
}

func (s *ResolverSuite) TestResolveAll() {
	entityID := uuid.New()
	title := translation.NewEntityKey("property", entityID, "title", "en")
	description := translation.NewEntityKey("property", entityID, "description", "en")
	draft := translation.NewEntityKey("property", entityID, "draft-note", "th")

	s.seed(title, "Sea View Condo")
	s.seed(title.WithLocale("th"), "คอนโดวิวทะเล")
	s.seed(description, "A condo with a view of the sea.")
	// No base value: unresolvable in any locale but th's own.
	s.seed(draft, "โน้ต")

	resolver := s.newResolver()

	resolved, err := resolver.ResolveAll(s.ctx, "property", &entityID, "th")
	s.Require().NoError(err)

	s.Require().Contains(resolved, "title")
	s.Equal("คอนโดวิวทะเล", resolved["title"].Value)
	s.Equal(translation.SourceOverride, resolved["title"].Source)

	s.Require().Contains(resolved, "description")
	s.Equal("A condo with a view of the sea.", resolved["description"].Value)
	s.Equal(translation.SourceFallback, resolved["description"].Source)

	s.Require().Contains(resolved, "draft-note")
	s.Equal("โน้ต", resolved["draft-note"].Value)

	english, err := resolver.ResolveAll(s.ctx, "property", &entityID, "en")
	s.Require().NoError(err)
	s.Contains(english, "title")
	s.Contains(english, "description")
	// No value at en and none at base either.
	s.NotContains(english, "draft-note")
}

func (s *ResolverSuite) TestResolveAllEmptyEntity() {
	entityID := uuid.New()
	resolved, err := s.newResolver().ResolveAll(s.ctx, "property", &entityID, "th")
	s.Require().NoError(err)
	s.Empty(resolved)
}
