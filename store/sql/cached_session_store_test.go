package sqlstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Ninjaclasher/hidrateapp-server/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type stubSessionStore struct {
	mu           sync.Mutex
	tokens       map[string]string
	resolveCalls int
}

func (s *stubSessionStore) Create(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, id := range s.tokens {
		if id == userID {
			return token, nil
		}
	}
	token := core.NewSessionToken()
	s.tokens[token] = userID
	return token, nil
}

func (s *stubSessionStore) Resolve(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolveCalls++
	userID, ok := s.tokens[token]
	if !ok {
		return "", core.ErrDoesNotExist()
	}
	return userID, nil
}

func (s *stubSessionStore) Destroy(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}

func newTestSessionCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}

func TestCachedSessionStore_Resolve_MissFetchThenHit(t *testing.T) {
	base := &stubSessionStore{tokens: map[string]string{"tok_cache_1": "usr_cache_1"}}
	store, err := NewCachedSessionStore(base, newTestSessionCacheService(t))
	if err != nil {
		t.Fatalf("new cached session store: %v", err)
	}

	userID, err := store.Resolve(context.Background(), "tok_cache_1")
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if userID != "usr_cache_1" {
		t.Fatalf("resolved user = %q, want usr_cache_1", userID)
	}
	if base.resolveCalls != 1 {
		t.Fatalf("expected first resolve to fetch base store once, got %d", base.resolveCalls)
	}

	if _, err := store.Resolve(context.Background(), "tok_cache_1"); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if base.resolveCalls != 1 {
		t.Fatalf("expected second resolve to be a cache hit, base resolve calls=%d", base.resolveCalls)
	}
}

func TestCachedSessionStore_Destroy_InvalidatesCachedToken(t *testing.T) {
	base := &stubSessionStore{tokens: map[string]string{"tok_cache_2": "usr_cache_2"}}
	store, err := NewCachedSessionStore(base, newTestSessionCacheService(t))
	if err != nil {
		t.Fatalf("new cached session store: %v", err)
	}

	if _, err := store.Resolve(context.Background(), "tok_cache_2"); err != nil {
		t.Fatalf("prime cache with resolve: %v", err)
	}
	if base.resolveCalls != 1 {
		t.Fatalf("expected one base read after cache prime, got %d", base.resolveCalls)
	}

	if err := store.Destroy(context.Background(), "tok_cache_2"); err != nil {
		t.Fatalf("destroy through cached store: %v", err)
	}

	if _, err := store.Resolve(context.Background(), "tok_cache_2"); !core.IsNotFound(err) {
		t.Fatalf("expected does-not-exist after destroy, got %v", err)
	}
	if base.resolveCalls != 2 {
		t.Fatalf("expected destroy to drop the cached token, base resolve calls=%d", base.resolveCalls)
	}
}

func TestCachedSessionStore_RequiresBaseAndCache(t *testing.T) {
	if _, err := NewCachedSessionStore(nil, newTestSessionCacheService(t)); err == nil {
		t.Fatal("expected an error without a base store")
	}
	if _, err := NewCachedSessionStore(&stubSessionStore{tokens: map[string]string{}}, nil); err == nil {
		t.Fatal("expected an error without a cache service")
	}
}
