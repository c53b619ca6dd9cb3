package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Ninjaclasher/hidrateapp-server/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const sessionCacheKeyPrefix = "hidrateapp::session::v1"

// CachedSessionStore caches token resolution in front of a base session
// store. Every request carries a token, so this is the hottest lookup in
// the service.
type CachedSessionStore struct {
	base  core.SessionStore
	cache repositorycache.CacheService
}

func NewCachedSessionStore(base core.SessionStore, cacheService repositorycache.CacheService) (*CachedSessionStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base session store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: session cache service is required")
	}
	return &CachedSessionStore{base: base, cache: cacheService}, nil
}

// SessionCacheKey returns the deterministic cache key for a token lookup:
// hidrateapp::session::v1::<token> with the token URL-path escaped.
func SessionCacheKey(token string) string {
	return strings.Join([]string{sessionCacheKeyPrefix, url.PathEscape(token)}, "::")
}

func (s *CachedSessionStore) Create(ctx context.Context, userID string) (string, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return "", fmt.Errorf("sqlstore: cached session store is not configured")
	}
	return s.base.Create(ctx, userID)
}

func (s *CachedSessionStore) Resolve(ctx context.Context, token string) (string, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return "", fmt.Errorf("sqlstore: cached session store is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", core.ErrDoesNotExist()
	}
	return repositorycache.GetOrFetch(ctx, s.cache, SessionCacheKey(token), func(ctx context.Context) (string, error) {
		return s.base.Resolve(ctx, token)
	})
}

func (s *CachedSessionStore) Destroy(ctx context.Context, token string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached session store is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	if err := s.base.Destroy(ctx, token); err != nil {
		return err
	}
	return s.cache.Delete(ctx, SessionCacheKey(token))
}
