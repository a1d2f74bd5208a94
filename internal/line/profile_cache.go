package line

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// ProfileFetcher looks up a LINE user profile.
type ProfileFetcher interface {
	Profile(ctx context.Context, userID string) (Profile, error)
}

// ProfileCache memoizes successful profile lookups for a fixed TTL.
type ProfileCache struct {
	cache   *cache.Cache
	fetcher ProfileFetcher
}

// NewProfileCache wraps fetcher with a cache whose entries expire after ttl.
func NewProfileCache(fetcher ProfileFetcher, ttl time.Duration) *ProfileCache {
	return &ProfileCache{
		cache:   cache.New(ttl, 2*ttl),
		fetcher: fetcher,
	}
}

// Profile returns the cached profile for userID, fetching it on a miss.
// Failed lookups are not cached.
func (c *ProfileCache) Profile(ctx context.Context, userID string) (Profile, error) {
	if cached, found := c.cache.Get(userID); found {
		return cached.(Profile), nil
	}

	profile, err := c.fetcher.Profile(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	c.cache.Set(userID, profile, cache.DefaultExpiration)
	return profile, nil
}

// Forget drops any cached profile for userID.
func (c *ProfileCache) Forget(userID string) {
	c.cache.Delete(userID)
}
