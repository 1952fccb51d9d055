package tokens

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultStatsTTL bounds how stale cached statistics may be.
const DefaultStatsTTL = 15 * time.Second

const statsKey = "stats"

// StatsCache is a Store whose Stats results are cached for a short TTL.
// Deletions through the cache drop the cached value.
type StatsCache struct {
	Store
	cache *expirable.LRU[string, Stats]
}

// NewStatsCache wraps s. A non-positive ttl selects DefaultStatsTTL.
func NewStatsCache(s Store, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}

	return &StatsCache{
		Store: s,
		cache: expirable.NewLRU[string, Stats](1, nil, ttl),
	}
}

func (c *StatsCache) Stats(ctx context.Context) (Stats, error) {
	if st, ok := c.cache.Get(statsKey); ok {
		return st, nil
	}

	st, err := c.Store.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}

	c.cache.Add(statsKey, st)
	return st, nil
}

func (c *StatsCache) DeleteToken(ctx context.Context, token string) (bool, error) {
	defer c.cache.Purge()
	return c.Store.DeleteToken(ctx, token)
}

func (c *StatsCache) DeleteAll(ctx context.Context) (int64, error) {
	defer c.cache.Purge()
	return c.Store.DeleteAll(ctx)
}
