package catalog

import (
	"time"

	"github.com/dmitrijs2005/vidkeeper/internal/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// prefCache is a per-process LRU of owner preferences with a TTL, so the
// worker does not hit the catalog for every delivered job.
type prefCache struct {
	lru *expirable.LRU[int64, models.Preferences]
}

func newPrefCache(size int, ttl time.Duration) *prefCache {
	if size <= 0 {
		return nil
	}
	return &prefCache{lru: expirable.NewLRU[int64, models.Preferences](size, nil, ttl)}
}

func (c *prefCache) get(ownerID int64) (*models.Preferences, bool) {
	if c == nil {
		return nil, false
	}
	p, ok := c.lru.Get(ownerID)
	if !ok {
		prefCacheMisses.Inc()
		return nil, false
	}
	prefCacheHits.Inc()
	return &p, true
}

func (c *prefCache) set(p *models.Preferences) {
	if c == nil {
		return
	}
	c.lru.Add(p.OwnerID, *p)
}

func (c *prefCache) invalidate(ownerID int64) {
	if c == nil {
		return
	}
	c.lru.Remove(ownerID)
}
