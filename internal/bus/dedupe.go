package bus

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DedupeCache remembers recently seen message IDs so that gateway reconnects
// replaying events do not double-feed the engine. LRU bounds memory, the TTL
// bounds how long an ID stays "seen".
type DedupeCache struct {
	cache *lru.Cache[string, time.Time]
	ttl   time.Duration
}

func NewDedupeCache(ttl time.Duration, maxSize int) (*DedupeCache, error) {
	c, err := lru.New[string, time.Time](maxSize)
	if err != nil {
		return nil, err
	}
	return &DedupeCache{cache: c, ttl: ttl}, nil
}

// IsDuplicate reports whether key was seen within the TTL window and records
// it either way.
func (d *DedupeCache) IsDuplicate(key string) bool {
	now := time.Now()
	if seen, ok := d.cache.Get(key); ok && now.Sub(seen) < d.ttl {
		return true
	}
	d.cache.Add(key, now)
	return false
}
