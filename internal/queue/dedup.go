package queue

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// Dedup tracks recently-seen message ids so a redelivered message (spec §5:
// "the source is not idempotent") is recognized and skipped rather than
// matched twice. Resolves the idempotency gap flagged in spec §9.
type Dedup struct {
	cache *cache.Cache
}

// NewDedup builds a dedup cache that forgets an id after ttl, bounding
// memory while covering the redelivery window a broker can realistically
// produce.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{cache: cache.New(ttl, ttl/2)}
}

// Seen reports whether id was already observed, marking it seen as a side
// effect. The first call for a given id returns false.
func (d *Dedup) Seen(id string) bool {
	if id == "" {
		return false
	}
	if _, found := d.cache.Get(id); found {
		return true
	}
	d.cache.SetDefault(id, struct{}{})
	return false
}
