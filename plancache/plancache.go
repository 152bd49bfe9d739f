// Package plancache caches planner decisions so repeated request shapes
// skip the planner entirely. Entries are bounded (ristretto's cost-based
// admission and eviction) and expire after a fixed TTL, whichever triggers
// first.
//
// Concurrent misses for the same key are allowed to race: both requests
// compute a plan and the last Put wins. Plans are advisory and planner
// calls are idempotent, so a stampede lock would buy nothing.
package plancache

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto"

	"github.com/mnemohq/mnemo-go-sdk/core"
)

// DefaultTTL is how long a cached plan stays valid.
const DefaultTTL = 30 * time.Minute

// Config bounds the cache.
type Config struct {
	// MaxEntries caps the number of cached plans. Default 4096.
	MaxEntries int64

	// TTL overrides DefaultTTL when positive.
	TTL time.Duration
}

// Stats exposes the cache's observability counters.
type Stats struct {
	Hits          uint64
	Misses        uint64
	Invalidations uint64
}

// Cache is a bounded, time-expiring plan cache safe for concurrent use.
//
// Ristretto cannot enumerate keys, so per-user invalidation works through
// generations: each user has a counter folded into every key derived for
// them. Invalidate bumps the counter, which orphans all existing entries
// for that user; TTL and eviction reclaim the space.
type Cache struct {
	inner *ristretto.Cache
	ttl   time.Duration

	gens sync.Map // userID -> *atomic.Uint64

	hits          atomic.Uint64
	misses        atomic.Uint64
	invalidations atomic.Uint64

	// now is replaceable in tests to exercise TTL expiry without sleeping.
	now func() time.Time
}

// New creates a plan cache.
func New(cfg Config) (*Cache, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 4096
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	inner, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.MaxEntries * 10,
		MaxCost:     cfg.MaxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &Cache{
		inner: inner,
		ttl:   ttl,
		now:   time.Now,
	}, nil
}

// Key derives the cache key for a request: user id, that user's current
// generation, the normalized message, and whether the conversation is new.
// Normalization makes trivially reworded repeats of the same message share
// a plan.
func (c *Cache) Key(userID, message string, isNewConversation bool) uint64 {
	var d xxhash.Digest
	d.Reset()
	_, _ = d.WriteString(userID)
	_, _ = d.WriteString("\x00")

	var gen [8]byte
	binary.LittleEndian.PutUint64(gen[:], c.generation(userID).Load())
	_, _ = d.Write(gen[:])

	_, _ = d.WriteString(core.NormalizeText(message))
	if isNewConversation {
		_, _ = d.WriteString("\x00new")
	}
	return d.Sum64()
}

// Get returns the cached plan for key, or (nil, false) on miss or expiry.
func (c *Cache) Get(key uint64) (*core.ContextPlan, bool) {
	v, ok := c.inner.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	plan := v.(*core.ContextPlan)
	if plan.Expired(c.now()) {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return plan, true
}

// Put stores a plan under key. Admission is best-effort: ristretto may
// reject entries under pressure, which is fine for an advisory cache.
func (c *Cache) Put(key uint64, plan *core.ContextPlan) {
	if plan == nil {
		return
	}
	cp := *plan
	cp.CacheKey = key
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = c.now()
	}
	if cp.TTL <= 0 {
		cp.TTL = c.ttl
	}
	c.inner.SetWithTTL(key, &cp, 1, cp.TTL)
}

// Invalidate drops every cached plan derived for userID by bumping the
// user's generation. Required after a memory write that could change the
// right strategy for the user's next turns.
func (c *Cache) Invalidate(userID string) {
	c.generation(userID).Add(1)
	c.invalidations.Add(1)
}

// Stats returns the hit/miss/invalidation counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Invalidations: c.invalidations.Load(),
	}
}

// Wait blocks until buffered writes are applied. Ristretto admits entries
// asynchronously; tests call this between Put and Get.
func (c *Cache) Wait() {
	c.inner.Wait()
}

// Close releases the cache's resources.
func (c *Cache) Close() {
	c.inner.Close()
}

// SetClock replaces the cache's clock. Tests only.
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

func (c *Cache) generation(userID string) *atomic.Uint64 {
	if g, ok := c.gens.Load(userID); ok {
		return g.(*atomic.Uint64)
	}
	g, _ := c.gens.LoadOrStore(userID, new(atomic.Uint64))
	return g.(*atomic.Uint64)
}
