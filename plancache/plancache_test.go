package plancache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemohq/mnemo-go-sdk/core"
	"github.com/mnemohq/mnemo-go-sdk/plancache"
)

func newCache(t *testing.T) *plancache.Cache {
	t.Helper()
	c, err := plancache.New(plancache.Config{MaxEntries: 128})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func fastPlan() *core.ContextPlan {
	return &core.ContextPlan{
		Strategy: core.StrategyFast,
		Tools:    []string{core.ToolSemanticSearch},
	}
}

func TestCache_PutGet(t *testing.T) {
	c := newCache(t)

	key := c.Key("user-1", "what did I say about my diet?", false)
	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Put(key, fastPlan())
	c.Wait()

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, core.StrategyFast, got.Strategy)
	assert.Equal(t, key, got.CacheKey)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestCache_KeyNormalization(t *testing.T) {
	c := newCache(t)

	a := c.Key("user-1", "What did I   say about my diet?", false)
	b := c.Key("user-1", "what did i say about my diet?", false)
	assert.Equal(t, a, b, "normalized variants share a key")

	assert.NotEqual(t, a, c.Key("user-2", "what did i say about my diet?", false))
	assert.NotEqual(t, a, c.Key("user-1", "what did i say about my diet?", true))
}

func TestCache_TTL(t *testing.T) {
	c := newCache(t)

	base := time.Now()
	now := base
	c.SetClock(func() time.Time { return now })

	key := c.Key("user-1", "hello there", false)
	c.Put(key, fastPlan())
	c.Wait()

	now = base.Add(29 * time.Minute)
	_, ok := c.Get(key)
	assert.True(t, ok, "plan should still be valid at T+29m")

	now = base.Add(31 * time.Minute)
	_, ok = c.Get(key)
	assert.False(t, ok, "plan should have expired at T+31m")
}

func TestCache_InvalidateUser(t *testing.T) {
	c := newCache(t)

	before := c.Key("user-1", "same message", false)
	c.Put(before, fastPlan())
	c.Wait()

	_, ok := c.Get(before)
	require.True(t, ok)

	c.Invalidate("user-1")

	after := c.Key("user-1", "same message", false)
	assert.NotEqual(t, before, after, "generation bump must change the derived key")

	_, ok = c.Get(after)
	assert.False(t, ok, "post-invalidation key must miss")

	// Other users are unaffected.
	other := c.Key("user-2", "same message", false)
	c.Put(other, fastPlan())
	c.Wait()
	assert.Equal(t, other, c.Key("user-2", "same message", false))

	assert.Equal(t, uint64(1), c.Stats().Invalidations)
}

func TestCache_LastWriteWins(t *testing.T) {
	c := newCache(t)

	key := c.Key("user-1", "race", false)
	c.Put(key, fastPlan())
	c.Put(key, &core.ContextPlan{
		Strategy: core.StrategyBalanced,
		Tools:    []string{core.ToolSemanticSearch, core.ToolGraphSearch},
	})
	c.Wait()

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, core.StrategyBalanced, got.Strategy)
}
