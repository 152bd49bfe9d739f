package worker

import (
	"strings"

	"github.com/dgraph-io/ristretto"

	"github.com/mnemohq/mnemo-go-sdk/core"
)

// NarrativeCache holds the latest synthesized narrative per user. Entries
// have no TTL; the worker overwrites them on every ingestion, and eviction
// under memory pressure only costs a cold first turn.
type NarrativeCache struct {
	cache *ristretto.Cache
}

// NewNarrativeCache creates a cache sized for maxUsers concurrent users.
func NewNarrativeCache(maxUsers int64) (*NarrativeCache, error) {
	if maxUsers <= 0 {
		maxUsers = 4096
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxUsers * 10,
		MaxCost:     maxUsers,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &NarrativeCache{cache: c}, nil
}

// Get returns the user's current narrative, if one has been computed.
func (n *NarrativeCache) Get(userID string) (string, bool) {
	v, ok := n.cache.Get(userID)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Put stores the user's narrative, replacing any previous one.
func (n *NarrativeCache) Put(userID, narrative string) {
	n.cache.Set(userID, narrative, 1)
	n.cache.Wait()
}

// Close releases the cache.
func (n *NarrativeCache) Close() {
	n.cache.Close()
}

// digestNarrative is the synthesis fallback: a flat digest of recent
// memories, newest first. Ugly but always available.
func digestNarrative(items []core.MemoryItem) string {
	const maxLines = 8
	var b strings.Builder
	b.WriteString("Recent context: ")
	for i, it := range items {
		if i == maxLines {
			break
		}
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(strings.TrimSpace(it.Text))
	}
	return b.String()
}
