package engine

import (
	"sort"
	"time"

	"github.com/mnemohq/mnemo-go-sdk/core"
)

// merge folds the per-branch results into one deduplicated, ranked list.
//
// Identity for dedup is (owner, hash of normalized text), never backend id:
// the two backends assign ids independently, so the same remembered fact
// comes back under two different ids. When branches disagree the higher
// score wins and the losing scores are kept in AltScores.
//
// Dedup runs before truncation so duplicates never consume limit slots, and
// the recency window is applied here rather than in the adapters so every
// branch is bounded identically.
func merge(branches []branchResult, window time.Duration, now time.Time, limit int) []core.SearchResult {
	byIdentity := make(map[core.DedupKey]int)
	merged := make([]core.SearchResult, 0, limit)

	for _, br := range branches {
		if br.err != nil {
			continue
		}
		for _, item := range br.items {
			if window > 0 && now.Sub(item.CreatedAt) > window {
				continue
			}

			id := item.Identity()
			idx, seen := byIdentity[id]
			if !seen {
				byIdentity[id] = len(merged)
				merged = append(merged, core.SearchResult{
					Item:   item,
					Score:  item.Relevance,
					Source: br.source,
				})
				continue
			}

			existing := &merged[idx]
			if existing.AltScores == nil {
				existing.AltScores = map[core.Source]float64{existing.Source: existing.Score}
			}
			existing.AltScores[br.source] = item.Relevance
			if item.Relevance > existing.Score {
				existing.Item = item
				existing.Score = item.Relevance
				existing.Source = br.source
			}
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Item.CreatedAt.Equal(b.Item.CreatedAt) {
			return a.Item.CreatedAt.After(b.Item.CreatedAt)
		}
		return a.Item.Text < b.Item.Text
	})

	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
