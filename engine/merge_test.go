package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemohq/mnemo-go-sdk/core"
)

func item(owner, text string, score float64, age time.Duration, now time.Time) core.MemoryItem {
	return core.MemoryItem{
		OwnerUserID: owner,
		Text:        text,
		CreatedAt:   now.Add(-age),
		Relevance:   score,
	}
}

func TestMergeDeduplicatesAcrossBranches(t *testing.T) {
	now := time.Now()
	branches := []branchResult{
		{source: core.SourceSemantic, items: []core.MemoryItem{
			item("alice", "My diet is vegetarian", 0.9, time.Hour, now),
		}},
		{source: core.SourceGraph, items: []core.MemoryItem{
			// Same fact, different backend id and casing.
			item("alice", "my diet is  vegetarian", 0.6, time.Hour, now),
		}},
	}

	got := merge(branches, 0, now, 10)
	require.Len(t, got, 1)
	assert.Equal(t, core.SourceSemantic, got[0].Source)
	assert.Equal(t, 0.9, got[0].Score)
	assert.Equal(t, map[core.Source]float64{
		core.SourceSemantic: 0.9,
		core.SourceGraph:    0.6,
	}, got[0].AltScores)
}

func TestMergeHigherLateScoreWins(t *testing.T) {
	now := time.Now()
	branches := []branchResult{
		{source: core.SourceSemantic, items: []core.MemoryItem{
			item("alice", "prefers window seats", 0.4, time.Hour, now),
		}},
		{source: core.SourceGraph, items: []core.MemoryItem{
			item("alice", "prefers window seats", 0.8, time.Hour, now),
		}},
	}

	got := merge(branches, 0, now, 10)
	require.Len(t, got, 1)
	assert.Equal(t, core.SourceGraph, got[0].Source)
	assert.Equal(t, 0.8, got[0].Score)
}

func TestMergeSameTextDifferentUsersStaysSeparate(t *testing.T) {
	now := time.Now()
	branches := []branchResult{
		{source: core.SourceSemantic, items: []core.MemoryItem{
			item("alice", "likes espresso", 0.7, time.Hour, now),
			item("bob", "likes espresso", 0.7, time.Hour, now),
		}},
	}

	got := merge(branches, 0, now, 10)
	assert.Len(t, got, 2)
}

func TestMergeAppliesRecencyWindow(t *testing.T) {
	now := time.Now()
	branches := []branchResult{
		{source: core.SourceGraph, items: []core.MemoryItem{
			item("alice", "fresh memory", 0.5, 24*time.Hour, now),
			item("alice", "stale memory", 0.9, 90*24*time.Hour, now),
		}},
	}

	got := merge(branches, 30*24*time.Hour, now, 10)
	require.Len(t, got, 1)
	assert.Equal(t, "fresh memory", got[0].Item.Text)
}

func TestMergeDeduplicatesBeforeTruncating(t *testing.T) {
	now := time.Now()
	// The duplicate of the top item must not occupy a limit slot.
	branches := []branchResult{
		{source: core.SourceSemantic, items: []core.MemoryItem{
			item("alice", "top fact", 0.9, time.Hour, now),
			item("alice", "second fact", 0.8, time.Hour, now),
		}},
		{source: core.SourceGraph, items: []core.MemoryItem{
			item("alice", "top fact", 0.7, time.Hour, now),
		}},
	}

	got := merge(branches, 0, now, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "top fact", got[0].Item.Text)
	assert.Equal(t, "second fact", got[1].Item.Text)
}

func TestMergeOrderIsDeterministic(t *testing.T) {
	now := time.Now()
	older := item("alice", "older tie", 0.5, 2*time.Hour, now)
	newer := item("alice", "newer tie", 0.5, time.Hour, now)
	branches := []branchResult{
		{source: core.SourceSemantic, items: []core.MemoryItem{older, newer}},
	}

	got := merge(branches, 0, now, 10)
	require.Len(t, got, 2)
	assert.Equal(t, "newer tie", got[0].Item.Text)
	assert.Equal(t, "older tie", got[1].Item.Text)
}

func TestMergeSkipsFailedBranches(t *testing.T) {
	now := time.Now()
	branches := []branchResult{
		{source: core.SourceSemantic, err: &core.BranchError{Branch: core.SourceSemantic}},
		{source: core.SourceGraph, items: []core.MemoryItem{
			item("alice", "surviving fact", 0.5, time.Hour, now),
		}},
	}

	got := merge(branches, 0, now, 10)
	require.Len(t, got, 1)
	assert.Equal(t, "surviving fact", got[0].Item.Text)
}
