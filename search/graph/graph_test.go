package graph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemohq/mnemo-go-sdk/core"
	"github.com/mnemohq/mnemo-go-sdk/search/graph"
)

func newStore(t *testing.T) *graph.Store {
	t.Helper()
	s, err := graph.Open(graph.Options{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_WriteAndSearch(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Write(ctx, "user-a", "chat", "my diet is vegetarian, no meat")
	require.NoError(t, err)
	_, err = s.Write(ctx, "user-a", "notes", "the car needs an oil change")
	require.NoError(t, err)

	items, err := s.Search(ctx, "user-a", "user-a", "vegetarian diet", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, items[0].Text, "vegetarian")
	assert.Equal(t, core.SourceGraph, items[0].Source)
	assert.Greater(t, items[0].Relevance, 0.0)
}

func TestStore_AppScopedKey(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Write(ctx, "user-a", "chat", "project deadline moved to thursday")
	require.NoError(t, err)
	_, err = s.Write(ctx, "user-a", "notes", "deadline for taxes is april")
	require.NoError(t, err)

	items, err := s.Search(ctx, "user-a", "user-a::chat", "deadline", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "chat", items[0].OriginAppID)

	// Account-wide key sees both.
	items, err = s.Search(ctx, "user-a", "user-a", "deadline", 10)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestStore_UserIsolation(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Write(ctx, "user-a", "", "secret meeting notes")
	require.NoError(t, err)

	items, err := s.Search(ctx, "user-b", "user-b", "secret meeting", 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStore_WriteIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id1, err := s.Write(ctx, "user-a", "chat", "I moved to Berlin")
	require.NoError(t, err)
	id2, err := s.Write(ctx, "user-a", "chat", "i moved  to  berlin")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	items, err := s.Search(ctx, "user-a", "user-a", "moved berlin", 10)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestStore_Recent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	texts := []string{
		"first fact about alpha",
		"second fact about bravo",
		"third fact about charlie",
	}
	for _, text := range texts {
		_, err := s.Write(ctx, "user-a", "", text)
		require.NoError(t, err)
	}

	items, err := s.Recent(ctx, "user-a", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	// Newest first.
	assert.Contains(t, items[0].Text, "charlie")
	assert.Contains(t, items[1].Text, "bravo")
}

func TestStore_TermRanking(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Write(ctx, "user-a", "", "budget review for the quarter")
	require.NoError(t, err)
	_, err = s.Write(ctx, "user-a", "", "budget and quarter planning review meeting")
	require.NoError(t, err)

	items, err := s.Search(ctx, "user-a", "user-a", "budget review quarter", 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.GreaterOrEqual(t, items[0].Relevance, items[1].Relevance)
}
