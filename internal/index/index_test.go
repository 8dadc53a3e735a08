package index_test

import (
	"context"
	"testing"

	"github.com/introslabs/intros/internal/index"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupIndex(t *testing.T) *index.Index {
	t.Helper()
	idx, err := index.New()
	require.NoError(t, err)
	return idx
}

func TestSanitizeTerms(t *testing.T) {
	assert.Equal(t, []string{"chess", "hiking"}, index.SanitizeTerms("chess, hiking!"))
	assert.Equal(t, []string{"go_lang", "db2"}, index.SanitizeTerms("go_lang", "db2"))
	assert.Equal(t, []string{"chess"}, index.SanitizeTerms("  ***chess*** "))

	// punctuation-only input must survive as nil, not as empty terms
	assert.Nil(t, index.SanitizeTerms("!!! ???"))
	assert.Nil(t, index.SanitizeTerms(""))
}

func TestQueryNoTermsIsDistinctSignal(t *testing.T) {
	idx := setupIndex(t)

	_, err := idx.Query(context.Background(), nil)
	assert.ErrorIs(t, err, index.ErrNoTerms)
}

func TestQueryZeroMatchesIsNotAnError(t *testing.T) {
	idx := setupIndex(t)
	require.NoError(t, idx.Index("ada_dev", index.Document{Name: "Ada", Interests: "chess"}))

	hits, err := idx.Query(context.Background(), []string{"snowboarding"})
	assert.NoError(t, err)
	assert.Empty(t, hits)
}

func TestQueryMatchesAndRanks(t *testing.T) {
	ctx := context.Background()
	idx := setupIndex(t)

	// "chess" appears twice in ada's document, once in gopher's
	require.NoError(t, idx.Index("ada_dev", index.Document{
		Name: "Ada", Interests: "chess", Bio: "chess",
	}))
	require.NoError(t, idx.Index("go_gopher", index.Document{
		Name: "Gopher", Interests: "golang, chess",
	}))
	require.NoError(t, idx.Index("botanica", index.Document{
		Name: "Botanica", Interests: "gardening",
	}))

	hits, err := idx.Query(ctx, []string{"chess"})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "ada_dev", hits[0].Handle)
	assert.Equal(t, "go_gopher", hits[1].Handle)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestQueryIsDisjunctive(t *testing.T) {
	ctx := context.Background()
	idx := setupIndex(t)

	require.NoError(t, idx.Index("ada_dev", index.Document{Name: "Ada", Interests: "chess"}))
	require.NoError(t, idx.Index("botanica", index.Document{Name: "Botanica", Interests: "gardening"}))

	hits, err := idx.Query(ctx, []string{"chess", "gardening"})
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestIndexReplacesDocument(t *testing.T) {
	ctx := context.Background()
	idx := setupIndex(t)

	require.NoError(t, idx.Index("ada_dev", index.Document{Name: "Ada", Interests: "chess"}))
	require.NoError(t, idx.Index("ada_dev", index.Document{Name: "Ada", Interests: "gardening"}))

	hits, err := idx.Query(ctx, []string{"chess"})
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Query(ctx, []string{"gardening"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "ada_dev", hits[0].Handle)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	idx := setupIndex(t)

	require.NoError(t, idx.Index("ada_dev", index.Document{Name: "Ada", Interests: "chess"}))
	require.NoError(t, idx.Remove("ada_dev"))

	hits, err := idx.Query(ctx, []string{"chess"})
	require.NoError(t, err)
	assert.Empty(t, hits)

	// removing an absent handle is a no-op
	assert.NoError(t, idx.Remove("nobody"))
}

func TestRebuild(t *testing.T) {
	ctx := context.Background()
	idx := setupIndex(t)

	docs := map[string]index.Document{
		"ada_dev":   {Name: "Ada", Interests: "chess"},
		"go_gopher": {Name: "Gopher", Interests: "chess"},
	}
	require.NoError(t, idx.Rebuild(docs))
	require.NoError(t, idx.Rebuild(docs)) // idempotent

	hits, err := idx.Query(ctx, []string{"chess"})
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}
