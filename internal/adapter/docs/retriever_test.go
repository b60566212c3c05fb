package docs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchRanksByTermOverlap(t *testing.T) {
	r := NewCorpusRetriever([]Document{
		{SourceID: "a", Text: "The HTTP Request node fails with a timeout when the remote service is slow."},
		{SourceID: "b", Text: "Webhook nodes register a production URL only while the workflow is active."},
		{SourceID: "c", Text: "HTTP Request timeout settings live under Options."},
	})

	passages, err := r.Search(context.Background(), "http request timeout", 5)
	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Equal(t, "a", passages[0].SourceID)
	assert.Equal(t, "c", passages[1].SourceID)
	assert.Greater(t, passages[0].Score, 0.0)
}

func TestSearchCapsAtK(t *testing.T) {
	r := NewCorpusRetriever(BuiltinCorpus())
	passages, err := r.Search(context.Background(), "node", 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(passages), 2)
}

func TestSearchNoMatches(t *testing.T) {
	r := NewCorpusRetriever(BuiltinCorpus())
	passages, err := r.Search(context.Background(), "zzzzqqq", 5)
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestSearchIgnoresShortTerms(t *testing.T) {
	r := NewCorpusRetriever([]Document{{SourceID: "a", Text: "an if node routes items"}})
	passages, err := r.Search(context.Background(), "if an to", 5)
	require.NoError(t, err)
	assert.Empty(t, passages, "terms under three characters are dropped")
}
