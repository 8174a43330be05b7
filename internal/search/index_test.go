package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapterdesk/chapterdesk-server/internal/domain"
)

// setupTestIndex creates an index seeded with the baseline chapters.
func setupTestIndex(t *testing.T) *ChapterIndex {
	t.Helper()

	index, err := NewChapterIndex(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	require.NoError(t, index.Replace([]domain.Chapter{
		{ID: 1, Title: "Introduction", Timestamp: 0},
		{ID: 2, Title: "Process Overview", Timestamp: 30},
		{ID: 3, Title: "Safety Instructions", Timestamp: 60},
	}))
	return index
}

func hitIDs(hits []Hit) []int64 {
	ids := make([]int64, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	return ids
}

func TestNewChapterIndex(t *testing.T) {
	index, err := NewChapterIndex(nil)
	require.NoError(t, err)
	defer index.Close()

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestChapterIndex_SearchStemmed(t *testing.T) {
	index := setupTestIndex(t)

	hits, err := index.Search(context.Background(), "instruction", 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, hitIDs(hits))
}

func TestChapterIndex_SearchPrefix(t *testing.T) {
	index := setupTestIndex(t)

	hits, err := index.Search(context.Background(), "proc", 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, hitIDs(hits))
}

func TestChapterIndex_SearchTypo(t *testing.T) {
	index := setupTestIndex(t)

	hits, err := index.Search(context.Background(), "overviw", 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, hitIDs(hits))
}

func TestChapterIndex_EmptyQuery(t *testing.T) {
	index := setupTestIndex(t)

	hits, err := index.Search(context.Background(), "   ", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestChapterIndex_IndexAndDelete(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.Index(domain.Chapter{ID: 4, Title: "Lockout tagout", Timestamp: 90}))
	hits, err := index.Search(ctx, "lockout", 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, hitIDs(hits))

	// Re-indexing replaces the old title.
	require.NoError(t, index.Index(domain.Chapter{ID: 4, Title: "Valve isolation", Timestamp: 90}))
	hits, err = index.Search(ctx, "lockout", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, index.Delete(4))
	require.NoError(t, index.Delete(4))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestChapterIndex_ReplaceDropsOldDocuments(t *testing.T) {
	index := setupTestIndex(t)

	require.NoError(t, index.Replace([]domain.Chapter{{ID: 10, Title: "Start-up checks"}}))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	hits, err := index.Search(context.Background(), "introduction", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
