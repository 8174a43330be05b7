// Package search keeps a full-text index of chapter titles for the active video.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/chapterdesk/chapterdesk-server/internal/domain"
)

// DefaultLimit caps results when the caller does not.
const DefaultLimit = 20

// ChapterIndex wraps an in-memory Bleve index of chapter titles.
//
// The index is derived data: it is rebuilt from the store on startup and on
// every reseed, so nothing is written to disk.
//
// Thread safety: All public methods are safe for concurrent use.
type ChapterIndex struct {
	index  bleve.Index
	logger *slog.Logger
	mu     sync.RWMutex // Protects the index pointer during Replace
}

// Hit is a matching chapter ID with its relevance score.
type Hit struct {
	ID    int64
	Score float64
}

// NewChapterIndex creates an empty in-memory index.
func NewChapterIndex(logger *slog.Logger) (*ChapterIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}

	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &ChapterIndex{index: index, logger: logger}, nil
}

// Close closes the index and releases resources.
func (c *ChapterIndex) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.Close()
}

// Index adds or replaces a single chapter.
func (c *ChapterIndex) Index(ch domain.Chapter) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.Index(docID(ch.ID), toDocument(ch))
}

// Delete removes a chapter. Deleting an unindexed chapter is not an error.
func (c *ChapterIndex) Delete(id int64) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.Delete(docID(id))
}

// Replace drops every document and indexes chapters in one batch.
func (c *ChapterIndex) Replace(chapters []domain.Chapter) error {
	fresh, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	batch := fresh.NewBatch()
	for _, ch := range chapters {
		if err := batch.Index(docID(ch.ID), toDocument(ch)); err != nil {
			_ = fresh.Close()
			return fmt.Errorf("batch index chapter %d: %w", ch.ID, err)
		}
	}
	if err := fresh.Batch(batch); err != nil {
		_ = fresh.Close()
		return fmt.Errorf("commit batch: %w", err)
	}

	c.mu.Lock()
	old := c.index
	c.index = fresh
	c.mu.Unlock()

	if err := old.Close(); err != nil {
		c.logger.Warn("failed to close replaced search index", "error", err)
	}

	c.logger.Debug("rebuilt chapter search index", "chapters", len(chapters))
	return nil
}

// DocumentCount returns the total number of indexed chapters.
func (c *ChapterIndex) DocumentCount() (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.DocCount()
}

// Search returns chapters whose title matches q, best match first.
// An empty query matches nothing.
func (c *ChapterIndex) Search(ctx context.Context, q string, limit int) ([]Hit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(buildTitleQuery(q), limit, 0, false)
	result, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search chapters: %w", err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, h := range result.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			c.logger.Warn("skipping search hit with malformed id", "id", h.ID)
			continue
		}
		hits = append(hits, Hit{ID: id, Score: h.Score})
	}
	return hits, nil
}

// buildTitleQuery matches the stemmed title, tolerates one typo,
// and treats queries of two or more characters as a prefix for autocomplete.
func buildTitleQuery(q string) query.Query {
	textQueries := []query.Query{}

	titleMatch := bleve.NewMatchQuery(q)
	titleMatch.SetField(fieldTitle)
	titleMatch.SetBoost(3.0)
	textQueries = append(textQueries, titleMatch)

	fuzzyQuery := bleve.NewFuzzyQuery(strings.ToLower(q))
	fuzzyQuery.SetFuzziness(1)
	fuzzyQuery.SetField(fieldTitle)
	fuzzyQuery.SetBoost(0.8)
	textQueries = append(textQueries, fuzzyQuery)

	if len(q) >= 2 {
		prefixQuery := bleve.NewPrefixQuery(strings.ToLower(q))
		prefixQuery.SetField(fieldTitle)
		prefixQuery.SetBoost(0.5)
		textQueries = append(textQueries, prefixQuery)
	}

	return bleve.NewDisjunctionQuery(textQueries...)
}

func docID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func toDocument(ch domain.Chapter) map[string]any {
	return map[string]any{
		fieldTitle:     ch.Title,
		fieldTimestamp: ch.Timestamp,
	}
}
