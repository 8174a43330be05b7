package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/chapterdesk/chapterdesk-server/internal/logger"
	"github.com/chapterdesk/chapterdesk-server/internal/search"
	"github.com/chapterdesk/chapterdesk-server/internal/service"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.ChapterIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve chapter title index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewChapterIndex(log.Logger)
	if err != nil {
		return nil, err
	}

	return &SearchIndexHandle{ChapterIndex: index}, nil
}

// RebuildSearchIndex fills the index from the store. The index lives in memory,
// so a durable store needs this on every start.
// Should be called after all services are wired.
func RebuildSearchIndex(i do.Injector) {
	chapterService := do.MustInvoke[*service.ChapterService](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := chapterService.RebuildIndex(context.Background()); err != nil {
		log.Error("Search index rebuild failed", "error", err)
		return
	}

	count, _ := indexHandle.DocumentCount()
	log.Info("Search index initialized", "documents", count)
}
