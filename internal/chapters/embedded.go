package chapters

import (
	"context"
	"fmt"

	"github.com/simonhull/audiometa"

	"github.com/chapterdesk/chapterdesk-server/internal/domain"
	"github.com/chapterdesk/chapterdesk-server/internal/errors"
)

// EmbeddedGenerator reads chapter markers already present in the container
// (MP4 chapter tracks and Nero chapters). It does not analyse the picture.
type EmbeddedGenerator struct {
	open func(ctx context.Context, path string) ([]audiometa.Chapter, error)
}

// NewEmbeddedGenerator returns a generator backed by audiometa.
func NewEmbeddedGenerator() *EmbeddedGenerator {
	return &EmbeddedGenerator{open: readContainerChapters}
}

// Name implements Generator.
func (g *EmbeddedGenerator) Name() string { return KindEmbedded }

// Generate implements Generator.
func (g *EmbeddedGenerator) Generate(ctx context.Context, asset *domain.VideoAsset) ([]domain.ChapterDraft, error) {
	if asset == nil || asset.LocalPath == "" {
		return nil, errors.GenerationFailed(fmt.Errorf("no local file to read"))
	}

	marks, err := g.open(ctx, asset.LocalPath)
	if err != nil {
		return nil, errors.GenerationFailed(fmt.Errorf("read embedded chapters: %w", err))
	}

	drafts := make([]domain.ChapterDraft, 0, len(marks))
	for _, m := range marks {
		drafts = append(drafts, domain.ChapterDraft{
			Title:     m.Title,
			Timestamp: m.StartTime.Seconds(),
		})
	}
	return cleanDrafts(drafts), nil
}

func readContainerChapters(ctx context.Context, path string) ([]audiometa.Chapter, error) {
	file, err := audiometa.OpenContext(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.Close() //nolint:errcheck // read-only handle

	return file.Chapters, nil
}
