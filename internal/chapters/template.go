package chapters

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/chapterdesk/chapterdesk-server/internal/domain"
	"github.com/chapterdesk/chapterdesk-server/internal/errors"
)

// TemplateGenerator returns the same chapter list for every video.
// The list can be swapped at runtime by a TemplateWatcher.
type TemplateGenerator struct {
	mu     sync.RWMutex
	drafts []domain.ChapterDraft
}

// templateFile is the on-disk layout of a chapter template:
//
//	chapters:
//	  - title: Introduction
//	    timestamp: 0
//	  - title: Lockout procedure
//	    timestamp: 45
type templateFile struct {
	Chapters []domain.ChapterDraft `yaml:"chapters"`
}

// BaselineChapters is the built-in template.
func BaselineChapters() []domain.ChapterDraft {
	return []domain.ChapterDraft{
		{Title: "Introduction", Timestamp: 0},
		{Title: "Process Overview", Timestamp: 30},
		{Title: "Safety Instructions", Timestamp: 60},
	}
}

// NewTemplateGenerator returns a generator for the built-in baseline.
func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{drafts: BaselineChapters()}
}

// LoadTemplate reads a YAML chapter template from path.
func LoadTemplate(path string) (*TemplateGenerator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chapter template %s: %w", path, err)
	}
	return ParseTemplate(data)
}

// ParseTemplate decodes a YAML chapter template.
func ParseTemplate(data []byte) (*TemplateGenerator, error) {
	var tf templateFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse chapter template: %w", err)
	}

	for i, d := range tf.Chapters {
		if domain.NormalizeTitle(d.Title) == "" {
			return nil, fmt.Errorf("chapter template entry %d: title is required", i)
		}
		if !domain.ValidTimestamp(d.Timestamp) {
			return nil, fmt.Errorf("chapter template entry %d: invalid timestamp %v", i, d.Timestamp)
		}
	}

	return &TemplateGenerator{drafts: cleanDrafts(tf.Chapters)}, nil
}

// Drafts returns a copy of the current template.
func (g *TemplateGenerator) Drafts() []domain.ChapterDraft {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]domain.ChapterDraft, len(g.drafts))
	copy(out, g.drafts)
	return out
}

// replace swaps in the drafts of another template.
func (g *TemplateGenerator) replace(from *TemplateGenerator) {
	drafts := from.Drafts()
	g.mu.Lock()
	g.drafts = drafts
	g.mu.Unlock()
}

// Name implements Generator.
func (g *TemplateGenerator) Name() string { return KindTemplate }

// Generate implements Generator. The video is not inspected.
func (g *TemplateGenerator) Generate(ctx context.Context, _ *domain.VideoAsset) ([]domain.ChapterDraft, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.GenerationFailed(err)
	}
	return g.Drafts(), nil
}
