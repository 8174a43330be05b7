// Package chapters turns an uploaded video into its initial chapter list.
//
// A Generator either returns an ordered list of drafts or a GENERATION_FAILED
// error. An empty list is a legitimate answer meaning the video has no
// chapters; it is never used to signal a failure.
package chapters

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chapterdesk/chapterdesk-server/internal/domain"
)

// Generator kinds accepted by configuration.
const (
	KindTemplate = "template"
	KindEmbedded = "embedded"
	KindFFprobe  = "ffprobe"
	KindAuto     = "auto"
)

// Generator produces the initial chapters for a stored video.
type Generator interface {
	// Name identifies the generator in logs.
	Name() string

	// Generate returns drafts in playback order. asset.LocalPath points at the stored file.
	Generate(ctx context.Context, asset *domain.VideoAsset) ([]domain.ChapterDraft, error)
}

// Options selects and configures a generator.
type Options struct {
	Kind         string
	TemplatePath string // optional YAML template; the built-in baseline is used when empty
	FFprobePath  string

	// Template, when set, is used instead of loading TemplatePath.
	// The server passes one it keeps reloading.
	Template *TemplateGenerator
}

// New builds the generator described by opts.
// The auto kind reads chapters embedded in the container, then asks ffprobe,
// then falls back to the template.
func New(opts Options, logger *slog.Logger) (Generator, error) {
	template, err := newTemplateFromOptions(opts)
	if err != nil {
		return nil, err
	}

	switch opts.Kind {
	case KindTemplate, "":
		return template, nil
	case KindEmbedded:
		return NewEmbeddedGenerator(), nil
	case KindFFprobe:
		return NewProbeGenerator(opts.FFprobePath), nil
	case KindAuto:
		return NewChain(logger,
			NewEmbeddedGenerator(),
			NewProbeGenerator(opts.FFprobePath),
			template,
		), nil
	default:
		return nil, fmt.Errorf("unknown generator kind %q", opts.Kind)
	}
}

func newTemplateFromOptions(opts Options) (*TemplateGenerator, error) {
	if opts.Template != nil {
		return opts.Template, nil
	}
	if opts.TemplatePath == "" {
		return NewTemplateGenerator(), nil
	}
	return LoadTemplate(opts.TemplatePath)
}

// cleanDrafts normalizes titles and drops markers without a usable position.
// Untitled markers get a positional placeholder, which AnalyzeChapters flags.
func cleanDrafts(drafts []domain.ChapterDraft) []domain.ChapterDraft {
	out := make([]domain.ChapterDraft, 0, len(drafts))
	for _, d := range drafts {
		if !domain.ValidTimestamp(d.Timestamp) {
			continue
		}
		d.Title = domain.NormalizeTitle(d.Title)
		if d.Title == "" {
			d.Title = fmt.Sprintf("Chapter %d", len(out)+1)
		}
		out = append(out, d)
	}
	return out
}
