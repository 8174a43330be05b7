package chapters

import (
	"context"
	"log/slog"

	"github.com/chapterdesk/chapterdesk-server/internal/domain"
	"github.com/chapterdesk/chapterdesk-server/internal/errors"
)

// Chain tries generators in order and returns the first non-empty result.
//
// A generator that fails or finds nothing hands over to the next one. If the
// last generator finds nothing, the empty list is returned. If every generator
// fails, the chain fails with all their errors joined.
type Chain struct {
	generators []Generator
	logger     *slog.Logger
}

// NewChain creates a chain over generators.
func NewChain(logger *slog.Logger, generators ...Generator) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{generators: generators, logger: logger}
}

// Name implements Generator.
func (c *Chain) Name() string { return KindAuto }

// Generate implements Generator.
func (c *Chain) Generate(ctx context.Context, asset *domain.VideoAsset) ([]domain.ChapterDraft, error) {
	var (
		errs      []error
		succeeded bool
	)

	for _, g := range c.generators {
		if err := ctx.Err(); err != nil {
			return nil, errors.GenerationFailed(err)
		}

		drafts, err := g.Generate(ctx, asset)
		if err != nil {
			c.logger.Debug("chapter generator failed, trying next",
				"generator", g.Name(),
				"error", err,
			)
			errs = append(errs, err)
			continue
		}

		succeeded = true
		if len(drafts) > 0 {
			c.logger.Debug("chapter generator produced chapters",
				"generator", g.Name(),
				"count", len(drafts),
			)
			return drafts, nil
		}
	}

	if succeeded {
		return []domain.ChapterDraft{}, nil
	}
	return nil, errors.GenerationFailed(errors.Join(errs...))
}
