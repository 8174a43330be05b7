package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/chapterdesk/chapterdesk-server/internal/chapters"
	"github.com/chapterdesk/chapterdesk-server/internal/domain"
	"github.com/chapterdesk/chapterdesk-server/internal/errors"
	"github.com/chapterdesk/chapterdesk-server/internal/media/videos"
	"github.com/chapterdesk/chapterdesk-server/internal/validation"
)

// UploadConfig tunes the upload pipeline.
type UploadConfig struct {
	PublicURL     string // prefix for videoUrl, e.g. http://localhost:5000
	MaxBytes      int64
	Timeout       time.Duration // per generator run
	MaxConcurrent int64         // generator runs allowed at once
}

// UploadInput is a single video upload.
type UploadInput struct {
	Metadata domain.UploadMetadata
	Filename string
	File     io.Reader
}

// UploadResult is what the client receives after a successful upload.
type UploadResult struct {
	VideoURL    string           `json:"videoUrl"`
	Chapters    []domain.Chapter `json:"chapters"`
	NeedsReview bool             `json:"needsReview"`
}

// UploadService stores a video, generates its initial chapters, and
// replaces the active collection with them.
type UploadService struct {
	chapterSvc *ChapterService
	storage    *videos.Storage
	generator  chapters.Generator
	validator  *validation.Validator
	sem        *semaphore.Weighted
	cfg        UploadConfig
	logger     *slog.Logger
	now        func() time.Time
}

// NewUploadService creates a new upload service.
func NewUploadService(
	chapterSvc *ChapterService,
	storage *videos.Storage,
	generator chapters.Generator,
	validator *validation.Validator,
	cfg UploadConfig,
	logger *slog.Logger,
) *UploadService {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")

	return &UploadService{
		chapterSvc: chapterSvc,
		storage:    storage,
		generator:  generator,
		validator:  validator,
		sem:        semaphore.NewWeighted(cfg.MaxConcurrent),
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Upload runs the whole pipeline. Nothing observable changes unless it
// succeeds: a failed generation removes the stored file and leaves the
// previous video and its chapters in place.
func (s *UploadService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	meta := domain.UploadMetadata{
		Title:     strings.TrimSpace(in.Metadata.Title),
		PlantUnit: strings.TrimSpace(in.Metadata.PlantUnit),
		Asset:     strings.TrimSpace(in.Metadata.Asset),
		Category:  strings.TrimSpace(in.Metadata.Category),
	}
	if err := s.validator.Validate(meta); err != nil {
		return nil, err
	}
	if in.File == nil {
		return nil, errors.Validation("video file is required")
	}

	stored, err := s.storage.Save(in.File, in.Filename, s.cfg.MaxBytes)
	if err != nil {
		return nil, err
	}

	asset := &domain.VideoAsset{
		ID:          strings.TrimSuffix(stored.Name, filepath.Ext(stored.Name)),
		URL:         s.cfg.PublicURL + "/uploads/" + stored.Name,
		Filename:    filepath.Base(in.Filename),
		StoredName:  stored.Name,
		LocalPath:   stored.Path,
		ContentType: stored.ContentType,
		Size:        stored.Size,
		Metadata:    meta,
		UploadedAt:  s.now().UTC(),
	}
	log := s.logger.With("video_id", asset.ID)
	log.Info("video stored", "size", asset.Size, "content_type", asset.ContentType)

	drafts, err := s.generate(ctx, asset)
	if err != nil {
		s.discard(log, stored.Name)
		return nil, err
	}

	seeded, previous, err := s.chapterSvc.Seed(ctx, asset, drafts)
	if err != nil {
		s.discard(log, stored.Name)
		if errors.Is(err, errors.ErrValidation) {
			return nil, errors.GenerationFailed(err)
		}
		return nil, err
	}

	if previous != nil && previous.StoredName != "" && previous.StoredName != asset.StoredName {
		if err := s.storage.Delete(previous.StoredName); err != nil {
			log.Warn("failed to remove previous video", "previous", previous.StoredName, "error", err)
		}
	}

	analysis := chapters.AnalyzeChapters(drafts)
	log.Info("upload complete",
		"chapters", len(seeded),
		"generator", s.generator.Name(),
		"needs_review", analysis.NeedsReview,
	)

	return &UploadResult{
		VideoURL:    asset.URL,
		Chapters:    seeded,
		NeedsReview: analysis.NeedsReview,
	}, nil
}

// generate runs the generator under the concurrency limit and timeout.
func (s *UploadService) generate(ctx context.Context, asset *domain.VideoAsset) ([]domain.ChapterDraft, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.GenerationFailed(err)
	}
	defer s.sem.Release(1)

	genCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := s.now()
	drafts, err := s.generator.Generate(genCtx, asset)
	if err != nil {
		if errors.Is(err, errors.ErrGenerationFailed) {
			return nil, err
		}
		return nil, errors.GenerationFailed(err)
	}

	s.logger.Debug("chapters generated",
		"video_id", asset.ID,
		"count", len(drafts),
		"elapsed", s.now().Sub(start),
	)
	return drafts, nil
}

func (s *UploadService) discard(log *slog.Logger, name string) {
	if err := s.storage.Delete(name); err != nil {
		log.Warn("failed to remove rejected video", "name", name, "error", err)
	}
}
