package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/chapterdesk/chapterdesk-server/internal/domain"
	"github.com/chapterdesk/chapterdesk-server/internal/errors"
	"github.com/chapterdesk/chapterdesk-server/internal/search"
	"github.com/chapterdesk/chapterdesk-server/internal/store"
)

// ChapterService is the single writer of the chapter collection.
// Every mutation goes through it so the store and the search index move together.
type ChapterService struct {
	mu     sync.RWMutex
	store  store.ChapterStore
	index  *search.ChapterIndex
	logger *slog.Logger
}

// NewChapterService creates a new chapter service. index may be nil, in which
// case Search always returns an empty result.
func NewChapterService(store store.ChapterStore, index *search.ChapterIndex, logger *slog.Logger) *ChapterService {
	return &ChapterService{
		store:  store,
		index:  index,
		logger: logger,
	}
}

// CreateChapterInput carries the optional fields of a create request.
type CreateChapterInput struct {
	Title     *string
	Timestamp *float64
}

// List returns the chapters in insertion order.
func (s *ChapterService) List(ctx context.Context) ([]domain.Chapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.List(ctx)
}

// ActiveVideo returns the video the chapters belong to.
func (s *ChapterService) ActiveVideo(ctx context.Context) (*domain.VideoAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.ActiveVideo(ctx)
}

// Create appends a chapter. Missing fields fall back to "New Chapter" at 0 seconds.
func (s *ChapterService) Create(ctx context.Context, in CreateChapterInput) (*domain.Chapter, error) {
	draft := domain.ChapterDraft{
		Title:     domain.DefaultChapterTitle,
		Timestamp: domain.DefaultChapterTimestamp,
	}
	if in.Title != nil {
		title, err := checkTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		draft.Title = title
	}
	if in.Timestamp != nil {
		if err := checkTimestamp(*in.Timestamp); err != nil {
			return nil, err
		}
		draft.Timestamp = *in.Timestamp
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ch, err := s.store.Create(ctx, draft)
	if err != nil {
		return nil, err
	}
	s.indexChapter(*ch)

	s.logger.Info("chapter created", "id", ch.ID, "timestamp", ch.Timestamp)
	return ch, nil
}

// Update applies a partial change. Fields left nil keep their stored value.
func (s *ChapterService) Update(ctx context.Context, id int64, patch domain.ChapterPatch) (*domain.Chapter, error) {
	if patch.Title != nil {
		title, err := checkTitle(*patch.Title)
		if err != nil {
			return nil, err
		}
		patch.Title = &title
	}
	if patch.Timestamp != nil {
		if err := checkTimestamp(*patch.Timestamp); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ch, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		s.indexChapter(*ch)
	}

	s.logger.Debug("chapter updated", "id", id)
	return ch, nil
}

// Delete removes a chapter. Unknown ids are not an error.
func (s *ChapterService) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if s.index != nil {
		if err := s.index.Delete(id); err != nil {
			s.logger.Warn("failed to remove chapter from index", "id", id, "error", err)
		}
	}

	s.logger.Info("chapter deleted", "id", id)
	return nil
}

// Seed replaces the collection with drafts and makes video active.
// It returns the new chapters and the video that was active before, if any,
// so the caller can release its file.
func (s *ChapterService) Seed(ctx context.Context, video *domain.VideoAsset, drafts []domain.ChapterDraft) ([]domain.Chapter, *domain.VideoAsset, error) {
	clean := make([]domain.ChapterDraft, 0, len(drafts))
	for i, d := range drafts {
		title, err := checkTitle(d.Title)
		if err != nil {
			return nil, nil, errors.Validationf("chapter %d: %s", i+1, err.Error())
		}
		if err := checkTimestamp(d.Timestamp); err != nil {
			return nil, nil, errors.Validationf("chapter %d: %s", i+1, err.Error())
		}
		clean = append(clean, domain.ChapterDraft{Title: title, Timestamp: d.Timestamp})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous, err := s.store.ActiveVideo(ctx)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return nil, nil, err
	}

	seeded, err := s.store.Seed(ctx, video, clean)
	if err != nil {
		return nil, nil, err
	}

	if s.index != nil {
		if err := s.index.Replace(seeded); err != nil {
			s.logger.Warn("failed to rebuild chapter index", "error", err)
		}
	}

	s.logger.Info("chapters seeded", "count", len(seeded))
	return seeded, previous, nil
}

// Search returns chapters whose titles match q, best match first.
func (s *ChapterService) Search(ctx context.Context, q string, limit int) ([]domain.Chapter, error) {
	if s.index == nil {
		return []domain.Chapter{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits, err := s.index.Search(ctx, q, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "search failed")
	}
	if len(hits) == 0 {
		return []domain.Chapter{}, nil
	}

	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]domain.Chapter, len(all))
	for _, ch := range all {
		byID[ch.ID] = ch
	}

	results := make([]domain.Chapter, 0, len(hits))
	for _, h := range hits {
		if ch, ok := byID[h.ID]; ok {
			results = append(results, ch)
		}
	}
	return results, nil
}

// RebuildIndex loads the stored chapters into the search index.
// Called once at startup for durable backends.
func (s *ChapterService) RebuildIndex(ctx context.Context) error {
	if s.index == nil {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.store.List(ctx)
	if err != nil {
		return err
	}
	if err := s.index.Replace(all); err != nil {
		return err
	}

	s.logger.Info("chapter index rebuilt", "count", len(all))
	return nil
}

func (s *ChapterService) indexChapter(ch domain.Chapter) {
	if s.index == nil {
		return
	}
	if err := s.index.Index(ch); err != nil {
		s.logger.Warn("failed to index chapter", "id", ch.ID, "error", err)
	}
}

func checkTitle(raw string) (string, error) {
	title := domain.NormalizeTitle(raw)
	if title == "" {
		return "", errors.Validation("title cannot be empty")
	}
	if len([]rune(title)) > domain.MaxTitleLength {
		return "", errors.Validationf("title must be at most %d characters", domain.MaxTitleLength)
	}
	return title, nil
}

func checkTimestamp(ts float64) error {
	if !domain.ValidTimestamp(ts) {
		return errors.Validation("timestamp must be a finite number of seconds, zero or greater")
	}
	return nil
}
