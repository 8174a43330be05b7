package store

import (
	"context"
	"sync"

	"github.com/chapterdesk/chapterdesk-server/internal/domain"
	"github.com/chapterdesk/chapterdesk-server/internal/errors"
)

// Memory keeps the collection in process memory. Nothing survives a restart.
type Memory struct {
	mu       sync.RWMutex
	chapters []domain.Chapter
	video    *domain.VideoAsset
	nextID   int64
}

var _ ChapterStore = (*Memory)(nil)

// NewMemory returns an empty store whose first assigned ID is 1.
func NewMemory() *Memory {
	return &Memory{nextID: 1}
}

// Seed implements ChapterStore.
func (m *Memory) Seed(_ context.Context, video *domain.VideoAsset, drafts []domain.ChapterDraft) ([]domain.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	chapters := make([]domain.Chapter, 0, len(drafts))
	for _, d := range drafts {
		chapters = append(chapters, m.assign(d))
	}

	m.chapters = chapters
	if video != nil {
		v := *video
		m.video = &v
	} else {
		m.video = nil
	}

	return domain.CloneChapters(chapters), nil
}

// Create implements ChapterStore.
func (m *Memory) Create(_ context.Context, draft domain.ChapterDraft) (*domain.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := m.assign(draft)
	m.chapters = append(m.chapters, ch)
	return &ch, nil
}

// Update implements ChapterStore.
func (m *Memory) Update(_ context.Context, id int64, patch domain.ChapterPatch) (*domain.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return nil, errors.NotFoundf("chapter %d not found", id)
	}

	patch.Apply(&m.chapters[i])
	ch := m.chapters[i]
	return &ch, nil
}

// Delete implements ChapterStore.
func (m *Memory) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return nil
	}

	// Build a new slice so snapshots handed out earlier stay intact.
	next := make([]domain.Chapter, 0, len(m.chapters)-1)
	next = append(next, m.chapters[:i]...)
	next = append(next, m.chapters[i+1:]...)
	m.chapters = next
	return nil
}

// List implements ChapterStore.
func (m *Memory) List(_ context.Context) ([]domain.Chapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return domain.CloneChapters(m.chapters), nil
}

// ActiveVideo implements ChapterStore.
func (m *Memory) ActiveVideo(_ context.Context) (*domain.VideoAsset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.video == nil {
		return nil, errors.NotFound("no video has been uploaded")
	}
	v := *m.video
	return &v, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// assign must be called with mu held.
func (m *Memory) assign(d domain.ChapterDraft) domain.Chapter {
	ch := domain.Chapter{ID: m.nextID, Title: d.Title, Timestamp: d.Timestamp}
	m.nextID++
	return ch
}

func (m *Memory) indexOf(id int64) int {
	for i := range m.chapters {
		if m.chapters[i].ID == id {
			return i
		}
	}
	return -1
}
