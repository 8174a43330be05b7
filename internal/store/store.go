// Package store defines the chapter storage abstraction and its in-memory backend.
//
// A ChapterStore owns the chapter collection of the active video and is the only
// place chapter IDs are assigned. IDs come from a counter held by the store
// instance; they increase strictly and are never handed out twice, even after the
// chapter that carried them is deleted or the collection is reseeded.
//
// Durable backends live in the badgerdb and sqlite subpackages. All backends are
// checked against the same behaviour in storetest.
package store

import (
	"context"

	"github.com/chapterdesk/chapterdesk-server/internal/domain"
)

// Backend names accepted by configuration.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// ChapterStore is the authoritative collection of chapters for the active video.
//
// Chapters are returned in insertion order. Because IDs are assigned in
// insertion order, this is also ascending ID order.
type ChapterStore interface {
	// Seed replaces the whole collection with drafts, assigning each a fresh ID,
	// and makes video the active video. A nil video clears it.
	Seed(ctx context.Context, video *domain.VideoAsset, drafts []domain.ChapterDraft) ([]domain.Chapter, error)

	// Create assigns the next ID and appends the chapter to the collection.
	Create(ctx context.Context, draft domain.ChapterDraft) (*domain.Chapter, error)

	// Update applies the non-nil fields of patch.
	// Returns errors.ErrNotFound if id is not in the collection.
	Update(ctx context.Context, id int64, patch domain.ChapterPatch) (*domain.Chapter, error)

	// Delete removes the chapter. Deleting an unknown id succeeds.
	Delete(ctx context.Context, id int64) error

	// List returns a snapshot of the collection.
	List(ctx context.Context) ([]domain.Chapter, error)

	// ActiveVideo returns the video the collection belongs to.
	// Returns errors.ErrNotFound before the first upload.
	ActiveVideo(ctx context.Context) (*domain.VideoAsset, error)

	Close() error
}
