package api

import (
	"github.com/chapterdesk/chapterdesk-server/internal/media/videos"
	"github.com/chapterdesk/chapterdesk-server/internal/search"
	"github.com/chapterdesk/chapterdesk-server/internal/service"
)

// Services groups all business logic services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Chapter *service.ChapterService
	Upload  *service.UploadService
	Index   *search.ChapterIndex // health reporting only; may be nil
}

// StorageServices groups file storage handlers used by the API server.
type StorageServices struct {
	Videos *videos.Storage // Uploaded videos served under /uploads
}
