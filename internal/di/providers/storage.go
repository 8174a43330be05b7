package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/chapterdesk/chapterdesk-server/internal/config"
	"github.com/chapterdesk/chapterdesk-server/internal/logger"
	"github.com/chapterdesk/chapterdesk-server/internal/media/videos"
)

// ProvideVideoStorage provides the upload directory.
func ProvideVideoStorage(i do.Injector) (*videos.Storage, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	storage, err := videos.NewStorage(cfg.Data.BasePath)
	if err != nil {
		return nil, fmt.Errorf("video storage: %w", err)
	}

	log.Info("Video storage initialized", "dir", storage.Dir())

	return storage, nil
}
