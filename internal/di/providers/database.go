package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/chapterdesk/chapterdesk-server/internal/config"
	"github.com/chapterdesk/chapterdesk-server/internal/logger"
	"github.com/chapterdesk/chapterdesk-server/internal/store"
	"github.com/chapterdesk/chapterdesk-server/internal/store/badgerdb"
	"github.com/chapterdesk/chapterdesk-server/internal/store/sqlite"
)

// StoreHandle wraps the chapter store with shutdown capability.
type StoreHandle struct {
	store.ChapterStore
	Backend string
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the configured chapter store backend.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	var (
		chapterStore store.ChapterStore
		err          error
	)
	path := cfg.StorePath()

	switch cfg.Store.Backend {
	case store.BackendBadger:
		chapterStore, err = badgerdb.Open(path, log.Logger)
	case store.BackendSQLite:
		chapterStore, err = sqlite.Open(path, log.Logger)
	case store.BackendMemory:
		chapterStore = store.NewMemory()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}

	if path == "" {
		log.Info("Chapter store initialized", "backend", cfg.Store.Backend)
	} else {
		log.Info("Chapter store initialized", "backend", cfg.Store.Backend, "path", path)
	}

	return &StoreHandle{ChapterStore: chapterStore, Backend: cfg.Store.Backend}, nil
}
