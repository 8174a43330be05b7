package providers

import (
	"github.com/samber/do/v2"

	"github.com/chapterdesk/chapterdesk-server/internal/chapters"
	"github.com/chapterdesk/chapterdesk-server/internal/config"
	"github.com/chapterdesk/chapterdesk-server/internal/logger"
	"github.com/chapterdesk/chapterdesk-server/internal/media/videos"
	"github.com/chapterdesk/chapterdesk-server/internal/service"
	"github.com/chapterdesk/chapterdesk-server/internal/validation"
)

// GeneratorHandle wraps the configured chapter generator.
type GeneratorHandle struct {
	chapters.Generator
	watcher *chapters.TemplateWatcher
}

// Shutdown implements do.Shutdowner.
func (h *GeneratorHandle) Shutdown() error {
	if h.watcher == nil {
		return nil
	}
	return h.watcher.Close()
}

// ProvideGenerator builds the chapter generator selected by configuration.
func ProvideGenerator(i do.Injector) (*GeneratorHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	opts := chapters.Options{
		Kind:         cfg.Generator.Kind,
		TemplatePath: cfg.Generator.TemplatePath,
		FFprobePath:  cfg.Generator.FFprobePath,
	}

	var watcher *chapters.TemplateWatcher
	if cfg.Generator.TemplatePath != "" && cfg.Generator.WatchTemplate && opts.Kind != chapters.KindEmbedded && opts.Kind != chapters.KindFFprobe {
		template, err := chapters.LoadTemplate(cfg.Generator.TemplatePath)
		if err != nil {
			return nil, err
		}
		// Watching is best effort; the loaded template still serves.
		watcher, err = chapters.WatchTemplate(cfg.Generator.TemplatePath, template, chapters.DefaultSettleDelay, log.Logger)
		if err != nil {
			log.Warn("Chapter template will not be reloaded", "error", err)
		}
		opts.Template = template
	}

	generator, err := chapters.New(opts, log.Logger)
	if err != nil {
		if watcher != nil {
			_ = watcher.Close()
		}
		return nil, err
	}

	log.Info("Chapter generator ready",
		"kind", generator.Name(),
		"timeout", cfg.Generator.Timeout,
		"max_concurrent", cfg.Generator.MaxConcurrent,
	)

	return &GeneratorHandle{Generator: generator, watcher: watcher}, nil
}

// ProvideChapterService provides the chapter service.
func ProvideChapterService(i do.Injector) (*service.ChapterService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewChapterService(storeHandle.ChapterStore, indexHandle.ChapterIndex, log.Logger), nil
}

// ProvideUploadService provides the upload service.
func ProvideUploadService(i do.Injector) (*service.UploadService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	chapterService := do.MustInvoke[*service.ChapterService](i)
	storage := do.MustInvoke[*videos.Storage](i)
	generator := do.MustInvoke[*GeneratorHandle](i)
	validator := do.MustInvoke[*validation.Validator](i)

	return service.NewUploadService(chapterService, storage, generator.Generator, validator, service.UploadConfig{
		PublicURL:     cfg.Server.PublicURL,
		MaxBytes:      cfg.Upload.MaxBytes,
		Timeout:       cfg.Generator.Timeout,
		MaxConcurrent: int64(cfg.Generator.MaxConcurrent),
	}, log.Logger), nil
}
