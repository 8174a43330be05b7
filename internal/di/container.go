// Package di provides dependency injection configuration for the Chapterdesk server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/chapterdesk/chapterdesk-server/internal/config"
	"github.com/chapterdesk/chapterdesk-server/internal/di/providers"
	"github.com/chapterdesk/chapterdesk-server/internal/logger"
	"github.com/chapterdesk/chapterdesk-server/internal/media/videos"
	"github.com/chapterdesk/chapterdesk-server/internal/service"
	"github.com/chapterdesk/chapterdesk-server/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)
	do.Provide(injector, providers.ProvideValidator)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideVideoStorage)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Business services
	do.Provide(injector, providers.ProvideGenerator)
	do.Provide(injector, providers.ProvideChapterService)
	do.Provide(injector, providers.ProvideUploadService)

	// Server
	do.Provide(injector, providers.ProvideUploadLimiter)
	do.Provide(injector, providers.ProvideHTTPServer)
	do.Provide(injector, providers.ProvideMDNSService)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Configuration errors are the common failure; report them instead of panicking.
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*validation.Validator](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*videos.Storage](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*providers.GeneratorHandle](injector)
	_ = do.MustInvoke[*service.ChapterService](injector)
	_ = do.MustInvoke[*service.UploadService](injector)

	// Index whatever a durable store already holds before serving.
	providers.RebuildSearchIndex(injector)

	_ = do.MustInvoke[*providers.UploadLimiterHandle](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)
	_ = do.MustInvoke[*providers.MDNSServiceHandle](injector)

	return nil
}
