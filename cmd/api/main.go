// Package main provides the entry point for the Chapterdesk server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/do/v2"

	"github.com/chapterdesk/chapterdesk-server/internal/config"
	"github.com/chapterdesk/chapterdesk-server/internal/di"
	"github.com/chapterdesk/chapterdesk-server/internal/di/providers"
	"github.com/chapterdesk/chapterdesk-server/internal/logger"
)

// stopTimeout bounds how long the container may take to stop every handle.
const stopTimeout = 45 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx))
}

func run(ctx context.Context) int {
	injector := di.NewContainer()

	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap server: %v\n", err)
		return 1
	}

	log := do.MustInvoke[*logger.Logger](injector)
	cfg := do.MustInvoke[*config.Config](injector)
	storeHandle := do.MustInvoke[*providers.StoreHandle](injector)
	started := time.Now()

	log.Info("Chapterdesk ready",
		"port", cfg.Server.Port,
		"public_url", cfg.Server.PublicURL,
		"store", storeHandle.Backend,
		"generator", cfg.Generator.Kind,
	)

	<-ctx.Done()
	log.Info("Shutting down server gracefully...", "uptime", time.Since(started).Round(time.Second))

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	// Handles are stopped in reverse dependency order: HTTP server and mDNS
	// first, the chapter store last.
	report := injector.ShutdownWithContext(stopCtx)
	if !report.Succeed {
		log.Error("Shutdown error", "error", report.Error())
		return 1
	}

	log.Info("Server stopped", "store", storeHandle.Backend, "took", report.ShutdownTime)
	return 0
}
