package providers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/do/v2"

	"github.com/chapterdesk/chapterdesk-server/internal/api"
	"github.com/chapterdesk/chapterdesk-server/internal/config"
	"github.com/chapterdesk/chapterdesk-server/internal/logger"
	"github.com/chapterdesk/chapterdesk-server/internal/mdns"
	"github.com/chapterdesk/chapterdesk-server/internal/media/videos"
	"github.com/chapterdesk/chapterdesk-server/internal/service"
)

// uploadBurst lets a client retry a failed upload right away.
const uploadBurst = 2

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// UploadLimiterHandle wraps the per-IP upload limiter with Shutdownable.
type UploadLimiterHandle struct {
	*api.RateLimiter
}

// ProvideUploadLimiter provides the upload rate limiter.
func ProvideUploadLimiter(i do.Injector) (*UploadLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return &UploadLimiterHandle{
		RateLimiter: api.NewRateLimiter(cfg.Upload.RatePerMinute, time.Minute, uploadBurst),
	}, nil
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	chapterService := do.MustInvoke[*service.ChapterService](i)
	uploadService := do.MustInvoke[*service.UploadService](i)
	storage := do.MustInvoke[*videos.Storage](i)
	limiter := do.MustInvoke[*UploadLimiterHandle](i)

	services := &api.Services{
		Chapter: chapterService,
		Upload:  uploadService,
		Index:   indexHandle.ChapterIndex,
	}

	handler := api.NewServer(services, &api.StorageServices{Videos: storage}, api.Options{
		CORSOrigins:    cfg.Server.CORSOrigins,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		UploadLimiter:  limiter.RateLimiter,
	}, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr, "public_url", cfg.Server.PublicURL)

	return &HTTPServerHandle{Server: srv}, nil
}

// MDNSServiceHandle wraps mdns.Service with Shutdownable.
type MDNSServiceHandle struct {
	*mdns.Service
}

// Shutdown implements do.Shutdownable.
func (h *MDNSServiceHandle) Shutdown() error {
	if h.Service != nil {
		h.Stop()
	}
	return nil
}

// ProvideMDNSService provides the mDNS advertisement service.
func ProvideMDNSService(i do.Injector) (*MDNSServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Server.AdvertiseMDNS {
		log.Info("mDNS advertisement disabled by configuration")
		return &MDNSServiceHandle{}, nil
	}

	port, err := strconv.Atoi(cfg.Server.Port)
	if err != nil {
		return nil, err
	}

	svc := mdns.NewService(log.Logger)
	instance := mdns.Instance{
		Name:      cfg.Server.Name,
		Version:   api.Version,
		PublicURL: cfg.Server.PublicURL,
	}
	if err := svc.Start(instance, port); err != nil {
		// Non-fatal: the server works without mDNS (Docker, no avahi-daemon).
		log.Warn("mDNS advertisement unavailable", "error", err)
	}

	return &MDNSServiceHandle{Service: svc}, nil
}
