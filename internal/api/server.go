// Package api provides the HTTP API server and handlers for Chapterdesk.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Version is reported in the OpenAPI document.
const Version = "1.0.0"

// Options configures the parts of the server that come from configuration.
type Options struct {
	CORSOrigins    []string
	MaxUploadBytes int64
	// UploadLimiter throttles POST /api/upload per client IP. Nil disables it.
	UploadLimiter *RateLimiter
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services *Services
	storage  *StorageServices
	opts     Options
	router   *chi.Mux
	api      huma.API
	logger   *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, storage *StorageServices, opts Options, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		services: services,
		storage:  storage,
		opts:     opts,
		router:   router,
		logger:   logger,
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Chapterdesk API", Version)
	// Response bodies are plain JSON without a $schema link.
	humaConfig.CreateHooks = nil
	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerChapterRoutes()
	s.registerVideoRoutes()

	// Multipart upload is a chi handler; huma does not stream file parts.
	upload := http.Handler(http.HandlerFunc(s.handleUpload))
	if s.opts.UploadLimiter != nil {
		upload = RateLimitMiddleware(s.opts.UploadLimiter, s.logger)(upload)
	}
	s.router.Method(http.MethodPost, "/api/upload", upload)

	if s.storage != nil && s.storage.Videos != nil {
		s.router.Handle("/uploads/*", http.StripPrefix("/uploads/", serveUploads(s.storage.Videos.Dir())))
	}
}
