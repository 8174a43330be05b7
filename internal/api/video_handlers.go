package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/chapterdesk/chapterdesk-server/internal/domain"
	domainerrors "github.com/chapterdesk/chapterdesk-server/internal/errors"
	"github.com/chapterdesk/chapterdesk-server/internal/http/response"
	"github.com/chapterdesk/chapterdesk-server/internal/id"
	"github.com/chapterdesk/chapterdesk-server/internal/service"
)

// multipartMemory is how much of a multipart form is held in memory before
// file parts spill to temporary files.
const multipartMemory = 8 << 20

// multipartOverhead covers boundaries and metadata fields around the video part.
const multipartOverhead = 1 << 20

func (s *Server) registerVideoRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getActiveVideo",
		Method:      http.MethodGet,
		Path:        "/api/video",
		Summary:     "Get active video",
		Description: "Returns the video the current chapters belong to",
		Tags:        []string{"Video"},
	}, s.handleGetVideo)
}

// VideoResponse describes the active video.
type VideoResponse struct {
	VideoURL    string    `json:"videoUrl" doc:"Playable URL"`
	Filename    string    `json:"filename" doc:"Name of the uploaded file"`
	ContentType string    `json:"contentType" doc:"Detected media type"`
	Size        int64     `json:"size" doc:"Size in bytes"`
	Title       string    `json:"title" doc:"Work instruction title"`
	PlantUnit   string    `json:"plantUnit" doc:"Plant unit"`
	Asset       string    `json:"asset" doc:"Asset"`
	Category    string    `json:"category" doc:"Category"`
	UploadedAt  time.Time `json:"uploadedAt" doc:"Upload time"`
}

// VideoOutput wraps the video response for Huma.
type VideoOutput struct {
	Body VideoResponse
}

func (s *Server) handleGetVideo(ctx context.Context, _ *struct{}) (*VideoOutput, error) {
	video, err := s.services.Chapter.ActiveVideo(ctx)
	if err != nil {
		if domainerrors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.NotFound("no video uploaded yet")
		}
		return nil, err
	}
	return &VideoOutput{Body: toVideoResponse(video)}, nil
}

func toVideoResponse(v *domain.VideoAsset) VideoResponse {
	return VideoResponse{
		VideoURL:    v.URL,
		Filename:    v.Filename,
		ContentType: v.ContentType,
		Size:        v.Size,
		Title:       v.Metadata.Title,
		PlantUnit:   v.Metadata.PlantUnit,
		Asset:       v.Metadata.Asset,
		Category:    v.Metadata.Category,
		UploadedAt:  v.UploadedAt,
	}
}

// handleUpload accepts a multipart form with a "video" file part and the
// title, plantUnit, asset and category fields.
// This is a chi handler (not Huma) because Huma doesn't easily support multipart forms.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+multipartOverhead)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.BadRequest(w, "video file is too large", s.logger)
			return
		}
		response.BadRequest(w, "expected a multipart form", s.logger)
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			s.logger.Warn("failed to remove multipart temp files", "error", err)
		}
	}()

	file, header, err := r.FormFile("video")
	if err != nil {
		response.BadRequest(w, "video file is required", s.logger)
		return
	}
	defer file.Close()

	result, err := s.services.Upload.Upload(r.Context(), service.UploadInput{
		Metadata: domain.UploadMetadata{
			Title:     r.FormValue("title"),
			PlantUnit: r.FormValue("plantUnit"),
			Asset:     r.FormValue("asset"),
			Category:  r.FormValue("category"),
		},
		Filename: header.Filename,
		File:     file,
	})
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, result, s.logger)
}

// serveUploads serves stored videos. Only names the video storage hands out
// are served, so listings and in-progress upload files stay hidden.
func serveUploads(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean("/" + r.URL.Path)
		if !id.IsVideoFile(strings.TrimPrefix(name, "/")) {
			http.NotFound(w, r)
			return
		}
		if info, err := os.Stat(filepath.Join(dir, name[1:])); err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		fs.ServeHTTP(w, r)
	})
}
