package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapterdesk/chapterdesk-server/internal/chapters"
	"github.com/chapterdesk/chapterdesk-server/internal/http/response"
	"github.com/chapterdesk/chapterdesk-server/internal/media/videos"
	"github.com/chapterdesk/chapterdesk-server/internal/search"
	"github.com/chapterdesk/chapterdesk-server/internal/service"
	"github.com/chapterdesk/chapterdesk-server/internal/store"
	"github.com/chapterdesk/chapterdesk-server/internal/validation"
)

const testPublicURL = "http://localhost:5000"

type testServer struct {
	*Server
	api     humatest.TestAPI
	storage *videos.Storage
}

func setupTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	index, err := search.NewChapterIndex(logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	storage, err := videos.NewStorage(t.TempDir())
	require.NoError(t, err)

	chapterSvc := service.NewChapterService(store.NewMemory(), index, logger)
	uploadSvc := service.NewUploadService(chapterSvc, storage, chapters.NewTemplateGenerator(), validation.New(),
		service.UploadConfig{
			PublicURL:     testPublicURL,
			MaxBytes:      opts.MaxUploadBytes,
			Timeout:       5 * time.Second,
			MaxConcurrent: 1,
		}, logger)

	srv := NewServer(
		&Services{Chapter: chapterSvc, Upload: uploadSvc, Index: index},
		&StorageServices{Videos: storage},
		opts,
		logger,
	)

	return &testServer{
		Server:  srv,
		api:     humatest.Wrap(t, srv.API()),
		storage: storage,
	}
}

type testChapter struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	Timestamp float64 `json:"timestamp"`
}

type testUploadResponse struct {
	VideoURL    string        `json:"videoUrl"`
	Chapters    []testChapter `json:"chapters"`
	NeedsReview bool          `json:"needsReview"`
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func mp4Bytes() []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x00, 0x00, 0x18})
	buf.WriteString("ftypisom")
	buf.Write([]byte{0x00, 0x00, 0x02, 0x00})
	buf.WriteString("isomiso2")
	buf.Write(make([]byte, 64))
	return buf.Bytes()
}

// uploadRequest builds a multipart upload. A nil video omits the file part.
func uploadRequest(t *testing.T, fields map[string]string, video []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if video != nil {
		part, err := mw.CreateFormFile("video", "changeover.mp4")
		require.NoError(t, err)
		_, err = part.Write(video)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func validFields() map[string]string {
	return map[string]string{
		"title":     "Pump changeover",
		"plantUnit": "Unit 1",
		"asset":     "Asset A",
		"category":  "Category 1",
	}
}

func (ts *testServer) upload(t *testing.T, fields map[string]string, video []byte) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, uploadRequest(t, fields, video))
	return w
}

func TestChapters_ListEmpty(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get("/api/chapters")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, "[]", resp.Body.String())
}

func TestChapters_CreateDefaults(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Post("/api/chapters", map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.JSONEq(t, `{"id":1,"title":"New Chapter","timestamp":0}`, resp.Body.String())
	assert.NotContains(t, resp.Body.String(), "$schema")
}

func TestChapters_CreateWithFields(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Post("/api/chapters", map[string]any{"title": "  Lockout ", "timestamp": 95.5})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	ch := decode[testChapter](t, resp.Body.Bytes())
	assert.Equal(t, testChapter{ID: 1, Title: "Lockout", Timestamp: 95.5}, ch)

	list := decode[[]testChapter](t, ts.api.Get("/api/chapters").Body.Bytes())
	assert.Equal(t, []testChapter{ch}, list)
}

func TestChapters_CreateRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"negative timestamp", map[string]any{"timestamp": -3}},
		{"blank title", map[string]any{"title": "   "}},
		{"title too long", map[string]any{"title": strings.Repeat("a", 201)}},
		{"timestamp wrong type", map[string]any{"timestamp": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := setupTestServer(t, Options{})

			resp := ts.api.Post("/api/chapters", tt.body)
			require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())

			body := decode[response.ErrorBody](t, resp.Body.Bytes())
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, "VALIDATION", body.Code)

			assert.JSONEq(t, "[]", ts.api.Get("/api/chapters").Body.String())
		})
	}
}

func TestChapters_UpdatePartial(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.api.Post("/api/chapters", map[string]any{"title": "Start", "timestamp": 10})

	resp := ts.api.Put("/api/chapters/1", map[string]any{"title": "Startup"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.JSONEq(t, `{"id":1,"title":"Startup","timestamp":10}`, resp.Body.String())

	resp = ts.api.Put("/api/chapters/1", map[string]any{"timestamp": 12.25})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.JSONEq(t, `{"id":1,"title":"Startup","timestamp":12.25}`, resp.Body.String())
}

func TestChapters_UpdateAcceptsExtraFields(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.api.Post("/api/chapters", map[string]any{})

	resp := ts.api.Put("/api/chapters/1", map[string]any{"id": 1, "title": "Renamed", "timestamp": 0})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.JSONEq(t, `{"id":1,"title":"Renamed","timestamp":0}`, resp.Body.String())
}

func TestChapters_UpdateNotFound(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Put("/api/chapters/99", map[string]any{"title": "Ghost"})
	require.Equal(t, http.StatusNotFound, resp.Code)

	body := decode[response.ErrorBody](t, resp.Body.Bytes())
	assert.Equal(t, "NOT_FOUND", body.Code)
	assert.NotEmpty(t, body.Error)
}

func TestChapters_NonNumericID(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.api.Post("/api/chapters", map[string]any{})

	resp := ts.api.Put("/api/chapters/abc", map[string]any{"title": "x"})
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", decode[response.ErrorBody](t, resp.Body.Bytes()).Code)

	for _, path := range []string{"/api/chapters/abc", "/api/chapters/1.5", "/api/chapters/-5"} {
		resp := ts.api.Delete(path)
		require.Equal(t, http.StatusOK, resp.Code, path)
		assert.JSONEq(t, `{"success":true}`, resp.Body.String())
	}

	list := decode[[]testChapter](t, ts.api.Get("/api/chapters").Body.Bytes())
	require.Len(t, list, 1)
	assert.Equal(t, "New Chapter", list[0].Title)
}

func TestChapters_UpdateEmptyBody(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.api.Post("/api/chapters", map[string]any{"title": "Lockout", "timestamp": 75})

	resp := ts.api.Put("/api/chapters/1")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, testChapter{ID: 1, Title: "Lockout", Timestamp: 75}, decode[testChapter](t, resp.Body.Bytes()))

	resp = ts.api.Put("/api/chapters/1", map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, testChapter{ID: 1, Title: "Lockout", Timestamp: 75}, decode[testChapter](t, resp.Body.Bytes()))
}

func TestChapters_DeleteAlwaysSucceeds(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.api.Post("/api/chapters", map[string]any{})
	ts.api.Post("/api/chapters", map[string]any{})

	for _, path := range []string{"/api/chapters/1", "/api/chapters/1", "/api/chapters/77"} {
		resp := ts.api.Delete(path)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.JSONEq(t, `{"success":true}`, resp.Body.String())
	}

	list := decode[[]testChapter](t, ts.api.Get("/api/chapters").Body.Bytes())
	require.Len(t, list, 1)
	assert.Equal(t, int64(2), list[0].ID)

	created := decode[testChapter](t, ts.api.Post("/api/chapters", map[string]any{}).Body.Bytes())
	assert.Equal(t, int64(3), created.ID)
}

func TestVideo_NotFoundBeforeUpload(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get("/api/video")
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", decode[response.ErrorBody](t, resp.Body.Bytes()).Code)
}

func TestUpload_FullFlow(t *testing.T) {
	ts := setupTestServer(t, Options{})

	w := ts.upload(t, validFields(), mp4Bytes())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	result := decode[testUploadResponse](t, w.Body.Bytes())
	assert.True(t, strings.HasPrefix(result.VideoURL, testPublicURL+"/uploads/vid-"))
	assert.False(t, result.NeedsReview)
	assert.Equal(t, []testChapter{
		{ID: 1, Title: "Introduction", Timestamp: 0},
		{ID: 2, Title: "Process Overview", Timestamp: 30},
		{ID: 3, Title: "Safety Instructions", Timestamp: 60},
	}, result.Chapters)

	list := decode[[]testChapter](t, ts.api.Get("/api/chapters").Body.Bytes())
	assert.Equal(t, result.Chapters, list)

	video := decode[VideoResponse](t, ts.api.Get("/api/video").Body.Bytes())
	assert.Equal(t, result.VideoURL, video.VideoURL)
	assert.Equal(t, "Unit 1", video.PlantUnit)
	assert.Equal(t, "changeover.mp4", video.Filename)

	// The video is served where videoUrl points.
	u, err := url.Parse(result.VideoURL)
	require.NoError(t, err)
	served := httptest.NewRecorder()
	ts.ServeHTTP(served, httptest.NewRequest(http.MethodGet, u.Path, nil))
	require.Equal(t, http.StatusOK, served.Code)
	assert.Equal(t, mp4Bytes(), served.Body.Bytes())

	hits := decode[[]testChapter](t, ts.api.Get("/api/chapters/search?q=safety").Body.Bytes())
	require.Len(t, hits, 1)
	assert.Equal(t, int64(3), hits[0].ID)
}

func TestUpload_MissingFile(t *testing.T) {
	ts := setupTestServer(t, Options{})

	w := ts.upload(t, validFields(), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decode[response.ErrorBody](t, w.Body.Bytes())
	assert.Equal(t, "video file is required", body.Error)
	assert.Equal(t, "VALIDATION", body.Code)
}

func TestUpload_MissingMetadata(t *testing.T) {
	ts := setupTestServer(t, Options{})

	fields := validFields()
	delete(fields, "category")

	w := ts.upload(t, fields, mp4Bytes())
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decode[response.ErrorBody](t, w.Body.Bytes())
	assert.Equal(t, "VALIDATION", body.Code)
	assert.Contains(t, body.Error, "category")

	assert.Equal(t, http.StatusNotFound, ts.api.Get("/api/video").Code)
}

func TestUpload_NotMultipart(t *testing.T) {
	ts := setupTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(`{"title":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpload_TooLarge(t *testing.T) {
	ts := setupTestServer(t, Options{MaxUploadBytes: 16})

	w := ts.upload(t, validFields(), mp4Bytes())
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "VALIDATION", decode[response.ErrorBody](t, w.Body.Bytes()).Code)
}

func TestUpload_RateLimited(t *testing.T) {
	limiter := NewRateLimiter(1, time.Hour, 1)
	t.Cleanup(limiter.Stop)
	ts := setupTestServer(t, Options{UploadLimiter: limiter})

	first := ts.upload(t, validFields(), mp4Bytes())
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	second := ts.upload(t, validFields(), mp4Bytes())
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "RATE_LIMITED", decode[response.ErrorBody](t, second.Body.Bytes()).Code)
}

func TestUploads_NoDirectoryListing(t *testing.T) {
	ts := setupTestServer(t, Options{})

	// Files the storage did not name are never served, even when present.
	require.NoError(t, os.WriteFile(filepath.Join(ts.storage.Dir(), "notes.txt"), []byte("x"), 0o600))

	for _, path := range []string{
		"/uploads/",
		"/uploads/missing.mp4",
		"/uploads/vid-V1StGXR8_Z5jdHi6B-myT.mp4",
		"/uploads/.upload-123",
		"/uploads/notes.txt",
	} {
		w := httptest.NewRecorder()
		ts.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestHealth(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	health := decode[HealthResponse](t, resp.Body.Bytes())
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Components["store"].Status)
	assert.Equal(t, "healthy", health.Components["search"].Status)
}

func TestCORSPreflight(t *testing.T) {
	ts := setupTestServer(t, Options{CORSOrigins: []string{"http://editor.local"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/chapters/1", nil)
	req.Header.Set("Origin", "http://editor.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)

	assert.Equal(t, "http://editor.local", w.Header().Get("Access-Control-Allow-Origin"))
}
