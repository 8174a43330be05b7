// Package client is the client side of the chapter API: an HTTP binding and
// the ChapterView that mirrors the server's chapter collection.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chapterdesk/chapterdesk-server/internal/domain"
	"github.com/chapterdesk/chapterdesk-server/internal/errors"
)

// RequestIDHeader carries the per-call request id. chi's RequestID middleware
// adopts it, so client and server logs line up.
const RequestIDHeader = "X-Request-Id"

// DefaultTimeout bounds calls made with the default http.Client.
// Uploads include chapter generation, so this is generous.
const DefaultTimeout = 5 * time.Minute

// CreateRequest is the body of a create call. Nil fields take server defaults.
type CreateRequest struct {
	Title     *string  `json:"title,omitempty"`
	Timestamp *float64 `json:"timestamp,omitempty"`
}

// UploadRequest is a video upload with its metadata.
type UploadRequest struct {
	Metadata domain.UploadMetadata
	Filename string
	File     io.Reader
}

// UploadResponse is returned by a successful upload.
type UploadResponse struct {
	VideoURL    string           `json:"videoUrl"`
	Chapters    []domain.Chapter `json:"chapters"`
	NeedsReview bool             `json:"needsReview"`
}

// VideoInfo describes the active video.
type VideoInfo struct {
	VideoURL    string    `json:"videoUrl"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Title       string    `json:"title"`
	PlantUnit   string    `json:"plantUnit"`
	Asset       string    `json:"asset"`
	Category    string    `json:"category"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// HTTPClient talks to the chapter API over HTTP.
//
// Failures to reach the server are reported as TRANSPORT errors. Error
// responses are decoded into domain errors carrying the server's code.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewHTTPClient creates a client for the server at baseURL.
// A nil httpClient uses one with DefaultTimeout.
func NewHTTPClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// List returns the current chapter collection.
func (c *HTTPClient) List(ctx context.Context) ([]domain.Chapter, error) {
	var out []domain.Chapter
	if err := c.doJSON(ctx, http.MethodGet, "/api/chapters", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Search returns chapters whose title matches q.
func (c *HTTPClient) Search(ctx context.Context, q string) ([]domain.Chapter, error) {
	var out []domain.Chapter
	path := "/api/chapters/search?q=" + url.QueryEscape(q)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create appends a chapter.
func (c *HTTPClient) Create(ctx context.Context, req CreateRequest) (*domain.Chapter, error) {
	var out domain.Chapter
	if err := c.doJSON(ctx, http.MethodPost, "/api/chapters", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update changes the provided fields of a chapter.
func (c *HTTPClient) Update(ctx context.Context, id int64, patch domain.ChapterPatch) (*domain.Chapter, error) {
	var out domain.Chapter
	if err := c.doJSON(ctx, http.MethodPut, chapterPath(id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a chapter.
func (c *HTTPClient) Delete(ctx context.Context, id int64) error {
	var out struct {
		Success bool `json:"success"`
	}
	if err := c.doJSON(ctx, http.MethodDelete, chapterPath(id), nil, &out); err != nil {
		return err
	}
	if !out.Success {
		return errors.Internal("server did not confirm the delete")
	}
	return nil
}

// Video returns the active video.
func (c *HTTPClient) Video(ctx context.Context) (*VideoInfo, error) {
	var out VideoInfo
	if err := c.doJSON(ctx, http.MethodGet, "/api/video", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload sends a video and its metadata. The file is streamed, not buffered.
func (c *HTTPClient) Upload(ctx context.Context, req UploadRequest) (*UploadResponse, error) {
	if req.File == nil {
		return nil, errors.Validation("video file is required")
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeUploadForm(mw, req))
	}()

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/upload", pr)
	if err != nil {
		_ = pr.Close()
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var out UploadResponse
	if err := c.do(httpReq, &out); err != nil {
		_ = pr.Close()
		return nil, err
	}
	return &out, nil
}

func writeUploadForm(mw *multipart.Writer, req UploadRequest) error {
	fields := []struct{ name, value string }{
		{"title", req.Metadata.Title},
		{"plantUnit", req.Metadata.PlantUnit},
		{"asset", req.Metadata.Asset},
		{"category", req.Metadata.Category},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return err
		}
	}

	filename := req.Filename
	if filename == "" {
		filename = "video.mp4"
	}
	part, err := mw.CreateFormFile("video", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, req.File); err != nil {
		return err
	}
	return mw.Close()
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Transport(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	return req, nil
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	requestID := req.Header.Get(RequestIDHeader)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			"method", req.Method,
			"path", req.URL.Path,
			"request_id", requestID,
			"error", err,
		)
		return errors.Transport(err)
	}
	defer resp.Body.Close()

	c.logger.Debug("request complete",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"elapsed", time.Since(start),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Transport(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// decodeError turns an error response into a domain error. The server's code
// wins; the status code is the fallback for bodies without one.
func decodeError(resp *http.Response) error {
	var body errorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(data, &body)

	code := errors.CodeForStatus(resp.StatusCode)
	if body.Code != "" {
		code = errors.Code(body.Code)
	}
	msg := body.Error
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	domainErr := errors.New(code, msg)
	if body.Details != nil {
		domainErr = domainErr.WithDetails(body.Details)
	}
	return domainErr
}

func chapterPath(id int64) string {
	return "/api/chapters/" + strconv.FormatInt(id, 10)
}
