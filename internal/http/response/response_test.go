package response

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapterdesk/chapterdesk-server/internal/errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestJSON_WritesBodyWithoutEnvelope(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusOK, map[string]any{"id": 1, "title": "Introduction"}, discardLogger())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	var result map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, float64(1), result["id"])
	assert.Equal(t, "Introduction", result["title"])
	assert.NotContains(t, result, "data")
}

func TestJSON_NilLogger(t *testing.T) {
	w := httptest.NewRecorder()

	Success(w, []int{1, 2}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[1,2]", w.Body.String())
}

func TestCreated(t *testing.T) {
	w := httptest.NewRecorder()

	Created(w, map[string]string{"id": "new"}, discardLogger())

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		code   errors.Code
	}{
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "nope", nil) }, http.StatusBadRequest, errors.CodeValidation},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "nope", nil) }, http.StatusNotFound, errors.CodeNotFound},
		{"too many", func(w http.ResponseWriter) { TooManyRequests(w, "nope", nil) }, http.StatusTooManyRequests, errors.CodeRateLimited},
		{"internal", func(w http.ResponseWriter) { InternalError(w, "nope", nil) }, http.StatusInternalServerError, errors.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.status, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, "nope", body.Error)
			assert.Equal(t, string(tt.code), body.Code)
		})
	}
}

func TestHandleError_DomainError(t *testing.T) {
	w := httptest.NewRecorder()

	HandleError(w, errors.ValidationWithDetails("title is required", map[string]string{"title": "is required"}), discardLogger())

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "title is required", body.Error)
	assert.Equal(t, "VALIDATION", body.Code)
	assert.Equal(t, map[string]any{"title": "is required"}, body.Details)
}

func TestHandleError_WrappedDomainError(t *testing.T) {
	w := httptest.NewRecorder()

	err := fmt.Errorf("upload: %w", errors.GenerationFailed(fmt.Errorf("ffprobe exited 1")))
	HandleError(w, err, discardLogger())

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "GENERATION_FAILED", body.Code)
	assert.Equal(t, "chapter generation failed", body.Error)
}

func TestHandleError_UnknownError(t *testing.T) {
	w := httptest.NewRecorder()

	HandleError(w, fmt.Errorf("disk on fire"), discardLogger())

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "internal server error", body.Error)
	assert.Equal(t, "INTERNAL", body.Code)
}
