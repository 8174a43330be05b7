package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapterdesk/chapterdesk-server/internal/api"
	"github.com/chapterdesk/chapterdesk-server/internal/chapters"
	"github.com/chapterdesk/chapterdesk-server/internal/domain"
	"github.com/chapterdesk/chapterdesk-server/internal/media/videos"
	"github.com/chapterdesk/chapterdesk-server/internal/search"
	"github.com/chapterdesk/chapterdesk-server/internal/service"
	"github.com/chapterdesk/chapterdesk-server/internal/store"
	"github.com/chapterdesk/chapterdesk-server/internal/validation"
)

const testPublicURL = "http://chapterdesk.test"

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	index, err := search.NewChapterIndex(logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	storage, err := videos.NewStorage(t.TempDir())
	require.NoError(t, err)

	chapterSvc := service.NewChapterService(store.NewMemory(), index, logger)
	uploadSvc := service.NewUploadService(chapterSvc, storage, chapters.NewTemplateGenerator(), validation.New(),
		service.UploadConfig{PublicURL: testPublicURL, Timeout: 5 * time.Second, MaxConcurrent: 1}, logger)

	srv := httptest.NewServer(api.NewServer(
		&api.Services{Chapter: chapterSvc, Upload: uploadSvc, Index: index},
		&api.StorageServices{Videos: storage},
		api.Options{},
		logger,
	))
	t.Cleanup(srv.Close)
	return srv
}

// run executes chapterctl against srv and returns what it printed.
func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer

	cmd := newRoot(&Options{})
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--server", srv.URL}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeVideo(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x00, 0x00, 0x18})
	buf.WriteString("ftypisom")
	buf.Write([]byte{0x00, 0x00, 0x02, 0x00})
	buf.WriteString("isomiso2")
	buf.Write(make([]byte, 64))

	path := filepath.Join(t.TempDir(), "changeover.mp4")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func upload(t *testing.T, srv *httptest.Server) {
	t.Helper()
	_, err := run(t, srv, "upload", writeVideo(t),
		"--title", "Pump changeover",
		"--plant-unit", "Unit 1",
		"--asset", "P-101",
		"--category", "Maintenance",
	)
	require.NoError(t, err)
}

func listJSON(t *testing.T, srv *httptest.Server) []domain.Chapter {
	t.Helper()
	out, err := run(t, srv, "list", "--json")
	require.NoError(t, err)

	var chapters []domain.Chapter
	require.NoError(t, json.Unmarshal([]byte(out), &chapters))
	return chapters
}

func TestList_Empty(t *testing.T) {
	srv := startServer(t)

	out, err := run(t, srv, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No chapters.")

	assert.Empty(t, listJSON(t, srv))
}

func TestUpload_PrintsChapters(t *testing.T) {
	srv := startServer(t)

	out, err := run(t, srv, "upload", writeVideo(t),
		"--title", "Pump changeover",
		"--plant-unit", "Unit 1",
		"--asset", "P-101",
		"--category", "Maintenance",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Uploaded")
	assert.Contains(t, out, testPublicURL+"/uploads/")
	assert.Contains(t, out, "Introduction")
	assert.Contains(t, out, "Process Overview")
	assert.Contains(t, out, "Safety Instructions")
}

func TestUpload_MissingMetadata(t *testing.T) {
	srv := startServer(t)

	_, err := run(t, srv, "upload", writeVideo(t), "--title", "Pump changeover")
	require.Error(t, err)
	assert.Empty(t, listJSON(t, srv))
}

func TestAdd(t *testing.T) {
	srv := startServer(t)

	out, err := run(t, srv, "add")
	require.NoError(t, err)
	assert.Contains(t, out, "New Chapter")

	_, err = run(t, srv, "add", "--title", "Lockout", "--at", "1:15")
	require.NoError(t, err)

	chapters := listJSON(t, srv)
	require.Len(t, chapters, 2)
	assert.Equal(t, domain.Chapter{ID: 1, Title: "New Chapter", Timestamp: 0}, chapters[0])
	assert.Equal(t, domain.Chapter{ID: 2, Title: "Lockout", Timestamp: 75}, chapters[1])
}

func TestAdd_InvalidTimestamp(t *testing.T) {
	srv := startServer(t)

	_, err := run(t, srv, "add", "--at", "soon")
	require.Error(t, err)
	assert.Empty(t, listJSON(t, srv))
}

func TestEdit(t *testing.T) {
	srv := startServer(t)
	upload(t, srv)

	out, err := run(t, srv, "edit", "2", "--title", "Safety briefing")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated")

	_, err = run(t, srv, "rename", "3", "--at", "2:30")
	require.NoError(t, err)

	chapters := listJSON(t, srv)
	require.Len(t, chapters, 3)
	assert.Equal(t, domain.Chapter{ID: 2, Title: "Safety briefing", Timestamp: 30}, chapters[1])
	assert.Equal(t, domain.Chapter{ID: 3, Title: "Safety Instructions", Timestamp: 150}, chapters[2])
}

func TestEdit_Errors(t *testing.T) {
	srv := startServer(t)
	upload(t, srv)

	_, err := run(t, srv, "edit", "2")
	assert.Error(t, err, "no flags")

	_, err = run(t, srv, "edit", "abc", "--title", "x")
	assert.Error(t, err)

	_, err = run(t, srv, "edit", "99", "--title", "x")
	assert.Error(t, err)

	_, err = run(t, srv, "edit", "2", "--title", "   ")
	assert.Error(t, err, "server rejects empty titles")

	assert.Equal(t, "Process Overview", listJSON(t, srv)[1].Title)
}

func TestDelete(t *testing.T) {
	srv := startServer(t)
	upload(t, srv)

	out, err := run(t, srv, "delete", "1", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted")

	chapters := listJSON(t, srv)
	require.Len(t, chapters, 1)
	assert.Equal(t, int64(2), chapters[0].ID)

	// Deleting again is not an error.
	_, err = run(t, srv, "rm", "1")
	require.NoError(t, err)
}

func TestPlay(t *testing.T) {
	srv := startServer(t)
	upload(t, srv)

	out, err := run(t, srv, "play", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Playing from 1:00")
	assert.Contains(t, out, "#t=60")

	_, err = run(t, srv, "play", "42")
	assert.Error(t, err)
}

func TestSearch(t *testing.T) {
	srv := startServer(t)
	upload(t, srv)

	out, err := run(t, srv, "search", "overview", "--json")
	require.NoError(t, err)

	var hits []domain.Chapter
	require.NoError(t, json.Unmarshal([]byte(out), &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, "Process Overview", hits[0].Title)
}

func TestVideo(t *testing.T) {
	srv := startServer(t)

	_, err := run(t, srv, "video")
	require.Error(t, err, "nothing uploaded yet")

	upload(t, srv)
	out, err := run(t, srv, "video")
	require.NoError(t, err)
	assert.Contains(t, out, "Pump changeover")
	assert.Contains(t, out, "P-101")
}

func TestExecute_JSONErrors(t *testing.T) {
	srv := startServer(t)

	var out bytes.Buffer
	opts := &Options{}
	cmd := newRoot(opts)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--server", srv.URL, "--json", "video"})

	code := execute(context.Background(), cmd, opts)
	assert.Equal(t, 1, code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body["code"])
	assert.NotEmpty(t, body["error"])
}
