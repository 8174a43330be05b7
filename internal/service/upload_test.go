package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapterdesk/chapterdesk-server/internal/chapters"
	"github.com/chapterdesk/chapterdesk-server/internal/domain"
	"github.com/chapterdesk/chapterdesk-server/internal/errors"
	"github.com/chapterdesk/chapterdesk-server/internal/media/videos"
	"github.com/chapterdesk/chapterdesk-server/internal/validation"
)

type fakeGenerator struct {
	drafts []domain.ChapterDraft
	err    error
	block  bool
	calls  atomic.Int32
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Generate(ctx context.Context, _ *domain.VideoAsset) ([]domain.ChapterDraft, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.drafts, f.err
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

func validMetadata() domain.UploadMetadata {
	return domain.UploadMetadata{
		Title:     "Pump changeover",
		PlantUnit: "Unit 1",
		Asset:     "Asset A",
		Category:  "Category 1",
	}
}

type uploadFixture struct {
	svc      *UploadService
	chapters *ChapterService
	storage  *videos.Storage
}

func newUploadFixture(t *testing.T, gen chapters.Generator, cfg UploadConfig) *uploadFixture {
	t.Helper()
	storage, err := videos.NewStorage(t.TempDir())
	require.NoError(t, err)

	chapterSvc := newTestChapterService(t)
	if cfg.PublicURL == "" {
		cfg.PublicURL = "http://localhost:5000/"
	}
	svc := NewUploadService(chapterSvc, storage, gen, validation.New(), cfg, testLogger())
	return &uploadFixture{svc: svc, chapters: chapterSvc, storage: storage}
}

func storedFiles(t *testing.T, s *videos.Storage) []string {
	t.Helper()
	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestUploadService_BaselineTemplate(t *testing.T) {
	f := newUploadFixture(t, chapters.NewTemplateGenerator(), UploadConfig{})
	ctx := context.Background()

	result, err := f.svc.Upload(ctx, UploadInput{
		Metadata: validMetadata(),
		Filename: "changeover.mp4",
		File:     bytes.NewReader(mp4Bytes()),
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.VideoURL, "http://localhost:5000/uploads/vid-"), result.VideoURL)
	assert.True(t, strings.HasSuffix(result.VideoURL, ".mp4"))
	assert.Equal(t, []domain.Chapter{
		{ID: 1, Title: "Introduction", Timestamp: 0},
		{ID: 2, Title: "Process Overview", Timestamp: 30},
		{ID: 3, Title: "Safety Instructions", Timestamp: 60},
	}, result.Chapters)
	assert.False(t, result.NeedsReview)

	active, err := f.chapters.ActiveVideo(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.VideoURL, active.URL)
	assert.Equal(t, "changeover.mp4", active.Filename)
	assert.Equal(t, "video/mp4", active.ContentType)
	assert.True(t, f.storage.Exists(active.StoredName))
}

func TestUploadService_ReplacesPreviousVideo(t *testing.T) {
	f := newUploadFixture(t, chapters.NewTemplateGenerator(), UploadConfig{})
	ctx := context.Background()

	first, err := f.svc.Upload(ctx, UploadInput{Metadata: validMetadata(), Filename: "a.mp4", File: bytes.NewReader(mp4Bytes())})
	require.NoError(t, err)
	firstVideo, err := f.chapters.ActiveVideo(ctx)
	require.NoError(t, err)

	_, err = f.chapters.Create(ctx, CreateChapterInput{})
	require.NoError(t, err)

	second, err := f.svc.Upload(ctx, UploadInput{Metadata: validMetadata(), Filename: "b.mp4", File: bytes.NewReader(mp4Bytes())})
	require.NoError(t, err)

	assert.NotEqual(t, first.VideoURL, second.VideoURL)
	require.Len(t, second.Chapters, 3)
	assert.Equal(t, int64(5), second.Chapters[0].ID, "reseeding continues the id sequence")

	list, err := f.chapters.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.Chapters, list)

	assert.False(t, f.storage.Exists(firstVideo.StoredName))
	assert.Len(t, storedFiles(t, f.storage), 1)
}

func TestUploadService_RejectsMetadata(t *testing.T) {
	gen := &fakeGenerator{}
	f := newUploadFixture(t, gen, UploadConfig{})

	meta := validMetadata()
	meta.PlantUnit = "   "

	_, err := f.svc.Upload(context.Background(), UploadInput{Metadata: meta, Filename: "a.mp4", File: bytes.NewReader(mp4Bytes())})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	var domainErr *errors.Error
	require.True(t, errors.As(err, &domainErr))
	details, ok := domainErr.Details.(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details, "plantUnit")

	assert.Zero(t, gen.calls.Load())
	assert.Empty(t, storedFiles(t, f.storage))
}

func TestUploadService_RejectsMissingOrBadFile(t *testing.T) {
	f := newUploadFixture(t, &fakeGenerator{}, UploadConfig{MaxBytes: 32})
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, UploadInput{Metadata: validMetadata(), Filename: "a.mp4"})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, err = f.svc.Upload(ctx, UploadInput{Metadata: validMetadata(), Filename: "a.txt", File: strings.NewReader("plain text, not a video")})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, err = f.svc.Upload(ctx, UploadInput{Metadata: validMetadata(), Filename: "a.mp4", File: bytes.NewReader(mp4Bytes())})
	assert.True(t, errors.Is(err, errors.ErrValidation), "file over MaxBytes")

	assert.Empty(t, storedFiles(t, f.storage))
}

func TestUploadService_GenerationFailureLeavesStateAlone(t *testing.T) {
	template := newUploadFixture(t, chapters.NewTemplateGenerator(), UploadConfig{})
	ctx := context.Background()

	_, err := template.svc.Upload(ctx, UploadInput{Metadata: validMetadata(), Filename: "a.mp4", File: bytes.NewReader(mp4Bytes())})
	require.NoError(t, err)
	before, err := template.chapters.List(ctx)
	require.NoError(t, err)
	activeBefore, err := template.chapters.ActiveVideo(ctx)
	require.NoError(t, err)

	failing := NewUploadService(template.chapters, template.storage,
		&fakeGenerator{err: fmt.Errorf("decoder crashed")},
		validation.New(), UploadConfig{PublicURL: "http://localhost:5000"}, testLogger())

	_, err = failing.Upload(ctx, UploadInput{Metadata: validMetadata(), Filename: "b.mp4", File: bytes.NewReader(mp4Bytes())})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrGenerationFailed))
	assert.Equal(t, errors.CodeGenerationFailed, errors.CodeOf(err))

	after, err := template.chapters.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	activeAfter, err := template.chapters.ActiveVideo(ctx)
	require.NoError(t, err)
	assert.Equal(t, activeBefore.ID, activeAfter.ID)
	assert.Equal(t, []string{activeBefore.StoredName}, storedFiles(t, template.storage))
}

func TestUploadService_InvalidDraftsAreGenerationFailure(t *testing.T) {
	gen := &fakeGenerator{drafts: []domain.ChapterDraft{{Title: "", Timestamp: 0}}}
	f := newUploadFixture(t, gen, UploadConfig{})

	_, err := f.svc.Upload(context.Background(), UploadInput{Metadata: validMetadata(), Filename: "a.mp4", File: bytes.NewReader(mp4Bytes())})
	assert.True(t, errors.Is(err, errors.ErrGenerationFailed))
	assert.Empty(t, storedFiles(t, f.storage))
}

func TestUploadService_GeneratorTimeout(t *testing.T) {
	f := newUploadFixture(t, &fakeGenerator{block: true}, UploadConfig{Timeout: 20 * time.Millisecond})

	_, err := f.svc.Upload(context.Background(), UploadInput{Metadata: validMetadata(), Filename: "a.mp4", File: bytes.NewReader(mp4Bytes())})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrGenerationFailed))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	_, err = f.chapters.ActiveVideo(context.Background())
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestUploadService_NeedsReview(t *testing.T) {
	gen := &fakeGenerator{drafts: []domain.ChapterDraft{
		{Title: "Chapter 1", Timestamp: 0},
		{Title: "Chapter 2", Timestamp: 40},
		{Title: "Lockout", Timestamp: 80},
	}}
	f := newUploadFixture(t, gen, UploadConfig{})

	result, err := f.svc.Upload(context.Background(), UploadInput{Metadata: validMetadata(), Filename: "a.mov", File: bytes.NewReader(mp4Bytes())})
	require.NoError(t, err)
	assert.True(t, result.NeedsReview)
	assert.Len(t, result.Chapters, 3)
}

func TestUploadService_EmptyDraftsClearCollection(t *testing.T) {
	f := newUploadFixture(t, &fakeGenerator{drafts: []domain.ChapterDraft{}}, UploadConfig{})

	result, err := f.svc.Upload(context.Background(), UploadInput{Metadata: validMetadata(), Filename: "a.mp4", File: bytes.NewReader(mp4Bytes())})
	require.NoError(t, err)
	assert.Empty(t, result.Chapters)
	assert.NotNil(t, result.Chapters)
	assert.Equal(t, ".mp4", filepath.Ext(result.VideoURL))
}
