package chapters

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapterdesk/chapterdesk-server/internal/domain"
)

const testSettle = 50 * time.Millisecond

func watchedTemplate(t *testing.T, initial string) (string, *TemplateGenerator, *TemplateWatcher) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "chapters.yaml")
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o600))

	g, err := LoadTemplate(path)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w, err := WatchTemplate(path, g, testSettle, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	return path, g, w
}

func waitReload(t *testing.T, w *TemplateWatcher) {
	t.Helper()
	select {
	case <-w.reloads:
	case <-time.After(5 * time.Second):
		t.Fatal("template was not reloaded")
	}
}

func TestWatchTemplate_PicksUpRewrite(t *testing.T) {
	path, g, w := watchedTemplate(t, "chapters:\n  - title: Intro\n    timestamp: 0\n")

	require.NoError(t, os.WriteFile(path, []byte(`chapters:
  - title: Lockout
    timestamp: 0
  - title: Valve isolation
    timestamp: 90
`), 0o600))
	waitReload(t, w)

	require.Eventually(t, func() bool {
		drafts, err := g.Generate(context.Background(), testAsset())
		return err == nil && len(drafts) == 2
	}, 5*time.Second, 10*time.Millisecond)

	drafts, err := g.Generate(context.Background(), testAsset())
	require.NoError(t, err)
	assert.Equal(t, []domain.ChapterDraft{
		{Title: "Lockout", Timestamp: 0},
		{Title: "Valve isolation", Timestamp: 90},
	}, drafts)
}

func TestWatchTemplate_KeepsPreviousOnBadFile(t *testing.T) {
	path, g, w := watchedTemplate(t, "chapters:\n  - title: Intro\n    timestamp: 0\n")

	require.NoError(t, os.WriteFile(path, []byte("chapters:\n  - title: \"\"\n    timestamp: -1\n"), 0o600))
	waitReload(t, w)

	assert.Equal(t, []domain.ChapterDraft{{Title: "Intro", Timestamp: 0}}, g.Drafts())
}

func TestWatchTemplate_IgnoresSiblingFiles(t *testing.T) {
	path, g, w := watchedTemplate(t, "chapters:\n  - title: Intro\n    timestamp: 0\n")

	other := filepath.Join(filepath.Dir(path), "other.yaml")
	require.NoError(t, os.WriteFile(other, []byte("chapters: []\n"), 0o600))

	select {
	case <-w.reloads:
		t.Fatal("reload triggered by an unrelated file")
	case <-time.After(10 * testSettle):
	}
	assert.Len(t, g.Drafts(), 1)
}

func TestTemplateWatcher_CloseTwice(t *testing.T) {
	_, _, w := watchedTemplate(t, "chapters: []\n")
	require.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}

func TestNew_UsesSuppliedTemplate(t *testing.T) {
	g, err := ParseTemplate([]byte("chapters:\n  - title: Supplied\n    timestamp: 5\n"))
	require.NoError(t, err)

	gen, err := New(Options{Kind: KindTemplate, TemplatePath: "/does/not/exist.yaml", Template: g}, nil)
	require.NoError(t, err)
	assert.Same(t, g, gen)
}
