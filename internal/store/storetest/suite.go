// Package storetest holds the behaviour every store.ChapterStore backend must show.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapterdesk/chapterdesk-server/internal/domain"
	"github.com/chapterdesk/chapterdesk-server/internal/errors"
	"github.com/chapterdesk/chapterdesk-server/internal/store"
)

// Factory returns a fresh, empty store. The factory owns cleanup.
type Factory func(t *testing.T) store.ChapterStore

// Baseline is the fixed three-chapter set used across the test suites.
func Baseline() []domain.ChapterDraft {
	return []domain.ChapterDraft{
		{Title: "Introduction", Timestamp: 0},
		{Title: "Process Overview", Timestamp: 30},
		{Title: "Safety Instructions", Timestamp: 60},
	}
}

// TestVideo returns a populated video asset.
func TestVideo(name string) *domain.VideoAsset {
	return &domain.VideoAsset{
		ID:          "vid-" + name,
		URL:         "http://localhost:5000/uploads/" + name + ".mp4",
		Filename:    name + ".mp4",
		StoredName:  name + ".mp4",
		ContentType: "video/mp4",
		Size:        1024,
		Metadata: domain.UploadMetadata{
			Title:     "Pump changeover",
			PlantUnit: "Unit 1",
			Asset:     "Asset A",
			Category:  "Category 1",
		},
		UploadedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// Run executes the conformance suite against the backend built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("SeedBaselineAssignsSequentialIDs", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		seeded, err := s.Seed(ctx, TestVideo("a"), Baseline())
		require.NoError(t, err)

		list, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, seeded, list)
		assert.Equal(t, []domain.Chapter{
			{ID: 1, Title: "Introduction", Timestamp: 0},
			{ID: 2, Title: "Process Overview", Timestamp: 30},
			{ID: 3, Title: "Safety Instructions", Timestamp: 60},
		}, list)
	})

	t.Run("SeedReplacesPreviousCollection", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first, err := s.Seed(ctx, TestVideo("a"), Baseline())
		require.NoError(t, err)
		_, err = s.Create(ctx, domain.ChapterDraft{Title: "Extra", Timestamp: 90})
		require.NoError(t, err)

		second, err := s.Seed(ctx, TestVideo("b"), []domain.ChapterDraft{
			{Title: "Start", Timestamp: 0},
			{Title: "Finish", Timestamp: 120},
		})
		require.NoError(t, err)

		list, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, second, list)
		assert.Equal(t, "Start", list[0].Title)
		assert.Equal(t, "Finish", list[1].Title)

		for _, old := range first {
			for _, ch := range list {
				assert.NotEqual(t, old.ID, ch.ID, "seeded ids must be fresh")
			}
		}
		assert.Equal(t, int64(5), list[0].ID)
		assert.Equal(t, int64(6), list[1].ID)

		video, err := s.ActiveVideo(ctx)
		require.NoError(t, err)
		assert.Equal(t, "vid-b", video.ID)
	})

	t.Run("SeedEmptyClearsCollection", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Seed(ctx, TestVideo("a"), Baseline())
		require.NoError(t, err)

		seeded, err := s.Seed(ctx, TestVideo("b"), nil)
		require.NoError(t, err)
		assert.Empty(t, seeded)

		list, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("CreateAppendsWithIncreasingIDs", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var last int64
		for i, title := range []string{"one", "two", "three", "four"} {
			ch, err := s.Create(ctx, domain.ChapterDraft{Title: title, Timestamp: float64(i * 10)})
			require.NoError(t, err)
			assert.Greater(t, ch.ID, last)
			last = ch.ID

			// Interleave deletes: the freed id must not come back.
			if i%2 == 1 {
				require.NoError(t, s.Delete(ctx, ch.ID))
			}
		}

		ch, err := s.Create(ctx, domain.ChapterDraft{Title: "five", Timestamp: 50})
		require.NoError(t, err)
		assert.Greater(t, ch.ID, last)

		list, err := s.List(ctx)
		require.NoError(t, err)
		titles := make([]string, 0, len(list))
		for _, c := range list {
			titles = append(titles, c.Title)
		}
		assert.Equal(t, []string{"one", "three", "five"}, titles)
	})

	t.Run("CreateKeepsInsertionOrderOverTimestamp", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Seed(ctx, TestVideo("a"), Baseline())
		require.NoError(t, err)
		_, err = s.Create(ctx, domain.ChapterDraft{Title: "Early", Timestamp: 5})
		require.NoError(t, err)

		list, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 4)
		assert.Equal(t, "Early", list[3].Title)
	})

	t.Run("UpdateTitleKeepsTimestamp", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Seed(ctx, TestVideo("a"), Baseline())
		require.NoError(t, err)

		title := "Welcome"
		ch, err := s.Update(ctx, 2, domain.ChapterPatch{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, domain.Chapter{ID: 2, Title: "Welcome", Timestamp: 30}, *ch)
	})

	t.Run("UpdateTimestampKeepsTitle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Seed(ctx, TestVideo("a"), Baseline())
		require.NoError(t, err)

		ts := 42.5
		ch, err := s.Update(ctx, 3, domain.ChapterPatch{Timestamp: &ts})
		require.NoError(t, err)
		assert.Equal(t, domain.Chapter{ID: 3, Title: "Safety Instructions", Timestamp: 42.5}, *ch)

		list, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, *ch, list[2])
	})

	t.Run("UpdateUnknownIDIsNotFound", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		before, err := s.Seed(ctx, TestVideo("a"), Baseline())
		require.NoError(t, err)

		title := "X"
		ch, err := s.Update(ctx, 999, domain.ChapterPatch{Title: &title})
		assert.Nil(t, ch)
		assert.ErrorIs(t, err, errors.ErrNotFound)

		after, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		before, err := s.Seed(ctx, TestVideo("a"), Baseline())
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, 999))
		after, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, after)

		require.NoError(t, s.Delete(ctx, 2))
		require.NoError(t, s.Delete(ctx, 2))

		after, err = s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []domain.Chapter{before[0], before[2]}, after)
	})

	t.Run("CreateUpdateListRoundTrip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		created, err := s.Create(ctx, domain.ChapterDraft{Title: "Draft", Timestamp: 12})
		require.NoError(t, err)

		title, ts := "Final", 18.25
		_, err = s.Update(ctx, created.ID, domain.ChapterPatch{Title: &title, Timestamp: &ts})
		require.NoError(t, err)

		list, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []domain.Chapter{{ID: created.ID, Title: "Final", Timestamp: 18.25}}, list)
	})

	t.Run("ListReturnsSnapshot", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Seed(ctx, TestVideo("a"), Baseline())
		require.NoError(t, err)

		list, err := s.List(ctx)
		require.NoError(t, err)
		list[0].Title = "mutated"

		again, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Introduction", again[0].Title)
	})

	t.Run("ActiveVideo", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.ActiveVideo(ctx)
		assert.ErrorIs(t, err, errors.ErrNotFound)

		want := TestVideo("a")
		_, err = s.Seed(ctx, want, Baseline())
		require.NoError(t, err)

		got, err := s.ActiveVideo(ctx)
		require.NoError(t, err)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.URL, got.URL)
		assert.Equal(t, want.Metadata, got.Metadata)
		assert.Equal(t, want.Size, got.Size)
		assert.True(t, want.UploadedAt.Equal(got.UploadedAt))
	})

	t.Run("ConcurrentCreatesNeverShareIDs", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		const workers = 8
		const perWorker = 10

		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			ids = make(map[int64]bool)
		)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					ch, err := s.Create(ctx, domain.ChapterDraft{Title: "c", Timestamp: 1})
					if !assert.NoError(t, err) {
						return
					}
					mu.Lock()
					assert.False(t, ids[ch.ID], "duplicate id %d", ch.ID)
					ids[ch.ID] = true
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Len(t, ids, workers*perWorker)
		list, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, workers*perWorker)
	})
}
