// Package sqlite is a ChapterStore backed by SQLite through the pure Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chapterdesk/chapterdesk-server/internal/domain"
	domainerrors "github.com/chapterdesk/chapterdesk-server/internal/errors"
	"github.com/chapterdesk/chapterdesk-server/internal/store"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store provides SQLite-backed chapter persistence.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ store.ChapterStore = (*Store)(nil)

// Open creates or opens the database at path.
// It configures WAL mode, sets pragmas, and applies the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection serializes writers, which keeps AUTOINCREMENT
	// assignment and reseeding free of SQLITE_BUSY retries.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	logger.Info("SQLite chapter store opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Seed implements store.ChapterStore.
func (s *Store) Seed(ctx context.Context, video *domain.VideoAsset, drafts []domain.ChapterDraft) ([]domain.Chapter, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM chapters`); err != nil {
		return nil, fmt.Errorf("clear chapters: %w", err)
	}

	chapters := make([]domain.Chapter, 0, len(drafts))
	for _, d := range drafts {
		ch, err := insertChapter(ctx, tx, d)
		if err != nil {
			return nil, err
		}
		chapters = append(chapters, *ch)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM active_video`); err != nil {
		return nil, fmt.Errorf("clear active video: %w", err)
	}
	if video != nil {
		if err := insertVideo(ctx, tx, video); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit seed: %w", err)
	}
	return chapters, nil
}

// Create implements store.ChapterStore.
func (s *Store) Create(ctx context.Context, draft domain.ChapterDraft) (*domain.Chapter, error) {
	return insertChapter(ctx, s.db, draft)
}

// Update implements store.ChapterStore.
func (s *Store) Update(ctx context.Context, id int64, patch domain.ChapterPatch) (*domain.Chapter, error) {
	var (
		title     sql.NullString
		timestamp sql.NullFloat64
	)
	if patch.Title != nil {
		title = sql.NullString{String: *patch.Title, Valid: true}
	}
	if patch.Timestamp != nil {
		timestamp = sql.NullFloat64{Float64: *patch.Timestamp, Valid: true}
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE chapters
		SET title = COALESCE(?, title), timestamp = COALESCE(?, timestamp)
		WHERE id = ?
		RETURNING id, title, timestamp`,
		title, timestamp, id,
	)

	var ch domain.Chapter
	err := row.Scan(&ch.ID, &ch.Title, &ch.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainerrors.NotFoundf("chapter %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("update chapter %d: %w", id, err)
	}
	return &ch, nil
}

// Delete implements store.ChapterStore.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chapters WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete chapter %d: %w", id, err)
	}
	return nil
}

// List implements store.ChapterStore.
func (s *Store) List(ctx context.Context) ([]domain.Chapter, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, timestamp FROM chapters ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	chapters := []domain.Chapter{}
	for rows.Next() {
		var ch domain.Chapter
		if err := rows.Scan(&ch.ID, &ch.Title, &ch.Timestamp); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		chapters = append(chapters, ch)
	}
	return chapters, rows.Err()
}

// ActiveVideo implements store.ChapterStore.
func (s *Store) ActiveVideo(ctx context.Context) (*domain.VideoAsset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url, filename, stored_name, local_path, content_type, size,
		       title, plant_unit, asset, category, uploaded_at
		FROM active_video WHERE singleton = 1`)

	var (
		v          domain.VideoAsset
		uploadedAt string
	)
	err := row.Scan(
		&v.ID, &v.URL, &v.Filename, &v.StoredName, &v.LocalPath, &v.ContentType, &v.Size,
		&v.Metadata.Title, &v.Metadata.PlantUnit, &v.Metadata.Asset, &v.Metadata.Category,
		&uploadedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainerrors.NotFound("no video has been uploaded")
	}
	if err != nil {
		return nil, fmt.Errorf("get active video: %w", err)
	}

	v.UploadedAt, err = parseTime(uploadedAt)
	if err != nil {
		return nil, fmt.Errorf("parse uploaded_at: %w", err)
	}
	return &v, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertChapter(ctx context.Context, db execer, d domain.ChapterDraft) (*domain.Chapter, error) {
	ch := domain.Chapter{Title: d.Title, Timestamp: d.Timestamp}
	err := db.QueryRowContext(ctx,
		`INSERT INTO chapters (title, timestamp) VALUES (?, ?) RETURNING id`,
		d.Title, d.Timestamp,
	).Scan(&ch.ID)
	if err != nil {
		return nil, fmt.Errorf("insert chapter: %w", err)
	}
	return &ch, nil
}

func insertVideo(ctx context.Context, db execer, v *domain.VideoAsset) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO active_video (
			singleton, id, url, filename, stored_name, local_path, content_type, size,
			title, plant_unit, asset, category, uploaded_at
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.URL, v.Filename, v.StoredName, v.LocalPath, v.ContentType, v.Size,
		v.Metadata.Title, v.Metadata.PlantUnit, v.Metadata.Asset, v.Metadata.Category,
		formatTime(v.UploadedAt),
	)
	if err != nil {
		return fmt.Errorf("insert active video: %w", err)
	}
	return nil
}

// formatTime formats a time.Time to RFC3339Nano for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a RFC3339Nano string back to time.Time.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
