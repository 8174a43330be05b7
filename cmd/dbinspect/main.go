// Package main prints the chapters and active video held by a durable chapter store.
// Stop the server first: both backends take an exclusive lock on their files.
//
// Usage:
//
//	go run ./cmd/dbinspect -store badger -path ~/Chapterdesk/data/chapters.badger
//	go run ./cmd/dbinspect -store sqlite -path ~/Chapterdesk/data/chapters.db
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/chapterdesk/chapterdesk-server/internal/errors"
	"github.com/chapterdesk/chapterdesk-server/internal/store"
	"github.com/chapterdesk/chapterdesk-server/internal/store/badgerdb"
	"github.com/chapterdesk/chapterdesk-server/internal/store/sqlite"
)

func main() {
	backend := flag.String("store", store.BackendBadger, "Store backend (badger, sqlite)")
	path := flag.String("path", os.Getenv("DB_PATH"), "Database path (default: $DB_PATH)")
	asJSON := flag.Bool("json", false, "Print JSON")
	flag.Parse()

	if *path == "" {
		log.Fatal("Usage: dbinspect -store badger|sqlite -path <db>")
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	var (
		db  store.ChapterStore
		err error
	)
	switch *backend {
	case store.BackendBadger:
		db, err = badgerdb.Open(*path, quiet)
	case store.BackendSQLite:
		db, err = sqlite.Open(*path, quiet)
	default:
		log.Fatalf("Unknown store backend %q", *backend)
	}
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	chapters, err := db.List(ctx)
	if err != nil {
		log.Fatalf("Failed to list chapters: %v", err)
	}

	video, err := db.ActiveVideo(ctx)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		log.Fatalf("Failed to read active video: %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{"video": video, "chapters": chapters})
		return
	}

	fmt.Println("=== Chapter Store Inspection ===")
	fmt.Println()
	if video == nil {
		fmt.Println("Active video: none")
	} else {
		fmt.Printf("Active video: %s (%s)\n", video.Metadata.Title, video.StoredName)
		fmt.Printf("  URL:      %s\n", video.URL)
		fmt.Printf("  Size:     %d bytes\n", video.Size)
		fmt.Printf("  Uploaded: %s\n", video.UploadedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Println()

	fmt.Printf("Chapters: %d\n", len(chapters))
	for _, ch := range chapters {
		fmt.Printf("  [%d] %8.1fs  %s\n", ch.ID, ch.Timestamp, ch.Title)
	}
}
