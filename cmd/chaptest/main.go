// Package main runs a chapter generator over a local video file and prints the result,
// without starting a server or touching a store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/chapterdesk/chapterdesk-server/internal/chapters"
	"github.com/chapterdesk/chapterdesk-server/internal/domain"
	"github.com/chapterdesk/chapterdesk-server/internal/logger"
)

func main() {
	kind := flag.String("generator", chapters.KindAuto, "Generator (template, embedded, ffprobe, auto)")
	template := flag.String("template", "", "YAML chapter template")
	ffprobe := flag.String("ffprobe", "", "Path to ffprobe binary")
	timeout := flag.Duration("timeout", 30*time.Second, "Generation timeout")
	flag.Parse()

	if flag.NArg() < 1 {
		log.Fatal("Usage: chaptest [flags] <video_file>")
	}
	path := flag.Arg(0)

	info, err := os.Stat(path)
	if err != nil {
		log.Fatalf("Failed to open file: %v", err)
	}

	appLog := logger.New(logger.Config{Level: logger.ParseLevel("debug")})
	generator, err := chapters.New(chapters.Options{
		Kind:         *kind,
		TemplatePath: *template,
		FFprobePath:  *ffprobe,
	}, appLog.Logger)
	if err != nil {
		appLog.Fatal("Failed to build generator", "error", err)
	}

	asset := &domain.VideoAsset{
		Filename:   filepath.Base(path),
		StoredName: filepath.Base(path),
		LocalPath:  path,
		Size:       info.Size(),
		UploadedAt: time.Now(),
	}

	fmt.Printf("Testing: %s (%d bytes) with %s\n\n", path, info.Size(), generator.Name())

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	drafts, err := generator.Generate(ctx, asset)
	if err != nil {
		appLog.Fatal("Generation failed", "error", err)
	}

	fmt.Printf("Chapters: %d\n", len(drafts))
	for i, d := range drafts {
		fmt.Printf("  [%d] %8.1fs  %s\n", i+1, d.Timestamp, d.Title)
	}

	analysis := chapters.AnalyzeChapters(drafts)
	fmt.Printf("\nPlaceholder titles: %d of %d (%.0f%%)\n", analysis.GenericCount, analysis.Total, analysis.GenericPercent*100)
	if analysis.NeedsReview {
		fmt.Println("Needs review: yes")
	}
}
