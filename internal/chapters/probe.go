package chapters

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/chapterdesk/chapterdesk-server/internal/domain"
	"github.com/chapterdesk/chapterdesk-server/internal/errors"
)

// ProbeGenerator asks ffprobe for the container's chapter list.
type ProbeGenerator struct {
	binary string
	run    func(ctx context.Context, binary, path string) ([]byte, error)
}

// NewProbeGenerator returns a generator that runs the ffprobe binary.
// An empty binary means "ffprobe" on PATH.
func NewProbeGenerator(binary string) *ProbeGenerator {
	if binary == "" {
		binary = "ffprobe"
	}
	return &ProbeGenerator{binary: binary, run: runFFprobe}
}

// Name implements Generator.
func (g *ProbeGenerator) Name() string { return KindFFprobe }

// Generate implements Generator.
func (g *ProbeGenerator) Generate(ctx context.Context, asset *domain.VideoAsset) ([]domain.ChapterDraft, error) {
	if asset == nil || asset.LocalPath == "" {
		return nil, errors.GenerationFailed(fmt.Errorf("no local file to probe"))
	}

	output, err := g.run(ctx, g.binary, asset.LocalPath)
	if err != nil {
		return nil, errors.GenerationFailed(fmt.Errorf("ffprobe failed: %w", err))
	}

	drafts, err := parseProbeChapters(output)
	if err != nil {
		return nil, errors.GenerationFailed(err)
	}
	return drafts, nil
}

func runFFprobe(ctx context.Context, binary, path string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_chapters",
		path,
	)
	return cmd.Output()
}

// parseProbeChapters converts `ffprobe -show_chapters` JSON into drafts.
func parseProbeChapters(output []byte) ([]domain.ChapterDraft, error) {
	var data probeOutput
	if err := json.Unmarshal(output, &data); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	drafts := make([]domain.ChapterDraft, 0, len(data.Chapters))
	for _, ch := range data.Chapters {
		start, err := strconv.ParseFloat(ch.StartTime, 64)
		if err != nil {
			return nil, fmt.Errorf("chapter %d: bad start_time %q", ch.ID, ch.StartTime)
		}
		drafts = append(drafts, domain.ChapterDraft{
			Title:     ch.Tags["title"],
			Timestamp: start,
		})
	}
	return cleanDrafts(drafts), nil
}

type probeOutput struct {
	Chapters []probeChapter `json:"chapters"`
}

type probeChapter struct {
	Tags      map[string]string `json:"tags"`
	TimeBase  string            `json:"time_base"`
	StartTime string            `json:"start_time"`
	EndTime   string            `json:"end_time"`
	ID        int64             `json:"id"`
}
