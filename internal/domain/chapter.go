// Package domain contains the core entities of the Chapterdesk chapter management subsystem.
package domain

import (
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Default values used when a chapter is created without a title or timestamp.
const (
	DefaultChapterTitle     = "New Chapter"
	DefaultChapterTimestamp = 0.0

	// MaxTitleLength bounds chapter titles, in characters.
	MaxTitleLength = 200
)

// Chapter is a named marker at a position in the active video.
// ID is assigned by the chapter store and is never reused.
type Chapter struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	Timestamp float64 `json:"timestamp"` // seconds from the start of the video
}

// ChapterDraft is a chapter that has not been assigned an ID yet.
// Generators produce drafts; stores turn them into chapters.
type ChapterDraft struct {
	Title     string  `json:"title" yaml:"title"`
	Timestamp float64 `json:"timestamp" yaml:"timestamp"`
}

// ChapterPatch carries a partial update. Nil fields are left untouched.
type ChapterPatch struct {
	Title     *string  `json:"title,omitempty"`
	Timestamp *float64 `json:"timestamp,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ChapterPatch) IsEmpty() bool {
	return p.Title == nil && p.Timestamp == nil
}

// Apply writes the provided fields onto c.
func (p ChapterPatch) Apply(c *Chapter) {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Timestamp != nil {
		c.Timestamp = *p.Timestamp
	}
}

// Draft returns the chapter without its identity.
func (c Chapter) Draft() ChapterDraft {
	return ChapterDraft{Title: c.Title, Timestamp: c.Timestamp}
}

// NormalizeTitle trims surrounding whitespace and converts the title to NFC,
// so visually identical titles typed on different clients compare equal.
func NormalizeTitle(title string) string {
	return norm.NFC.String(strings.TrimSpace(title))
}

// ValidTimestamp reports whether ts is a usable offset in seconds.
// Timestamps are not checked against the video duration; the player clamps.
func ValidTimestamp(ts float64) bool {
	return ts >= 0 && !math.IsNaN(ts) && !math.IsInf(ts, 0)
}

// CloneChapters returns a copy of the slice that shares no backing array with chs.
func CloneChapters(chs []Chapter) []Chapter {
	out := make([]Chapter, len(chs))
	copy(out, chs)
	return out
}
