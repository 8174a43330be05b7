package chapters

import (
	"regexp"
	"strings"

	"github.com/chapterdesk/chapterdesk-server/internal/domain"
)

var genericPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^chapter\s+\d+$`),
	regexp.MustCompile(`(?i)^chapter\s+(one|two|three|four|five|six|seven|eight|nine|ten)$`),
	regexp.MustCompile(`(?i)^scene\s+\d+$`),
	regexp.MustCompile(`(?i)^part\s+\d+$`),
	regexp.MustCompile(`(?i)^part\s+(one|two|three|four|five|six|seven|eight|nine|ten)$`),
	regexp.MustCompile(`(?i)^(untitled|unnamed)(\s+\d+)?$`),
	regexp.MustCompile(`^\d+$`),
	regexp.MustCompile(`^\d+\.\s*$`),
	regexp.MustCompile(`^\d+\s*-\s*$`),
	regexp.MustCompile(`^\d{1,2}:\d{2}(:\d{2})?$`),
}

// IsGenericName returns true if the chapter name is a placeholder.
func IsGenericName(name string) bool {
	name = strings.TrimSpace(name)

	if name == "" {
		return true
	}

	for _, pattern := range genericPatterns {
		if pattern.MatchString(name) {
			return true
		}
	}

	return false
}

// Analysis summarizes how many generated titles are placeholders.
type Analysis struct {
	Total          int     `json:"total"`
	GenericCount   int     `json:"genericCount"`
	GenericPercent float64 `json:"genericPercent"`
	NeedsReview    bool    `json:"needsReview"`
}

// AnalyzeChapters reports whether an operator should rename the chapters
// before publishing: more than half of the titles are placeholders.
func AnalyzeChapters(drafts []domain.ChapterDraft) Analysis {
	if len(drafts) == 0 {
		return Analysis{}
	}

	generic := 0
	for _, d := range drafts {
		if IsGenericName(d.Title) {
			generic++
		}
	}

	percent := float64(generic) / float64(len(drafts))

	return Analysis{
		Total:          len(drafts),
		GenericCount:   generic,
		GenericPercent: percent,
		NeedsReview:    percent > 0.5,
	}
}
