package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/chapterdesk/chapterdesk-server/internal/domain"
)

// ParseTimestamp reads seconds written as "75", "75.5", "1:15" or "1:01:15".
func ParseTimestamp(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty timestamp")
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}

	var total float64
	for i, p := range parts {
		last := i == len(parts)-1
		var v float64
		if last {
			f, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid timestamp %q", s)
			}
			v = f
		} else {
			n, err := strconv.Atoi(p)
			if err != nil || n < 0 {
				return 0, fmt.Errorf("invalid timestamp %q", s)
			}
			v = float64(n)
		}
		// Minutes and seconds after a colon stay below 60.
		if i > 0 && v >= 60 {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		total = total*60 + v
	}

	if !domain.ValidTimestamp(total) {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	return total, nil
}

// FormatTimestamp renders seconds as m:ss or h:mm:ss, keeping fractions.
func FormatTimestamp(seconds float64) string {
	seconds = math.Round(seconds*1000) / 1000
	whole := math.Floor(seconds)
	frac := seconds - whole
	total := int64(whole)

	h := total / 3600
	m := (total % 3600) / 60
	sec := total % 60

	var out string
	if h > 0 {
		out = fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	} else {
		out = fmt.Sprintf("%d:%02d", m, sec)
	}
	if frac > 0 {
		// ".5" rather than "0.500"
		out += strings.TrimLeft(strings.TrimRight(strconv.FormatFloat(frac, 'f', 3, 64), "0"), "0")
	}
	return out
}
