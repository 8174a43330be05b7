package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"0", 0},
		{"75", 75},
		{"75.5", 75.5},
		{"1:15", 75},
		{"01:15.25", 75.25},
		{"1:01:15", 3675},
		{" 2:00 ", 120},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "-5", "1:75", "1:2:3:4", "x:10", "-1:10", "NaN", "Inf"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseTimestamp(in)
			assert.Error(t, err)
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "0:00", FormatTimestamp(0))
	assert.Equal(t, "1:15", FormatTimestamp(75))
	assert.Equal(t, "1:15.5", FormatTimestamp(75.5))
	assert.Equal(t, "1:01:15", FormatTimestamp(3675))
	assert.Equal(t, "0:01", FormatTimestamp(0.9999), "rounds to the millisecond")
}
