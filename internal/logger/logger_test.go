package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlain(buf *bytes.Buffer, level slog.Level) *Logger {
	return New(Config{Writer: buf, Format: formatPretty, Level: level, NoColor: true})
}

func TestNew_FormatAutoDetection(t *testing.T) {
	tests := []struct {
		env      string
		wantJSON bool
	}{
		{"production", true},
		{"development", false},
		{"staging", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Config{Writer: &buf, Environment: tt.env, Level: slog.LevelInfo, NoColor: true})
			log.Info("hello", "k", "v")

			var decoded map[string]any
			isJSON := json.Unmarshal(buf.Bytes(), &decoded) == nil
			assert.Equal(t, tt.wantJSON, isJSON, buf.String())
		})
	}
}

func TestNew_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: formatJSON, Level: slog.LevelDebug})
	log.Debug("chapter updated", "id", 3)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "chapter updated", decoded["msg"])
	assert.Equal(t, "DEBUG", decoded["level"])
	assert.Equal(t, float64(3), decoded["id"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}

	assert.True(t, ValidLevel("Warning"))
	assert.False(t, ValidLevel("verbose"))
}

func TestPrettyHandler_Line(t *testing.T) {
	var buf bytes.Buffer
	log := newPlain(&buf, slog.LevelInfo)

	log.Info("chapter created", "id", 4, "title", "New Chapter")

	line := buf.String()
	assert.True(t, strings.HasSuffix(line, "\n"))
	assert.Contains(t, line, "INF chapter created")
	assert.Contains(t, line, "id=4")
	assert.Contains(t, line, `title="New Chapter"`)
	assert.NotContains(t, line, "\033[")
}

func TestPrettyHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := newPlain(&buf, slog.LevelWarn)

	log.Debug("debug")
	log.Info("info")
	log.Warn("warn")
	log.Error("error")

	out := buf.String()
	assert.NotContains(t, out, "DBG")
	assert.NotContains(t, out, "INF")
	assert.Contains(t, out, "WRN warn")
	assert.Contains(t, out, "ERR error")
}

func TestPrettyHandler_WithAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	log := newPlain(&buf, slog.LevelInfo)

	log.With("component", "upload").
		WithGroup("video").
		With("name", "vid-1.mp4").
		Info("stored", "size", 42, slog.Group("meta", "unit", "U1"))

	out := buf.String()
	assert.Contains(t, out, "component=upload")
	assert.Contains(t, out, "video.name=vid-1.mp4")
	assert.Contains(t, out, "video.size=42")
	assert.Contains(t, out, "video.meta.unit=U1")
}

func TestPrettyHandler_WithGroupEmptyName(t *testing.T) {
	h := NewPrettyHandler(&bytes.Buffer{}, nil)
	assert.Same(t, h, h.WithGroup(""))
}

func TestPrettyHandler_Enabled(t *testing.T) {
	h := NewPrettyHandler(&bytes.Buffer{}, nil)
	ctx := context.Background()
	assert.False(t, h.Enabled(ctx, slog.LevelDebug))
	assert.True(t, h.Enabled(ctx, slog.LevelInfo))

	h = NewPrettyHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError})
	assert.False(t, h.Enabled(ctx, slog.LevelWarn))
	assert.True(t, h.Enabled(ctx, slog.LevelError))
}

func TestPrettyHandler_WithSource(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: formatPretty, AddSource: true, NoColor: true})
	log.Info("with source")

	assert.Contains(t, buf.String(), "logger_test.go:")
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "2026-01-02T03:04:05Z", formatValue(slog.TimeValue(ts)))
	assert.Equal(t, "1.5s", formatValue(slog.DurationValue(1500*time.Millisecond)))
	assert.Equal(t, "plain", formatValue(slog.StringValue("plain")))
	assert.Equal(t, `"two words"`, formatValue(slog.StringValue("two words")))
	assert.Equal(t, "30.5", formatValue(slog.Float64Value(30.5)))
	assert.Equal(t, "true", formatValue(slog.BoolValue(true)))
}

func TestContextLogger(t *testing.T) {
	fallback := slog.Default()
	assert.Same(t, fallback, FromContext(context.Background(), fallback))

	var buf bytes.Buffer
	scoped := newPlain(&buf, slog.LevelInfo).With("request_id", "abc")
	ctx := WithContext(context.Background(), scoped)
	assert.Same(t, scoped, FromContext(ctx, fallback))
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	log := newPlain(&buf, slog.LevelInfo)

	log.WithError(errors.New("disk full")).Error("save failed")
	assert.Contains(t, buf.String(), `error="disk full"`)
}
