package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/nerrad567/gray-twin-core/internal/infrastructure/config"
)

// entries decodes one JSON object per line.
func entries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e map[string]any
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("decoding %q: %v", line, err)
		}
		out = append(out, e)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWithWriter_Formats(t *testing.T) {
	tests := []struct {
		format string
		check  func(string) bool
	}{
		{"json", func(s string) bool { return strings.HasPrefix(s, "{") }},
		{"", func(s string) bool { return strings.HasPrefix(s, "{") }},
		{"text", func(s string) bool { return strings.Contains(s, "msg=hello") }},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			NewWithWriter(config.LoggingConfig{Format: tt.format}, "1.0.0", &buf).Info("hello")
			if !tt.check(buf.String()) {
				t.Errorf("format %q wrote %q", tt.format, buf.String())
			}
		})
	}
}

func TestWith_DefaultFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "test", &buf)

	logger.With("component", "store").Info("element created", "id_short_path", "a.b[0]")

	e := entries(t, &buf)[0]
	want := map[string]string{
		"service":       ServiceName,
		"version":       "test",
		"component":     "store",
		"msg":           "element created",
		"id_short_path": "a.b[0]",
	}
	for k, v := range want {
		if e[k] != v {
			t.Errorf("entry[%q] = %v, want %q", k, e[k], v)
		}
	}
}

func TestSetLevel_AppliesToChildren(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "warn"}, "test", &buf)
	child := logger.With("component", "api")

	child.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn: %s", buf.String())
	}

	logger.SetLevel("debug")
	child.Debug("kept")
	if n := len(entries(t, &buf)); n != 1 {
		t.Errorf("entries after SetLevel = %d, want 1", n)
	}
}

func TestContext(t *testing.T) {
	fallback := Discard()
	if got := FromContext(context.Background(), fallback); got != fallback {
		t.Error("FromContext() without logger did not return fallback")
	}

	var buf bytes.Buffer
	scoped := NewWithWriter(config.LoggingConfig{}, "test", &buf).With("request_id", "r-1")
	ctx := NewContext(context.Background(), scoped)

	FromContext(ctx, fallback).Info("handled")
	if e := entries(t, &buf)[0]; e["request_id"] != "r-1" {
		t.Errorf("request_id = %v, want r-1", e["request_id"])
	}
}

func TestDiscard(t *testing.T) {
	Discard().Error("nowhere")
}
