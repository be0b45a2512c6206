package logger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelWarn},
		{"", slog.LevelWarn},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if err != nil {
			t.Errorf("ParseLevel(%q) returned error: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSimpleTextHandlerFormat(t *testing.T) {
	var buf strings.Builder
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	handler := &simpleTextHandler{handler: inner, writer: &buf}

	record := slog.NewRecord(time.Time{}, slog.LevelInfo, "protocol extracted", 0)
	record.AddAttrs(slog.String("name", "DoubleIt"), slog.Int("round", 2))

	if err := handler.Handle(context.Background(), record); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	got := buf.String()
	if got != "INFO protocol extracted name=DoubleIt round=2\n" {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestSimpleTextHandlerRespectsLevel(t *testing.T) {
	var buf strings.Builder
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})
	handler := &simpleTextHandler{handler: inner, writer: &buf}

	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
}

func TestOpenLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agora.log")

	file, cleanup, err := OpenLogFile(path)
	if err != nil {
		t.Fatalf("OpenLogFile failed: %v", err)
	}
	if _, err := file.WriteString("line\n"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	cleanup()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if string(data) != "line\n" {
		t.Errorf("unexpected file contents: %q", data)
	}

	// Appends on reopen.
	file, cleanup, err = OpenLogFile(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	file.WriteString("more\n")
	cleanup()

	data, _ = os.ReadFile(path)
	if string(data) != "line\nmore\n" {
		t.Errorf("expected append, got %q", data)
	}
}

func TestGetLoggerInitializesOnce(t *testing.T) {
	defaultLogger = nil
	first := GetLogger()
	if first == nil {
		t.Fatal("GetLogger returned nil")
	}
	if second := GetLogger(); second != first {
		t.Error("GetLogger should return the same instance")
	}
}
