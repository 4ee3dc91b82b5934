package app

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestRunHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&runHandler{w: &buf, runID: "deadbeef", level: slog.LevelInfo})

	logger.Info("run started", "records", 42)

	line := strings.TrimRight(buf.String(), "\n")
	fields := strings.Split(line, "\t")
	if len(fields) != 5 {
		t.Fatalf("got %d tab-separated fields, want 5: %q", len(fields), line)
	}
	if fields[1] != "INFO" {
		t.Errorf("level field = %q, want INFO", fields[1])
	}
	if fields[2] != "deadbeef" {
		t.Errorf("run id field = %q, want deadbeef", fields[2])
	}
	if fields[3] != "run started" {
		t.Errorf("message field = %q", fields[3])
	}
	if fields[4] != "records=42" {
		t.Errorf("attr field = %q, want records=42", fields[4])
	}
	if !strings.HasSuffix(fields[0], "Z") {
		t.Errorf("timestamp not UTC: %q", fields[0])
	}
}

func TestRunHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&runHandler{w: &buf, runID: "deadbeef", level: slog.LevelInfo})

	logger.Debug("should be filtered")
	if buf.Len() != 0 {
		t.Errorf("debug record logged below threshold: %q", buf.String())
	}

	logger.Warn("should pass")
	if buf.Len() == 0 {
		t.Error("warn record filtered at info threshold")
	}
}

func TestRunHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	base := &runHandler{w: &buf, runID: "deadbeef", level: slog.LevelInfo}
	logger := slog.New(base).With("component", "verify")

	logger.Info("checking", "path", "/bin/ls")

	line := buf.String()
	if !strings.Contains(line, "component=verify") {
		t.Errorf("bound attr missing: %q", line)
	}
	if !strings.Contains(line, "path=/bin/ls") {
		t.Errorf("record attr missing: %q", line)
	}

	// The base handler stays untouched.
	if len(base.attrs) != 0 {
		t.Errorf("WithAttrs mutated the base handler: %v", base.attrs)
	}
}

func TestRunHandler_Enabled(t *testing.T) {
	h := &runHandler{level: slog.LevelInfo}
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug enabled at info threshold")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error disabled at info threshold")
	}
}
