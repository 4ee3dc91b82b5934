package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestStream_EmitAndWrap(t *testing.T) {
	var buf bytes.Buffer
	s := NewStream()
	s.SetWriter(&buf)

	for i := 0; i < 75; i++ {
		s.Emit(".")
	}
	s.Finish()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if len(lines[0]) != 72 {
		t.Errorf("first line is %d symbols, want 72", len(lines[0]))
	}
	if len(lines[1]) != 3 {
		t.Errorf("second line is %d symbols, want 3", len(lines[1]))
	}
	if s.Count() != 75 {
		t.Errorf("Count = %d, want 75", s.Count())
	}
}

func TestStream_FinishOnBoundary(t *testing.T) {
	var buf bytes.Buffer
	s := NewStream()
	s.SetWriter(&buf)

	for i := 0; i < 72; i++ {
		s.Emit("+")
	}
	s.Finish()

	// The wrap already terminated the line; Finish adds nothing.
	if got := buf.String(); got != strings.Repeat("+", 72)+"\n" {
		t.Errorf("output = %q", got)
	}
}

func TestStream_Quiet(t *testing.T) {
	var buf bytes.Buffer
	s := NewStream()
	s.SetWriter(&buf)
	s.SetQuiet(true)

	s.Emit("!")
	s.Finish()

	if buf.Len() != 0 {
		t.Errorf("quiet stream wrote %q", buf.String())
	}
	if s.Count() != 1 {
		t.Errorf("Count = %d, want 1 even when quiet", s.Count())
	}
}
