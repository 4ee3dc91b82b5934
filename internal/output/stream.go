// Package output provides terminal output for debtrust: the streaming
// one-symbol-per-file verdict display and aligned record tables.
//
// Symbols follow the trust verdict: '+' fully verified, '*' trusted
// from package metadata, '.' locally computed only, '?' unknown,
// '!' mismatch.
package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// writerIsTTY returns true if the given writer exposes an Fd() method
// (e.g. *os.File) and that fd is a terminal. Falls back to false for
// plain io.Writer values such as *bytes.Buffer.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd())
	}
	return false
}

// Stream emits verdict symbols in traversal order, wrapping lines at a
// fixed width. Symbol order is part of the observable contract, so
// there is exactly one writer per run.
type Stream struct {
	mu      sync.Mutex
	writer  io.Writer
	width   int
	col     int
	emitted int
	quiet   bool
}

// NewStream returns a Stream writing to os.Stdout.
func NewStream() *Stream {
	return &Stream{writer: os.Stdout, width: 72}
}

// SetWriter sets the output writer (useful for testing).
func (s *Stream) SetWriter(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer = w
}

// SetQuiet suppresses symbol output entirely.
func (s *Stream) SetQuiet(quiet bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quiet = quiet
}

// Emit writes one verdict symbol.
func (s *Stream) Emit(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.emitted++
	if s.quiet {
		return
	}
	fmt.Fprint(s.writer, symbol)
	s.col++
	if s.col >= s.width {
		fmt.Fprintln(s.writer)
		s.col = 0
	}
}

// Count returns the number of symbols emitted so far.
func (s *Stream) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emitted
}

// Finish terminates a partially filled symbol line.
func (s *Stream) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quiet || s.col == 0 {
		return
	}
	fmt.Fprintln(s.writer)
	s.col = 0
}
