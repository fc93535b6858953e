// internal/oplog/text.go
package oplog

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// TextWriter renders lines as "<prefix> <text>\n" to an io.Writer.
// Data lines from the debug console are written verbatim after the prefix,
// with a trailing newline added only when the chunk lacks one.
type TextWriter struct {
	mu  sync.Mutex
	w   io.Writer
	err error
}

// NewTextWriter creates a TextWriter.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: w}
}

// Emit writes one line. The first write error is remembered and later
// lines are dropped.
func (t *TextWriter) Emit(kind Kind, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.err != nil {
		return
	}

	line := Entry{Kind: kind, Text: text}.Line()
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	if _, err := io.WriteString(t.w, line); err != nil {
		t.err = fmt.Errorf("oplog: write: %w", err)
	}
}

// Err reports the first write error, if any.
func (t *TextWriter) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
