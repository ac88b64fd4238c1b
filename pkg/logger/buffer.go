package logger

import "sync"

// Buffer is a bounded, ordered collector of log lines. Each ingestion
// session owns one: every appended line is kept in arrival order so the
// session's full trace can be replayed to a caller at any time. When the
// bound is exceeded the oldest lines are discarded first.
type Buffer struct {
	mu    sync.Mutex
	max   int
	lines []string
}

// NewBuffer creates a line buffer holding at most max lines.
// A max of zero or less means unbounded.
func NewBuffer(max int) *Buffer {
	return &Buffer{max: max}
}

// Append adds a line at the end of the buffer.
func (b *Buffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines = append(b.lines, line)
	if b.max > 0 && len(b.lines) > b.max {
		// drop oldest
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

// Lines returns a copy of the buffered lines in arrival order.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Len returns the number of buffered lines.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}
