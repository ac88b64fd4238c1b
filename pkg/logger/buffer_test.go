package logger

import (
	"fmt"
	"testing"
)

func TestBufferKeepsArrivalOrder(t *testing.T) {
	b := NewBuffer(10)
	b.Append("one")
	b.Append("two")
	b.Append("three")

	lines := b.Lines()
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "one" || lines[2] != "three" {
		t.Fatalf("order broken: %v", lines)
	}
}

func TestBufferDropsOldestPastBound(t *testing.T) {
	b := NewBuffer(3)
	for i := 1; i <= 5; i++ {
		b.Append(fmt.Sprintf("line %d", i))
	}

	lines := b.Lines()
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "line 3" || lines[2] != "line 5" {
		t.Fatalf("unexpected window: %v", lines)
	}
}

func TestBufferLinesReturnsCopy(t *testing.T) {
	b := NewBuffer(10)
	b.Append("original")

	lines := b.Lines()
	lines[0] = "mutated"

	if b.Lines()[0] != "original" {
		t.Fatal("Lines must return a copy")
	}
}
