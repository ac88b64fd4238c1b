package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func emit(fields ...Field) string {
	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	ev := zl.Info()
	for _, f := range fields {
		f.AddTo(ev)
	}
	ev.Msg("msg")
	return buf.String()
}

func TestInt64Field(t *testing.T) {
	out := emit(Int64("elapsed_ms", 1234567890123))
	if !strings.Contains(out, `"elapsed_ms":1234567890123`) {
		t.Fatalf("int64 field not emitted, got %s", out)
	}
}

func TestIntAndStringFields(t *testing.T) {
	out := emit(Int("count", 3), String("query", "Mouse"))
	if !strings.Contains(out, `"count":3`) {
		t.Fatalf("int field not emitted, got %s", out)
	}
	if !strings.Contains(out, `"query":"Mouse"`) {
		t.Fatalf("string field not emitted, got %s", out)
	}
}
