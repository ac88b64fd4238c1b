package scrapestream

import (
	"testing"

	"PriceHunter/internal/domain/models"
)

func TestDecodeFrameLog(t *testing.T) {
	ev := DecodeFrame([]byte(`{"type":"log","message":"scanning Cyberpuerta"}`))
	if ev.Kind != models.EventLog {
		t.Fatalf("expected log event, got %v", ev.Kind)
	}
	if ev.Message != "scanning Cyberpuerta" {
		t.Fatalf("unexpected message %q", ev.Message)
	}
}

func TestDecodeFrameResult(t *testing.T) {
	raw := []byte(`{"type":"result","data":{"name":"Mouse X","store":"Cyberpuerta","price":499,"url":"https://www.cyberpuerta.mx/p/1","query_term":"Mouse"}}`)
	ev := DecodeFrame(raw)
	if ev.Kind != models.EventResult {
		t.Fatalf("expected result event, got %v", ev.Kind)
	}
	if ev.Result.QueryTerm != "Mouse" || ev.Result.Price != 499 {
		t.Fatalf("unexpected result %+v", ev.Result)
	}
}

func TestDecodeFrameResultDefaultsQueryTerm(t *testing.T) {
	raw := []byte(`{"type":"result","data":{"name":"Mouse X","store":"DDtech","price":450,"url":"u"}}`)
	ev := DecodeFrame(raw)
	if ev.Kind != models.EventResult {
		t.Fatalf("expected result event, got %v", ev.Kind)
	}
	if ev.Result.QueryTerm != "Mouse X" {
		t.Fatalf("query_term should default to name, got %q", ev.Result.QueryTerm)
	}
}

func TestDecodeFrameDone(t *testing.T) {
	if ev := DecodeFrame([]byte(`{"type":"done"}`)); ev.Kind != models.EventDone {
		t.Fatalf("expected done event, got %v", ev.Kind)
	}
}

func TestDecodeFrameMalformed(t *testing.T) {
	cases := []string{
		`not json at all`,
		`{"type":"telemetry"}`,
		`{"type":"result"}`,
	}
	for _, raw := range cases {
		ev := DecodeFrame([]byte(raw))
		if ev.Kind != models.EventMalformed {
			t.Fatalf("expected malformed for %q, got %v", raw, ev.Kind)
		}
		if ev.Message == "" {
			t.Fatalf("malformed event must carry a diagnostic for %q", raw)
		}
	}
}
