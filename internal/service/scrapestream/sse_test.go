package scrapestream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"PriceHunter/internal/domain/models"
	"PriceHunter/pkg/logger"
)

func sseServer(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("product_name") == "" {
			t.Errorf("missing product_name parameter")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			_, _ = io.WriteString(w, f)
		}
		if fl, ok := w.(http.Flusher); ok {
			fl.Flush()
		}
	}))
}

func TestSSEStreamDeliversFramesInOrder(t *testing.T) {
	srv := sseServer(t,
		"data: {\"type\":\"log\",\"message\":\"starting\"}\n\n",
		": keepalive\n\n",
		"data: not json\n\n",
		"data: {\"type\":\"result\",\"data\":{\"name\":\"Mouse X\",\"store\":\"DDtech\",\"price\":499,\"url\":\"u\"}}\n\n",
		"data: {\"type\":\"done\"}\n\n",
	)
	defer srv.Close()

	d := NewSSEDialer(srv.URL, logger.Nop())
	st, err := d.Dial(context.Background(), "Mouse", false)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer st.Close()

	events, errs := st.Read(context.Background())
	var kinds []models.EventKind
	for ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	if err := <-errs; err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}

	want := []models.EventKind{models.EventLog, models.EventMalformed, models.EventResult, models.EventDone}
	if len(kinds) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event %d: expected %v, got %v", i, want[i], kinds[i])
		}
	}
}

func TestSSEDialAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	d := NewSSEDialer(srv.URL, logger.Nop())
	_, err := d.Dial(context.Background(), "Mouse", false)
	if !errors.Is(err, models.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}

func TestSSEStreamConnectionDropWithoutDone(t *testing.T) {
	srv := sseServer(t, "data: {\"type\":\"log\",\"message\":\"starting\"}\n\n")
	defer srv.Close()

	d := NewSSEDialer(srv.URL, logger.Nop())
	st, err := d.Dial(context.Background(), "Mouse", false)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer st.Close()

	events, errs := st.Read(context.Background())
	for range events {
	}
	if err := <-errs; err == nil {
		t.Fatalf("expected a transport error when the server drops before done")
	}
}
