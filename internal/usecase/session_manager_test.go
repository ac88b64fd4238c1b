package usecase

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceHunter/internal/domain/models"
	drepo "PriceHunter/internal/domain/repository"
	"PriceHunter/pkg/logger"
)

// fakeStream replays scripted events, then reports err (nil for a clean
// end). An optional gate holds the stream open until released.
type fakeStream struct {
	events []models.Event
	err    error
	gate   chan struct{}

	mu     sync.Mutex
	closed bool
}

func (s *fakeStream) Read(ctx context.Context) (<-chan models.Event, <-chan error) {
	evCh := make(chan models.Event)
	errCh := make(chan error, 1)
	go func() {
		if s.gate != nil {
			select {
			case <-s.gate:
			case <-ctx.Done():
			}
		}
		for _, ev := range s.events {
			select {
			case evCh <- ev:
			case <-ctx.Done():
			}
		}
		close(evCh)
		if s.err != nil {
			errCh <- s.err
		}
		close(errCh)
	}()
	return evCh, errCh
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// fakeDialer serves one scripted stream per dial, repeating the last one
// when the script runs out.
type fakeDialer struct {
	mu      sync.Mutex
	streams []*fakeStream
	dialErr error
	dials   int
}

func (d *fakeDialer) Dial(ctx context.Context, query string, forceRefresh bool) (drepo.ScrapeStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	s := d.streams[0]
	if len(d.streams) > 1 {
		d.streams = d.streams[1:]
	}
	return s, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func logEvent(msg string) models.Event {
	return models.Event{Kind: models.EventLog, Message: msg}
}

func resultEvent(query, name string, store models.Store, price float64) models.Event {
	return models.Event{Kind: models.EventResult, Result: &models.StoreResult{
		QueryTerm: query,
		Name:      name,
		Store:     store,
		Price:     price,
		URL:       "https://example.com/p",
	}}
}

func doneEvent() models.Event {
	return models.Event{Kind: models.EventDone}
}

func waitForState(t *testing.T, m *SessionManager, query string, want models.SessionState) models.SessionInfo {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		info, err := m.Session(query)
		if err == nil && info.State == want {
			return info
		}
		time.Sleep(5 * time.Millisecond)
	}
	info, _ := m.Session(query)
	t.Fatalf("session %q never reached %s, stuck at %s", query, want, info.State)
	return models.SessionInfo{}
}

func TestSessionLifecycle(t *testing.T) {
	dialer := &fakeDialer{streams: []*fakeStream{
		{events: []models.Event{
			logEvent("Searching stores for mouse..."),
			resultEvent("Mouse", "Mouse Gamer", models.StoreAmazonMX, 499),
			doneEvent(),
		}},
		{events: []models.Event{
			resultEvent("Mouse", "Mouse Gamer", models.StoreAmazonMX, 479),
			doneEvent(),
		}},
	}}
	catalog := newTestCatalog(10)
	m := NewSessionManager(dialer, catalog, nil, logger.Nop())

	info, err := m.StartSearch(context.Background(), "  mouse ", false)
	require.NoError(t, err)
	assert.Equal(t, "Mouse", info.Query, "query is normalized before the session starts")

	info = waitForState(t, m, "Mouse", models.SessionClosed)
	require.Len(t, info.Logs, 3)
	assert.Equal(t, "> search protocol started for Mouse...", info.Logs[0])
	assert.Equal(t, "> Searching stores for mouse...", info.Logs[1])
	assert.Equal(t, "> search complete.", info.Logs[2])

	products := catalog.Products()
	require.Len(t, products, 1)
	require.Len(t, products[0].PriceHistory, 1)
	assert.Equal(t, 499.0, products[0].PriceHistory[0].Price)

	// A force refresh replaces the terminal session and appends history.
	_, err = m.StartSession(context.Background(), "Mouse", true)
	require.NoError(t, err)
	waitForState(t, m, "Mouse", models.SessionClosed)

	products = catalog.Products()
	require.Len(t, products, 1)
	require.Len(t, products[0].PriceHistory, 2)
	assert.Equal(t, 479.0, products[0].PriceHistory[1].Price)
	assert.Equal(t, 2, dialer.dialCount())
}

func TestStartSessionIdempotentWhileLive(t *testing.T) {
	gate := make(chan struct{})
	dialer := &fakeDialer{streams: []*fakeStream{
		{gate: gate, events: []models.Event{doneEvent()}},
	}}
	m := NewSessionManager(dialer, newTestCatalog(10), nil, logger.Nop())

	_, err := m.StartSession(context.Background(), "Mouse", false)
	require.NoError(t, err)
	waitForState(t, m, "Mouse", models.SessionStreaming)

	// Second start for the same query joins the live session.
	info, err := m.StartSession(context.Background(), "Mouse", false)
	require.NoError(t, err)
	assert.False(t, info.State.Terminal())
	assert.Equal(t, 1, dialer.dialCount())

	close(gate)
	waitForState(t, m, "Mouse", models.SessionClosed)
}

func TestForceRefreshReplacesLiveSession(t *testing.T) {
	gate := make(chan struct{})
	dialer := &fakeDialer{streams: []*fakeStream{
		{gate: gate, events: []models.Event{
			resultEvent("Mouse", "Stale", models.StoreAmazonMX, 999),
			doneEvent(),
		}},
		{events: []models.Event{
			resultEvent("Mouse", "Fresh", models.StoreAmazonMX, 499),
			doneEvent(),
		}},
	}}
	catalog := newTestCatalog(10)
	m := NewSessionManager(dialer, catalog, nil, logger.Nop())

	_, err := m.StartSession(context.Background(), "Mouse", false)
	require.NoError(t, err)

	_, err = m.StartSession(context.Background(), "Mouse", true)
	require.NoError(t, err)
	close(gate)

	info := waitForState(t, m, "Mouse", models.SessionClosed)
	assert.True(t, info.ForceRefresh)
	assert.Equal(t, 2, dialer.dialCount())

	// Only the replacement session's events were applied; the cancelled
	// session discards anything still in flight.
	products := catalog.Products()
	require.Len(t, products, 1)
	assert.Equal(t, "Fresh", products[0].Name)
	require.Len(t, products[0].PriceHistory, 1)
	assert.Equal(t, 499.0, products[0].PriceHistory[0].Price)
}

func TestCancelSessionDiscardsRemainingEvents(t *testing.T) {
	gate := make(chan struct{})
	dialer := &fakeDialer{streams: []*fakeStream{
		{gate: gate, events: []models.Event{
			resultEvent("Mouse", "Late", models.StoreAmazonMX, 499),
			doneEvent(),
		}},
	}}
	catalog := newTestCatalog(10)
	m := NewSessionManager(dialer, catalog, nil, logger.Nop())

	_, err := m.StartSession(context.Background(), "Mouse", false)
	require.NoError(t, err)

	require.NoError(t, m.CancelSession("Mouse"))
	close(gate)

	info := waitForState(t, m, "Mouse", models.SessionClosed)
	assert.Equal(t, models.SessionClosed, info.State)
	assert.Equal(t, 0, catalog.Len(), "events after cancellation must not merge")

	// Cancelling a terminal session is a no-op.
	assert.NoError(t, m.CancelSession("Mouse"))
	assert.ErrorIs(t, m.CancelSession("Unknown"), models.ErrSessionNotFound)
}

func TestSessionAuthFailure(t *testing.T) {
	dialer := &fakeDialer{dialErr: models.ErrAuthRequired}
	m := NewSessionManager(dialer, newTestCatalog(10), nil, logger.Nop())

	_, err := m.StartSession(context.Background(), "Mouse", false)
	require.NoError(t, err)

	info := waitForState(t, m, "Mouse", models.SessionFailed)
	require.Len(t, info.Logs, 2)
	assert.Equal(t, "> authentication with the scraper backend failed.", info.Logs[1])
}

func TestSessionDroppedStreamKeepsMergedResults(t *testing.T) {
	dialer := &fakeDialer{streams: []*fakeStream{
		{
			events: []models.Event{resultEvent("Mouse", "Mouse", models.StoreAmazonMX, 499)},
			err:    io.ErrUnexpectedEOF,
		},
	}}
	catalog := newTestCatalog(10)
	m := NewSessionManager(dialer, catalog, nil, logger.Nop())

	_, err := m.StartSession(context.Background(), "Mouse", false)
	require.NoError(t, err)

	info := waitForState(t, m, "Mouse", models.SessionFailed)
	assert.Equal(t, "> connection to the scraper backend failed.", info.Logs[len(info.Logs)-1])
	assert.Equal(t, 1, catalog.Len(), "results merged before the drop are retained")
}

func TestSessionMalformedFramesAreSkipped(t *testing.T) {
	dialer := &fakeDialer{streams: []*fakeStream{
		{events: []models.Event{
			{Kind: models.EventMalformed, Message: "bad json"},
			resultEvent("Mouse", "Mouse", models.StoreAmazonMX, 499),
			doneEvent(),
		}},
	}}
	catalog := newTestCatalog(10)
	m := NewSessionManager(dialer, catalog, nil, logger.Nop())

	_, err := m.StartSession(context.Background(), "Mouse", false)
	require.NoError(t, err)

	waitForState(t, m, "Mouse", models.SessionClosed)
	assert.Equal(t, 1, catalog.Len())
}

func TestStartSearchRejectsWhenCatalogFull(t *testing.T) {
	dialer := &fakeDialer{streams: []*fakeStream{
		{events: []models.Event{doneEvent()}},
	}}
	catalog := newTestCatalog(1)
	catalog.Upsert(result("Mouse", "Mouse", models.StoreAmazonMX, 100), time.Now())
	m := NewSessionManager(dialer, catalog, nil, logger.Nop())

	_, err := m.StartSearch(context.Background(), "Teclado", false)
	assert.ErrorIs(t, err, models.ErrCatalogFull)

	// Existing groups can still be refreshed at the cap.
	_, err = m.StartSearch(context.Background(), "Mouse", false)
	assert.NoError(t, err)
	waitForState(t, m, "Mouse", models.SessionClosed)
}

func TestSessionStartThrottled(t *testing.T) {
	dialer := &fakeDialer{streams: []*fakeStream{
		{events: []models.Event{doneEvent()}},
	}}
	m := NewSessionManager(dialer, newTestCatalog(10), nil, logger.Nop(),
		WithStartRate(1, 0.001))

	_, err := m.StartSession(context.Background(), "Mouse", false)
	require.NoError(t, err)
	waitForState(t, m, "Mouse", models.SessionClosed)

	// The bucket is exhausted, so an immediate restart is rejected.
	_, err = m.StartSession(context.Background(), "Mouse", true)
	assert.ErrorIs(t, err, models.ErrThrottled)
}

func TestShutdownDrainsSessions(t *testing.T) {
	gate := make(chan struct{})
	dialer := &fakeDialer{streams: []*fakeStream{
		{gate: gate, events: []models.Event{doneEvent()}},
	}}
	m := NewSessionManager(dialer, newTestCatalog(10), nil, logger.Nop())

	_, err := m.StartSession(context.Background(), "Mouse", false)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		m.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not drain sessions")
	}

	info, err := m.Session("Mouse")
	require.NoError(t, err)
	assert.True(t, info.State.Terminal())
}
