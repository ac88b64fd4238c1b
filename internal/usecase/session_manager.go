package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"PriceHunter/internal/domain/models"
	drepo "PriceHunter/internal/domain/repository"
	"PriceHunter/internal/service/ratelimit"
	"PriceHunter/pkg/logger"
	"PriceHunter/pkg/util"
)

// session is the live state of one ingestion attempt for one query.
type session struct {
	query   string
	force   bool
	state   models.SessionState
	started time.Time
	logs    *logger.Buffer
	cancel  context.CancelFunc
	stream  drepo.ScrapeStream
	done    chan struct{} // closed on the transition into a terminal state
}

// SessionManager owns every ingestion session and enforces at most one
// non-terminal session per normalized query. Each session runs its own
// goroutine that applies decoded events in strict arrival order.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*session

	dialer  drepo.StreamDialer
	catalog *Catalog
	metrics drepo.Metrics
	logger  *logger.Logger

	limiter  *ratelimit.Limiter
	rateCap  float64
	rateFill float64
	logLines int

	wg sync.WaitGroup
}

// SessionOption configures SessionManager.
type SessionOption func(*SessionManager)

// WithStartRate throttles session starts per query with a token bucket.
func WithStartRate(capacity, refillPerSec float64) SessionOption {
	return func(m *SessionManager) {
		if capacity > 0 && refillPerSec > 0 {
			m.limiter = ratelimit.New()
			m.rateCap = capacity
			m.rateFill = refillPerSec
		}
	}
}

// WithLogLines bounds each session's log buffer.
func WithLogLines(n int) SessionOption {
	return func(m *SessionManager) {
		if n > 0 {
			m.logLines = n
		}
	}
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(dialer drepo.StreamDialer, catalog *Catalog, metrics drepo.Metrics, lgr *logger.Logger, opts ...SessionOption) *SessionManager {
	m := &SessionManager{
		sessions: make(map[string]*session),
		dialer:   dialer,
		catalog:  catalog,
		metrics:  metrics,
		logger:   lgr,
		logLines: 500,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartSearch starts a session for a form-submitted query, rejecting
// new-group creation when the catalog is at its product cap.
func (m *SessionManager) StartSearch(ctx context.Context, rawQuery string, forceRefresh bool) (models.SessionInfo, error) {
	query := util.NormalizeQuery(rawQuery)
	if query == "" {
		return models.SessionInfo{}, fmt.Errorf("empty query")
	}
	if err := m.catalog.EnsureCapacity(query); err != nil {
		return models.SessionInfo{}, err
	}
	return m.StartSession(ctx, query, forceRefresh)
}

// StartSession opens one ingestion session for the normalized query.
// Starting a query with an existing non-terminal session is a no-op and
// returns that session's snapshot, unless forceRefresh is set, in which
// case the existing session is cancelled first and replaced.
func (m *SessionManager) StartSession(ctx context.Context, rawQuery string, forceRefresh bool) (models.SessionInfo, error) {
	query := util.NormalizeQuery(rawQuery)
	if query == "" {
		return models.SessionInfo{}, fmt.Errorf("empty query")
	}

	m.mu.Lock()
	var replaced <-chan struct{}
	if existing, ok := m.sessions[query]; ok && !existing.state.Terminal() {
		if !forceRefresh {
			info := snapshot(existing)
			m.mu.Unlock()
			return info, nil
		}
		m.beginCancelLocked(existing)
		replaced = existing.done
	}

	if m.limiter != nil && !m.limiter.Allow(query, m.rateCap, m.rateFill) {
		m.mu.Unlock()
		return models.SessionInfo{}, models.ErrThrottled
	}

	// Session lifetime is independent of the caller's request context.
	sctx, cancel := context.WithCancel(context.Background())
	s := &session{
		query:   query,
		force:   forceRefresh,
		state:   models.SessionIdle,
		started: time.Now(),
		logs:    logger.NewBuffer(m.logLines),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	m.sessions[query] = s

	// Immediate feedback before any network activity.
	s.logs.Append(fmt.Sprintf("> search protocol started for %s...", query))
	s.state = models.SessionConnecting
	m.updateActiveLocked()
	info := snapshot(s)
	m.mu.Unlock()

	m.logger.Info("session starting",
		logger.String("query", query), logger.Bool("force_refresh", forceRefresh))
	m.wg.Add(1)
	go m.run(sctx, s, replaced)

	return info, nil
}

// CancelSession cancels the session for query. Calling it on an already
// terminal session is a no-op.
func (m *SessionManager) CancelSession(query string) error {
	q := util.NormalizeQuery(query)

	m.mu.Lock()
	s, ok := m.sessions[q]
	if !ok {
		m.mu.Unlock()
		return models.ErrSessionNotFound
	}
	if s.state.Terminal() {
		m.mu.Unlock()
		return nil
	}
	m.beginCancelLocked(s)
	m.mu.Unlock()
	return nil
}

// Session returns a snapshot of the session for query.
func (m *SessionManager) Session(query string) (models.SessionInfo, error) {
	q := util.NormalizeQuery(query)

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[q]
	if !ok {
		return models.SessionInfo{}, models.ErrSessionNotFound
	}
	return snapshot(s), nil
}

// Sessions returns snapshots of every known session.
func (m *SessionManager) Sessions() []models.SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, snapshot(s))
	}
	return out
}

// Shutdown cancels every non-terminal session and waits for their
// goroutines to drain.
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	for _, s := range m.sessions {
		if !s.state.Terminal() {
			m.beginCancelLocked(s)
		}
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// run drives one session: dial, stream, fold events into the catalog.
// On a force refresh, replaced is the cancelled predecessor's done channel;
// its transport must be fully torn down before this session dials.
func (m *SessionManager) run(ctx context.Context, s *session, replaced <-chan struct{}) {
	defer m.wg.Done()

	if replaced != nil {
		select {
		case <-replaced:
		case <-ctx.Done():
			m.terminate(s, models.SessionClosed)
			return
		}
	}

	stream, err := m.dialer.Dial(ctx, s.query, s.force)
	if err != nil {
		if ctx.Err() != nil {
			m.terminate(s, models.SessionClosed)
			return
		}
		m.fail(s, err)
		return
	}

	m.mu.Lock()
	if s.state != models.SessionConnecting {
		// cancelled while dialing
		m.mu.Unlock()
		_ = stream.Close()
		m.terminate(s, models.SessionClosed)
		return
	}
	s.stream = stream
	s.state = models.SessionStreaming
	m.mu.Unlock()

	events, errs := stream.Read(ctx)
	for ev := range events {
		// A session in Closing state discards, never applies: frames may
		// still be in flight after cancellation was requested.
		if ctx.Err() != nil || m.discarding(s) {
			continue
		}
		m.apply(s, ev)
	}

	streamErr := <-errs

	m.mu.Lock()
	state := s.state
	m.mu.Unlock()

	switch {
	case state.Terminal():
		// done frame already closed the session
	case ctx.Err() != nil || state == models.SessionClosing:
		m.terminate(s, models.SessionClosed)
	case streamErr != nil:
		m.fail(s, streamErr)
	default:
		m.fail(s, fmt.Errorf("stream ended without a terminal frame"))
	}
}

// apply folds one event into session and catalog state, in arrival order.
func (m *SessionManager) apply(s *session, ev models.Event) {
	switch ev.Kind {
	case models.EventLog:
		s.logs.Append("> " + ev.Message)
	case models.EventResult:
		start := time.Now()
		m.catalog.Upsert(ev.Result, time.Now())
		if m.metrics != nil {
			m.metrics.RecordLatency("upsert", time.Since(start).Seconds())
		}
	case models.EventDone:
		s.logs.Append("> search complete.")
		m.logger.Info("session complete", logger.String("query", s.query))
		m.terminate(s, models.SessionClosed)
	case models.EventMalformed:
		// dropped, never fatal
		m.logger.Warn("malformed frame dropped",
			logger.String("query", s.query), logger.String("reason", ev.Message))
		if m.metrics != nil {
			m.metrics.RecordError("decode")
		}
	}
}

// fail marks the session Failed, distinguishing authentication failures
// from generic connectivity in the session log. Catalog state already
// merged from this session is retained.
func (m *SessionManager) fail(s *session, err error) {
	if errors.Is(err, models.ErrAuthRequired) {
		s.logs.Append("> authentication with the scraper backend failed.")
	} else {
		s.logs.Append("> connection to the scraper backend failed.")
	}
	m.logger.Error("session failed", logger.String("query", s.query), logger.Error(err))
	if m.metrics != nil {
		m.metrics.RecordError("transport")
	}
	m.terminate(s, models.SessionFailed)
}

// beginCancelLocked moves a session into Closing and signals its goroutine.
// Closing always resolves to Closed once the goroutine observes it.
func (m *SessionManager) beginCancelLocked(s *session) {
	s.state = models.SessionClosing
	s.cancel()
	m.updateActiveLocked()
}

// terminate finalizes the session into a terminal state exactly once,
// releasing the transport.
func (m *SessionManager) terminate(s *session, state models.SessionState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	s.state = state
	if s.stream != nil {
		_ = s.stream.Close()
	}
	close(s.done)
	m.updateActiveLocked()
}

func (m *SessionManager) discarding(s *session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return s.state == models.SessionClosing || s.state.Terminal()
}

func (m *SessionManager) updateActiveLocked() {
	if m.metrics == nil {
		return
	}
	n := 0
	for _, s := range m.sessions {
		if !s.state.Terminal() && s.state != models.SessionClosing {
			n++
		}
	}
	m.metrics.SetActiveSessions(n)
}

func snapshot(s *session) models.SessionInfo {
	return models.SessionInfo{
		Query:        s.query,
		ForceRefresh: s.force,
		State:        s.state,
		StartedAt:    s.started,
		Logs:         s.logs.Lines(),
	}
}
