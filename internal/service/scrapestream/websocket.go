package scrapestream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"PriceHunter/internal/domain/models"
	drepo "PriceHunter/internal/domain/repository"
	"PriceHunter/pkg/logger"
)

// WebsocketDialer opens websocket streams against scraper deployments that
// expose the frame feed over ws:// instead of SSE. Frames carry the same
// JSON bodies, one per message.
type WebsocketDialer struct {
	endpoint string
	logger   *logger.Logger
}

// NewWebsocketDialer creates a websocket StreamDialer for the given endpoint.
func NewWebsocketDialer(endpoint string, lgr *logger.Logger) *WebsocketDialer {
	return &WebsocketDialer{endpoint: endpoint, logger: lgr}
}

// Dial opens the websocket stream for query.
func (d *WebsocketDialer) Dial(ctx context.Context, query string, forceRefresh bool) (drepo.ScrapeStream, error) {
	u := fmt.Sprintf("%s?product_name=%s&force_refresh=%t",
		d.endpoint, url.QueryEscape(query), forceRefresh)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("scrape stream handshake status %d: %w", resp.StatusCode, models.ErrAuthRequired)
		}
		return nil, fmt.Errorf("scrape stream dial: %w", err)
	}

	return &wsStream{conn: conn, logger: d.logger}, nil
}

type wsStream struct {
	conn   *websocket.Conn
	logger *logger.Logger
}

// Read decodes websocket messages into events until done, error or cancellation.
func (s *wsStream) Read(ctx context.Context) (<-chan models.Event, <-chan error) {
	events := make(chan models.Event, 64)
	errs := make(chan error, 1)

	// ReadMessage has no context awareness, so cancellation has to tear
	// down the connection to unblock the read loop.
	readerDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = s.conn.Close()
		case <-readerDone:
		}
	}()

	go func() {
		defer close(events)
		defer close(errs)
		defer close(readerDone)

		for {
			if ctx.Err() != nil {
				return
			}
			_, b, err := s.conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("scrape stream read: %w", err)
				}
				return
			}
			ev := DecodeFrame(b)
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Kind == models.EventDone {
				return
			}
		}
	}()

	return events, errs
}

// Close closes the websocket connection.
func (s *wsStream) Close() error {
	return s.conn.Close()
}
