package scrapestream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"PriceHunter/internal/domain/models"
	drepo "PriceHunter/internal/domain/repository"
	"PriceHunter/pkg/logger"
)

// SSEDialer opens server-sent event streams against the scraper backend.
type SSEDialer struct {
	endpoint string
	client   *http.Client
	logger   *logger.Logger
}

// NewSSEDialer creates an SSE StreamDialer for the given endpoint.
func NewSSEDialer(endpoint string, lgr *logger.Logger) *SSEDialer {
	// No client timeout: the stream stays open until the server emits
	// done or the session context is cancelled.
	return &SSEDialer{
		endpoint: endpoint,
		client:   &http.Client{},
		logger:   lgr,
	}
}

// Dial opens the event stream for query.
func (d *SSEDialer) Dial(ctx context.Context, query string, forceRefresh bool) (drepo.ScrapeStream, error) {
	u := fmt.Sprintf("%s?product_name=%s&force_refresh=%t",
		d.endpoint, url.QueryEscape(query), forceRefresh)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("scrape stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape stream dial: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("scrape stream handshake status %d: %w", resp.StatusCode, models.ErrAuthRequired)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("scrape stream handshake: unexpected status %d", resp.StatusCode)
	}

	return &sseStream{body: resp.Body, logger: d.logger}, nil
}

type sseStream struct {
	body   io.ReadCloser
	logger *logger.Logger
}

// Read decodes SSE frames into events until done, error or cancellation.
func (s *sseStream) Read(ctx context.Context) (<-chan models.Event, <-chan error) {
	events := make(chan models.Event, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		scanner := bufio.NewScanner(s.body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		var data []string
		doneSeen := false

		flush := func() bool {
			if len(data) == 0 {
				return true
			}
			payload := strings.Join(data, "\n")
			data = data[:0]
			ev := DecodeFrame([]byte(payload))
			select {
			case events <- ev:
			case <-ctx.Done():
				return false
			}
			if ev.Kind == models.EventDone {
				doneSeen = true
				return false
			}
			return true
		}

		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}
			line := scanner.Text()
			if line == "" {
				if !flush() {
					return
				}
				continue
			}
			if strings.HasPrefix(line, ":") {
				continue // comment / keepalive
			}
			if rest, ok := strings.CutPrefix(line, "data:"); ok {
				data = append(data, strings.TrimPrefix(rest, " "))
			}
			// other SSE fields (event, id, retry) are not used by the scraper
		}

		// flush a trailing frame that was not followed by a blank line
		if !flush() {
			return
		}

		if ctx.Err() != nil {
			return
		}
		if err := scanner.Err(); err != nil {
			errs <- fmt.Errorf("scrape stream read: %w", err)
			return
		}
		if !doneSeen {
			// server closed the connection without a terminal frame
			errs <- fmt.Errorf("scrape stream read: %w", io.ErrUnexpectedEOF)
		}
	}()

	return events, errs
}

// Close releases the underlying connection.
func (s *sseStream) Close() error {
	return s.body.Close()
}
