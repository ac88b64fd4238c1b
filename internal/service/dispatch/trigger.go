// Package dispatch triggers out-of-band bulk re-scrapes on the scraper
// backend.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"PriceHunter/internal/domain/models"
	domrepo "PriceHunter/internal/domain/repository"
	pkghttp "PriceHunter/pkg/http"
	"PriceHunter/pkg/logger"
)

// Trigger implements RefreshDispatcher by POSTing to the scraper backend's
// dispatch endpoint with a bearer token. The backend re-scrapes every
// tracked query on its own schedule; the response only acknowledges the
// request.
type Trigger struct {
	http   *pkghttp.Client
	url    string
	token  string
	logger *logger.Logger
}

// NewTrigger creates a dispatcher for the given endpoint.
func NewTrigger(url, token string, timeout time.Duration, lgr *logger.Logger) domrepo.RefreshDispatcher {
	return &Trigger{
		http:   pkghttp.NewClient(pkghttp.WithTimeout(timeout)),
		url:    url,
		token:  token,
		logger: lgr,
	}
}

func (t *Trigger) Dispatch(ctx context.Context) error {
	start := time.Now()

	resp, err := t.http.SendRequest(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodPost,
		URL:    t.url,
		Headers: map[string]string{
			"Authorization": "Bearer " + t.token,
		},
	})
	if err != nil {
		return fmt.Errorf("dispatch request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("dispatch rejected (%d): %w", resp.StatusCode, models.ErrAuthRequired)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("dispatch status %d: %s", resp.StatusCode, body)
	}

	t.logger.Info("bulk refresh dispatched",
		logger.Duration("duration_ms", time.Since(start)))
	return nil
}
