package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceHunter/internal/domain/models"
	drepo "PriceHunter/internal/domain/repository"
	"PriceHunter/internal/usecase"
	"PriceHunter/pkg/logger"
)

type stubStream struct{ events []models.Event }

func (s *stubStream) Read(ctx context.Context) (<-chan models.Event, <-chan error) {
	evCh := make(chan models.Event, len(s.events))
	errCh := make(chan error, 1)
	for _, ev := range s.events {
		evCh <- ev
	}
	close(evCh)
	close(errCh)
	return evCh, errCh
}

func (s *stubStream) Close() error { return nil }

type stubDialer struct{ events []models.Event }

func (d *stubDialer) Dial(ctx context.Context, query string, force bool) (drepo.ScrapeStream, error) {
	return &stubStream{events: d.events}, nil
}

type stubOptions struct{ opts []models.StoreOption }

func (s *stubOptions) FetchStoreOptions(ctx context.Context, query string, store models.Store, limit int) ([]models.StoreOption, error) {
	return s.opts, nil
}

type memTracking struct{ items []models.TrackedItem }

func (m *memTracking) Track(ctx context.Context, query string) error {
	m.items = append(m.items, models.TrackedItem{ID: query, Query: query, CreatedAt: time.Now()})
	return nil
}

func (m *memTracking) Untrack(ctx context.Context, key string) error {
	for i, item := range m.items {
		if item.ID == key {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return models.ErrProductNotFound
}

func (m *memTracking) List(ctx context.Context) ([]models.TrackedItem, error) { return m.items, nil }
func (m *memTracking) Watch(ctx context.Context) (<-chan []models.TrackedItem, error) {
	ch := make(chan []models.TrackedItem)
	close(ch)
	return ch, nil
}
func (m *memTracking) Close() error { return nil }

type stubDispatcher struct{ err error }

func (d *stubDispatcher) Dispatch(ctx context.Context) error { return d.err }

func newTestHandler(t *testing.T) (*CatalogEchoHandler, *echo.Echo, *usecase.Catalog) {
	t.Helper()
	lgr := logger.Nop()
	catalog := usecase.NewCatalog(10, nil, nil, lgr)
	dialer := &stubDialer{events: []models.Event{{Kind: models.EventDone}}}
	sessions := usecase.NewSessionManager(dialer, catalog, nil, lgr)
	analyzer := usecase.NewAnalyzer(time.Minute)
	h := NewCatalogEchoHandler(lgr, catalog, sessions, analyzer,
		&stubOptions{}, &memTracking{}, &stubDispatcher{}, nil)

	e := echo.New()
	h.RegisterRoutes(e)
	return h, e, catalog
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestStartSearchEndpoint(t *testing.T) {
	_, e, _ := newTestHandler(t)

	rec := doJSON(e, http.MethodPost, "/api/products", `{"query": "mouse gamer"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status int                `json:"status"`
		Data   models.SessionInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, "Mouse Gamer", resp.Data.Query)
}

func TestStartSearchValidation(t *testing.T) {
	_, e, _ := newTestHandler(t)

	rec := doJSON(e, http.MethodPost, "/api/products", `{"query": "ab"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status int `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusBadRequest, resp.Status)
}

func TestDeleteProductNotFound(t *testing.T) {
	_, e, _ := newTestHandler(t)

	rec := doJSON(e, http.MethodDelete, "/api/products/nope", "")
	var resp struct {
		Status int `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, resp.Status)
}

func TestGroupCollapseRoundTrip(t *testing.T) {
	_, e, catalog := newTestHandler(t)
	catalog.Upsert(&models.StoreResult{QueryTerm: "Mouse", Name: "Mouse", Store: models.StoreAmazonMX, Price: 499}, time.Now())

	rec := doJSON(e, http.MethodPost, "/api/groups/Mouse/collapse", "")
	var resp struct {
		Status int `json:"status"`
		Data   struct {
			Collapsed bool `json:"collapsed"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.True(t, resp.Data.Collapsed)

	// Unknown group is a 404. The error envelope carries an array in
	// data, so it needs its own shape.
	rec = doJSON(e, http.MethodPost, "/api/groups/Nope/collapse", "")
	var errResp struct {
		Status int `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, http.StatusNotFound, errResp.Status)
}

func TestTrackingEndpoints(t *testing.T) {
	_, e, _ := newTestHandler(t)

	rec := doJSON(e, http.MethodPost, "/api/tracking", `{"query": "mouse gamer"}`)
	var created struct {
		Status int               `json:"status"`
		Data   map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, http.StatusCreated, created.Status)
	assert.Equal(t, "Mouse Gamer", created.Data["query"])

	rec = doJSON(e, http.MethodGet, "/api/tracking", "")
	var listed struct {
		Status int `json:"status"`
		Data   struct {
			Total int64 `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Equal(t, int64(1), listed.Data.Total)
}

func TestDispatchRefreshAuthError(t *testing.T) {
	lgr := logger.Nop()
	catalog := usecase.NewCatalog(10, nil, nil, lgr)
	sessions := usecase.NewSessionManager(&stubDialer{}, catalog, nil, lgr)
	h := NewCatalogEchoHandler(lgr, catalog, sessions, usecase.NewAnalyzer(time.Minute),
		&stubOptions{}, &memTracking{}, &stubDispatcher{err: models.ErrAuthRequired}, nil)
	e := echo.New()
	h.RegisterRoutes(e)

	rec := doJSON(e, http.MethodPost, "/api/refresh", "")
	var resp struct {
		Status int `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
}

func TestHealthz(t *testing.T) {
	_, e, _ := newTestHandler(t)

	rec := doJSON(e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
