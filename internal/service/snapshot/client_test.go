package snapshot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceHunter/internal/domain/models"
	"PriceHunter/pkg/cache"
	"PriceHunter/pkg/logger"
)

const optionsDoc = `[
  {"name": "Mouse Gamer RGB", "price": 499.0, "url": "https://www.amazon.com.mx/p/1", "store": "Amazon México"},
  {"name": "Mouse Inalambrico", "price": 459.0, "url": "https://www.cyberpuerta.mx/p/2", "store": "Cyberpuerta"},
  {"name": "Mouse Pro", "price": 899.0, "url": "https://www.amazon.com.mx/p/3", "store": "Amazon México"}
]`

func newOptionsServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		switch r.URL.Path {
		case "/store-options/mouse-gamer.json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(optionsDoc))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestFetchStoreOptions(t *testing.T) {
	var hits int32
	srv := newOptionsServer(t, &hits)
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, time.Minute, nil, logger.Nop())

	opts, err := c.FetchStoreOptions(context.Background(), "Mouse Gamer", "", 10)
	require.NoError(t, err)
	require.Len(t, opts, 3)
	assert.Equal(t, "Mouse Gamer RGB", opts[0].Name)
}

func TestFetchStoreOptionsFilterAndLimit(t *testing.T) {
	var hits int32
	srv := newOptionsServer(t, &hits)
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, time.Minute, nil, logger.Nop())

	opts, err := c.FetchStoreOptions(context.Background(), "Mouse Gamer", models.StoreAmazonMX, 1)
	require.NoError(t, err)
	require.Len(t, opts, 1)
	assert.Equal(t, models.StoreAmazonMX, opts[0].Store)
}

func TestFetchStoreOptionsMissingSnapshot(t *testing.T) {
	var hits int32
	srv := newOptionsServer(t, &hits)
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, time.Minute, nil, logger.Nop())

	opts, err := c.FetchStoreOptions(context.Background(), "Teclado", "", 10)
	require.NoError(t, err, "a missing snapshot is a normal condition")
	assert.Empty(t, opts)
}

func TestFetchStoreOptionsCached(t *testing.T) {
	var hits int32
	srv := newOptionsServer(t, &hits)
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, time.Minute, cache.NewMemoryCache(), logger.Nop())

	for i := 0; i < 3; i++ {
		opts, err := c.FetchStoreOptions(context.Background(), "Mouse Gamer", "", 10)
		require.NoError(t, err)
		require.Len(t, opts, 3)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "repeated reads must be served from cache")
}
