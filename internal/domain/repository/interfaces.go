package repository

import (
	"context"
	"time"

	"PriceHunter/internal/domain/models"
)

// ScrapeStream is one open event stream for a single query. Read returns
// the decoded event channel and an error channel; both are closed when the
// stream ends. Events are delivered in arrival order, one at a time.
type ScrapeStream interface {
	Read(ctx context.Context) (<-chan models.Event, <-chan error)
	Close() error
}

// StreamDialer opens a scrape stream for a query. Implementations exist
// for the SSE and websocket transports of the scraper backend.
type StreamDialer interface {
	Dial(ctx context.Context, query string, forceRefresh bool) (ScrapeStream, error)
}

// ObservationSink receives every merged price observation for downstream
// analytics. Sink failures must never affect the in-memory catalog.
type ObservationSink interface {
	Publish(ctx context.Context, obs *models.PriceObservation) error
	Close() error
}

// ObservationHistory reads archived observations back, when the configured
// sink supports queries.
type ObservationHistory interface {
	History(ctx context.Context, query string, store models.Store, from, to time.Time, limit int) ([]models.PriceEntry, error)
}

// TrackingStore owns the user's persisted tracked-queries list and its
// push feed. Watch delivers the current full set immediately on subscribe
// and again after every change, until ctx is cancelled.
type TrackingStore interface {
	Track(ctx context.Context, query string) error
	Untrack(ctx context.Context, key string) error
	List(ctx context.Context) ([]models.TrackedItem, error)
	Watch(ctx context.Context) (<-chan []models.TrackedItem, error)
	Close() error
}

// OptionsSource reads pre-computed comparison options per query.
// A missing snapshot yields an empty slice, not an error.
type OptionsSource interface {
	FetchStoreOptions(ctx context.Context, query string, store models.Store, limit int) ([]models.StoreOption, error)
}

// RefreshDispatcher schedules an out-of-band bulk re-scrape.
type RefreshDispatcher interface {
	Dispatch(ctx context.Context) error
}

// Metrics records operational metrics.
type Metrics interface {
	RecordResultMerged(store string)
	RecordError(kind string)
	RecordLastPrice(query, store string, price float64)
	RecordLatency(op string, seconds float64)
	SetActiveSessions(n int)
}
