package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceHunter/internal/domain/models"
	"PriceHunter/pkg/logger"
)

// fakeTracking feeds scripted emissions through Watch.
type fakeTracking struct {
	feed chan []models.TrackedItem
}

func newFakeTracking() *fakeTracking {
	return &fakeTracking{feed: make(chan []models.TrackedItem, 8)}
}

func (f *fakeTracking) Track(ctx context.Context, query string) error { return nil }
func (f *fakeTracking) Untrack(ctx context.Context, key string) error { return nil }
func (f *fakeTracking) List(ctx context.Context) ([]models.TrackedItem, error) {
	return nil, nil
}
func (f *fakeTracking) Watch(ctx context.Context) (<-chan []models.TrackedItem, error) {
	return f.feed, nil
}
func (f *fakeTracking) Close() error { return nil }

func tracked(queries ...string) []models.TrackedItem {
	items := make([]models.TrackedItem, 0, len(queries))
	for _, q := range queries {
		items = append(items, models.TrackedItem{ID: q, Query: q, CreatedAt: time.Now()})
	}
	return items
}

func TestReconcilerStartsMissingGroups(t *testing.T) {
	dialer := &fakeDialer{streams: []*fakeStream{
		{events: []models.Event{
			resultEvent("Teclado Mecanico", "Teclado", models.StoreAmazonMX, 1200),
			doneEvent(),
		}},
	}}
	catalog := newTestCatalog(10)
	catalog.Upsert(result("Mouse", "Mouse", models.StoreAmazonMX, 499), time.Now())
	m := NewSessionManager(dialer, catalog, nil, logger.Nop())
	store := newFakeTracking()
	r := NewReconciler(store, catalog, m, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	// "Mouse" is already present, only the keyboard needs a session. The
	// stored form is denormalized on purpose.
	store.feed <- tracked("Mouse", "  teclado   mecanico ")

	waitForState(t, m, "Teclado Mecanico", models.SessionClosed)
	assert.Equal(t, 1, dialer.dialCount())
	assert.True(t, catalog.HasGroup("Teclado Mecanico"))
}

func TestReconcilerDedupesWithinEmission(t *testing.T) {
	gate := make(chan struct{})
	dialer := &fakeDialer{streams: []*fakeStream{
		{gate: gate, events: []models.Event{doneEvent()}},
	}}
	catalog := newTestCatalog(10)
	m := NewSessionManager(dialer, catalog, nil, logger.Nop())
	store := newFakeTracking()
	r := NewReconciler(store, catalog, m, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	// Duplicate entries normalize to the same query; one session starts.
	store.feed <- tracked("Mouse", "mouse", "MOUSE  ")

	deadline := time.Now().Add(time.Second)
	for dialer.dialCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	close(gate)
	waitForState(t, m, "Mouse", models.SessionClosed)
	require.Equal(t, 1, dialer.dialCount())
}

func TestReconcilerStopsWhenFeedCloses(t *testing.T) {
	dialer := &fakeDialer{streams: []*fakeStream{{events: []models.Event{doneEvent()}}}}
	catalog := newTestCatalog(10)
	m := NewSessionManager(dialer, catalog, nil, logger.Nop())
	store := newFakeTracking()
	r := NewReconciler(store, catalog, m, logger.Nop())

	close(store.feed)
	err := r.Run(context.Background())
	assert.NoError(t, err)
}
