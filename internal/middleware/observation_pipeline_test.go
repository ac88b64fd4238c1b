package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceHunter/internal/domain/models"
)

type captureSink struct {
	mu   sync.Mutex
	got  []*models.PriceObservation
	fail error
}

func (s *captureSink) Publish(ctx context.Context, obs *models.PriceObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.got = append(s.got, obs)
	return nil
}

func (s *captureSink) Close() error { return nil }

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func (s *captureSink) setFail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

type nopMetrics struct{}

func (nopMetrics) RecordResultMerged(string)             {}
func (nopMetrics) RecordError(string)                    {}
func (nopMetrics) RecordLastPrice(string, string, float64) {}
func (nopMetrics) RecordLatency(string, float64)         {}
func (nopMetrics) SetActiveSessions(int)                 {}

func obs(query string, price float64) *models.PriceObservation {
	return &models.PriceObservation{
		Query:      query,
		Store:      models.StoreAmazonMX,
		Name:       query,
		Price:      price,
		ObservedAt: time.Now(),
	}
}

func TestPipelineOfferFlushesToSink(t *testing.T) {
	sink := &captureSink{}
	p := NewObservationPipeline(sink, nopMetrics{}, WithBufferSize(16))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	p.Offer(obs("Mouse", 499))

	deadline := time.Now().Add(time.Second)
	for sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, 1, sink.count())
}

func TestPipelineDropsInvalidObservations(t *testing.T) {
	sink := &captureSink{}
	p := NewObservationPipeline(sink, nopMetrics{}, WithBufferSize(16))

	p.Offer(nil)
	p.Offer(&models.PriceObservation{Store: models.StoreAmazonMX, Price: 1}) // no query
	p.Offer(obs("Mouse", -5))                                               // negative price

	assert.Equal(t, 0, len(p.bufCh))
}

func TestPipelineProcessBuffersOnSinkError(t *testing.T) {
	sink := &captureSink{}
	sink.setFail(errors.New("broker down"))
	p := NewObservationPipeline(sink, nopMetrics{}, WithBufferSize(16))

	err := p.Process(context.Background(), obs("Mouse", 499))
	require.Error(t, err)
	assert.Equal(t, 1, len(p.bufCh), "failed publish lands in the buffer")

	// Once the sink recovers, Start drains the buffer.
	sink.setFail(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 1, sink.count())
}

func TestPipelineThrottlesPerStore(t *testing.T) {
	sink := &captureSink{}
	p := NewObservationPipeline(sink, nopMetrics{}, WithMaxRPS(1), WithBufferSize(64))

	p.Offer(obs("Mouse", 499))
	p.Offer(obs("Mouse", 498)) // same store, within the same second

	assert.Equal(t, 1, len(p.bufCh))
}
