package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PriceHunter/internal/domain/models"
	domrepo "PriceHunter/internal/domain/repository"
)

// ObservationPipeline sits between the aggregation engine and the configured
// sink. It validates, throttles per store, and buffers when the sink is
// unavailable so a slow backend can never stall a live scrape session.
type ObservationPipeline struct {
	sink     domrepo.ObservationSink
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.PriceObservation
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[models.Store]time.Time // per-store last accepted time
}

type PipelineOption func(*ObservationPipeline)

// WithMaxRPS sets the max observations per second per store.
func WithMaxRPS(n int) PipelineOption {
	return func(p *ObservationPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when the sink is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *ObservationPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewObservationPipeline creates a new pipeline in front of the given sink.
func NewObservationPipeline(sink domrepo.ObservationSink, metrics domrepo.Metrics, opts ...PipelineOption) *ObservationPipeline {
	p := &ObservationPipeline{
		sink:     sink,
		metrics:  metrics,
		maxRPS:   20,
		bufSize:  1000,
		bufCh:    make(chan *models.PriceObservation, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[models.Store]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.PriceObservation, p.bufSize)
	}
	return p
}

// Start launches background flushing of buffered observations.
func (p *ObservationPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case obs := <-p.bufCh:
				if obs == nil {
					continue
				}
				if err := p.sink.Publish(ctx, obs); err != nil {
					// exponential backoff with cap
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- obs:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *ObservationPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Offer accepts a merged observation without blocking the caller. Invalid and
// throttled observations are counted and dropped.
func (p *ObservationPipeline) Offer(obs *models.PriceObservation) {
	if err := validateObservation(obs); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return
	}
	if !p.allow(obs.Store, time.Now()) {
		p.metrics.RecordError("pipeline_throttle")
		return
	}
	select {
	case p.bufCh <- obs:
		p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
	default:
		p.metrics.RecordError("pipeline_buffer_full")
	}
}

// Process validates, throttles, and forwards an observation synchronously,
// falling back to the buffer when the sink errors.
func (p *ObservationPipeline) Process(ctx context.Context, obs *models.PriceObservation) error {
	start := time.Now()
	if err := validateObservation(obs); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(obs.Store, start) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.sink.Publish(ctx, obs); err != nil {
		p.metrics.RecordError("pipeline_publish")
		select {
		case p.bufCh <- obs:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_publish", time.Since(start).Seconds())
	return nil
}

func validateObservation(obs *models.PriceObservation) error {
	if obs == nil {
		return fmt.Errorf("observation nil")
	}
	if obs.Query == "" {
		return fmt.Errorf("query empty")
	}
	if obs.Store == "" {
		return fmt.Errorf("store empty")
	}
	if obs.Price < 0 {
		return fmt.Errorf("negative price")
	}
	return nil
}

func (p *ObservationPipeline) allow(store models.Store, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[store]
	if last.IsZero() {
		p.lastSeen[store] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[store] = now
	return true
}
