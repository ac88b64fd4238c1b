package di

import (
	"context"
	"fmt"
	"time"

	domrepo "PriceHunter/internal/domain/repository"
	"PriceHunter/internal/handler/api"
	mid "PriceHunter/internal/middleware"
	internalrepo "PriceHunter/internal/repository"
	"PriceHunter/internal/service/dispatch"
	"PriceHunter/internal/service/scrapestream"
	"PriceHunter/internal/service/snapshot"
	"PriceHunter/internal/service/tracking"
	"PriceHunter/internal/usecase"
	"PriceHunter/pkg/cache"
	pkgch "PriceHunter/pkg/clickhouse"
	"PriceHunter/pkg/config"
	xhttp "PriceHunter/pkg/http"
	pkgkafka "PriceHunter/pkg/kafka"
	applogger "PriceHunter/pkg/logger"
	"PriceHunter/pkg/metrics"
	"PriceHunter/pkg/queue"
	"PriceHunter/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the structured application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideStreamDialer selects the scrape stream transport.
func ProvideStreamDialer(cfg *config.Config, lgr *applogger.Logger) (domrepo.StreamDialer, error) {
	switch cfg.Scraper.Transport {
	case "websocket":
		return scrapestream.NewWebsocketDialer(cfg.Scraper.Endpoint, lgr), nil
	case "sse", "":
		return scrapestream.NewSSEDialer(cfg.Scraper.Endpoint, lgr), nil
	default:
		return nil, fmt.Errorf("unknown scraper transport %q", cfg.Scraper.Transport)
	}
}

// ProvideRedisClient creates a shared Redis client, or nil when Redis is
// not needed by the current configuration.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	if !cfg.Tracking.Enabled && !cfg.Queue.Enabled && cfg.Snapshot.BaseURL == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// ProvideClickHouseClient creates a ClickHouse client when the sink needs
// one, with the observation schema applied.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Sink.Type != "clickhouse" {
		return nil, nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.ObservationSchema); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideObservationSink builds the configured sink, or nil for "none".
func ProvideObservationSink(cfg *config.Config, chClient *pkgch.Client, lgr *applogger.Logger) (domrepo.ObservationSink, error) {
	switch cfg.Sink.Type {
	case "", "none":
		return nil, nil
	case "kafka":
		producer, err := pkgkafka.NewProducer(
			pkgkafka.WithBrokers(cfg.Kafka.Brokers),
			pkgkafka.WithCompression(cfg.Kafka.Compression),
			pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
			pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
			pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
			pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
			pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
			pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
			pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
			pkgkafka.WithHashByKey(true),
		)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		return internalrepo.NewKafkaObservationPublisher(producer, cfg.Kafka.Topic), nil
	case "clickhouse":
		store := internalrepo.NewCHObservationStore(chClient)
		store.SetLogger(lgr)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown sink type %q", cfg.Sink.Type)
	}
}

// ProvideObservationPipeline builds the buffer between the catalog and the
// sink. Nil when no sink is configured.
func ProvideObservationPipeline(cfg *config.Config, sink domrepo.ObservationSink, m domrepo.Metrics) *mid.ObservationPipeline {
	if sink == nil {
		return nil
	}
	return mid.NewObservationPipeline(sink, m,
		mid.WithMaxRPS(cfg.Sink.MaxRPS),
		mid.WithBufferSize(cfg.Sink.BufferSize),
	)
}

// ProvideCatalog creates the in-memory product catalog.
func ProvideCatalog(cfg *config.Config, pipeline *mid.ObservationPipeline, m domrepo.Metrics, lgr *applogger.Logger) *usecase.Catalog {
	if pipeline == nil {
		return usecase.NewCatalog(cfg.Scraper.MaxProducts, m, nil, lgr)
	}
	return usecase.NewCatalog(cfg.Scraper.MaxProducts, m, pipeline, lgr)
}

// ProvideSessionManager creates the scrape session manager.
func ProvideSessionManager(cfg *config.Config, dialer domrepo.StreamDialer, catalog *usecase.Catalog, m domrepo.Metrics, lgr *applogger.Logger) *usecase.SessionManager {
	return usecase.NewSessionManager(dialer, catalog, m, lgr,
		usecase.WithStartRate(cfg.Scraper.StartRate.Capacity, cfg.Scraper.StartRate.RefillPerSec),
		usecase.WithLogLines(cfg.Scraper.LogLines),
	)
}

// ProvideAnalyzer creates the price trend analyzer.
func ProvideAnalyzer() *usecase.Analyzer {
	return usecase.NewAnalyzer(5 * time.Minute)
}

// ProvideTrackingStore creates the Redis tracking store. Nil when tracking
// is disabled or there is no Redis.
func ProvideTrackingStore(cfg *config.Config, client *redis.Client, lgr *applogger.Logger) domrepo.TrackingStore {
	if !cfg.Tracking.Enabled || client == nil {
		return nil
	}
	return tracking.NewRedisStore(client, cfg.Redis.Prefix, cfg.Tracking.User, lgr)
}

// ProvideReconciler creates the tracking reconciler. Nil without tracking.
func ProvideReconciler(store domrepo.TrackingStore, catalog *usecase.Catalog, sessions *usecase.SessionManager, lgr *applogger.Logger) *usecase.Reconciler {
	if store == nil {
		return nil
	}
	return usecase.NewReconciler(store, catalog, sessions, lgr)
}

// ProvideOptionsSource creates the snapshot options client with a layered
// cache when Redis is available.
func ProvideOptionsSource(cfg *config.Config, client *redis.Client, lgr *applogger.Logger) (domrepo.OptionsSource, error) {
	if cfg.Snapshot.BaseURL == "" {
		return nil, nil
	}

	var cacheSvc cache.Service = cache.NewMemoryCache()
	if client != nil {
		redisCache, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Redis.Host),
			cache.WithRedisPort(cfg.Redis.Port),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
			cache.WithRedisPrefix(cfg.Redis.Prefix),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		cacheSvc = cache.NewLayeredCache(redisCache)
	}

	return snapshot.New(cfg.Snapshot.BaseURL, cfg.Snapshot.Timeout, cfg.Snapshot.CacheTTL, cacheSvc, lgr), nil
}

// ProvideRefreshDispatcher creates the bulk refresh trigger. Nil when no
// dispatch endpoint is configured.
func ProvideRefreshDispatcher(cfg *config.Config, lgr *applogger.Logger) domrepo.RefreshDispatcher {
	if cfg.Dispatch.URL == "" {
		return nil
	}
	return dispatch.NewTrigger(cfg.Dispatch.URL, cfg.Dispatch.Token, cfg.Dispatch.Timeout, lgr)
}

// ProvideRefreshQueue creates the Redis-backed refresh queue with the
// refresh job registered. Nil when the queue is disabled.
func ProvideRefreshQueue(cfg *config.Config, client *redis.Client, sessions *usecase.SessionManager, lgr *applogger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled || client == nil {
		return nil
	}
	q := queue.NewRedisQueue(lgr,
		&queue.QueueConfig{
			Workers:    cfg.Queue.Workers,
			RetryLimit: cfg.Queue.RetryLimit,
			RetryDelay: cfg.Queue.RetryDelay,
		},
		client,
		queue.ModeProducerConsumer,
		queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"),
	)
	q.RegisterJob(usecase.NewRefreshJob(sessions, lgr))
	return q
}

// ProvideHTTPHandler builds the API handler with all routed dependencies.
func ProvideHTTPHandler(
	lgr *applogger.Logger,
	catalog *usecase.Catalog,
	sessions *usecase.SessionManager,
	analyzer *usecase.Analyzer,
	options domrepo.OptionsSource,
	store domrepo.TrackingStore,
	dispatcher domrepo.RefreshDispatcher,
	refreshQueue *queue.RedisQueue,
	sink domrepo.ObservationSink,
) xhttp.Handler {
	var publisher queue.QueueService
	if refreshQueue != nil {
		publisher = refreshQueue
	}
	h := api.NewCatalogEchoHandler(lgr, catalog, sessions, analyzer, options, store, dispatcher, publisher)
	if hist, ok := sink.(domrepo.ObservationHistory); ok {
		h.SetHistory(hist)
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	sessions *usecase.SessionManager,
	reconciler *usecase.Reconciler,
	pipeline *mid.ObservationPipeline,
	refreshQueue *queue.RedisQueue,
	chClient *pkgch.Client,
	redisClient *redis.Client,
	handler xhttp.Handler,
) *server.App {
	app := server.New(cfg, lgr, sessions, reconciler, pipeline, refreshQueue, chClient, redisClient)
	app.SetHTTPHandler(handler)
	return app
}
