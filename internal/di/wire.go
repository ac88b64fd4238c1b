//go:build wireinject
// +build wireinject

package di

import (
	"PriceHunter/pkg/config"
	"PriceHunter/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisClient,
		ProvideClickHouseClient,

		// Ingestion
		ProvideStreamDialer,
		ProvideObservationSink,
		ProvideObservationPipeline,

		// Use cases
		ProvideCatalog,
		ProvideSessionManager,
		ProvideAnalyzer,
		ProvideTrackingStore,
		ProvideReconciler,
		ProvideOptionsSource,
		ProvideRefreshDispatcher,
		ProvideRefreshQueue,

		// HTTP and application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
