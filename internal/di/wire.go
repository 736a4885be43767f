//go:build wireinject
// +build wireinject

package di

import (
	"TickerPulse/pkg/config"
	"TickerPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideRateLimiter,

		// Infrastructure
		ProvideTickerStore,
		ProvideSyncEvents,
		ProvideCache,
		ProvideMarketProvider,

		// Use cases
		ProvideSyncEngine,
		ProvideDashboard,

		// HTTP surface
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
