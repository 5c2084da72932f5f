//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"nodestand-backend/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideGraphStore,
	ProvideDirectory,
	ProvideAuthorResolver,
	ProvideEventPublisher,
	ProvideMetrics,
	ProvideTracing,
	ProvideTraversal,
	ProvideEngine,
	ProvideArgumentService,
	ProvideJWTValidator,
	ProvideErrorHandler,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
