// Package di assembles the application from configuration.
package di

import (
	"go.uber.org/zap"

	"nodestand-backend/application/ports"
	"nodestand-backend/application/services"
	"nodestand-backend/infrastructure/config"
	"nodestand-backend/infrastructure/identity"
	"nodestand-backend/interfaces/http/rest"
	"nodestand-backend/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     ports.GraphStore
	Directory *identity.Directory
	Events    ports.EventPublisher
	Metrics   *observability.Collector
	Tracer    *observability.TracerProvider
	Service   *services.ArgumentService
	Router    *rest.Router
}
