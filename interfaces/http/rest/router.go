// Package rest wires the HTTP routes of the argument API.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"nodestand-backend/application/ports"
	"nodestand-backend/application/services"
	"nodestand-backend/interfaces/http/rest/handlers"
	"nodestand-backend/interfaces/http/rest/middleware"
	pkgerrors "nodestand-backend/pkg/errors"
	"nodestand-backend/pkg/observability"
)

// RouterConfig carries the presentation settings.
type RouterConfig struct {
	Auth          middleware.AuthConfig
	EnableCORS    bool
	CORSOrigins   []string
	EnableMetrics bool
}

// Router creates and configures the HTTP router
type Router struct {
	service      *services.ArgumentService
	authors      ports.AuthorResolver
	metrics      *observability.Collector
	logger       *zap.Logger
	errorHandler *pkgerrors.ErrorHandler
	config       RouterConfig
}

func NewRouter(
	service *services.ArgumentService,
	authors ports.AuthorResolver,
	metrics *observability.Collector,
	logger *zap.Logger,
	errorHandler *pkgerrors.ErrorHandler,
	config RouterConfig,
) *Router {
	return &Router{
		service:      service,
		authors:      authors,
		metrics:      metrics,
		logger:       logger,
		errorHandler: errorHandler,
		config:       config,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(rt.errorHandler.Middleware)
	router.Use(middleware.Logger(rt.logger))

	if rt.config.EnableCORS {
		origins := rt.config.CORSOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", middleware.UserHeader},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	if rt.config.EnableMetrics && rt.metrics != nil {
		router.Handle("/metrics", rt.metrics.Handler())
	}

	arguments := handlers.NewArgumentHandler(rt.service, rt.logger, rt.errorHandler)
	queries := handlers.NewQueryHandler(rt.service, rt.authors, rt.logger, rt.errorHandler)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.config.Auth, rt.errorHandler, rt.logger))

		r.Post("/assertions", arguments.CreateAssertion)
		r.Put("/assertions/{nodeID}", arguments.EditAssertion)
		r.Post("/interpretations", arguments.CreateInterpretation)
		r.Put("/interpretations/{nodeID}", arguments.EditInterpretation)
		r.Post("/sources", arguments.CreateSource)
		r.Put("/sources/{nodeID}", arguments.EditSource)

		r.Route("/nodes", func(r chi.Router) {
			r.Get("/", queries.ListNodes)
			r.Get("/roots", queries.GetRoots)
			r.Get("/{nodeID}", queries.GetNode)
			r.Delete("/{nodeID}", arguments.DiscardDraft)
			r.Get("/{nodeID}/consumers", queries.GetConsumers)
			r.Post("/{nodeID}/drafts", arguments.MakeDraft)
			r.Post("/{nodeID}/adopt", arguments.AdoptChild)
			r.Post("/{nodeID}/publish", arguments.Publish)
		})

		r.Get("/lineages/{stableID}/graph", queries.GetGraph)
		r.Get("/lineages/{stableID}/history", queries.GetHistory)
		r.Get("/major-versions/{stableID}/nodes", queries.GetMajorVersion)
		r.Get("/authors/{authorID}/nodes", queries.GetAuthorNodes)
		r.Get("/authors/{authorID}/drafts", queries.GetAuthorDrafts)
		r.Get("/me/authors", queries.GetMyAuthors)
		r.Get("/search", queries.Search)
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
