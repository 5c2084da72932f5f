package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"nodestand-backend/application/ports"
	"nodestand-backend/application/services"
	"nodestand-backend/domain/core/entities"
	domainservices "nodestand-backend/domain/services"
	"nodestand-backend/domain/versioning"
	"nodestand-backend/infrastructure/config"
	"nodestand-backend/infrastructure/identity"
	"nodestand-backend/infrastructure/messaging"
	"nodestand-backend/infrastructure/persistence"
	"nodestand-backend/infrastructure/persistence/dynamodb"
	"nodestand-backend/infrastructure/persistence/memory"
	"nodestand-backend/infrastructure/persistence/neo4jdb"
	"nodestand-backend/interfaces/http/rest"
	"nodestand-backend/interfaces/http/rest/middleware"
	"nodestand-backend/pkg/auth"
	pkgerrors "nodestand-backend/pkg/errors"
	"nodestand-backend/pkg/observability"
)

// ProvideLogger creates the root logger at the configured level.
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// ProvideAWSConfig loads the default AWS credential chain. Only called for
// backends that talk to AWS.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.DynamoDB.Region))
}

// ProvideGraphStore opens the configured backend and wraps it in the circuit breaker.
func ProvideGraphStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.GraphStore, func(), error) {
	var (
		store   ports.GraphStore
		cleanup = func() {}
	)

	switch cfg.Store.Backend {
	case "memory":
		store = memory.NewStore(logger)

	case "dynamodb":
		awsCfg, err := ProvideAWSConfig(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client := awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
			if cfg.DynamoDB.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.DynamoDB.Endpoint)
			}
		})
		store = dynamodb.NewStore(client, cfg.DynamoDB.TableName, cfg.DynamoDB.LineageIndex, logger)

	case "neo4j":
		driver, err := neo4jdb.Connect(ctx, neo4jdb.Config{
			URI:      cfg.Neo4j.URI,
			Username: cfg.Neo4j.Username,
			Password: cfg.Neo4j.Password,
			Database: cfg.Neo4j.Database,
		})
		if err != nil {
			return nil, nil, err
		}
		neo := neo4jdb.NewStore(driver, cfg.Neo4j.Database, logger)
		neo.EnsureSchema(ctx)
		store = neo
		cleanup = func() {
			if err := driver.Close(context.Background()); err != nil {
				logger.Warn("Failed to close neo4j driver", zap.Error(err))
			}
		}

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	logger.Info("Graph store ready", zap.String("backend", cfg.Store.Backend), zap.Bool("breaker", cfg.Breaker.Enabled))
	if !cfg.Breaker.Enabled {
		return store, cleanup, nil
	}
	return persistence.NewBreakingStore(store, persistence.BreakerConfig{
		Name:             "graph-store-" + cfg.Store.Backend,
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         cfg.Breaker.Interval,
		Timeout:          cfg.Breaker.Timeout,
		FailureThreshold: cfg.Breaker.FailureThreshold,
	}, logger), cleanup, nil
}

// demoUsers seed the directory in development when no authors file is set.
var demoUsers = []entities.User{
	{ID: "demo", Authors: []entities.Author{{StableID: "demo-author", DisplayName: "Demo Author"}}},
}

// ProvideDirectory loads the author directory and watches its file for changes.
func ProvideDirectory(cfg *config.Config, logger *zap.Logger) (*identity.Directory, func(), error) {
	if cfg.Auth.AuthorsFile == "" {
		var users []entities.User
		if cfg.IsDevelopment() {
			users = demoUsers
		}
		logger.Warn("No authors file configured", zap.Int("users", len(users)))
		dir, err := identity.NewDirectory(users, logger)
		return dir, func() {}, err
	}

	dir, err := identity.LoadDirectory(cfg.Auth.AuthorsFile, logger)
	if err != nil {
		return nil, nil, err
	}
	watcher, err := identity.Watch(dir, cfg.Auth.AuthorsFile, logger)
	if err != nil {
		logger.Warn("Author directory hot reload disabled", zap.Error(err))
		return dir, func() {}, nil
	}
	return dir, watcher.Stop, nil
}

// ProvideAuthorResolver exposes the directory through its port.
func ProvideAuthorResolver(dir *identity.Directory) ports.AuthorResolver {
	return dir
}

// ProvideEventPublisher selects where domain events go after a commit.
func ProvideEventPublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.EventPublisher, error) {
	switch cfg.Events.Provider {
	case "eventbridge":
		awsCfg, err := ProvideAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return messaging.NewEventBridgePublisher(
			awseventbridge.NewFromConfig(awsCfg),
			cfg.Events.EventBusName,
			cfg.Events.Source,
			logger,
		), nil
	case "log":
		return messaging.NewLogPublisher(logger), nil
	default:
		return messaging.NoopPublisher{}, nil
	}
}

// ProvideMetrics creates the Prometheus collector.
func ProvideMetrics() *observability.Collector {
	return observability.NewCollector("nodestand")
}

// ProvideTracing installs the tracer provider and returns its shutdown hook.
func ProvideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName: "nodestand-backend",
		Environment: cfg.Environment,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRate:  cfg.TraceSampling,
		Enabled:     cfg.EnableTracing,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	return tp, func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("Failed to shut down tracer", zap.Error(err))
		}
	}, nil
}

func ProvideTraversal() *domainservices.TraversalService {
	return domainservices.NewTraversalService()
}

func ProvideEngine(traversal *domainservices.TraversalService, logger *zap.Logger) *versioning.Engine {
	return versioning.NewEngine(traversal, logger)
}

func ProvideArgumentService(
	store ports.GraphStore,
	authors ports.AuthorResolver,
	engine *versioning.Engine,
	traversal *domainservices.TraversalService,
	events ports.EventPublisher,
	metrics *observability.Collector,
	logger *zap.Logger,
) *services.ArgumentService {
	return services.NewArgumentService(store, authors, engine, traversal, events, metrics, logger)
}

// ProvideJWTValidator returns nil when no secret is configured.
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, nil
	}
	return auth.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
}

func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

func ProvideRouter(
	cfg *config.Config,
	service *services.ArgumentService,
	authors ports.AuthorResolver,
	metrics *observability.Collector,
	validator *auth.JWTValidator,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(service, authors, metrics, logger, errorHandler, rest.RouterConfig{
		Auth:          middleware.AuthConfig{Validator: validator, AllowUserHeader: cfg.Auth.AllowUserHeader},
		EnableCORS:    cfg.EnableCORS,
		CORSOrigins:   cfg.CORSOrigins,
		EnableMetrics: cfg.EnableMetrics,
	})
}
