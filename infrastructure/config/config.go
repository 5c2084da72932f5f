package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration
type Config struct {
	Environment string `yaml:"environment" validate:"required,oneof=development staging production test"`
	LogLevel    string `yaml:"log_level" validate:"oneof=debug info warn error"`

	Server   Server   `yaml:"server"`
	Store    Store    `yaml:"store"`
	DynamoDB DynamoDB `yaml:"dynamodb"`
	Neo4j    Neo4j    `yaml:"neo4j"`
	Breaker  Breaker  `yaml:"breaker"`
	Events   Events   `yaml:"events"`
	Auth     Auth     `yaml:"auth"`

	// Feature flags
	EnableMetrics bool     `yaml:"enable_metrics"`
	EnableTracing bool     `yaml:"enable_tracing"`
	OTLPEndpoint  string   `yaml:"otlp_endpoint"`
	TraceSampling float64  `yaml:"trace_sampling" validate:"gte=0,lte=1"`
	EnableCORS    bool     `yaml:"enable_cors"`
	CORSOrigins   []string `yaml:"cors_origins"`
}

type Server struct {
	Address         string        `yaml:"address" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// Store selects the graph store backend.
type Store struct {
	Backend string `yaml:"backend" validate:"required,oneof=memory dynamodb neo4j"`
}

type DynamoDB struct {
	Region       string `yaml:"region"`
	TableName    string `yaml:"table_name"`
	LineageIndex string `yaml:"lineage_index"`
	// Endpoint overrides the service endpoint, e.g. for DynamoDB Local.
	Endpoint string `yaml:"endpoint"`
}

type Neo4j struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// Breaker configures the circuit breaker wrapped around the graph store.
type Breaker struct {
	Enabled          bool          `yaml:"enabled"`
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold" validate:"gte=1"`
}

type Events struct {
	Provider     string `yaml:"provider" validate:"oneof=none log eventbridge"`
	EventBusName string `yaml:"event_bus_name"`
	Source       string `yaml:"source"`
}

type Auth struct {
	JWTSecret   string `yaml:"jwt_secret"`
	JWTIssuer   string `yaml:"jwt_issuer"`
	AuthorsFile string `yaml:"authors_file"`
	// AllowUserHeader trusts X-User-ID when no bearer token is sent.
	AllowUserHeader bool `yaml:"allow_user_header"`
}

var validate = validator.New()

// Validate checks struct tags, then the rules that depend on the chosen backends.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch c.Store.Backend {
	case "dynamodb":
		if c.DynamoDB.TableName == "" {
			return fmt.Errorf("TABLE_NAME is required for the dynamodb store")
		}
		if c.DynamoDB.LineageIndex == "" {
			return fmt.Errorf("LINEAGE_INDEX is required for the dynamodb store")
		}
	case "neo4j":
		if c.Neo4j.URI == "" {
			return fmt.Errorf("NEO4J_URI is required for the neo4j store")
		}
	}

	if c.Events.Provider == "eventbridge" && c.Events.EventBusName == "" {
		return fmt.Errorf("EVENT_BUS_NAME is required for eventbridge events")
	}

	if c.IsProduction() {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.Auth.AllowUserHeader {
			return fmt.Errorf("header authentication is not allowed in production")
		}
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
