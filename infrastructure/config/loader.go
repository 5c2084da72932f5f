package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from, in increasing priority, built-in
// defaults, the YAML file named by CONFIG_FILE and environment variables.
func LoadConfig() (*Config, error) {
	return Load(os.Getenv("CONFIG_FILE"))
}

// Load is LoadConfig with an explicit file path. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns a configuration that runs locally against the memory store.
func Defaults() *Config {
	return &Config{
		Environment: "development",
		LogLevel:    "info",
		Server: Server{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: Store{Backend: "memory"},
		DynamoDB: DynamoDB{
			Region:       "us-west-2",
			TableName:    "nodestand",
			LineageIndex: "GSI1",
		},
		Neo4j: Neo4j{
			Username: "neo4j",
			Database: "neo4j",
		},
		Breaker: Breaker{
			Enabled:          true,
			MaxRequests:      3,
			Interval:         60 * time.Second,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		},
		Events: Events{
			Provider: "log",
			Source:   "nodestand.argument",
		},
		Auth: Auth{
			JWTIssuer:       "nodestand-backend",
			AllowUserHeader: true,
		},
		TraceSampling: 0.1,
		EnableCORS:    true,
		CORSOrigins:   []string{"*"},
	}
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Environment, "ENVIRONMENT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.Server.Address, "SERVER_ADDRESS")
	setString(&cfg.Store.Backend, "STORE_BACKEND")

	setString(&cfg.DynamoDB.Region, "AWS_REGION")
	setString(&cfg.DynamoDB.TableName, "TABLE_NAME")
	setString(&cfg.DynamoDB.LineageIndex, "LINEAGE_INDEX")
	setString(&cfg.DynamoDB.Endpoint, "DYNAMODB_ENDPOINT")

	setString(&cfg.Neo4j.URI, "NEO4J_URI")
	setString(&cfg.Neo4j.Username, "NEO4J_USER")
	setString(&cfg.Neo4j.Password, "NEO4J_PASSWORD")
	setString(&cfg.Neo4j.Database, "NEO4J_DATABASE")

	setBool(&cfg.Breaker.Enabled, "BREAKER_ENABLED")
	setUint32(&cfg.Breaker.MaxRequests, "BREAKER_MAX_REQUESTS")
	setUint32(&cfg.Breaker.FailureThreshold, "BREAKER_FAILURE_THRESHOLD")
	setDuration(&cfg.Breaker.Interval, "BREAKER_INTERVAL")
	setDuration(&cfg.Breaker.Timeout, "BREAKER_TIMEOUT")

	setString(&cfg.Events.Provider, "EVENTS_PROVIDER")
	setString(&cfg.Events.EventBusName, "EVENT_BUS_NAME")

	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Auth.JWTIssuer, "JWT_ISSUER")
	setString(&cfg.Auth.AuthorsFile, "AUTHORS_FILE")
	setBool(&cfg.Auth.AllowUserHeader, "ALLOW_USER_HEADER")

	setBool(&cfg.EnableMetrics, "ENABLE_METRICS")
	setBool(&cfg.EnableTracing, "ENABLE_TRACING")
	setString(&cfg.OTLPEndpoint, "OTLP_ENDPOINT")
	setBool(&cfg.EnableCORS, "ENABLE_CORS")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = strings.Split(v, ",")
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1" || v == "yes"
	}
}

func setUint32(dst *uint32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			*dst = uint32(n)
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
