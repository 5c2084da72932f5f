package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: staging
store:
  backend: neo4j
neo4j:
  uri: bolt://graph:7687
breaker:
  timeout: 5s
`), 0o600))

	t.Setenv("NEO4J_URI", "bolt://override:7687")
	t.Setenv("BREAKER_FAILURE_THRESHOLD", "9")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "neo4j", cfg.Store.Backend)
	assert.Equal(t, "bolt://override:7687", cfg.Neo4j.URI)
	assert.Equal(t, 5*time.Second, cfg.Breaker.Timeout)
	assert.Equal(t, uint32(9), cfg.Breaker.FailureThreshold)
	assert.Equal(t, "neo4j", cfg.Neo4j.Username, "defaults survive partial files")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown backend", func(c *Config) { c.Store.Backend = "postgres" }, true},
		{"neo4j without uri", func(c *Config) { c.Store.Backend = "neo4j" }, true},
		{"dynamodb without table", func(c *Config) {
			c.Store.Backend = "dynamodb"
			c.DynamoDB.TableName = ""
		}, true},
		{"eventbridge without bus", func(c *Config) { c.Events.Provider = "eventbridge" }, true},
		{"production without secret", func(c *Config) {
			c.Environment = "production"
			c.Auth.AllowUserHeader = false
		}, true},
		{"production with header auth", func(c *Config) {
			c.Environment = "production"
			c.Auth.JWTSecret = "s3cret"
		}, true},
		{"production", func(c *Config) {
			c.Environment = "production"
			c.Auth.JWTSecret = "s3cret"
			c.Auth.AllowUserHeader = false
		}, false},
		{"bad sampling", func(c *Config) { c.TraceSampling = 2 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
