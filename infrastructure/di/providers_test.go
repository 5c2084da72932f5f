package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nodestand-backend/infrastructure/config"
	"nodestand-backend/infrastructure/messaging"
	"nodestand-backend/infrastructure/persistence"
)

func TestInitializeContainer_Memory(t *testing.T) {
	cfg := config.Defaults()
	cfg.EnableMetrics = true

	c, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	_, breaking := c.Store.(*persistence.BreakingStore)
	assert.True(t, breaking)
	assert.IsType(t, &messaging.LogPublisher{}, c.Events)
	assert.Len(t, c.Directory.Users(), 1)

	rec := httptest.NewRecorder()
	c.Router.Setup().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProvideGraphStore_UnknownBackend(t *testing.T) {
	cfg := config.Defaults()
	cfg.Store.Backend = "sqlite"
	_, _, err := ProvideGraphStore(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestProvideEventPublisher(t *testing.T) {
	cfg := config.Defaults()
	cfg.Events.Provider = "none"
	p, err := ProvideEventPublisher(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, messaging.NoopPublisher{}, p)
}

func TestProvideJWTValidator(t *testing.T) {
	cfg := config.Defaults()
	v, err := ProvideJWTValidator(cfg)
	require.NoError(t, err)
	assert.Nil(t, v)

	cfg.Auth.JWTSecret = "s"
	v, err = ProvideJWTValidator(cfg)
	require.NoError(t, err)
	assert.NotNil(t, v)
}
