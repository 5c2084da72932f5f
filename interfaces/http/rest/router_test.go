package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nodestand-backend/application/services"
	"nodestand-backend/domain/core/entities"
	domainservices "nodestand-backend/domain/services"
	"nodestand-backend/domain/versioning"
	"nodestand-backend/infrastructure/identity"
	"nodestand-backend/infrastructure/messaging"
	"nodestand-backend/infrastructure/persistence/memory"
	"nodestand-backend/interfaces/http/rest/middleware"
	"nodestand-backend/pkg/auth"
	pkgerrors "nodestand-backend/pkg/errors"
	"nodestand-backend/pkg/observability"
)

type api struct {
	t         *testing.T
	handler   http.Handler
	validator *auth.JWTValidator
}

func newAPI(t *testing.T) *api {
	t.Helper()
	logger := zap.NewNop()
	dir, err := identity.NewDirectory([]entities.User{
		{ID: "alice", Authors: []entities.Author{{StableID: "alice-author", DisplayName: "Alice"}}},
		{ID: "bob", Authors: []entities.Author{{StableID: "bob-author", DisplayName: "Bob"}}},
	}, logger)
	require.NoError(t, err)

	traversal := domainservices.NewTraversalService()
	metrics := observability.NewCollector("test")
	svc := services.NewArgumentService(
		memory.NewStore(logger),
		dir,
		versioning.NewEngine(traversal, logger),
		traversal,
		messaging.NoopPublisher{},
		metrics,
		logger,
	)
	validator, err := auth.NewJWTValidator("secret", "nodestand")
	require.NoError(t, err)

	router := NewRouter(svc, dir, metrics, logger, pkgerrors.NewErrorHandler(logger, false), RouterConfig{
		Auth:          middleware.AuthConfig{Validator: validator, AllowUserHeader: true},
		EnableCORS:    true,
		EnableMetrics: true,
	})
	return &api{t: t, handler: router.Setup(), validator: validator}
}

func (a *api) do(method, path, user string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(middleware.UserHeader, user)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

type nodeJSON struct {
	ID           string   `json:"id"`
	StableID     string   `json:"stableId"`
	BuildVersion int      `json:"buildVersion"`
	Published    bool     `json:"published"`
	Children     []string `json:"children"`
}

func (a *api) create(path, user string, body map[string]interface{}) nodeJSON {
	a.t.Helper()
	rec := a.do(http.MethodPost, path, user, body)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	var n nodeJSON
	decodeInto(a.t, rec, &n)
	return n
}

func TestRouter_Health(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_MutationsRequireUser(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodPost, "/api/v1/sources", "", map[string]interface{}{
		"authorId": "alice-author", "title": "Report", "url": "https://example.org",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodPost, "/api/v1/sources", "bob", map[string]interface{}{
		"authorId": "alice-author", "title": "Report", "url": "https://example.org",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_Validation(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodPost, "/api/v1/sources", "alice", map[string]interface{}{
		"authorId": "alice-author", "title": "Report", "url": "not a url",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/api/v1/nodes/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/api/v1/nodes/0b9c2f8e-3b59-4a8e-9a8e-6f1f8f0a1c11", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodGet, "/api/v1/search?q=x&type=opinion", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_PublishFlow(t *testing.T) {
	a := newAPI(t)
	s := a.create("/api/v1/sources", "alice", map[string]interface{}{
		"authorId": "alice-author", "title": "Wage Report", "url": "https://example.org/r",
	})
	i := a.create("/api/v1/interpretations", "alice", map[string]interface{}{
		"authorId": "alice-author", "title": "Wage Reading", "body": "it says", "sourceId": s.ID,
	})
	c := a.create("/api/v1/assertions", "alice", map[string]interface{}{
		"authorId": "alice-author", "title": "Wage Claim", "links": []string{i.ID},
	})
	assert.Equal(t, []string{i.ID}, c.Children)
	assert.False(t, c.Published)

	rec := a.do(http.MethodPost, "/api/v1/nodes/"+c.ID+"/publish", "bob", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPost, "/api/v1/nodes/"+c.ID+"/publish", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var published struct {
		BuildVersion int      `json:"buildVersion"`
		Published    []string `json:"published"`
		Graph        struct {
			Nodes []nodeJSON `json:"nodes"`
		} `json:"graph"`
	}
	decodeInto(t, rec, &published)
	assert.Len(t, published.Published, 3)
	assert.Len(t, published.Graph.Nodes, 3)

	rec = a.do(http.MethodPost, "/api/v1/nodes/"+c.ID+"/publish", "alice", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodPut, "/api/v1/assertions/"+c.ID, "alice", map[string]interface{}{"title": "Changed"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.do(http.MethodPost, "/api/v1/nodes/"+c.ID+"/drafts", "alice", map[string]interface{}{"authorId": "alice-author"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var draft struct {
		Draft nodeJSON `json:"draft"`
	}
	decodeInto(t, rec, &draft)
	assert.Equal(t, c.StableID, draft.Draft.StableID)
	assert.Equal(t, []string{i.ID}, draft.Draft.Children)

	rec = a.do(http.MethodPut, "/api/v1/assertions/"+draft.Draft.ID, "alice", map[string]interface{}{
		"title": "Wage Claim v2", "links": []string{i.ID},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodGet, "/api/v1/lineages/"+c.StableID+"/history", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Items []nodeJSON `json:"items"`
	}
	decodeInto(t, rec, &history)
	require.Len(t, history.Items, 2)
	assert.Equal(t, draft.Draft.ID, history.Items[0].ID)

	rec = a.do(http.MethodGet, "/api/v1/search?q=wage", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var results struct {
		Count int `json:"count"`
	}
	decodeInto(t, rec, &results)
	assert.Equal(t, 3, results.Count)

	rec = a.do(http.MethodGet, "/api/v1/authors/alice-author/drafts", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, rec, &history)
	assert.Len(t, history.Items, 1)

	rec = a.do(http.MethodDelete, "/api/v1/nodes/"+draft.Draft.ID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(http.MethodGet, "/api/v1/lineages/"+c.StableID+"/graph", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodGet, "/api/v1/nodes/roots", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, rec, &history)
	require.Len(t, history.Items, 1)
	assert.Equal(t, c.ID, history.Items[0].ID)
}

func TestRouter_BearerToken(t *testing.T) {
	a := newAPI(t)
	token, err := a.validator.GenerateToken("alice", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/authors", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var authors struct {
		Items []entities.Author `json:"items"`
	}
	decodeInto(t, rec, &authors)
	require.Len(t, authors.Items, 1)
	assert.Equal(t, "alice-author", authors.Items[0].StableID)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/me/authors", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
