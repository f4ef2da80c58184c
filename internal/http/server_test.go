package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cunzhi/internal/capability"
	"github.com/fyrsmithlabs/cunzhi/internal/config"
	"github.com/fyrsmithlabs/cunzhi/internal/theme"
)

type testServer struct {
	server  *Server
	store   *capability.Store
	changes int
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	store := capability.NewStore(theme.Default(),
		config.NewFileStore(filepath.Join(t.TempDir(), "config.yaml")), nil)

	ts := &testServer{store: store}
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "cunzhi_test_total"}))

	server, err := NewServer(store, zap.NewNop(), &Config{
		Host:     "127.0.0.1",
		Port:     0,
		Gatherer: reg,
		OnChange: func() { ts.changes++ },
	})
	require.NoError(t, err)
	ts.server = server
	return ts
}

func (ts *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.server.echo.ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	store := capability.NewStore(theme.Default(),
		config.NewFileStore(filepath.Join(t.TempDir(), "config.yaml")), nil)

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(store, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:9464", server.Addr())
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(store, nil, nil)
		assert.ErrorContains(t, err, "logger is required")
	})

	t.Run("returns error when tool manager is nil", func(t *testing.T) {
		_, err := NewServer(nil, zap.NewNop(), nil)
		assert.ErrorContains(t, err, "tool manager cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "transformers", resp.Theme)
	assert.Equal(t, "Cybertron-MCP", resp.Server)
	assert.Equal(t, map[string]bool{"optimus": true, "bumblebee": false, "megatron": false}, resp.Tools)
}

func TestHandleMetrics(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cunzhi_test_total")
}

func TestHandleListTools(t *testing.T) {
	ts := setupTestServer(t)
	require.NoError(t, ts.store.SetEnabled("megatron", true))

	rec := ts.do(t, http.MethodGet, "/api/v1/tools", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ToolsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "transformers", resp.Theme)
	require.Len(t, resp.Tools, 3)
	// enabled first, role order otherwise
	assert.Equal(t, "optimus", resp.Tools[0].ID)
	assert.Equal(t, "megatron", resp.Tools[1].ID)
	assert.Equal(t, "bumblebee", resp.Tools[2].ID)
	assert.False(t, resp.Tools[0].CanDisable)
	assert.True(t, resp.Tools[1].HasConfig)
}

func TestHandleSetEnabled(t *testing.T) {
	t.Run("enables a tool", func(t *testing.T) {
		ts := setupTestServer(t)
		rec := ts.do(t, http.MethodPut, "/api/v1/tools/bumblebee", map[string]bool{"enabled": true})
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp ToolResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, ToolResponse{ID: "bumblebee", Enabled: true}, resp)
		assert.True(t, ts.store.IsEnabled("bumblebee"))
		assert.Equal(t, 1, ts.changes)
	})

	t.Run("leader cannot be disabled", func(t *testing.T) {
		ts := setupTestServer(t)
		rec := ts.do(t, http.MethodPut, "/api/v1/tools/optimus", map[string]bool{"enabled": false})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "永不退场")
		assert.True(t, ts.store.IsEnabled("optimus"))
		assert.Zero(t, ts.changes)
	})

	t.Run("unknown tool", func(t *testing.T) {
		ts := setupTestServer(t)
		rec := ts.do(t, http.MethodPut, "/api/v1/tools/zhi", map[string]bool{"enabled": true})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Zero(t, ts.changes)
	})

	t.Run("missing enabled field", func(t *testing.T) {
		ts := setupTestServer(t)
		rec := ts.do(t, http.MethodPut, "/api/v1/tools/megatron", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, ts.store.IsEnabled("megatron"))
	})

	t.Run("malformed body", func(t *testing.T) {
		ts := setupTestServer(t)
		rec := ts.do(t, http.MethodPut, "/api/v1/tools/megatron", "not an object")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleReset(t *testing.T) {
	ts := setupTestServer(t)
	require.NoError(t, ts.store.SetEnabled("bumblebee", true))
	require.NoError(t, ts.store.SetEnabled("megatron", true))

	rec := ts.do(t, http.MethodPost, "/api/v1/tools/reset", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"optimus": true, "bumblebee": false, "megatron": false}, ts.store.Status())
	assert.Equal(t, 1, ts.changes)
}
