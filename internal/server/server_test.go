package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/dqcore/internal/checks"
	"github.com/inferloop/dqcore/internal/config"
	"github.com/inferloop/dqcore/internal/dataset"
	"github.com/inferloop/dqcore/internal/engine"
	"github.com/inferloop/dqcore/internal/history"
	"github.com/inferloop/dqcore/pkg/models"
)

const serverSuite = `
environment: test
assets:
  orders:
    table_name: orders
    checks:
      - row_count_check:
          name: orders_volume
          min_rows: 2
`

func newTestServer(t *testing.T) *Server {
	t.Helper()

	registry := checks.NewRegistry(nil)
	suite, err := config.ParseSuite([]byte(serverSuite), "", registry)
	require.NoError(t, err)

	resolver := dataset.NewResolver(nil)
	table := models.NewTable("amount")
	table.AppendRow(10.0)
	table.AppendRow(20.0)
	table.AppendRow(30.0)
	resolver.RegisterTable("orders", table)

	eng := engine.New(nil, nil, registry, history.NewMemoryStore(), resolver, nil)
	cfg := &config.Config{Server: config.ServerConfig{Host: "127.0.0.1", Port: 0}}
	return NewServer(cfg, nil, eng, suite, resolver, nil)
}

func doRequest(s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	rec := doRequest(newTestServer(t), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestVersionEndpoint(t *testing.T) {
	rec := doRequest(newTestServer(t), http.MethodGet, "/version", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["version"])
}

func TestListAssetsEndpoint(t *testing.T) {
	rec := doRequest(newTestServer(t), http.MethodGet, "/api/v1/assets", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Environment string                   `json:"environment"`
		Assets      []map[string]interface{} `json:"assets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "test", body.Environment)
	require.Len(t, body.Assets, 1)
	assert.Equal(t, "orders", body.Assets[0]["asset_id"])
	assert.Equal(t, 1.0, body.Assets[0]["checks"])
}

func TestRunChecksEndpoint(t *testing.T) {
	payload, _ := json.Marshal(map[string]interface{}{"asset_id": "orders"})
	rec := doRequest(newTestServer(t), http.MethodPost, "/api/v1/checks/run", payload)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report models.AssetCheckReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "orders", report.AssetID)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "orders_volume", report.Results[0].CheckName)
	assert.True(t, report.Results[0].Passed)
}

func TestRunChecksEndpointInlineData(t *testing.T) {
	inline := models.NewTable("amount")
	inline.AppendRow(5.0)
	payload, _ := json.Marshal(map[string]interface{}{"asset_id": "orders", "data": inline})

	rec := doRequest(newTestServer(t), http.MethodPost, "/api/v1/checks/run", payload)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report models.AssetCheckReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Results, 1)
	// One inline row against a minimum of two.
	assert.False(t, report.Results[0].Passed)
}

func TestRunChecksEndpointUnknownAsset(t *testing.T) {
	payload, _ := json.Marshal(map[string]interface{}{"asset_id": "missing"})
	rec := doRequest(newTestServer(t), http.MethodPost, "/api/v1/checks/run", payload)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "UNKNOWN_ASSET", body.Error.Code)
}

func TestRunChecksEndpointMissingAssetID(t *testing.T) {
	rec := doRequest(newTestServer(t), http.MethodPost, "/api/v1/checks/run", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotFoundRoute(t *testing.T) {
	rec := doRequest(newTestServer(t), http.MethodGet, "/nope", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}
