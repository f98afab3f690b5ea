package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/therealutkarshpriyadarshi/dci/pkg/config"
)

// newTestServer builds a server with small index parameters, no auth, no
// rate limiting and no metrics
func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.DCI.Dimensions = 4
	cfg.DCI.NumCompIndices = 2
	cfg.DCI.NumSimpIndices = 3
	cfg.DCI.NumLevels = 1
	cfg.Cache.Capacity = 16

	s, err := NewServer(cfg, nil)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return s
}

// do performs one request against the wrapped handler
func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// TestHealthEndpoint tests GET /v1/health
func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid health body: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("health status field = %v", resp["status"])
	}
}

// TestAddQueryRoundtrip tests the add/query/clear flow
func TestAddQueryRoundtrip(t *testing.T) {
	s := newTestServer(t)

	points := [][]float64{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}

	rec := do(t, s, http.MethodPost, "/v1/index/add", AddRequest{Points: points})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, "/v1/index/query", QueryRequest{
		Queries:        [][]float64{{0.9, 0.1, 0, 0}},
		K:              2,
		PropToVisit:    1.0,
		PropToRetrieve: 1.0,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("query status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		IDs       [][]int32    `json:"ids"`
		Distances [][]*float64 `json:"distances"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid query body: %v", err)
	}
	if len(resp.IDs) != 1 || len(resp.IDs[0]) != 2 {
		t.Fatalf("unexpected result shape: %+v", resp.IDs)
	}
	if resp.IDs[0][0] != 0 {
		t.Errorf("nearest id = %d, want 0", resp.IDs[0][0])
	}
	if resp.Distances[0][0] == nil {
		t.Error("nearest distance is null")
	}

	// Clear drops the data; querying again conflicts
	rec = do(t, s, http.MethodPost, "/v1/index/clear", ClearRequest{})
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/v1/index/query", QueryRequest{
		Queries: [][]float64{{1, 0, 0, 0}},
		K:       1,
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("query after clear status = %d, want 409", rec.Code)
	}
}

// TestQueryUnknownNamespace tests the 404 path
func TestQueryUnknownNamespace(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/v1/index/query", QueryRequest{
		Namespace: "nope",
		Queries:   [][]float64{{1, 2, 3, 4}},
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// TestAddValidationErrors tests engine error mapping
func TestAddValidationErrors(t *testing.T) {
	s := newTestServer(t)

	// Ragged rows: the second row's dimensionality does not match
	rec := do(t, s, http.MethodPost, "/v1/index/add", AddRequest{
		Points: [][]float64{{1, 2, 3, 4}, {1, 2}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("ragged add status = %d, want 400", rec.Code)
	}

	// Blind mode is declared but rejected
	rec = do(t, s, http.MethodPost, "/v1/index/add", AddRequest{
		Points: [][]float64{{1, 2, 3, 4}, {5, 6, 7, 8}},
		Blind:  true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blind add status = %d, want 400", rec.Code)
	}

	// Empty body
	rec = do(t, s, http.MethodPost, "/v1/index/add", AddRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty add status = %d, want 400", rec.Code)
	}
}

// TestQueryCacheHits tests that repeated identical queries hit the cache
func TestQueryCacheHits(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/v1/index/add", AddRequest{
		Points: [][]float64{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d", rec.Code)
	}

	query := QueryRequest{Queries: [][]float64{{1, 0, 0, 0}}, K: 1}

	first := do(t, s, http.MethodPost, "/v1/index/query", query)
	second := do(t, s, http.MethodPost, "/v1/index/query", query)
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("query statuses = %d, %d", first.Code, second.Code)
	}

	var a, b struct {
		IDs [][]int32 `json:"ids"`
	}
	json.Unmarshal(first.Body.Bytes(), &a)
	json.Unmarshal(second.Body.Bytes(), &b)
	if a.IDs[0][0] != b.IDs[0][0] {
		t.Error("cached result differs from computed result")
	}

	rec = do(t, s, http.MethodGet, "/v1/stats", nil)
	var stats map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("invalid stats body: %v", err)
	}
	if hits, ok := stats["cache_hits"].(float64); !ok || hits < 1 {
		t.Errorf("expected at least one cache hit, got %v", stats["cache_hits"])
	}
}

// TestStatsNamespace tests per-namespace stats
func TestStatsNamespace(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/v1/index/add", AddRequest{
		Namespace: "ns1",
		Points:    [][]float64{{1, 0, 0, 0}, {0, 1, 0, 0}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/v1/stats/ns1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}

	var stats map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("invalid stats body: %v", err)
	}
	if stats["points"].(float64) != 2 {
		t.Errorf("points = %v, want 2", stats["points"])
	}

	rec = do(t, s, http.MethodGet, "/v1/stats/absent", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("absent namespace stats status = %d, want 404", rec.Code)
	}
}
