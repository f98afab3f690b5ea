package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/dci/pkg/api/rest/middleware"
	"github.com/therealutkarshpriyadarshi/dci/pkg/config"
	"github.com/therealutkarshpriyadarshi/dci/pkg/dci"
	"github.com/therealutkarshpriyadarshi/dci/pkg/observability"
	"github.com/therealutkarshpriyadarshi/dci/pkg/search"
	"github.com/therealutkarshpriyadarshi/dci/pkg/tenant"
)

// DefaultNamespace is used when a request names no namespace
const DefaultNamespace = "default"

// Handler serves the index API directly against the engine
type Handler struct {
	cfg       *config.Config
	tenants   *tenant.Manager
	cache     *search.QueryCache      // nil when caching is disabled
	metrics   *observability.Metrics  // nil when metrics are disabled
	logger    *observability.Logger
	startTime time.Time
}

// NewHandler creates a new REST API handler
func NewHandler(cfg *config.Config, tenants *tenant.Manager, cache *search.QueryCache,
	metrics *observability.Metrics, logger *observability.Logger) *Handler {
	return &Handler{
		cfg:       cfg,
		tenants:   tenants,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		startTime: time.Now(),
	}
}

// AddRequest is the body of POST /v1/index/add
type AddRequest struct {
	Namespace      string      `json:"namespace,omitempty"`
	Points         [][]float64 `json:"points"`
	NumLevels      int         `json:"num_levels,omitempty"`
	FieldOfView    int         `json:"field_of_view,omitempty"`
	PropToVisit    float64     `json:"prop_to_visit,omitempty"`
	PropToRetrieve float64     `json:"prop_to_retrieve,omitempty"`
	Blind          bool        `json:"blind,omitempty"`
}

// AddResponse is the body of a successful add
type AddResponse struct {
	Namespace string `json:"namespace"`
	Points    int    `json:"points"`
	Levels    int    `json:"levels"`
	TookMs    int64  `json:"took_ms"`
}

// QueryRequest is the body of POST /v1/index/query
type QueryRequest struct {
	Namespace      string      `json:"namespace,omitempty"`
	Queries        [][]float64 `json:"queries"`
	K              int         `json:"k,omitempty"`
	FieldOfView    int         `json:"field_of_view,omitempty"`
	PropToVisit    float64     `json:"prop_to_visit,omitempty"`
	PropToRetrieve float64     `json:"prop_to_retrieve,omitempty"`
	Blind          bool        `json:"blind,omitempty"`
}

// QueryResponse is the body of a successful query. IDs of -1 and
// distances of +Inf (serialized as null) pad rows that retrieved fewer
// than k points under the budget.
type QueryResponse struct {
	Namespace string      `json:"namespace"`
	IDs       [][]int32   `json:"ids"`
	Distances [][]float64 `json:"distances"`
	TookMs    int64       `json:"took_ms"`
}

// ClearRequest is the body of POST /v1/index/clear
type ClearRequest struct {
	Namespace string `json:"namespace,omitempty"`
}

// HealthCheck handles GET /v1/health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": time.Since(h.startTime).Seconds(),
		"namespaces":     h.tenants.Count(),
	}, http.StatusOK)
}

// GetStats handles GET /v1/stats and GET /v1/stats/{namespace}
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/stats")
	namespace := strings.Trim(path, "/")

	if namespace != "" {
		t, err := h.tenants.Get(namespace)
		if err != nil {
			writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, namespaceStats(t), http.StatusOK)
		return
	}

	stats := map[string]interface{}{
		"uptime_seconds": time.Since(h.startTime).Seconds(),
		"namespaces":     h.tenants.Count(),
	}
	if h.cache != nil {
		cs := h.cache.Stats()
		stats["cache_hits"] = cs.Hits
		stats["cache_misses"] = cs.Misses
		stats["cache_hit_rate"] = cs.HitRate
	}

	perNamespace := make(map[string]interface{})
	for _, t := range h.tenants.List() {
		perNamespace[t.Namespace] = namespaceStats(t)
	}
	stats["namespace_stats"] = perNamespace

	writeJSON(w, stats, http.StatusOK)
}

// namespaceStats builds the stats document for one namespace
func namespaceStats(t *tenant.Tenant) map[string]interface{} {
	s := t.Index.Stats()
	return map[string]interface{}{
		"namespace":        t.Namespace,
		"points":           s.Points,
		"dimensions":       s.Dimensions,
		"num_comp_indices": s.NumCompIndices,
		"num_simp_indices": s.NumSimpIndices,
		"levels":           s.Levels,
		"points_per_level": s.PointsPerLevel,
		"memory_bytes":     s.MemoryBytes,
	}
}

// Add handles POST /v1/index/add
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()

	var req AddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		h.recordError("Add", "bad_request")
		return
	}

	if len(req.Points) == 0 || len(req.Points[0]) == 0 {
		writeError(w, "No points provided", http.StatusBadRequest)
		h.recordError("Add", "bad_request")
		return
	}

	namespace := req.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}

	if err := middleware.AuthorizeNamespace(r.Context(), namespace); err != nil {
		writeError(w, err.Error(), http.StatusForbidden)
		h.recordError("Add", "forbidden")
		return
	}

	cfg := dci.Config{
		Dim:            len(req.Points[0]),
		NumCompIndices: h.cfg.DCI.NumCompIndices,
		NumSimpIndices: h.cfg.DCI.NumSimpIndices,
	}

	t, err := h.tenants.GetOrCreate(namespace, cfg, tenant.DefaultQuota())
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		h.recordError("Add", "namespace")
		return
	}

	if err := t.CheckPointQuota(int64(len(req.Points))); err != nil {
		writeError(w, err.Error(), http.StatusForbidden)
		h.recordError("Add", "quota")
		return
	}

	params := dci.AddParams{
		NumLevels:      req.NumLevels,
		FieldOfView:    req.FieldOfView,
		PropToVisit:    req.PropToVisit,
		PropToRetrieve: req.PropToRetrieve,
		Blind:          req.Blind,
	}
	if params.NumLevels == 0 {
		params.NumLevels = h.cfg.DCI.NumLevels
	}
	if params.FieldOfView == 0 {
		params.FieldOfView = h.cfg.DCI.FieldOfView
	}

	if err := t.Index.Add(req.Points, params); err != nil {
		status, kind := statusForError(err)
		writeError(w, err.Error(), status)
		h.recordError("Add", kind)
		return
	}

	t.Touch()
	if h.cache != nil {
		h.cache.Clear()
	}

	took := time.Since(start)
	if h.metrics != nil {
		h.metrics.RecordAdd(namespace, len(req.Points), took)
		stats := t.Index.Stats()
		h.metrics.UpdateIndex(namespace, stats.Points, stats.Levels, stats.MemoryBytes)
		h.metrics.UpdateNamespaceCount(h.tenants.Count())
	}
	h.logger.Info("indexed points", map[string]interface{}{
		"namespace": namespace,
		"points":    len(req.Points),
		"levels":    t.Index.Levels(),
		"duration":  took,
	})

	writeJSON(w, AddResponse{
		Namespace: namespace,
		Points:    len(req.Points),
		Levels:    t.Index.Levels(),
		TookMs:    took.Milliseconds(),
	}, http.StatusCreated)
}

// Query handles POST /v1/index/query
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		h.recordError("Query", "bad_request")
		return
	}

	if len(req.Queries) == 0 {
		writeError(w, "No queries provided", http.StatusBadRequest)
		h.recordError("Query", "bad_request")
		return
	}

	namespace := req.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}

	if err := middleware.AuthorizeNamespace(r.Context(), namespace); err != nil {
		writeError(w, err.Error(), http.StatusForbidden)
		h.recordError("Query", "forbidden")
		return
	}

	t, err := h.tenants.Get(namespace)
	if err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		h.recordError("Query", "namespace")
		return
	}

	if err := t.CheckRateLimit(); err != nil {
		writeError(w, err.Error(), http.StatusTooManyRequests)
		h.recordError("Query", "rate_limit")
		return
	}

	k := req.K
	if k == 0 {
		k = 10
	}
	params := dci.QueryParams{
		FieldOfView:    req.FieldOfView,
		PropToVisit:    req.PropToVisit,
		PropToRetrieve: req.PropToRetrieve,
		Blind:          req.Blind,
	}
	if params.FieldOfView == 0 {
		params.FieldOfView = h.cfg.DCI.FieldOfView
	}
	if params.PropToVisit == 0 {
		params.PropToVisit = h.cfg.DCI.PropToVisit
	}
	if params.PropToRetrieve == 0 {
		params.PropToRetrieve = h.cfg.DCI.PropToRetrieve
	}

	rows := make([]*search.QueryResult, len(req.Queries))
	keys := make([]search.CacheKey, len(req.Queries))
	var missing []int

	if h.cache != nil {
		for i, q := range req.Queries {
			// One cache serves every namespace, so the key names the namespace too
			keys[i] = search.CacheKey(namespace+"/") + search.GenerateQueryKey(q, k,
				params.FieldOfView, params.PropToVisit, params.PropToRetrieve)
			if row, ok := h.cache.Get(keys[i]); ok {
				rows[i] = row
				if h.metrics != nil {
					h.metrics.RecordCacheHit()
				}
			} else {
				missing = append(missing, i)
				if h.metrics != nil {
					h.metrics.RecordCacheMiss()
				}
			}
		}
	} else {
		missing = make([]int, len(req.Queries))
		for i := range missing {
			missing[i] = i
		}
	}

	if len(missing) > 0 {
		sub := make([][]float64, len(missing))
		for j, qi := range missing {
			sub[j] = req.Queries[qi]
		}

		ids, dists, err := t.Index.Query(sub, k, params)
		if err != nil {
			status, kind := statusForError(err)
			writeError(w, err.Error(), status)
			h.recordError("Query", kind)
			return
		}

		for j, qi := range missing {
			rows[qi] = &search.QueryResult{IDs: ids[j], Distances: dists[j]}
			if h.cache != nil {
				h.cache.Put(keys[qi], rows[qi])
			}
		}
	}

	resp := QueryResponse{
		Namespace: namespace,
		IDs:       make([][]int32, len(rows)),
		Distances: make([][]float64, len(rows)),
	}
	resultSize := 0
	for i, row := range rows {
		resp.IDs[i] = row.IDs
		resp.Distances[i] = row.Distances
		for _, id := range row.IDs {
			if id != dci.InvalidID {
				resultSize++
			}
		}
	}

	took := time.Since(start)
	resp.TookMs = took.Milliseconds()

	if h.metrics != nil {
		h.metrics.RecordQuery(took, len(req.Queries), resultSize)
		if h.cache != nil {
			h.metrics.UpdateCacheSize(h.cache.Size())
		}
	}

	writeJSON(w, resp, http.StatusOK)
}

// Clear handles POST /v1/index/clear
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ClearRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
			h.recordError("Clear", "bad_request")
			return
		}
	}

	namespace := req.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}

	if err := middleware.AuthorizeNamespace(r.Context(), namespace); err != nil {
		writeError(w, err.Error(), http.StatusForbidden)
		h.recordError("Clear", "forbidden")
		return
	}

	t, err := h.tenants.Get(namespace)
	if err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		h.recordError("Clear", "namespace")
		return
	}

	t.Index.Clear()
	t.Touch()
	if h.cache != nil {
		h.cache.Clear()
	}
	if h.metrics != nil {
		h.metrics.RecordClear(namespace)
	}
	h.logger.Info("cleared index", map[string]interface{}{"namespace": namespace})

	writeJSON(w, map[string]interface{}{"namespace": namespace, "cleared": true}, http.StatusOK)
}

// recordError records a request error metric when metrics are enabled
func (h *Handler) recordError(method, kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(method, kind)
	}
}

// statusForError maps engine errors onto HTTP statuses
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, dci.ErrNotPopulated):
		return http.StatusConflict, "not_populated"
	case errors.Is(err, dci.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, dci.ErrInvalidConfig):
		return http.StatusBadRequest, "invalid_config"
	case errors.Is(err, dci.ErrInvalidBudget):
		return http.StatusBadRequest, "invalid_budget"
	case errors.Is(err, dci.ErrDimensionMismatch):
		return http.StatusBadRequest, "dimension_mismatch"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeJSON writes a JSON response. +Inf distances are not representable
// in JSON, so rows are sanitized into nulls first.
func writeJSON(w http.ResponseWriter, v interface{}, status int) {
	if resp, ok := v.(QueryResponse); ok {
		v = sanitizeQueryResponse(resp)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sanitizedQueryResponse mirrors QueryResponse with nullable distances
type sanitizedQueryResponse struct {
	Namespace string       `json:"namespace"`
	IDs       [][]int32    `json:"ids"`
	Distances [][]*float64 `json:"distances"`
	TookMs    int64        `json:"took_ms"`
}

func sanitizeQueryResponse(resp QueryResponse) sanitizedQueryResponse {
	out := sanitizedQueryResponse{
		Namespace: resp.Namespace,
		IDs:       resp.IDs,
		Distances: make([][]*float64, len(resp.Distances)),
		TookMs:    resp.TookMs,
	}

	for i, row := range resp.Distances {
		out.Distances[i] = make([]*float64, len(row))
		for j := range row {
			if !math.IsInf(row[j], 0) {
				v := row[j]
				out.Distances[i][j] = &v
			}
		}
	}

	return out
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":  message,
		"status": status,
	})
}
