// Package dci implements exact and approximate k-nearest-neighbour search
// in high-dimensional Euclidean space using Prioritized Dynamic Continuous
// Indexing (DCI). The index is a composite of simple indices built from
// random 1-D projections; queries are driven by a single global priority
// queue over projected-distance gaps, which yields candidates in a
// globally prioritized order and gives the search anytime behavior. An
// optional hierarchical variant narrows candidates through coarse-to-fine
// levels. Query time is linear in ambient dimensionality and sublinear in
// the intrinsic dimensionality of the data.
package dci

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"
)

// InvalidID is the sentinel id used to pad result rows when fewer than k
// points were retrieved under the query budget. The matching distance
// sentinel is +Inf.
const InvalidID int32 = -1

// Limits on construction parameters. Values above these are far outside
// the useful operating range of the algorithm.
const (
	maxCompIndices = 64
	maxSimpIndices = 128
	maxLevels      = 8
)

// Config holds configuration for creating a new Index
type Config struct {
	Dim            int // Dimensionality of the stored points
	NumCompIndices int // Number of composite indices (typical: 2-3)
	NumSimpIndices int // Number of simple indices per composite (typical: 7-10)
}

// DefaultConfig returns a configuration with recommended default values
// for the given dimensionality
func DefaultConfig(dim int) Config {
	return Config{
		Dim:            dim,
		NumCompIndices: 2,
		NumSimpIndices: 7,
	}
}

// Option customizes index construction
type Option func(*Index)

// WithSeed pins the random source used to draw projection directions and
// level samples, making construction reproducible
func WithSeed(seed int64) Option {
	return func(ix *Index) {
		ix.seed = seed
		ix.seeded = true
	}
}

// Index is a Prioritized DCI database over a fixed set of points. It is
// populated once with Add, queried any number of times, and optionally
// cleared and re-populated. Queries may run concurrently; Add and Clear
// require exclusive access and are guarded by an internal lock.
type Index struct {
	dim     int
	numComp int // L
	numSimp int // m

	seed   int64
	seeded bool

	mu        sync.RWMutex
	data      *mat.Dense // N x dim copy of the indexed points
	basis     *mat.Dense // (L*m) x dim unit projection directions
	levels    []*level   // levels[0] finest (all points) .. last coarsest
	populated bool
}

// New creates a new empty index with the given configuration
func New(cfg Config, opts ...Option) (*Index, error) {
	if cfg.Dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidConfig, cfg.Dim)
	}
	if cfg.NumCompIndices < 1 || cfg.NumCompIndices > maxCompIndices {
		return nil, fmt.Errorf("%w: num composite indices must be in [1, %d], got %d",
			ErrInvalidConfig, maxCompIndices, cfg.NumCompIndices)
	}
	if cfg.NumSimpIndices < 1 || cfg.NumSimpIndices > maxSimpIndices {
		return nil, fmt.Errorf("%w: num simple indices must be in [1, %d], got %d",
			ErrInvalidConfig, maxSimpIndices, cfg.NumSimpIndices)
	}
	if cfg.NumSimpIndices > cfg.Dim {
		return nil, fmt.Errorf("%w: num simple indices (%d) exceeds dimensionality (%d)",
			ErrInvalidConfig, cfg.NumSimpIndices, cfg.Dim)
	}

	ix := &Index{
		dim:     cfg.Dim,
		numComp: cfg.NumCompIndices,
		numSimp: cfg.NumSimpIndices,
	}

	for _, opt := range opts {
		opt(ix)
	}

	return ix, nil
}

// AddParams control hierarchical construction. FieldOfView, PropToVisit
// and PropToRetrieve have no effect when NumLevels is 1.
type AddParams struct {
	NumLevels      int     // Number of levels (typical: 2-3)
	FieldOfView    int     // Probes into the level below per stored point
	PropToVisit    float64 // Max proportion of points visited per construction query (0 = 1.0)
	PropToRetrieve float64 // Max proportion of points retrieved per construction query (0 = 1.0)
	Blind          bool    // Projection-only association (not supported, must be false)
}

// DefaultAddParams returns recommended construction parameters
func DefaultAddParams() AddParams {
	return AddParams{
		NumLevels:      2,
		FieldOfView:    10,
		PropToVisit:    1.0,
		PropToRetrieve: 0.2,
	}
}

// QueryParams control the search budget. FieldOfView has no effect on a
// single-level index; when zero it defaults to k.
type QueryParams struct {
	FieldOfView    int     // Candidates propagated between levels
	PropToVisit    float64 // Max proportion of points visited per level (0 = 1.0)
	PropToRetrieve float64 // Max proportion of points promoted to true-distance evaluation (0 = 1.0)
	Blind          bool    // Projected-distance-only results (not supported, must be false)
}

// DefaultQueryParams returns recommended query parameters
func DefaultQueryParams() QueryParams {
	return QueryParams{
		FieldOfView:    100,
		PropToVisit:    1.0,
		PropToRetrieve: 0.8,
	}
}

// normalizeBudgets applies the 1.0 defaults for unset proportions and
// validates the resulting ranges.
func normalizeBudgets(visit, retrieve float64) (float64, float64, error) {
	if visit == 0 {
		visit = 1.0
	}
	if retrieve == 0 {
		retrieve = 1.0
	}
	if math.IsNaN(visit) || visit <= 0 || visit > 1 {
		return 0, 0, fmt.Errorf("%w: prop to visit must be in (0, 1], got %v", ErrInvalidBudget, visit)
	}
	if math.IsNaN(retrieve) || retrieve <= 0 || retrieve > 1 {
		return 0, 0, fmt.Errorf("%w: prop to retrieve must be in (0, 1], got %v", ErrInvalidBudget, retrieve)
	}
	if retrieve > visit {
		return 0, 0, fmt.Errorf("%w: prop to retrieve (%v) exceeds prop to visit (%v)",
			ErrInvalidBudget, retrieve, visit)
	}
	return visit, retrieve, nil
}

// Add populates the index with the given points (one point per row). The
// index must be empty; call Clear before re-adding. A fresh direction
// basis is drawn on every Add. On any error the index is left unchanged,
// so a failed Add on an empty index leaves it empty.
func (ix *Index) Add(points [][]float64, params AddParams) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.populated {
		return fmt.Errorf("%w: index already populated, call Clear first", ErrInvalidState)
	}
	if params.Blind {
		return fmt.Errorf("%w: blind construction is not supported", ErrInvalidConfig)
	}
	if params.NumLevels == 0 {
		params.NumLevels = 1
	}
	if params.NumLevels < 1 || params.NumLevels > maxLevels {
		return fmt.Errorf("%w: num levels must be in [1, %d], got %d",
			ErrInvalidConfig, maxLevels, params.NumLevels)
	}
	if params.NumLevels > 1 && params.FieldOfView < 1 {
		return fmt.Errorf("%w: field of view must be positive, got %d",
			ErrInvalidConfig, params.FieldOfView)
	}

	visit, retrieve, err := normalizeBudgets(params.PropToVisit, params.PropToRetrieve)
	if err != nil {
		return err
	}

	if len(points) == 0 {
		return fmt.Errorf("%w: no points provided", ErrInvalidConfig)
	}
	for i, row := range points {
		if len(row) != ix.dim {
			return fmt.Errorf("%w: point %d has dimension %d, expected %d",
				ErrDimensionMismatch, i, len(row), ix.dim)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: non-finite value at point %d coordinate %d",
					ErrInvalidState, i, j)
			}
		}
	}

	n := len(points)

	// Copy the points into a contiguous block. The caller's matrix is no
	// longer referenced after Add returns.
	data := mat.NewDense(n, ix.dim, nil)
	for i, row := range points {
		copy(data.RawRowView(i), row)
	}

	rng := ix.newRand()

	basis, err := generateDirections(ix.dim, ix.numComp*ix.numSimp, rng)
	if err != nil {
		return err
	}

	proj := project(data, basis)

	levels, err := ix.buildLevels(data, proj, rng, params.NumLevels, params.FieldOfView, visit, retrieve)
	if err != nil {
		return err
	}

	ix.data = data
	ix.basis = basis
	ix.levels = levels
	ix.populated = true

	return nil
}

// Query returns the k nearest neighbours of each query row. ids and dists
// have one row per query and k columns, sorted by ascending distance.
// Rows are padded with InvalidID and +Inf when the budget retrieved fewer
// than k points.
func (ix *Index) Query(queries [][]float64, k int, params QueryParams) ([][]int32, [][]float64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if !ix.populated {
		return nil, nil, fmt.Errorf("%w: add points before querying", ErrNotPopulated)
	}
	if params.Blind {
		return nil, nil, fmt.Errorf("%w: blind querying is not supported", ErrInvalidConfig)
	}
	if k < 1 {
		return nil, nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidConfig, k)
	}
	if params.FieldOfView == 0 {
		params.FieldOfView = k
	}
	if len(ix.levels) > 1 && params.FieldOfView < k {
		return nil, nil, fmt.Errorf("%w: field of view (%d) must be at least k (%d)",
			ErrInvalidConfig, params.FieldOfView, k)
	}

	visit, retrieve, err := normalizeBudgets(params.PropToVisit, params.PropToRetrieve)
	if err != nil {
		return nil, nil, err
	}

	if len(queries) == 0 {
		return [][]int32{}, [][]float64{}, nil
	}
	for i, row := range queries {
		if len(row) != ix.dim {
			return nil, nil, fmt.Errorf("%w: query %d has dimension %d, expected %d",
				ErrDimensionMismatch, i, len(row), ix.dim)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, nil, fmt.Errorf("%w: non-finite value at query %d coordinate %d",
					ErrInvalidState, i, j)
			}
		}
	}

	qmat := mat.NewDense(len(queries), ix.dim, nil)
	for i, row := range queries {
		copy(qmat.RawRowView(i), row)
	}
	qproj := project(qmat, ix.basis)

	ids, dists := ix.queryBatch(qmat, qproj, k, params.FieldOfView, visit, retrieve)
	return ids, dists, nil
}

// Clear releases all per-level state and drops the direction basis. The
// index can be re-populated with Add afterwards.
func (ix *Index) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.data = nil
	ix.basis = nil
	ix.levels = nil
	ix.populated = false
}

// Dimensions returns the dimensionality of indexed points
func (ix *Index) Dimensions() int {
	return ix.dim
}

// Size returns the number of points in the index
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if !ix.populated {
		return 0
	}
	return len(ix.levels[0].ids)
}

// Levels returns the number of levels in the hierarchy (0 when empty)
func (ix *Index) Levels() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.levels)
}

// IndexStats describes the current shape of the index
type IndexStats struct {
	Points         int
	Dimensions     int
	NumCompIndices int
	NumSimpIndices int
	Levels         int
	PointsPerLevel []int
	MemoryBytes    int64
}

// Stats returns current index statistics
func (ix *Index) Stats() IndexStats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	stats := IndexStats{
		Dimensions:     ix.dim,
		NumCompIndices: ix.numComp,
		NumSimpIndices: ix.numSimp,
		Levels:         len(ix.levels),
	}

	if !ix.populated {
		return stats
	}

	stats.Points = len(ix.levels[0].ids)
	stats.PointsPerLevel = make([]int, len(ix.levels))
	for i, lv := range ix.levels {
		stats.PointsPerLevel[i] = len(lv.ids)
	}
	stats.MemoryBytes = ix.memoryBytes()

	return stats
}

// memoryBytes estimates the memory held by the index. Caller must hold
// at least a read lock.
func (ix *Index) memoryBytes() int64 {
	var total int64

	if ix.data != nil {
		total += int64(len(ix.data.RawMatrix().Data) * 8)
	}
	if ix.basis != nil {
		total += int64(len(ix.basis.RawMatrix().Data) * 8)
	}
	for _, lv := range ix.levels {
		total += int64(len(lv.ids) * 4)
		for i := range lv.simp {
			total += int64(len(lv.simp[i].entries) * 12)
		}
		for _, a := range lv.assoc {
			total += int64(len(a) * 4)
		}
	}

	return total
}

// newRand returns the random source for one Add. With a pinned seed every
// Add draws the same basis and level samples.
func (ix *Index) newRand() *rand.Rand {
	if ix.seeded {
		return rand.New(rand.NewSource(ix.seed))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
