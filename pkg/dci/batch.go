package dci

import (
	"sync"

	"gonum.org/v1/gonum/mat"
)

// batchWorkers is the size of the worker pool for batch queries. Each
// query is independent of every other, so the split is shared-nothing;
// the heap-driven loop inside a single query stays sequential.
const batchWorkers = 8

// queryBatch fans the query rows out over a worker pool and collects one
// result row per query. Caller must hold at least a read lock.
func (ix *Index) queryBatch(qmat, qproj *mat.Dense, k, fieldOfView int, visit, retrieve float64) ([][]int32, [][]float64) {
	numQueries, _ := qmat.Dims()

	ids := make([][]int32, numQueries)
	dists := make([][]float64, numQueries)

	if numQueries == 1 {
		ids[0], dists[0] = ix.queryOne(qproj.RawRowView(0), qmat.RawRowView(0),
			k, fieldOfView, visit, retrieve)
		return ids, dists
	}

	workers := batchWorkers
	if workers > numQueries {
		workers = numQueries
	}

	jobs := make(chan int, numQueries)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for qi := range jobs {
				ids[qi], dists[qi] = ix.queryOne(qproj.RawRowView(qi), qmat.RawRowView(qi),
					k, fieldOfView, visit, retrieve)
			}
		}()
	}

	for qi := 0; qi < numQueries; qi++ {
		jobs <- qi
	}
	close(jobs)

	wg.Wait()

	return ids, dists
}
