package dci

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// level is one DCI instance in the hierarchy: a subset of point ids and
// the sorted projection arrays over exactly those points. Levels above
// the finest also carry the association sets that link each stored point
// to the points it represents at the level below.
type level struct {
	ids   []int32       // global point ids stored here, ascending
	simp  []simpleIndex // numComp*numSimp sorted projection arrays
	assoc [][]int32     // assoc[local] = ids at the level below (nil at level 0)
}

// buildLevel constructs the sorted simple indices for the given id subset
// out of the precomputed projection table.
func (ix *Index) buildLevel(proj *mat.Dense, ids []int32) *level {
	numIndices := ix.numComp * ix.numSimp
	lv := &level{
		ids:  ids,
		simp: make([]simpleIndex, numIndices),
	}

	vals := make([]float64, len(ids))
	for idx := 0; idx < numIndices; idx++ {
		for i, id := range ids {
			vals[i] = proj.At(int(id), idx)
		}
		lv.simp[idx] = newSimpleIndex(vals, ids)
	}

	return lv
}

// buildLevels constructs the full hierarchy bottom-up. Level 0 holds all
// points; each level above holds a sample of the one below, coarsening by
// a factor of roughly n^(1/numLevels) so the top level stays small. Every
// sampled point is associated with the points it retrieves from the level
// below, and a coverage pass attaches any point no construction query
// reached to its nearest sampled point, so that every point stays
// reachable from the top of the cascade.
func (ix *Index) buildLevels(data, proj *mat.Dense, rng *rand.Rand, numLevels, fieldOfView int, visit, retrieve float64) ([]*level, error) {
	n, _ := data.Dims()

	ids := make([]int32, n)
	for i := range ids {
		ids[i] = int32(i)
	}

	levels := make([]*level, 0, numLevels)
	levels = append(levels, ix.buildLevel(proj, ids))

	if numLevels == 1 {
		return levels, nil
	}

	shrink := math.Pow(float64(n), 1/float64(numLevels))

	for li := 1; li < numLevels; li++ {
		prev := levels[li-1]
		prevN := len(prev.ids)

		size := int(math.Ceil(float64(prevN) / shrink))
		if size < 1 {
			size = 1
		}
		if size > prevN {
			size = prevN
		}

		// Sample without replacement from the level below.
		perm := rng.Perm(prevN)
		sampled := make([]int32, size)
		for i := 0; i < size; i++ {
			sampled[i] = prev.ids[perm[i]]
		}
		sort.Slice(sampled, func(a, b int) bool { return sampled[a] < sampled[b] })

		lv := ix.buildLevel(proj, sampled)
		lv.assoc = make([][]int32, size)

		// Association: each stored point queries the level below with its
		// own coordinates and keeps the retrieved set. Budgets follow the
		// construction parameters; the retrieval budget is a proportion of
		// the total point count.
		maxVisit := budgetOf(visit, prevN)
		maxRetrieve := budgetOf(retrieve, n)

		covered := make([]bool, prevN)

		for s, id := range sampled {
			res := ix.searchLevel(data, prev, proj.RawRowView(int(id)), data.RawRowView(int(id)),
				fieldOfView, maxVisit, maxRetrieve, nil)

			set := make([]int32, len(res))
			for i, c := range res {
				set[i] = c.id
				covered[c.local] = true
			}
			lv.assoc[s] = set
		}

		// Coverage pass: attach every unreached point to the nearest
		// sampled point by true distance, so the subset invariant never
		// strands a point.
		for local, ok := range covered {
			if ok {
				continue
			}
			id := prev.ids[local]
			row := data.RawRowView(int(id))

			best := 0
			bestDist := math.Inf(1)
			for s, sid := range sampled {
				d := SquaredDistance(row, data.RawRowView(int(sid)))
				if d < bestDist {
					bestDist = d
					best = s
				}
			}
			lv.assoc[best] = append(lv.assoc[best], id)
		}

		levels = append(levels, lv)
	}

	return levels, nil
}

// queryOne runs the top-down cascade for a single query and returns one
// result row padded to k entries.
func (ix *Index) queryOne(qproj, query []float64, k, fieldOfView int, visit, retrieve float64) ([]int32, []float64) {
	var allowed map[int32]struct{}
	var res []candidate

	for li := len(ix.levels) - 1; li >= 0; li-- {
		lv := ix.levels[li]

		kEff := k
		if li > 0 {
			kEff = fieldOfView
		}

		res = ix.searchLevel(ix.data, lv, qproj, query,
			kEff, budgetOf(visit, len(lv.ids)), budgetOf(retrieve, len(lv.ids)), allowed)

		if li == 0 {
			break
		}

		// The candidate set for the next level down is the union of the
		// association sets of the points retrieved here.
		allowed = make(map[int32]struct{})
		for _, c := range res {
			for _, id := range lv.assoc[c.local] {
				allowed[id] = struct{}{}
			}
		}
	}

	ids := make([]int32, k)
	dists := make([]float64, k)
	for i := 0; i < k; i++ {
		if i < len(res) {
			ids[i] = res[i].id
			dists[i] = math.Sqrt(res[i].dist2)
		} else {
			ids[i] = InvalidID
			dists[i] = math.Inf(1)
		}
	}

	return ids, dists
}

// budgetOf converts a proportion into an absolute count over n points,
// rounding up so a positive proportion always buys at least one.
func budgetOf(prop float64, n int) int {
	return int(math.Ceil(prop * float64(n)))
}
