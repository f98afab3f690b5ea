package dci

import (
	"math"
	"math/rand"
	"testing"
)

// TestSimpleIndexSorted tests that every simple index holds a sorted
// permutation of the full id set after Add
func TestSimpleIndexSorted(t *testing.T) {
	idx, err := New(Config{Dim: 12, NumCompIndices: 3, NumSimpIndices: 7}, WithSeed(21))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	rng := rand.New(rand.NewSource(21))
	n := 120
	if err := idx.Add(gaussianPoints(rng, n, 12), AddParams{NumLevels: 1}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	lv := idx.levels[0]
	for si := range lv.simp {
		entries := lv.simp[si].entries
		if len(entries) != n {
			t.Fatalf("simple index %d: expected %d entries, got %d", si, n, len(entries))
		}

		seen := make(map[int32]bool, n)
		for i, e := range entries {
			if i > 0 && entries[i-1].val > e.val {
				t.Errorf("simple index %d: values not non-decreasing at %d", si, i)
			}
			id := lv.ids[e.local]
			if seen[id] {
				t.Errorf("simple index %d: id %d appears twice", si, id)
			}
			seen[id] = true
		}
		for id := int32(0); id < int32(n); id++ {
			if !seen[id] {
				t.Errorf("simple index %d: id %d missing", si, id)
			}
		}
	}
}

// TestLowerBound tests the lower-bound lookup
func TestLowerBound(t *testing.T) {
	ids := []int32{0, 1, 2, 3}
	s := newSimpleIndex([]float64{3.0, 1.0, 2.0, 2.0}, ids)

	// Sorted order: 1.0(id1), 2.0(id2), 2.0(id3), 3.0(id0)
	cases := []struct {
		v    float64
		want int
	}{
		{0.5, 0},
		{1.0, 0},
		{1.5, 1},
		{2.0, 1},
		{2.5, 3},
		{3.0, 3},
		{9.0, 4},
	}
	for _, tc := range cases {
		if got := s.lowerBound(tc.v); got != tc.want {
			t.Errorf("lowerBound(%v) = %d, want %d", tc.v, got, tc.want)
		}
	}
}

// TestCursorWalkOrder tests that the two-cursor walk visits entries in
// order of increasing projection gap and terminates after all entries
func TestCursorWalkOrder(t *testing.T) {
	vals := []float64{-2.0, -0.5, 0.25, 1.0, 4.0}
	ids := []int32{0, 1, 2, 3, 4}
	s := newSimpleIndex(vals, ids)

	v := 0.1
	p := s.lowerBound(v)
	left, right := p-1, p

	var gaps []float64
	var visited []int32
	for {
		local, gap, nl, nr, ok := s.next(v, left, right)
		if !ok {
			break
		}
		gaps = append(gaps, gap)
		visited = append(visited, local)
		left, right = nl, nr
	}

	if len(visited) != len(vals) {
		t.Fatalf("walk visited %d entries, want %d", len(visited), len(vals))
	}
	for i := 1; i < len(gaps); i++ {
		if gaps[i] < gaps[i-1] {
			t.Errorf("gaps not non-decreasing: %v", gaps)
		}
	}

	seen := make(map[int32]bool)
	for _, local := range visited {
		if seen[local] {
			t.Errorf("entry %d visited twice", local)
		}
		seen[local] = true
	}

	// Closest to 0.1 is 0.25, then -0.5
	if visited[0] != 2 || visited[1] != 1 {
		t.Errorf("unexpected walk order: %v", visited)
	}

	if math.Abs(gaps[0]-0.15) > 1e-12 {
		t.Errorf("first gap = %g, want 0.15", gaps[0])
	}
}
