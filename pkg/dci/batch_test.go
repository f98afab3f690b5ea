package dci

import (
	"fmt"
	"math/rand"
	"testing"
)

// TestBatchMatchesSingle tests that a batch query returns exactly what
// the same queries return one at a time
func TestBatchMatchesSingle(t *testing.T) {
	idx, err := New(Config{Dim: 10, NumCompIndices: 2, NumSimpIndices: 8}, WithSeed(31))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	rng := rand.New(rand.NewSource(31))
	points := gaussianPoints(rng, 250, 10)
	if err := idx.Add(points, AddParams{NumLevels: 1}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	queries := gaussianPoints(rng, 25, 10)
	params := QueryParams{PropToVisit: 1.0, PropToRetrieve: 0.4}
	k := 7

	batchIDs, batchDists, err := idx.Query(queries, k, params)
	if err != nil {
		t.Fatalf("batch Query failed: %v", err)
	}

	for qi, query := range queries {
		ids, dists, err := idx.Query([][]float64{query}, k, params)
		if err != nil {
			t.Fatalf("single Query failed: %v", err)
		}

		for i := 0; i < k; i++ {
			if batchIDs[qi][i] != ids[0][i] {
				t.Errorf("query %d rank %d: batch id %d, single id %d",
					qi, i, batchIDs[qi][i], ids[0][i])
			}
			if batchDists[qi][i] != dists[0][i] {
				t.Errorf("query %d rank %d: batch distance %g, single %g",
					qi, i, batchDists[qi][i], dists[0][i])
			}
		}
	}
}

// TestConcurrentQueries tests that concurrent readers see consistent
// results while no writer is active
func TestConcurrentQueries(t *testing.T) {
	idx, err := New(Config{Dim: 10, NumCompIndices: 2, NumSimpIndices: 8}, WithSeed(32))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	rng := rand.New(rand.NewSource(32))
	points := gaussianPoints(rng, 200, 10)
	if err := idx.Add(points, AddParams{NumLevels: 1}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	query := gaussianPoints(rng, 1, 10)
	params := QueryParams{PropToVisit: 1.0, PropToRetrieve: 0.5}

	wantIDs, wantDists, err := idx.Query(query, 5, params)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	done := make(chan error, 8)
	for g := 0; g < 8; g++ {
		go func() {
			for i := 0; i < 20; i++ {
				ids, dists, err := idx.Query(query, 5, params)
				if err != nil {
					done <- err
					return
				}
				for j := range ids[0] {
					if ids[0][j] != wantIDs[0][j] || dists[0][j] != wantDists[0][j] {
						done <- fmt.Errorf("result drifted at rank %d", j)
						return
					}
				}
			}
			done <- nil
		}()
	}

	for g := 0; g < 8; g++ {
		if err := <-done; err != nil {
			t.Errorf("concurrent query failed: %v", err)
		}
	}
}
