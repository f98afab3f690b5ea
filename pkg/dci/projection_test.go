package dci

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// TestGenerateDirections tests shape and unit norm of the direction basis
func TestGenerateDirections(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	dim, count := 50, 20
	basis, err := generateDirections(dim, count, rng)
	if err != nil {
		t.Fatalf("generateDirections failed: %v", err)
	}

	r, c := basis.Dims()
	if r != count || c != dim {
		t.Fatalf("expected %dx%d basis, got %dx%d", count, dim, r, c)
	}

	for i := 0; i < count; i++ {
		norm := floats.Norm(basis.RawRowView(i), 2)
		if math.Abs(norm-1) > 1e-12 {
			t.Errorf("direction %d has norm %g, want 1", i, norm)
		}
	}
}

// TestGenerateDirectionsDeterministic tests that the same seed draws the
// same basis
func TestGenerateDirectionsDeterministic(t *testing.T) {
	a, err := generateDirections(10, 6, rand.New(rand.NewSource(5)))
	if err != nil {
		t.Fatalf("generateDirections failed: %v", err)
	}
	b, err := generateDirections(10, 6, rand.New(rand.NewSource(5)))
	if err != nil {
		t.Fatalf("generateDirections failed: %v", err)
	}

	if !mat.Equal(a, b) {
		t.Error("same seed produced different bases")
	}

	c, err := generateDirections(10, 6, rand.New(rand.NewSource(6)))
	if err != nil {
		t.Fatalf("generateDirections failed: %v", err)
	}
	if mat.Equal(a, c) {
		t.Error("different seeds produced identical bases")
	}
}

// TestProject tests the projection matmul against per-entry dot products
func TestProject(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	points := mat.NewDense(7, 5, nil)
	for i := 0; i < 7; i++ {
		row := points.RawRowView(i)
		for j := range row {
			row[j] = rng.NormFloat64()
		}
	}

	basis, err := generateDirections(5, 4, rng)
	if err != nil {
		t.Fatalf("generateDirections failed: %v", err)
	}

	proj := project(points, basis)

	r, c := proj.Dims()
	if r != 7 || c != 4 {
		t.Fatalf("expected 7x4 projections, got %dx%d", r, c)
	}

	for i := 0; i < 7; i++ {
		for j := 0; j < 4; j++ {
			want := floats.Dot(points.RawRowView(i), basis.RawRowView(j))
			if math.Abs(proj.At(i, j)-want) > 1e-12 {
				t.Errorf("proj[%d][%d] = %g, want %g", i, j, proj.At(i, j), want)
			}
		}
	}
}
