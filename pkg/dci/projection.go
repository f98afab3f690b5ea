package dci

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// generateDirections draws count random unit vectors in R^dim. Each row is
// sampled as dim i.i.d. standard normals and divided by its L2 norm. A
// zero-norm draw has probability zero; if one is ever observed the basis
// is unusable and the caller must abort construction.
func generateDirections(dim, count int, rng *rand.Rand) (*mat.Dense, error) {
	basis := mat.NewDense(count, dim, nil)

	for i := 0; i < count; i++ {
		row := basis.RawRowView(i)
		for j := range row {
			row[j] = rng.NormFloat64()
		}

		norm := floats.Norm(row, 2)
		if norm == 0 {
			return nil, fmt.Errorf("%w: degenerate zero-norm projection direction", ErrInvalidState)
		}
		floats.Scale(1/norm, row)
	}

	return basis, nil
}

// project computes the projections of every row of points onto every
// direction of the basis, returning a (rows of points) x (rows of basis)
// matrix. This is the one dense matmul in the construction and query
// paths; gonum dispatches it to its BLAS kernels.
func project(points, basis *mat.Dense) *mat.Dense {
	var proj mat.Dense
	proj.Mul(points, basis.T())
	return &proj
}
