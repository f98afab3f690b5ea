package dci

import "errors"

// Common errors returned by the index. Callers can test for them with
// errors.Is; returned errors wrap these sentinels with operation context.
var (
	// ErrInvalidConfig is returned for out-of-range construction parameters
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrDimensionMismatch is returned when point or query dimensionality
	// does not match the index
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrNotPopulated is returned when querying an index with no data
	ErrNotPopulated = errors.New("index not populated")

	// ErrInvalidBudget is returned for visit/retrieve proportions outside (0, 1]
	ErrInvalidBudget = errors.New("invalid budget")

	// ErrInvalidState is returned on data pathologies (non-finite input,
	// degenerate projection direction) and on add without an intervening clear
	ErrInvalidState = errors.New("invalid state")
)
