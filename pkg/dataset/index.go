package dataset

import (
	"github.com/pkg/errors"
)

// Index is an immutable ordered set of sample positions. Datasets and their
// partitions are defined by an Index over shared columns.
type Index struct {
	positions []int
}

// NewIndex returns an index over positions 0..n-1.
func NewIndex(n int) (*Index, error) {
	if n <= 0 {
		return nil, errors.Errorf("index length must be positive, got %d", n)
	}

	positions := make([]int, n)
	for i := range positions {
		positions[i] = i
	}

	return &Index{positions: positions}, nil
}

// FromIndices returns an index over the given positions.
func FromIndices(indices []int) (*Index, error) {
	if len(indices) == 0 {
		return nil, errors.New("index cannot be empty")
	}

	positions := make([]int, len(indices))
	copy(positions, indices)

	return &Index{positions: positions}, nil
}

// Len returns the number of positions in the index.
func (i *Index) Len() int {
	return len(i.positions)
}

// Indices returns a copy of the positions.
func (i *Index) Indices() []int {
	indices := make([]int, len(i.positions))
	copy(indices, i.positions)
	return indices
}
