// Package dataset provides the corpus model for batch pipelines: an
// immutable index over named columns, disjoint train/test partitions
// sharing the backing data, and a batch iterator with shuffling, epochs
// and drop-last semantics.
package dataset

import (
	"math/rand"
	"sort"

	"github.com/pkg/errors"
)

// Dataset is an index over named columns. Partitions created by
// TrainTestSplit or Subset share the columns and differ only in the index.
type Dataset struct {
	index   *Index
	columns map[string]Column
	members map[int]struct{}
}

// New wraps the given columns into a dataset indexed 0..n-1.
// All columns must have the same, positive length.
func New(columns map[string]Column) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, errors.New("dataset requires at least one column")
	}

	n := -1
	for name, column := range columns {
		if column == nil {
			return nil, errors.Errorf("column %q is nil", name)
		}
		if n == -1 {
			n = column.Len()
			continue
		}
		if column.Len() != n {
			return nil, errors.Errorf("column %q has length %d, want %d", name, column.Len(), n)
		}
	}

	index, err := NewIndex(n)
	if err != nil {
		return nil, err
	}

	return newWithIndex(index, columns), nil
}

func newWithIndex(index *Index, columns map[string]Column) *Dataset {
	members := make(map[int]struct{}, index.Len())
	for _, position := range index.Indices() {
		members[position] = struct{}{}
	}

	return &Dataset{
		index:   index,
		columns: columns,
		members: members,
	}
}

// Len returns the number of samples in this partition.
func (ds *Dataset) Len() int {
	return ds.index.Len()
}

// Index returns the partition's index.
func (ds *Dataset) Index() *Index {
	return ds.index
}

// Column returns the named column.
func (ds *Dataset) Column(name string) (Column, bool) {
	column, ok := ds.columns[name]
	return column, ok
}

// Columns returns the sorted column names.
func (ds *Dataset) Columns() []string {
	names := make([]string, 0, len(ds.columns))
	for name := range ds.columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateBatch gathers every column at the given positions into a batch.
// All positions must belong to this partition.
func (ds *Dataset) CreateBatch(indices []int) (*Batch, error) {
	if len(indices) == 0 {
		return nil, errors.New("batch cannot be empty")
	}
	for _, index := range indices {
		if _, ok := ds.members[index]; !ok {
			return nil, errors.Errorf("position %d is not a member of this partition", index)
		}
	}

	components := make(map[string]interface{}, len(ds.columns))
	for name, column := range ds.columns {
		components[name] = column.Gather(indices)
	}

	return newBatch(indices, components), nil
}

// TrainTestSplit partitions the dataset into two disjoint sub-datasets
// sharing the backing columns. Membership is fixed at split time.
// The test partition holds floor(testFraction * Len()) samples.
func (ds *Dataset) TrainTestSplit(testFraction float64, seed int64) (train, test *Dataset, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, errors.Errorf("test fraction must be in (0, 1), got %v", testFraction)
	}

	n := ds.index.Len()
	testLen := int(float64(n) * testFraction)
	if testLen == 0 || testLen == n {
		return nil, nil, errors.Errorf("test fraction %v leaves an empty partition for %d samples", testFraction, n)
	}

	positions := ds.index.Indices()
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(positions), func(i, j int) {
		positions[i], positions[j] = positions[j], positions[i]
	})

	testPositions := append([]int(nil), positions[:testLen]...)
	trainPositions := append([]int(nil), positions[testLen:]...)
	sort.Ints(testPositions)
	sort.Ints(trainPositions)

	trainIndex, err := FromIndices(trainPositions)
	if err != nil {
		return nil, nil, err
	}
	testIndex, err := FromIndices(testPositions)
	if err != nil {
		return nil, nil, err
	}

	return newWithIndex(trainIndex, ds.columns), newWithIndex(testIndex, ds.columns), nil
}

// Subset returns a partition over the given positions, which must all
// belong to this partition.
func (ds *Dataset) Subset(indices []int) (*Dataset, error) {
	for _, index := range indices {
		if _, ok := ds.members[index]; !ok {
			return nil, errors.Errorf("position %d is not a member of this partition", index)
		}
	}

	index, err := FromIndices(indices)
	if err != nil {
		return nil, err
	}

	return newWithIndex(index, ds.columns), nil
}
