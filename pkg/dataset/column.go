package dataset

// Column is a named component of a corpus. Gather extracts the values at
// the given positions; the concrete return type depends on the
// implementation which lets batch actions work with plain slices.
type Column interface {
	Len() int
	Gather(indices []int) interface{}
}

// Float64Matrix is a column of float64 feature vectors.
type Float64Matrix [][]float64

// Len returns the number of rows.
func (c Float64Matrix) Len() int {
	return len(c)
}

// Gather returns the rows at the given positions as [][]float64.
// Rows share backing arrays with the column.
func (c Float64Matrix) Gather(indices []int) interface{} {
	gathered := make([][]float64, len(indices))
	for i, index := range indices {
		gathered[i] = c[index]
	}
	return gathered
}

// IntColumn is a column of integers, typically class labels.
type IntColumn []int

// Len returns the number of values.
func (c IntColumn) Len() int {
	return len(c)
}

// Gather returns the values at the given positions as []int.
func (c IntColumn) Gather(indices []int) interface{} {
	gathered := make([]int, len(indices))
	for i, index := range indices {
		gathered[i] = c[index]
	}
	return gathered
}

// ByteMatrix is a column of raw byte rows, e.g. image pixels.
type ByteMatrix [][]byte

// Len returns the number of rows.
func (c ByteMatrix) Len() int {
	return len(c)
}

// Gather returns the rows at the given positions as [][]byte.
// Rows share backing arrays with the column.
func (c ByteMatrix) Gather(indices []int) interface{} {
	gathered := make([][]byte, len(indices))
	for i, index := range indices {
		gathered[i] = c[index]
	}
	return gathered
}

// AnyColumn is a column of arbitrary values.
type AnyColumn []interface{}

// Len returns the number of values.
func (c AnyColumn) Len() int {
	return len(c)
}

// Gather returns the values at the given positions as []interface{}.
func (c AnyColumn) Gather(indices []int) interface{} {
	gathered := make([]interface{}, len(indices))
	for i, index := range indices {
		gathered[i] = c[index]
	}
	return gathered
}
