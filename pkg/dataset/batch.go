package dataset

import "sort"

// Batch holds the positions of one batch and its named in-memory
// components. Components start as gathered column data and are replaced
// by pipeline actions, e.g. raw bytes turned into normalized arrays.
type Batch struct {
	indices    []int
	components map[string]interface{}
}

func newBatch(indices []int, components map[string]interface{}) *Batch {
	return &Batch{
		indices:    indices,
		components: components,
	}
}

// Indices returns a copy of the batch positions.
func (b *Batch) Indices() []int {
	indices := make([]int, len(b.indices))
	copy(indices, b.indices)
	return indices
}

// Len returns the number of samples in the batch.
func (b *Batch) Len() int {
	return len(b.indices)
}

// Component returns the named component.
func (b *Batch) Component(name string) (interface{}, bool) {
	component, ok := b.components[name]
	return component, ok
}

// SetComponent stores a component under the given name.
func (b *Batch) SetComponent(name string, value interface{}) {
	b.components[name] = value
}

// Components returns the sorted component names.
func (b *Batch) Components() []string {
	names := make([]string, 0, len(b.components))
	for name := range b.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
