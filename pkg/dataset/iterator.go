package dataset

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

// ErrEndOfIteration is returned by Iterator.Next when all requested epochs
// have been yielded.
var ErrEndOfIteration = errors.New("end of iteration")

// IteratorConfig controls how batches of indices are generated.
type IteratorConfig struct {
	// BatchSize is the number of samples per batch. Must be positive.
	BatchSize int
	// Shuffle reorders the index before every epoch.
	Shuffle bool
	// Seed makes shuffling deterministic. Zero picks a time based seed.
	Seed int64
	// Epochs is the number of passes over the index. Must be at least 1.
	Epochs int
	// DropLast skips the final short batch of each epoch.
	DropLast bool
}

// Iterator yields batches of index positions, epoch by epoch.
// It is not safe for concurrent use.
type Iterator struct {
	index  *Index
	config IteratorConfig
	seed   int64
	rng    *rand.Rand

	order  []int
	epoch  int
	cursor int
}

// NewIterator returns an iterator over the given index.
func NewIterator(index *Index, config IteratorConfig) (*Iterator, error) {
	if index == nil {
		return nil, errors.New("iterator requires an index")
	}
	if config.BatchSize <= 0 {
		return nil, errors.Errorf("batch size must be positive, got %d", config.BatchSize)
	}
	if config.Epochs < 1 {
		return nil, errors.Errorf("epoch count must be at least 1, got %d", config.Epochs)
	}

	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Iterator{
		index:  index,
		config: config,
		seed:   seed,
		rng:    rand.New(rand.NewSource(seed)),
	}, nil
}

// Next returns the positions of the next batch.
// After the last batch of the last epoch it returns ErrEndOfIteration.
func (it *Iterator) Next() ([]int, error) {
	for {
		if it.epoch >= it.config.Epochs {
			return nil, ErrEndOfIteration
		}

		if it.order == nil {
			it.order = it.epochOrder()
		}

		remaining := len(it.order) - it.cursor
		if remaining == 0 || (remaining < it.config.BatchSize && it.config.DropLast) {
			it.epoch++
			it.cursor = 0
			it.order = nil
			continue
		}

		size := it.config.BatchSize
		if remaining < size {
			size = remaining
		}

		batch := make([]int, size)
		copy(batch, it.order[it.cursor:it.cursor+size])
		it.cursor += size

		return batch, nil
	}
}

// epochOrder returns the iteration order for the coming epoch.
// The shuffle draws from the persistent rng so every epoch gets a fresh
// order while the whole sequence stays reproducible for a fixed seed.
func (it *Iterator) epochOrder() []int {
	order := it.index.Indices()
	if it.config.Shuffle {
		it.rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}
	return order
}

// Reset rewinds the iterator to the start of epoch 0 and replays the
// original seed, so a reset iterator repeats its batch sequence.
func (it *Iterator) Reset() {
	it.epoch = 0
	it.cursor = 0
	it.order = nil
	it.rng = rand.New(rand.NewSource(it.seed))
}

// TotalBatches returns the number of batches the iterator will yield over
// all epochs.
func (it *Iterator) TotalBatches() int {
	perEpoch := it.index.Len() / it.config.BatchSize
	if it.index.Len()%it.config.BatchSize != 0 && !it.config.DropLast {
		perEpoch++
	}
	return perEpoch * it.config.Epochs
}
