package opensets

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/Smeilz/dataset/pkg/dataset"
)

// Blobs builds a synthetic classification corpus: per-class gaussian
// clusters with unit noise around centers drawn from N(0, 5). The same
// seed always yields the same corpus and the same 80/20 split, so demos
// and tests run anywhere without local data.
func Blobs(samples, classes, features int, seed int64) (*Openset, error) {
	if classes < 2 {
		return nil, errors.Errorf("blobs needs at least 2 classes, got %d", classes)
	}
	if features < 1 {
		return nil, errors.Errorf("blobs needs at least 1 feature, got %d", features)
	}
	if samples < classes {
		return nil, errors.Errorf("blobs needs at least one sample per class, got %d samples for %d classes", samples, classes)
	}

	rng := rand.New(rand.NewSource(seed))
	centers := make([][]float64, classes)
	for c := range centers {
		center := make([]float64, features)
		for j := range center {
			center[j] = rng.NormFloat64() * 5.0
		}
		centers[c] = center
	}

	images := make(dataset.Float64Matrix, samples)
	labels := make(dataset.IntColumn, samples)
	for i := 0; i < samples; i++ {
		class := i % classes
		row := make([]float64, features)
		for j := range row {
			row[j] = centers[class][j] + rng.NormFloat64()
		}
		images[i] = row
		labels[i] = class
	}

	ds, err := dataset.New(map[string]dataset.Column{
		"images": images,
		"labels": labels,
	})
	if err != nil {
		return nil, err
	}
	train, test, err := ds.TrainTestSplit(0.2, seed)
	if err != nil {
		return nil, errors.Wrap(err, "blobs split")
	}
	return &Openset{Train: train, Test: test}, nil
}
