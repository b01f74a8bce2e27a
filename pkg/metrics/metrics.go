// Package metrics accumulates classification quality measures over batches.
// A Classification instance collects a confusion matrix from (targets,
// predictions) pairs and answers metric queries lazily, so pipelines can
// gather cheaply per batch and evaluate once at the end.
package metrics

import (
	"github.com/pkg/errors"
)

// Format describes how predictions passed to Append are encoded.
type Format int

const (
	// Labels means predictions are class labels ([]int).
	Labels Format = iota
	// Logits means predictions are per-class scores ([][]float64); the
	// predicted class is the argmax.
	Logits
	// Proba means predictions are per-class probabilities ([][]float64);
	// handled like Logits.
	Proba
)

// Classification accumulates a confusion matrix over appended batches.
// The zero value is not usable; construct with NewClassification.
type Classification struct {
	format Format
	// confusion[target][predicted], grown as classes appear.
	confusion [][]int64
	total     int64
}

// NewClassification returns an empty accumulator expecting predictions in
// the given format.
func NewClassification(format Format) *Classification {
	return &Classification{format: format}
}

// NumClasses returns the number of classes seen so far.
func (c *Classification) NumClasses() int {
	return len(c.confusion)
}

// Total returns the number of samples appended so far.
func (c *Classification) Total() int64 {
	return c.total
}

// Append accumulates one batch of targets and predictions.
// Targets are always class labels ([]int); the prediction encoding must
// match the accumulator's format.
func (c *Classification) Append(targets interface{}, predictions interface{}) error {
	targetLabels, ok := targets.([]int)
	if !ok {
		return errors.Errorf("targets must be []int, got %T", targets)
	}
	if len(targetLabels) == 0 {
		return errors.New("cannot append an empty batch")
	}

	predictedLabels, err := c.predictedLabels(predictions)
	if err != nil {
		return err
	}
	if len(predictedLabels) != len(targetLabels) {
		return errors.Errorf("got %d predictions for %d targets", len(predictedLabels), len(targetLabels))
	}

	for i := range targetLabels {
		if err := c.count(targetLabels[i], predictedLabels[i]); err != nil {
			return err
		}
	}

	return nil
}

func (c *Classification) predictedLabels(predictions interface{}) ([]int, error) {
	switch c.format {
	case Labels:
		labels, ok := predictions.([]int)
		if !ok {
			return nil, errors.Errorf("predictions must be []int for the Labels format, got %T", predictions)
		}
		return labels, nil

	case Logits, Proba:
		scores, ok := predictions.([][]float64)
		if !ok {
			return nil, errors.Errorf("predictions must be [][]float64 for a scores format, got %T", predictions)
		}

		labels := make([]int, len(scores))
		for i, row := range scores {
			if len(row) == 0 {
				return nil, errors.Errorf("prediction row %d is empty", i)
			}
			labels[i] = argmax(row)
		}
		return labels, nil

	default:
		return nil, errors.Errorf("unknown prediction format %d", c.format)
	}
}

func argmax(row []float64) int {
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return best
}

func (c *Classification) count(target, predicted int) error {
	if target < 0 || predicted < 0 {
		return errors.Errorf("class labels must be non-negative, got target %d predicted %d", target, predicted)
	}

	size := target + 1
	if predicted+1 > size {
		size = predicted + 1
	}
	c.grow(size)

	c.confusion[target][predicted]++
	c.total++
	return nil
}

// grow extends the confusion matrix to size x size.
func (c *Classification) grow(size int) {
	if size <= len(c.confusion) {
		return
	}

	grown := make([][]int64, size)
	for i := range grown {
		grown[i] = make([]int64, size)
		if i < len(c.confusion) {
			copy(grown[i], c.confusion[i])
		}
	}
	c.confusion = grown
}

// Merge adds another accumulator's counts into this one.
func (c *Classification) Merge(other *Classification) error {
	if other == nil {
		return errors.New("cannot merge a nil accumulator")
	}

	c.grow(len(other.confusion))
	for target, row := range other.confusion {
		for predicted, count := range row {
			c.confusion[target][predicted] += count
		}
	}
	c.total += other.total

	return nil
}

// Update implements the variable-update contract of the pipeline package:
// the incoming value is a per-batch accumulator merged into this one.
func (c *Classification) Update(v interface{}) error {
	other, ok := v.(*Classification)
	if !ok {
		return errors.Errorf("can only update a classification accumulator with another one, got %T", v)
	}
	return c.Merge(other)
}
