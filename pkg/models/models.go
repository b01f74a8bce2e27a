// Package models provides small trainable classifiers for batch pipelines:
// multinomial logistic regression and a one-hidden-layer perceptron, both
// optimized with minibatch SGD, plus manifest+weights persistence.
package models

import (
	"github.com/pkg/errors"
)

// Model is a trainable classifier. Fit performs one optimization step on
// a batch and returns the batch loss; Predict returns per-class scores,
// one row per input.
type Model interface {
	Fit(inputs [][]float64, targets []int) (float64, error)
	Predict(inputs [][]float64) ([][]float64, error)
	NumClasses() int
}

// Factory builds a model from a configuration.
type Factory func(Config) (Model, error)

// Config carries model hyperparameters. Values may arrive from JSON
// manifests, so numeric getters accept both int and float64.
type Config map[string]interface{}

// Float returns the named value as float64, or the fallback when absent.
func (c Config) Float(key string, fallback float64) float64 {
	value, ok := c[key]
	if !ok {
		return fallback
	}

	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return fallback
	}
}

// Int returns the named value as int, or the fallback when absent.
func (c Config) Int(key string, fallback int) int {
	value, ok := c[key]
	if !ok {
		return fallback
	}

	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	default:
		return fallback
	}
}

// validateInputs checks a batch of feature rows against the expected width.
func validateInputs(inputs [][]float64, features int) error {
	if len(inputs) == 0 {
		return errors.New("cannot process an empty batch")
	}
	for i, row := range inputs {
		if len(row) != features {
			return errors.Errorf("input row %d has %d features, want %d", i, len(row), features)
		}
	}
	return nil
}

// validateTargets checks a batch of labels against the batch size and the
// number of classes.
func validateTargets(targets []int, batch, classes int) error {
	if len(targets) != batch {
		return errors.Errorf("got %d targets for %d inputs", len(targets), batch)
	}
	for i, target := range targets {
		if target < 0 || target >= classes {
			return errors.Errorf("target %d at row %d is outside of %d classes", target, i, classes)
		}
	}
	return nil
}

// flatten lays out rows into the row-major backing slice gonum expects.
func flatten(inputs [][]float64) []float64 {
	if len(inputs) == 0 {
		return nil
	}
	flat := make([]float64, 0, len(inputs)*len(inputs[0]))
	for _, row := range inputs {
		flat = append(flat, row...)
	}
	return flat
}
