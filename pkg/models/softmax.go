package models

import (
	"encoding/gob"
	"io"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// KindSoftmax identifies persisted softmax regression models.
const KindSoftmax = "softmax"

func init() {
	RegisterRestorer(KindSoftmax, restoreSoftmax)
}

// Softmax is multinomial logistic regression trained with minibatch SGD
// on the cross-entropy loss.
type Softmax struct {
	features int
	classes  int
	lr       float64

	weights *mat.Dense // features x classes
	bias    []float64
}

// NewSoftmax builds a zero-initialized softmax regression model.
// Config keys: num_features, num_classes (required), learning_rate.
func NewSoftmax(config Config) (Model, error) {
	features := config.Int("num_features", 0)
	if features <= 0 {
		return nil, errors.Errorf("num_features must be positive, got %d", features)
	}
	classes := config.Int("num_classes", 0)
	if classes < 2 {
		return nil, errors.Errorf("num_classes must be at least 2, got %d", classes)
	}
	lr := config.Float("learning_rate", 0.1)
	if lr <= 0 {
		return nil, errors.Errorf("learning_rate must be positive, got %v", lr)
	}

	return &Softmax{
		features: features,
		classes:  classes,
		lr:       lr,
		weights:  mat.NewDense(features, classes, nil),
		bias:     make([]float64, classes),
	}, nil
}

// NumClasses returns the size of the output layer.
func (m *Softmax) NumClasses() int {
	return m.classes
}

// forward returns the design matrix and the per-row class probabilities.
func (m *Softmax) forward(inputs [][]float64) (x, probs *mat.Dense, err error) {
	if err := validateInputs(inputs, m.features); err != nil {
		return nil, nil, err
	}

	n := len(inputs)
	x = mat.NewDense(n, m.features, flatten(inputs))

	probs = mat.NewDense(n, m.classes, nil)
	probs.Mul(x, m.weights)
	for i := 0; i < n; i++ {
		for j := 0; j < m.classes; j++ {
			probs.Set(i, j, probs.At(i, j)+m.bias[j])
		}
	}
	softmaxRows(probs)

	return x, probs, nil
}

// Predict returns per-class probabilities for each input row.
func (m *Softmax) Predict(inputs [][]float64) ([][]float64, error) {
	_, probs, err := m.forward(inputs)
	if err != nil {
		return nil, err
	}
	return denseRows(probs), nil
}

// Fit performs one SGD step and returns the mean cross-entropy loss of
// the batch before the update.
func (m *Softmax) Fit(inputs [][]float64, targets []int) (float64, error) {
	x, probs, err := m.forward(inputs)
	if err != nil {
		return 0, err
	}
	n := len(inputs)
	if err := validateTargets(targets, n, m.classes); err != nil {
		return 0, err
	}

	loss := crossEntropy(probs, targets)

	// Gradient of the mean loss w.r.t. the logits: (probs - onehot) / n.
	delta := probs
	for i, target := range targets {
		delta.Set(i, target, delta.At(i, target)-1)
	}
	delta.Scale(1/float64(n), delta)

	var grad mat.Dense
	grad.Mul(x.T(), delta)
	grad.Scale(m.lr, &grad)
	m.weights.Sub(m.weights, &grad)

	for j := 0; j < m.classes; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += delta.At(i, j)
		}
		m.bias[j] -= m.lr * sum
	}

	return loss, nil
}

// softmaxRows turns logits into probabilities, row by row, with the usual
// max subtraction for numeric stability.
func softmaxRows(z *mat.Dense) {
	rows, cols := z.Dims()
	for i := 0; i < rows; i++ {
		max := z.At(i, 0)
		for j := 1; j < cols; j++ {
			if z.At(i, j) > max {
				max = z.At(i, j)
			}
		}

		var sum float64
		for j := 0; j < cols; j++ {
			e := math.Exp(z.At(i, j) - max)
			z.Set(i, j, e)
			sum += e
		}
		for j := 0; j < cols; j++ {
			z.Set(i, j, z.At(i, j)/sum)
		}
	}
}

// crossEntropy is the mean negative log-likelihood of the targets.
func crossEntropy(probs *mat.Dense, targets []int) float64 {
	var loss float64
	for i, target := range targets {
		p := probs.At(i, target)
		if p < 1e-12 {
			p = 1e-12
		}
		loss -= math.Log(p)
	}
	return loss / float64(len(targets))
}

// denseRows copies a dense matrix into a slice of rows.
func denseRows(d *mat.Dense) [][]float64 {
	rows, cols := d.Dims()
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		row := make([]float64, cols)
		for j := 0; j < cols; j++ {
			row[j] = d.At(i, j)
		}
		out[i] = row
	}
	return out
}

type softmaxState struct {
	Features int
	Classes  int
	Weights  []float64
	Bias     []float64
}

// Kind implements Snapshotter.
func (m *Softmax) Kind() string {
	return KindSoftmax
}

// Hyperparameters implements Snapshotter.
func (m *Softmax) Hyperparameters() map[string]interface{} {
	return map[string]interface{}{
		"num_features":  m.features,
		"num_classes":   m.classes,
		"learning_rate": m.lr,
	}
}

// EncodeWeights implements Snapshotter.
func (m *Softmax) EncodeWeights(w io.Writer) error {
	state := softmaxState{
		Features: m.features,
		Classes:  m.classes,
		Weights:  append([]float64(nil), m.weights.RawMatrix().Data...),
		Bias:     append([]float64(nil), m.bias...),
	}
	return errors.Wrap(gob.NewEncoder(w).Encode(state), "encoding softmax weights failed")
}

func restoreSoftmax(manifest Manifest, r io.Reader) (Model, error) {
	var state softmaxState
	if err := gob.NewDecoder(r).Decode(&state); err != nil {
		return nil, errors.Wrap(err, "decoding softmax weights failed")
	}
	if len(state.Weights) != state.Features*state.Classes || len(state.Bias) != state.Classes {
		return nil, errors.New("softmax weights do not match the persisted shape")
	}

	model, err := NewSoftmax(Config(manifest.Hyperparameters))
	if err != nil {
		return nil, err
	}

	softmax := model.(*Softmax)
	if state.Features != softmax.features || state.Classes != softmax.classes {
		return nil, errors.New("softmax weights do not match the manifest shape")
	}
	softmax.weights = mat.NewDense(state.Features, state.Classes, state.Weights)
	softmax.bias = state.Bias

	return softmax, nil
}
