package models

import (
	"encoding/gob"
	"io"
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// KindPerceptron identifies persisted perceptron models.
const KindPerceptron = "perceptron"

func init() {
	RegisterRestorer(KindPerceptron, restorePerceptron)
}

// Perceptron is a one-hidden-layer network: ReLU hidden layer followed by
// a softmax output, trained with minibatch SGD on cross-entropy.
type Perceptron struct {
	features int
	hidden   int
	classes  int
	lr       float64
	seed     int64

	w1 *mat.Dense // features x hidden
	b1 []float64
	w2 *mat.Dense // hidden x classes
	b2 []float64
}

// NewPerceptron builds a perceptron with scaled gaussian weight init.
// Config keys: num_features, num_classes (required), hidden_units,
// learning_rate, seed.
func NewPerceptron(config Config) (Model, error) {
	features := config.Int("num_features", 0)
	if features <= 0 {
		return nil, errors.Errorf("num_features must be positive, got %d", features)
	}
	classes := config.Int("num_classes", 0)
	if classes < 2 {
		return nil, errors.Errorf("num_classes must be at least 2, got %d", classes)
	}
	hidden := config.Int("hidden_units", 64)
	if hidden <= 0 {
		return nil, errors.Errorf("hidden_units must be positive, got %d", hidden)
	}
	lr := config.Float("learning_rate", 0.1)
	if lr <= 0 {
		return nil, errors.Errorf("learning_rate must be positive, got %v", lr)
	}
	seed := int64(config.Int("seed", 1))

	rng := rand.New(rand.NewSource(seed))

	return &Perceptron{
		features: features,
		hidden:   hidden,
		classes:  classes,
		lr:       lr,
		seed:     seed,
		w1:       gaussianDense(rng, features, hidden),
		b1:       make([]float64, hidden),
		w2:       gaussianDense(rng, hidden, classes),
		b2:       make([]float64, classes),
	}, nil
}

// gaussianDense draws rows x cols weights from N(0, 1/rows).
func gaussianDense(rng *rand.Rand, rows, cols int) *mat.Dense {
	scale := 1 / math.Sqrt(float64(rows))
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.NormFloat64() * scale
	}
	return mat.NewDense(rows, cols, data)
}

// NumClasses returns the size of the output layer.
func (m *Perceptron) NumClasses() int {
	return m.classes
}

// forward computes the design matrix, the hidden activations and the
// output probabilities.
func (m *Perceptron) forward(inputs [][]float64) (x, hiddenOut, probs *mat.Dense, err error) {
	if err := validateInputs(inputs, m.features); err != nil {
		return nil, nil, nil, err
	}

	n := len(inputs)
	x = mat.NewDense(n, m.features, flatten(inputs))

	hiddenOut = mat.NewDense(n, m.hidden, nil)
	hiddenOut.Mul(x, m.w1)
	for i := 0; i < n; i++ {
		for j := 0; j < m.hidden; j++ {
			a := hiddenOut.At(i, j) + m.b1[j]
			if a < 0 {
				a = 0
			}
			hiddenOut.Set(i, j, a)
		}
	}

	probs = mat.NewDense(n, m.classes, nil)
	probs.Mul(hiddenOut, m.w2)
	for i := 0; i < n; i++ {
		for j := 0; j < m.classes; j++ {
			probs.Set(i, j, probs.At(i, j)+m.b2[j])
		}
	}
	softmaxRows(probs)

	return x, hiddenOut, probs, nil
}

// Predict returns per-class probabilities for each input row.
func (m *Perceptron) Predict(inputs [][]float64) ([][]float64, error) {
	_, _, probs, err := m.forward(inputs)
	if err != nil {
		return nil, err
	}
	return denseRows(probs), nil
}

// Fit performs one SGD step of backpropagation and returns the mean
// cross-entropy loss of the batch before the update.
func (m *Perceptron) Fit(inputs [][]float64, targets []int) (float64, error) {
	x, hiddenOut, probs, err := m.forward(inputs)
	if err != nil {
		return 0, err
	}
	n := len(inputs)
	if err := validateTargets(targets, n, m.classes); err != nil {
		return 0, err
	}

	loss := crossEntropy(probs, targets)

	// Output layer delta: (probs - onehot) / n.
	delta2 := probs
	for i, target := range targets {
		delta2.Set(i, target, delta2.At(i, target)-1)
	}
	delta2.Scale(1/float64(n), delta2)

	// Hidden layer delta, gated by the ReLU derivative.
	var delta1 mat.Dense
	delta1.Mul(delta2, m.w2.T())
	for i := 0; i < n; i++ {
		for j := 0; j < m.hidden; j++ {
			if hiddenOut.At(i, j) <= 0 {
				delta1.Set(i, j, 0)
			}
		}
	}

	var grad2 mat.Dense
	grad2.Mul(hiddenOut.T(), delta2)
	grad2.Scale(m.lr, &grad2)
	m.w2.Sub(m.w2, &grad2)
	subColumnSums(m.b2, delta2, m.lr)

	var grad1 mat.Dense
	grad1.Mul(x.T(), &delta1)
	grad1.Scale(m.lr, &grad1)
	m.w1.Sub(m.w1, &grad1)
	subColumnSums(m.b1, &delta1, m.lr)

	return loss, nil
}

// subColumnSums subtracts lr * column sums of delta from the bias vector.
func subColumnSums(bias []float64, delta *mat.Dense, lr float64) {
	rows, cols := delta.Dims()
	for j := 0; j < cols; j++ {
		var sum float64
		for i := 0; i < rows; i++ {
			sum += delta.At(i, j)
		}
		bias[j] -= lr * sum
	}
}

type perceptronState struct {
	Features int
	Hidden   int
	Classes  int
	W1       []float64
	B1       []float64
	W2       []float64
	B2       []float64
}

// Kind implements Snapshotter.
func (m *Perceptron) Kind() string {
	return KindPerceptron
}

// Hyperparameters implements Snapshotter.
func (m *Perceptron) Hyperparameters() map[string]interface{} {
	return map[string]interface{}{
		"num_features":  m.features,
		"num_classes":   m.classes,
		"hidden_units":  m.hidden,
		"learning_rate": m.lr,
		"seed":          m.seed,
	}
}

// EncodeWeights implements Snapshotter.
func (m *Perceptron) EncodeWeights(w io.Writer) error {
	state := perceptronState{
		Features: m.features,
		Hidden:   m.hidden,
		Classes:  m.classes,
		W1:       append([]float64(nil), m.w1.RawMatrix().Data...),
		B1:       append([]float64(nil), m.b1...),
		W2:       append([]float64(nil), m.w2.RawMatrix().Data...),
		B2:       append([]float64(nil), m.b2...),
	}
	return errors.Wrap(gob.NewEncoder(w).Encode(state), "encoding perceptron weights failed")
}

func restorePerceptron(manifest Manifest, r io.Reader) (Model, error) {
	var state perceptronState
	if err := gob.NewDecoder(r).Decode(&state); err != nil {
		return nil, errors.Wrap(err, "decoding perceptron weights failed")
	}
	if len(state.W1) != state.Features*state.Hidden ||
		len(state.B1) != state.Hidden ||
		len(state.W2) != state.Hidden*state.Classes ||
		len(state.B2) != state.Classes {
		return nil, errors.New("perceptron weights do not match the persisted shape")
	}

	model, err := NewPerceptron(Config(manifest.Hyperparameters))
	if err != nil {
		return nil, err
	}

	perceptron := model.(*Perceptron)
	if state.Features != perceptron.features || state.Hidden != perceptron.hidden || state.Classes != perceptron.classes {
		return nil, errors.New("perceptron weights do not match the manifest shape")
	}
	perceptron.w1 = mat.NewDense(state.Features, state.Hidden, state.W1)
	perceptron.b1 = state.B1
	perceptron.w2 = mat.NewDense(state.Hidden, state.Classes, state.W2)
	perceptron.b2 = state.B2

	return perceptron, nil
}
