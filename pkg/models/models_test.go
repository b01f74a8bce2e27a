package models

import (
	"encoding/json"
	"io/ioutil"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A tiny linearly separable problem: class 0 lives along the first axis,
// class 1 along the second.
var (
	separableInputs = [][]float64{
		{2.0, 0.0},
		{1.5, 0.5},
		{1.8, 0.2},
		{0.0, 2.0},
		{0.5, 1.5},
		{0.2, 1.8},
	}
	separableTargets = []int{0, 0, 0, 1, 1, 1}
)

func TestConfigGetters(t *testing.T) {
	config := Config{
		"learning_rate": 0.5,
		"num_classes":   10,
		"from_json":     float64(7),
		"junk":          "nope",
	}

	assert.Equal(t, 0.5, config.Float("learning_rate", 0.1))
	assert.Equal(t, 10.0, config.Float("num_classes", 0))
	assert.Equal(t, 0.1, config.Float("missing", 0.1))
	assert.Equal(t, 0.1, config.Float("junk", 0.1))

	assert.Equal(t, 10, config.Int("num_classes", 0))
	assert.Equal(t, 7, config.Int("from_json", 0))
	assert.Equal(t, 3, config.Int("missing", 3))
	assert.Equal(t, 3, config.Int("junk", 3))
}

func TestSoftmaxValidation(t *testing.T) {
	_, err := NewSoftmax(Config{"num_classes": 2})
	assert.Error(t, err)

	_, err = NewSoftmax(Config{"num_features": 2, "num_classes": 1})
	assert.Error(t, err)

	_, err = NewSoftmax(Config{"num_features": 2, "num_classes": 2, "learning_rate": -1.0})
	assert.Error(t, err)

	model, err := NewSoftmax(Config{"num_features": 2, "num_classes": 2})
	require.NoError(t, err)

	_, err = model.Fit([][]float64{{1, 2, 3}}, []int{0})
	assert.Error(t, err, "wrong feature width")

	_, err = model.Fit([][]float64{{1, 2}}, []int{5})
	assert.Error(t, err, "target outside of classes")

	_, err = model.Fit([][]float64{{1, 2}}, []int{0, 1})
	assert.Error(t, err, "target count mismatch")

	_, err = model.Predict(nil)
	assert.Error(t, err, "empty batch")
}

func TestSoftmaxLearns(t *testing.T) {
	model, err := NewSoftmax(Config{
		"num_features":  2,
		"num_classes":   2,
		"learning_rate": 0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, model.NumClasses())

	first, err := model.Fit(separableInputs, separableTargets)
	require.NoError(t, err)

	var last float64
	for i := 0; i < 100; i++ {
		last, err = model.Fit(separableInputs, separableTargets)
		require.NoError(t, err)
	}
	assert.Less(t, last, first, "training loss should decrease")

	scores, err := model.Predict([][]float64{{3, 0}, {0, 3}})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	require.Len(t, scores[0], 2)

	assert.InDelta(t, 1.0, scores[0][0]+scores[0][1], 1e-9, "rows are probabilities")
	assert.Greater(t, scores[0][0], scores[0][1], "first point belongs to class 0")
	assert.Greater(t, scores[1][1], scores[1][0], "second point belongs to class 1")
}

func TestPerceptronLearns(t *testing.T) {
	config := Config{
		"num_features":  2,
		"num_classes":   2,
		"hidden_units":  8,
		"learning_rate": 0.3,
		"seed":          1,
	}

	model, err := NewPerceptron(config)
	require.NoError(t, err)

	first, err := model.Fit(separableInputs, separableTargets)
	require.NoError(t, err)

	var last float64
	for i := 0; i < 200; i++ {
		last, err = model.Fit(separableInputs, separableTargets)
		require.NoError(t, err)
	}
	assert.Less(t, last, first, "training loss should decrease")
}

func TestPerceptronSeedDeterminism(t *testing.T) {
	config := Config{
		"num_features": 3,
		"num_classes":  2,
		"hidden_units": 4,
		"seed":         7,
	}

	first, err := NewPerceptron(config)
	require.NoError(t, err)
	second, err := NewPerceptron(config)
	require.NoError(t, err)

	inputs := [][]float64{{0.1, -0.2, 0.3}, {1, 2, 3}}
	firstScores, err := first.Predict(inputs)
	require.NoError(t, err)
	secondScores, err := second.Predict(inputs)
	require.NoError(t, err)

	assert.Equal(t, firstScores, secondScores)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	inputs := [][]float64{{0.3, 0.7}, {2, 1}, {-1, 0.5}}

	for kind, factory := range map[string]Factory{
		KindSoftmax:    NewSoftmax,
		KindPerceptron: NewPerceptron,
	} {
		dir := path.Join(t.TempDir(), kind)

		model, err := factory(Config{
			"num_features":  2,
			"num_classes":   3,
			"learning_rate": 0.2,
		})
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			_, err = model.Fit(separableInputs, separableTargets)
			require.NoError(t, err)
		}

		require.NoError(t, Save(model, dir))

		restored, err := Load(dir)
		require.NoError(t, err, kind)
		assert.Equal(t, model.NumClasses(), restored.NumClasses())

		want, err := model.Predict(inputs)
		require.NoError(t, err)
		got, err := restored.Predict(inputs)
		require.NoError(t, err)

		assert.Equal(t, want, got, "restored %s predicts identically", kind)
	}
}

func TestLoadRejectsUnknownKind(t *testing.T) {
	dir := t.TempDir()

	manifest, err := json.Marshal(Manifest{Kind: "boltzmann", Hyperparameters: map[string]interface{}{}})
	require.NoError(t, err)
	require.NoError(t, ioutil.WriteFile(path.Join(dir, ManifestFileName), manifest, 0644))
	require.NoError(t, ioutil.WriteFile(path.Join(dir, WeightsFileName), []byte{}, 0644))

	_, err = Load(dir)
	assert.Error(t, err)

	_, err = Load(path.Join(dir, "missing"))
	assert.Error(t, err)
}
