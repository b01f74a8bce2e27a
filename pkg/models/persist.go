package models

import (
	"encoding/json"
	"io"
	"io/ioutil"
	"os"
	"path"

	"github.com/pkg/errors"
)

const (
	// ManifestFileName is the JSON manifest written next to the weights.
	ManifestFileName = "model.json"
	// WeightsFileName holds the gob-encoded weights.
	WeightsFileName = "weights.bin"
)

// Manifest describes a persisted model: its kind selects the restorer,
// the hyperparameters rebuild the architecture.
type Manifest struct {
	Kind            string                 `json:"kind"`
	Hyperparameters map[string]interface{} `json:"hyperparameters"`
}

// Snapshotter is implemented by models that can persist themselves.
type Snapshotter interface {
	Kind() string
	Hyperparameters() map[string]interface{}
	EncodeWeights(w io.Writer) error
}

// Restorer rebuilds a model of one kind from its manifest and weight stream.
type Restorer func(manifest Manifest, r io.Reader) (Model, error)

var restorers = map[string]Restorer{}

// RegisterRestorer makes a model kind loadable. Registering the same kind
// twice is a programmer error.
func RegisterRestorer(kind string, restorer Restorer) {
	if _, ok := restorers[kind]; ok {
		panic("model kind was already registered: " + kind)
	}
	restorers[kind] = restorer
}

// Save persists the model into the given directory as a JSON manifest
// plus gob-encoded weights. The directory is created when missing.
func Save(m Model, dir string) error {
	snapshotter, ok := m.(Snapshotter)
	if !ok {
		return errors.Errorf("model of type %T cannot be persisted", m)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "creating model directory %q failed", dir)
	}

	manifest := Manifest{
		Kind:            snapshotter.Kind(),
		Hyperparameters: snapshotter.Hyperparameters(),
	}
	encoded, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding model manifest failed")
	}
	if err := ioutil.WriteFile(path.Join(dir, ManifestFileName), encoded, 0644); err != nil {
		return errors.Wrap(err, "writing model manifest failed")
	}

	weights, err := os.Create(path.Join(dir, WeightsFileName))
	if err != nil {
		return errors.Wrap(err, "creating model weights file failed")
	}
	defer weights.Close()

	return snapshotter.EncodeWeights(weights)
}

// Load restores a model persisted with Save.
func Load(dir string) (Model, error) {
	encoded, err := ioutil.ReadFile(path.Join(dir, ManifestFileName))
	if err != nil {
		return nil, errors.Wrap(err, "reading model manifest failed")
	}

	var manifest Manifest
	if err := json.Unmarshal(encoded, &manifest); err != nil {
		return nil, errors.Wrap(err, "decoding model manifest failed")
	}

	restorer, ok := restorers[manifest.Kind]
	if !ok {
		return nil, errors.Errorf("no restorer registered for model kind %q", manifest.Kind)
	}

	weights, err := os.Open(path.Join(dir, WeightsFileName))
	if err != nil {
		return nil, errors.Wrap(err, "opening model weights failed")
	}
	defer weights.Close()

	return restorer(manifest, weights)
}
