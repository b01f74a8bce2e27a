package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Smeilz/dataset/pkg/dataset"
	"github.com/Smeilz/dataset/pkg/metrics"
	"github.com/Smeilz/dataset/pkg/models"
)

// KindClassification is the metric kind GatherMetrics accepts.
const KindClassification = "classification"

// InitVariable declares a named variable. The step executes at run start,
// not per batch; variables without InitOnEachRun keep their value across
// runs.
func (p *Pipeline) InitVariable(name string, opts ...VarOption) *Pipeline {
	if name == "" {
		return p.fail(errors.New("init_variable: empty variable name"))
	}
	def := &varDef{init: func() interface{} { return nil }}
	for _, opt := range opts {
		opt(def)
	}
	return p.appendStep(step{
		name: fmt.Sprintf("init_variable(%s)", name),
		once: true,
		run: func(ex *Exec) error {
			ex.p.vars.define(name, def)
			return nil
		},
	})
}

// InitModel creates the named model from its factory at run start. An
// already initialized handle is kept, so a second run continues training
// where the first stopped.
func (p *Pipeline) InitModel(name string, factory models.Factory, config models.Config) *Pipeline {
	if name == "" {
		return p.fail(errors.New("init_model: empty model name"))
	}
	if factory == nil {
		return p.fail(errors.Errorf("init_model(%s): nil factory", name))
	}
	return p.appendStep(step{
		name: fmt.Sprintf("init_model(%s)", name),
		once: true,
		run: func(ex *Exec) error {
			h := ex.p.handle(name)
			h.mu.Lock()
			defer h.mu.Unlock()
			if h.model != nil {
				return nil
			}
			model, err := factory(config)
			if err != nil {
				return errors.Wrapf(err, "init_model(%s)", name)
			}
			h.model = model
			logrus.Debugf("initialized model %q with %d classes", name, model.NumClasses())
			return nil
		},
	})
}

// ImportModel shares a model handle from another pipeline. Both pipelines
// operate on the same instance and serialize updates on the same lock.
func (p *Pipeline) ImportModel(name string, from *Pipeline) *Pipeline {
	if name == "" {
		return p.fail(errors.New("import_model: empty model name"))
	}
	if from == nil {
		return p.fail(errors.Errorf("import_model(%s): nil source pipeline", name))
	}
	return p.appendStep(step{
		name: fmt.Sprintf("import_model(%s)", name),
		once: true,
		run: func(ex *Exec) error {
			h, err := from.lookupHandle(name)
			if err != nil {
				return errors.Wrapf(err, "import_model(%s)", name)
			}
			ex.p.installHandle(name, h)
			return nil
		},
	})
}

type arrayConfig struct {
	component string
	scale     float64
}

// ArrayOption configures ToArray.
type ArrayOption func(*arrayConfig)

// ArrayComponent selects the batch component to convert, "images" by
// default.
func ArrayComponent(name string) ArrayOption {
	return func(c *arrayConfig) {
		c.component = name
	}
}

// ArrayScale overrides the factor applied to every element, 1/255 by
// default.
func ArrayScale(scale float64) ArrayOption {
	return func(c *arrayConfig) {
		c.scale = scale
	}
}

// ToArray converts a raw byte component into rows of scaled float64
// values, replacing the component in place.
func (p *Pipeline) ToArray(opts ...ArrayOption) *Pipeline {
	config := arrayConfig{component: "images", scale: 1.0 / 255.0}
	for _, opt := range opts {
		opt(&config)
	}
	return p.appendStep(step{
		name: fmt.Sprintf("to_array(%s)", config.component),
		run: func(ex *Exec) error {
			value, err := batchTerm{component: config.component}.resolve(ex)
			if err != nil {
				return err
			}
			rows, err := toFloatRows(value, config.scale)
			if err != nil {
				return errors.Wrapf(err, "to_array(%s)", config.component)
			}
			ex.batch.SetComponent(config.component, rows)
			return nil
		},
	})
}

func toFloatRows(value interface{}, scale float64) ([][]float64, error) {
	switch data := value.(type) {
	case [][]byte:
		rows := make([][]float64, len(data))
		for i, raw := range data {
			row := make([]float64, len(raw))
			for j, b := range raw {
				row[j] = float64(b) * scale
			}
			rows[i] = row
		}
		return rows, nil
	case [][]float64:
		if scale == 1 {
			return data, nil
		}
		rows := make([][]float64, len(data))
		for i, raw := range data {
			row := make([]float64, len(raw))
			for j, v := range raw {
				row[j] = v * scale
			}
			rows[i] = row
		}
		return rows, nil
	}
	return nil, errors.Errorf("unsupported component type %T", value)
}

type stepConfig struct {
	sink   sink
	mode   Mode
	format metrics.Format
}

// StepOption configures result-producing steps: TrainModel, PredictModel
// and GatherMetrics.
type StepOption func(*stepConfig) error

// SaveTo redirects where a step stores its result. Without an explicit
// mode the step's natural mode applies: ModeWrite for predictions,
// ModeAppend for losses, ModeUpdate for metric accumulators.
func SaveTo(target Term, mode ...Mode) StepOption {
	return func(c *stepConfig) error {
		s, err := asSink(target)
		if err != nil {
			return err
		}
		c.sink = s
		if len(mode) > 0 {
			c.mode = mode[0]
		}
		return nil
	}
}

// SaveLossTo stores each batch loss into the given destination; identical
// to SaveTo, named for readability in training pipelines.
func SaveLossTo(target Term, mode ...Mode) StepOption {
	return SaveTo(target, mode...)
}

// ScoreFormat tells GatherMetrics how to read predictions, Logits by
// default.
func ScoreFormat(format metrics.Format) StepOption {
	return func(c *stepConfig) error {
		c.format = format
		return nil
	}
}

func applyStepOptions(defaultSink sink, defaultMode Mode, opts []StepOption) (stepConfig, error) {
	config := stepConfig{sink: defaultSink, mode: defaultMode, format: metrics.Logits}
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return config, err
		}
	}
	return config, nil
}

// TrainModel fits the named model on the resolved inputs and targets, one
// gradient step per batch. The update holds the handle's lock, so
// prefetched batches never corrupt the weights. The batch loss is dropped
// unless SaveLossTo names a destination.
func (p *Pipeline) TrainModel(name string, inputs, targets Term, opts ...StepOption) *Pipeline {
	if name == "" {
		return p.fail(errors.New("train_model: empty model name"))
	}
	if inputs == nil || targets == nil {
		return p.fail(errors.Errorf("train_model(%s): nil inputs or targets", name))
	}
	config, err := applyStepOptions(nil, ModeAppend, opts)
	if err != nil {
		return p.fail(errors.Wrapf(err, "train_model(%s)", name))
	}
	return p.appendStep(step{
		name: fmt.Sprintf("train_model(%s)", name),
		run: func(ex *Exec) error {
			x, y, err := resolveTrainingPair(ex, inputs, targets)
			if err != nil {
				return err
			}
			h, err := ex.p.lookupHandle(name)
			if err != nil {
				return err
			}
			h.mu.Lock()
			if h.model == nil {
				h.mu.Unlock()
				return errors.Errorf("model %q is not initialized", name)
			}
			loss, err := h.model.Fit(x, y)
			h.mu.Unlock()
			if err != nil {
				return errors.Wrapf(err, "train_model(%s)", name)
			}
			logrus.Debugf("train_model(%s): loss %.6f over %d samples", name, loss, len(y))
			if config.sink != nil {
				return config.sink.store(ex, loss, config.mode)
			}
			return nil
		},
	})
}

func resolveTrainingPair(ex *Exec, inputs, targets Term) ([][]float64, []int, error) {
	iv, err := inputs.resolve(ex)
	if err != nil {
		return nil, nil, err
	}
	x, err := asFloatMatrix(iv)
	if err != nil {
		return nil, nil, errors.Wrap(err, "inputs")
	}
	tv, err := targets.resolve(ex)
	if err != nil {
		return nil, nil, err
	}
	y, err := asIntSlice(tv)
	if err != nil {
		return nil, nil, errors.Wrap(err, "targets")
	}
	return x, y, nil
}

// UpdateVariable applies a per-batch update to the named variable. The
// value may be a placeholder or a plain value.
func (p *Pipeline) UpdateVariable(name string, value interface{}, mode Mode) *Pipeline {
	if name == "" {
		return p.fail(errors.New("update_variable: empty variable name"))
	}
	term := asTerm(value)
	return p.appendStep(step{
		name: fmt.Sprintf("update_variable(%s)", name),
		run: func(ex *Exec) error {
			v, err := term.resolve(ex)
			if err != nil {
				return err
			}
			return ex.p.vars.update(name, v, mode)
		},
	})
}

// PredictModel runs the named model on the resolved inputs and stores the
// per-class scores, in the "predictions" batch component unless redirected
// with SaveTo. Predictions hold the handle's lock so they never observe
// mid-update weights.
func (p *Pipeline) PredictModel(name string, inputs Term, opts ...StepOption) *Pipeline {
	if name == "" {
		return p.fail(errors.New("predict_model: empty model name"))
	}
	if inputs == nil {
		return p.fail(errors.Errorf("predict_model(%s): nil inputs", name))
	}
	config, err := applyStepOptions(batchTerm{component: "predictions"}, ModeWrite, opts)
	if err != nil {
		return p.fail(errors.Wrapf(err, "predict_model(%s)", name))
	}
	return p.appendStep(step{
		name: fmt.Sprintf("predict_model(%s)", name),
		run: func(ex *Exec) error {
			iv, err := inputs.resolve(ex)
			if err != nil {
				return err
			}
			x, err := asFloatMatrix(iv)
			if err != nil {
				return errors.Wrap(err, "inputs")
			}
			h, err := ex.p.lookupHandle(name)
			if err != nil {
				return err
			}
			h.mu.Lock()
			if h.model == nil {
				h.mu.Unlock()
				return errors.Errorf("model %q is not initialized", name)
			}
			scores, err := h.model.Predict(x)
			h.mu.Unlock()
			if err != nil {
				return errors.Wrapf(err, "predict_model(%s)", name)
			}
			return config.sink.store(ex, scores, config.mode)
		},
	})
}

// GatherMetrics builds a classification accumulator from the batch targets
// and predictions and merges it into the destination, the "metrics"
// variable unless redirected with SaveTo. Queries over the whole run stay
// deferred on the accumulator.
func (p *Pipeline) GatherMetrics(kind string, targets, predictions Term, opts ...StepOption) *Pipeline {
	if kind != KindClassification {
		return p.fail(errors.Errorf("gather_metrics: unsupported kind %q", kind))
	}
	if targets == nil || predictions == nil {
		return p.fail(errors.New("gather_metrics: nil targets or predictions"))
	}
	config, err := applyStepOptions(variableTerm{name: "metrics"}, ModeUpdate, opts)
	if err != nil {
		return p.fail(errors.Wrap(err, "gather_metrics"))
	}
	return p.appendStep(step{
		name: fmt.Sprintf("gather_metrics(%s)", kind),
		run: func(ex *Exec) error {
			tv, err := targets.resolve(ex)
			if err != nil {
				return err
			}
			pv, err := predictions.resolve(ex)
			if err != nil {
				return err
			}
			accumulator := metrics.NewClassification(config.format)
			if err := accumulator.Append(tv, pv); err != nil {
				return errors.Wrap(err, "gather_metrics")
			}
			return config.sink.store(ex, accumulator, config.mode)
		},
	})
}

// Call appends a custom action. The function receives the execution
// context with the current batch and any joined batch.
func (p *Pipeline) Call(name string, fn func(*Exec) error) *Pipeline {
	if fn == nil {
		return p.fail(errors.Errorf("call(%s): nil function", name))
	}
	return p.appendStep(step{
		name: fmt.Sprintf("call(%s)", name),
		run:  fn,
	})
}

// Join gathers a batch of the given dataset by the current batch positions
// and exposes it to the next step through Exec.Joined. The datasets must
// share an index space.
func (p *Pipeline) Join(ds *dataset.Dataset) *Pipeline {
	if ds == nil {
		return p.fail(errors.New("join: nil dataset"))
	}
	return p.appendStep(step{
		name: "join",
		join: true,
		run: func(ex *Exec) error {
			if ex.batch == nil {
				return errors.New("join: no batch in scope")
			}
			joined, err := ds.CreateBatch(ex.batch.Indices())
			if err != nil {
				return errors.Wrap(err, "join")
			}
			ex.joined = joined
			return nil
		},
	})
}

func asFloatMatrix(v interface{}) ([][]float64, error) {
	m, ok := v.([][]float64)
	if !ok {
		return nil, errors.Errorf("expected [][]float64, got %T (raw byte components need ToArray first)", v)
	}
	return m, nil
}

func asIntSlice(v interface{}) ([]int, error) {
	s, ok := v.([]int)
	if !ok {
		return nil, errors.Errorf("expected []int, got %T", v)
	}
	return s, nil
}
