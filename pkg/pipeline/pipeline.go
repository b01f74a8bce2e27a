// Package pipeline implements a declarative batch-processing engine for
// training and evaluating models. A Pipeline starts life as a template: an
// ordered list of named steps built with chainable methods. Binding a
// template to a dataset yields an executable copy with its own variables
// and model handles; Run, Gen and Next drive batches through the step list.
//
// Builder misuse (empty names, nil arguments, writes to read-only terms) is
// latched instead of returned: the first error sticks to the pipeline and
// surfaces when Run, Gen or Next is called.
package pipeline

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Smeilz/dataset/pkg/dataset"
	"github.com/Smeilz/dataset/pkg/models"
)

// ErrNotBound is returned when a pipeline template is run without binding
// it to a dataset first.
var ErrNotBound = errors.New("pipeline is not bound to a dataset")

type step struct {
	name string
	// once steps run at run start instead of per batch.
	once bool
	// join steps leave their gathered batch in scope for the next step.
	join bool
	run  func(*Exec) error
}

// Pipeline is an append-only list of named steps plus the state of its
// runs: configuration, variables and model handles. Zero or one run may be
// active at a time; the builder refuses modification while one is.
type Pipeline struct {
	mu      sync.Mutex
	ds      *dataset.Dataset
	steps   []step
	config  map[string]interface{}
	err     error
	running bool
	primed  bool
	cursor  *BatchIterator

	vars *variableTable

	hmu     sync.Mutex
	handles map[string]*ModelHandle
}

// New returns an empty pipeline template. Templates record steps and
// configuration only; executing one requires Bind.
func New() *Pipeline {
	return &Pipeline{
		config:  map[string]interface{}{},
		vars:    newVariableTable(),
		handles: map[string]*ModelHandle{},
	}
}

// Bind returns an executable copy of the pipeline attached to the given
// dataset. The copy shares no run state with the template: variables and
// model handles start fresh, so runs of the copy never mutate the
// template.
func (p *Pipeline) Bind(ds *dataset.Dataset) *Pipeline {
	p.mu.Lock()
	defer p.mu.Unlock()

	bound := &Pipeline{
		ds:      ds,
		steps:   append([]step(nil), p.steps...),
		config:  map[string]interface{}{},
		vars:    newVariableTable(),
		handles: map[string]*ModelHandle{},
		err:     p.err,
	}
	for key, value := range p.config {
		bound.config[key] = value
	}
	if ds == nil && bound.err == nil {
		bound.err = errors.New("bind: nil dataset")
	}
	return bound
}

// SetConfig stores a value readable through C placeholders.
func (p *Pipeline) SetConfig(key string, value interface{}) *Pipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p
	}
	if p.running {
		p.err = errors.Errorf("cannot set config %q while the pipeline is running", key)
		return p
	}
	p.config[key] = value
	return p
}

// Config returns the configuration value stored under key.
func (p *Pipeline) Config(key string) (interface{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	value, ok := p.config[key]
	if !ok {
		return nil, errors.Errorf("config key %q is not set", key)
	}
	return value, nil
}

// Variable reads a pipeline variable, e.g. collected losses after a run.
func (p *Pipeline) Variable(name string) (interface{}, error) {
	return p.vars.get(name)
}

func (p *Pipeline) appendStep(s step) *Pipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p
	}
	if p.running {
		p.err = errors.Errorf("cannot add step %q while the pipeline is running", s.name)
		return p
	}
	p.steps = append(p.steps, s)
	return p
}

func (p *Pipeline) fail(err error) *Pipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
	}
	return p
}

// ModelHandle is a named mutable reference to a model. Importing a handle
// into another pipeline shares the instance and the update lock, so
// concurrent runs never interleave weight updates.
type ModelHandle struct {
	name  string
	mu    sync.Mutex
	model models.Model
}

// Model returns the current instance, nil before initialization.
func (h *ModelHandle) Model() models.Model {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.model
}

func (p *Pipeline) handle(name string) *ModelHandle {
	p.hmu.Lock()
	defer p.hmu.Unlock()
	h, ok := p.handles[name]
	if !ok {
		h = &ModelHandle{name: name}
		p.handles[name] = h
	}
	return h
}

func (p *Pipeline) lookupHandle(name string) (*ModelHandle, error) {
	p.hmu.Lock()
	defer p.hmu.Unlock()
	h, ok := p.handles[name]
	if !ok {
		return nil, errors.Errorf("model %q is not initialized", name)
	}
	return h, nil
}

func (p *Pipeline) installHandle(name string, h *ModelHandle) {
	p.hmu.Lock()
	defer p.hmu.Unlock()
	p.handles[name] = h
}

// Model returns the named model instance for inspection outside of steps.
func (p *Pipeline) Model(name string) (models.Model, error) {
	h, err := p.lookupHandle(name)
	if err != nil {
		return nil, err
	}
	m := h.Model()
	if m == nil {
		return nil, errors.Errorf("model %q is not initialized", name)
	}
	return m, nil
}

// SaveModel persists the named model under dir. It executes immediately,
// not as a step.
func (p *Pipeline) SaveModel(name, dir string) error {
	h, err := p.lookupHandle(name)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.model == nil {
		return errors.Errorf("model %q is not initialized", name)
	}
	if err := models.Save(h.model, dir); err != nil {
		return errors.Wrapf(err, "save_model(%s)", name)
	}
	logrus.Debugf("saved model %q to %s", name, dir)
	return nil
}

// LoadModel restores a model from dir into the named handle, replacing any
// current instance. It executes immediately, not as a step.
func (p *Pipeline) LoadModel(name, dir string) error {
	m, err := models.Load(dir)
	if err != nil {
		return errors.Wrapf(err, "load_model(%s)", name)
	}
	h := p.handle(name)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.model = m
	logrus.Debugf("loaded model %q from %s", name, dir)
	return nil
}

// Exec is the execution context handed to steps, Call actions and F
// placeholders.
type Exec struct {
	p      *Pipeline
	batch  *dataset.Batch
	joined *dataset.Batch
}

// Batch returns the batch flowing through the step, nil in run-start steps.
func (ex *Exec) Batch() *dataset.Batch {
	return ex.batch
}

// Joined returns the batch gathered by a directly preceding Join step, nil
// otherwise.
func (ex *Exec) Joined() *dataset.Batch {
	return ex.joined
}

// Variable reads a pipeline variable.
func (ex *Exec) Variable(name string) (interface{}, error) {
	return ex.p.vars.get(name)
}

// SetVariable updates a pipeline variable with the given mode.
func (ex *Exec) SetVariable(name string, value interface{}, mode Mode) error {
	return ex.p.vars.update(name, value, mode)
}

// Config reads a pipeline configuration value.
func (ex *Exec) Config(key string) (interface{}, error) {
	return ex.p.Config(key)
}

// CreateBatch gathers the given positions and applies the pipeline's
// per-batch steps to them, outside of any run. Run-start steps are applied
// lazily on first use.
func (p *Pipeline) CreateBatch(indices []int) (*dataset.Batch, error) {
	p.mu.Lock()
	if p.err != nil {
		err := p.err
		p.mu.Unlock()
		return nil, err
	}
	if p.ds == nil {
		p.mu.Unlock()
		return nil, ErrNotBound
	}
	steps := append([]step(nil), p.steps...)
	primed := p.primed
	p.mu.Unlock()

	if !primed {
		if err := p.runOnceSteps(steps); err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.primed = true
		p.mu.Unlock()
	}
	return p.processBatch(indices, steps)
}

func (p *Pipeline) runOnceSteps(steps []step) error {
	ex := &Exec{p: p}
	for _, s := range steps {
		if !s.once {
			continue
		}
		if err := s.run(ex); err != nil {
			return errors.Wrapf(err, "step %q failed", s.name)
		}
	}
	return nil
}

func (p *Pipeline) processBatch(indices []int, steps []step) (*dataset.Batch, error) {
	batch, err := p.ds.CreateBatch(indices)
	if err != nil {
		return nil, err
	}
	ex := &Exec{p: p, batch: batch}
	for _, s := range steps {
		if s.once {
			continue
		}
		if err := s.run(ex); err != nil {
			return nil, errors.Wrapf(err, "step %q failed", s.name)
		}
		if !s.join {
			ex.joined = nil
		}
	}
	return batch, nil
}
