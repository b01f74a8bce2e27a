package pipeline

import (
	"github.com/pkg/errors"
)

// Term is a deferred reference resolved against the pipeline state while a
// step executes.
type Term interface {
	resolve(ex *Exec) (interface{}, error)
}

// sink is a Term that can also be written to: variables and batch
// components.
type sink interface {
	store(ex *Exec, value interface{}, mode Mode) error
}

func asSink(t Term) (sink, error) {
	if s, ok := t.(sink); ok {
		return s, nil
	}
	return nil, errors.Errorf("%T is not writable, use V(...) or B(...)", t)
}

type batchTerm struct {
	component string
}

// B references a named component of the batch in scope.
func B(component string) Term {
	return batchTerm{component: component}
}

func (t batchTerm) resolve(ex *Exec) (interface{}, error) {
	if ex.batch == nil {
		return nil, errors.Errorf("component %q referenced outside of a batch", t.component)
	}
	value, ok := ex.batch.Component(t.component)
	if !ok {
		return nil, errors.Errorf("batch has no component %q", t.component)
	}
	return value, nil
}

func (t batchTerm) store(ex *Exec, value interface{}, mode Mode) error {
	if ex.batch == nil {
		return errors.Errorf("component %q referenced outside of a batch", t.component)
	}
	if mode != ModeWrite {
		return errors.Errorf("component %q only supports ModeWrite, got %s", t.component, mode)
	}
	ex.batch.SetComponent(t.component, value)
	return nil
}

type configTerm struct {
	key string
}

// C references a pipeline configuration value.
func C(key string) Term {
	return configTerm{key: key}
}

func (t configTerm) resolve(ex *Exec) (interface{}, error) {
	return ex.p.Config(t.key)
}

type variableTerm struct {
	name string
}

// V references a pipeline variable.
func V(name string) Term {
	return variableTerm{name: name}
}

func (t variableTerm) resolve(ex *Exec) (interface{}, error) {
	return ex.p.vars.get(t.name)
}

func (t variableTerm) store(ex *Exec, value interface{}, mode Mode) error {
	return ex.p.vars.update(t.name, value, mode)
}

type funcTerm struct {
	fn func(*Exec) interface{}
}

// F defers to a function evaluated against the execution context.
func F(fn func(*Exec) interface{}) Term {
	return funcTerm{fn: fn}
}

func (t funcTerm) resolve(ex *Exec) (interface{}, error) {
	if t.fn == nil {
		return nil, errors.New("nil function placeholder")
	}
	return t.fn(ex), nil
}

type literalTerm struct {
	value interface{}
}

func (t literalTerm) resolve(*Exec) (interface{}, error) {
	return t.value, nil
}

// asTerm lets plain values stand in wherever a placeholder is accepted.
func asTerm(v interface{}) Term {
	if t, ok := v.(Term); ok {
		return t
	}
	return literalTerm{value: v}
}
