package pipeline

import (
	"sync"

	"github.com/pkg/errors"
)

// Mode selects how a variable update combines with the stored value.
type Mode int

const (
	// ModeWrite replaces the stored value.
	ModeWrite Mode = iota
	// ModeAppend appends one element to the stored slice.
	ModeAppend
	// ModeExtend concatenates a slice onto the stored slice.
	ModeExtend
	// ModeUpdate delegates to the stored value's Update method.
	ModeUpdate
)

func (m Mode) String() string {
	switch m {
	case ModeWrite:
		return "write"
	case ModeAppend:
		return "append"
	case ModeExtend:
		return "extend"
	case ModeUpdate:
		return "update"
	}
	return "unknown"
}

// Updater merges incoming values into an accumulator variable; the
// ModeUpdate contract. *metrics.Classification implements it.
type Updater interface {
	Update(v interface{}) error
}

type varDef struct {
	init      func() interface{}
	onEachRun bool
}

// VarOption configures InitVariable.
type VarOption func(*varDef)

// WithInit sets an initializer invoked to produce the starting value.
func WithInit(init func() interface{}) VarOption {
	return func(def *varDef) {
		def.init = init
	}
}

// WithDefault sets a fixed starting value.
func WithDefault(value interface{}) VarOption {
	return func(def *varDef) {
		def.init = func() interface{} { return value }
	}
}

// InitOnEachRun re-initializes the variable at every run start instead of
// only the first.
func InitOnEachRun() VarOption {
	return func(def *varDef) {
		def.onEachRun = true
	}
}

// variableTable holds the mutable named slots of one pipeline instance.
// Updates are atomic; prefetch workers may interleave updates between
// batches but never within one.
type variableTable struct {
	mu     sync.Mutex
	values map[string]interface{}
}

func newVariableTable() *variableTable {
	return &variableTable{values: map[string]interface{}{}}
}

func (t *variableTable) define(name string, def *varDef) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, exists := t.values[name]
	if !exists || def.onEachRun {
		t.values[name] = def.init()
	}
}

func (t *variableTable) get(name string) (interface{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	value, ok := t.values[name]
	if !ok {
		return nil, errors.Errorf("variable %q is not defined", name)
	}
	return value, nil
}

func (t *variableTable) update(name string, value interface{}, mode Mode) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch mode {
	case ModeWrite:
		t.values[name] = value
		return nil
	case ModeAppend:
		next, err := appendOne(t.values[name], value)
		if err != nil {
			return errors.Wrapf(err, "cannot append to variable %q", name)
		}
		t.values[name] = next
		return nil
	case ModeExtend:
		next, err := extend(t.values[name], value)
		if err != nil {
			return errors.Wrapf(err, "cannot extend variable %q", name)
		}
		t.values[name] = next
		return nil
	case ModeUpdate:
		current, ok := t.values[name]
		if !ok || current == nil {
			t.values[name] = value
			return nil
		}
		updater, ok := current.(Updater)
		if !ok {
			return errors.Errorf("variable %q of type %T does not support update", name, current)
		}
		return updater.Update(value)
	}
	return errors.Errorf("unknown update mode %d", mode)
}

func appendOne(current, value interface{}) (interface{}, error) {
	switch cur := current.(type) {
	case nil:
		return []interface{}{value}, nil
	case []float64:
		v, ok := value.(float64)
		if !ok {
			return nil, errors.Errorf("expected float64, got %T", value)
		}
		return append(cur, v), nil
	case []int:
		v, ok := value.(int)
		if !ok {
			return nil, errors.Errorf("expected int, got %T", value)
		}
		return append(cur, v), nil
	case []string:
		v, ok := value.(string)
		if !ok {
			return nil, errors.Errorf("expected string, got %T", value)
		}
		return append(cur, v), nil
	case [][]float64:
		v, ok := value.([]float64)
		if !ok {
			return nil, errors.Errorf("expected []float64 row, got %T", value)
		}
		return append(cur, v), nil
	case []interface{}:
		return append(cur, value), nil
	}
	return nil, errors.Errorf("value of type %T does not support append", current)
}

func extend(current, value interface{}) (interface{}, error) {
	if current == nil {
		switch value.(type) {
		case []float64, []int, []string, [][]float64, []interface{}:
			return value, nil
		}
		return nil, errors.Errorf("cannot extend with %T", value)
	}
	switch cur := current.(type) {
	case []float64:
		v, ok := value.([]float64)
		if !ok {
			return nil, errors.Errorf("expected []float64, got %T", value)
		}
		return append(cur, v...), nil
	case []int:
		v, ok := value.([]int)
		if !ok {
			return nil, errors.Errorf("expected []int, got %T", value)
		}
		return append(cur, v...), nil
	case []string:
		v, ok := value.([]string)
		if !ok {
			return nil, errors.Errorf("expected []string, got %T", value)
		}
		return append(cur, v...), nil
	case [][]float64:
		v, ok := value.([][]float64)
		if !ok {
			return nil, errors.Errorf("expected [][]float64, got %T", value)
		}
		return append(cur, v...), nil
	case []interface{}:
		v, ok := value.([]interface{})
		if !ok {
			return nil, errors.Errorf("expected []interface{}, got %T", value)
		}
		return append(cur, v...), nil
	}
	return nil, errors.Errorf("value of type %T does not support extend", current)
}
