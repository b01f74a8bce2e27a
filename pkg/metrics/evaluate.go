package metrics

import (
	"github.com/pkg/errors"
)

// Metric names accepted by Evaluate, EvaluateOne and PerClass.
const (
	Accuracy          = "accuracy"
	Precision         = "precision"
	Recall            = "recall"
	F1                = "f1"
	FalsePositiveRate = "false_positive_rate"
	FalseNegativeRate = "false_negative_rate"
	TruePositiveRate  = "true_positive_rate"
	TrueNegativeRate  = "true_negative_rate"
	// Specificity is an alias of the true negative rate.
	Specificity = "specificity"
)

// Aggregation selects how per-class rates are folded into one number.
type Aggregation int

const (
	// Macro averages the per-class rates, weighting every class equally.
	Macro Aggregation = iota
	// Micro pools the per-class counts before computing the rate.
	Micro
)

type evalConfig struct {
	aggregation Aggregation
}

// EvalOption adjusts a metric query.
type EvalOption func(*evalConfig)

// Multiclass selects the aggregation used for scalar queries.
func Multiclass(aggregation Aggregation) EvalOption {
	return func(cfg *evalConfig) {
		cfg.aggregation = aggregation
	}
}

// classCounts holds the one-vs-rest contingency counts of a single class.
type classCounts struct {
	tp, fp, fn, tn int64
}

func (c *Classification) classCounts(class int) classCounts {
	var counts classCounts
	counts.tp = c.confusion[class][class]

	for predicted, count := range c.confusion[class] {
		if predicted != class {
			counts.fn += count
		}
	}
	for target := range c.confusion {
		if target != class {
			counts.fp += c.confusion[target][class]
		}
	}
	counts.tn = c.total - counts.tp - counts.fp - counts.fn

	return counts
}

// ratio returns a/b with the 0/0 convention of this package.
func ratio(a, b int64) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

func rateFromCounts(name string, counts classCounts) (float64, error) {
	switch name {
	case Precision:
		return ratio(counts.tp, counts.tp+counts.fp), nil
	case Recall, TruePositiveRate:
		return ratio(counts.tp, counts.tp+counts.fn), nil
	case F1:
		precision := ratio(counts.tp, counts.tp+counts.fp)
		recall := ratio(counts.tp, counts.tp+counts.fn)
		if precision+recall == 0 {
			return 0, nil
		}
		return 2 * precision * recall / (precision + recall), nil
	case FalsePositiveRate:
		return ratio(counts.fp, counts.fp+counts.tn), nil
	case FalseNegativeRate:
		return ratio(counts.fn, counts.fn+counts.tp), nil
	case TrueNegativeRate, Specificity:
		return ratio(counts.tn, counts.tn+counts.fp), nil
	default:
		return 0, errors.Errorf("unknown metric %q", name)
	}
}

// Evaluate computes the named metrics in one pass.
func (c *Classification) Evaluate(names []string, opts ...EvalOption) (map[string]float64, error) {
	values := make(map[string]float64, len(names))
	for _, name := range names {
		value, err := c.EvaluateOne(name, opts...)
		if err != nil {
			return nil, err
		}
		values[name] = value
	}
	return values, nil
}

// EvaluateOne computes a single scalar metric. Multiclass rates are
// aggregated with Macro unless overridden; accuracy is always the global
// fraction of correctly classified samples.
func (c *Classification) EvaluateOne(name string, opts ...EvalOption) (float64, error) {
	if c.total == 0 {
		return 0, errors.New("cannot evaluate an empty accumulator")
	}

	cfg := evalConfig{aggregation: Macro}
	for _, opt := range opts {
		opt(&cfg)
	}

	if name == Accuracy {
		var correct int64
		for class := range c.confusion {
			correct += c.confusion[class][class]
		}
		return ratio(correct, c.total), nil
	}

	switch cfg.aggregation {
	case Micro:
		var pooled classCounts
		for class := range c.confusion {
			counts := c.classCounts(class)
			pooled.tp += counts.tp
			pooled.fp += counts.fp
			pooled.fn += counts.fn
			pooled.tn += counts.tn
		}
		return rateFromCounts(name, pooled)

	case Macro:
		perClass, err := c.PerClass(name)
		if err != nil {
			return 0, err
		}

		var sum float64
		for _, value := range perClass {
			sum += value
		}
		return sum / float64(len(perClass)), nil

	default:
		return 0, errors.Errorf("unknown aggregation %d", cfg.aggregation)
	}
}

// PerClass computes the named rate for every class, one-vs-rest.
func (c *Classification) PerClass(name string) ([]float64, error) {
	if c.total == 0 {
		return nil, errors.New("cannot evaluate an empty accumulator")
	}
	if name == Accuracy {
		return nil, errors.New("accuracy has no per-class form, query a rate instead")
	}

	values := make([]float64, len(c.confusion))
	for class := range c.confusion {
		value, err := rateFromCounts(name, c.classCounts(class))
		if err != nil {
			return nil, err
		}
		values[class] = value
	}

	return values, nil
}
