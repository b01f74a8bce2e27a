package pipeline

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/smartystreets/goconvey/convey"

	"github.com/Smeilz/dataset/pkg/dataset"
	"github.com/Smeilz/dataset/pkg/models"
)

var softmaxConfig = models.Config{
	"num_features":  2,
	"num_classes":   2,
	"learning_rate": 0.5,
}

// twoClassDataset builds a linearly separable corpus: class 0 sits around
// (-2, 2), class 1 around (2, -2).
func twoClassDataset(n int) *dataset.Dataset {
	images := make(dataset.Float64Matrix, n)
	labels := make(dataset.IntColumn, n)
	for i := 0; i < n; i++ {
		class := i % 2
		center := float64(class*4) - 2.0
		jitter := 0.1 * float64(i%5)
		images[i] = []float64{center + jitter, -center + jitter}
		labels[i] = class
	}
	ds, err := dataset.New(map[string]dataset.Column{
		"images": images,
		"labels": labels,
	})
	if err != nil {
		panic(err)
	}
	return ds
}

func TestPipelineBuilder(t *testing.T) {
	convey.Convey("With a two class dataset", t, func() {
		ds := twoClassDataset(10)

		convey.Convey("a template refuses to run before binding", func() {
			template := New().InitModel("model", models.NewSoftmax, softmaxConfig)

			err := template.Run(3)
			convey.So(errors.Cause(err), convey.ShouldEqual, ErrNotBound)
			_, err = template.Gen(3)
			convey.So(errors.Cause(err), convey.ShouldEqual, ErrNotBound)
			_, err = template.Next(3)
			convey.So(errors.Cause(err), convey.ShouldEqual, ErrNotBound)
		})

		convey.Convey("binding isolates run state from the template", func() {
			template := New().
				InitVariable("loss", WithDefault([]float64{}), InitOnEachRun()).
				InitModel("model", models.NewSoftmax, softmaxConfig).
				TrainModel("model", B("images"), B("labels"), SaveLossTo(V("loss")))

			bound := template.Bind(ds)
			convey.So(bound.Run(5), convey.ShouldBeNil)

			loss, err := bound.Variable("loss")
			convey.So(err, convey.ShouldBeNil)
			convey.So(loss.([]float64), convey.ShouldHaveLength, 2)

			_, err = template.Variable("loss")
			convey.So(err, convey.ShouldNotBeNil)
			_, err = template.Model("model")
			convey.So(err, convey.ShouldNotBeNil)

			convey.Convey("and rebinding yields an independent instance", func() {
				second := template.Bind(ds)
				convey.So(second.Run(5), convey.ShouldBeNil)

				firstModel, err := bound.Model("model")
				convey.So(err, convey.ShouldBeNil)
				secondModel, err := second.Model("model")
				convey.So(err, convey.ShouldBeNil)
				convey.So(secondModel, convey.ShouldNotEqual, firstModel)
			})
		})

		convey.Convey("builder misuse is latched and surfaced on run", func() {
			p := New().TrainModel("", B("images"), B("labels")).Bind(ds)
			err := p.Run(3)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "empty model name")

			convey.Convey("the first error wins", func() {
				p := New().
					GatherMetrics("regression", B("labels"), B("predictions")).
					TrainModel("", B("images"), B("labels")).
					Bind(ds)
				err := p.Run(3)
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, `unsupported kind "regression"`)
			})
		})

		convey.Convey("binding nil is refused at run time", func() {
			p := New().Bind(nil)
			err := p.Run(3)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "nil dataset")
		})

		convey.Convey("non-writable save targets are rejected", func() {
			p := New().
				InitModel("model", models.NewSoftmax, softmaxConfig).
				TrainModel("model", B("images"), B("labels"),
					SaveLossTo(F(func(*Exec) interface{} { return nil }))).
				Bind(ds)
			err := p.Run(3)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "not writable")
		})

		convey.Convey("mutating a running pipeline is refused", func() {
			p := New().Bind(ds)
			iterator, err := p.Gen(3)
			convey.So(err, convey.ShouldBeNil)
			p.Call("late", func(*Exec) error { return nil })
			iterator.Stop()

			err = p.Run(3)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "while the pipeline is running")
		})

		convey.Convey("SetConfig values are readable from the pipeline", func() {
			p := New().SetConfig("lr", 0.25)
			value, err := p.Config("lr")
			convey.So(err, convey.ShouldBeNil)
			convey.So(value, convey.ShouldEqual, 0.25)
			_, err = p.Config("absent")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestPlaceholders(t *testing.T) {
	convey.Convey("With a bound pipeline", t, func() {
		ds := twoClassDataset(10)

		convey.Convey("placeholders resolve against batch, config, variables and functions", func() {
			p := New().
				SetConfig("scale", 2.0).
				InitVariable("lengths", WithDefault([]int{})).
				UpdateVariable("lengths", F(func(ex *Exec) interface{} { return ex.Batch().Len() }), ModeAppend).
				UpdateVariable("scale_seen", C("scale"), ModeWrite).
				UpdateVariable("last_labels", B("labels"), ModeWrite).
				Bind(ds)
			convey.So(p.Run(4), convey.ShouldBeNil)

			lengths, err := p.Variable("lengths")
			convey.So(err, convey.ShouldBeNil)
			convey.So(lengths, convey.ShouldResemble, []int{4, 4, 2})

			scale, err := p.Variable("scale_seen")
			convey.So(err, convey.ShouldBeNil)
			convey.So(scale, convey.ShouldEqual, 2.0)

			labels, err := p.Variable("last_labels")
			convey.So(err, convey.ShouldBeNil)
			convey.So(labels.([]int), convey.ShouldHaveLength, 2)
		})

		convey.Convey("missing references fail the step", func() {
			p := New().UpdateVariable("x", B("nope"), ModeWrite).Bind(ds)
			err := p.Run(4)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, `no component "nope"`)

			p = New().UpdateVariable("x", V("nope"), ModeWrite).Bind(ds)
			err = p.Run(4)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, `variable "nope" is not defined`)

			p = New().UpdateVariable("x", C("nope"), ModeWrite).Bind(ds)
			err = p.Run(4)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, `config key "nope" is not set`)
		})
	})
}

func TestVariableModes(t *testing.T) {
	convey.Convey("With a bound pipeline", t, func() {
		ds := twoClassDataset(10)

		convey.Convey("InitOnEachRun resets while plain variables persist across runs", func() {
			p := New().
				InitVariable("loss", WithDefault([]float64{}), InitOnEachRun()).
				InitVariable("seen", WithInit(func() interface{} { return []int{} })).
				InitModel("model", models.NewSoftmax, softmaxConfig).
				TrainModel("model", B("images"), B("labels"), SaveLossTo(V("loss"))).
				UpdateVariable("seen", F(func(ex *Exec) interface{} { return ex.Batch().Len() }), ModeAppend).
				Bind(ds)

			convey.So(p.Run(3), convey.ShouldBeNil)
			convey.So(p.Run(3), convey.ShouldBeNil)

			loss, err := p.Variable("loss")
			convey.So(err, convey.ShouldBeNil)
			convey.So(loss.([]float64), convey.ShouldHaveLength, 4)

			seen, err := p.Variable("seen")
			convey.So(err, convey.ShouldBeNil)
			convey.So(seen.([]int), convey.ShouldHaveLength, 8)
		})

		convey.Convey("ModeExtend concatenates batch slices", func() {
			p := New().
				InitVariable("order", WithDefault([]int{}), InitOnEachRun()).
				UpdateVariable("order", F(func(ex *Exec) interface{} { return ex.Batch().Indices() }), ModeExtend).
				Bind(ds)
			convey.So(p.Run(4), convey.ShouldBeNil)

			order, err := p.Variable("order")
			convey.So(err, convey.ShouldBeNil)
			convey.So(order, convey.ShouldResemble, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
		})

		convey.Convey("ModeUpdate needs an updater", func() {
			p := New().
				InitVariable("acc", WithDefault(7)).
				UpdateVariable("acc", 1, ModeUpdate).
				Bind(ds)
			err := p.Run(5)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "does not support update")
		})

		convey.Convey("appending mismatched types fails the step", func() {
			p := New().
				InitVariable("loss", WithDefault([]float64{})).
				UpdateVariable("loss", F(func(ex *Exec) interface{} { return ex.Batch().Len() }), ModeAppend).
				Bind(ds)
			err := p.Run(5)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "expected float64")
		})
	})
}

func TestJoin(t *testing.T) {
	convey.Convey("With a primary and a side dataset over the same index space", t, func() {
		ds := twoClassDataset(10)
		weights := make(dataset.Float64Matrix, 10)
		for i := range weights {
			weights[i] = []float64{float64(i)}
		}
		side, err := dataset.New(map[string]dataset.Column{"weights": weights})
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Join exposes the side batch to the following step only", func() {
			p := New().
				Join(side).
				Call("use_join", func(ex *Exec) error {
					joined := ex.Joined()
					if joined == nil {
						return errors.New("no joined batch")
					}
					if joined.Len() != ex.Batch().Len() {
						return errors.New("joined batch size mismatch")
					}
					return ex.SetVariable("joined_rows", joined.Len(), ModeWrite)
				}).
				Call("after_join", func(ex *Exec) error {
					return ex.SetVariable("cleared", ex.Joined() == nil, ModeWrite)
				}).
				Bind(ds)
			convey.So(p.Run(4), convey.ShouldBeNil)

			rows, err := p.Variable("joined_rows")
			convey.So(err, convey.ShouldBeNil)
			convey.So(rows, convey.ShouldEqual, 2)

			cleared, err := p.Variable("cleared")
			convey.So(err, convey.ShouldBeNil)
			convey.So(cleared, convey.ShouldBeTrue)
		})

		convey.Convey("joining over a foreign index space fails", func() {
			smaller := twoClassDataset(4)
			p := New().
				Join(smaller).
				Call("noop", func(*Exec) error { return nil }).
				Bind(ds)
			convey.So(p.Run(5), convey.ShouldNotBeNil)
		})
	})
}

func TestCreateBatch(t *testing.T) {
	convey.Convey("CreateBatch applies steps outside a run and primes models lazily", t, func() {
		ds := twoClassDataset(10)
		p := New().
			InitModel("model", models.NewSoftmax, softmaxConfig).
			PredictModel("model", B("images")).
			Bind(ds)

		batch, err := p.CreateBatch([]int{1, 3, 5})
		convey.So(err, convey.ShouldBeNil)
		convey.So(batch.Len(), convey.ShouldEqual, 3)

		scores, ok := batch.Component("predictions")
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(scores.([][]float64), convey.ShouldHaveLength, 3)

		_, err = p.Model("model")
		convey.So(err, convey.ShouldBeNil)
	})
}
