package permuter

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pipeperm/core/model"
	"github.com/YuminosukeSato/pipeperm/pkg/errors"
)

// shift adds a constant to every feature.
type shift struct {
	by float64
}

func (s *shift) Fit(_, _ mat.Matrix) error { return nil }

func (s *shift) Transform(X mat.Matrix) (mat.Matrix, error) {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 { return v + s.by }, X)
	return &out, nil
}

func (s *shift) GetParams() map[string]interface{} {
	return map[string]interface{}{"by": s.by}
}

func (s *shift) SetParams(p map[string]interface{}) error {
	for k, v := range p {
		if k != "by" {
			return model.UnknownParamError("shift", k)
		}
		by, err := model.ParamFloat(k, v)
		if err != nil {
			return err
		}
		s.by = by
	}
	return nil
}

func (s *shift) Clone() model.Estimator { return &shift{by: s.by} }

// constantClassifier predicts label for every row. mode "fail" makes Fit
// return an error and "panic" makes it panic.
type constantClassifier struct {
	label int
	mode  string
}

func (c *constantClassifier) Fit(_, _ mat.Matrix) error {
	switch c.mode {
	case "fail":
		return errors.New("configured to fail")
	case "panic":
		panic("configured to panic")
	}
	return nil
}

func (c *constantClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, float64(c.label))
	}
	return out, nil
}

func (c *constantClassifier) Classes() []int { return []int{c.label} }

func (c *constantClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{"label": c.label, "mode": c.mode}
}

func (c *constantClassifier) SetParams(p map[string]interface{}) error {
	for k, v := range p {
		var err error
		switch k {
		case "label":
			c.label, err = model.ParamInt(k, v)
		case "mode":
			c.mode, err = model.ParamString(k, v)
		default:
			return model.UnknownParamError("constantClassifier", k)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *constantClassifier) Clone() model.Estimator {
	return &constantClassifier{label: c.label, mode: c.mode}
}

// blobs returns n rows in two well separated classes with interleaved
// labels, so unshuffled folds still see both classes.
func blobs(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		label := float64(i % 2)
		jitter := float64(i%5) * 0.1
		X.Set(i, 0, label*4+jitter)
		X.Set(i, 1, label*4-jitter)
		y.Set(i, 0, label)
	}
	return X, y
}

// line returns y = 2x + 1 with a small deterministic wobble.
func line(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x := float64(i)
		X.Set(i, 0, x)
		y.Set(i, 0, 2*x+1+float64(i%3)*0.01)
	}
	return X, y
}
