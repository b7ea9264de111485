// Package pipeline chains named estimators into a single estimator.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/YuminosukeSato/pipeperm/core/model"
	"github.com/YuminosukeSato/pipeperm/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ParamSep separates the step name from the parameter name in routed
// parameter keys, e.g. "clf__n_neighbors".
const ParamSep = "__"

// Step is one named stage of a Pipeline.
type Step struct {
	Name      string
	Estimator model.Estimator
}

// Pipeline はステップを順に適用する推定器
// 中間ステップは model.Transformer を実装している必要がある
type Pipeline struct {
	steps []Step
}

// New builds a pipeline. Step names must be non-empty, unique and free of
// ParamSep; every step but the last must be a Transformer.
func New(steps ...Step) (*Pipeline, error) {
	if len(steps) == 0 {
		return nil, errors.NewValueError("pipeline.New", "at least one step is required")
	}
	seen := make(map[string]struct{}, len(steps))
	for i, s := range steps {
		if s.Name == "" || strings.Contains(s.Name, ParamSep) {
			return nil, errors.NewValidationError("step", "name must be non-empty and must not contain "+ParamSep, s.Name)
		}
		if _, dup := seen[s.Name]; dup {
			return nil, errors.NewValidationError("step", "duplicate step name", s.Name)
		}
		seen[s.Name] = struct{}{}
		if s.Estimator == nil {
			return nil, errors.NewValidationError("step", "estimator is nil", s.Name)
		}
		if i < len(steps)-1 {
			if _, ok := s.Estimator.(model.Transformer); !ok {
				return nil, errors.NewValidationError("step",
					fmt.Sprintf("intermediate step %s does not implement Transform", model.NameOf(s.Estimator)), s.Name)
			}
		}
	}
	return &Pipeline{steps: append([]Step(nil), steps...)}, nil
}

// Steps returns the steps in order.
func (p *Pipeline) Steps() []Step {
	return append([]Step(nil), p.steps...)
}

// Final returns the last step's estimator.
func (p *Pipeline) Final() model.Estimator {
	return p.steps[len(p.steps)-1].Estimator
}

// Name implements model.Named.
func (p *Pipeline) Name() string {
	parts := make([]string, len(p.steps))
	for i, s := range p.steps {
		parts[i] = s.Name + "=" + model.NameOf(s.Estimator)
	}
	return "Pipeline(" + strings.Join(parts, ", ") + ")"
}

// Fit fits every intermediate step on the output of the previous one, then
// fits the final step.
func (p *Pipeline) Fit(X, y mat.Matrix) error {
	Xt, err := p.fitTransformPrefix(X, y)
	if err != nil {
		return err
	}
	last := p.steps[len(p.steps)-1]
	if err := last.Estimator.Fit(Xt, y); err != nil {
		return errors.Wrapf(err, "pipeline step %q fit", last.Name)
	}
	return nil
}

func (p *Pipeline) fitTransformPrefix(X, y mat.Matrix) (mat.Matrix, error) {
	Xt := X
	for _, s := range p.steps[:len(p.steps)-1] {
		out, err := model.FitTransform(s.Estimator, Xt, y)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline step %q fit", s.Name)
		}
		Xt = out
	}
	return Xt, nil
}

func (p *Pipeline) transformPrefix(X mat.Matrix) (mat.Matrix, error) {
	Xt := X
	for _, s := range p.steps[:len(p.steps)-1] {
		out, err := s.Estimator.(model.Transformer).Transform(Xt)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline step %q transform", s.Name)
		}
		Xt = out
	}
	return Xt, nil
}

// Predict transforms X through the intermediate steps and predicts with
// the final step.
func (p *Pipeline) Predict(X mat.Matrix) (mat.Matrix, error) {
	last := p.steps[len(p.steps)-1]
	pred, ok := last.Estimator.(model.Predictor)
	if !ok {
		return nil, errors.NewValueError("Pipeline.Predict",
			fmt.Sprintf("final step %q (%s) does not implement Predict", last.Name, model.NameOf(last.Estimator)))
	}
	Xt, err := p.transformPrefix(X)
	if err != nil {
		return nil, err
	}
	out, err := pred.Predict(Xt)
	if err != nil {
		return nil, errors.Wrapf(err, "pipeline step %q predict", last.Name)
	}
	return out, nil
}

// Transform applies every step; the final step must be a Transformer.
func (p *Pipeline) Transform(X mat.Matrix) (mat.Matrix, error) {
	last := p.steps[len(p.steps)-1]
	t, ok := last.Estimator.(model.Transformer)
	if !ok {
		return nil, errors.NewValueError("Pipeline.Transform",
			fmt.Sprintf("final step %q (%s) does not implement Transform", last.Name, model.NameOf(last.Estimator)))
	}
	Xt, err := p.transformPrefix(X)
	if err != nil {
		return nil, err
	}
	return t.Transform(Xt)
}

// GetParams returns every step's parameters keyed "step__param".
func (p *Pipeline) GetParams() map[string]interface{} {
	out := make(map[string]interface{})
	for _, s := range p.steps {
		for k, v := range s.Estimator.GetParams() {
			out[s.Name+ParamSep+k] = v
		}
	}
	return out
}

// SetParams routes "step__param" keys to the named step. Keys without a
// known step prefix are rejected before any step is modified.
func (p *Pipeline) SetParams(params map[string]interface{}) error {
	routed := make(map[string]map[string]interface{})
	for key, value := range params {
		stepName, param, ok := strings.Cut(key, ParamSep)
		if !ok || param == "" {
			return errors.NewValidationError(key, "pipeline parameters must be named step"+ParamSep+"param", value)
		}
		if p.step(stepName) == nil {
			return errors.NewValidationError(key, "unknown pipeline step "+stepName, value)
		}
		if routed[stepName] == nil {
			routed[stepName] = make(map[string]interface{})
		}
		routed[stepName][param] = value
	}

	for _, s := range p.steps {
		if ps, ok := routed[s.Name]; ok {
			if err := s.Estimator.SetParams(ps); err != nil {
				return errors.Wrapf(err, "pipeline step %q", s.Name)
			}
		}
	}
	return nil
}

func (p *Pipeline) step(name string) *Step {
	for i := range p.steps {
		if p.steps[i].Name == name {
			return &p.steps[i]
		}
	}
	return nil
}

// Clone clones every step.
func (p *Pipeline) Clone() model.Estimator {
	steps := make([]Step, len(p.steps))
	for i, s := range p.steps {
		steps[i] = Step{Name: s.Name, Estimator: s.Estimator.Clone()}
	}
	return &Pipeline{steps: steps}
}

func (p *Pipeline) String() string {
	return p.Name()
}
