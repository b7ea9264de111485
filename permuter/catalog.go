package permuter

import (
	"strings"

	"github.com/YuminosukeSato/pipeperm/core/model"
	"github.com/YuminosukeSato/pipeperm/pkg/errors"
	ms "github.com/YuminosukeSato/pipeperm/sklearn/model_selection"
	"github.com/YuminosukeSato/pipeperm/sklearn/pipeline"
)

// Variant is one named estimator choice for a step. The estimator is a
// template: every evaluation unit works on its own clone.
type Variant struct {
	Name      string
	Estimator model.Estimator
}

// Step is a named pipeline stage with its variants in insertion order.
type Step struct {
	Name     string
	Variants []Variant
}

// StepCatalog lists the pipeline stages in order.
type StepCatalog []Step

// ParamCatalog maps a variant name to its search space. Variants without an
// entry have no tunable parameters. Since the key is the bare variant name,
// variant names must be unique across all steps.
type ParamCatalog map[string]ms.ParamSpace

// SearchConfig overrides the search strategy for pipelines containing a
// variant. NIter is required for random search. RandomState, when set,
// replaces the permuter's seed for those pipelines.
type SearchConfig struct {
	Method      ms.SearchMethod
	NIter       int
	RandomState *uint64
}

// SearchCatalog maps a variant name to its SearchConfig.
type SearchCatalog map[string]SearchConfig

// Choice is the variant picked for one step.
type Choice struct {
	Step    string
	Variant string
}

// Definition is one element of the Cartesian product of step variants.
type Definition struct {
	Index   int
	Choices []Choice

	search SearchConfig
	name   string
}

// Name identifies the definition, e.g. "scaler=standard|clf=knn".
func (d Definition) Name() string {
	return d.name
}

// Search returns the search strategy resolved for the definition.
func (d Definition) Search() SearchConfig {
	return d.search
}

func (d Definition) clone() Definition {
	d.Choices = append([]Choice(nil), d.Choices...)
	if d.search.RandomState != nil {
		seed := *d.search.RandomState
		d.search.RandomState = &seed
	}
	return d
}

func definitionName(choices []Choice) string {
	parts := make([]string, len(choices))
	for i, c := range choices {
		parts[i] = c.Step + "=" + c.Variant
	}
	return strings.Join(parts, "|")
}

type catalogs struct {
	steps    StepCatalog
	variants map[string]Variant
	params   ParamCatalog
	search   SearchCatalog
}

// validate checks the catalogs before anything is built. All problems are
// ConfigurationErrors.
func validate(steps StepCatalog, params ParamCatalog, search SearchCatalog) (*catalogs, error) {
	if len(steps) == 0 {
		return nil, errors.NewConfigurationError("step catalog", "", "no steps")
	}

	c := &catalogs{
		steps:    make(StepCatalog, len(steps)),
		variants: make(map[string]Variant),
		params:   make(ParamCatalog, len(params)),
		search:   make(SearchCatalog, len(search)),
	}
	stepNames := make(map[string]struct{}, len(steps))
	variantStep := make(map[string]string)
	for i, st := range steps {
		if st.Name == "" || strings.Contains(st.Name, pipeline.ParamSep) {
			return nil, errors.NewConfigurationError("step catalog", st.Name,
				"step names must be non-empty and must not contain "+pipeline.ParamSep)
		}
		if _, dup := stepNames[st.Name]; dup {
			return nil, errors.NewConfigurationError("step catalog", st.Name, "duplicate step name")
		}
		stepNames[st.Name] = struct{}{}
		if len(st.Variants) == 0 {
			return nil, errors.NewConfigurationError("step catalog", st.Name,
				"step has no variants, so no pipeline can be built")
		}

		final := i == len(steps)-1
		for _, v := range st.Variants {
			if v.Name == "" {
				return nil, errors.NewConfigurationError("step catalog", st.Name, "variant with empty name")
			}
			if owner, dup := variantStep[v.Name]; dup {
				if owner == st.Name {
					return nil, errors.NewConfigurationError("step catalog", v.Name,
						"duplicate variant in step "+st.Name)
				}
				return nil, errors.NewConfigurationError("step catalog", v.Name,
					"variant name already used by step "+owner+
						"; ParamCatalog and SearchCatalog are keyed by variant name, so names must be unique across steps")
			}
			variantStep[v.Name] = st.Name
			if v.Estimator == nil {
				return nil, errors.NewConfigurationError("step catalog", v.Name, "estimator is nil")
			}
			if !final {
				if _, ok := v.Estimator.(model.Transformer); !ok {
					return nil, errors.NewConfigurationError("step catalog", v.Name,
						"variants of intermediate step "+st.Name+" must implement Transform")
				}
			} else if _, ok := v.Estimator.(model.Predictor); !ok {
				return nil, errors.NewConfigurationError("step catalog", v.Name,
					"variants of the final step must implement Predict")
			}
			c.variants[v.Name] = v
		}
		c.steps[i] = Step{Name: st.Name, Variants: append([]Variant(nil), st.Variants...)}
	}

	for name, space := range params {
		if _, ok := c.variants[name]; !ok {
			return nil, errors.NewConfigurationError("parameter catalog", name, "unknown variant")
		}
		if err := space.Validate(); err != nil {
			return nil, errors.NewConfigurationError("parameter catalog", name, err.Error())
		}
		c.params[name] = space
	}

	for name, cfg := range search {
		if _, ok := c.variants[name]; !ok {
			return nil, errors.NewConfigurationError("search config", name, "unknown variant")
		}
		method, err := ms.ParseSearchMethod(string(cfg.Method))
		if err != nil {
			return nil, errors.NewConfigurationError("search config", name, err.Error())
		}
		if method == ms.MethodRandom && cfg.NIter <= 0 {
			return nil, errors.NewConfigurationError("search config", name,
				"random search requires a positive n_iter")
		}
		cfg.Method = method
		if cfg.RandomState != nil {
			seed := *cfg.RandomState
			cfg.RandomState = &seed
		}
		c.search[name] = cfg
	}
	return c, nil
}

// enumerate returns the Cartesian product of the step variants in step
// order; within a step, variants keep insertion order and the last step
// varies fastest.
func (c *catalogs) enumerate() []Definition {
	total := 1
	for _, st := range c.steps {
		total *= len(st.Variants)
	}

	defs := make([]Definition, total)
	for idx := range defs {
		choices := make([]Choice, len(c.steps))
		rem := idx
		for s := len(c.steps) - 1; s >= 0; s-- {
			vs := c.steps[s].Variants
			choices[s] = Choice{Step: c.steps[s].Name, Variant: vs[rem%len(vs)].Name}
			rem /= len(vs)
		}
		defs[idx] = Definition{
			Index:   idx,
			Choices: choices,
			search:  c.resolveSearch(choices),
			name:    definitionName(choices),
		}
	}
	return defs
}

// resolveSearch picks the SearchConfig of the last step whose variant has
// one; grid search otherwise.
func (c *catalogs) resolveSearch(choices []Choice) SearchConfig {
	for i := len(choices) - 1; i >= 0; i-- {
		if cfg, ok := c.search[choices[i].Variant]; ok {
			return cfg
		}
	}
	return SearchConfig{Method: ms.MethodGrid}
}

// space merges the parameter spaces of a definition's variants.
func (c *catalogs) space(d Definition) ms.SearchSpace {
	steps := make([]ms.StepSpace, len(d.Choices))
	for i, ch := range d.Choices {
		steps[i] = ms.StepSpace{Step: ch.Step, Space: c.params[ch.Variant]}
	}
	return ms.Merge(steps...)
}

// build clones the variant templates into a fresh pipeline.
func (c *catalogs) build(d Definition) (*pipeline.Pipeline, error) {
	steps := make([]pipeline.Step, len(d.Choices))
	for i, ch := range d.Choices {
		steps[i] = pipeline.Step{Name: ch.Step, Estimator: c.variants[ch.Variant].Estimator.Clone()}
	}
	return pipeline.New(steps...)
}

// classification reports whether every final-step variant is a Classifier.
func (c *catalogs) classification() bool {
	for _, v := range c.steps[len(c.steps)-1].Variants {
		if _, ok := v.Estimator.(model.Classifier); !ok {
			return false
		}
	}
	return true
}
