package main

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/pipeperm/permuter"
	"github.com/YuminosukeSato/pipeperm/pkg/errors"
	ms "github.com/YuminosukeSato/pipeperm/sklearn/model_selection"
)

// ExperimentConfig is the YAML experiment file.
//
//	seed: 42
//	n_jobs: 4
//	scoring: accuracy
//	outer_cv: {kind: stratified_kfold, n_splits: 5, shuffle: true, seed: 1}
//	inner_cv: {kind: kfold, n_splits: 3}
//	steps:
//	  - name: scaler
//	    variants:
//	      - {name: standard, kind: standard_scaler}
//	      - {name: minmax, kind: minmax_scaler}
//	  - name: clf
//	    variants:
//	      - name: knn
//	        kind: knn_classifier
//	        grid: {n_neighbors: [3, 5, 7], weights: [uniform, distance]}
//	        search: {method: random, n_iter: 4}
type ExperimentConfig struct {
	Seed    uint64       `yaml:"seed"`
	NJobs   int          `yaml:"n_jobs" validate:"gte=0"`
	Scoring string       `yaml:"scoring"`
	OuterCV CVConfig     `yaml:"outer_cv"`
	InnerCV CVConfig     `yaml:"inner_cv"`
	Steps   []StepConfig `yaml:"steps" validate:"required,min=1,dive"`
}

// CVConfig selects a splitter. NSplits defaults to 5 for the k-fold kinds.
type CVConfig struct {
	Kind    string `yaml:"kind" validate:"required,oneof=kfold stratified_kfold leave_one_out"`
	NSplits int    `yaml:"n_splits" validate:"omitempty,gte=2"`
	Shuffle bool   `yaml:"shuffle"`
	Seed    uint64 `yaml:"seed"`
}

// StepConfig is one pipeline stage.
type StepConfig struct {
	Name     string          `yaml:"name" validate:"required"`
	Variants []VariantConfig `yaml:"variants" validate:"required,min=1,dive"`
}

// VariantConfig is one estimator choice. Params are fixed hyperparameters
// applied to the template; Grid or SubSpaces define the search space.
type VariantConfig struct {
	Name      string                 `yaml:"name" validate:"required"`
	Kind      string                 `yaml:"kind" validate:"required"`
	Params    map[string]interface{} `yaml:"params"`
	Grid      ms.ParamGrid           `yaml:"grid"`
	SubSpaces []ms.ParamGrid         `yaml:"sub_spaces" validate:"excluded_with=Grid"`
	Search    *SearchConfig          `yaml:"search"`
}

// SearchConfig overrides the search strategy of pipelines using a variant.
type SearchConfig struct {
	Method      string  `yaml:"method" validate:"omitempty,oneof=grid exhaustive random"`
	NIter       int     `yaml:"n_iter" validate:"gte=0"`
	RandomState *uint64 `yaml:"random_state"`
}

var configValidate = validator.New()

// LoadConfig reads and validates an experiment file.
func LoadConfig(path string) (*ExperimentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates an experiment document.
func ParseConfig(data []byte) (*ExperimentConfig, error) {
	var cfg ExperimentConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.NewConfigurationError("experiment", "yaml", err.Error())
	}
	if err := configValidate.Struct(&cfg); err != nil {
		return nil, errors.NewConfigurationError("experiment", "validation", err.Error())
	}
	return &cfg, nil
}

// Splitter builds the configured splitter.
func (c CVConfig) Splitter() ms.Splitter {
	n := c.NSplits
	if n == 0 {
		n = 5
	}
	var opts []ms.SplitterOption
	if c.Shuffle {
		opts = append(opts, ms.WithShuffle(c.Seed))
	}
	switch c.Kind {
	case "stratified_kfold":
		return ms.NewStratifiedKFold(n, opts...)
	case "leave_one_out":
		return ms.NewLeaveOneOut()
	default:
		return ms.NewKFold(n, opts...)
	}
}

// Catalogs turns the experiment into permuter catalogs, instantiating
// estimators from reg.
func (c *ExperimentConfig) Catalogs(reg Registry) (permuter.StepCatalog, permuter.ParamCatalog, permuter.SearchCatalog, error) {
	steps := make(permuter.StepCatalog, len(c.Steps))
	params := permuter.ParamCatalog{}
	search := permuter.SearchCatalog{}

	for i, st := range c.Steps {
		step := permuter.Step{Name: st.Name}
		for _, v := range st.Variants {
			est, err := reg.New(v.Kind)
			if err != nil {
				return nil, nil, nil, errors.NewConfigurationError("experiment", v.Name, err.Error())
			}
			if len(v.Params) > 0 {
				if err := est.SetParams(v.Params); err != nil {
					return nil, nil, nil, errors.NewConfigurationError("experiment", v.Name, err.Error())
				}
			}
			step.Variants = append(step.Variants, permuter.Variant{Name: v.Name, Estimator: est})

			switch {
			case v.Grid != nil:
				params[v.Name] = ms.Grid(v.Grid)
			case v.SubSpaces != nil:
				params[v.Name] = ms.SubSpaces(v.SubSpaces...)
			}
			if v.Search != nil {
				search[v.Name] = permuter.SearchConfig{
					Method:      ms.SearchMethod(v.Search.Method),
					NIter:       v.Search.NIter,
					RandomState: v.Search.RandomState,
				}
			}
		}
		steps[i] = step
	}
	return steps, params, search, nil
}
