package permuter

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/pipeperm/core/model"
	"github.com/YuminosukeSato/pipeperm/metrics"
	"github.com/YuminosukeSato/pipeperm/pkg/errors"
)

// PipelineScores is one row of the score table: a definition's outer test
// score per fold. Failed folds hold NaN and are flagged in Failed.
type PipelineScores struct {
	Pipeline string
	Index    int
	Scores   []float64
	Failed   []bool
}

// MeanScore aggregates a definition's outer test scores.
type MeanScore struct {
	Rank     int
	Pipeline string
	Index    int
	// Mean and Std are over successful folds only; NaN when every fold failed.
	Mean    float64
	Std     float64
	NFolds  int
	NFailed int
}

// Complete reports whether every fold of the pipeline succeeded.
func (s MeanScore) Complete() bool {
	return s.NFailed == 0
}

// BestEstimator is the best outer fold of a definition.
type BestEstimator struct {
	Pipeline string
	Index    int
	// Fold is -1 when every fold failed; Err then holds the first failure.
	Fold      int
	Score     float64
	Params    map[string]interface{}
	Estimator model.Estimator
	Err       error
}

// PipelineParams lists the selected hyperparameters of a definition per
// outer fold. Failed folds have nil entries.
type PipelineParams struct {
	Pipeline string
	Index    int
	Folds    []map[string]interface{}
}

// PipelineMetrics summarises predictions of a definition. For
// classification tasks the Classification reports are set, otherwise the
// Regression ones. Best refers to the best outer fold; Pooled concatenates
// all successful folds.
type PipelineMetrics struct {
	Pipeline string
	Index    int
	BestFold int

	YTrue []float64
	YPred []float64

	Classification       *metrics.ClassificationReport
	PooledClassification *metrics.ClassificationReport
	Regression           *metrics.RegressionReport
	PooledRegression     *metrics.RegressionReport

	Err error
}

// loaded returns the current table, or a QueryError before the first fit.
func (p *Permuter) loaded(view string) (*ResultTable, error) {
	t := p.snapshot()
	if t == nil {
		return nil, errors.NewQueryError(view, errors.ErrNoResults)
	}
	return t, nil
}

// clone copies r so that callers cannot reach the table's slices or maps.
// The fitted Estimator is shared.
func (r FoldResult) clone() FoldResult {
	r.Definition = r.Definition.clone()
	r.TrainIndices = append([]int(nil), r.TrainIndices...)
	r.TestIndices = append([]int(nil), r.TestIndices...)
	r.YTrue = cloneFloats(r.YTrue)
	r.YPred = cloneFloats(r.YPred)
	if r.BestParams != nil {
		r.BestParams = model.CopyParams(r.BestParams)
	}
	return r
}

func cloneFloats(v []float64) []float64 {
	if v == nil {
		return nil
	}
	return append([]float64(nil), v...)
}

// RunID returns the id of the run behind the current results.
func (p *Permuter) RunID() (string, error) {
	t, err := p.loaded("RunID")
	if err != nil {
		return "", err
	}
	return t.RunID, nil
}

// Results returns a copy of the raw table ordered by (definition, fold).
func (p *Permuter) Results() ([]FoldResult, error) {
	t, err := p.loaded("Results")
	if err != nil {
		return nil, err
	}
	out := make([]FoldResult, len(t.Results))
	for i, r := range t.Results {
		out[i] = r.clone()
	}
	return out, nil
}

// Scoring returns the name of the scorer used by the current results.
func (p *Permuter) Scoring() (string, error) {
	t, err := p.loaded("Scoring")
	if err != nil {
		return "", err
	}
	return t.Scoring, nil
}

// ScoreTable returns the outer test scores per definition and fold, in
// enumeration order.
func (p *Permuter) ScoreTable() ([]PipelineScores, error) {
	t, err := p.loaded("ScoreTable")
	if err != nil {
		return nil, err
	}
	out := make([]PipelineScores, len(p.defs))
	for d, def := range p.defs {
		row := PipelineScores{
			Pipeline: def.Name(),
			Index:    def.Index,
			Scores:   make([]float64, t.NFolds),
			Failed:   make([]bool, t.NFolds),
		}
		for f := 0; f < t.NFolds; f++ {
			r := t.at(d, f)
			row.Scores[f] = r.TestScore
			row.Failed[f] = r.Failed()
		}
		out[d] = row
	}
	return out, nil
}

// MeanScores returns per-definition mean and standard deviation of outer
// test scores, best first. Complete pipelines rank before pipelines with
// failed folds, and pipelines whose folds all failed come last. Within a
// group, higher means rank first and ties keep enumeration order.
func (p *Permuter) MeanScores() ([]MeanScore, error) {
	t, err := p.loaded("MeanScores")
	if err != nil {
		return nil, err
	}
	return meanScores(p.defs, t), nil
}

func meanScores(defs []Definition, t *ResultTable) []MeanScore {
	out := make([]MeanScore, len(defs))
	for d, def := range defs {
		ok := make([]float64, 0, t.NFolds)
		for f := 0; f < t.NFolds; f++ {
			if r := t.at(d, f); !r.Failed() {
				ok = append(ok, r.TestScore)
			}
		}
		row := MeanScore{
			Pipeline: def.Name(),
			Index:    def.Index,
			Mean:     math.NaN(),
			Std:      math.NaN(),
			NFolds:   t.NFolds,
			NFailed:  t.NFolds - len(ok),
		}
		if len(ok) > 0 {
			row.Mean, row.Std = stat.PopMeanStdDev(ok, nil)
		}
		out[d] = row
	}

	group := func(s MeanScore) int {
		switch {
		case s.NFailed == 0:
			return 0
		case s.NFailed < s.NFolds:
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		gi, gj := group(out[i]), group(out[j])
		if gi != gj {
			return gi < gj
		}
		if gi == 2 {
			return false
		}
		return out[i].Mean > out[j].Mean
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// BestPipeline returns the first row of MeanScores.
func (p *Permuter) BestPipeline() (MeanScore, error) {
	t, err := p.loaded("BestPipeline")
	if err != nil {
		return MeanScore{}, err
	}
	return meanScores(p.defs, t)[0], nil
}

// bestFold returns the fold with the highest test score, the first one on
// ties, or -1 when every fold failed.
func bestFold(t *ResultTable, d int) int {
	best := -1
	for f := 0; f < t.NFolds; f++ {
		r := t.at(d, f)
		if r.Failed() {
			continue
		}
		if best < 0 || r.TestScore > t.at(d, best).TestScore {
			best = f
		}
	}
	return best
}

func firstFailure(t *ResultTable, d int) error {
	for f := 0; f < t.NFolds; f++ {
		if r := t.at(d, f); r.Failed() {
			return r.Err
		}
	}
	return nil
}

// BestEstimators returns, per definition in enumeration order, the
// refit pipeline of its best outer fold.
func (p *Permuter) BestEstimators() ([]BestEstimator, error) {
	t, err := p.loaded("BestEstimators")
	if err != nil {
		return nil, err
	}
	out := make([]BestEstimator, len(p.defs))
	for d, def := range p.defs {
		be := BestEstimator{Pipeline: def.Name(), Index: def.Index, Fold: bestFold(t, d), Score: math.NaN()}
		if be.Fold < 0 {
			be.Err = firstFailure(t, d)
		} else {
			r := t.at(d, be.Fold)
			be.Score = r.TestScore
			be.Params = model.CopyParams(r.BestParams)
			be.Estimator = r.Estimator
		}
		out[d] = be
	}
	return out, nil
}

// BestHyperparameters returns the hyperparameters selected by the inner
// search of every outer fold.
func (p *Permuter) BestHyperparameters() ([]PipelineParams, error) {
	t, err := p.loaded("BestHyperparameters")
	if err != nil {
		return nil, err
	}
	out := make([]PipelineParams, len(p.defs))
	for d, def := range p.defs {
		pp := PipelineParams{Pipeline: def.Name(), Index: def.Index, Folds: make([]map[string]interface{}, t.NFolds)}
		for f := 0; f < t.NFolds; f++ {
			if r := t.at(d, f); !r.Failed() {
				pp.Folds[f] = model.CopyParams(r.BestParams)
			}
		}
		out[d] = pp
	}
	return out, nil
}

// MetricSummary returns prediction reports per definition: confusion
// matrix, precision, recall and F1 for classifiers, residual statistics
// for regressors. Definitions whose folds all failed carry Err.
func (p *Permuter) MetricSummary() ([]PipelineMetrics, error) {
	t, err := p.loaded("MetricSummary")
	if err != nil {
		return nil, err
	}
	out := make([]PipelineMetrics, len(p.defs))
	for d, def := range p.defs {
		pm := PipelineMetrics{Pipeline: def.Name(), Index: def.Index, BestFold: bestFold(t, d)}
		if pm.BestFold < 0 {
			pm.Err = firstFailure(t, d)
			out[d] = pm
			continue
		}

		best := t.at(d, pm.BestFold)
		pm.YTrue, pm.YPred = cloneFloats(best.YTrue), cloneFloats(best.YPred)
		var pooledTrue, pooledPred []float64
		for f := 0; f < t.NFolds; f++ {
			if r := t.at(d, f); !r.Failed() {
				pooledTrue = append(pooledTrue, r.YTrue...)
				pooledPred = append(pooledPred, r.YPred...)
			}
		}

		if err := fillReports(&pm, t.classification, pooledTrue, pooledPred); err != nil {
			pm.Err = err
		}
		out[d] = pm
	}
	return out, nil
}

func fillReports(pm *PipelineMetrics, classification bool, pooledTrue, pooledPred []float64) error {
	bestTrue := mat.NewVecDense(len(pm.YTrue), pm.YTrue)
	bestPred := mat.NewVecDense(len(pm.YPred), pm.YPred)
	allTrue := mat.NewVecDense(len(pooledTrue), pooledTrue)
	allPred := mat.NewVecDense(len(pooledPred), pooledPred)

	var err error
	if classification {
		if pm.Classification, err = metrics.NewClassificationReport(bestTrue, bestPred); err != nil {
			return err
		}
		pm.PooledClassification, err = metrics.NewClassificationReport(allTrue, allPred)
		return err
	}
	if pm.Regression, err = metrics.NewRegressionReport(bestTrue, bestPred); err != nil {
		return err
	}
	pm.PooledRegression, err = metrics.NewRegressionReport(allTrue, allPred)
	return err
}
