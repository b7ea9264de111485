package permuter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pipeperm/pkg/errors"
	"github.com/YuminosukeSato/pipeperm/pkg/log"
	"github.com/YuminosukeSato/pipeperm/preprocessing"
	"github.com/YuminosukeSato/pipeperm/sklearn/linear_model"
	ms "github.com/YuminosukeSato/pipeperm/sklearn/model_selection"
	"github.com/YuminosukeSato/pipeperm/sklearn/neighbors"
)

func quiet(t *testing.T) log.Logger {
	t.Helper()
	errors.SetWarningHandler(func(error) {})
	t.Cleanup(func() { errors.SetWarningHandler(func(error) {}) })
	logger, _ := log.NewTestLogger(log.LevelError)
	return logger
}

func classifierCatalog() StepCatalog {
	return StepCatalog{
		{Name: "scaler", Variants: []Variant{
			{Name: "standard", Estimator: preprocessing.NewStandardScaler()},
		}},
		{Name: "clf", Variants: []Variant{
			{Name: "knn", Estimator: neighbors.NewKNeighborsClassifier()},
			{Name: "logreg", Estimator: linear_model.NewLogisticRegression()},
		}},
	}
}

func TestPermuter_EndToEnd(t *testing.T) {
	logger := quiet(t)
	X, y := blobs(20)

	p, err := New(classifierCatalog(),
		ParamCatalog{"knn": ms.Grid(ms.ParamGrid{"n_neighbors": {1, 3}})},
		nil,
		WithLogger(logger), WithNJobs(4),
	)
	require.NoError(t, err)
	require.Equal(t, 2, p.NumDefinitions())
	assert.True(t, p.Classification())

	err = p.Fit(context.Background(), X, y, ms.NewKFold(2), ms.NewKFold(2))
	require.NoError(t, err)

	results, err := p.Results()
	require.NoError(t, err)
	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, i/2, r.Definition.Index, "ordered by definition")
		assert.Equal(t, i%2, r.Fold, "then by fold")
		require.NoError(t, r.Err)
		assert.GreaterOrEqual(t, r.TestScore, 0.0)
		assert.LessOrEqual(t, r.TestScore, 1.0)
		assert.Len(t, r.YTrue, len(r.TestIndices))
		assert.Len(t, r.YPred, len(r.TestIndices))
		assert.NotNil(t, r.Estimator)
	}
	assert.Equal(t, 2, results[0].Candidates, "knn grid has two configurations")
	assert.Equal(t, 1, results[2].Candidates, "logreg has no parameter space")

	scoring, err := p.Scoring()
	require.NoError(t, err)
	assert.Equal(t, "accuracy", scoring)

	means, err := p.MeanScores()
	require.NoError(t, err)
	require.Len(t, means, 2)
	assert.GreaterOrEqual(t, means[0].Mean, means[1].Mean)
	assert.Equal(t, 1, means[0].Rank)

	best, err := p.BestPipeline()
	require.NoError(t, err)
	assert.Equal(t, means[0], best)

	params, err := p.BestHyperparameters()
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.Equal(t, "scaler=standard|clf=knn", params[0].Pipeline)
	for _, fold := range params[0].Folds {
		assert.Contains(t, fold, "clf__n_neighbors")
	}

	summary, err := p.MetricSummary()
	require.NoError(t, err)
	for _, s := range summary {
		require.NoError(t, s.Err)
		require.NotNil(t, s.Classification)
		require.NotNil(t, s.PooledClassification)
		assert.Nil(t, s.Regression)
		assert.Equal(t, []int{0, 1}, s.PooledClassification.Labels)
		assert.Equal(t, 20, sumDense(s.PooledClassification.Confusion))
	}

	estimators, err := p.BestEstimators()
	require.NoError(t, err)
	for _, be := range estimators {
		assert.NotNil(t, be.Estimator)
		assert.GreaterOrEqual(t, be.Fold, 0)
	}

	id, err := p.RunID()
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func sumDense(m *mat.Dense) int {
	return int(mat.Sum(m))
}

func TestPermuter_Regression(t *testing.T) {
	logger := quiet(t)
	X, y := line(12)

	p, err := New(
		StepCatalog{
			{Name: "reg", Variants: []Variant{
				{Name: "ols", Estimator: linear_model.NewLinearRegression()},
				{Name: "ridge", Estimator: linear_model.NewRidge()},
			}},
		},
		ParamCatalog{"ridge": ms.Grid(ms.ParamGrid{"alpha": {0.1, 1.0}})},
		nil,
		WithLogger(logger),
	)
	require.NoError(t, err)
	assert.False(t, p.Classification())

	require.NoError(t, p.Fit(context.Background(), X, y, ms.NewKFold(3), ms.NewKFold(2)))

	scoring, err := p.Scoring()
	require.NoError(t, err)
	assert.Equal(t, "r2", scoring)

	summary, err := p.MetricSummary()
	require.NoError(t, err)
	for _, s := range summary {
		require.NoError(t, s.Err)
		require.NotNil(t, s.Regression)
		require.NotNil(t, s.PooledRegression)
		assert.Nil(t, s.Classification)
		assert.Equal(t, 12, s.PooledRegression.N)
	}
}

func TestEnumerate_CartesianProduct(t *testing.T) {
	steps := StepCatalog{
		{Name: "a", Variants: []Variant{{Name: "a0", Estimator: &shift{}}, {Name: "a1", Estimator: &shift{}}}},
		{Name: "b", Variants: []Variant{
			{Name: "b0", Estimator: &shift{}}, {Name: "b1", Estimator: &shift{}}, {Name: "b2", Estimator: &shift{}},
		}},
		{Name: "c", Variants: []Variant{{Name: "c0", Estimator: &constantClassifier{}}, {Name: "c1", Estimator: &constantClassifier{}}}},
	}
	p, err := New(steps, nil, nil)
	require.NoError(t, err)

	defs := p.Definitions()
	require.Len(t, defs, 2*3*2)
	assert.Equal(t, "a=a0|b=b0|c=c0", defs[0].Name())
	assert.Equal(t, "a=a0|b=b0|c=c1", defs[1].Name())
	assert.Equal(t, "a=a0|b=b1|c=c0", defs[2].Name())
	assert.Equal(t, "a=a1|b=b2|c=c1", defs[11].Name())

	seen := make(map[string]bool)
	for i, d := range defs {
		assert.Equal(t, i, d.Index)
		assert.False(t, seen[d.Name()], "duplicate %s", d.Name())
		seen[d.Name()] = true
		require.Len(t, d.Choices, 3)
		assert.Equal(t, []string{"a", "b", "c"}, []string{d.Choices[0].Step, d.Choices[1].Step, d.Choices[2].Step})
	}
}

func TestNew_ConfigurationErrors(t *testing.T) {
	clf := func(name string) Variant { return Variant{Name: name, Estimator: &constantClassifier{}} }
	one := StepCatalog{{Name: "clf", Variants: []Variant{clf("c")}}}

	tests := []struct {
		name   string
		steps  StepCatalog
		params ParamCatalog
		search SearchCatalog
	}{
		{name: "no steps", steps: nil},
		{name: "empty step", steps: StepCatalog{{Name: "clf"}}},
		{name: "empty step name", steps: StepCatalog{{Name: "", Variants: []Variant{clf("c")}}}},
		{name: "separator in step name", steps: StepCatalog{{Name: "a__b", Variants: []Variant{clf("c")}}}},
		{
			name: "duplicate step",
			steps: StepCatalog{
				{Name: "s", Variants: []Variant{{Name: "t", Estimator: &shift{}}}},
				{Name: "s", Variants: []Variant{clf("c")}},
			},
		},
		{
			name: "duplicate variant across steps",
			steps: StepCatalog{
				{Name: "s", Variants: []Variant{{Name: "c", Estimator: &shift{}}}},
				{Name: "clf", Variants: []Variant{clf("c")}},
			},
		},
		{name: "nil estimator", steps: StepCatalog{{Name: "clf", Variants: []Variant{{Name: "c"}}}}},
		{
			name: "intermediate step without Transform",
			steps: StepCatalog{
				{Name: "pre", Variants: []Variant{clf("x")}},
				{Name: "clf", Variants: []Variant{clf("c")}},
			},
		},
		{
			name:  "final step without Predict",
			steps: StepCatalog{{Name: "clf", Variants: []Variant{{Name: "c", Estimator: &shift{}}}}},
		},
		{name: "params for unknown variant", steps: one, params: ParamCatalog{"nope": ms.NoSpace()}},
		{name: "empty candidate list", steps: one, params: ParamCatalog{"c": ms.Grid(ms.ParamGrid{"label": {}})}},
		{name: "empty sub-space list", steps: one, params: ParamCatalog{"c": ms.SubSpaces()}},
		{name: "search for unknown variant", steps: one, search: SearchCatalog{"nope": {}}},
		{name: "unknown method", steps: one, search: SearchCatalog{"c": {Method: "bayes"}}},
		{name: "random without n_iter", steps: one, search: SearchCatalog{"c": {Method: ms.MethodRandom}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.steps, tt.params, tt.search)
			require.Error(t, err)
			assert.Nil(t, p)
			var cfgErr *errors.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "got %v", err)
		})
	}
}

func TestNew_VariantNameReusedAcrossSteps(t *testing.T) {
	steps := StepCatalog{
		{Name: "scaler", Variants: []Variant{{Name: "none", Estimator: &shift{}}}},
		{Name: "reduce", Variants: []Variant{{Name: "none", Estimator: &shift{}}}},
		{Name: "clf", Variants: []Variant{{Name: "c", Estimator: &constantClassifier{}}}},
	}
	_, err := New(steps, nil, nil)
	var cfgErr *errors.ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.Equal(t, "none", cfgErr.Subject)
	assert.Contains(t, cfgErr.Reason, "scaler")
	assert.Contains(t, cfgErr.Reason, "ParamCatalog")

	steps[0].Variants = append(steps[0].Variants, Variant{Name: "none", Estimator: &shift{}})
	_, err = New(steps, nil, nil)
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.Contains(t, cfgErr.Reason, "duplicate variant in step scaler")
}

func TestViews_ReturnCopies(t *testing.T) {
	X, y := blobs(20)
	p, err := New(classifierCatalog(),
		ParamCatalog{"knn": ms.Grid(ms.ParamGrid{"n_neighbors": {1, 3}})},
		nil, WithLogger(quiet(t)))
	require.NoError(t, err)
	require.NoError(t, p.Fit(context.Background(), X, y, ms.NewKFold(2), ms.NewKFold(2)))

	before, err := p.MetricSummary()
	require.NoError(t, err)
	labels := append([]int(nil), before[0].PooledClassification.Labels...)

	res, err := p.Results()
	require.NoError(t, err)
	require.NotEmpty(t, res[0].YPred)
	want := res[0].YPred[0]
	res[0].YPred[0] = 99
	res[0].YTrue[0] = 99
	res[0].TestIndices[0] = -1
	res[0].BestParams["clf__n_neighbors"] = "tampered"
	res[0].Definition.Choices[0].Variant = "tampered"

	best, err := p.BestEstimators()
	require.NoError(t, err)
	best[0].Params["clf__n_neighbors"] = "tampered too"

	summary, err := p.MetricSummary()
	require.NoError(t, err)
	summary[0].YPred[0] = 99

	again, err := p.Results()
	require.NoError(t, err)
	assert.Equal(t, want, again[0].YPred[0])
	assert.NotEqual(t, -1, again[0].TestIndices[0])
	assert.NotEqual(t, "tampered", again[0].BestParams["clf__n_neighbors"])
	assert.NotEqual(t, "tampered", again[0].Definition.Choices[0].Variant)

	best, err = p.BestEstimators()
	require.NoError(t, err)
	for _, v := range best[0].Params {
		assert.NotEqual(t, "tampered", v)
		assert.NotEqual(t, "tampered too", v)
	}

	defs := p.Definitions()
	defs[0].Choices[0].Variant = "tampered"
	assert.Equal(t, "standard", p.Definitions()[0].Choices[0].Variant)

	after, err := p.MetricSummary()
	require.NoError(t, err)
	assert.Equal(t, labels, after[0].PooledClassification.Labels)
	assert.Equal(t, before[0].YPred, after[0].YPred)
}

func TestNew_SearchResolution(t *testing.T) {
	seed := uint64(42)
	steps := StepCatalog{
		{Name: "pre", Variants: []Variant{{Name: "p0", Estimator: &shift{}}, {Name: "p1", Estimator: &shift{}}}},
		{Name: "clf", Variants: []Variant{{Name: "c0", Estimator: &constantClassifier{}}, {Name: "c1", Estimator: &constantClassifier{}}}},
	}
	search := SearchCatalog{
		"p1": {Method: ms.MethodRandom, NIter: 2},
		"c1": {Method: ms.MethodRandom, NIter: 5, RandomState: &seed},
	}
	p, err := New(steps, nil, search)
	require.NoError(t, err)

	defs := p.Definitions()
	assert.Equal(t, ms.MethodGrid, defs[0].Search().Method, "p0,c0: default")
	assert.Equal(t, 5, defs[1].Search().NIter, "p0,c1: final step config")
	assert.Equal(t, 2, defs[2].Search().NIter, "p1,c0: earlier step config")
	assert.Equal(t, 5, defs[3].Search().NIter, "p1,c1: last step wins")

	seed = 7
	assert.Equal(t, uint64(42), *defs[3].Search().RandomState, "catalog is copied")
	assert.Equal(t, uint64(42), p.baseSeed(defs[3]))
	assert.Equal(t, uint64(0), p.baseSeed(defs[0]))
}

func TestFit_FailureIsolation(t *testing.T) {
	logger := quiet(t)
	X, y := blobs(12)

	p, err := New(
		StepCatalog{{Name: "clf", Variants: []Variant{
			{Name: "ok", Estimator: &constantClassifier{label: 1}},
			{Name: "fails", Estimator: &constantClassifier{mode: "fail"}},
			{Name: "panics", Estimator: &constantClassifier{mode: "panic"}},
		}}},
		nil, nil,
		WithLogger(logger), WithNJobs(3),
	)
	require.NoError(t, err)
	require.NoError(t, p.Fit(context.Background(), X, y, ms.NewKFold(3), ms.NewKFold(2)))

	results, err := p.Results()
	require.NoError(t, err)
	require.Len(t, results, 3*3)
	for _, r := range results {
		if r.Definition.Index == 0 {
			require.NoError(t, r.Err)
			assert.InDelta(t, 0.5, r.TestScore, 1e-12)
			continue
		}
		require.Error(t, r.Err)
		assert.True(t, r.Failed())
		assert.True(t, math.IsNaN(r.TestScore))
		assert.Nil(t, r.Estimator)
		var uf *errors.UnitFailure
		require.True(t, errors.As(r.Err, &uf))
		assert.Equal(t, r.Definition.Name(), uf.Pipeline)
		assert.Equal(t, r.Fold, uf.Fold)
	}

	table, err := p.ScoreTable()
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, false}, table[0].Failed)
	assert.Equal(t, []bool{true, true, true}, table[1].Failed)

	means, err := p.MeanScores()
	require.NoError(t, err)
	assert.Equal(t, "clf=ok", means[0].Pipeline)
	assert.True(t, means[0].Complete())
	assert.True(t, math.IsNaN(means[1].Mean))
	assert.Equal(t, 3, means[2].NFailed)

	estimators, err := p.BestEstimators()
	require.NoError(t, err)
	assert.Equal(t, -1, estimators[2].Fold)
	assert.Error(t, estimators[2].Err)

	summary, err := p.MetricSummary()
	require.NoError(t, err)
	assert.Error(t, summary[1].Err)
	assert.Nil(t, summary[1].Classification)
}

func scoreTable(scores [][]float64) ([]Definition, *ResultTable) {
	defs := make([]Definition, len(scores))
	table := &ResultTable{NFolds: len(scores[0]), Results: make([]FoldResult, len(scores)*len(scores[0]))}
	for d := range scores {
		defs[d] = Definition{Index: d, name: fmt.Sprintf("p%d", d)}
		for f, s := range scores[d] {
			r := table.at(d, f)
			r.TestScore = s
			if math.IsNaN(s) {
				r.Err = errors.New("boom")
			}
		}
	}
	return defs, table
}

func TestMeanScores_Ordering(t *testing.T) {
	nan := math.NaN()
	defs, table := scoreTable([][]float64{
		{0.25, 0.25},
		{0.75, 0.75},
		{1.0, nan},
		{nan, nan},
		{0.5, 1.0},
	})

	got := meanScores(defs, table)
	names := make([]string, len(got))
	for i, s := range got {
		names[i] = s.Pipeline
		assert.Equal(t, i+1, s.Rank)
	}
	assert.Equal(t, []string{"p1", "p4", "p0", "p2", "p3"}, names,
		"equal means keep enumeration order; failures rank last")
	assert.InDelta(t, 0.75, got[0].Mean, 1e-12)
	assert.InDelta(t, 0.25, got[1].Std, 1e-12)
	assert.InDelta(t, 1.0, got[3].Mean, 1e-12)
	assert.Equal(t, 1, got[3].NFailed)
	assert.True(t, math.IsNaN(got[4].Mean))
}

func TestMeanScores_HigherMeanFirst(t *testing.T) {
	defs, table := scoreTable([][]float64{{0.7, 0.7, 0.7}, {0.9, 0.9, 0.9}})
	got := meanScores(defs, table)
	assert.Equal(t, "p1", got[0].Pipeline)
	assert.InDelta(t, 0.9, got[0].Mean, 1e-12)
	assert.InDelta(t, 0.7, got[1].Mean, 1e-12)
}

func TestViews_BeforeFit(t *testing.T) {
	p, err := New(classifierCatalog(), nil, nil)
	require.NoError(t, err)

	views := map[string]func() error{
		"Results":             func() error { _, err := p.Results(); return err },
		"ScoreTable":          func() error { _, err := p.ScoreTable(); return err },
		"MeanScores":          func() error { _, err := p.MeanScores(); return err },
		"BestPipeline":        func() error { _, err := p.BestPipeline(); return err },
		"MetricSummary":       func() error { _, err := p.MetricSummary(); return err },
		"BestEstimators":      func() error { _, err := p.BestEstimators(); return err },
		"BestHyperparameters": func() error { _, err := p.BestHyperparameters(); return err },
		"RunID":               func() error { _, err := p.RunID(); return err },
		"Export":              func() error { return p.ExportMeanScoresCSV(&bytes.Buffer{}) },
	}
	for name, view := range views {
		t.Run(name, func(t *testing.T) {
			err := view()
			require.Error(t, err)
			var qe *errors.QueryError
			assert.True(t, errors.As(err, &qe))
			assert.True(t, errors.Is(err, errors.ErrNoResults))
		})
	}
}

func TestFit_ReplacesResults(t *testing.T) {
	logger := quiet(t)
	p, err := New(classifierCatalog(), nil, nil, WithLogger(logger))
	require.NoError(t, err)
	ctx := context.Background()

	X, y := blobs(12)
	require.NoError(t, p.Fit(ctx, X, y, ms.NewKFold(2), ms.NewKFold(2)))
	firstID, _ := p.RunID()

	X, y = blobs(20)
	require.NoError(t, p.Fit(ctx, X, y, ms.NewKFold(2), ms.NewKFold(2)))
	secondID, _ := p.RunID()
	assert.NotEqual(t, firstID, secondID)

	results, err := p.Results()
	require.NoError(t, err)
	total := 0
	for _, r := range results[:2] {
		total += len(r.TestIndices)
	}
	assert.Equal(t, 20, total, "only the second dataset is visible")
}

func TestFit_CancelledKeepsPreviousResults(t *testing.T) {
	logger := quiet(t)
	p, err := New(classifierCatalog(), nil, nil, WithLogger(logger))
	require.NoError(t, err)

	X, y := blobs(12)
	require.NoError(t, p.Fit(context.Background(), X, y, ms.NewKFold(2), ms.NewKFold(2)))
	id, _ := p.RunID()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = p.Fit(ctx, X, y, ms.NewKFold(2), ms.NewKFold(2))
	require.ErrorIs(t, err, context.Canceled)

	after, err := p.RunID()
	require.NoError(t, err)
	assert.Equal(t, id, after)
}

func TestFit_InputErrors(t *testing.T) {
	p, err := New(classifierCatalog(), nil, nil)
	require.NoError(t, err)
	X, y := blobs(10)
	short := mat.NewDense(9, 1, nil)
	wide := mat.NewDense(10, 2, nil)
	kf := ms.NewKFold(2)

	tests := []struct {
		name  string
		X, y  mat.Matrix
		outer ms.Splitter
		inner ms.Splitter
		opts  []FitOption
	}{
		{name: "nil data", X: nil, y: y, outer: kf, inner: kf},
		{name: "row mismatch", X: X, y: short, outer: kf, inner: kf},
		{name: "multi column target", X: X, y: wide, outer: kf, inner: kf},
		{name: "nil outer", X: X, y: y, inner: kf},
		{name: "nil inner", X: X, y: y, outer: kf},
		{name: "unknown scoring", X: X, y: y, outer: kf, inner: kf, opts: []FitOption{WithScoring("nope")}},
		{name: "too many outer folds", X: X, y: y, outer: ms.NewKFold(11), inner: kf},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Fit(context.Background(), tt.X, tt.y, tt.outer, tt.inner, tt.opts...)
			var cfgErr *errors.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "got %v", err)
		})
	}
}

func TestFit_ClassificationScorerOnRegressors(t *testing.T) {
	X, y := line(8)
	p, err := New(StepCatalog{{Name: "reg", Variants: []Variant{{Name: "ols", Estimator: linear_model.NewLinearRegression()}}}},
		nil, nil, WithLogger(quiet(t)))
	require.NoError(t, err)

	err = p.Fit(context.Background(), X, y, ms.NewKFold(2), ms.NewKFold(2), WithScoring("accuracy"))
	var cfgErr *errors.ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.Equal(t, "scoring", cfgErr.Subject)
}

func TestFit_CustomScorer(t *testing.T) {
	logger := quiet(t)
	X, y := blobs(10)
	p, err := New(StepCatalog{{Name: "clf", Variants: []Variant{{Name: "c", Estimator: &constantClassifier{}}}}},
		nil, nil, WithLogger(logger))
	require.NoError(t, err)

	always := func(_, _ *mat.VecDense) (float64, error) { return 0.25, nil }
	require.NoError(t, p.Fit(context.Background(), X, y, ms.NewKFold(2), ms.NewKFold(2), WithScorer("quarter", always)))

	scoring, _ := p.Scoring()
	assert.Equal(t, "quarter", scoring)
	best, err := p.BestPipeline()
	require.NoError(t, err)
	assert.InDelta(t, 0.25, best.Mean, 1e-12)
}

func TestFit_Metrics(t *testing.T) {
	logger := quiet(t)
	reg := prometheus.NewRegistry()
	X, y := blobs(12)

	p, err := New(
		StepCatalog{{Name: "clf", Variants: []Variant{
			{Name: "ok", Estimator: &constantClassifier{}},
			{Name: "fails", Estimator: &constantClassifier{mode: "fail"}},
		}}},
		ParamCatalog{"ok": ms.Grid(ms.ParamGrid{"label": {0, 1, 2}})},
		nil,
		WithLogger(logger), WithMetrics(reg),
	)
	require.NoError(t, err)
	require.NoError(t, p.Fit(context.Background(), X, y, ms.NewKFold(2), ms.NewKFold(2)))

	assert.Equal(t, 2.0, testutil.ToFloat64(p.metrics.Units.WithLabelValues(statusSucceeded)))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.metrics.Units.WithLabelValues(statusFailed)))
	assert.Equal(t, 6.0, testutil.ToFloat64(p.metrics.Candidates))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.Runs))
	assert.Equal(t, 2, testutil.CollectAndCount(p.metrics.UnitDuration))
}

func TestFit_DeterministicAcrossWorkers(t *testing.T) {
	logger := quiet(t)
	X, y := blobs(20)
	params := ParamCatalog{"knn": ms.Grid(ms.ParamGrid{
		"n_neighbors": {1, 2, 3, 4},
		"weights":     {"uniform", "distance"},
	})}
	search := SearchCatalog{"knn": {Method: ms.MethodRandom, NIter: 3}}

	run := func(jobs int) []PipelineParams {
		p, err := New(classifierCatalog(), params, search, WithSeed(7), WithNJobs(jobs), WithLogger(logger))
		require.NoError(t, err)
		require.NoError(t, p.Fit(context.Background(), X, y, ms.NewKFold(4), ms.NewKFold(2)))
		results, err := p.Results()
		require.NoError(t, err)
		for _, r := range results[:4] {
			assert.Equal(t, 3, r.Candidates)
		}
		out, err := p.BestHyperparameters()
		require.NoError(t, err)
		return out
	}
	assert.Equal(t, run(1), run(4))
}

func TestUnitSeed(t *testing.T) {
	assert.Equal(t, unitSeed(1, 2, 3), unitSeed(1, 2, 3))
	seen := map[uint64]bool{}
	for d := 0; d < 4; d++ {
		for f := 0; f < 4; f++ {
			s := unitSeed(1, d, f)
			assert.False(t, seen[s], "seed collision at (%d, %d)", d, f)
			seen[s] = true
		}
	}
	assert.NotEqual(t, unitSeed(1, 0, 0), unitSeed(2, 0, 0))
}

func TestExportMeanScoresCSV(t *testing.T) {
	logger := quiet(t)
	X, y := blobs(12)
	p, err := New(classifierCatalog(), nil, nil, WithLogger(logger))
	require.NoError(t, err)
	require.NoError(t, p.Fit(context.Background(), X, y, ms.NewKFold(2), ms.NewKFold(2)))

	var buf bytes.Buffer
	require.NoError(t, p.ExportMeanScoresCSV(&buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"rank", "pipeline", "scaler", "clf", "mean_score", "std_score", "n_folds", "n_failed"}, records[0])
	assert.Equal(t, "1", records[1][0])
	assert.Equal(t, "standard", records[1][2])
	assert.Equal(t, "2", records[1][6])
}
