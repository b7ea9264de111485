package permuter

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pipeperm/core/model"
	"github.com/YuminosukeSato/pipeperm/core/parallel"
	"github.com/YuminosukeSato/pipeperm/metrics"
	"github.com/YuminosukeSato/pipeperm/pkg/errors"
	"github.com/YuminosukeSato/pipeperm/pkg/log"
	ms "github.com/YuminosukeSato/pipeperm/sklearn/model_selection"
)

// FitOption configures a single Fit call.
type FitOption func(*fitConfig)

type fitConfig struct {
	scoringName string
	scorer      metrics.Scorer
}

// WithScoring selects a registered scorer by name (see metrics.ScorerNames).
func WithScoring(name string) FitOption {
	return func(c *fitConfig) {
		c.scoringName = name
		c.scorer = nil
	}
}

// WithScorer uses a custom scorer. Greater scores must be better.
func WithScorer(name string, fn metrics.Scorer) FitOption {
	return func(c *fitConfig) {
		c.scoringName = name
		c.scorer = fn
	}
}

// FoldResult is the outcome of one (definition, outer fold) unit.
// When Err is non-nil the unit failed: scores are NaN and Estimator is nil.
type FoldResult struct {
	Definition Definition
	Fold       int

	TrainIndices []int
	TestIndices  []int

	BestParams map[string]interface{}
	// InnerScore is the best mean inner-CV score.
	InnerScore float64
	// TestScore is the outer test score of the refit pipeline.
	TestScore float64
	// Estimator is the pipeline refit on the outer training rows.
	Estimator model.Estimator

	YTrue []float64
	YPred []float64

	Candidates int
	Duration   time.Duration
	Err        error
}

// Failed reports whether the unit failed.
func (r FoldResult) Failed() bool {
	return r.Err != nil
}

// ResultTable holds every FoldResult of one Fit call, ordered by
// (definition index, fold index).
type ResultTable struct {
	RunID    string
	Scoring  string
	NFolds   int
	Results  []FoldResult
	Started  time.Time
	Duration time.Duration

	classification bool
}

func (t *ResultTable) at(defIdx, fold int) *FoldResult {
	return &t.Results[defIdx*t.NFolds+fold]
}

// Fit runs nested cross-validation for every pipeline definition.
//
// outer is split once on (X, y); for each definition and outer fold an
// inner search over the definition's merged parameter space tunes a fresh
// pipeline on the outer training rows using inner, and the refit pipeline
// is scored on the outer test rows. A failing unit is recorded in the
// table and does not affect other units.
//
// On success the previous ResultTable is replaced. If ctx is cancelled the
// context error is returned and the previous table is kept.
func (p *Permuter) Fit(ctx context.Context, X, y mat.Matrix, outer, inner ms.Splitter, opts ...FitOption) error {
	cfg := fitConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := p.checkInputs(X, y, outer, inner); err != nil {
		return err
	}
	if err := p.resolveScorer(&cfg); err != nil {
		return err
	}

	folds, err := outer.Split(X, y)
	if err != nil {
		return errors.NewConfigurationError("outer splitter", fmt.Sprintf("%T", outer), err.Error())
	}
	if len(folds) == 0 {
		return errors.NewConfigurationError("outer splitter", fmt.Sprintf("%T", outer), "no folds")
	}

	table := &ResultTable{
		RunID:          uuid.NewString(),
		Scoring:        cfg.scoringName,
		NFolds:         len(folds),
		Results:        make([]FoldResult, len(p.defs)*len(folds)),
		Started:        time.Now(),
		classification: p.cat.classification(),
	}
	units := len(table.Results)
	workers := parallel.Workers(p.nJobs, units)

	logger := p.logger.With(log.RunIDKey, table.RunID)
	logger.Info("Nested evaluation started",
		log.PipelinesKey, len(p.defs),
		log.OuterFoldsKey, len(folds),
		log.InnerFoldsKey, inner.NSplits(),
		log.ScoringKey, cfg.scoringName,
		log.WorkersKey, workers,
		log.SamplesKey, rowsOf(X),
	)

	err = parallel.ForEach(ctx, units, workers, func(ctx context.Context, i int) error {
		defIdx, foldIdx := i/len(folds), i%len(folds)
		*table.at(defIdx, foldIdx) = p.runUnit(ctx, logger, unit{
			def:    p.defs[defIdx],
			fold:   foldIdx,
			split:  folds[foldIdx],
			X:      X,
			y:      y,
			inner:  inner,
			scorer: cfg.scorer,
		})
		return nil
	})
	if err != nil {
		logger.Warn("Nested evaluation cancelled", "error", err.Error())
		return err
	}

	table.Duration = time.Since(table.Started)
	failed := 0
	for i := range table.Results {
		if table.Results[i].Failed() {
			failed++
		}
	}
	p.replace(table)
	p.metrics.observeRun()

	logger.Info("Nested evaluation finished",
		log.FailedUnitsKey, failed,
		log.DurationMsKey, table.Duration.Milliseconds(),
	)
	return nil
}

func (p *Permuter) checkInputs(X, y mat.Matrix, outer, inner ms.Splitter) error {
	if X == nil || y == nil {
		return errors.NewConfigurationError("fit", "data", "X and y are required")
	}
	xRows, _ := X.Dims()
	yRows, yCols := y.Dims()
	if xRows == 0 {
		return errors.NewConfigurationError("fit", "data", errors.ErrEmptyData.Error())
	}
	if xRows != yRows {
		return errors.NewConfigurationError("fit", "data",
			fmt.Sprintf("X has %d rows but y has %d", xRows, yRows))
	}
	if yCols != 1 {
		return errors.NewConfigurationError("fit", "data",
			fmt.Sprintf("y must be a single column, got %d", yCols))
	}
	if outer == nil {
		return errors.NewConfigurationError("fit", "outer splitter", "splitter is nil")
	}
	if inner == nil {
		return errors.NewConfigurationError("fit", "inner splitter", "splitter is nil")
	}
	return nil
}

// resolveScorer fills in the scorer: an explicit function, a registered
// name, or the task default (accuracy for classifiers, r2 otherwise).
func (p *Permuter) resolveScorer(cfg *fitConfig) error {
	if cfg.scorer != nil {
		if cfg.scoringName == "" {
			cfg.scoringName = "custom"
		}
		return nil
	}
	if cfg.scoringName == "" {
		cfg.scoringName = "r2"
		if p.cat.classification() {
			cfg.scoringName = "accuracy"
		}
	}
	scorer, err := metrics.GetScorer(cfg.scoringName)
	if err != nil {
		return errors.NewConfigurationError("fit", "scoring", err.Error())
	}
	if metrics.IsClassificationScorer(cfg.scoringName) && !p.cat.classification() {
		return errors.NewConfigurationError("fit", "scoring",
			cfg.scoringName+" requires every final variant to be a classifier")
	}
	cfg.scorer = scorer
	return nil
}

type unit struct {
	def    Definition
	fold   int
	split  ms.Fold
	X, y   mat.Matrix
	inner  ms.Splitter
	scorer metrics.Scorer
}

// runUnit evaluates one definition on one outer fold. It never returns an
// error: failures, panics included, are recorded on the result.
func (p *Permuter) runUnit(ctx context.Context, logger log.Logger, u unit) FoldResult {
	start := time.Now()
	res := FoldResult{
		Definition:   u.def,
		Fold:         u.fold,
		TrainIndices: u.split.Train,
		TestIndices:  u.split.Test,
		InnerScore:   math.NaN(),
		TestScore:    math.NaN(),
	}
	logger = logger.With(
		log.PipelineKey, u.def.Name(),
		log.PipelineIndexKey, u.def.Index,
		log.FoldKey, u.fold,
	)

	err := p.evaluate(ctx, logger, u, &res)
	res.Duration = time.Since(start)

	status := statusSucceeded
	if err != nil {
		status = statusFailed
		res.Err = errors.NewUnitFailure(u.def.Name(), u.fold, err)
		res.BestParams = nil
		res.Estimator = nil
		res.InnerScore, res.TestScore = math.NaN(), math.NaN()
		if ctx.Err() == nil {
			logger.Error("Unit failed", res.Err,
				log.ErrorTypeKey, fmt.Sprintf("%T", errors.Cause(err)),
				log.DurationMsKey, res.Duration.Milliseconds(),
			)
		}
	} else {
		logger.Debug("Unit finished",
			log.ScoreKey, res.TestScore,
			log.CandidatesKey, res.Candidates,
			log.DurationMsKey, res.Duration.Milliseconds(),
		)
	}
	p.metrics.observeUnit(status, res.Duration, res.Candidates)
	return res
}

func (p *Permuter) evaluate(ctx context.Context, logger log.Logger, u unit, res *FoldResult) (err error) {
	defer errors.Recover(&err, "permuter.evaluate")

	pipe, err := p.cat.build(u.def)
	if err != nil {
		return err
	}

	XTrain, yTrain := ms.Subset(u.X, u.y, u.split.Train)
	search := &ms.Search{
		Estimator: pipe,
		Space:     p.cat.space(u.def),
		Method:    u.def.search.Method,
		NIter:     u.def.search.NIter,
		Seed:      unitSeed(p.baseSeed(u.def), u.def.Index, u.fold),
		CV:        u.inner,
		Scorer:    u.scorer,
		Logger:    logger,
	}
	found, err := search.Fit(ctx, XTrain, yTrain)
	if err != nil {
		return err
	}
	res.Candidates = len(found.Candidates)

	XTest, yTest := ms.Subset(u.X, u.y, u.split.Test)
	predictor, ok := found.BestEstimator.(model.Predictor)
	if !ok {
		return errors.NewValueError("permuter.evaluate", "pipeline does not implement Predict")
	}
	pred, err := predictor.Predict(XTest)
	if err != nil {
		return err
	}
	yTrueVec, yPredVec := ms.Column(yTest), ms.Column(pred)
	score, err := u.scorer(yTrueVec, yPredVec)
	if err != nil {
		return err
	}
	if err := errors.CheckFinite("permuter.evaluate", score); err != nil {
		return err
	}

	res.BestParams = found.BestParams
	res.InnerScore = found.BestScore
	res.TestScore = score
	res.Estimator = found.BestEstimator
	res.YTrue = yTrueVec.RawVector().Data
	res.YPred = yPredVec.RawVector().Data
	return nil
}

func rowsOf(m mat.Matrix) int {
	r, _ := m.Dims()
	return r
}
