package model_selection

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/YuminosukeSato/pipeperm/core/model"
	"github.com/YuminosukeSato/pipeperm/metrics"
	"github.com/YuminosukeSato/pipeperm/pkg/errors"
	"github.com/YuminosukeSato/pipeperm/pkg/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// SearchMethod selects how candidates are drawn from a SearchSpace.
type SearchMethod string

const (
	// MethodGrid evaluates every configuration.
	MethodGrid SearchMethod = "grid"
	// MethodRandom evaluates NIter distinct configurations.
	MethodRandom SearchMethod = "random"
)

// ParseSearchMethod accepts "grid" (also "exhaustive") and "random".
func ParseSearchMethod(s string) (SearchMethod, error) {
	switch s {
	case "", "grid", "exhaustive":
		return MethodGrid, nil
	case "random":
		return MethodRandom, nil
	}
	return "", errors.NewValidationError("search_method", "must be \"grid\" or \"random\"", s)
}

// Candidates returns the configuration indices to evaluate, in evaluation
// order. Grid search returns every index. Random search returns n distinct
// indices drawn from a PCG source seeded with seed, or every index in
// canonical order when n >= size.
func Candidates(size int, method SearchMethod, n int, seed uint64) ([]int, error) {
	if size <= 0 {
		return nil, errors.ErrEmptySearchSpace
	}
	switch method {
	case MethodGrid, "":
		return identity(size), nil
	case MethodRandom:
		if n <= 0 {
			return nil, errors.NewValidationError("n_iter", "must be positive for random search", n)
		}
		if n >= size {
			return identity(size), nil
		}
		return sampleDistinct(size, n, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))), nil
	}
	return nil, errors.NewValidationError("search_method", "unknown search method", string(method))
}

// sampleDistinct draws n distinct values from [0, size) with Floyd's
// algorithm and returns them in draw order.
func sampleDistinct(size, n int, r *rand.Rand) []int {
	chosen := make(map[int]struct{}, n)
	out := make([]int, 0, n)
	for j := size - n; j < size; j++ {
		t := r.IntN(j + 1)
		if _, dup := chosen[t]; dup {
			t = j
		}
		chosen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// CandidateResult is the inner-CV outcome of one configuration.
type CandidateResult struct {
	Params     map[string]interface{}
	FoldScores []float64
	MeanScore  float64
	StdScore   float64
	Err        error
}

// SearchResult is the outcome of Search.Fit.
type SearchResult struct {
	// BestIndex indexes Candidates.
	BestIndex     int
	BestParams    map[string]interface{}
	BestScore     float64
	BestEstimator model.Estimator
	Candidates    []CandidateResult
}

// Search tunes an estimator over a SearchSpace with inner cross-validation.
type Search struct {
	Estimator model.Estimator
	Space     SearchSpace
	Method    SearchMethod
	NIter     int
	Seed      uint64
	CV        Splitter
	Scorer    metrics.Scorer
	Logger    log.Logger
}

// Fit evaluates every candidate configuration by mean inner-CV score and
// refits the best one on all of X. The best candidate is the first with the
// strictly greatest mean. Failing candidates are recorded and skipped; if
// every candidate fails the last failure is returned.
func (s *Search) Fit(ctx context.Context, X, y mat.Matrix) (*SearchResult, error) {
	logger := s.Logger
	if logger == nil {
		logger = log.GetLoggerWithName("model_selection")
	}

	indices, err := Candidates(s.Space.Size(), s.Method, s.NIter, s.Seed)
	if err != nil {
		return nil, err
	}

	res := &SearchResult{BestIndex: -1, Candidates: make([]CandidateResult, len(indices))}
	var lastErr error
	for c, idx := range indices {
		params, err := s.Space.At(idx)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		scores, err := CrossValScore(ctx, s.Estimator, params, X, y, s.CV, s.Scorer)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		cand := CandidateResult{Params: params, FoldScores: scores, Err: err}
		if err != nil {
			lastErr = err
			cand.MeanScore = math.NaN()
			logger.Debug("Candidate failed",
				log.HyperParamsKey, params,
				log.ErrorTypeKey, fmt.Sprintf("%T", errors.Cause(err)),
				"error", err.Error(),
			)
		} else {
			cand.MeanScore, cand.StdScore = stat.PopMeanStdDev(scores, nil)
			logger.Debug("Candidate evaluated",
				log.HyperParamsKey, params,
				log.ScoreKey, cand.MeanScore,
				log.DurationMsKey, time.Since(start).Milliseconds(),
			)
			if res.BestIndex < 0 || cand.MeanScore > res.BestScore {
				res.BestIndex = c
				res.BestScore = cand.MeanScore
			}
		}
		res.Candidates[c] = cand
	}

	if res.BestIndex < 0 {
		return nil, errors.Wrapf(lastErr, "all %d candidates failed", len(indices))
	}
	res.BestParams = res.Candidates[res.BestIndex].Params

	best, err := s.refit(res.BestParams, X, y)
	if err != nil {
		return nil, errors.Wrap(err, "refit of best candidate")
	}
	res.BestEstimator = best
	return res, nil
}

func (s *Search) refit(params map[string]interface{}, X, y mat.Matrix) (est model.Estimator, err error) {
	defer errors.Recover(&err, "Search.refit")

	est = s.Estimator.Clone()
	if len(params) > 0 {
		if err := est.SetParams(params); err != nil {
			return nil, err
		}
	}
	if err := est.Fit(X, y); err != nil {
		return nil, err
	}
	return est, nil
}
