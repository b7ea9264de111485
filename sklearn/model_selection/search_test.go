package model_selection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pipeperm/core/model"
	"github.com/YuminosukeSato/pipeperm/metrics"
	"github.com/YuminosukeSato/pipeperm/pkg/errors"
	"github.com/YuminosukeSato/pipeperm/pkg/log"
)

// constantRegressor predicts "value" for every row and fails to fit when
// "fail" is true.
type constantRegressor struct {
	value  float64
	fail   bool
	fitted bool
}

func (c *constantRegressor) Fit(_, _ mat.Matrix) error {
	if c.fail {
		return errors.New("configured to fail")
	}
	c.fitted = true
	return nil
}

func (c *constantRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, c.value)
	}
	return out, nil
}

func (c *constantRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{"value": c.value, "fail": c.fail}
}

func (c *constantRegressor) SetParams(p map[string]interface{}) error {
	for k, v := range p {
		var err error
		switch k {
		case "value":
			c.value, err = model.ParamFloat(k, v)
		case "fail":
			c.fail, err = model.ParamBool(k, v)
		default:
			return model.UnknownParamError("constantRegressor", k)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *constantRegressor) Clone() model.Estimator {
	return &constantRegressor{value: c.value, fail: c.fail}
}

func searchData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 3, 4, 5})
	y := mat.NewDense(6, 1, []float64{2, 2, 2, 2, 2, 2})
	return X, y
}

func newSearch(space SearchSpace) *Search {
	scorer, _ := metrics.GetScorer("neg_mean_squared_error")
	logger, _ := log.NewTestLogger(log.LevelDebug)
	return &Search{
		Estimator: &constantRegressor{},
		Space:     space,
		Method:    MethodGrid,
		CV:        NewKFold(3),
		Scorer:    scorer,
		Logger:    logger,
	}
}

func TestGridSearchVisitsEveryConfiguration(t *testing.T) {
	X, y := searchData()
	s := newSearch(SearchSpace{grids: []ParamGrid{{"value": {0, 1, 2, 3}}}})

	res, err := s.Fit(context.Background(), X, y)
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 4)
	assert.Equal(t, 2, res.BestParams["value"])
	assert.Equal(t, 0.0, res.BestScore)
	assert.True(t, res.BestEstimator.(*constantRegressor).fitted)
}

func TestSearchTieKeepsFirstCandidate(t *testing.T) {
	X, y := searchData()
	s := newSearch(SearchSpace{grids: []ParamGrid{{"value": {1.0, 3.0}}}})

	res, err := s.Fit(context.Background(), X, y)
	require.NoError(t, err)
	assert.Equal(t, 0, res.BestIndex)
	assert.Equal(t, 1.0, res.BestParams["value"])
}

func TestSearchSubSpacesSumCandidates(t *testing.T) {
	X, y := searchData()
	s := newSearch(SearchSpace{grids: []ParamGrid{
		{"value": {0.0, 1.0}},
		{"value": {2.0}, "fail": {false, true}},
	}})

	res, err := s.Fit(context.Background(), X, y)
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 4)
	assert.Equal(t, 2.0, res.BestParams["value"])

	// 失敗した候補は記録され、スコアは NaN
	failed := res.Candidates[3]
	assert.Error(t, failed.Err)
	assert.NotEqual(t, failed.MeanScore, failed.MeanScore)
}

func TestSearchAllCandidatesFail(t *testing.T) {
	X, y := searchData()
	s := newSearch(SearchSpace{grids: []ParamGrid{{"fail": {true}}}})

	_, err := s.Fit(context.Background(), X, y)
	assert.Error(t, err)
}

func TestSearchEmptySpace(t *testing.T) {
	X, y := searchData()
	s := newSearch(SearchSpace{grids: []ParamGrid{{"value": {}}}})

	_, err := s.Fit(context.Background(), X, y)
	assert.True(t, errors.Is(err, errors.ErrEmptySearchSpace))
}

func TestSearchUnknownParameterFailsCandidate(t *testing.T) {
	X, y := searchData()
	s := newSearch(SearchSpace{grids: []ParamGrid{{"value": {2.0}}, {"nope": {1}}}})

	res, err := s.Fit(context.Background(), X, y)
	require.NoError(t, err)
	assert.Error(t, res.Candidates[1].Err)
}

func TestSearchCancelled(t *testing.T) {
	X, y := searchData()
	s := newSearch(SearchSpace{grids: []ParamGrid{{"value": {2.0}}}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Fit(ctx, X, y)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRandomCandidates(t *testing.T) {
	t.Run("n_iter below size draws distinct indices reproducibly", func(t *testing.T) {
		a, err := Candidates(100, MethodRandom, 10, 7)
		require.NoError(t, err)
		b, err := Candidates(100, MethodRandom, 10, 7)
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.Len(t, a, 10)

		seen := make(map[int]bool)
		for _, idx := range a {
			assert.False(t, seen[idx])
			assert.True(t, idx >= 0 && idx < 100)
			seen[idx] = true
		}

		c, err := Candidates(100, MethodRandom, 10, 8)
		require.NoError(t, err)
		assert.NotEqual(t, a, c)
	})

	t.Run("n_iter at or above size covers the grid", func(t *testing.T) {
		grid, err := Candidates(5, MethodGrid, 0, 0)
		require.NoError(t, err)
		random, err := Candidates(5, MethodRandom, 50, 3)
		require.NoError(t, err)
		assert.Equal(t, grid, random)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := Candidates(5, MethodRandom, 0, 0)
		assert.Error(t, err)
		_, err = Candidates(5, SearchMethod("bayes"), 1, 0)
		assert.Error(t, err)
		_, err = Candidates(0, MethodGrid, 0, 0)
		assert.ErrorIs(t, err, errors.ErrEmptySearchSpace)
	})
}

func TestParseSearchMethod(t *testing.T) {
	m, err := ParseSearchMethod("exhaustive")
	require.NoError(t, err)
	assert.Equal(t, MethodGrid, m)
	m, err = ParseSearchMethod("random")
	require.NoError(t, err)
	assert.Equal(t, MethodRandom, m)
	_, err = ParseSearchMethod("halving")
	assert.Error(t, err)
}
