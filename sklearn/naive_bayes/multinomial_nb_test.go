package naive_bayes

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// counts は単語カウント風の学習データ
func counts() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(6, 3, []float64{
		3, 0, 0,
		2, 1, 0,
		1, 0, 0,
		0, 0, 3,
		0, 1, 2,
		0, 0, 1,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})
	return X, y
}

func TestMultinomialNB_FitPredict(t *testing.T) {
	X, y := counts()
	nb := NewMultinomialNB()
	require.NoError(t, nb.Fit(X, y))
	assert.True(t, nb.state.IsFitted())
	assert.Equal(t, []int{0, 1}, nb.Classes())

	XTest := mat.NewDense(2, 3, []float64{2, 0, 0, 0, 0, 2})
	pred, err := nb.Predict(XTest)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, mat.Col(nil, 0, pred))

	proba, err := nb.PredictProba(XTest)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		row := mat.Row(nil, i, proba)
		assert.InDelta(t, 1.0, floats.Sum(row), 1e-10)
	}
	assert.Greater(t, proba.At(0, 0), proba.At(0, 1))
	assert.Greater(t, proba.At(1, 1), proba.At(1, 0))

	score, err := nb.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestMultinomialNB_PredictLogProba(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{2, 0, 1, 1, 0, 2, 1, 1})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	nb := NewMultinomialNB()
	require.NoError(t, nb.Fit(X, y))

	logProba, err := nb.PredictLogProba(mat.NewDense(1, 2, []float64{1, 1}))
	require.NoError(t, err)
	row := mat.Row(nil, 0, logProba)
	for _, v := range row {
		assert.LessOrEqual(t, v, 0.0)
	}
	assert.InDelta(t, 0.0, floats.LogSumExp(row), 1e-10)
}

func TestMultinomialNB_PartialFit(t *testing.T) {
	nb := NewMultinomialNB()
	X1 := mat.NewDense(3, 3, []float64{2, 1, 0, 1, 1, 1, 1, 0, 1})
	require.NoError(t, nb.PartialFit(X1, mat.NewDense(3, 1, []float64{0, 0, 0}), []int{0, 1}))

	X2 := mat.NewDense(3, 3, []float64{0, 1, 2, 0, 2, 1, 1, 2, 2})
	require.NoError(t, nb.PartialFit(X2, mat.NewDense(3, 1, []float64{1, 1, 1}), nil))
	assert.Equal(t, 6, nb.NSamplesSeen())

	X, y := counts()
	batch := NewMultinomialNB()
	require.NoError(t, batch.Fit(X, y))
	assert.Equal(t, 6, batch.NSamplesSeen())

	assert.Error(t, nb.PartialFit(mat.NewDense(1, 3, []float64{1, 1, 1}), mat.NewDense(1, 1, []float64{7}), nil),
		"label outside the declared classes")
	assert.Error(t, nb.PartialFit(mat.NewDense(1, 2, []float64{1, 1}), mat.NewDense(1, 1, []float64{0}), nil),
		"feature count changed")
}

func TestMultinomialNB_Alpha(t *testing.T) {
	X := mat.NewDense(4, 3, []float64{2, 0, 0, 1, 0, 0, 0, 0, 2, 0, 0, 1})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	XTest := mat.NewDense(1, 3, []float64{1, 1, 1})

	for _, alpha := range []float64{0, 1, 10} {
		nb := NewMultinomialNB(WithAlpha(alpha))
		require.NoError(t, nb.Fit(X, y))
		proba, err := nb.PredictProba(XTest)
		require.NoError(t, err)
		for j := 0; j < 2; j++ {
			p := proba.At(0, j)
			assert.False(t, math.IsNaN(p) || math.IsInf(p, 0), "alpha=%v", alpha)
		}
	}

	assert.Error(t, NewMultinomialNB(WithAlpha(-1)).Fit(X, y))
}

func TestMultinomialNB_FitPrior(t *testing.T) {
	// クラス0が4件、クラス1が1件の不均衡データ
	X := mat.NewDense(5, 2, []float64{2, 1, 1, 2, 1, 1, 1, 0, 0, 1})
	y := mat.NewDense(5, 1, []float64{0, 0, 0, 0, 1})
	XTest := mat.NewDense(1, 2, []float64{1, 1})

	withPrior := NewMultinomialNB()
	require.NoError(t, withPrior.Fit(X, y))
	uniform := NewMultinomialNB(WithFitPrior(false))
	require.NoError(t, uniform.Fit(X, y))

	p1, err := withPrior.PredictProba(XTest)
	require.NoError(t, err)
	p2, err := uniform.PredictProba(XTest)
	require.NoError(t, err)
	assert.Greater(t, math.Abs(p1.At(0, 0)-p1.At(0, 1)), math.Abs(p2.At(0, 0)-p2.At(0, 1)))
}

func TestMultinomialNB_InvalidInput(t *testing.T) {
	X := mat.NewDense(2, 2, []float64{1, -1, 2, 3})
	y := mat.NewDense(2, 1, []float64{0, 1})
	assert.Error(t, NewMultinomialNB().Fit(X, y), "negative counts")

	_, err := NewMultinomialNB().Predict(X)
	assert.Error(t, err, "unfitted")
}

func TestMultinomialNB_Params(t *testing.T) {
	nb := NewMultinomialNB()
	require.NoError(t, nb.SetParams(map[string]interface{}{"alpha": 0.5, "fit_prior": false}))
	assert.Equal(t, map[string]interface{}{"alpha": 0.5, "fit_prior": false}, nb.GetParams())
	assert.Error(t, nb.SetParams(map[string]interface{}{"class_prior": 1}))

	clone := nb.Clone().(*MultinomialNB)
	assert.Equal(t, nb.GetParams(), clone.GetParams())
	assert.False(t, clone.state.IsFitted())
}
