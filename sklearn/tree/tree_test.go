package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pipeperm/pkg/errors"
)

// separable は左下と右上に分かれた2クラスのデータ
func separable() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		2, 2,
		2, 3,
		3, 2,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})
	return X, y
}

func TestDecisionTreeClassifier_FitPredict_Binary(t *testing.T) {
	X, y := separable()
	dt := NewDecisionTreeClassifier(WithCriterion("gini"), WithMaxDepth(5))
	require.NoError(t, dt.Fit(X, y))

	pred, err := dt.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, y.RawMatrix().Data, mat.Col(nil, 0, pred))

	XTest := mat.NewDense(2, 2, []float64{0.5, 0.5, 2.5, 2.5})
	testPred, err := dt.Predict(XTest)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, mat.Col(nil, 0, testPred))
	assert.Equal(t, []int{0, 1}, dt.Classes())
}

func TestDecisionTreeClassifier_PredictProba(t *testing.T) {
	X, y := separable()
	dt := NewDecisionTreeClassifier(WithMaxDepth(3))
	require.NoError(t, dt.Fit(X, y))

	proba, err := dt.PredictProba(X)
	require.NoError(t, err)
	rows, cols := proba.Dims()
	require.Equal(t, 6, rows)
	require.Equal(t, 2, cols)
	for i := 0; i < rows; i++ {
		assert.InDelta(t, 1.0, proba.At(i, 0)+proba.At(i, 1), 1e-9)
	}
}

func TestDecisionTreeClassifier_Score(t *testing.T) {
	// 両方の特徴量が似ていればクラス0、異なればクラス1 (XOR)
	X := mat.NewDense(8, 2, []float64{
		0.0, 0.0,
		0.0, 0.1,
		0.1, 1.0,
		0.0, 0.9,
		1.0, 0.0,
		0.9, 0.0,
		1.0, 1.0,
		0.9, 0.9,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 1, 1, 1, 1, 0, 0})

	dt := NewDecisionTreeClassifier(WithMaxDepth(5), WithMinSamplesLeaf(1))
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 1.0, dt.Score(X, y))

	Xs, ys := separable()
	entropy := NewDecisionTreeClassifier(WithCriterion("entropy"), WithMaxDepth(3))
	require.NoError(t, entropy.Fit(Xs, ys))
	assert.Equal(t, 1.0, entropy.Score(Xs, ys))
}

func TestDecisionTreeClassifier_Multiclass(t *testing.T) {
	X := mat.NewDense(9, 2, []float64{
		0, 0, 0, 1, 1, 0,
		3, 3, 3, 4, 4, 3,
		6, 6, 6, 7, 7, 6,
	})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})

	dt := NewDecisionTreeClassifier(WithMaxDepth(5))
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 3, dt.nClasses_)
	assert.Equal(t, 1.0, dt.Score(X, y))

	proba, err := dt.PredictProba(X)
	require.NoError(t, err)
	for i := 0; i < 9; i++ {
		row := mat.Row(nil, i, proba)
		assert.Equal(t, 1.0, row[int(y.At(i, 0))], "sample %d", i)
	}
}

func TestDecisionTreeClassifier_FeatureImportance(t *testing.T) {
	// 特徴量0だけがクラスを決める
	X := mat.NewDense(8, 3, []float64{
		0, 0, 0,
		0, 1, 1,
		0, 0, 1,
		0, 1, 0,
		1, 0, 0,
		1, 1, 1,
		1, 0, 1,
		1, 1, 0,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, []float64{1, 0, 0}, dt.GetFeatureImportances())
	assert.Equal(t, 1, dt.GetDepth())
	assert.Equal(t, 2, dt.GetNLeaves())
}

func TestDecisionTreeClassifier_Constraints(t *testing.T) {
	X := mat.NewDense(16, 2, nil)
	y := mat.NewDense(16, 1, nil)
	for i := 0; i < 16; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%4))
		y.Set(i, 0, float64(i%2))
	}

	shallow := NewDecisionTreeClassifier(WithMaxDepth(2))
	require.NoError(t, shallow.Fit(X, y))
	assert.LessOrEqual(t, shallow.GetDepth(), 2)

	coarse := NewDecisionTreeClassifier(WithMinSamplesSplit(5), WithMinSamplesLeaf(4))
	require.NoError(t, coarse.Fit(X, y))
	assert.LessOrEqual(t, coarse.GetNLeaves(), 4)
}

func TestDecisionTreeClassifier_GetSetParams(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	params := dt.GetParams()
	assert.Equal(t, "gini", params["criterion"])
	assert.Equal(t, 2, params["min_samples_split"])

	require.NoError(t, dt.SetParams(map[string]interface{}{
		"criterion":         "entropy",
		"max_depth":         5,
		"min_samples_split": 4.0,
		"min_samples_leaf":  2,
	}))
	assert.Equal(t, "entropy", dt.criterion)
	assert.Equal(t, 5, dt.maxDepth)
	assert.Equal(t, 4, dt.minSamplesSplit)
	assert.Equal(t, 2, dt.minSamplesLeaf)

	assert.Error(t, dt.SetParams(map[string]interface{}{"splitter": "best"}))

	clone := dt.Clone().(*DecisionTreeClassifier)
	assert.Equal(t, dt.GetParams(), clone.GetParams())
	assert.False(t, clone.state.IsFitted())
}

func TestDecisionTreeClassifier_Errors(t *testing.T) {
	X, y := separable()

	dt := NewDecisionTreeClassifier()
	_, err := dt.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
	_, err = dt.PredictProba(X)
	assert.Error(t, err)

	assert.Error(t, NewDecisionTreeClassifier(WithCriterion("log_loss")).Fit(X, y))
	assert.Error(t, NewDecisionTreeClassifier(WithMinSamplesSplit(1)).Fit(X, y))

	require.NoError(t, dt.Fit(X, y))
	_, err = dt.Predict(mat.NewDense(1, 3, nil))
	assert.Error(t, err)
}
