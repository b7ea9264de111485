package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/pipeperm/pkg/errors"
)

func TestGetScorer(t *testing.T) {
	yTrue := vec(1, 2, 3, 4)
	yPred := vec(1, 2, 3, 2)

	mse, err := GetScorer("neg_mean_squared_error")
	require.NoError(t, err)
	got, err := mse(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, got, 1e-12)

	acc, err := GetScorer("accuracy")
	require.NoError(t, err)
	got, err = acc(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, got, 1e-12)

	_, err = GetScorer("nope")
	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestScorerNamesSorted(t *testing.T) {
	names := ScorerNames()
	assert.IsNonDecreasing(t, names)
	assert.Contains(t, names, "r2")
	assert.True(t, IsClassificationScorer("f1_macro"))
	assert.False(t, IsClassificationScorer("r2"))
}

func TestRegressionReport(t *testing.T) {
	rep, err := NewRegressionReport(vec(1, 2, 3, 4), vec(2, 2, 3, 2))
	require.NoError(t, err)
	assert.Equal(t, 4, rep.N)
	assert.InDelta(t, 2.0, rep.MaxAbsError, 1e-12)
	assert.InDelta(t, 0.25, rep.MeanResidual, 1e-12)
	assert.InDelta(t, 0.75, rep.MAE, 1e-12)
}
