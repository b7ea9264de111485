package decomposition

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pipeperm/pkg/errors"
)

func TestPCA_ProjectsOntoMainAxis(t *testing.T) {
	// 点はすべて直線 y = x 上にある
	X := mat.NewDense(4, 2, []float64{
		1, 1,
		2, 2,
		3, 3,
		4, 4,
	})

	p := NewPCA(WithNComponents(1))
	require.NoError(t, p.Fit(X, nil))
	assert.InDeltaSlice(t, []float64{2.5, 2.5}, p.Mean, 1e-12)
	assert.InDelta(t, 1.0, p.ExplainedVarianceRatio[0], 1e-9)

	Z, err := p.Transform(X)
	require.NoError(t, err)
	r, c := Z.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 1, c)

	// 射影後の距離は元の距離と一致する（符号は任意）
	assert.InDelta(t, math.Sqrt(2), math.Abs(Z.At(1, 0)-Z.At(0, 0)), 1e-9)
}

func TestPCA_DefaultKeepsAllComponents(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{0, 1, 1, 0, 2, 2})
	p := NewPCA()
	require.NoError(t, p.Fit(X, nil))
	_, c := p.Components.Dims()
	assert.Equal(t, 2, c)
}

func TestPCA_Errors(t *testing.T) {
	p := NewPCA(WithNComponents(3))
	err := p.Fit(mat.NewDense(4, 2, []float64{1, 2, 3, 4, 5, 6, 7, 8}), nil)
	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = NewPCA().Transform(mat.NewDense(1, 2, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	assert.Error(t, p.SetParams(map[string]interface{}{"svd_solver": "full"}))
}
