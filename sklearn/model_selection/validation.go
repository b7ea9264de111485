package model_selection

import (
	"context"

	"github.com/YuminosukeSato/pipeperm/core/model"
	"github.com/YuminosukeSato/pipeperm/metrics"
	"github.com/YuminosukeSato/pipeperm/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Subset copies the given rows of X and y, in the order given. y may be nil.
func Subset(X, y mat.Matrix, indices []int) (*mat.Dense, *mat.Dense) {
	rows := len(indices)
	_, xCols := X.Dims()
	xSubset := mat.NewDense(rows, xCols, nil)
	var ySubset *mat.Dense
	if y != nil {
		_, yCols := y.Dims()
		ySubset = mat.NewDense(rows, yCols, nil)
	}

	for i, idx := range indices {
		for j := 0; j < xCols; j++ {
			xSubset.Set(i, j, X.At(idx, j))
		}
		if ySubset != nil {
			_, yCols := ySubset.Dims()
			for j := 0; j < yCols; j++ {
				ySubset.Set(i, j, y.At(idx, j))
			}
		}
	}
	return xSubset, ySubset
}

// Column returns column 0 of m as a vector.
func Column(m mat.Matrix) *mat.VecDense {
	col := mat.Col(nil, 0, m)
	return mat.NewVecDense(len(col), col)
}

// FitAndScore clones est, applies params, fits it on the train rows and
// scores its predictions on the test rows. It returns the fitted clone.
func FitAndScore(est model.Estimator, params map[string]interface{}, X, y mat.Matrix,
	fold Fold, scorer metrics.Scorer,
) (score float64, fitted model.Estimator, err error) {
	defer errors.Recover(&err, "FitAndScore")

	fitted = est.Clone()
	if len(params) > 0 {
		if err := fitted.SetParams(params); err != nil {
			return 0, nil, err
		}
	}

	XTrain, yTrain := Subset(X, y, fold.Train)
	if err := fitted.Fit(XTrain, yTrain); err != nil {
		return 0, nil, err
	}

	pred, ok := fitted.(model.Predictor)
	if !ok {
		return 0, nil, errors.NewValueError("FitAndScore", model.NameOf(est)+" does not implement Predict")
	}
	XTest, yTest := Subset(X, y, fold.Test)
	yPred, err := pred.Predict(XTest)
	if err != nil {
		return 0, nil, err
	}

	score, err = scorer(Column(yTest), Column(yPred))
	if err != nil {
		return 0, nil, err
	}
	if err := errors.CheckFinite("score", score); err != nil {
		return 0, nil, err
	}
	return score, fitted, nil
}

// CrossValScore returns the test score of est with params on each fold of
// cv. The first failing fold aborts the evaluation.
func CrossValScore(ctx context.Context, est model.Estimator, params map[string]interface{},
	X, y mat.Matrix, cv Splitter, scorer metrics.Scorer,
) ([]float64, error) {
	folds, err := cv.Split(X, y)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(folds))
	for i, fold := range folds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, _, err := FitAndScore(est, params, X, y, fold, scorer)
		if err != nil {
			return nil, errors.Wrapf(err, "inner fold %d", i)
		}
		scores[i] = s
	}
	return scores, nil
}
