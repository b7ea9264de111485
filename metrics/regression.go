package metrics

import (
	"math"

	"github.com/YuminosukeSato/pipeperm/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score は決定係数（R²）を計算する。
// yTrue が定数の場合は scikit-learn と同様に完全一致なら 1、それ以外は 0 を返し、
// UndefinedMetricWarning を発生させる。
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	yMean := stat.Mean(mat.Col(nil, 0, yTrue), nil)

	// 全変動（TSS）と残差変動（RSS）
	var tss, rss float64
	for i := 0; i < n; i++ {
		t := yTrue.AtVec(i)
		p := yPred.AtVec(i)
		tss += (t - yMean) * (t - yMean)
		rss += (t - p) * (t - p)
	}

	if tss == 0 {
		result := 0.0
		if rss == 0 {
			result = 1.0
		}
		errors.Warn(errors.NewUndefinedMetricWarning("r2", "no variance in y_true", result))
		return result, nil
	}

	return 1 - rss/tss, nil
}

// ExplainedVarianceScore は説明分散スコアを計算する
func ExplainedVarianceScore(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("ExplainedVarianceScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	trueVals := make([]float64, n)
	diffs := make([]float64, n)
	for i := 0; i < n; i++ {
		trueVals[i] = yTrue.AtVec(i)
		diffs[i] = trueVals[i] - yPred.AtVec(i)
	}

	// 母分散（ddof=0）
	_, varTrue := stat.PopMeanVariance(trueVals, nil)
	_, varDiff := stat.PopMeanVariance(diffs, nil)

	if varTrue == 0 {
		return 0, errors.NewValueError("ExplainedVarianceScore", "no variance in yTrue")
	}
	return 1 - varDiff/varTrue, nil
}

// RegressionReport は残差の要約統計量
type RegressionReport struct {
	N            int
	MeanResidual float64
	StdResidual  float64
	MaxAbsError  float64
	MAE          float64
	RMSE         float64
	R2           float64
}

// NewRegressionReport は残差 (yTrue - yPred) の統計量をまとめて計算する
func NewRegressionReport(yTrue, yPred *mat.VecDense) (*RegressionReport, error) {
	n, err := checkPair("NewRegressionReport", yTrue, yPred)
	if err != nil {
		return nil, err
	}

	residuals := make([]float64, n)
	var maxAbs float64
	for i := 0; i < n; i++ {
		residuals[i] = yTrue.AtVec(i) - yPred.AtVec(i)
		maxAbs = math.Max(maxAbs, math.Abs(residuals[i]))
	}

	rep := &RegressionReport{N: n, MaxAbsError: maxAbs}
	rep.MeanResidual, rep.StdResidual = stat.PopMeanStdDev(residuals, nil)
	if rep.MAE, err = MAE(yTrue, yPred); err != nil {
		return nil, err
	}
	if rep.RMSE, err = RMSE(yTrue, yPred); err != nil {
		return nil, err
	}
	if rep.R2, err = R2Score(yTrue, yPred); err != nil {
		return nil, err
	}
	return rep, nil
}
