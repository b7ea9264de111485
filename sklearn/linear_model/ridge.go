package linear_model

import (
	"fmt"

	"github.com/YuminosukeSato/pipeperm/core/model"
	"github.com/YuminosukeSato/pipeperm/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Ridge は L2 正則化付き最小二乗回帰
// 目的関数: ||y - Xw||² + alpha * ||w||²（切片は正則化しない）
type Ridge struct {
	state *model.StateManager

	alpha        float64
	fitIntercept bool

	coef_      []float64
	intercept_ float64
}

// RidgeOption は Ridge の関数オプション
type RidgeOption func(*Ridge)

// WithAlpha は正則化の強さを設定する (デフォルト: 1.0)
func WithAlpha(alpha float64) RidgeOption {
	return func(r *Ridge) { r.alpha = alpha }
}

// WithRidgeFitIntercept は切片の学習有無を設定する
func WithRidgeFitIntercept(fit bool) RidgeOption {
	return func(r *Ridge) { r.fitIntercept = fit }
}

// NewRidge は新しい Ridge 回帰モデルを作成する
func NewRidge(opts ...RidgeOption) *Ridge {
	r := &Ridge{
		state:        model.NewStateManager(),
		alpha:        1.0,
		fitIntercept: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name implements model.Named.
func (r *Ridge) Name() string { return "Ridge" }

// Fit は中心化したデータで (XᵀX + αI) w = Xᵀy を解く
func (r *Ridge) Fit(X, y mat.Matrix) error {
	rows, cols, err := checkXY("Ridge.Fit", X, y)
	if err != nil {
		return err
	}
	if r.alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", r.alpha)
	}

	Xc := mat.DenseCopyOf(X)
	yc := mat.Col(nil, 0, y)
	xMean := make([]float64, cols)
	var yMean float64
	if r.fitIntercept {
		col := make([]float64, rows)
		for j := 0; j < cols; j++ {
			mat.Col(col, j, Xc)
			xMean[j] = stat.Mean(col, nil)
		}
		yMean = stat.Mean(yc, nil)
		Xc.Apply(func(_, j int, v float64) float64 { return v - xMean[j] }, Xc)
		for i := range yc {
			yc[i] -= yMean
		}
	}

	var gram mat.SymDense
	gram.SymOuterK(1, Xc.T())
	for j := 0; j < cols; j++ {
		gram.SetSym(j, j, gram.At(j, j)+r.alpha)
	}

	var rhs mat.VecDense
	rhs.MulVec(Xc.T(), mat.NewVecDense(rows, yc))

	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return errors.NewModelError("Ridge.Fit", "cholesky", errors.ErrSingularMatrix)
	}
	var w mat.VecDense
	if err := chol.SolveVecTo(&w, &rhs); err != nil {
		return errors.NewModelError("Ridge.Fit", "solve", err)
	}

	r.coef_ = make([]float64, cols)
	r.intercept_ = yMean
	for j := 0; j < cols; j++ {
		r.coef_[j] = w.AtVec(j)
		r.intercept_ -= xMean[j] * r.coef_[j]
	}

	r.state.SetDimensions(cols, rows)
	r.state.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (r *Ridge) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := r.state.RequireFitted("Ridge", "Predict"); err != nil {
		return nil, err
	}
	_, cols := X.Dims()
	if err := r.state.RequireFeatures("Ridge.Predict", cols); err != nil {
		return nil, err
	}
	return linearPredict(X, r.coef_, r.intercept_), nil
}

// Coef は学習された重み係数のコピーを返す
func (r *Ridge) Coef() []float64 {
	return append([]float64(nil), r.coef_...)
}

// Intercept は学習された切片を返す
func (r *Ridge) Intercept() float64 {
	return r.intercept_
}

// GetParams はハイパーパラメータを返す
func (r *Ridge) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":         r.alpha,
		"fit_intercept": r.fitIntercept,
	}
}

// SetParams はハイパーパラメータを設定する
func (r *Ridge) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "alpha":
			r.alpha, err = model.ParamFloat(key, value)
		case "fit_intercept":
			r.fitIntercept, err = model.ParamBool(key, value)
		default:
			return model.UnknownParamError("Ridge", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone は同じハイパーパラメータを持つ未学習のコピーを返す
func (r *Ridge) Clone() model.Estimator {
	return NewRidge(WithAlpha(r.alpha), WithRidgeFitIntercept(r.fitIntercept))
}

func (r *Ridge) String() string {
	return fmt.Sprintf("Ridge(alpha=%g, fit_intercept=%t)", r.alpha, r.fitIntercept)
}
