package linear_model

import (
	"fmt"

	"github.com/YuminosukeSato/pipeperm/core/model"
	"github.com/YuminosukeSato/pipeperm/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// LinearRegression is a linear regression model using ordinary least squares
// Compatible with scikit-learn's LinearRegression
type LinearRegression struct {
	state *model.StateManager // State management (composition instead of embedding)

	// Hyperparameters
	fitIntercept bool // Whether to learn the intercept
	positive     bool // Whether to clip coefficients to be positive

	// Learned parameters
	coef_      []float64
	intercept_ float64
}

// LinearRegressionOption は設定オプション
type LinearRegressionOption func(*LinearRegression)

// WithLRFitIntercept は切片の学習有無を設定（LinearRegression用）
func WithLRFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// WithPositive は係数の正制約を設定
func WithPositive(positive bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.positive = positive
	}
}

// NewLinearRegression は新しいLinearRegressionモデルを作成
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{
		state:        model.NewStateManager(),
		fitIntercept: true,
	}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// Name implements model.Named.
func (lr *LinearRegression) Name() string { return "LinearRegression" }

// Fit はモデルを訓練データで学習
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	rows, cols, err := checkXY("LinearRegression.Fit", X, y)
	if err != nil {
		return err
	}

	// 切片の処理: [1 | X] の行列を作成
	XFit := mat.DenseCopyOf(X)
	if lr.fitIntercept {
		XFit = mat.NewDense(rows, cols+1, nil)
		for i := 0; i < rows; i++ {
			XFit.Set(i, 0, 1.0)
			for j := 0; j < cols; j++ {
				XFit.Set(i, j+1, X.At(i, j))
			}
		}
	}
	_, qrCols := XFit.Dims()
	if rows < qrCols {
		return errors.NewValueError("LinearRegression.Fit",
			fmt.Sprintf("need at least %d samples for %d coefficients, got %d", qrCols, qrCols, rows))
	}

	// 正規方程式より数値的に安定なQR分解を使用
	var qr mat.QR
	qr.Factorize(XFit)

	coefficients := mat.NewDense(qrCols, 1, nil)
	if err := qr.SolveTo(coefficients, false, y); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "solve", errors.Wrap(errors.ErrSingularMatrix, err.Error()))
	}

	offset := 0
	lr.intercept_ = 0
	if lr.fitIntercept {
		lr.intercept_ = coefficients.At(0, 0)
		offset = 1
	}
	lr.coef_ = make([]float64, cols)
	for i := 0; i < cols; i++ {
		lr.coef_[i] = coefficients.At(i+offset, 0)
	}

	if lr.positive {
		for i := range lr.coef_ {
			if lr.coef_[i] < 0 {
				lr.coef_[i] = 0
			}
		}
	}

	lr.state.SetDimensions(cols, rows)
	lr.state.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	_, cols := X.Dims()
	if err := lr.state.RequireFeatures("LinearRegression.Predict", cols); err != nil {
		return nil, err
	}
	return linearPredict(X, lr.coef_, lr.intercept_), nil
}

// Coef は学習された重み係数のコピーを返す
func (lr *LinearRegression) Coef() []float64 {
	return append([]float64(nil), lr.coef_...)
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 {
	return lr.intercept_
}

// GetParams はハイパーパラメータを返す
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
		"positive":      lr.positive,
	}
}

// SetParams はハイパーパラメータを設定する
func (lr *LinearRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "fit_intercept":
			lr.fitIntercept, err = model.ParamBool(key, value)
		case "positive":
			lr.positive, err = model.ParamBool(key, value)
		default:
			return model.UnknownParamError("LinearRegression", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone は同じハイパーパラメータを持つ未学習のコピーを返す
func (lr *LinearRegression) Clone() model.Estimator {
	return NewLinearRegression(WithLRFitIntercept(lr.fitIntercept), WithPositive(lr.positive))
}

// String returns a string representation of the model
func (lr *LinearRegression) String() string {
	return fmt.Sprintf("LinearRegression(fit_intercept=%t, positive=%t)", lr.fitIntercept, lr.positive)
}

// checkXY は X と列ベクトル y の形状を検証する
func checkXY(op string, X, y mat.Matrix) (rows, cols int, err error) {
	rows, cols = X.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if y == nil {
		return 0, 0, errors.NewValueError(op, "y is required")
	}
	yRows, yCols := y.Dims()
	if rows != yRows {
		return 0, 0, errors.NewDimensionError(op, rows, yRows, 0)
	}
	if yCols != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yCols, 1)
	}
	return rows, cols, nil
}

func linearPredict(X mat.Matrix, coef []float64, intercept float64) *mat.Dense {
	rows, _ := X.Dims()
	w := mat.NewVecDense(len(coef), append([]float64(nil), coef...))
	var out mat.VecDense
	out.MulVec(X, w)
	predictions := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		predictions.Set(i, 0, out.AtVec(i)+intercept)
	}
	return predictions
}
