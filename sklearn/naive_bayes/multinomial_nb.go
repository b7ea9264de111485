// Package naive_bayes provides a multinomial naive Bayes classifier for
// non-negative count-like features.
package naive_bayes

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pipeperm/core/model"
	"github.com/YuminosukeSato/pipeperm/metrics"
	"github.com/YuminosukeSato/pipeperm/pkg/errors"
)

// minAlpha は alpha=0 のときに使う下限値
const minAlpha = 1e-10

// MultinomialNB は多項分布ナイーブベイズ分類器
type MultinomialNB struct {
	state *model.StateManager

	// ハイパーパラメータ
	alpha    float64
	fitPrior bool

	// 学習済みパラメータ
	classes_        []int
	classCount_     []float64
	featureCount_   *mat.Dense // n_classes × n_features
	classLogPrior_  []float64
	featureLogProb_ *mat.Dense
	nSamplesSeen_   int
}

// Option configures a MultinomialNB.
type Option func(*MultinomialNB)

// WithAlpha sets additive (Laplace) smoothing.
func WithAlpha(alpha float64) Option {
	return func(nb *MultinomialNB) { nb.alpha = alpha }
}

// WithFitPrior chooses between learned class priors and a uniform prior.
func WithFitPrior(fit bool) Option {
	return func(nb *MultinomialNB) { nb.fitPrior = fit }
}

// NewMultinomialNB creates an unfitted classifier with alpha=1.
func NewMultinomialNB(opts ...Option) *MultinomialNB {
	nb := &MultinomialNB{
		state:    model.NewStateManager(),
		alpha:    1.0,
		fitPrior: true,
	}
	for _, opt := range opts {
		opt(nb)
	}
	return nb
}

// Fit discards previous state and learns from (X, y).
func (nb *MultinomialNB) Fit(X, y mat.Matrix) error {
	nb.state.Reset()
	nb.classes_ = nil
	nb.nSamplesSeen_ = 0
	return nb.PartialFit(X, y, nil)
}

// PartialFit updates the counts with another batch. classes must list every
// label on the first call unless it is made through Fit; later calls may
// pass nil.
func (nb *MultinomialNB) PartialFit(X, y mat.Matrix, classes []int) error {
	if nb.alpha < 0 {
		return errors.NewValidationError("alpha", "must be >= 0", nb.alpha)
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewValueError("MultinomialNB.PartialFit", "empty input data")
	}
	if y == nil {
		return errors.NewValueError("MultinomialNB.PartialFit", "y is required")
	}
	if yRows, _ := y.Dims(); yRows != rows {
		return errors.NewDimensionError("MultinomialNB.PartialFit", rows, yRows, 0)
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if X.At(i, j) < 0 {
				return errors.NewValueError("MultinomialNB.PartialFit", "negative values in X")
			}
		}
	}

	if nb.classes_ == nil {
		if classes == nil {
			classes = labels(y)
		}
		nb.classes_ = append([]int(nil), classes...)
		sort.Ints(nb.classes_)
		nb.classCount_ = make([]float64, len(nb.classes_))
		nb.featureCount_ = mat.NewDense(len(nb.classes_), cols, nil)
	} else if err := nb.state.RequireFeatures("MultinomialNB.PartialFit", cols); err != nil {
		return err
	}

	index := make(map[int]int, len(nb.classes_))
	for i, c := range nb.classes_ {
		index[c] = i
	}
	for i := 0; i < rows; i++ {
		label := int(math.Round(y.At(i, 0)))
		k, ok := index[label]
		if !ok {
			return errors.NewValueError("MultinomialNB.PartialFit", fmt.Sprintf("label %d not in classes %v", label, nb.classes_))
		}
		nb.classCount_[k]++
		for j := 0; j < cols; j++ {
			nb.featureCount_.Set(k, j, nb.featureCount_.At(k, j)+X.At(i, j))
		}
	}
	nb.nSamplesSeen_ += rows
	nb.updateLogProbs()

	nb.state.SetDimensions(cols, nb.nSamplesSeen_)
	nb.state.SetFitted()
	return nil
}

func (nb *MultinomialNB) updateLogProbs() {
	alpha := nb.alpha
	if alpha < minAlpha {
		alpha = minAlpha
	}
	k, d := nb.featureCount_.Dims()

	nb.featureLogProb_ = mat.NewDense(k, d, nil)
	for c := 0; c < k; c++ {
		row := nb.featureCount_.RawRowView(c)
		total := floats.Sum(row) + alpha*float64(d)
		for j, v := range row {
			nb.featureLogProb_.Set(c, j, math.Log(v+alpha)-math.Log(total))
		}
	}

	nb.classLogPrior_ = make([]float64, k)
	for c := range nb.classLogPrior_ {
		if nb.fitPrior {
			nb.classLogPrior_[c] = math.Log(nb.classCount_[c]) - math.Log(float64(nb.nSamplesSeen_))
		} else {
			nb.classLogPrior_[c] = -math.Log(float64(k))
		}
	}
}

// jointLogLikelihood は X · log P(x|c)ᵀ + log P(c) を返す (n × n_classes)
func (nb *MultinomialNB) jointLogLikelihood(method string, X mat.Matrix) (*mat.Dense, error) {
	if err := nb.state.RequireFitted("MultinomialNB", method); err != nil {
		return nil, err
	}
	_, cols := X.Dims()
	if err := nb.state.RequireFeatures("MultinomialNB."+method, cols); err != nil {
		return nil, err
	}
	var jll mat.Dense
	jll.Mul(X, nb.featureLogProb_.T())
	rows, k := jll.Dims()
	for i := 0; i < rows; i++ {
		for c := 0; c < k; c++ {
			jll.Set(i, c, jll.At(i, c)+nb.classLogPrior_[c])
		}
	}
	return &jll, nil
}

// PredictLogProba returns normalised log class probabilities.
func (nb *MultinomialNB) PredictLogProba(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood("PredictLogProba", X)
	if err != nil {
		return nil, err
	}
	rows, _ := jll.Dims()
	for i := 0; i < rows; i++ {
		row := jll.RawRowView(i)
		floats.AddConst(-floats.LogSumExp(row), row)
	}
	return jll, nil
}

// PredictProba returns class probabilities, columns ordered as Classes.
func (nb *MultinomialNB) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	logProba, err := nb.PredictLogProba(X)
	if err != nil {
		return nil, err
	}
	out := mat.DenseCopyOf(logProba)
	out.Apply(func(_, _ int, v float64) float64 { return math.Exp(v) }, out)
	return out, nil
}

// Predict returns the most probable class per row.
func (nb *MultinomialNB) Predict(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood("Predict", X)
	if err != nil {
		return nil, err
	}
	rows, _ := jll.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, float64(nb.classes_[floats.MaxIdx(jll.RawRowView(i))]))
	}
	return out, nil
}

// Score returns the accuracy on (X, y).
func (nb *MultinomialNB) Score(X, y mat.Matrix) (float64, error) {
	pred, err := nb.Predict(X)
	if err != nil {
		return 0, err
	}
	rows, _ := y.Dims()
	return metrics.Accuracy(
		mat.NewVecDense(rows, mat.Col(nil, 0, y)),
		mat.NewVecDense(rows, mat.Col(nil, 0, pred)),
	)
}

// Classes returns the sorted class labels.
func (nb *MultinomialNB) Classes() []int {
	return append([]int(nil), nb.classes_...)
}

// NSamplesSeen returns the number of rows seen across Fit/PartialFit calls.
func (nb *MultinomialNB) NSamplesSeen() int {
	return nb.nSamplesSeen_
}

// GetParams returns the model hyperparameters
func (nb *MultinomialNB) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":     nb.alpha,
		"fit_prior": nb.fitPrior,
	}
}

// SetParams sets the model hyperparameters
func (nb *MultinomialNB) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "alpha":
			nb.alpha, err = model.ParamFloat(key, value)
		case "fit_prior":
			nb.fitPrior, err = model.ParamBool(key, value)
		default:
			return model.UnknownParamError("MultinomialNB", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters
func (nb *MultinomialNB) Clone() model.Estimator {
	return NewMultinomialNB(WithAlpha(nb.alpha), WithFitPrior(nb.fitPrior))
}

// Name returns the display name
func (nb *MultinomialNB) Name() string {
	return "MultinomialNB"
}

func labels(y mat.Matrix) []int {
	rows, _ := y.Dims()
	seen := make(map[int]struct{})
	var out []int
	for i := 0; i < rows; i++ {
		l := int(math.Round(y.At(i, 0)))
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	return out
}
