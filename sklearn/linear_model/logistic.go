package linear_model

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/pipeperm/core/model"
	"github.com/YuminosukeSato/pipeperm/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// LogisticRegression implements logistic regression for classification
// Compatible with scikit-learn's LogisticRegression. Multiclass problems are
// solved one-vs-rest.
type LogisticRegression struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	penalty      string  // Regularization: "l2", "none"
	C            float64 // Inverse regularization strength (1/alpha)
	fitIntercept bool    // Whether to fit intercept
	maxIter      int     // Maximum iterations
	tol          float64 // Tolerance for stopping

	// Model parameters
	coef_      [][]float64 // Coefficients (n_classes x n_features or 1 x n_features for binary)
	intercept_ []float64   // Intercept terms
	classes_   []int       // Unique class labels
	nIter_     []int       // Actual iterations per class
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		maxIter:      100,
		tol:          1e-4,
	}

	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// Name implements model.Named.
func (lr *LogisticRegression) Name() string { return "LogisticRegression" }

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures, err := checkXY("LogisticRegression.Fit", X, y)
	if err != nil {
		return err
	}
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	if lr.penalty != "l2" && lr.penalty != "none" {
		return errors.NewValidationError("penalty", "must be \"l2\" or \"none\"", lr.penalty)
	}

	lr.extractClasses(y)
	if len(lr.classes_) < 2 {
		return errors.NewValueError("LogisticRegression.Fit",
			fmt.Sprintf("needs samples of at least 2 classes, got %d", len(lr.classes_)))
	}

	// 二値分類は陽性クラス (classes_[1]) の1組、多クラスはクラスごとに1組
	nModels := len(lr.classes_)
	if nModels == 2 {
		nModels = 1
	}
	lr.coef_ = make([][]float64, nModels)
	lr.intercept_ = make([]float64, nModels)
	lr.nIter_ = make([]int, nModels)

	target := make([]float64, nSamples)
	for k := 0; k < nModels; k++ {
		positive := lr.classes_[k]
		if nModels == 1 {
			positive = lr.classes_[1]
		}
		for i := 0; i < nSamples; i++ {
			target[i] = 0
			if int(math.Round(y.At(i, 0))) == positive {
				target[i] = 1
			}
		}
		lr.coef_[k] = make([]float64, nFeatures)
		lr.nIter_[k] = lr.fitBinary(X, target, lr.coef_[k], &lr.intercept_[k])
		if lr.nIter_[k] >= lr.maxIter {
			errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.maxIter,
				"gradient descent did not converge; increase max_iter or scale the data"))
		}
	}

	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()
	return nil
}

// extractClasses identifies unique class labels in ascending order
func (lr *LogisticRegression) extractClasses(y mat.Matrix) {
	rows, _ := y.Dims()
	classMap := make(map[int]bool)
	for i := 0; i < rows; i++ {
		classMap[int(math.Round(y.At(i, 0)))] = true
	}

	lr.classes_ = make([]int, 0, len(classMap))
	for class := range classMap {
		lr.classes_ = append(lr.classes_, class)
	}
	sort.Ints(lr.classes_)
}

// fitBinary fits one binary problem by gradient descent and returns the
// number of iterations run.
func (lr *LogisticRegression) fitBinary(X mat.Matrix, target, weights []float64, intercept *float64) int {
	nSamples, nFeatures := X.Dims()
	baseLearningRate := 1.0

	for iter := 0; iter < lr.maxIter; iter++ {
		gradWeights := make([]float64, nFeatures)
		gradIntercept := 0.0

		for i := 0; i < nSamples; i++ {
			z := *intercept
			for j := 0; j < nFeatures; j++ {
				z += X.At(i, j) * weights[j]
			}
			residual := sigmoid(z) - target[i]
			gradIntercept += residual
			for j := 0; j < nFeatures; j++ {
				gradWeights[j] += residual * X.At(i, j)
			}
		}

		for j := range gradWeights {
			gradWeights[j] /= float64(nSamples)
		}
		gradIntercept /= float64(nSamples)

		if lr.penalty == "l2" {
			lambda := 1.0 / (lr.C * float64(nSamples))
			for j := range weights {
				gradWeights[j] += lambda * weights[j]
			}
		}

		learningRate := baseLearningRate / (1.0 + 0.1*float64(iter))
		for j := range weights {
			weights[j] -= learningRate * gradWeights[j]
		}
		if lr.fitIntercept {
			*intercept -= learningRate * gradIntercept
		}

		maxGrad := math.Abs(gradIntercept)
		for _, g := range gradWeights {
			maxGrad = math.Max(maxGrad, math.Abs(g))
		}
		if maxGrad < lr.tol {
			return iter + 1
		}
	}
	return lr.maxIter
}

func (lr *LogisticRegression) decision(X mat.Matrix, i, k int) float64 {
	z := lr.intercept_[k]
	for j, w := range lr.coef_[k] {
		z += X.At(i, j) * w
	}
	return z
}

func (lr *LogisticRegression) checkPredict(op string, X mat.Matrix) error {
	if err := lr.state.RequireFitted("LogisticRegression", op); err != nil {
		return err
	}
	_, cols := X.Dims()
	return lr.state.RequireFeatures("LogisticRegression."+op, cols)
}

// Predict makes predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.checkPredict("Predict", X); err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		if len(lr.coef_) == 1 {
			label := lr.classes_[0]
			if sigmoid(lr.decision(X, i, 0)) >= 0.5 {
				label = lr.classes_[1]
			}
			predictions.Set(i, 0, float64(label))
			continue
		}

		best, bestScore := 0, math.Inf(-1)
		for k := range lr.coef_ {
			if s := lr.decision(X, i, k); s > bestScore {
				best, bestScore = k, s
			}
		}
		predictions.Set(i, 0, float64(lr.classes_[best]))
	}
	return predictions, nil
}

// PredictProba returns probability estimates for each class
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.checkPredict("PredictProba", X); err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	nClasses := len(lr.classes_)
	probas := mat.NewDense(nSamples, nClasses, nil)
	scores := make([]float64, nClasses)
	for i := 0; i < nSamples; i++ {
		if nClasses == 2 {
			p := sigmoid(lr.decision(X, i, 0))
			probas.Set(i, 0, 1.0-p)
			probas.Set(i, 1, p)
			continue
		}

		// softmax
		maxScore := math.Inf(-1)
		for k := range scores {
			scores[k] = lr.decision(X, i, k)
			maxScore = math.Max(maxScore, scores[k])
		}
		sum := 0.0
		for k := range scores {
			scores[k] = math.Exp(scores[k] - maxScore)
			sum += scores[k]
		}
		for k := range scores {
			probas.Set(i, k, scores[k]/sum)
		}
	}
	return probas, nil
}

// Classes returns the class labels seen during fitting
func (lr *LogisticRegression) Classes() []int {
	return append([]int(nil), lr.classes_...)
}

// NIter returns the iterations run per binary problem
func (lr *LogisticRegression) NIter() []int {
	return append([]int(nil), lr.nIter_...)
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
	}
}

// SetParams sets the model hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "penalty":
			lr.penalty, err = model.ParamString(key, value)
		case "C":
			lr.C, err = model.ParamFloat(key, value)
		case "fit_intercept":
			lr.fitIntercept, err = model.ParamBool(key, value)
		case "max_iter":
			lr.maxIter, err = model.ParamInt(key, value)
		case "tol":
			lr.tol, err = model.ParamFloat(key, value)
		default:
			return model.UnknownParamError("LogisticRegression", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters
func (lr *LogisticRegression) Clone() model.Estimator {
	return NewLogisticRegression(
		WithLRPenalty(lr.penalty),
		WithLRC(lr.C),
		WithLogisticFitIntercept(lr.fitIntercept),
		WithLRMaxIter(lr.maxIter),
		WithLRTol(lr.tol),
	)
}

func (lr *LogisticRegression) String() string {
	return fmt.Sprintf("LogisticRegression(penalty=%s, C=%g, max_iter=%d)", lr.penalty, lr.C, lr.maxIter)
}

// sigmoid computes the sigmoid function
func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
