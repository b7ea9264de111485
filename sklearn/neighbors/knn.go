// Package neighbors implements k-nearest-neighbour estimators.
package neighbors

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/pipeperm/core/model"
	"github.com/YuminosukeSato/pipeperm/core/parallel"
	"github.com/YuminosukeSato/pipeperm/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// predictions on fewer rows than this run on the calling goroutine
const parallelThreshold = 256

// base holds what the classifier and the regressor share: the stored
// training set and the neighbour search.
type base struct {
	state *model.StateManager

	nNeighbors int
	weights    string // "uniform" or "distance"

	X *mat.Dense
	y []float64
}

type neighbor struct {
	dist  float64
	index int
}

func newBase() base {
	return base{state: model.NewStateManager(), nNeighbors: 5, weights: "uniform"}
}

func (b *base) fit(name string, X, y mat.Matrix) error {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError(name+".Fit", "empty data", errors.ErrEmptyData)
	}
	if y == nil {
		return errors.NewValueError(name+".Fit", "y is required")
	}
	if yRows, _ := y.Dims(); yRows != rows {
		return errors.NewDimensionError(name+".Fit", rows, yRows, 0)
	}
	if b.nNeighbors < 1 {
		return errors.NewValidationError("n_neighbors", "must be at least 1", b.nNeighbors)
	}
	if b.nNeighbors > rows {
		return errors.NewValueError(name+".Fit",
			fmt.Sprintf("n_neighbors=%d exceeds the %d training samples", b.nNeighbors, rows))
	}
	if b.weights != "uniform" && b.weights != "distance" {
		return errors.NewValidationError("weights", "must be \"uniform\" or \"distance\"", b.weights)
	}

	b.X = mat.DenseCopyOf(X)
	b.y = mat.Col(nil, 0, y)
	b.state.SetDimensions(cols, rows)
	b.state.SetFitted()
	return nil
}

// kNearest returns the k closest training rows to x, nearest first.
// Equal distances keep training order.
func (b *base) kNearest(x []float64) []neighbor {
	rows, _ := b.X.Dims()
	all := make([]neighbor, rows)
	for i := 0; i < rows; i++ {
		all[i] = neighbor{dist: euclidSquared(x, b.X.RawRowView(i)), index: i}
	}
	sort.SliceStable(all, func(a, c int) bool { return all[a].dist < all[c].dist })
	return all[:b.nNeighbors]
}

func (b *base) weight(n neighbor) float64 {
	if b.weights == "distance" {
		return 1 / math.Max(math.Sqrt(n.dist), 1e-12)
	}
	return 1
}

func (b *base) predict(name string, X mat.Matrix, vote func([]neighbor) float64) (mat.Matrix, error) {
	if err := b.state.RequireFitted(name, "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := b.state.RequireFeatures(name+".Predict", cols); err != nil {
		return nil, err
	}

	out := make([]float64, rows)
	parallel.ParallelizeWithThreshold(rows, parallelThreshold, func(start, end int) {
		x := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(x, i, X)
			out[i] = vote(b.kNearest(x))
		}
	})
	return mat.NewDense(rows, 1, out), nil
}

func (b *base) getParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": b.nNeighbors,
		"weights":     b.weights,
	}
}

func (b *base) setParams(name string, params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "n_neighbors":
			b.nNeighbors, err = model.ParamInt(key, value)
		case "weights":
			b.weights, err = model.ParamString(key, value)
		default:
			return model.UnknownParamError(name, key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Option configures either k-NN estimator.
type Option func(*base)

// WithNNeighbors sets k (default 5).
func WithNNeighbors(k int) Option {
	return func(b *base) { b.nNeighbors = k }
}

// WithWeights sets the vote weighting, "uniform" or "distance".
func WithWeights(w string) Option {
	return func(b *base) { b.weights = w }
}

// KNeighborsClassifier は多数決による k 近傍分類器
type KNeighborsClassifier struct {
	base
	classes []int
}

// NewKNeighborsClassifier creates an unfitted classifier.
func NewKNeighborsClassifier(opts ...Option) *KNeighborsClassifier {
	c := &KNeighborsClassifier{base: newBase()}
	for _, opt := range opts {
		opt(&c.base)
	}
	return c
}

// Name implements model.Named.
func (c *KNeighborsClassifier) Name() string { return "KNeighborsClassifier" }

// Fit stores the training set.
func (c *KNeighborsClassifier) Fit(X, y mat.Matrix) error {
	if err := c.fit("KNeighborsClassifier", X, y); err != nil {
		return err
	}
	seen := make(map[int]struct{})
	c.classes = c.classes[:0]
	for _, v := range c.y {
		l := int(math.Round(v))
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			c.classes = append(c.classes, l)
		}
	}
	sort.Ints(c.classes)
	return nil
}

// Predict returns the weighted majority label; ties go to the smallest label.
func (c *KNeighborsClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	return c.predict("KNeighborsClassifier", X, func(nbrs []neighbor) float64 {
		votes := make(map[int]float64, len(nbrs))
		for _, n := range nbrs {
			votes[int(math.Round(c.y[n.index]))] += c.weight(n)
		}
		best, bestVotes := 0, math.Inf(-1)
		for _, l := range c.classes {
			if v, ok := votes[l]; ok && v > bestVotes {
				best, bestVotes = l, v
			}
		}
		return float64(best)
	})
}

// Classes returns the sorted class labels seen during fitting.
func (c *KNeighborsClassifier) Classes() []int {
	return append([]int(nil), c.classes...)
}

// GetParams returns the hyperparameters.
func (c *KNeighborsClassifier) GetParams() map[string]interface{} { return c.getParams() }

// SetParams sets n_neighbors and weights.
func (c *KNeighborsClassifier) SetParams(params map[string]interface{}) error {
	return c.setParams("KNeighborsClassifier", params)
}

// Clone returns an unfitted copy.
func (c *KNeighborsClassifier) Clone() model.Estimator {
	return NewKNeighborsClassifier(WithNNeighbors(c.nNeighbors), WithWeights(c.weights))
}

func (c *KNeighborsClassifier) String() string {
	return fmt.Sprintf("KNeighborsClassifier(n_neighbors=%d, weights=%s)", c.nNeighbors, c.weights)
}

// KNeighborsRegressor は近傍の（重み付き）平均で予測する回帰器
type KNeighborsRegressor struct {
	base
}

// NewKNeighborsRegressor creates an unfitted regressor.
func NewKNeighborsRegressor(opts ...Option) *KNeighborsRegressor {
	r := &KNeighborsRegressor{base: newBase()}
	for _, opt := range opts {
		opt(&r.base)
	}
	return r
}

// Name implements model.Named.
func (r *KNeighborsRegressor) Name() string { return "KNeighborsRegressor" }

// Fit stores the training set.
func (r *KNeighborsRegressor) Fit(X, y mat.Matrix) error {
	return r.fit("KNeighborsRegressor", X, y)
}

// Predict returns the weighted mean target of the neighbours.
func (r *KNeighborsRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	return r.predict("KNeighborsRegressor", X, func(nbrs []neighbor) float64 {
		var sum, wsum float64
		for _, n := range nbrs {
			w := r.weight(n)
			sum += w * r.y[n.index]
			wsum += w
		}
		return sum / wsum
	})
}

// GetParams returns the hyperparameters.
func (r *KNeighborsRegressor) GetParams() map[string]interface{} { return r.getParams() }

// SetParams sets n_neighbors and weights.
func (r *KNeighborsRegressor) SetParams(params map[string]interface{}) error {
	return r.setParams("KNeighborsRegressor", params)
}

// Clone returns an unfitted copy.
func (r *KNeighborsRegressor) Clone() model.Estimator {
	return NewKNeighborsRegressor(WithNNeighbors(r.nNeighbors), WithWeights(r.weights))
}

func (r *KNeighborsRegressor) String() string {
	return fmt.Sprintf("KNeighborsRegressor(n_neighbors=%d, weights=%s)", r.nNeighbors, r.weights)
}

func euclidSquared(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
