// Package tree provides a CART decision tree classifier.
package tree

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pipeperm/core/model"
	"github.com/YuminosukeSato/pipeperm/metrics"
	"github.com/YuminosukeSato/pipeperm/pkg/errors"
)

const impurityEps = 1e-12

// node は木のノード。葉以外は feature <= threshold で左右に分岐する。
type node struct {
	leaf      bool
	feature   int
	threshold float64
	left      int
	right     int
	counts    []float64
}

// DecisionTreeClassifier はCARTによる決定木分類器
type DecisionTreeClassifier struct {
	state *model.StateManager

	// ハイパーパラメータ
	criterion       string // "gini" or "entropy"
	maxDepth        int    // 0 = 無制限
	minSamplesSplit int
	minSamplesLeaf  int

	// 学習済みパラメータ
	classes_     []int
	nClasses_    int
	nodes        []node
	importances_ []float64
	depth_       int
}

// Option configures a DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// WithCriterion sets the impurity measure, "gini" or "entropy".
func WithCriterion(c string) Option {
	return func(dt *DecisionTreeClassifier) { dt.criterion = c }
}

// WithMaxDepth limits the tree depth. 0 means unlimited.
func WithMaxDepth(d int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = d }
}

// WithMinSamplesSplit sets the minimum samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum samples of every leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

// NewDecisionTreeClassifier creates an unfitted tree.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

func (dt *DecisionTreeClassifier) validate() error {
	if dt.criterion != "gini" && dt.criterion != "entropy" {
		return errors.NewValidationError("criterion", "must be gini or entropy", dt.criterion)
	}
	if dt.maxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be >= 0", dt.maxDepth)
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be >= 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", dt.minSamplesLeaf)
	}
	return nil
}

// Fit grows the tree greedily. At each node the split with the largest
// impurity decrease is taken; ties keep the first candidate in feature then
// threshold order, so fitting is deterministic.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	if err := dt.validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "empty input data")
	}
	if y == nil {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "y is required")
	}
	if yRows, _ := y.Dims(); yRows != rows {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", rows, yRows, 0)
	}

	dt.state.Reset()
	dt.classes_ = uniqueLabels(y)
	dt.nClasses_ = len(dt.classes_)
	classIndex := make(map[int]int, dt.nClasses_)
	for i, c := range dt.classes_ {
		classIndex[c] = i
	}

	b := &builder{
		dt:          dt,
		X:           X,
		y:           make([]int, rows),
		importances: make([]float64, cols),
	}
	for i := 0; i < rows; i++ {
		b.y[i] = classIndex[int(math.Round(y.At(i, 0)))]
	}
	idx := make([]int, rows)
	for i := range idx {
		idx[i] = i
	}
	dt.nodes = nil
	dt.depth_ = 0
	b.grow(idx, 0)

	total := 0.0
	for _, v := range b.importances {
		total += v
	}
	if total > 0 {
		for i := range b.importances {
			b.importances[i] /= total
		}
	}
	dt.importances_ = b.importances

	dt.state.SetDimensions(cols, rows)
	dt.state.SetFitted()
	return nil
}

type builder struct {
	dt          *DecisionTreeClassifier
	X           mat.Matrix
	y           []int
	importances []float64
}

// grow appends the subtree of idx and returns its node index.
func (b *builder) grow(idx []int, depth int) int {
	dt := b.dt
	counts := make([]float64, dt.nClasses_)
	for _, i := range idx {
		counts[b.y[i]]++
	}
	self := len(dt.nodes)
	dt.nodes = append(dt.nodes, node{leaf: true, counts: counts})
	if depth > dt.depth_ {
		dt.depth_ = depth
	}

	n := len(idx)
	impurity := dt.impurity(counts)
	if impurity <= impurityEps ||
		(dt.maxDepth > 0 && depth >= dt.maxDepth) ||
		n < dt.minSamplesSplit || n < 2*dt.minSamplesLeaf {
		return self
	}

	feature, threshold, decrease, ok := b.bestSplit(idx, counts, impurity)
	if !ok {
		return self
	}
	b.importances[feature] += float64(n) * decrease

	var left, right []int
	for _, i := range idx {
		if b.X.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	dt.nodes[self] = node{feature: feature, threshold: threshold, left: l, right: r, counts: counts}
	return self
}

func (b *builder) bestSplit(idx []int, counts []float64, impurity float64) (feature int, threshold, decrease float64, ok bool) {
	dt := b.dt
	n := len(idx)
	_, cols := b.X.Dims()
	sorted := make([]int, n)
	left := make([]float64, dt.nClasses_)
	right := make([]float64, dt.nClasses_)

	for f := 0; f < cols; f++ {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.X.At(sorted[a], f) < b.X.At(sorted[c], f)
		})
		for k := range left {
			left[k] = 0
		}
		for p := 1; p < n; p++ {
			left[b.y[sorted[p-1]]]++
			if p < dt.minSamplesLeaf || n-p < dt.minSamplesLeaf {
				continue
			}
			lo, hi := b.X.At(sorted[p-1], f), b.X.At(sorted[p], f)
			if lo == hi {
				continue
			}
			for k := range right {
				right[k] = counts[k] - left[k]
			}
			wl := float64(p) / float64(n)
			dec := impurity - wl*dt.impurity(left) - (1-wl)*dt.impurity(right)
			if !ok || dec > decrease+impurityEps {
				feature, threshold, decrease, ok = f, (lo+hi)/2, dec, true
			}
		}
	}
	return feature, threshold, decrease, ok
}

func (dt *DecisionTreeClassifier) impurity(counts []float64) float64 {
	n := 0.0
	for _, c := range counts {
		n += c
	}
	if n == 0 {
		return 0
	}
	out := 0.0
	if dt.criterion == "entropy" {
		for _, c := range counts {
			if c > 0 {
				p := c / n
				out -= p * math.Log2(p)
			}
		}
		return out
	}
	out = 1
	for _, c := range counts {
		p := c / n
		out -= p * p
	}
	return out
}

func (dt *DecisionTreeClassifier) leaf(X mat.Matrix, row int) *node {
	nd := &dt.nodes[0]
	for !nd.leaf {
		if X.At(row, nd.feature) <= nd.threshold {
			nd = &dt.nodes[nd.left]
		} else {
			nd = &dt.nodes[nd.right]
		}
	}
	return nd
}

func (dt *DecisionTreeClassifier) checkPredict(method string, X mat.Matrix) error {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", method); err != nil {
		return err
	}
	_, cols := X.Dims()
	return dt.state.RequireFeatures("DecisionTreeClassifier."+method, cols)
}

// PredictProba returns class frequencies of the reached leaf (n × n_classes),
// columns ordered as Classes.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkPredict("PredictProba", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, dt.nClasses_, nil)
	for i := 0; i < rows; i++ {
		counts := dt.leaf(X, i).counts
		total := 0.0
		for _, c := range counts {
			total += c
		}
		for k, c := range counts {
			out.Set(i, k, c/total)
		}
	}
	return out, nil
}

// Predict returns the majority class of the reached leaf; ties go to the
// smaller label.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkPredict("Predict", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		counts := dt.leaf(X, i).counts
		best := 0
		for k := 1; k < len(counts); k++ {
			if counts[k] > counts[best] {
				best = k
			}
		}
		out.Set(i, 0, float64(dt.classes_[best]))
	}
	return out, nil
}

// Score returns the accuracy on (X, y), or 0 when prediction fails.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	rows, _ := y.Dims()
	yTrue := mat.NewVecDense(rows, mat.Col(nil, 0, y))
	yPred := mat.NewVecDense(rows, mat.Col(nil, 0, pred))
	acc, err := metrics.Accuracy(yTrue, yPred)
	if err != nil {
		return 0
	}
	return acc
}

// Classes returns the sorted class labels seen during Fit.
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.classes_...)
}

// GetFeatureImportances returns the normalised total impurity decrease per feature.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.importances_...)
}

// GetDepth returns the depth of the fitted tree (a single leaf has depth 0).
func (dt *DecisionTreeClassifier) GetDepth() int {
	return dt.depth_
}

// GetNLeaves returns the number of leaves.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	n := 0
	for _, nd := range dt.nodes {
		if nd.leaf {
			n++
		}
	}
	return n
}

// GetParams returns the model hyperparameters
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
	}
}

// SetParams sets the model hyperparameters
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "criterion":
			dt.criterion, err = model.ParamString(key, value)
		case "max_depth":
			dt.maxDepth, err = model.ParamInt(key, value)
		case "min_samples_split":
			dt.minSamplesSplit, err = model.ParamInt(key, value)
		case "min_samples_leaf":
			dt.minSamplesLeaf, err = model.ParamInt(key, value)
		default:
			return model.UnknownParamError("DecisionTreeClassifier", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters
func (dt *DecisionTreeClassifier) Clone() model.Estimator {
	return NewDecisionTreeClassifier(
		WithCriterion(dt.criterion),
		WithMaxDepth(dt.maxDepth),
		WithMinSamplesSplit(dt.minSamplesSplit),
		WithMinSamplesLeaf(dt.minSamplesLeaf),
	)
}

// Name returns the display name
func (dt *DecisionTreeClassifier) Name() string {
	return "DecisionTreeClassifier"
}

func (dt *DecisionTreeClassifier) String() string {
	return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%d)", dt.criterion, dt.maxDepth)
}

func uniqueLabels(y mat.Matrix) []int {
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
	sort.Ints(out)
	return out
}
