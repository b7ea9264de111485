// Package model_selection provides cross-validation splitters, hyperparameter
// search spaces and the inner-CV search driver.
package model_selection

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/pipeperm/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Fold is one train/test partition of the row indices. Both slices are
// sorted, disjoint, and together cover every row.
type Fold struct {
	Train []int
	Test  []int
}

// Splitter produces cross-validation folds. Split is deterministic for a
// fixed configuration, may be called repeatedly, and must be safe for
// concurrent use: one inner splitter serves every evaluation unit.
type Splitter interface {
	Split(X, y mat.Matrix) ([]Fold, error)

	// NSplits returns the number of folds, or 0 when it depends on the data.
	NSplits() int
}

// KFold implements k-fold cross-validation splitter
type KFold struct {
	nSplits    int
	shuffle    bool
	randomSeed uint64
}

// SplitterOption configures KFold and StratifiedKFold.
type SplitterOption func(*splitConfig)

type splitConfig struct {
	shuffle bool
	seed    uint64
}

// WithShuffle shuffles rows with the given seed before splitting.
func WithShuffle(seed uint64) SplitterOption {
	return func(c *splitConfig) {
		c.shuffle = true
		c.seed = seed
	}
}

// NewKFold creates a new k-fold splitter
func NewKFold(nSplits int, opts ...SplitterOption) *KFold {
	var c splitConfig
	for _, opt := range opts {
		opt(&c)
	}
	return &KFold{nSplits: nSplits, shuffle: c.shuffle, randomSeed: c.seed}
}

// NSplits returns the number of splits
func (kf *KFold) NSplits() int {
	return kf.nSplits
}

// Split generates train/test indices for each fold. The first n % k folds
// receive one extra test row.
func (kf *KFold) Split(X, _ mat.Matrix) ([]Fold, error) {
	nSamples, _ := X.Dims()
	if err := checkSplits("KFold", kf.nSplits, nSamples); err != nil {
		return nil, err
	}

	indices := identity(nSamples)
	if kf.shuffle {
		shuffle(indices, kf.randomSeed)
	}

	folds := make([]Fold, kf.nSplits)
	foldSize := nSamples / kf.nSplits
	remainder := nSamples % kf.nSplits

	current := 0
	for i := range folds {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		folds[i] = makeFold(nSamples, indices[current:current+testSize])
		current += testSize
	}
	return folds, nil
}

// StratifiedKFold implements stratified k-fold cross-validation. Each class
// is spread over the folds in ascending label order so that folds keep the
// class proportions.
type StratifiedKFold struct {
	nSplits    int
	shuffle    bool
	randomSeed uint64
}

// NewStratifiedKFold creates a new stratified k-fold splitter
func NewStratifiedKFold(nSplits int, opts ...SplitterOption) *StratifiedKFold {
	var c splitConfig
	for _, opt := range opts {
		opt(&c)
	}
	return &StratifiedKFold{nSplits: nSplits, shuffle: c.shuffle, randomSeed: c.seed}
}

// NSplits returns the number of splits
func (skf *StratifiedKFold) NSplits() int {
	return skf.nSplits
}

// Split generates stratified folds. y is required.
func (skf *StratifiedKFold) Split(X, y mat.Matrix) ([]Fold, error) {
	nSamples, _ := X.Dims()
	if err := checkSplits("StratifiedKFold", skf.nSplits, nSamples); err != nil {
		return nil, err
	}
	if y == nil {
		return nil, errors.NewValueError("StratifiedKFold.Split", "y is required")
	}
	if yRows, _ := y.Dims(); yRows != nSamples {
		return nil, errors.NewDimensionError("StratifiedKFold.Split", nSamples, yRows, 0)
	}

	// Group indices by class
	classIndices := make(map[int][]int)
	for i := 0; i < nSamples; i++ {
		label := int(math.Round(y.At(i, 0)))
		classIndices[label] = append(classIndices[label], i)
	}
	labels := make([]int, 0, len(classIndices))
	for label := range classIndices {
		labels = append(labels, label)
	}
	sort.Ints(labels)

	var r *rand.Rand
	if skf.shuffle {
		r = rand.New(rand.NewPCG(skf.randomSeed, skf.randomSeed))
	}

	tests := make([][]int, skf.nSplits)
	// 前のクラスの余りを受け取った fold の次から割り当てを始め、fold サイズを揃える
	offset := 0
	for _, label := range labels {
		indices := classIndices[label]
		if r != nil {
			r.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}
		for k, idx := range indices {
			f := (offset + k) % skf.nSplits
			tests[f] = append(tests[f], idx)
		}
		offset = (offset + len(indices)) % skf.nSplits
	}

	folds := make([]Fold, skf.nSplits)
	for i := range folds {
		if len(tests[i]) == 0 {
			return nil, errors.NewValueError("StratifiedKFold.Split", "a fold received no test rows")
		}
		folds[i] = makeFold(nSamples, tests[i])
	}
	return folds, nil
}

// LeaveOneOut holds out each row once.
type LeaveOneOut struct{}

// NewLeaveOneOut creates a leave-one-out splitter.
func NewLeaveOneOut() *LeaveOneOut {
	return &LeaveOneOut{}
}

// NSplits returns 0: the fold count equals the number of rows.
func (l *LeaveOneOut) NSplits() int {
	return 0
}

// Split returns one fold per row.
func (l *LeaveOneOut) Split(X, _ mat.Matrix) ([]Fold, error) {
	nSamples, _ := X.Dims()
	if nSamples < 2 {
		return nil, errors.NewValueError("LeaveOneOut.Split", "at least 2 samples are required")
	}
	folds := make([]Fold, nSamples)
	for i := range folds {
		folds[i] = makeFold(nSamples, []int{i})
	}
	return folds, nil
}

func checkSplits(name string, nSplits, nSamples int) error {
	if nSplits < 2 {
		return errors.NewValidationError("n_splits", "must be at least 2", nSplits)
	}
	if nSplits > nSamples {
		return errors.NewValueError(name+".Split",
			"n_splits cannot be greater than the number of samples")
	}
	return nil
}

func identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func shuffle(indices []int, seed uint64) {
	r := rand.New(rand.NewPCG(seed, seed))
	r.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})
}

// makeFold builds a fold from its test rows; every other row trains.
func makeFold(nSamples int, test []int) Fold {
	isTest := make([]bool, nSamples)
	t := append([]int(nil), test...)
	sort.Ints(t)
	for _, idx := range t {
		isTest[idx] = true
	}
	train := make([]int, 0, nSamples-len(t))
	for i := 0; i < nSamples; i++ {
		if !isTest[i] {
			train = append(train, i)
		}
	}
	return Fold{Train: train, Test: t}
}
