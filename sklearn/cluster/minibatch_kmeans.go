// Package cluster provides mini-batch k-means, usable as a pipeline
// feature step that maps rows to their distances from learned centroids.
package cluster

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pipeperm/core/model"
	"github.com/YuminosukeSato/pipeperm/pkg/errors"
)

// MiniBatchKMeans はミニバッチK-meansクラスタリング
//
// 乱数は random_state から作る PCG のみを使うので、同じハイパーパラメータと
// データからは常に同じ中心が得られる。
type MiniBatchKMeans struct {
	state *model.StateManager

	// ハイパーパラメータ
	nClusters   int     // クラスタ数
	init        string  // 初期化方法: "k-means++", "random"
	maxIter     int     // 最大イテレーション数
	batchSize   int     // ミニバッチサイズ
	randomState uint64  // 乱数シード
	tol         float64 // 中心の移動量がこれ未満なら収束
	nInit       int     // 異なる初期化での実行回数

	// 学習パラメータ
	clusterCenters_ *mat.Dense // nClusters × nFeatures
	inertia_        float64    // クラスタ内平方和誤差
	nIter_          int
}

// KMeansOption はMiniBatchKMeansの設定オプション
type KMeansOption func(*MiniBatchKMeans)

// WithKMeansNClusters はクラスタ数を設定
func WithKMeansNClusters(n int) KMeansOption {
	return func(km *MiniBatchKMeans) { km.nClusters = n }
}

// WithKMeansInit は初期化方法を設定
func WithKMeansInit(init string) KMeansOption {
	return func(km *MiniBatchKMeans) { km.init = init }
}

// WithKMeansMaxIter は最大イテレーション数を設定
func WithKMeansMaxIter(maxIter int) KMeansOption {
	return func(km *MiniBatchKMeans) { km.maxIter = maxIter }
}

// WithKMeansBatchSize はミニバッチサイズを設定
func WithKMeansBatchSize(batchSize int) KMeansOption {
	return func(km *MiniBatchKMeans) { km.batchSize = batchSize }
}

// WithKMeansRandomState は乱数シードを設定
func WithKMeansRandomState(seed uint64) KMeansOption {
	return func(km *MiniBatchKMeans) { km.randomState = seed }
}

// WithKMeansTol は収束判定の許容誤差を設定
func WithKMeansTol(tol float64) KMeansOption {
	return func(km *MiniBatchKMeans) { km.tol = tol }
}

// WithKMeansNInit は初期化の試行回数を設定
func WithKMeansNInit(n int) KMeansOption {
	return func(km *MiniBatchKMeans) { km.nInit = n }
}

// NewMiniBatchKMeans は新しいMiniBatchKMeansを作成
func NewMiniBatchKMeans(options ...KMeansOption) *MiniBatchKMeans {
	km := &MiniBatchKMeans{
		state:     model.NewStateManager(),
		nClusters: 8,
		init:      "k-means++",
		maxIter:   100,
		batchSize: 100,
		tol:       1e-4,
		nInit:     3,
	}
	for _, opt := range options {
		opt(km)
	}
	return km
}

func (km *MiniBatchKMeans) validate(rows int) error {
	switch {
	case km.nClusters < 1:
		return errors.NewValidationError("n_clusters", "must be >= 1", km.nClusters)
	case km.init != "k-means++" && km.init != "random":
		return errors.NewValidationError("init", "must be k-means++ or random", km.init)
	case km.maxIter < 1:
		return errors.NewValidationError("max_iter", "must be >= 1", km.maxIter)
	case km.batchSize < 1:
		return errors.NewValidationError("batch_size", "must be >= 1", km.batchSize)
	case km.nInit < 1:
		return errors.NewValidationError("n_init", "must be >= 1", km.nInit)
	case rows < km.nClusters:
		return errors.NewValueError("MiniBatchKMeans.Fit",
			fmt.Sprintf("n_samples=%d should be >= n_clusters=%d", rows, km.nClusters))
	}
	return nil
}

// Fit runs nInit seeded mini-batch runs and keeps the centers with the
// lowest inertia. y is ignored.
func (km *MiniBatchKMeans) Fit(X, _ mat.Matrix) error {
	rows, cols := X.Dims()
	if err := km.validate(rows); err != nil {
		return err
	}
	km.state.Reset()

	data := mat.DenseCopyOf(X)
	rng := rand.New(rand.NewPCG(km.randomState, km.randomState^0x5851f42d4c957f2d))

	km.inertia_ = math.Inf(1)
	for run := 0; run < km.nInit; run++ {
		centers, nIter := km.fitSingleRun(data, rng)
		if inertia := inertiaOf(data, centers); inertia < km.inertia_ {
			km.inertia_ = inertia
			km.clusterCenters_ = centers
			km.nIter_ = nIter
		}
	}

	km.state.SetDimensions(cols, rows)
	km.state.SetFitted()
	return nil
}

// fitSingleRun は単一回の学習を実行
func (km *MiniBatchKMeans) fitSingleRun(X *mat.Dense, rng *rand.Rand) (*mat.Dense, int) {
	rows, cols := X.Dims()
	centers := km.initializeCenters(X, rng)
	counts := make([]float64, km.nClusters)
	prev := make([]float64, cols)

	batch := km.batchSize
	if batch > rows {
		batch = rows
	}
	iter := 0
	for iter < km.maxIter {
		iter++
		shift := 0.0
		for b := 0; b < batch; b++ {
			sample := X.RawRowView(rng.IntN(rows))
			k := nearest(sample, centers)
			center := centers.RawRowView(k)
			copy(prev, center)

			// 学習率 1/count で中心を移動
			counts[k]++
			eta := 1.0 / counts[k]
			for j := range center {
				center[j] += eta * (sample[j] - center[j])
			}
			shift += floats.Distance(prev, center, 2)
		}
		if shift/float64(batch) < km.tol {
			break
		}
	}
	return centers, iter
}

// initializeCenters はk-means++または一様ランダムで初期中心を選ぶ
func (km *MiniBatchKMeans) initializeCenters(X *mat.Dense, rng *rand.Rand) *mat.Dense {
	rows, cols := X.Dims()
	centers := mat.NewDense(km.nClusters, cols, nil)

	if km.init == "random" {
		for k, idx := range rng.Perm(rows)[:km.nClusters] {
			centers.SetRow(k, X.RawRowView(idx))
		}
		return centers
	}

	centers.SetRow(0, X.RawRowView(rng.IntN(rows)))
	dist := make([]float64, rows)
	for k := 1; k < km.nClusters; k++ {
		for i := 0; i < rows; i++ {
			row := X.RawRowView(i)
			best := math.Inf(1)
			for c := 0; c < k; c++ {
				if d := sqDist(row, centers.RawRowView(c)); d < best {
					best = d
				}
			}
			dist[i] = best
		}
		total := floats.Sum(dist)
		pick := rows - 1
		if total > 0 {
			r := rng.Float64() * total
			for i, d := range dist {
				r -= d
				if r < 0 {
					pick = i
					break
				}
			}
		} else {
			pick = rng.IntN(rows)
		}
		centers.SetRow(k, X.RawRowView(pick))
	}
	return centers
}

func (km *MiniBatchKMeans) check(method string, X mat.Matrix) error {
	if err := km.state.RequireFitted("MiniBatchKMeans", method); err != nil {
		return err
	}
	_, cols := X.Dims()
	return km.state.RequireFeatures("MiniBatchKMeans."+method, cols)
}

// Transform returns the Euclidean distance of every row to every center
// (n × n_clusters).
func (km *MiniBatchKMeans) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := km.check("Transform", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, km.nClusters, nil)
	for i := 0; i < rows; i++ {
		row := mat.Row(nil, i, X)
		for k := 0; k < km.nClusters; k++ {
			out.Set(i, k, floats.Distance(row, km.clusterCenters_.RawRowView(k), 2))
		}
	}
	return out, nil
}

// Predict returns the index of the nearest center per row.
func (km *MiniBatchKMeans) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := km.check("Predict", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, float64(nearest(mat.Row(nil, i, X), km.clusterCenters_)))
	}
	return out, nil
}

// ClusterCenters returns a copy of the fitted centers.
func (km *MiniBatchKMeans) ClusterCenters() *mat.Dense {
	if km.clusterCenters_ == nil {
		return nil
	}
	return mat.DenseCopyOf(km.clusterCenters_)
}

// Inertia returns the within-cluster sum of squared distances.
func (km *MiniBatchKMeans) Inertia() float64 { return km.inertia_ }

// NIter returns the iterations of the kept run.
func (km *MiniBatchKMeans) NIter() int { return km.nIter_ }

// GetParams returns the model hyperparameters
func (km *MiniBatchKMeans) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_clusters":   km.nClusters,
		"init":         km.init,
		"max_iter":     km.maxIter,
		"batch_size":   km.batchSize,
		"random_state": km.randomState,
		"tol":          km.tol,
		"n_init":       km.nInit,
	}
}

// SetParams sets the model hyperparameters
func (km *MiniBatchKMeans) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "n_clusters":
			km.nClusters, err = model.ParamInt(key, value)
		case "init":
			km.init, err = model.ParamString(key, value)
		case "max_iter":
			km.maxIter, err = model.ParamInt(key, value)
		case "batch_size":
			km.batchSize, err = model.ParamInt(key, value)
		case "random_state":
			var seed int
			seed, err = model.ParamInt(key, value)
			if err == nil && seed < 0 {
				err = errors.NewValidationError(key, "must be >= 0", seed)
			}
			km.randomState = uint64(seed)
		case "tol":
			km.tol, err = model.ParamFloat(key, value)
		case "n_init":
			km.nInit, err = model.ParamInt(key, value)
		default:
			return model.UnknownParamError("MiniBatchKMeans", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters
func (km *MiniBatchKMeans) Clone() model.Estimator {
	return NewMiniBatchKMeans(
		WithKMeansNClusters(km.nClusters),
		WithKMeansInit(km.init),
		WithKMeansMaxIter(km.maxIter),
		WithKMeansBatchSize(km.batchSize),
		WithKMeansRandomState(km.randomState),
		WithKMeansTol(km.tol),
		WithKMeansNInit(km.nInit),
	)
}

// Name returns the display name
func (km *MiniBatchKMeans) Name() string { return "MiniBatchKMeans" }

func nearest(row []float64, centers *mat.Dense) int {
	k, _ := centers.Dims()
	best, bestDist := 0, math.Inf(1)
	for c := 0; c < k; c++ {
		if d := sqDist(row, centers.RawRowView(c)); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

func inertiaOf(X *mat.Dense, centers *mat.Dense) float64 {
	rows, _ := X.Dims()
	total := 0.0
	for i := 0; i < rows; i++ {
		row := X.RawRowView(i)
		total += sqDist(row, centers.RawRowView(nearest(row, centers)))
	}
	return total
}
