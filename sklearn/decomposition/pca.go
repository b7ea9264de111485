// Package decomposition provides dimensionality reduction transformers.
package decomposition

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/pipeperm/core/model"
	"github.com/YuminosukeSato/pipeperm/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCA は主成分分析による次元削減
// 主成分は gonum/stat の SVD ベースの実装で求める
type PCA struct {
	state *model.StateManager

	nComponents int // 0 は min(n_samples, n_features)
	whiten      bool

	Mean                   []float64
	Components             *mat.Dense // n_features × n_components
	ExplainedVariance      []float64
	ExplainedVarianceRatio []float64
}

// Option は PCA の関数オプション
type Option func(*PCA)

// WithNComponents は残す主成分の数を設定する
func WithNComponents(n int) Option {
	return func(p *PCA) { p.nComponents = n }
}

// WithWhiten は主成分スコアを単位分散に揃えるかどうかを設定する
func WithWhiten(w bool) Option {
	return func(p *PCA) { p.whiten = w }
}

// NewPCA creates an unfitted PCA.
func NewPCA(opts ...Option) *PCA {
	p := &PCA{state: model.NewStateManager()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements model.Named.
func (p *PCA) Name() string { return "PCA" }

// Fit は主成分を計算する。y は無視する。
func (p *PCA) Fit(X, _ mat.Matrix) error {
	rows, cols := X.Dims()
	if rows < 2 || cols == 0 {
		return errors.NewModelError("PCA.Fit", "empty data", errors.ErrEmptyData)
	}
	k := p.nComponents
	maxK := min(rows, cols)
	if k == 0 {
		k = maxK
	}
	if k < 0 || k > maxK {
		return errors.NewValidationError("n_components",
			fmt.Sprintf("must be between 1 and min(n_samples, n_features)=%d", maxK), p.nComponents)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(X, nil); !ok {
		return errors.NewModelError("PCA.Fit", "svd", errors.New("principal component decomposition failed"))
	}

	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	p.Components = mat.DenseCopyOf(vecs.Slice(0, cols, 0, k))
	var total float64
	for _, v := range vars {
		total += v
	}
	p.ExplainedVariance = append([]float64(nil), vars[:k]...)
	p.ExplainedVarianceRatio = make([]float64, k)
	for i := range p.ExplainedVarianceRatio {
		if total > 0 {
			p.ExplainedVarianceRatio[i] = vars[i] / total
		}
	}

	p.Mean = make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, X)
		p.Mean[j] = stat.Mean(col, nil)
	}

	p.state.SetDimensions(cols, rows)
	p.state.SetFitted()
	return nil
}

// Transform は中心化したデータを主成分へ射影する
func (p *PCA) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.state.RequireFitted("PCA", "Transform"); err != nil {
		return nil, err
	}
	_, cols := X.Dims()
	if err := p.state.RequireFeatures("PCA.Transform", cols); err != nil {
		return nil, err
	}

	centered := mat.DenseCopyOf(X)
	centered.Apply(func(_, j int, v float64) float64 { return v - p.Mean[j] }, centered)

	var out mat.Dense
	out.Mul(centered, p.Components)
	if p.whiten {
		out.Apply(func(_, j int, v float64) float64 {
			if p.ExplainedVariance[j] <= 0 {
				return 0
			}
			return v / math.Sqrt(p.ExplainedVariance[j])
		}, &out)
	}
	return &out, nil
}

// GetParams returns the hyperparameters.
func (p *PCA) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_components": p.nComponents,
		"whiten":       p.whiten,
	}
}

// SetParams sets n_components and whiten.
func (p *PCA) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "n_components":
			p.nComponents, err = model.ParamInt(key, value)
		case "whiten":
			p.whiten, err = model.ParamBool(key, value)
		default:
			return model.UnknownParamError("PCA", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy.
func (p *PCA) Clone() model.Estimator {
	return NewPCA(WithNComponents(p.nComponents), WithWhiten(p.whiten))
}

func (p *PCA) String() string {
	return fmt.Sprintf("PCA(n_components=%d, whiten=%t)", p.nComponents, p.whiten)
}
