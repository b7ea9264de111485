// Package preprocessing はパイプラインの前処理ステップ（スケーラー）を提供する。
package preprocessing

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/pipeperm/core/model"
	"github.com/YuminosukeSato/pipeperm/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// StandardScaler はscikit-learn互換の標準化スケーラー
// データを平均0、標準偏差1に変換する
type StandardScaler struct {
	state *model.StateManager

	// Mean は各特徴量の平均値
	Mean []float64

	// Scale は各特徴量の標準偏差
	Scale []float64

	withMean bool
	withStd  bool
}

// ScalerOption は StandardScaler の関数オプション
type ScalerOption func(*StandardScaler)

// WithMean は平均を引くかどうかを設定する (デフォルト: true)
func WithMean(b bool) ScalerOption {
	return func(s *StandardScaler) { s.withMean = b }
}

// WithStd は標準偏差で割るかどうかを設定する (デフォルト: true)
func WithStd(b bool) ScalerOption {
	return func(s *StandardScaler) { s.withStd = b }
}

// NewStandardScaler は新しいStandardScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewStandardScaler()
//	err := scaler.Fit(X, nil)
//	XScaled, err := scaler.Transform(X)
func NewStandardScaler(opts ...ScalerOption) *StandardScaler {
	s := &StandardScaler{
		state:    model.NewStateManager(),
		withMean: true,
		withStd:  true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements model.Named.
func (s *StandardScaler) Name() string { return "StandardScaler" }

// Fit は訓練データから統計情報（平均、標準偏差）を計算する。y は無視する。
func (s *StandardScaler) Fit(X, _ mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)
		if s.withMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1.0
		// 標準偏差が0に近い場合は1のまま（ゼロ除算を避ける）
		if s.withStd && std >= 1e-8 {
			s.Scale[j] = std
		}
	}

	s.state.SetDimensions(c, r)
	s.state.SetFitted()
	return nil
}

// Transform は学習済みの統計情報を使ってデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("StandardScaler", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := s.state.RequireFeatures("StandardScaler.Transform", c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)
	return result, nil
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("StandardScaler", "InverseTransform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := s.state.RequireFeatures("StandardScaler.InverseTransform", c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return v*s.Scale[j] + s.Mean[j]
	}, X)
	return result, nil
}

// GetParams はスケーラーのパラメータを取得する
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.withMean,
		"with_std":  s.withStd,
	}
}

// SetParams はスケーラーのパラメータを設定する
func (s *StandardScaler) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "with_mean":
			s.withMean, err = model.ParamBool(key, value)
		case "with_std":
			s.withStd, err = model.ParamBool(key, value)
		default:
			return model.UnknownParamError("StandardScaler", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone は同じハイパーパラメータを持つ未学習のコピーを返す
func (s *StandardScaler) Clone() model.Estimator {
	return NewStandardScaler(WithMean(s.withMean), WithStd(s.withStd))
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	if !s.state.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.withMean, s.withStd)
	}
	nFeatures, _ := s.state.GetDimensions()
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.withMean, s.withStd, nFeatures)
}

// MinMaxScaler はscikit-learn互換のMin-Maxスケーラー
// データを指定した範囲（デフォルト[0,1]）にスケーリングする
type MinMaxScaler struct {
	state *model.StateManager

	// DataMin は学習データの最小値
	DataMin []float64

	// DataRange は学習データの範囲 (max - min)。定数特徴量は1
	DataRange []float64

	featureRange [2]float64
}

// NewMinMaxScaler は新しいMinMaxScalerを作成する。範囲は [lo, hi]。
func NewMinMaxScaler(lo, hi float64) *MinMaxScaler {
	return &MinMaxScaler{
		state:        model.NewStateManager(),
		featureRange: [2]float64{lo, hi},
	}
}

// NewMinMaxScalerDefault はデフォルト設定([0,1]範囲)でMinMaxScalerを作成する
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler(0, 1)
}

// Name implements model.Named.
func (m *MinMaxScaler) Name() string { return "MinMaxScaler" }

// Fit は訓練データから最小値・最大値を計算する。y は無視する。
func (m *MinMaxScaler) Fit(X, _ mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("MinMaxScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	if m.featureRange[0] >= m.featureRange[1] {
		return errors.NewValidationError("feature_range", "minimum must be smaller than maximum", m.featureRange)
	}

	m.DataMin = make([]float64, c)
	m.DataRange = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		lo, hi := col[0], col[0]
		for _, v := range col[1:] {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		m.DataMin[j] = lo
		m.DataRange[j] = 1.0
		if hi-lo >= 1e-8 {
			m.DataRange[j] = hi - lo
		}
	}

	m.state.SetDimensions(c, r)
	m.state.SetFitted()
	return nil
}

// Transform は学習済みの統計情報を使ってデータをスケーリングする
func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.state.RequireFitted("MinMaxScaler", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := m.state.RequireFeatures("MinMaxScaler.Transform", c); err != nil {
		return nil, err
	}

	// X_scaled = (X - data_min) / data_range * (hi - lo) + lo
	width := m.featureRange[1] - m.featureRange[0]
	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v-m.DataMin[j])/m.DataRange[j]*width + m.featureRange[0]
	}, X)
	return result, nil
}

// InverseTransform はスケーリングされたデータを元の範囲に戻す
func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.state.RequireFitted("MinMaxScaler", "InverseTransform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := m.state.RequireFeatures("MinMaxScaler.InverseTransform", c); err != nil {
		return nil, err
	}

	width := m.featureRange[1] - m.featureRange[0]
	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v-m.featureRange[0])/width*m.DataRange[j] + m.DataMin[j]
	}, X)
	return result, nil
}

// GetParams はスケーラーのパラメータを取得する
func (m *MinMaxScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"feature_min": m.featureRange[0],
		"feature_max": m.featureRange[1],
	}
}

// SetParams はスケーラーのパラメータを設定する
func (m *MinMaxScaler) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "feature_min":
			m.featureRange[0], err = model.ParamFloat(key, value)
		case "feature_max":
			m.featureRange[1], err = model.ParamFloat(key, value)
		default:
			return model.UnknownParamError("MinMaxScaler", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone は同じハイパーパラメータを持つ未学習のコピーを返す
func (m *MinMaxScaler) Clone() model.Estimator {
	return NewMinMaxScaler(m.featureRange[0], m.featureRange[1])
}

// String はスケーラーの文字列表現を返す
func (m *MinMaxScaler) String() string {
	return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f])", m.featureRange[0], m.featureRange[1])
}
