package model

import "gonum.org/v1/gonum/mat"

// Transformer はデータ変換のインターフェース。
// パイプラインの中間ステップはこれを実装する必要がある。
type Transformer interface {
	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)
}

// FitTransform はFitとTransformを続けて実行する
func FitTransform(e Estimator, X, y mat.Matrix) (mat.Matrix, error) {
	t, ok := e.(Transformer)
	if !ok {
		return nil, notTransformer(e)
	}
	if err := e.Fit(X, y); err != nil {
		return nil, err
	}
	return t.Transform(X)
}
