// Package model defines the capability contract every pipeline step
// implements, plus the state bookkeeping shared by estimators.
package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。
	// 教師なしの変換器は y を無視してよい。
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う (n_samples × 1)
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator is the capability contract of a pipeline step.
//
// Hyperparameters flow only through SetParams; Clone must return an unfitted
// instance with the same hyperparameters and no mutable state shared with
// the receiver, so that concurrent evaluation units never interfere.
type Estimator interface {
	Fitter

	// GetParams returns the current hyperparameters.
	GetParams() map[string]interface{}

	// SetParams sets hyperparameters. Unknown keys are an error.
	SetParams(params map[string]interface{}) error

	// Clone returns an independent, unfitted copy.
	Clone() Estimator
}
