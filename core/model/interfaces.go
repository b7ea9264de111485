package model

import (
	"fmt"

	"github.com/YuminosukeSato/pipeperm/pkg/errors"
)

// Classifier marks estimators whose predictions are class labels.
// Scoring defaults and metric summaries switch on this interface.
type Classifier interface {
	Estimator
	Predictor

	// Classes returns the unique classes seen during fitting.
	Classes() []int
}

// Regressor marks estimators with continuous predictions.
type Regressor interface {
	Estimator
	Predictor
}

// Named is implemented by estimators that report a display name.
type Named interface {
	Name() string
}

// NameOf returns the display name of an estimator.
func NameOf(e Estimator) string {
	if n, ok := e.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", e)
}

// UnknownParamError returns the error SetParams implementations report for
// keys they do not recognise.
func UnknownParamError(estimator, key string) error {
	return errors.NewValidationError(key, "unknown parameter for "+estimator, key)
}

func notTransformer(e Estimator) error {
	return errors.NewValueError("FitTransform", NameOf(e)+" does not implement Transform")
}
