package main

import (
	"sort"

	"github.com/YuminosukeSato/pipeperm/core/model"
	"github.com/YuminosukeSato/pipeperm/pkg/errors"
	"github.com/YuminosukeSato/pipeperm/preprocessing"
	"github.com/YuminosukeSato/pipeperm/sklearn/cluster"
	"github.com/YuminosukeSato/pipeperm/sklearn/decomposition"
	"github.com/YuminosukeSato/pipeperm/sklearn/linear_model"
	"github.com/YuminosukeSato/pipeperm/sklearn/naive_bayes"
	"github.com/YuminosukeSato/pipeperm/sklearn/neighbors"
	"github.com/YuminosukeSato/pipeperm/sklearn/tree"
)

// estimatorFactory builds an unfitted estimator with default hyperparameters.
type estimatorFactory func() model.Estimator

// Registry maps the estimator kinds usable in experiment files to their
// constructors.
type Registry map[string]estimatorFactory

// DefaultRegistry returns every estimator shipped with the module.
func DefaultRegistry() Registry {
	return Registry{
		"standard_scaler":     func() model.Estimator { return preprocessing.NewStandardScaler() },
		"minmax_scaler":       func() model.Estimator { return preprocessing.NewMinMaxScalerDefault() },
		"pca":                 func() model.Estimator { return decomposition.NewPCA() },
		"logistic_regression": func() model.Estimator { return linear_model.NewLogisticRegression() },
		"linear_regression":   func() model.Estimator { return linear_model.NewLinearRegression() },
		"ridge":               func() model.Estimator { return linear_model.NewRidge() },
		"knn_classifier":      func() model.Estimator { return neighbors.NewKNeighborsClassifier() },
		"knn_regressor":       func() model.Estimator { return neighbors.NewKNeighborsRegressor() },
		"decision_tree":       func() model.Estimator { return tree.NewDecisionTreeClassifier() },
		"multinomial_nb":      func() model.Estimator { return naive_bayes.NewMultinomialNB() },
		"kmeans":              func() model.Estimator { return cluster.NewMiniBatchKMeans() },
	}
}

// New instantiates kind.
func (r Registry) New(kind string) (model.Estimator, error) {
	f, ok := r[kind]
	if !ok {
		return nil, errors.NewValidationError("kind", "unknown estimator kind", kind)
	}
	return f(), nil
}

// Kinds returns the registered kinds in sorted order.
func (r Registry) Kinds() []string {
	kinds := make([]string, 0, len(r))
	for k := range r {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
