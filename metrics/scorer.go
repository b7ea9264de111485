package metrics

import (
	"sort"

	"github.com/YuminosukeSato/pipeperm/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Scorer はスコア関数。値が大きいほど良い（誤差系は符号を反転して登録する）。
type Scorer func(yTrue, yPred *mat.VecDense) (float64, error)

func negate(f Scorer) Scorer {
	return func(yTrue, yPred *mat.VecDense) (float64, error) {
		v, err := f(yTrue, yPred)
		return -v, err
	}
}

var scorers = map[string]Scorer{
	"accuracy":                    Accuracy,
	"balanced_accuracy":           BalancedAccuracy,
	"f1_macro":                    F1Macro,
	"precision_macro":             PrecisionMacro,
	"recall_macro":                RecallMacro,
	"r2":                          R2Score,
	"explained_variance":          ExplainedVarianceScore,
	"neg_mean_squared_error":      negate(MSE),
	"neg_mean_absolute_error":     negate(MAE),
	"neg_root_mean_squared_error": negate(RMSE),
}

// GetScorer は名前からスコア関数を取得する。未知の名前は ValidationError。
func GetScorer(name string) (Scorer, error) {
	s, ok := scorers[name]
	if !ok {
		return nil, errors.NewValidationError("scoring", "unknown scorer, see metrics.ScorerNames()", name)
	}
	return s, nil
}

// ScorerNames は登録済みスコア名を昇順で返す
func ScorerNames() []string {
	names := make([]string, 0, len(scorers))
	for name := range scorers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsClassificationScorer は分類用のスコア名かどうかを返す
func IsClassificationScorer(name string) bool {
	switch name {
	case "accuracy", "balanced_accuracy", "f1_macro", "precision_macro", "recall_macro":
		return true
	}
	return false
}
