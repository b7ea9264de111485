package metrics

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/pipeperm/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Accuracy は正解率を計算する。ラベルは整数値に丸めて比較する。
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i := 0; i < n; i++ {
		if label(yTrue.AtVec(i)) == label(yPred.AtVec(i)) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError は誤分類率（1 - Accuracy）を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// ConfusionMatrix は混同行列を計算する。
// 行が真のラベル、列が予測ラベルで、ラベルは yTrue と yPred の和集合を昇順に並べたもの。
func ConfusionMatrix(yTrue, yPred *mat.VecDense) ([]int, *mat.Dense, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[int]struct{})
	for i := 0; i < n; i++ {
		seen[label(yTrue.AtVec(i))] = struct{}{}
		seen[label(yPred.AtVec(i))] = struct{}{}
	}
	labels := make([]int, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Ints(labels)

	index := make(map[int]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}

	cm := mat.NewDense(len(labels), len(labels), nil)
	for i := 0; i < n; i++ {
		r := index[label(yTrue.AtVec(i))]
		c := index[label(yPred.AtVec(i))]
		cm.Set(r, c, cm.At(r, c)+1)
	}
	return labels, cm, nil
}

// ClassificationReport はクラスごとの適合率・再現率・F1 とそのマクロ平均をまとめたもの
type ClassificationReport struct {
	Labels    []int
	Confusion *mat.Dense
	Precision []float64
	Recall    []float64
	F1        []float64
	Support   []int

	Accuracy       float64
	MacroPrecision float64
	MacroRecall    float64
	MacroF1        float64
}

// NewClassificationReport は混同行列から分類レポートを作成する。
// 分母が 0 になる指標は 0 とし、UndefinedMetricWarning を発生させる。
func NewClassificationReport(yTrue, yPred *mat.VecDense) (*ClassificationReport, error) {
	labels, cm, err := ConfusionMatrix(yTrue, yPred)
	if err != nil {
		return nil, err
	}

	k := len(labels)
	rep := &ClassificationReport{
		Labels:    labels,
		Confusion: cm,
		Precision: make([]float64, k),
		Recall:    make([]float64, k),
		F1:        make([]float64, k),
		Support:   make([]int, k),
	}

	var diag, total float64
	undefPrecision, undefRecall := false, false
	for c := 0; c < k; c++ {
		tp := cm.At(c, c)
		var predicted, actual float64
		for j := 0; j < k; j++ {
			predicted += cm.At(j, c)
			actual += cm.At(c, j)
		}
		diag += tp
		total += actual
		rep.Support[c] = int(actual)

		if predicted > 0 {
			rep.Precision[c] = tp / predicted
		} else {
			undefPrecision = true
		}
		if actual > 0 {
			rep.Recall[c] = tp / actual
		} else {
			undefRecall = true
		}
		p, r := rep.Precision[c], rep.Recall[c]
		rep.F1[c] = errors.SafeDivide(2*p*r, p+r)
	}

	if undefPrecision {
		errors.Warn(errors.NewUndefinedMetricWarning("precision", "no predicted samples for some labels", 0))
	}
	if undefRecall {
		errors.Warn(errors.NewUndefinedMetricWarning("recall", "no true samples for some labels", 0))
	}

	rep.Accuracy = diag / total
	rep.MacroPrecision = stat.Mean(rep.Precision, nil)
	rep.MacroRecall = stat.Mean(rep.Recall, nil)
	rep.MacroF1 = stat.Mean(rep.F1, nil)
	return rep, nil
}

// PrecisionMacro はマクロ平均適合率を計算する
func PrecisionMacro(yTrue, yPred *mat.VecDense) (float64, error) {
	rep, err := NewClassificationReport(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return rep.MacroPrecision, nil
}

// RecallMacro はマクロ平均再現率を計算する
func RecallMacro(yTrue, yPred *mat.VecDense) (float64, error) {
	rep, err := NewClassificationReport(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return rep.MacroRecall, nil
}

// F1Macro はマクロ平均F1スコアを計算する
func F1Macro(yTrue, yPred *mat.VecDense) (float64, error) {
	rep, err := NewClassificationReport(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return rep.MacroF1, nil
}

// BalancedAccuracy は yTrue に現れるクラスの再現率の平均を計算する
func BalancedAccuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	rep, err := NewClassificationReport(yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	var count int
	for c, s := range rep.Support {
		if s == 0 {
			continue
		}
		sum += rep.Recall[c]
		count++
	}
	return sum / float64(count), nil
}

func label(v float64) int {
	return int(math.Round(v))
}
