package learn

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Accuracy is the fraction of matching labels. Empty input scores 0.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return 0
	}
	var ok int
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			ok++
		}
	}
	return float64(ok) / float64(len(yTrue))
}

// BinaryReport holds held-out classification metrics for the positive class.
type BinaryReport struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Evaluate computes accuracy, precision, recall and F1. Undefined ratios are 0.
func Evaluate(yTrue, yPred []int) BinaryReport {
	var tp, fp, fn float64
	for i := range yTrue {
		switch {
		case yPred[i] == 1 && yTrue[i] == 1:
			tp++
		case yPred[i] == 1 && yTrue[i] == 0:
			fp++
		case yPred[i] == 0 && yTrue[i] == 1:
			fn++
		}
	}
	r := BinaryReport{Accuracy: Accuracy(yTrue, yPred)}
	if tp+fp > 0 {
		r.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		r.Recall = tp / (tp + fn)
	}
	if r.Precision+r.Recall > 0 {
		r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
	}
	return r
}

// RegressionReport holds held-out regression metrics.
type RegressionReport struct {
	R2  float64 `json:"r2"`
	MAE float64 `json:"mae"`
}

// EvaluateRegression computes R² and mean absolute error.
func EvaluateRegression(yTrue, yPred []float64) RegressionReport {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return RegressionReport{}
	}
	mean := stat.Mean(yTrue, nil)
	var ssRes, ssTot, abs float64
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		ssRes += d * d
		t := yTrue[i] - mean
		ssTot += t * t
		abs += math.Abs(d)
	}
	r := RegressionReport{MAE: abs / float64(len(yTrue))}
	if ssTot > 0 {
		r.R2 = 1 - ssRes/ssTot
	}
	return r
}
