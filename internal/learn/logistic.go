package learn

import (
	"gonum.org/v1/gonum/floats"
)

// Logistic is L2-regularized logistic regression with balanced class weights,
// fitted by full-batch gradient descent.
type Logistic struct {
	C            float64   `json:"c"`
	MaxIter      int       `json:"max_iter"`
	LearningRate float64   `json:"learning_rate"`
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
}

// NewLogistic returns an unfitted model.
func NewLogistic(p Params) *Logistic {
	l := &Logistic{C: p.C, MaxIter: p.MaxIter, LearningRate: p.LearningRate}
	if l.C <= 0 {
		l.C = 1
	}
	if l.MaxIter <= 0 {
		l.MaxIter = 300
	}
	if l.LearningRate <= 0 {
		l.LearningRate = 0.5
	}
	return l
}

func (l *Logistic) Family() Family { return FamilyLogistic }

func (l *Logistic) Fit(X [][]float64, y []int) error {
	n := len(X)
	if n == 0 {
		return ErrEmpty
	}
	var n1 int
	for _, v := range y {
		n1 += v
	}
	n0 := n - n1
	if n0 == 0 || n1 == 0 {
		return ErrSingleClass
	}

	// balanced: w_c = n / (2 * n_c)
	cw := [2]float64{float64(n) / (2 * float64(n0)), float64(n) / (2 * float64(n1))}

	p := len(X[0])
	l.Weights = make([]float64, p)
	l.Bias = 0
	grad := make([]float64, p)
	invN := 1 / float64(n)
	reg := 1 / (l.C * float64(n))

	for range l.MaxIter {
		for j := range grad {
			grad[j] = 0
		}
		var gb float64
		for i, x := range X {
			diff := cw[y[i]] * (sigmoid(floats.Dot(l.Weights, x)+l.Bias) - float64(y[i]))
			floats.AddScaled(grad, diff*invN, x)
			gb += diff * invN
		}
		floats.AddScaled(grad, reg, l.Weights)
		floats.AddScaled(l.Weights, -l.LearningRate, grad)
		l.Bias -= l.LearningRate * gb
	}
	return nil
}

func (l *Logistic) InputWidth() int { return len(l.Weights) }

func (l *Logistic) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		if len(x) != len(l.Weights) {
			out[i] = sigmoid(l.Bias)
			continue
		}
		out[i] = sigmoid(floats.Dot(l.Weights, x) + l.Bias)
	}
	return out
}

func (l *Logistic) Predict(X [][]float64) []int {
	return threshold(l.PredictProba(X), 0.5)
}
