// Package learn implements the small closed set of model families used to
// predict company success and funding: tree ensembles, gradient boosting and
// class-balanced logistic regression. Every family is deterministic for a
// given seed.
package learn

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Classifier is the capability every candidate family provides.
// PredictProba returns P(class=1) per row.
type Classifier interface {
	Family() Family
	Fit(X [][]float64, y []int) error
	Predict(X [][]float64) []int
	PredictProba(X [][]float64) []float64
}

// Regressor predicts a continuous target.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) []float64
}

// InputWidth returns the number of features m was fitted on, or 0 when m is
// unfitted or does not record it.
func InputWidth(m any) int {
	if w, ok := m.(interface{ InputWidth() int }); ok {
		return w.InputWidth()
	}
	return 0
}

// Family names a supported model family.
type Family string

const (
	FamilyRandomForest     Family = "random_forest"
	FamilyGradientBoosting Family = "gradient_boosting"
	FamilyExtraTrees       Family = "extra_trees"
	FamilyLogistic         Family = "logistic_regression"
)

// Families lists candidates in selection order. Ties in held-out accuracy go
// to the earlier entry.
var Families = []Family{
	FamilyRandomForest,
	FamilyGradientBoosting,
	FamilyExtraTrees,
	FamilyLogistic,
}

var (
	// ErrUnknownFamily is returned by New for a family outside Families.
	ErrUnknownFamily = eris.New("learn: unknown model family")
	// ErrSingleClass is returned when training labels contain one class only.
	ErrSingleClass = eris.New("learn: training labels contain a single class")
	// ErrEmpty is returned when fitting on no rows.
	ErrEmpty = eris.New("learn: no training rows")
)

// Params is the hyperparameter set shared by all families. Fields a family
// does not use are ignored.
type Params struct {
	NTrees       int     `json:"n_trees,omitempty"`
	MaxDepth     int     `json:"max_depth,omitempty"`
	MinLeaf      int     `json:"min_leaf,omitempty"`
	LearningRate float64 `json:"learning_rate,omitempty"`
	C            float64 `json:"c,omitempty"`
	MaxIter      int     `json:"max_iter,omitempty"`
}

func (p Params) String() string {
	return fmt.Sprintf("n_trees=%d max_depth=%d min_leaf=%d lr=%g c=%g max_iter=%d",
		p.NTrees, p.MaxDepth, p.MinLeaf, p.LearningRate, p.C, p.MaxIter)
}

// New builds an unfitted classifier of the given family.
func New(f Family, p Params, seed uint64) (Classifier, error) {
	switch f {
	case FamilyRandomForest:
		return NewForestClassifier(p, seed, false), nil
	case FamilyExtraTrees:
		return NewForestClassifier(p, seed, true), nil
	case FamilyGradientBoosting:
		return NewGradientBoosting(p, seed), nil
	case FamilyLogistic:
		return NewLogistic(p), nil
	default:
		return nil, eris.Wrapf(ErrUnknownFamily, "learn: family %q", f)
	}
}

// DefaultGrid is the small per-family search space used by CrossValidate.
func DefaultGrid(f Family) []Params {
	switch f {
	case FamilyRandomForest:
		return []Params{
			{NTrees: 50, MaxDepth: 8, MinLeaf: 2},
			{NTrees: 100, MaxDepth: 12, MinLeaf: 1},
		}
	case FamilyGradientBoosting:
		return []Params{
			{NTrees: 50, MaxDepth: 3, MinLeaf: 1, LearningRate: 0.1},
			{NTrees: 100, MaxDepth: 3, MinLeaf: 1, LearningRate: 0.05},
		}
	case FamilyExtraTrees:
		return []Params{
			{NTrees: 50, MaxDepth: 10, MinLeaf: 2},
			{NTrees: 100, MaxDepth: 14, MinLeaf: 1},
		}
	case FamilyLogistic:
		return []Params{
			{C: 0.1, MaxIter: 300},
			{C: 1.0, MaxIter: 300},
			{C: 10.0, MaxIter: 300},
		}
	default:
		return nil
	}
}

func threshold(proba []float64, t float64) []int {
	out := make([]int, len(proba))
	for i, p := range proba {
		if p >= t {
			out[i] = 1
		}
	}
	return out
}

func toFloat(y []int) []float64 {
	out := make([]float64, len(y))
	for i, v := range y {
		out[i] = float64(v)
	}
	return out
}
