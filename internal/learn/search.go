package learn

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// SearchResult is the outcome of a cross-validated parameter search.
type SearchResult struct {
	Family   Family  `json:"family"`
	Params   Params  `json:"params"`
	CVScore  float64 `json:"cv_score"`
	Failures int     `json:"failures"`
}

// CrossValidate scores every Params in grid with stratified k-fold accuracy
// and returns the best one. Parameter sets that fail to fit are logged and
// skipped; an error is returned only when every set fails.
func CrossValidate(f Family, grid []Params, X [][]float64, y []int, k int, seed uint64) (SearchResult, error) {
	if len(X) == 0 {
		return SearchResult{}, ErrEmpty
	}
	if len(grid) == 0 {
		grid = DefaultGrid(f)
	}
	folds := StratifiedFolds(y, k, seed)
	res := SearchResult{Family: f, CVScore: -1}

	for _, p := range grid {
		score, err := cvScore(f, p, X, y, folds, seed)
		if err != nil {
			res.Failures++
			zap.L().Debug("learn: parameter set failed",
				zap.String("family", string(f)),
				zap.Stringer("params", p),
				zap.Error(err),
			)
			continue
		}
		if score > res.CVScore {
			res.Params = p
			res.CVScore = score
		}
	}
	if res.CVScore < 0 {
		return res, eris.Errorf("learn: all %d parameter sets failed for %s", len(grid), f)
	}
	return res, nil
}

func cvScore(f Family, p Params, X [][]float64, y []int, folds [][]int, seed uint64) (float64, error) {
	var total float64
	var used int
	for _, testIdx := range folds {
		if len(testIdx) == 0 {
			continue
		}
		trainIdx := complement(len(X), testIdx)
		trX, trY := Subset(X, y, trainIdx)
		teX, teY := Subset(X, y, testIdx)

		c, err := New(f, p, seed)
		if err != nil {
			return 0, err
		}
		if err := c.Fit(trX, trY); err != nil {
			return 0, eris.Wrapf(err, "learn: fit %s", f)
		}
		total += Accuracy(teY, c.Predict(teX))
		used++
	}
	if used == 0 {
		return 0, ErrEmpty
	}
	return total / float64(used), nil
}
