package learn

// ThresholdGrid is the fixed sweep used by TuneThreshold.
var ThresholdGrid = []float64{0.30, 0.35, 0.40, 0.45, 0.50, 0.55, 0.60, 0.65, 0.70}

// Thresholded wraps a classifier with a tuned decision threshold. Only
// Predict changes; PredictProba is passed through untouched.
type Thresholded struct {
	Base      Classifier
	Threshold float64
}

func (t *Thresholded) Family() Family { return t.Base.Family() }

func (t *Thresholded) Fit(X [][]float64, y []int) error { return t.Base.Fit(X, y) }

func (t *Thresholded) PredictProba(X [][]float64) []float64 { return t.Base.PredictProba(X) }

func (t *Thresholded) InputWidth() int { return InputWidth(t.Base) }

func (t *Thresholded) Predict(X [][]float64) []int {
	return threshold(t.Base.PredictProba(X), t.Threshold)
}

// TuneThreshold sweeps grid on a held-out set and returns the threshold with
// the best accuracy. A grid value must strictly beat 0.5 to be chosen.
func TuneThreshold(c Classifier, X [][]float64, y []int, grid []float64) (float64, float64) {
	proba := c.PredictProba(X)
	best := 0.5
	bestAcc := Accuracy(y, threshold(proba, best))
	for _, t := range grid {
		if acc := Accuracy(y, threshold(proba, t)); acc > bestAcc {
			best, bestAcc = t, acc
		}
	}
	return best, bestAcc
}
