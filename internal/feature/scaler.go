package feature

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes columns to zero mean and unit population variance.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitScaler computes per-column statistics. cols[j] holds every value of column j.
// Constant columns get a scale of 1 so they pass through centered.
func FitScaler(cols [][]float64) *Scaler {
	s := &Scaler{
		Mean:  make([]float64, len(cols)),
		Scale: make([]float64, len(cols)),
	}
	for j, col := range cols {
		if len(col) == 0 {
			s.Scale[j] = 1
			continue
		}
		s.Mean[j] = stat.Mean(col, nil)
		sd := math.Sqrt(stat.PopVariance(col, nil))
		if sd == 0 || math.IsNaN(sd) {
			sd = 1
		}
		s.Scale[j] = sd
	}
	return s
}

// Width is the number of columns the scaler was fitted on.
func (s *Scaler) Width() int {
	if s == nil {
		return 0
	}
	return len(s.Mean)
}

// Apply standardizes vals in place.
func (s *Scaler) Apply(vals []float64) error {
	if s == nil {
		return eris.New("scaler: not fitted")
	}
	if len(vals) != len(s.Mean) || len(s.Scale) != len(s.Mean) {
		return eris.Errorf("scaler: width mismatch (have %d, fitted %d)", len(vals), len(s.Mean))
	}
	for j := range vals {
		vals[j] = (vals[j] - s.Mean[j]) / s.Scale[j]
	}
	return nil
}
