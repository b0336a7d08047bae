package scoring

import "math"

// Tempering shrinks overconfident probabilities toward a prior before they
// are scored:
//
//	q   = sigmoid(logit(p) / Temperature)
//	q'  = (1-Weight)*q + Weight*Prior
//	out = p + Strength*(q' - p)
type Tempering struct {
	Enabled     bool    `mapstructure:"enabled"`
	Temperature float64 `mapstructure:"temperature"`
	Prior       float64 `mapstructure:"prior"`
	Weight      float64 `mapstructure:"weight"`
	Strength    float64 `mapstructure:"strength"`
}

// DefaultTempering maps 0.90 to roughly 0.69.
func DefaultTempering() Tempering {
	return Tempering{Enabled: true, Temperature: 2.0, Prior: 0.35, Weight: 0.15, Strength: 1.0}
}

const logitEps = 1e-6

// Apply returns the tempered probability in [0,1]. A disabled or degenerate
// configuration returns p unchanged.
func (t Tempering) Apply(p float64) float64 {
	if math.IsNaN(p) {
		return 0.5
	}
	p = clamp(p, 0, 1)
	if !t.Enabled || t.Temperature <= 0 {
		return p
	}
	pc := clamp(p, logitEps, 1-logitEps)
	q := sigmoid(math.Log(pc/(1-pc)) / t.Temperature)
	w := clamp(t.Weight, 0, 1)
	q = (1-w)*q + w*clamp(t.Prior, 0, 1)
	return clamp(p+clamp(t.Strength, 0, 1)*(q-p), 0, 1)
}
