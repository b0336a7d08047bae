package learn

import (
	"math"
	"math/rand/v2"
)

// Forest is an averaged ensemble of trees. With Random set and Bootstrap off
// it behaves as extra-randomized trees.
type Forest struct {
	Trees     []*Tree `json:"trees"`
	NFeatures int     `json:"n_features"`
	NTrees    int     `json:"n_trees"`
	MaxDepth  int     `json:"max_depth"`
	MinLeaf   int     `json:"min_leaf"`
	Bootstrap bool    `json:"bootstrap"`
	Random    bool    `json:"random"`
	Seed      uint64  `json:"seed"`
}

func (f *Forest) fit(X [][]float64, y []float64, maxFeatures int) error {
	if len(X) == 0 {
		return ErrEmpty
	}
	n := len(X)
	f.NFeatures = len(X[0])
	nTrees := f.NTrees
	if nTrees <= 0 {
		nTrees = 100
	}
	cfg := treeConfig{
		maxDepth:     f.MaxDepth,
		minLeaf:      f.MinLeaf,
		maxFeatures:  maxFeatures,
		randomSplits: f.Random,
	}

	f.Trees = make([]*Tree, nTrees)
	for t := range nTrees {
		rng := rand.New(rand.NewPCG(f.Seed, uint64(t)+1))
		idx := make([]int, n)
		if f.Bootstrap {
			for i := range idx {
				idx[i] = rng.IntN(n)
			}
		} else {
			for i := range idx {
				idx[i] = i
			}
		}
		f.Trees[t] = buildTree(X, y, idx, cfg, rng)
	}
	return nil
}

// InputWidth is the feature count the forest was fitted on.
func (f *Forest) InputWidth() int { return f.NFeatures }

func (f *Forest) mean(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var s float64
	for _, t := range f.Trees {
		s += t.predict(x)
	}
	return s / float64(len(f.Trees))
}

// ForestClassifier averages per-tree class-1 frequencies.
type ForestClassifier struct {
	Forest
}

// NewForestClassifier returns a random forest, or extra trees when extra is set.
func NewForestClassifier(p Params, seed uint64, extra bool) *ForestClassifier {
	return &ForestClassifier{Forest: Forest{
		NTrees:    p.NTrees,
		MaxDepth:  p.MaxDepth,
		MinLeaf:   p.MinLeaf,
		Bootstrap: !extra,
		Random:    extra,
		Seed:      seed,
	}}
}

func (c *ForestClassifier) Family() Family {
	if c.Random {
		return FamilyExtraTrees
	}
	return FamilyRandomForest
}

func (c *ForestClassifier) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return ErrEmpty
	}
	maxFeatures := int(math.Sqrt(float64(len(X[0]))))
	if maxFeatures < 1 {
		maxFeatures = 1
	}
	return c.fit(X, toFloat(y), maxFeatures)
}

func (c *ForestClassifier) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = c.mean(x)
	}
	return out
}

func (c *ForestClassifier) Predict(X [][]float64) []int {
	return threshold(c.PredictProba(X), 0.5)
}

// ForestRegressor averages per-tree target means.
type ForestRegressor struct {
	Forest
}

// NewForestRegressor returns a bootstrap random forest regressor.
func NewForestRegressor(p Params, seed uint64) *ForestRegressor {
	return &ForestRegressor{Forest: Forest{
		NTrees:    p.NTrees,
		MaxDepth:  p.MaxDepth,
		MinLeaf:   p.MinLeaf,
		Bootstrap: true,
		Seed:      seed,
	}}
}

func (r *ForestRegressor) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return ErrEmpty
	}
	maxFeatures := len(X[0]) / 3
	if maxFeatures < 1 {
		maxFeatures = 1
	}
	return r.fit(X, y, maxFeatures)
}

func (r *ForestRegressor) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = r.mean(x)
	}
	return out
}
