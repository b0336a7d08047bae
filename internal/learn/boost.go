package learn

import (
	"math"
	"math/rand/v2"
)

// GradientBoosting is binary log-loss boosting over shallow regression trees.
// Leaf values are single Newton steps.
type GradientBoosting struct {
	NEstimators  int     `json:"n_estimators"`
	LearningRate float64 `json:"learning_rate"`
	MaxDepth     int     `json:"max_depth"`
	MinLeaf      int     `json:"min_leaf"`
	Seed         uint64  `json:"seed"`
	NFeatures    int     `json:"n_features"`
	Init         float64 `json:"init"`
	Trees        []*Tree `json:"trees"`
}

// NewGradientBoosting returns an unfitted booster.
func NewGradientBoosting(p Params, seed uint64) *GradientBoosting {
	gb := &GradientBoosting{
		NEstimators:  p.NTrees,
		LearningRate: p.LearningRate,
		MaxDepth:     p.MaxDepth,
		MinLeaf:      p.MinLeaf,
		Seed:         seed,
	}
	if gb.NEstimators <= 0 {
		gb.NEstimators = 100
	}
	if gb.LearningRate <= 0 {
		gb.LearningRate = 0.1
	}
	if gb.MaxDepth <= 0 {
		gb.MaxDepth = 3
	}
	return gb
}

func (g *GradientBoosting) Family() Family { return FamilyGradientBoosting }

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func (g *GradientBoosting) Fit(X [][]float64, y []int) error {
	n := len(X)
	if n == 0 {
		return ErrEmpty
	}
	g.NFeatures = len(X[0])

	var pos float64
	for _, v := range y {
		pos += float64(v)
	}
	p0 := math.Min(math.Max(pos/float64(n), 1e-6), 1-1e-6)
	g.Init = math.Log(p0 / (1 - p0))

	F := make([]float64, n)
	for i := range F {
		F[i] = g.Init
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	cfg := treeConfig{maxDepth: g.MaxDepth, minLeaf: g.MinLeaf}
	rng := rand.New(rand.NewPCG(g.Seed, 7))
	resid := make([]float64, n)
	prob := make([]float64, n)

	g.Trees = make([]*Tree, 0, g.NEstimators)
	for range g.NEstimators {
		for i := range F {
			prob[i] = sigmoid(F[i])
			resid[i] = float64(y[i]) - prob[i]
		}
		tree := buildTree(X, resid, idx, cfg, rng)

		num := make([]float64, len(tree.Nodes))
		den := make([]float64, len(tree.Nodes))
		leaves := make([]int, n)
		for i, x := range X {
			l := tree.leaf(x)
			leaves[i] = l
			num[l] += resid[i]
			den[l] += prob[i] * (1 - prob[i])
		}
		for l := range tree.Nodes {
			if tree.Nodes[l].Left >= 0 {
				continue
			}
			if den[l] < 1e-12 {
				tree.Nodes[l].Value = 0
			} else {
				tree.Nodes[l].Value = num[l] / den[l]
			}
		}
		for i := range F {
			F[i] += g.LearningRate * tree.Nodes[leaves[i]].Value
		}
		g.Trees = append(g.Trees, tree)
	}
	return nil
}

func (g *GradientBoosting) InputWidth() int { return g.NFeatures }

func (g *GradientBoosting) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		f := g.Init
		for _, t := range g.Trees {
			f += g.LearningRate * t.predict(x)
		}
		out[i] = sigmoid(f)
	}
	return out
}

func (g *GradientBoosting) Predict(X [][]float64) []int {
	return threshold(g.PredictProba(X), 0.5)
}
