package learn

import (
	"math/rand/v2"
	"sort"
)

// Node is one node of a binary regression tree. Left < 0 marks a leaf.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Value     float64 `json:"v"`
}

// Tree is a CART tree stored as a flat node slice rooted at index 0. Leaves
// hold the mean target of their samples, which for 0/1 labels is P(class=1).
type Tree struct {
	Nodes []Node `json:"nodes"`
}

type treeConfig struct {
	maxDepth     int
	minLeaf      int
	maxFeatures  int  // 0 means every feature
	randomSplits bool // extra-trees style thresholds
}

const defaultMaxDepth = 32

// leaf returns the node index x falls into.
func (t *Tree) leaf(x []float64) int {
	i := 0
	for t.Nodes[i].Left >= 0 {
		n := t.Nodes[i]
		v := 0.0
		if n.Feature < len(x) {
			v = x[n.Feature]
		}
		if v <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return i
}

func (t *Tree) predict(x []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	return t.Nodes[t.leaf(x)].Value
}

type treeBuilder struct {
	X     [][]float64
	y     []float64
	cfg   treeConfig
	rng   *rand.Rand
	nodes []Node
}

// buildTree grows a variance-reduction tree over the rows in idx. Variance
// reduction on 0/1 targets ranks splits the same way Gini impurity does.
func buildTree(X [][]float64, y []float64, idx []int, cfg treeConfig, rng *rand.Rand) *Tree {
	if cfg.maxDepth <= 0 {
		cfg.maxDepth = defaultMaxDepth
	}
	if cfg.minLeaf <= 0 {
		cfg.minLeaf = 1
	}
	b := &treeBuilder{X: X, y: y, cfg: cfg, rng: rng}
	b.grow(idx, 0)
	return &Tree{Nodes: b.nodes}
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	var sum, sumSq float64
	for _, i := range idx {
		sum += b.y[i]
		sumSq += b.y[i] * b.y[i]
	}
	n := float64(len(idx))
	id := len(b.nodes)
	mean := 0.0
	if n > 0 {
		mean = sum / n
	}
	b.nodes = append(b.nodes, Node{Left: -1, Right: -1, Value: mean})

	parentSSE := sumSq - sum*sum/n
	if depth >= b.cfg.maxDepth || len(idx) < 2*b.cfg.minLeaf || n == 0 || parentSSE <= 1e-12 {
		return id
	}

	feat, thr, gain, ok := b.bestSplit(idx, sum, sumSq)
	if !ok || gain <= 1e-12 {
		return id
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.X[i][feat] <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return id
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id].Feature = feat
	b.nodes[id].Threshold = thr
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}

func (b *treeBuilder) candidateFeatures() []int {
	p := len(b.X[0])
	if b.cfg.maxFeatures <= 0 || b.cfg.maxFeatures >= p {
		out := make([]int, p)
		for i := range out {
			out[i] = i
		}
		return out
	}
	return b.rng.Perm(p)[:b.cfg.maxFeatures]
}

// bestSplit returns the feature/threshold with the largest SSE reduction.
func (b *treeBuilder) bestSplit(idx []int, sum, sumSq float64) (int, float64, float64, bool) {
	n := float64(len(idx))
	parentSSE := sumSq - sum*sum/n
	bestGain := 0.0
	bestFeat, bestThr := -1, 0.0

	sorted := make([]int, len(idx))
	for _, f := range b.candidateFeatures() {
		if b.cfg.randomSplits {
			lo, hi := b.X[idx[0]][f], b.X[idx[0]][f]
			for _, i := range idx {
				v := b.X[i][f]
				if v < lo {
					lo = v
				}
				if v > hi {
					hi = v
				}
			}
			if hi <= lo {
				continue
			}
			thr := lo + b.rng.Float64()*(hi-lo)
			var ls, lss, ln float64
			for _, i := range idx {
				if b.X[i][f] <= thr {
					ls += b.y[i]
					lss += b.y[i] * b.y[i]
					ln++
				}
			}
			rn := n - ln
			if int(ln) < b.cfg.minLeaf || int(rn) < b.cfg.minLeaf {
				continue
			}
			rs, rss := sum-ls, sumSq-lss
			sse := (lss - ls*ls/ln) + (rss - rs*rs/rn)
			if gain := parentSSE - sse; gain > bestGain {
				bestGain, bestFeat, bestThr = gain, f, thr
			}
			continue
		}

		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool { return b.X[sorted[a]][f] < b.X[sorted[c]][f] })

		var ls, lss float64
		for k := 0; k < len(sorted)-1; k++ {
			yi := b.y[sorted[k]]
			ls += yi
			lss += yi * yi
			ln := k + 1
			rn := len(sorted) - ln
			if ln < b.cfg.minLeaf || rn < b.cfg.minLeaf {
				continue
			}
			cur, next := b.X[sorted[k]][f], b.X[sorted[k+1]][f]
			if cur == next {
				continue
			}
			rs, rss := sum-ls, sumSq-lss
			sse := (lss - ls*ls/float64(ln)) + (rss - rs*rs/float64(rn))
			if gain := parentSSE - sse; gain > bestGain {
				bestGain, bestFeat, bestThr = gain, f, (cur+next)/2
			}
		}
	}
	return bestFeat, bestThr, bestGain, bestFeat >= 0
}
