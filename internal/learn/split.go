package learn

import (
	"math"
	"math/rand/v2"
	"sort"
)

// StratifiedSplit partitions row indices into train and test sets, keeping
// the class ratio in both. testFrac of each class (rounded, at least one row
// when the class has two or more) goes to test.
func StratifiedSplit(y []int, testFrac float64, seed uint64) (train, test []int) {
	rng := rand.New(rand.NewPCG(seed, 0))
	for _, class := range classes(y) {
		rows := classRows(y, class)
		rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })

		nTest := int(math.Round(float64(len(rows)) * testFrac))
		if nTest == 0 && len(rows) >= 2 && testFrac > 0 {
			nTest = 1
		}
		if nTest >= len(rows) {
			nTest = len(rows) - 1
		}
		test = append(test, rows[:nTest]...)
		train = append(train, rows[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

// StratifiedFolds deals each class round-robin into k folds after a seeded
// shuffle. The result holds the test indices of each fold.
func StratifiedFolds(y []int, k int, seed uint64) [][]int {
	if k < 2 {
		k = 2
	}
	rng := rand.New(rand.NewPCG(seed, 1))
	folds := make([][]int, k)
	for _, class := range classes(y) {
		rows := classRows(y, class)
		rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		for i, r := range rows {
			folds[i%k] = append(folds[i%k], r)
		}
	}
	return folds
}

// Subset selects rows of X and y by index.
func Subset[T any](X [][]float64, y []T, idx []int) ([][]float64, []T) {
	xs := make([][]float64, len(idx))
	ys := make([]T, len(idx))
	for i, j := range idx {
		xs[i] = X[j]
		ys[i] = y[j]
	}
	return xs, ys
}

func classes(y []int) []int {
	seen := map[int]bool{}
	var out []int
	for _, v := range y {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}

func classRows(y []int, class int) []int {
	var rows []int
	for i, v := range y {
		if v == class {
			rows = append(rows, i)
		}
	}
	return rows
}

func complement(n int, idx []int) []int {
	in := make([]bool, n)
	for _, i := range idx {
		in[i] = true
	}
	out := make([]int, 0, n-len(idx))
	for i := range n {
		if !in[i] {
			out = append(out, i)
		}
	}
	return out
}
