package ml

import (
	"math"
	"math/rand"
	"sort"
)

// Node is one node of a fitted decision tree. Exported fields keep the tree
// gob-serializable. Leaf nodes carry the weighted positive-class fraction of
// the training samples that reached them.
type Node struct {
	Left        *Node
	Right       *Node
	SplitVar    int
	SplitVal    float64
	PosFraction float64
	Leaf        bool
}

// Tree is a binary CART classifier over float feature vectors with weighted
// gini impurity. It is always used through Forest, which handles bootstrap
// sampling and seeding.
type Tree struct {
	Root        *Node
	MaxDepth    int // <=0 means unbounded
	MinSplit    int // min samples required to attempt a split
	MinLeaf     int // min samples per child
	MaxFeatures int // features sampled per split; <=0 means all
}

// Fit grows the tree on the rows of x indexed by inx. w holds per-sample
// weights (uniform balancing passes all ones). The rng drives per-split
// feature subsampling, so a fixed seed gives a fixed tree.
func (t *Tree) Fit(x [][]float64, y []int, w []float64, inx []int, rng *rand.Rand) {
	if t.MinSplit < 2 {
		t.MinSplit = 2
	}
	if t.MinLeaf < 1 {
		t.MinLeaf = 1
	}
	t.Root = t.grow(x, y, w, inx, 0, rng)
}

// PredictProb walks the tree and returns the positive-class fraction of the
// leaf the vector falls into.
func (t *Tree) PredictProb(vec []float64) float64 {
	n := t.Root
	for !n.Leaf {
		if vec[n.SplitVar] > n.SplitVal {
			n = n.Right
		} else {
			n = n.Left
		}
	}
	return n.PosFraction
}

func (t *Tree) grow(x [][]float64, y []int, w []float64, inx []int, depth int, rng *rand.Rand) *Node {
	posWeight, totalWeight := weightedCounts(y, w, inx)
	node := &Node{PosFraction: posWeight / totalWeight}

	impurity := gini(posWeight, totalWeight)
	if len(inx) < t.MinSplit ||
		len(inx) < 2*t.MinLeaf ||
		(t.MaxDepth > 0 && depth >= t.MaxDepth) ||
		impurity <= 1e-7 {
		node.Leaf = true
		return node
	}

	splitVar, splitVal, ok := t.bestSplit(x, y, w, inx, impurity, totalWeight, rng)
	if !ok {
		node.Leaf = true
		return node
	}

	left := make([]int, 0, len(inx))
	right := make([]int, 0, len(inx))
	for _, i := range inx {
		if x[i][splitVar] > splitVal {
			right = append(right, i)
		} else {
			left = append(left, i)
		}
	}
	if len(left) < t.MinLeaf || len(right) < t.MinLeaf {
		node.Leaf = true
		return node
	}

	node.SplitVar = splitVar
	node.SplitVal = splitVal
	node.Left = t.grow(x, y, w, left, depth+1, rng)
	node.Right = t.grow(x, y, w, right, depth+1, rng)
	return node
}

// bestSplit scans a random subset of features for the threshold with the
// largest weighted gini improvement. Candidate thresholds are midpoints
// between consecutive distinct values.
func (t *Tree) bestSplit(x [][]float64, y []int, w []float64, inx []int, parentImpurity, totalWeight float64, rng *rand.Rand) (int, float64, bool) {
	nFeatures := len(x[inx[0]])
	maxFeatures := t.MaxFeatures
	if maxFeatures <= 0 || maxFeatures > nFeatures {
		maxFeatures = nFeatures
	}

	var (
		bestGain float64
		bestVar  int
		bestVal  float64
		found    bool
	)

	sorted := make([]int, len(inx))
	for _, feature := range rng.Perm(nFeatures)[:maxFeatures] {
		copy(sorted, inx)
		sort.Slice(sorted, func(a, b int) bool {
			return x[sorted[a]][feature] < x[sorted[b]][feature]
		})

		if x[sorted[len(sorted)-1]][feature] <= x[sorted[0]][feature]+1e-7 {
			continue // constant feature
		}

		var posLeft, wLeft float64
		posTotal, _ := weightedCounts(y, w, inx)
		for i := 0; i < len(sorted)-1; i++ {
			idx := sorted[i]
			if y[idx] == 1 {
				posLeft += w[idx]
			}
			wLeft += w[idx]

			cur, next := x[idx][feature], x[sorted[i+1]][feature]
			if next <= cur+1e-7 {
				continue // cannot split between equal values
			}
			if i+1 < t.MinLeaf || len(sorted)-i-1 < t.MinLeaf {
				continue
			}

			wRight := totalWeight - wLeft
			gain := parentImpurity -
				(wLeft/totalWeight)*gini(posLeft, wLeft) -
				(wRight/totalWeight)*gini(posTotal-posLeft, wRight)

			if gain > bestGain+1e-12 {
				bestGain = gain
				bestVar = feature
				bestVal = (cur + next) / 2
				found = true
			}
		}
	}
	return bestVar, bestVal, found
}

// gini computes weighted binary gini impurity from the positive-class weight
// and the total weight.
func gini(posWeight, totalWeight float64) float64 {
	if totalWeight <= 0 {
		return 0
	}
	p := posWeight / totalWeight
	return 2 * p * (1 - p)
}

func weightedCounts(y []int, w []float64, inx []int) (posWeight, totalWeight float64) {
	for _, i := range inx {
		if y[i] == 1 {
			posWeight += w[i]
		}
		totalWeight += w[i]
	}
	return posWeight, totalWeight
}

// sqrtFeatures is the conventional number of candidate features per split
// for classification forests.
func sqrtFeatures(n int) int {
	s := int(math.Sqrt(float64(n)))
	if s < 1 {
		return 1
	}
	return s
}
