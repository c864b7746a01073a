package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/riskline/accident-risk-service/internal/domain"
)

// Strategy selects the class-imbalance correction mechanism. The grid makes
// negatives vastly outnumber positives (most location-hour slots never see an
// incident), and an uncorrected classifier degenerates to always predicting
// "no incident". Exactly one strategy applies per training run.
type Strategy string

const (
	// StrategyOversample synthesizes minority samples by interpolating
	// between nearest minority neighbors in encoded feature space.
	StrategyOversample Strategy = "oversample"
	// StrategyClassWeight leaves the dataset untouched and instead returns
	// inverse-frequency class weights applied at fit time.
	StrategyClassWeight Strategy = "class-weight"
)

// Balancer corrects the label skew of an encoded training set.
type Balancer struct {
	Strategy Strategy
	// TargetRatio is the desired minority/majority ratio after
	// oversampling; 1.0 means parity.
	TargetRatio float64
	// Neighbors is the nearest-neighbor pool size for interpolation,
	// capped at minority size - 1.
	Neighbors int
	Seed      int64
}

// DefaultBalancer oversamples to parity with a 5-neighbor pool, matching the
// behavior the model was originally trained with.
func DefaultBalancer() Balancer {
	return Balancer{Strategy: StrategyOversample, TargetRatio: 1.0, Neighbors: 5, Seed: 42}
}

// Apply rebalances the dataset. Under StrategyOversample it returns an
// augmented (x, y) and nil weights; under StrategyClassWeight it returns the
// input unchanged plus per-class weights. Synthesis happens purely in the
// numeric encoded space: interpolation between existing minority vectors can
// never add a one-hot column that does not already exist.
//
// A single-label input fails with domain.ErrInsufficientClassDiversity.
func (b Balancer) Apply(x [][]float64, y []int) ([][]float64, []int, map[int]float64, error) {
	var pos, neg int
	for _, label := range y {
		if label == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return nil, nil, nil, fmt.Errorf("balance: %d positive, %d negative samples: %w",
			pos, neg, domain.ErrInsufficientClassDiversity)
	}

	switch b.Strategy {
	case StrategyClassWeight:
		return x, y, inverseFrequencyWeights(pos, neg), nil
	case StrategyOversample, "":
		bx, by := b.oversample(x, y, pos, neg)
		return bx, by, nil, nil
	default:
		return nil, nil, nil, fmt.Errorf("balance: unknown strategy %q", b.Strategy)
	}
}

// inverseFrequencyWeights computes sklearn-style "balanced" weights:
// n / (classes * count(class)).
func inverseFrequencyWeights(pos, neg int) map[int]float64 {
	n := float64(pos + neg)
	return map[int]float64{
		0: n / (2 * float64(neg)),
		1: n / (2 * float64(pos)),
	}
}

// oversample appends synthetic minority vectors until the minority/majority
// ratio reaches TargetRatio. Each synthetic vector lies on the segment between
// a minority sample and one of its k nearest minority neighbors. With a single
// minority sample there is no neighbor to interpolate toward, so it is
// duplicated as-is.
func (b Balancer) oversample(x [][]float64, y []int, pos, neg int) ([][]float64, []int) {
	minorityLabel := 1
	minority, majority := pos, neg
	if neg < pos {
		minorityLabel = 0
		minority, majority = neg, pos
	}

	ratio := b.TargetRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	need := int(math.Ceil(ratio*float64(majority))) - minority
	if need <= 0 {
		return x, y
	}

	minorityInx := make([]int, 0, minority)
	for i, label := range y {
		if label == minorityLabel {
			minorityInx = append(minorityInx, i)
		}
	}

	k := b.Neighbors
	if k <= 0 {
		k = 5
	}
	if k > len(minorityInx)-1 {
		k = len(minorityInx) - 1
	}
	neighbors := nearestMinorityNeighbors(x, minorityInx, k)

	rng := rand.New(rand.NewSource(b.Seed))
	outX := append(make([][]float64, 0, len(x)+need), x...)
	outY := append(make([]int, 0, len(y)+need), y...)

	for s := 0; s < need; s++ {
		base := minorityInx[s%len(minorityInx)]
		synth := make([]float64, len(x[base]))
		if k == 0 {
			copy(synth, x[base])
		} else {
			other := neighbors[base][rng.Intn(k)]
			gap := rng.Float64()
			for j := range synth {
				synth[j] = x[base][j] + gap*(x[other][j]-x[base][j])
			}
		}
		outX = append(outX, synth)
		outY = append(outY, minorityLabel)
	}
	return outX, outY
}

// nearestMinorityNeighbors returns, for each minority row, the indices of its
// k nearest minority rows by euclidean distance. Grid datasets are small
// (|locations| x 24), so the quadratic scan is fine.
func nearestMinorityNeighbors(x [][]float64, minorityInx []int, k int) map[int][]int {
	neighbors := make(map[int][]int, len(minorityInx))
	if k <= 0 {
		return neighbors
	}
	for _, i := range minorityInx {
		type cand struct {
			idx  int
			dist float64
		}
		cands := make([]cand, 0, len(minorityInx)-1)
		for _, j := range minorityInx {
			if i == j {
				continue
			}
			cands = append(cands, cand{idx: j, dist: squaredDistance(x[i], x[j])})
		}
		sort.Slice(cands, func(a, b int) bool {
			if cands[a].dist != cands[b].dist {
				return cands[a].dist < cands[b].dist
			}
			return cands[a].idx < cands[b].idx
		})
		nearest := make([]int, 0, k)
		for _, c := range cands[:k] {
			nearest = append(nearest, c.idx)
		}
		neighbors[i] = nearest
	}
	return neighbors
}

func squaredDistance(a, b []float64) float64 {
	var d float64
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return d
}
