package ml

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/riskline/accident-risk-service/internal/domain"
)

// ForestConfig holds the fixed hyperparameters of the ensemble. They are
// configuration, not derived data: chosen ahead of time, never tuned per
// request.
type ForestConfig struct {
	Trees    int
	MaxDepth int
	Seed     int64
}

// DefaultForestConfig mirrors the hyperparameters the model was originally
// tuned with: 200 trees of depth 10, seed 42.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{Trees: 200, MaxDepth: 10, Seed: 42}
}

// Forest is a bagged ensemble of randomized decision trees estimating the
// probability of the positive (incident) class. Exported fields keep the
// fitted model gob-serializable.
type Forest struct {
	Members     []*Tree
	NumFeatures int
	Config      ForestConfig
}

// NewForest returns an unfitted forest with the given hyperparameters.
// Non-positive Trees or MaxDepth fall back to the defaults.
func NewForest(cfg ForestConfig) *Forest {
	def := DefaultForestConfig()
	if cfg.Trees <= 0 {
		cfg.Trees = def.Trees
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	return &Forest{Config: cfg}
}

// Fit trains the ensemble on the balanced, encoded dataset. classWeights maps
// label -> weight; nil means uniform. Each tree draws its own bootstrap sample
// and feature subsets from a rng seeded Seed+treeIndex, so a fixed seed,
// dataset, and hyperparameters give a bit-identical forest regardless of how
// many goroutines fit trees concurrently.
//
// A dataset with only one label present fails with
// domain.ErrInsufficientClassDiversity before any tree is grown.
func (f *Forest) Fit(x [][]float64, y []int, classWeights map[int]float64) error {
	if len(x) == 0 || len(x) != len(y) {
		return fmt.Errorf("fit forest: %d samples, %d labels", len(x), len(y))
	}
	if singleClass(y) {
		return fmt.Errorf("fit forest: all %d samples share one label: %w",
			len(y), domain.ErrInsufficientClassDiversity)
	}

	f.NumFeatures = len(x[0])

	weights := make([]float64, len(y))
	for i, label := range y {
		weights[i] = 1
		if w, ok := classWeights[label]; ok {
			weights[i] = w
		}
	}

	f.Members = make([]*Tree, f.Config.Trees)
	var wg sync.WaitGroup
	sem := make(chan struct{}, fitParallelism)
	for k := range f.Members {
		wg.Add(1)
		sem <- struct{}{}
		go func(k int) {
			defer wg.Done()
			defer func() { <-sem }()
			f.Members[k] = f.fitTree(x, y, weights, k)
		}(k)
	}
	wg.Wait()
	return nil
}

// fitParallelism caps concurrent tree fitting. Trees are independent, so this
// is a throughput knob, not a correctness one.
const fitParallelism = 8

func (f *Forest) fitTree(x [][]float64, y []int, weights []float64, k int) *Tree {
	rng := rand.New(rand.NewSource(f.Config.Seed + int64(k)))

	// Bootstrap sample: n draws with replacement.
	inx := make([]int, len(x))
	for i := range inx {
		inx[i] = rng.Intn(len(x))
	}

	tree := &Tree{
		MaxDepth:    f.Config.MaxDepth,
		MaxFeatures: sqrtFeatures(f.NumFeatures),
	}
	tree.Fit(x, y, weights, inx, rng)
	return tree
}

// PredictProb returns the ensemble's estimated probability of the positive
// class for one feature vector: the mean of the per-tree leaf fractions.
// Deterministic for a fitted forest; no per-call state is mutated, so
// concurrent calls are safe.
func (f *Forest) PredictProb(vec []float64) (float64, error) {
	if len(f.Members) == 0 {
		return 0, fmt.Errorf("predict: forest not fitted: %w", domain.ErrModelNotLoaded)
	}
	if len(vec) != f.NumFeatures {
		return 0, fmt.Errorf("predict: vector width %d, forest expects %d: %w",
			len(vec), f.NumFeatures, domain.ErrCorruptArtifact)
	}

	var sum float64
	for _, tree := range f.Members {
		sum += tree.PredictProb(vec)
	}
	return sum / float64(len(f.Members)), nil
}

func singleClass(y []int) bool {
	for _, label := range y[1:] {
		if label != y[0] {
			return false
		}
	}
	return true
}
