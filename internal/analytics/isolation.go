package analytics

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
)

const eulerMascheroni = 0.5772156649

// OutlierConfig controls the isolation forest.
type OutlierConfig struct {
	NumTrees      int     `yaml:"num_trees" validate:"min=1,max=1000"`
	SampleSize    int     `yaml:"sample_size" validate:"min=2"`
	Contamination float64 `yaml:"contamination" validate:"gt=0,lt=0.5"`
	Seed          uint64  `yaml:"seed"`
}

// DefaultOutlierConfig mirrors the common isolation forest defaults:
// 100 trees, sub-samples of 256 and 10% expected contamination.
func DefaultOutlierConfig() OutlierConfig {
	return OutlierConfig{
		NumTrees:      100,
		SampleSize:    256,
		Contamination: 0.1,
		Seed:          42,
	}
}

// OutlierModel is an isolation forest over one-dimensional samples.
// Anomalous values are isolated by fewer random splits, so a short
// average path length maps to a score close to 1.
//
// Every Fit reseeds the generator, so fitting the same values twice
// yields the same forest.
type OutlierModel struct {
	cfg        OutlierConfig
	trees      []*isolationNode
	sampleSize int
	threshold  float64
	fitted     bool
}

// isolationNode is either an internal split or a leaf holding the number
// of training samples that reached it.
type isolationNode struct {
	split float64
	left  *isolationNode // x < split
	right *isolationNode // x >= split
	size  int
	leaf  bool
}

// NewOutlierModel returns an unfitted forest.
func NewOutlierModel(cfg OutlierConfig) *OutlierModel {
	if cfg.NumTrees < 1 {
		cfg.NumTrees = DefaultOutlierConfig().NumTrees
	}
	if cfg.SampleSize < 2 {
		cfg.SampleSize = DefaultOutlierConfig().SampleSize
	}
	if cfg.Contamination <= 0 || cfg.Contamination >= 0.5 {
		cfg.Contamination = DefaultOutlierConfig().Contamination
	}
	return &OutlierModel{cfg: cfg}
}

// Fit grows the forest on values and derives the decision threshold as
// the (1 - contamination) quantile of the training scores.
func (m *OutlierModel) Fit(values []float64) error {
	if len(values) < 2 {
		return fmt.Errorf("%w: outlier model needs at least 2 points, got %d", ErrModelFit, len(values))
	}
	if err := checkFinite(values); err != nil {
		return fmt.Errorf("%w: %w", ErrModelFit, err)
	}

	rng := rand.New(rand.NewPCG(m.cfg.Seed, m.cfg.Seed^0x9e3779e97f4c7c15))
	psi := min(m.cfg.SampleSize, len(values))
	maxDepth := int(math.Ceil(math.Log2(float64(psi))))

	trees := make([]*isolationNode, m.cfg.NumTrees)
	pool := slices.Clone(values)
	for t := range trees {
		// Partial Fisher-Yates: the first psi entries become the sub-sample
		for i := 0; i < psi; i++ {
			j := i + rng.IntN(len(pool)-i)
			pool[i], pool[j] = pool[j], pool[i]
		}
		trees[t] = growTree(rng, slices.Clone(pool[:psi]), 0, maxDepth)
	}

	m.trees = trees
	m.sampleSize = psi
	m.fitted = true

	scores := make([]float64, len(values))
	for i, v := range values {
		scores[i] = m.Score(v)
	}
	slices.Sort(scores)
	m.threshold = Percentile(scores, 1-m.cfg.Contamination)
	return nil
}

// Score returns the anomaly score of x in [0, 1]. Scores near 1 are
// outliers, scores well below 0.5 are typical. An unfitted model scores 0.
func (m *OutlierModel) Score(x float64) float64 {
	if !m.fitted || len(m.trees) == 0 {
		return 0
	}

	var total float64
	for _, tree := range m.trees {
		total += pathLength(tree, x, 0)
	}
	avg := total / float64(len(m.trees))

	norm := averagePathLength(m.sampleSize)
	if norm <= 0 {
		return 0.5
	}
	return math.Pow(2, -avg/norm)
}

// Predict flags each value whose score is strictly above the fitted
// threshold. Values tied with the threshold are inliers.
func (m *OutlierModel) Predict(values []float64) ([]bool, error) {
	if !m.fitted {
		return nil, ErrModelNotFitted
	}
	if err := checkFinite(values); err != nil {
		return nil, err
	}

	flags := make([]bool, len(values))
	for i, v := range values {
		flags[i] = m.Score(v) > m.threshold
	}
	return flags, nil
}

// Threshold returns the score cut-off chosen by the last Fit.
func (m *OutlierModel) Threshold() float64 {
	return m.threshold
}

// Fitted reports whether Fit has succeeded at least once.
func (m *OutlierModel) Fitted() bool {
	return m.fitted
}

func growTree(rng *rand.Rand, sample []float64, depth, maxDepth int) *isolationNode {
	if depth >= maxDepth || len(sample) <= 1 {
		return &isolationNode{leaf: true, size: len(sample)}
	}

	lo, hi := slices.Min(sample), slices.Max(sample)
	if lo >= hi {
		return &isolationNode{leaf: true, size: len(sample)}
	}

	split := lo + rng.Float64()*(hi-lo)
	left := make([]float64, 0, len(sample))
	right := make([]float64, 0, len(sample))
	for _, v := range sample {
		if v < split {
			left = append(left, v)
		} else {
			right = append(right, v)
		}
	}

	return &isolationNode{
		split: split,
		left:  growTree(rng, left, depth+1, maxDepth),
		right: growTree(rng, right, depth+1, maxDepth),
	}
}

func pathLength(node *isolationNode, x float64, depth int) float64 {
	if node.leaf {
		return float64(depth) + averagePathLength(node.size)
	}
	if x < node.split {
		return pathLength(node.left, x, depth+1)
	}
	return pathLength(node.right, x, depth+1)
}

// averagePathLength is the expected path length of an unsuccessful search
// in a binary search tree of n nodes, used both as the score normaliser and
// as the correction for leaves that stopped growing early.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	return 2.0*(math.Log(float64(n-1))+eulerMascheroni) -
		(2.0 * float64(n-1) / float64(n))
}
