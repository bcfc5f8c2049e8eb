// Package forest implements a bagged ensemble of CART decision trees
// ("random forest") that maps a feature vector to a class probability
// distribution.
package forest

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Options controls training.
type Options struct {
	NEstimators     int   `json:"n_estimators"`
	MaxDepth        int   `json:"max_depth"` // 0 grows trees until leaves are pure
	MinSamplesSplit int   `json:"min_samples_split"`
	Seed            int64 `json:"seed"`
}

// DefaultOptions returns 100 fully grown trees seeded with 42.
func DefaultOptions() Options {
	return Options{
		NEstimators:     100,
		MaxDepth:        0,
		MinSamplesSplit: 2,
		Seed:            42,
	}
}

func (o Options) validate() error {
	if o.NEstimators < 1 {
		return fmt.Errorf("n_estimators must be at least 1, got %d", o.NEstimators)
	}
	if o.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative, got %d", o.MaxDepth)
	}
	if o.MinSamplesSplit < 2 {
		return fmt.Errorf("min_samples_split must be at least 2, got %d", o.MinSamplesSplit)
	}
	return nil
}

// Node is one node of a tree stored in pre-order. Leaves have Left and Right
// set to -1 and carry the class distribution of their training samples.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool {
	return n.Left < 0
}

// Tree is a single decision tree.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t Tree) leaf(x []float64) []float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Forest is a fitted ensemble. Its class order is fixed at training time.
type Forest struct {
	ClassLabels []string `json:"classes"`
	Features    int      `json:"n_features"`
	Options     Options  `json:"options"`
	Trees       []Tree   `json:"trees"`
}

// Classes returns the class labels in probability order.
func (f *Forest) Classes() []string {
	return append([]string(nil), f.ClassLabels...)
}

// NumFeatures is the vector length the forest was trained on.
func (f *Forest) NumFeatures() int {
	return f.Features
}

// PredictProba averages the leaf distributions of all trees.
func (f *Forest) PredictProba(x []float64) ([]float64, error) {
	if len(x) != f.Features {
		return nil, fmt.Errorf("forest expects %d features, got %d", f.Features, len(x))
	}
	if len(f.Trees) == 0 {
		return nil, errors.New("forest has no trees")
	}

	proba := make([]float64, len(f.ClassLabels))
	for _, t := range f.Trees {
		for c, p := range t.leaf(x) {
			proba[c] += p
		}
	}
	n := float64(len(f.Trees))
	for c := range proba {
		proba[c] /= n
	}
	return proba, nil
}

// Validate checks the structure of a deserialized forest so that prediction
// can never index out of range or loop.
func (f *Forest) Validate() error {
	if len(f.ClassLabels) == 0 {
		return errors.New("forest has no classes")
	}
	if f.Features < 1 {
		return errors.New("forest has no features")
	}
	if len(f.Trees) == 0 {
		return errors.New("forest has no trees")
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.IsLeaf() {
				if len(n.Value) != len(f.ClassLabels) {
					return fmt.Errorf("tree %d node %d: leaf has %d values for %d classes", ti, ni, len(n.Value), len(f.ClassLabels))
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= f.Features {
				return fmt.Errorf("tree %d node %d: feature %d out of range", ti, ni, n.Feature)
			}
			if n.Left <= ni || n.Right <= ni || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d: invalid children %d/%d", ti, ni, n.Left, n.Right)
			}
		}
	}
	return nil
}

// Fit trains a forest on rows x with labels y. Classes are the sorted
// distinct labels. Each tree sees a bootstrap sample and considers
// sqrt(n_features) candidate features per split.
func Fit(x [][]float64, y []string, opts Options) (*Forest, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if len(x) == 0 {
		return nil, errors.New("no training samples")
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("%d samples but %d labels", len(x), len(y))
	}
	nFeatures := len(x[0])
	if nFeatures == 0 {
		return nil, errors.New("training samples have no features")
	}
	for i, row := range x {
		if len(row) != nFeatures {
			return nil, fmt.Errorf("sample %d has %d features, expected %d", i, len(row), nFeatures)
		}
	}

	classes := distinctSorted(y)
	classIndex := make(map[string]int, len(classes))
	for i, c := range classes {
		classIndex[c] = i
	}
	codes := make([]int, len(y))
	for i, label := range y {
		codes[i] = classIndex[label]
	}

	mtry := int(math.Sqrt(float64(nFeatures)))
	if mtry < 1 {
		mtry = 1
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	forest := &Forest{
		ClassLabels: classes,
		Features:    nFeatures,
		Options:     opts,
		Trees:       make([]Tree, opts.NEstimators),
	}
	for t := range forest.Trees {
		b := &builder{
			x:        x,
			y:        codes,
			nClasses: len(classes),
			opts:     opts,
			mtry:     mtry,
			rng:      rand.New(rand.NewSource(rng.Int63())),
		}
		sample := make([]int, len(x))
		for i := range sample {
			sample[i] = b.rng.Intn(len(x))
		}
		b.build(sample, 0)
		forest.Trees[t] = Tree{Nodes: b.nodes}
	}
	return forest, nil
}

func distinctSorted(values []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
