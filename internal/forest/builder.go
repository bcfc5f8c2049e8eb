package forest

import (
	"math"
	"math/rand"
	"sort"
)

type builder struct {
	x        [][]float64
	y        []int
	nClasses int
	opts     Options
	mtry     int
	rng      *rand.Rand
	nodes    []Node
}

// build grows the subtree for samples and returns its root index.
func (b *builder) build(samples []int, depth int) int {
	counts := b.classCounts(samples)
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Left: -1, Right: -1})

	if b.stop(counts, len(samples), depth) {
		b.nodes[id].Value = distribution(counts, len(samples))
		return id
	}

	feature, threshold, ok := b.bestSplit(samples, counts)
	if !ok {
		b.nodes[id].Value = distribution(counts, len(samples))
		return id
	}

	var left, right []int
	for _, s := range samples {
		if b.x[s][feature] <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	b.nodes[id].Feature = feature
	b.nodes[id].Threshold = threshold
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}

func (b *builder) stop(counts []int, n, depth int) bool {
	if n < b.opts.MinSamplesSplit {
		return true
	}
	if b.opts.MaxDepth > 0 && depth >= b.opts.MaxDepth {
		return true
	}
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

// bestSplit visits features in random order until mtry non-constant features
// have been evaluated, and returns the split with the lowest weighted Gini
// impurity. ok is false when every feature is constant over samples.
func (b *builder) bestSplit(samples []int, counts []int) (feature int, threshold float64, ok bool) {
	n := len(samples)
	order := make([]int, n)
	left := make([]int, b.nClasses)
	right := make([]int, b.nClasses)
	best := math.Inf(1)
	visited := 0

	for _, f := range b.rng.Perm(len(b.x[0])) {
		if visited >= b.mtry {
			break
		}
		if b.constant(samples, f) {
			continue
		}
		visited++

		copy(order, samples)
		sort.Slice(order, func(i, j int) bool {
			return b.x[order[i]][f] < b.x[order[j]][f]
		})
		for c := range left {
			left[c] = 0
		}
		copy(right, counts)

		for i := 0; i < n-1; i++ {
			c := b.y[order[i]]
			left[c]++
			right[c]--

			v, next := b.x[order[i]][f], b.x[order[i+1]][f]
			if v == next {
				continue
			}
			nl := i + 1
			nr := n - nl
			score := float64(nl)*gini(left, nl) + float64(nr)*gini(right, nr)
			if score < best {
				best = score
				feature = f
				threshold = v + (next-v)/2
				if threshold == next {
					threshold = v
				}
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

func (b *builder) constant(samples []int, f int) bool {
	first := b.x[samples[0]][f]
	for _, s := range samples[1:] {
		if b.x[s][f] != first {
			return false
		}
	}
	return true
}

func (b *builder) classCounts(samples []int) []int {
	counts := make([]int, b.nClasses)
	for _, s := range samples {
		counts[b.y[s]]++
	}
	return counts
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		sum += p * p
	}
	return 1 - sum
}

func distribution(counts []int, n int) []float64 {
	out := make([]float64, len(counts))
	if n == 0 {
		return out
	}
	for i, c := range counts {
		out[i] = float64(c) / float64(n)
	}
	return out
}
