package engine

import (
	"math"
	"sort"
)

// Node is one node of a regression tree. Leaves carry Value; internal nodes route a row to
// Left when row[Feature] < Threshold and to Right otherwise.
type Node struct {
	Leaf      bool    `json:"leaf,omitempty"`
	Value     float64 `json:"value,omitempty"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Gain      float64 `json:"gain,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
}

// Tree is a flat node array rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t Tree) predict(row []float64) float64 {
	idx := 0
	for {
		n := t.Nodes[idx]
		if n.Leaf {
			return n.Value
		}
		if row[n.Feature] < n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
}

// treeBuilder grows a single tree by exact greedy search over the sampled rows and columns.
type treeBuilder struct {
	params   Params
	x        [][]float64
	grad     []float64
	hess     []float64
	features []int
	nodes    []Node
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	left      []int
	right     []int
}

func (b *treeBuilder) build(rows []int) Tree {
	b.nodes = b.nodes[:0]
	b.grow(rows, 0)
	return Tree{Nodes: append([]Node(nil), b.nodes...)}
}

func (b *treeBuilder) grow(rows []int, depth int) int {
	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{})

	g, h := b.sums(rows)
	if depth < b.params.MaxDepth {
		if best, ok := b.bestSplit(rows, g, h); ok {
			left := b.grow(best.left, depth+1)
			right := b.grow(best.right, depth+1)
			b.nodes[idx] = Node{
				Feature:   best.feature,
				Threshold: best.threshold,
				Gain:      best.gain,
				Left:      left,
				Right:     right,
			}
			return idx
		}
	}
	b.nodes[idx] = Node{Leaf: true, Value: b.params.LearningRate * b.leafWeight(g, h)}
	return idx
}

func (b *treeBuilder) sums(rows []int) (float64, float64) {
	var g, h float64
	for _, r := range rows {
		g += b.grad[r]
		h += b.hess[r]
	}
	return g, h
}

// bestSplit scans every sampled feature in sorted order and keeps the split with the largest
// positive gain that leaves at least MinChildWeight hessian on both sides.
func (b *treeBuilder) bestSplit(rows []int, g, h float64) (split, bool) {
	if len(rows) < 2 || h < 2*b.params.MinChildWeight {
		return split{}, false
	}
	parent := b.score(g, h)
	best := split{gain: 0}
	found := false

	sorted := make([]int, len(rows))
	for _, f := range b.features {
		copy(sorted, rows)
		sort.SliceStable(sorted, func(i, j int) bool { return b.x[sorted[i]][f] < b.x[sorted[j]][f] })

		var gl, hl float64
		for i := 0; i < len(sorted)-1; i++ {
			r := sorted[i]
			gl += b.grad[r]
			hl += b.hess[r]

			cur, next := b.x[r][f], b.x[sorted[i+1]][f]
			if cur == next {
				continue
			}
			gr, hr := g-gl, h-hl
			if hl < b.params.MinChildWeight || hr < b.params.MinChildWeight {
				continue
			}
			gain := 0.5*(b.score(gl, hl)+b.score(gr, hr)-parent) - b.params.Gamma
			if gain > best.gain {
				best = split{feature: f, threshold: cur + (next-cur)/2, gain: gain}
				found = true
			}
		}
	}
	if !found {
		return split{}, false
	}

	for _, r := range rows {
		if b.x[r][best.feature] < best.threshold {
			best.left = append(best.left, r)
		} else {
			best.right = append(best.right, r)
		}
	}
	return best, true
}

// score is the structure score of a node with L1/L2 regularised weights.
func (b *treeBuilder) score(g, h float64) float64 {
	t := softThreshold(g, b.params.Alpha)
	return t * t / (h + b.params.Lambda)
}

func (b *treeBuilder) leafWeight(g, h float64) float64 {
	return -softThreshold(g, b.params.Alpha) / (h + b.params.Lambda)
}

func softThreshold(g, alpha float64) float64 {
	switch {
	case g > alpha:
		return g - alpha
	case g < -alpha:
		return g + alpha
	default:
		return 0
	}
}

func sigmoid(margin float64) float64 {
	return 1 / (1 + math.Exp(-margin))
}
