package tree

import (
	"fmt"
	"sort"
)

// ValueUpdater computes a node's new value from a backpropagated score. It
// runs while the node's write lock is held: it may read the node's own fields
// directly and its children through their accessors, but must not call
// locking methods on the node itself.
type ValueUpdater interface {
	Update(score float64, n *Node) float64
	Copy() ValueUpdater
}

// Average keeps the mean of every score backpropagated through the node.
type Average struct{}

func (Average) Update(score float64, n *Node) float64 {
	visits := float64(n.visits.Load())
	return (n.value*visits + score) / (visits + 1)
}

func (a Average) Copy() ValueUpdater { return a }

// HardSet replaces the value with the latest score.
type HardSet struct{}

func (HardSet) Update(score float64, _ *Node) float64 {
	return score
}

func (h HardSet) Copy() ValueUpdater { return h }

// Sum accumulates every score.
type Sum struct{}

func (Sum) Update(score float64, n *Node) float64 {
	return n.value + score
}

func (s Sum) Copy() ValueUpdater { return s }

// TopNChildren sets a leaf's value to the score and any other node's value to
// the mean of its N best children.
type TopNChildren struct {
	N int
}

func NewTopNChildren(n int) TopNChildren {
	if n < 1 {
		panic(fmt.Sprintf("top N children updater needs N >= 1, got %d", n))
	}
	return TopNChildren{N: n}
}

func (t TopNChildren) Update(score float64, n *Node) float64 {
	if len(n.children) == 0 {
		return score
	}

	values := make([]float64, len(n.children))
	for i, child := range n.children {
		values[i] = child.Value()
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(values)))

	count := min(t.N, len(values))
	total := 0.0
	for _, v := range values[:count] {
		total += v
	}
	return total / float64(count)
}

func (t TopNChildren) Copy() ValueUpdater { return t }
