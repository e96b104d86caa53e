package searcher

import (
	"golang.org/x/exp/rand"

	"qwop/action"
	"qwop/tree"
)

// Random wanders down the tree choosing uniformly between every open child and
// expanding right here, then keeps adding random children until the runner
// falls. It does no rollouts.
type Random struct {
	machine
	rng *rand.Rand
}

func NewRandom(seed uint64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) TreePolicy(start *tree.Node) *tree.Node {
	r.startEpisode()

	n := start
	for {
		if start.IsFullyExplored() {
			return nil
		}
		// Nothing to descend into yet, so only the root's own actions are open
		if n.IsRoot() && (n.ChildCount() == 0 || n.IsLocked()) {
			if n.ReserveExpansionRights() {
				r.backoff.reset()
				return n
			}
			if !r.backoff.wait() {
				return nil
			}
			continue
		}

		open := openChildren(n)
		expansions := n.UntriedCount()
		if len(open)+expansions == 0 {
			if !r.backoff.wait() {
				return nil
			}
			n = start
			continue
		}

		if selection := r.rng.Intn(len(open) + expansions); selection < len(open) {
			n = open[selection]
			continue
		}
		if n.ReserveExpansionRights() {
			r.backoff.reset()
			return n
		}
		if !r.backoff.wait() {
			return nil
		}
		n = start
	}
}

func (r *Random) ExpansionPolicy(n *tree.Node) (action.Action, error) {
	if err := untried(n); err != nil {
		return action.Action{}, err
	}
	return n.UntriedRandom(r.rng)
}

func (r *Random) ExpansionPolicyActionDone(n *tree.Node) {
	if n.IsFailed() || n.Depth() > MaxDepth {
		r.finishExpansion(false)
	}
}

func (r *Random) Copy() Sampler {
	c := NewRandom(r.rng.Uint64())
	c.machine = r.fresh()
	return c
}

func (r *Random) String() string {
	return "random"
}

// openChildren returns the children another worker could still make progress
// under.
func openChildren(n *tree.Node) []*tree.Node {
	var open []*tree.Node
	for _, child := range n.Children() {
		if !child.IsLocked() && !child.IsFullyExplored() {
			open = append(open, child)
		}
	}
	return open
}
