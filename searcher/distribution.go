package searcher

import (
	"golang.org/x/exp/rand"

	"qwop/action"
	"qwop/tree"
)

// Distribution walks the tree using each node's action distribution, both to
// choose between expanding and descending and to choose which open child to
// descend into. Expansion also samples on the distribution, until failure.
type Distribution struct {
	machine
	rng *rand.Rand
}

func NewDistribution(seed uint64) *Distribution {
	return &Distribution{rng: rand.New(rand.NewSource(seed))}
}

func (d *Distribution) TreePolicy(start *tree.Node) *tree.Node {
	d.startEpisode()

	n := start
	for {
		if start.IsFullyExplored() {
			return nil
		}
		if n.IsRoot() && (n.ChildCount() == 0 || n.IsLocked()) {
			if n.ReserveExpansionRights() {
				d.backoff.reset()
				return n
			}
			if !d.backoff.wait() {
				return nil
			}
			continue
		}
		if !n.IsRoot() && (n.IsLocked() || n.IsFullyExplored()) {
			if !d.backoff.wait() {
				return nil
			}
			// Never climb above the start node
			if n != start {
				n = n.Parent()
			}
			continue
		}

		children := openChildren(n)
		actions := actionsOf(children)
		untried := n.Untried()
		if len(children) == 0 {
			if len(untried) > 0 && n.ReserveExpansionRights() {
				d.backoff.reset()
				return n
			}
			// Another worker got here first, or the explored flag is still on
			// its way up
			if !d.backoff.wait() {
				return nil
			}
			n = start
			continue
		}

		if len(untried) > 0 {
			expand, err := action.ChooseSet(n.Distribution(), untried, actions, d.rng)
			if err == nil && expand && n.ReserveExpansionRights() {
				d.backoff.reset()
				return n
			}
		}
		n = d.childOnDistribution(n, children, actions)
	}
}

func (d *Distribution) childOnDistribution(n *tree.Node, children []*tree.Node, actions []action.Action) *tree.Node {
	chosen, err := n.Distribution().Sample(actions, d.rng)
	if err != nil {
		return children[d.rng.Intn(len(children))]
	}
	for i, a := range actions {
		if a == chosen {
			return children[i]
		}
	}
	return children[d.rng.Intn(len(children))]
}

func (d *Distribution) ExpansionPolicy(n *tree.Node) (action.Action, error) {
	if err := untried(n); err != nil {
		return action.Action{}, err
	}
	return n.UntriedOnDistribution(d.rng)
}

func (d *Distribution) ExpansionPolicyActionDone(n *tree.Node) {
	if n.IsFailed() || n.Depth() > MaxDepth {
		d.finishExpansion(false)
	}
}

func (d *Distribution) Copy() Sampler {
	c := NewDistribution(d.rng.Uint64())
	c.machine = d.fresh()
	return c
}

func (d *Distribution) String() string {
	return "distribution"
}

func actionsOf(nodes []*tree.Node) []action.Action {
	actions := make([]action.Action, len(nodes))
	for i, n := range nodes {
		actions[i] = n.Action()
	}
	return actions
}
