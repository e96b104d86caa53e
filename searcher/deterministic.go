package searcher

import (
	"github.com/rs/zerolog/log"

	"qwop/action"
	"qwop/tree"
)

// Deterministic explores depth first: it always expands the first untried
// action of the first node that has one and follows it until failure.
type Deterministic struct {
	machine
}

func NewDeterministic() *Deterministic {
	return &Deterministic{}
}

func (d *Deterministic) TreePolicy(start *tree.Node) *tree.Node {
	d.startEpisode()

	n := start
	for {
		if n.IsFullyExplored() {
			if n == start {
				d.exhausted = true
				return nil
			}
			n = start
			continue
		}
		if n.IsLocked() {
			if n != start {
				n = n.Parent()
				continue
			}
			if !d.backoff.wait() {
				return nil
			}
			continue
		}

		if n.UntriedCount() > 0 && n.ReserveExpansionRights() {
			d.backoff.reset()
			return n
		}

		var next *tree.Node
		for _, child := range n.Children() {
			if child.UntriedCount() > 0 && child.ReserveExpansionRights() {
				d.backoff.reset()
				return child
			}
			if !child.IsFullyExplored() && !child.IsLocked() {
				next = child
				break
			}
		}
		if next == nil {
			if !d.backoff.wait() {
				return nil
			}
			next = start
		}
		n = next
	}
}

func (d *Deterministic) ExpansionPolicy(n *tree.Node) (action.Action, error) {
	if err := untried(n); err != nil {
		return action.Action{}, err
	}
	return n.UntriedAt(0)
}

func (d *Deterministic) ExpansionPolicyActionDone(n *tree.Node) {
	if n.Depth() > MaxDepth {
		log.Warn().Msgf("max tree depth of %d reached, the actions probably never fail", MaxDepth)
		d.finishExpansion(false)
		return
	}
	if n.IsFailed() {
		d.finishExpansion(false)
	}
}

func (d *Deterministic) Copy() Sampler {
	return &Deterministic{machine: d.fresh()}
}

func (d *Deterministic) String() string {
	return "deterministic"
}
