package searcher

import (
	"fmt"

	"golang.org/x/exp/rand"

	"qwop/action"
	"qwop/game"
	"qwop/tree"
)

// FixedDepth exhaustively explores a band of HorizonDepth levels below the
// start node. Each copy tracks the nodes it considers finished: nodes at the
// horizon, failed nodes and nodes whose children are all finished.
type FixedDepth struct {
	machine
	HorizonDepth      int
	FailureMultiplier float64

	evaluate   tree.EvaluationFunction
	updater    tree.ValueUpdater
	startDepth int
	horizon    int
	finished   map[*tree.Node]struct{}
	rng        *rand.Rand
}

// NewFixedDepth panics on a horizon below one. A nil evaluation function or
// updater skips scoring the nodes reached.
func NewFixedDepth(horizonDepth int, evaluate tree.EvaluationFunction, updater tree.ValueUpdater, seed uint64) *FixedDepth {
	if horizonDepth < 1 {
		panic(fmt.Sprintf("horizon depth must be at least 1, got %d", horizonDepth))
	}
	return &FixedDepth{
		HorizonDepth:      horizonDepth,
		FailureMultiplier: 1,
		evaluate:          evaluate,
		updater:           updater,
		finished:          make(map[*tree.Node]struct{}),
		rng:               rand.New(rand.NewSource(seed)),
	}
}

func (f *FixedDepth) isFinished(n *tree.Node) bool {
	_, ok := f.finished[n]
	return ok
}

func (f *FixedDepth) finish(n *tree.Node) {
	f.finished[n] = struct{}{}
}

func (f *FixedDepth) TreePolicy(start *tree.Node) *tree.Node {
	f.startEpisode()
	f.startDepth = start.Depth()
	f.horizon = f.startDepth + f.HorizonDepth

	n := start
	for !f.isFinished(start) {
		if n.IsFullyExplored() || f.isFinished(n) {
			f.finish(n)
			if n != start {
				f.propagate(n.Parent())
			}
			n = start
			continue
		}
		if n.Depth() == f.horizon {
			f.finish(n)
			f.propagate(n.Parent())
			n = start
			continue
		}

		if n.UntriedCount() > 0 && n.ReserveExpansionRights() {
			f.backoff.reset()
			return n
		}

		var next *tree.Node
		for _, child := range n.Children() {
			if !child.IsFullyExplored() && !f.isFinished(child) && !child.IsLocked() {
				next = child
				break
			}
		}
		if next == nil {
			f.propagate(n)
			if !f.isFinished(n) && !f.backoff.wait() {
				return nil
			}
			next = start
		}
		n = next
	}

	f.exhausted = true
	return nil
}

// propagate marks n finished when it has nothing untried and every child is
// finished, then repeats for the parent, stopping at the start depth.
func (f *FixedDepth) propagate(n *tree.Node) {
	for n != nil && n.UntriedCount() == 0 {
		for _, child := range n.Children() {
			if child.Depth() == f.horizon || child.IsFullyExplored() {
				f.finish(child)
			}
			if !f.isFinished(child) {
				return
			}
		}
		f.finish(n)
		if n.Depth() <= f.startDepth {
			return
		}
		n = n.Parent()
	}
}

func (f *FixedDepth) ExpansionPolicy(n *tree.Node) (action.Action, error) {
	if err := untried(n); err != nil {
		return action.Action{}, err
	}
	return n.UntriedRandom(f.rng)
}

// ExpansionPolicyActionDone keeps expanding until the horizon or a failure.
func (f *FixedDepth) ExpansionPolicyActionDone(n *tree.Node) {
	if n.Depth() < f.horizon && !n.IsFailed() {
		return
	}
	f.finish(n)
	f.propagate(n.Parent())
	f.finishExpansion(f.evaluate != nil && f.updater != nil)
}

// RolloutPolicy scores the node where expansion stopped without simulating
// any further.
func (f *FixedDepth) RolloutPolicy(n *tree.Node, _ game.Game) error {
	score := f.evaluate.Value(n)
	if n.IsFailed() {
		score *= f.FailureMultiplier
	}
	n.Backpropagate(score, f.updater)
	f.phase = PhaseEpisodeDone
	return nil
}

func (f *FixedDepth) Copy() Sampler {
	var evaluate tree.EvaluationFunction
	if f.evaluate != nil {
		evaluate = f.evaluate.Copy()
	}
	var updater tree.ValueUpdater
	if f.updater != nil {
		updater = f.updater.Copy()
	}
	c := NewFixedDepth(f.HorizonDepth, evaluate, updater, f.rng.Uint64())
	c.FailureMultiplier = f.FailureMultiplier
	c.machine = f.fresh()
	return c
}

func (f *FixedDepth) String() string {
	return fmt.Sprintf("fixed_depth(%d)", f.HorizonDepth)
}
