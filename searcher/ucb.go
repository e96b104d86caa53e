package searcher

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"

	"qwop/action"
	"qwop/game"
	"qwop/rollout"
	"qwop/tree"
)

// UCB descends by upper confidence bound, expands one node per episode and
// scores it with a rollout. The exploration weight is
// ExplorationConstant + ExplorationRandomFactor*U[0,1), drawn once per copy.
type UCB struct {
	machine
	ExplorationConstant     float64
	ExplorationRandomFactor float64

	evaluate tree.EvaluationFunction
	rollout  rollout.Policy
	updater  tree.ValueUpdater
	c        float64
	rng      *rand.Rand
}

func NewUCB(evaluate tree.EvaluationFunction, policy rollout.Policy, updater tree.ValueUpdater, explorationConstant, explorationRandomFactor float64, seed uint64) *UCB {
	if evaluate == nil || policy == nil || updater == nil {
		panic("UCB needs an evaluation function, a rollout policy and a value updater")
	}
	rng := rand.New(rand.NewSource(seed))
	return &UCB{
		ExplorationConstant:     explorationConstant,
		ExplorationRandomFactor: explorationRandomFactor,
		evaluate:                evaluate,
		rollout:                 policy,
		updater:                 updater,
		c:                       explorationConstant + explorationRandomFactor*rng.Float64(),
		rng:                     rng,
	}
}

// C is the exploration weight of this copy.
func (u *UCB) C() float64 {
	return u.c
}

func (u *UCB) TreePolicy(start *tree.Node) *tree.Node {
	u.startEpisode()

	n := start
	for {
		// Expand immediately wherever there is an untried action
		if n.UntriedCount() > 0 {
			if n.ReserveExpansionRights() {
				return n
			}
			return nil
		}

		best := u.selectChild(n)
		if best == nil {
			if start.IsFullyExplored() {
				return nil
			}
			if !u.backoff.wait() {
				log.Warn().Msgf("UCB worker jammed at depth %d after backing off past %v", n.Depth(), MaxBackoff)
				return nil
			}
			n = start
			continue
		}
		u.backoff.reset()
		n = best
	}
}

// selectChild returns the child with the highest bound among the unlocked,
// not fully explored children that have been visited. The first one wins ties.
func (u *UCB) selectChild(n *tree.Node) *tree.Node {
	bound := newUCB(u.c, max(n.Visits(), 1))

	var best *tree.Node
	bestScore := 0.0
	for _, child := range n.Children() {
		visits := child.Visits()
		if child.IsFullyExplored() || child.IsLocked() || visits == 0 {
			continue
		}
		if score := bound.evaluate(child.Value(), visits); best == nil || score > bestScore {
			best, bestScore = child, score
		}
	}
	return best
}

func (u *UCB) ExpansionPolicy(n *tree.Node) (action.Action, error) {
	if err := untried(n); err != nil {
		return action.Action{}, err
	}
	return n.UntriedOnDistribution(u.rng)
}

// ExpansionPolicyActionDone ends expansion after one node. A failed node needs
// no rollout: its evaluation is propagated directly.
func (u *UCB) ExpansionPolicyActionDone(n *tree.Node) {
	if n.IsFailed() {
		n.Backpropagate(u.evaluate.Value(n), u.updater)
		u.finishExpansion(false)
		return
	}
	u.finishExpansion(true)
}

func (u *UCB) RolloutPolicy(n *tree.Node, g game.Game) error {
	if n.IsFailed() {
		return fmt.Errorf("rollout at depth %d: %w", n.Depth(), rollout.ErrFailedStart)
	}
	score, err := u.rollout.Rollout(n, g)
	if err != nil {
		return fmt.Errorf("rollout at depth %d: %w", n.Depth(), err)
	}
	n.Backpropagate(score, u.updater)
	u.phase = PhaseEpisodeDone
	return nil
}

func (u *UCB) Copy() Sampler {
	c := NewUCB(u.evaluate.Copy(), u.rollout.Copy(), u.updater.Copy(), u.ExplorationConstant, u.ExplorationRandomFactor, u.rng.Uint64())
	c.machine = u.fresh()
	return c
}

func (u *UCB) String() string {
	return fmt.Sprintf("ucb(c=%.3f)", u.c)
}
