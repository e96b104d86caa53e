package searcher

import (
	"errors"
	"fmt"

	"qwop/action"
	"qwop/game"
	"qwop/tree"
)

var ErrJammed = errors.New("worker could not reserve any node to expand")

// Phase is where a sampler is within one episode.
type Phase int

const (
	PhaseTreePolicy Phase = iota
	PhaseExpansionPolicy
	PhaseRolloutPolicy
	PhaseEpisodeDone
)

func (p Phase) String() string {
	switch p {
	case PhaseTreePolicy:
		return "tree_policy"
	case PhaseExpansionPolicy:
		return "expansion_policy"
	case PhaseRolloutPolicy:
		return "rollout_policy"
	case PhaseEpisodeDone:
		return "episode_done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Sampler decides where a worker goes in the tree, what it adds there and how
// the new node is scored. Each worker owns its own copy.
type Sampler interface {
	// TreePolicy starts an episode and returns a node whose expansion rights
	// the caller now holds, or nil when nothing can be reserved.
	TreePolicy(start *tree.Node) *tree.Node
	TreePolicyActionDone(n *tree.Node)
	TreePolicyGuard(n *tree.Node) bool

	ExpansionPolicy(n *tree.Node) (action.Action, error)
	ExpansionPolicyActionDone(n *tree.Node)
	ExpansionPolicyGuard(n *tree.Node) bool

	RolloutPolicy(n *tree.Node, g game.Game) error
	RolloutPolicyGuard(n *tree.Node) bool

	Phase() Phase
	// Jammed reports that the last TreePolicy gave up waiting for rights.
	Jammed() bool
	// Exhausted reports that this sampler has nothing left to do below the
	// start node, even if the tree is not fully explored.
	Exhausted() bool
	Copy() Sampler
}

// machine is the episode state shared by every sampler. Embedding it gives a
// sampler its guards and a no-op rollout.
type machine struct {
	phase     Phase
	backoff   backoff
	exhausted bool
}

// fresh is a machine for a copied sampler. Only the sleep hook carries over.
func (m *machine) fresh() machine {
	return machine{backoff: backoff{sleep: m.backoff.sleep}}
}

func (m *machine) startEpisode() {
	m.phase = PhaseTreePolicy
}

func (m *machine) finishExpansion(rollout bool) {
	if rollout {
		m.phase = PhaseRolloutPolicy
	} else {
		m.phase = PhaseEpisodeDone
	}
}

func (m *machine) TreePolicyActionDone(*tree.Node) {
	m.phase = PhaseExpansionPolicy
}

func (m *machine) TreePolicyGuard(*tree.Node) bool      { return m.phase > PhaseTreePolicy }
func (m *machine) ExpansionPolicyGuard(*tree.Node) bool { return m.phase > PhaseExpansionPolicy }
func (m *machine) RolloutPolicyGuard(*tree.Node) bool   { return m.phase == PhaseEpisodeDone }

func (m *machine) RolloutPolicy(*tree.Node, game.Game) error {
	m.phase = PhaseEpisodeDone
	return nil
}

func (m *machine) Phase() Phase    { return m.phase }
func (m *machine) Jammed() bool    { return m.backoff.jammed }
func (m *machine) Exhausted() bool { return m.exhausted }

func untried(n *tree.Node) error {
	if n.UntriedCount() == 0 {
		return fmt.Errorf("expanding node at depth %d: %w", n.Depth(), tree.ErrNoUntriedActions)
	}
	return nil
}
