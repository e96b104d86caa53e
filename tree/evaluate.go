package tree

import (
	"fmt"

	"golang.org/x/exp/rand"

	"qwop/action"
	"qwop/game"
)

// EvaluationFunction scores a node from its stored state. It never mutates
// the tree.
type EvaluationFunction interface {
	Value(n *Node) float64
	Copy() EvaluationFunction
}

// EvaluateFunc adapts a plain function.
type EvaluateFunc func(n *Node) float64

func (f EvaluateFunc) Value(n *Node) float64    { return f(n) }
func (f EvaluateFunc) Copy() EvaluationFunction { return f }

// Constant scores every node the same.
type Constant float64

func (c Constant) Value(*Node) float64      { return float64(c) }
func (c Constant) Copy() EvaluationFunction { return c }

// Distance scores a node by how far the runner has travelled.
type Distance struct{}

func (Distance) Value(n *Node) float64 {
	if n.state == nil {
		return 0
	}
	return n.state.CenterX()
}

func (d Distance) Copy() EvaluationFunction { return d }

// Velocity scores a node by distance travelled per timestep.
type Velocity struct{}

func (Velocity) Value(n *Node) float64 {
	if n.state == nil || n.timesteps == 0 {
		return 0
	}
	return n.state.CenterX() / float64(n.timesteps)
}

func (v Velocity) Copy() EvaluationFunction { return v }

// Controller picks the next action to take from a node.
type Controller interface {
	Policy(n *Node) (action.Action, error)
	Copy() Controller
}

// RandomController picks a uniformly random untried action.
type RandomController struct {
	rng *rand.Rand
}

func NewRandomController(seed uint64) *RandomController {
	return &RandomController{rng: rand.New(rand.NewSource(seed))}
}

func (c *RandomController) Policy(n *Node) (action.Action, error) {
	return n.UntriedRandom(c.rng)
}

func (c *RandomController) Copy() Controller {
	return NewRandomController(c.rng.Uint64())
}

// ValueFunction estimates the value of nodes and the action that maximizes it.
type ValueFunction interface {
	MaximizingAction(n *Node) (action.Action, error)
	Evaluate(n *Node) float64
	Copy() ValueFunction
}

// Lookahead is a ValueFunction that tries every untried action of a node on a
// private simulator, cold started at the node's state, and keeps the action
// whose resulting state evaluates best.
type Lookahead struct {
	factory  game.Factory
	game     game.Game
	evaluate EvaluationFunction
	queue    *action.Queue
}

func NewLookahead(factory game.Factory, evaluate EvaluationFunction) (*Lookahead, error) {
	g := factory()
	if _, ok := g.(game.Snapshotter); !ok {
		return nil, fmt.Errorf("lookahead needs a simulator that can restore snapshots, got %T", g)
	}
	return &Lookahead{factory: factory, game: g, evaluate: evaluate, queue: action.NewQueue()}, nil
}

func (l *Lookahead) MaximizingAction(n *Node) (action.Action, error) {
	candidates := n.Untried()
	if len(candidates) == 0 {
		return action.Action{}, ErrNoUntriedActions
	}

	best := candidates[0]
	bestValue := 0.0
	for i, a := range candidates {
		l.game.Reset()
		if n.state != nil {
			if err := l.game.(game.Snapshotter).SetState(n.state); err != nil {
				return action.Action{}, fmt.Errorf("restoring lookahead state: %w", err)
			}
		}
		l.queue.Clear()
		l.queue.AddAction(a)
		for !l.queue.IsEmpty() && !l.game.IsFailed() {
			cmd, err := l.queue.PollCommand()
			if err != nil {
				return action.Action{}, err
			}
			l.game.Step(cmd)
		}

		v := l.evaluate.Value(n.AddBackwardsLinkedChild(a, l.game.CurrentState(), nil))
		if i == 0 || v > bestValue {
			best, bestValue = a, v
		}
	}
	return best, nil
}

func (l *Lookahead) Evaluate(n *Node) float64 {
	return l.evaluate.Value(n)
}

func (l *Lookahead) Copy() ValueFunction {
	return &Lookahead{factory: l.factory, game: l.factory(), evaluate: l.evaluate.Copy(), queue: action.NewQueue()}
}
