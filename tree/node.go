package tree

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/exp/rand"

	"qwop/action"
	"qwop/game"
)

var (
	ErrDuplicateChild   = errors.New("node already has a child for this action")
	ErrNoUntriedActions = errors.New("node has no untried actions")
)

// Node is one reachable runner state in the search tree. The tree is shared by
// every worker: children, untried actions and value are guarded by the node's
// lock, visits and the explored/reserved flags are atomics.
type Node struct {
	mu        sync.RWMutex
	parent    *Node // Non-owning
	action    action.Action
	state     game.State
	depth     int
	timesteps int
	backwards bool

	generator action.Generator
	dist      action.Distribution
	untried   []action.Action
	children  []*Node
	value     float64

	visits        atomic.Int64
	fullyExplored atomic.Bool
	reserved      atomic.Bool
}

// NewRoot creates the root of a tree. The generator is used for every node
// expanded below it.
func NewRoot(state game.State, generator action.Generator) *Node {
	return newNode(nil, action.Action{}, state, generator, false)
}

func newNode(parent *Node, a action.Action, state game.State, generator action.Generator, backwards bool) *Node {
	n := &Node{
		parent:    parent,
		action:    a,
		state:     state,
		generator: generator,
		backwards: backwards,
		dist:      action.Equal{},
	}
	if parent != nil {
		n.depth = parent.depth + 1
		n.timesteps = parent.timesteps + a.Duration()
	}

	// Failed states are terminal
	if state != nil && state.IsFailed() {
		n.fullyExplored.Store(true)
		return n
	}

	if generator != nil {
		if candidates := generator.Candidates(n); candidates != nil {
			n.untried = candidates.Actions()
			n.dist = candidates.Distribution()
		}
	}
	if len(n.untried) == 0 {
		n.fullyExplored.Store(true)
	}
	return n
}

// AddChild expands the node along a. The action is removed from the untried
// set; adding the same action twice is an error.
func (n *Node) AddChild(a action.Action, state game.State) (*Node, error) {
	return n.addChild(a, a.Duration(), state)
}

// AddInterruptedChild expands the node along a when the runner fell after only
// executed timesteps of it. The child keeps a as its action but counts only
// the timesteps that were simulated.
func (n *Node) AddInterruptedChild(a action.Action, executed int, state game.State) (*Node, error) {
	if executed < 0 || executed > a.Duration() {
		return nil, fmt.Errorf("%d executed timesteps of %s", executed, a)
	}
	return n.addChild(a, executed, state)
}

func (n *Node) addChild(a action.Action, executed int, state game.State) (*Node, error) {
	n.mu.Lock()
	for _, child := range n.children {
		if child.action == a {
			n.mu.Unlock()
			return nil, fmt.Errorf("adding %s at depth %d: %w", a, n.depth, ErrDuplicateChild)
		}
	}
	for i, untried := range n.untried {
		if untried == a {
			n.untried = append(n.untried[:i:i], n.untried[i+1:]...)
			break
		}
	}
	child := newNode(n, a, state, n.generator, false)
	child.timesteps = n.timesteps + executed
	n.children = append(n.children, child)
	n.mu.Unlock()

	n.propagateFullyExplored()
	return child, nil
}

// AddBackwardsLinkedChild creates a rollout node. It points at n but n does
// not own it, so it never shows up in Children and never affects n's
// exploration status. With a nil generator the node has no candidates.
func (n *Node) AddBackwardsLinkedChild(a action.Action, state game.State, generator action.Generator) *Node {
	return newNode(n, a, state, generator, true)
}

// RolloutNode is a backwards linked stand-in for n itself, at the same depth,
// whose candidates come from generator instead of the tree's generator.
func (n *Node) RolloutNode(generator action.Generator) *Node {
	standIn := newNode(n.parent, n.action, n.state, generator, true)
	standIn.timesteps = n.timesteps
	return standIn
}

func (n *Node) explored() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if len(n.untried) > 0 {
		return false
	}
	for _, child := range n.children {
		if !child.fullyExplored.Load() {
			return false
		}
	}
	return true
}

// propagateFullyExplored marks nodes fully explored from n upward for as long
// as the invariant holds. Whoever flips a node's flag carries on to its parent.
func (n *Node) propagateFullyExplored() {
	for node := n; node != nil && !node.backwards; node = node.parent {
		if !node.fullyExplored.Load() {
			if !node.explored() || !node.fullyExplored.CompareAndSwap(false, true) {
				return
			}
		}
	}
}

// ReserveExpansionRights locks the node for the caller. It returns true for
// exactly one caller until the rights are released.
func (n *Node) ReserveExpansionRights() bool {
	return n.reserved.CompareAndSwap(false, true)
}

func (n *Node) ReleaseExpansionRights() {
	n.reserved.Store(false)
}

func (n *Node) IsLocked() bool {
	return n.reserved.Load()
}

func (n *Node) IsFullyExplored() bool {
	return n.fullyExplored.Load()
}

func (n *Node) Children() []*Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]*Node(nil), n.children...)
}

func (n *Node) ChildCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.children)
}

func (n *Node) Untried() []action.Action {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]action.Action(nil), n.untried...)
}

func (n *Node) UntriedCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.untried)
}

func (n *Node) UntriedAt(i int) (action.Action, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if i < 0 || i >= len(n.untried) {
		return action.Action{}, fmt.Errorf("untried action %d of %d: %w", i, len(n.untried), ErrNoUntriedActions)
	}
	return n.untried[i], nil
}

// UntriedRandom picks an untried action uniformly. The action stays untried
// until a child is added for it.
func (n *Node) UntriedRandom(rng *rand.Rand) (action.Action, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if len(n.untried) == 0 {
		return action.Action{}, ErrNoUntriedActions
	}
	return n.untried[rng.Intn(len(n.untried))], nil
}

// UntriedOnDistribution picks an untried action with the node's distribution.
func (n *Node) UntriedOnDistribution(rng *rand.Rand) (action.Action, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if len(n.untried) == 0 {
		return action.Action{}, ErrNoUntriedActions
	}
	return n.dist.Sample(n.untried, rng)
}

// Distribution is the distribution attached to the node's candidate actions.
func (n *Node) Distribution() action.Distribution {
	return n.dist
}

// Sequence returns the actions leading from the root to n.
func (n *Node) Sequence() []action.Action {
	seq := make([]action.Action, n.depth)
	for node := n; node.parent != nil; node = node.parent {
		seq[node.depth-1] = node.action
	}
	return seq
}

func (n *Node) Parent() *Node           { return n.parent }
func (n *Node) Action() action.Action   { return n.action }
func (n *Node) State() game.State       { return n.state }
func (n *Node) Depth() int              { return n.depth }
func (n *Node) IsRoot() bool            { return n.parent == nil }
func (n *Node) IsBackwardsLinked() bool { return n.backwards }

// Timesteps is the cumulative duration of the actions from the root.
func (n *Node) Timesteps() int {
	return n.timesteps
}

// IsFailed reports whether the runner has fallen in this node's state.
func (n *Node) IsFailed() bool {
	return n.state != nil && n.state.IsFailed()
}

func (n *Node) Visits() int64 {
	return n.visits.Load()
}

func (n *Node) Value() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.value
}

// UpdateValue folds score into the node's value and counts the visit in one
// critical section.
func (n *Node) UpdateValue(score float64, updater ValueUpdater) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.value = updater.Update(score, n)
	n.visits.Add(1)
}

// Backpropagate updates n and every ancestor up to the root.
func (n *Node) Backpropagate(score float64, updater ValueUpdater) {
	for node := n; node != nil; node = node.parent {
		node.UpdateValue(score, updater)
	}
}

// Walk visits n and its descendants depth first.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, child := range n.Children() {
		child.Walk(fn)
	}
}

// Leaves returns every node below n, inclusive, without children.
func (n *Node) Leaves() []*Node {
	var leaves []*Node
	n.Walk(func(node *Node) {
		if node.ChildCount() == 0 {
			leaves = append(leaves, node)
		}
	})
	return leaves
}

func (n *Node) String() string {
	return fmt.Sprintf("node(depth=%d, action=%s, visits=%d)", n.depth, n.action, n.Visits())
}
