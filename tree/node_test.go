package tree

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"qwop/action"
	"qwop/game"
)

/**
Node bookkeeping:
- expansion: child added, action leaves the untried set, duplicates rejected
- full exploration: failed children are terminal, status climbs while the
  invariant holds, never reverts
- concurrency: one winner per reservation, no lost backpropagation updates
*/

var (
	alive  = game.TreadmillState{X: 1}
	fallen = game.TreadmillState{X: 1, Failed: true}
)

func fixedGenerator(t *testing.T, actions ...action.Action) action.Generator {
	t.Helper()
	list, err := action.NewList(action.Equal{}, actions...)
	require.NoError(t, err)
	return action.NewFixed(list)
}

func TestNodeAddChild(t *testing.T) {
	a1, a2 := action.New(2, game.QP), action.New(3, game.WO)

	t.Run("adding a child consumes the untried action", func(t *testing.T) {
		root := NewRoot(alive, fixedGenerator(t, a1, a2))
		require.Equal(t, 2, root.UntriedCount())

		child, err := root.AddChild(a1, alive)
		require.NoError(t, err)

		require.Equal(t, []action.Action{a2}, root.Untried())
		require.Equal(t, []*Node{child}, root.Children())
		require.Equal(t, root, child.Parent())
		require.Equal(t, 1, child.Depth())
		require.Equal(t, 2, child.Timesteps())
		require.Equal(t, 2, child.UntriedCount(), "Child should get its own candidates")
	})

	t.Run("adding the same action twice errors", func(t *testing.T) {
		root := NewRoot(alive, fixedGenerator(t, a1, a2))
		_, err := root.AddChild(a1, alive)
		require.NoError(t, err)

		_, err = root.AddChild(a1, alive)
		require.ErrorIs(t, err, ErrDuplicateChild)
		require.Equal(t, 1, root.ChildCount())
	})

	t.Run("sequence and cumulative timesteps follow the path", func(t *testing.T) {
		root := NewRoot(alive, fixedGenerator(t, a1, a2))
		n1, err := root.AddChild(a2, alive)
		require.NoError(t, err)
		n2, err := n1.AddChild(a1, alive)
		require.NoError(t, err)

		require.Equal(t, []action.Action{a2, a1}, n2.Sequence())
		require.Empty(t, root.Sequence())
		require.Equal(t, 5, n2.Timesteps())
		require.Equal(t, 2, n2.Depth())
	})

	t.Run("interrupted children count only simulated timesteps", func(t *testing.T) {
		root := NewRoot(alive, fixedGenerator(t, a1, a2))
		child, err := root.AddInterruptedChild(a2, 1, fallen)
		require.NoError(t, err)

		require.Equal(t, a2, child.Action())
		require.Equal(t, 1, child.Timesteps())
		require.Equal(t, []action.Action{a1}, root.Untried())

		_, err = root.AddInterruptedChild(a1, 3, fallen)
		require.Error(t, err, "Cannot execute more than the action's duration")
	})

	t.Run("backwards linked children are not owned", func(t *testing.T) {
		root := NewRoot(alive, fixedGenerator(t, a1))
		rollout := root.AddBackwardsLinkedChild(a1, fallen, nil)

		require.Equal(t, root, rollout.Parent())
		require.True(t, rollout.IsBackwardsLinked())
		require.Equal(t, 0, root.ChildCount())
		require.Equal(t, 1, root.UntriedCount(), "Rollout nodes should not consume untried actions")
		require.False(t, root.IsFullyExplored())
	})

	t.Run("rollout stand-ins keep depth and timesteps", func(t *testing.T) {
		root := NewRoot(alive, fixedGenerator(t, a1, a2))
		child, err := root.AddChild(a2, alive)
		require.NoError(t, err)

		standIn := child.RolloutNode(fixedGenerator(t, a1))
		require.Equal(t, child.Depth(), standIn.Depth())
		require.Equal(t, child.Timesteps(), standIn.Timesteps())
		require.Equal(t, []action.Action{a1}, standIn.Untried())
		require.Equal(t, 1, root.ChildCount())
	})
}

func TestNodeFullyExplored(t *testing.T) {
	a1, a2 := action.New(1, game.Q), action.New(1, game.P)

	t.Run("failed nodes are fully explored immediately", func(t *testing.T) {
		root := NewRoot(alive, fixedGenerator(t, a1, a2))
		child, err := root.AddChild(a1, fallen)
		require.NoError(t, err)

		require.True(t, child.IsFailed())
		require.True(t, child.IsFullyExplored())
		require.Zero(t, child.UntriedCount())
		require.False(t, root.IsFullyExplored(), "Root still has an untried action")
	})

	t.Run("status propagates once every child is exhausted", func(t *testing.T) {
		root := NewRoot(alive, fixedGenerator(t, a1, a2))
		n1, err := root.AddChild(a1, alive)
		require.NoError(t, err)
		_, err = root.AddChild(a2, fallen)
		require.NoError(t, err)
		require.False(t, root.IsFullyExplored(), "n1 is still open")

		_, err = n1.AddChild(a1, fallen)
		require.NoError(t, err)
		require.False(t, n1.IsFullyExplored())
		_, err = n1.AddChild(a2, fallen)
		require.NoError(t, err)

		require.True(t, n1.IsFullyExplored())
		require.True(t, root.IsFullyExplored(), "Status should climb to the root")
	})

	t.Run("status never reverts", func(t *testing.T) {
		root := NewRoot(alive, fixedGenerator(t, a1))
		_, err := root.AddChild(a1, fallen)
		require.NoError(t, err)
		require.True(t, root.IsFullyExplored())

		// Extra children off the candidate list cannot reopen the node
		_, err = root.AddChild(a2, alive)
		require.NoError(t, err)
		require.True(t, root.IsFullyExplored())
		root.propagateFullyExplored()
		require.True(t, root.IsFullyExplored())
	})

	t.Run("nodes without candidates are fully explored", func(t *testing.T) {
		root := NewRoot(alive, nil)
		require.True(t, root.IsFullyExplored())
	})

	t.Run("concurrent expansion of siblings marks the parent", func(t *testing.T) {
		actions := make([]action.Action, 64)
		for i := range actions {
			actions[i] = action.New(i+1, game.QP)
		}
		root := NewRoot(alive, fixedGenerator(t, actions...))

		var wg sync.WaitGroup
		for _, a := range actions {
			wg.Add(1)
			go func(a action.Action) {
				defer wg.Done()
				_, err := root.AddChild(a, fallen)
				require.NoError(t, err)
			}(a)
		}
		wg.Wait()

		require.Equal(t, 64, root.ChildCount())
		require.True(t, root.IsFullyExplored())
	})
}

func TestNodeExpansionRights(t *testing.T) {
	t.Run("exactly one concurrent reservation wins", func(t *testing.T) {
		for trial := 0; trial < 20; trial++ {
			node := NewRoot(alive, nil)
			var wg sync.WaitGroup
			var mu sync.Mutex
			winners := 0
			for i := 0; i < 32; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if node.ReserveExpansionRights() {
						mu.Lock()
						winners++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			require.Equal(t, 1, winners)
			require.True(t, node.IsLocked())
		}
	})

	t.Run("released rights can be reserved again", func(t *testing.T) {
		node := NewRoot(alive, nil)
		require.True(t, node.ReserveExpansionRights())
		require.False(t, node.ReserveExpansionRights())
		node.ReleaseExpansionRights()
		require.False(t, node.IsLocked())
		require.True(t, node.ReserveExpansionRights())
	})
}

func TestNodeUntried(t *testing.T) {
	a1, a2 := action.New(1, game.Q), action.New(2, game.Q)
	rng := rand.New(rand.NewSource(5))

	t.Run("sampling untried actions does not consume them", func(t *testing.T) {
		root := NewRoot(alive, fixedGenerator(t, a1, a2))
		for i := 0; i < 10; i++ {
			a, err := root.UntriedRandom(rng)
			require.NoError(t, err)
			require.Contains(t, []action.Action{a1, a2}, a)
			a, err = root.UntriedOnDistribution(rng)
			require.NoError(t, err)
			require.Contains(t, []action.Action{a1, a2}, a)
		}
		require.Equal(t, 2, root.UntriedCount())
	})

	t.Run("sampling with nothing untried errors", func(t *testing.T) {
		root := NewRoot(fallen, fixedGenerator(t, a1))
		_, err := root.UntriedRandom(rng)
		require.ErrorIs(t, err, ErrNoUntriedActions)
		_, err = root.UntriedAt(0)
		require.ErrorIs(t, err, ErrNoUntriedActions)
	})
}

func TestNodeBackpropagate(t *testing.T) {
	a1, a2 := action.New(1, game.Q), action.New(1, game.P)

	t.Run("averaging along the path to the root", func(t *testing.T) {
		root := NewRoot(alive, fixedGenerator(t, a1, a2))
		n1, _ := root.AddChild(a1, alive)
		n2, _ := root.AddChild(a2, alive)

		n1.Backpropagate(4, Average{})
		n2.Backpropagate(2, Average{})
		n1.Backpropagate(6, Average{})

		require.Equal(t, int64(3), root.Visits())
		require.InDelta(t, 4.0, root.Value(), 1e-9)
		require.Equal(t, int64(2), n1.Visits())
		require.InDelta(t, 5.0, n1.Value(), 1e-9)
		require.Equal(t, int64(1), n2.Visits())
	})

	t.Run("concurrent sums are conserved", func(t *testing.T) {
		root := NewRoot(alive, fixedGenerator(t, a1, a2))
		left, _ := root.AddChild(a1, alive)
		right, _ := root.AddChild(a2, alive)
		leftLeaf, _ := left.AddChild(a1, alive)
		rightLeaf, _ := right.AddChild(a2, alive)

		const rollouts = 400
		leaves := []*Node{leftLeaf, rightLeaf, left}
		var wg sync.WaitGroup
		for i := 0; i < rollouts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				leaves[i%len(leaves)].Backpropagate(float64(i%7)+0.5, Sum{})
			}(i)
		}
		wg.Wait()

		expected := map[*Node]struct {
			visits int64
			sum    float64
		}{}
		for i := 0; i < rollouts; i++ {
			score := float64(i%7) + 0.5
			for n := leaves[i%len(leaves)]; n != nil; n = n.Parent() {
				e := expected[n]
				e.visits++
				e.sum += score
				expected[n] = e
			}
		}

		for n, e := range expected {
			require.Equal(t, e.visits, n.Visits(), "visits at %s", n)
			require.InDelta(t, e.sum, n.Value(), 1e-6, "sum at %s", n)
		}
		require.Equal(t, int64(rollouts), root.Visits())
	})

	t.Run("hard set keeps the latest score", func(t *testing.T) {
		root := NewRoot(alive, nil)
		root.UpdateValue(3, HardSet{})
		root.UpdateValue(-1, HardSet{})
		require.InDelta(t, -1.0, root.Value(), 1e-9)
		require.Equal(t, int64(2), root.Visits())
	})
}

func TestTopNChildren(t *testing.T) {
	actions := []action.Action{
		action.New(1, game.Q), action.New(2, game.Q), action.New(3, game.Q),
		action.New(4, game.Q), action.New(5, game.W|game.P),
	}
	root := NewRoot(alive, fixedGenerator(t, actions...))
	nodes := make([]*Node, len(actions))
	for i, a := range actions {
		nodes[i], _ = root.AddChild(a, alive)
	}
	n11, _ := nodes[0].AddChild(actions[0], alive)
	n12, _ := nodes[0].AddChild(actions[1], alive)

	cases := []struct {
		n        int
		expected float64
		root     float64
	}{
		{1, 4, 9},
		{2, 3, 8},
		{3, 3, 22.0 / 3},
	}
	for _, c := range cases {
		updater := NewTopNChildren(c.n)
		n11.UpdateValue(2, updater)
		n12.UpdateValue(4, updater)
		for i, v := range []float64{6, 1, 7, 9} {
			nodes[i+1].UpdateValue(v, updater)
		}
		require.InDelta(t, 2.0, n11.Value(), 1e-9, "Leaves take the update value")
		require.InDelta(t, 9.0, nodes[4].Value(), 1e-9)

		nodes[0].UpdateValue(1010101, updater)
		require.InDelta(t, c.expected, nodes[0].Value(), 1e-9, "N=%d", c.n)

		root.UpdateValue(22, updater)
		require.InDelta(t, c.root, root.Value(), 1e-9, "N=%d", c.n)
	}

	require.Panics(t, func() { NewTopNChildren(0) })
}

func TestEvaluationFunctions(t *testing.T) {
	a := action.New(4, game.QP)
	root := NewRoot(game.TreadmillState{}, fixedGenerator(t, a))
	child, _ := root.AddChild(a, game.TreadmillState{X: 3, Timesteps: 4})

	require.InDelta(t, 3.0, Distance{}.Value(child), 1e-9)
	require.InDelta(t, 0.75, Velocity{}.Value(child), 1e-9)
	require.InDelta(t, 0.0, Velocity{}.Value(root), 1e-9, "No timesteps means no velocity")
	require.InDelta(t, 2.5, Constant(2.5).Copy().Value(child), 1e-9)
	require.InDelta(t, 4.0, EvaluateFunc(func(n *Node) float64 { return float64(n.Timesteps()) }).Value(child), 1e-9)
}

func TestLookahead(t *testing.T) {
	t.Run("picking the action that travels furthest", func(t *testing.T) {
		slow, fast := action.New(2, game.None), action.New(2, game.QP)
		root := NewRoot(game.TreadmillState{}, fixedGenerator(t, slow, fast))

		vf, err := NewLookahead(game.TreadmillFactory(0, 0), Distance{})
		require.NoError(t, err)

		got, err := vf.MaximizingAction(root)
		require.NoError(t, err)
		require.Equal(t, fast, got)
		require.Equal(t, 0, root.ChildCount(), "Lookahead should not grow the tree")

		got, err = vf.Copy().MaximizingAction(root)
		require.NoError(t, err)
		require.Equal(t, fast, got, "Copies should agree")
	})

	t.Run("rejecting simulators without snapshots", func(t *testing.T) {
		_, err := NewLookahead(func() game.Game { return noSnapshots{} }, Distance{})
		require.Error(t, err)
	})
}

type noSnapshots struct{}

func (noSnapshots) Reset()                       {}
func (noSnapshots) Step(game.Command) game.State { return alive }
func (noSnapshots) CurrentState() game.State     { return alive }
func (noSnapshots) IsFailed() bool               { return false }
func (noSnapshots) Timesteps() int               { return 0 }

func TestRandomController(t *testing.T) {
	a1, a2 := action.New(1, game.Q), action.New(2, game.Q)
	root := NewRoot(alive, fixedGenerator(t, a1, a2))
	c := NewRandomController(1)
	copied := c.Copy()

	for _, ctrl := range []Controller{c, copied} {
		a, err := ctrl.Policy(root)
		require.NoError(t, err)
		require.Contains(t, []action.Action{a1, a2}, a)
	}
}
