package searcher

import (
	"testing"

	"github.com/stretchr/testify/require"

	"qwop/action"
	"qwop/game"
	"qwop/tree"
)

// expandOnce plays one FixedDepth episode by hand, adding a child with the
// given state for each action the sampler picks.
func expandOnce(t *testing.T, f *FixedDepth, start *tree.Node, state game.State) *tree.Node {
	t.Helper()
	n := f.TreePolicy(start)
	require.NotNil(t, n)
	defer n.ReleaseExpansionRights()
	f.TreePolicyActionDone(n)
	for !f.ExpansionPolicyGuard(n) {
		a, err := f.ExpansionPolicy(n)
		require.NoError(t, err)
		child, err := n.AddChild(a, state)
		require.NoError(t, err)
		f.ExpansionPolicyActionDone(child)
		n = child
	}
	return n
}

func TestFixedDepth(t *testing.T) {
	t.Run("stops expanding at the horizon", func(t *testing.T) {
		root := qpRoot(t, 1, 2)
		f := NewFixedDepth(2, nil, nil, 1)

		end := expandOnce(t, f, root, game.TreadmillState{X: 1})
		require.Equal(t, 2, end.Depth())
		require.True(t, f.RolloutPolicyGuard(end), "Nothing to score with")
	})

	t.Run("exhausted once the band is finished", func(t *testing.T) {
		root := qpRoot(t, 1, 2)
		f := NewFixedDepth(1, nil, nil, 1)

		first := expandOnce(t, f, root, game.TreadmillState{X: 1})
		second := expandOnce(t, f, root, game.TreadmillState{X: 2})
		require.NotEqual(t, first.Action(), second.Action())

		require.Nil(t, f.TreePolicy(root))
		require.True(t, f.Exhausted())
		require.False(t, root.IsFullyExplored(), "Children below the horizon are still open")
	})

	t.Run("failures end expansion before the horizon", func(t *testing.T) {
		root := qpRoot(t, 1, 2)
		f := NewFixedDepth(3, nil, nil, 1)

		end := expandOnce(t, f, root, game.TreadmillState{Failed: true})
		require.Equal(t, 1, end.Depth())
	})

	t.Run("scoring failed nodes with the multiplier", func(t *testing.T) {
		root := qpRoot(t, 1)
		f := NewFixedDepth(2, tree.Constant(2), tree.Average{}, 1)
		f.FailureMultiplier = 0.5

		f.TreePolicy(root)
		f.TreePolicyActionDone(root)
		fallen, err := root.AddChild(action.New(1, game.QP), game.TreadmillState{Failed: true})
		require.NoError(t, err)
		f.ExpansionPolicyActionDone(fallen)
		require.False(t, f.RolloutPolicyGuard(fallen))

		require.NoError(t, f.RolloutPolicy(fallen, nil))
		require.True(t, f.RolloutPolicyGuard(fallen))
		require.Equal(t, 1.0, fallen.Value())
		require.Equal(t, int64(1), root.Visits())
	})

	t.Run("copies start with nothing finished", func(t *testing.T) {
		root := qpRoot(t, 1)
		f := NewFixedDepth(1, nil, nil, 1)
		expandOnce(t, f, root, game.TreadmillState{X: 1})

		c := f.Copy().(*FixedDepth)
		require.Empty(t, c.finished)
		require.Equal(t, 1, c.HorizonDepth)
		require.Equal(t, "fixed_depth(1)", c.String())
	})

	t.Run("panics without a horizon", func(t *testing.T) {
		require.Panics(t, func() {
			NewFixedDepth(0, nil, nil, 1)
		})
	})
}
