package searcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"qwop/action"
	"qwop/experiments/metrics"
	"qwop/game"
)

func claimAll() bool { return true }

func TestWorker(t *testing.T) {
	t.Run("one episode ends in a failed leaf", func(t *testing.T) {
		root := qpRoot(t, 4)
		collector := metrics.NewCollector()
		collector.Start(1, "deterministic")
		w := NewWorker(0, NewDeterministic(), game.NewTreadmill(10, 0), root, collector)

		claimed := 0
		err := w.Run(context.Background(), func() bool {
			claimed++
			return claimed <= 1
		})
		require.NoError(t, err)
		require.Equal(t, StatusIdle, w.Status())
		require.Equal(t, int64(1), w.Games())
		require.Equal(t, int64(10), w.Timesteps())

		leaf := root.Leaves()[0]
		require.Equal(t, 3, leaf.Depth(), "4 + 4 + 2 of 4")
		require.Equal(t, 10, leaf.Timesteps())
		require.False(t, root.IsLocked())
		require.False(t, leaf.Parent().IsLocked())

		metric := collector.Complete()
		require.Equal(t, 1, metric.Episodes)
		require.Equal(t, 10, metric.Timesteps)
	})

	t.Run("falling while replaying the tree is an error", func(t *testing.T) {
		root := qpRoot(t, 8)
		// Recorded by a simulator that lasts longer than this worker's
		_, err := root.AddChild(action.New(8, game.QP), game.TreadmillState{X: 8, Timesteps: 8})
		require.NoError(t, err)

		w := NewWorker(0, NewRandom(1), game.NewTreadmill(5, 0), root, nil)
		err = w.Run(context.Background(), claimAll)
		require.ErrorIs(t, err, errTreePolicyFailure)
		require.False(t, root.Children()[0].IsLocked(), "Rights are released on the way out")
	})

	t.Run("an exhausted sampler stops the worker", func(t *testing.T) {
		root := qpRoot(t, 1)
		f := NewFixedDepth(1, nil, nil, 1)
		w := NewWorker(0, f, game.NewTreadmill(0, 0), root, nil)

		require.NoError(t, w.Run(context.Background(), claimAll))
		require.Equal(t, int64(1), w.Games())
		require.True(t, f.Exhausted())
	})

	t.Run("naming statuses", func(t *testing.T) {
		require.Equal(t, "tree_policy_executing", StatusTreePolicyExecuting.String())
		require.Equal(t, "status(42)", Status(42).String())
	})
}
