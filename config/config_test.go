package config

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"qwop/action"
	"qwop/game"
	"qwop/rollout"
	"qwop/searcher"
	"qwop/tree"
)

func TestLoad(t *testing.T) {
	t.Run("reading every section", func(t *testing.T) {
		c, err := Load("testdata/search.yaml")
		require.NoError(t, err)

		require.Equal(t, "debug", c.LogLevel)
		require.Equal(t, 4, c.Goroutines)
		require.Equal(t, 500, c.Episodes)
		require.Equal(t, 30*time.Second, c.Duration)
		require.Equal(t, uint64(42), c.Seed)
		require.True(t, c.Metrics)
		require.Equal(t, GameConfig{Type: "treadmill", FailAfter: 120, MaxHold: 40}, c.Game)

		require.Len(t, c.Tree.Lists, 3)
		require.Equal(t, game.None, c.Tree.Lists[0].Command)
		require.Equal(t, game.WO, c.Tree.Lists[1].Command)

		require.Equal(t, "ucb", c.Sampler.Type)
		require.InDelta(t, 0.5, *c.Sampler.ExplorationConstant, 1e-12)
		require.Equal(t, 2, c.Sampler.Updater.N)
		require.Equal(t, "end_score", c.Sampler.Rollout.Inner.Type)
		require.InDelta(t, 0.5, *c.Sampler.Rollout.Inner.FailureMultiplier, 1e-12)
		require.Equal(t, []int{5}, c.Sampler.Rollout.Inner.Generator.Exceptions[0].Durations)

		require.Equal(t, 3, c.Experiment.Trials)
		require.Equal(t, []int{1, 2, 4}, c.Experiment.Goroutines)
		require.Len(t, c.Experiment.Samplers, 3)
	})

	t.Run("filling in defaults", func(t *testing.T) {
		c, err := Parse([]byte("episodes: 10\n"))
		require.NoError(t, err)

		require.Equal(t, "info", c.LogLevel)
		require.Equal(t, 1, c.Goroutines)
		require.NotZero(t, c.Seed)
		require.Equal(t, "treadmill", c.Game.Type)
		require.Equal(t, "random", c.Sampler.Type)
		require.Equal(t, 1, c.Experiment.Trials)
	})

	t.Run("a missing file is an error", func(t *testing.T) {
		_, err := Load("testdata/missing.yaml")
		require.Error(t, err)
	})

	t.Run("unknown keys are an error", func(t *testing.T) {
		_, err := Parse([]byte("episodes: 10\nepisode: 3\n"))
		require.Error(t, err)
	})

	t.Run("a search needs a budget", func(t *testing.T) {
		_, err := Parse([]byte("goroutines: 2\n"))
		require.ErrorIs(t, err, ErrNoBudget)
	})

	t.Run("bad commands are an error", func(t *testing.T) {
		_, err := Parse([]byte("episodes: 1\ntree:\n  lists:\n    - command: XYZ\n"))
		require.Error(t, err)
	})
}

func TestBuild(t *testing.T) {
	factory := game.TreadmillFactory(50, 0)

	t.Run("building every sampler", func(t *testing.T) {
		for _, tc := range []struct {
			config SamplerConfig
			want   string
		}{
			{SamplerConfig{}, "random"},
			{SamplerConfig{Type: "deterministic"}, "deterministic"},
			{SamplerConfig{Type: "distribution"}, "distribution"},
			{SamplerConfig{Type: "ucb"}, "ucb(c=1.000)"},
			{SamplerConfig{Type: "fixed_depth", HorizonDepth: 3}, "fixed_depth(3)"},
			{SamplerConfig{Type: "greedy"}, "greedy"},
		} {
			sampler, err := tc.config.Build(factory, 1)
			require.NoError(t, err)
			require.Equal(t, tc.want, sampler.(interface{ String() string }).String())
		}
	})

	t.Run("unknown types are an error", func(t *testing.T) {
		_, err := SamplerConfig{Type: "mcts"}.Build(factory, 1)
		require.ErrorIs(t, err, ErrUnknownType)

		_, err = SamplerConfig{Type: "ucb", Rollout: RolloutConfig{Type: "forever"}}.Build(factory, 1)
		require.ErrorIs(t, err, ErrUnknownType)

		_, err = EvaluatorConfig{Type: "height"}.Build()
		require.ErrorIs(t, err, ErrUnknownType)

		_, err = UpdaterConfig{Type: "max"}.Build()
		require.ErrorIs(t, err, ErrUnknownType)

		_, err = GameConfig{Type: "qwop"}.GameFactory()
		require.ErrorIs(t, err, ErrUnknownType)
	})

	t.Run("invalid settings are errors instead of panics", func(t *testing.T) {
		_, err := SamplerConfig{Type: "fixed_depth"}.Build(factory, 1)
		require.Error(t, err)

		_, err = UpdaterConfig{Type: "top_n_children"}.Build()
		require.Error(t, err)

		_, err = RolloutConfig{Type: "window"}.Build(factory, 1)
		require.Error(t, err)

		_, err = RolloutConfig{Type: "weighted", Weight: 2, Inner: &RolloutConfig{}}.Build(factory, 1)
		require.Error(t, err)

		_, err = DistributionConfig{Type: "normal", Stdev: -1}.Build()
		require.ErrorIs(t, err, action.ErrNegativeStdev)
	})

	t.Run("building every rollout", func(t *testing.T) {
		inner := &RolloutConfig{Type: "end_score"}
		for _, tc := range []struct {
			config RolloutConfig
			want   rollout.Policy
		}{
			{RolloutConfig{}, &rollout.EndScore{}},
			{RolloutConfig{Type: "delta_score"}, &rollout.DeltaScore{}},
			{RolloutConfig{Type: "decaying_horizon"}, &rollout.DecayingHorizon{}},
			{RolloutConfig{Type: "multi_children"}, &rollout.MultiChildren{}},
			{RolloutConfig{Type: "value_function"}, &rollout.ValueFunction{}},
			{RolloutConfig{Type: "window", Inner: inner}, &rollout.Window{}},
			{RolloutConfig{Type: "weighted", Weight: 0.5, Inner: inner}, &rollout.WeightWithValueFunction{}},
		} {
			policy, err := tc.config.Build(factory, 1)
			require.NoError(t, err)
			require.IsType(t, tc.want, policy)
		}
	})

	t.Run("rollout settings reach the policy", func(t *testing.T) {
		multiplier, coldStart := 0.25, false
		policy, err := RolloutConfig{Type: "end_score", FailureMultiplier: &multiplier}.Build(factory, 1)
		require.NoError(t, err)
		require.Equal(t, 0.25, policy.(*rollout.EndScore).FailureMultiplier)

		policy, err = RolloutConfig{Type: "multi_children", MaxRollouts: 5, ColdStart: &coldStart}.Build(factory, 1)
		require.NoError(t, err)
		require.Equal(t, 5, policy.(*rollout.MultiChildren).MaxRollouts)
		require.False(t, policy.(*rollout.MultiChildren).ColdStart)
	})

	t.Run("building generators", func(t *testing.T) {
		generator, err := GeneratorConfig{}.Build()
		require.NoError(t, err)
		require.Nil(t, generator)

		generator, err = GeneratorConfig{Type: "fixed", Lists: []ListConfig{{Command: game.QP, From: 1, To: 4}}}.Build()
		require.NoError(t, err)
		root := tree.NewRoot(game.TreadmillState{}, generator)
		require.Equal(t, []action.Action{action.New(1, game.QP), action.New(2, game.QP), action.New(3, game.QP)}, root.Untried())

		_, err = GeneratorConfig{Type: "fixed"}.Build()
		require.Error(t, err)

		_, err = GeneratorConfig{Type: "fixed_sequence"}.Build()
		require.Error(t, err)

		_, err = GeneratorConfig{Type: "fixed", Lists: []ListConfig{{Command: game.QP}}}.Build()
		require.Error(t, err, "A list needs durations")
	})

	t.Run("the sample config builds and searches", func(t *testing.T) {
		c, err := Load("testdata/search.yaml")
		require.NoError(t, err)
		c.Episodes = 20
		c.Duration = 0

		root, err := c.Root()
		require.NoError(t, err)
		require.Equal(t, 13+28+28, root.UntriedCount())

		options, err := c.Options()
		require.NoError(t, err)
		metric, err := searcher.NewMCTS(c.Goroutines, options...).Search(context.Background(), root)
		require.NoError(t, err)
		require.LessOrEqual(t, metric.Episodes, 20)
		require.Positive(t, metric.Episodes)
	})
}

func TestInitLogger(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())

	t.Run("using the configured level", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "")
		require.Equal(t, zerolog.WarnLevel, InitLogger("warn"))
		require.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	})

	t.Run("the environment wins", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "error")
		require.Equal(t, zerolog.ErrorLevel, InitLogger("debug"))
	})

	t.Run("falling back to info", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "")
		require.Equal(t, zerolog.InfoLevel, InitLogger("loud"))
		require.Equal(t, zerolog.InfoLevel, InitLogger(""))
	})
}
