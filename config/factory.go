package config

import (
	"fmt"

	"qwop/action"
	"qwop/game"
	"qwop/rollout"
	"qwop/searcher"
	"qwop/tree"
)

// GameFactory returns a constructor for independent simulators.
func (c GameConfig) GameFactory() (game.Factory, error) {
	switch c.Type {
	case "treadmill":
		return game.TreadmillFactory(c.FailAfter, c.MaxHold), nil
	default:
		return nil, fmt.Errorf("game %q: %w", c.Type, ErrUnknownType)
	}
}

func (c DistributionConfig) Build() (action.Distribution, error) {
	switch c.Type {
	case "", "equal":
		return action.Equal{}, nil
	case "normal":
		return action.NewNormal(c.Mean, c.Stdev)
	default:
		return nil, fmt.Errorf("distribution %q: %w", c.Type, ErrUnknownType)
	}
}

func (c ListConfig) Build() (*action.List, error) {
	dist, err := c.Distribution.Build()
	if err != nil {
		return nil, err
	}
	durations := c.Durations
	if len(durations) == 0 {
		durations = action.Range(c.From, c.To)
	}
	if len(durations) == 0 {
		return nil, fmt.Errorf("action list for %s has no durations", c.Command)
	}
	return action.MakeList(durations, c.Command, dist)
}

func buildLists(configs []ListConfig) ([]*action.List, error) {
	lists := make([]*action.List, len(configs))
	for i, lc := range configs {
		list, err := lc.Build()
		if err != nil {
			return nil, fmt.Errorf("list %d: %w", i, err)
		}
		lists[i] = list
	}
	return lists, nil
}

// Build returns nil for an empty type so the user of the generator can fall
// back to its own default.
func (c GeneratorConfig) Build() (action.Generator, error) {
	switch c.Type {
	case "":
		return nil, nil
	case "default_tree":
		return action.DefaultTreeGenerator(), nil
	case "default_rollout":
		return action.DefaultRolloutGenerator(), nil
	}

	lists, err := buildLists(c.Lists)
	if err != nil {
		return nil, err
	}
	switch c.Type {
	case "fixed":
		if len(lists) != 1 {
			return nil, fmt.Errorf("fixed generator needs exactly one list, got %d", len(lists))
		}
		return action.NewFixed(lists[0]), nil
	case "uniform_no_repeats":
		return action.NewUniformNoRepeats(lists...), nil
	case "fixed_sequence":
		exceptions := make(map[int]*action.List, len(c.Exceptions))
		for depth, lc := range c.Exceptions {
			list, err := lc.Build()
			if err != nil {
				return nil, fmt.Errorf("exception at depth %d: %w", depth, err)
			}
			exceptions[depth] = list
		}
		generator, err := action.NewFixedSequence(lists, exceptions)
		if err != nil {
			return nil, err
		}
		return generator, nil
	default:
		return nil, fmt.Errorf("generator %q: %w", c.Type, ErrUnknownType)
	}
}

func (c EvaluatorConfig) Build() (tree.EvaluationFunction, error) {
	switch c.Type {
	case "", "distance":
		return tree.Distance{}, nil
	case "velocity":
		return tree.Velocity{}, nil
	case "constant":
		return tree.Constant(c.Value), nil
	default:
		return nil, fmt.Errorf("evaluator %q: %w", c.Type, ErrUnknownType)
	}
}

func (c UpdaterConfig) Build() (tree.ValueUpdater, error) {
	switch c.Type {
	case "", "average":
		return tree.Average{}, nil
	case "hard_set":
		return tree.HardSet{}, nil
	case "sum":
		return tree.Sum{}, nil
	case "top_n_children":
		if c.N < 1 {
			return nil, fmt.Errorf("top_n_children updater needs n >= 1, got %d", c.N)
		}
		return tree.NewTopNChildren(c.N), nil
	default:
		return nil, fmt.Errorf("updater %q: %w", c.Type, ErrUnknownType)
	}
}

// Build creates a rollout policy. Simulators for value function lookahead come
// from factory; seed drives the random rollout controller.
func (c RolloutConfig) Build(factory game.Factory, seed uint64) (rollout.Policy, error) {
	evaluate, err := c.Evaluator.Build()
	if err != nil {
		return nil, err
	}
	generator, err := c.Generator.Build()
	if err != nil {
		return nil, err
	}
	controller := tree.NewRandomController(seed)
	multiplier := 1.0
	if c.FailureMultiplier != nil {
		multiplier = *c.FailureMultiplier
	}

	switch c.Type {
	case "", "end_score":
		p := rollout.NewEndScore(evaluate, generator, controller, c.maxTimesteps())
		p.FailureMultiplier = multiplier
		return p, nil
	case "delta_score":
		p := rollout.NewDeltaScore(evaluate, generator, controller, c.maxTimesteps())
		p.FailureMultiplier = multiplier
		return p, nil
	case "decaying_horizon":
		return rollout.NewDecayingHorizon(evaluate, generator, controller, c.MaxTimesteps), nil
	case "multi_children":
		p := rollout.NewMultiChildren(evaluate, generator, controller, c.maxTimesteps())
		if c.MaxRollouts > 0 {
			p.MaxRollouts = c.MaxRollouts
		}
		if c.ColdStart != nil {
			p.ColdStart = *c.ColdStart
		}
		return p, nil
	case "value_function":
		valueFn, err := tree.NewLookahead(factory, evaluate)
		if err != nil {
			return nil, err
		}
		return rollout.NewValueFunction(evaluate, valueFn, generator, c.MaxTimesteps), nil
	case "window", "weighted":
		if c.Inner == nil {
			return nil, fmt.Errorf("%s rollout needs an inner rollout", c.Type)
		}
		inner, err := c.Inner.Build(factory, seed+1)
		if err != nil {
			return nil, fmt.Errorf("inner rollout: %w", err)
		}
		if c.Type == "window" {
			criteria, err := rollout.ParseCriteria(c.Criteria)
			if err != nil {
				return nil, err
			}
			return rollout.NewWindow(inner, criteria), nil
		}
		if c.Weight < 0 || c.Weight > 1 {
			return nil, fmt.Errorf("weighted rollout needs a weight within [0, 1], got %v", c.Weight)
		}
		valueFn, err := tree.NewLookahead(factory, evaluate)
		if err != nil {
			return nil, err
		}
		return rollout.NewWeightWithValueFunction(inner, valueFn, c.Weight), nil
	default:
		return nil, fmt.Errorf("rollout %q: %w", c.Type, ErrUnknownType)
	}
}

const defaultRolloutTimesteps = 40

func (c RolloutConfig) maxTimesteps() int {
	if c.MaxTimesteps == 0 {
		return defaultRolloutTimesteps
	}
	return c.MaxTimesteps
}

// Build creates the prototype sampler that every worker copies.
func (c SamplerConfig) Build(factory game.Factory, seed uint64) (searcher.Sampler, error) {
	switch c.Type {
	case "", "random":
		return searcher.NewRandom(seed), nil
	case "deterministic":
		return searcher.NewDeterministic(), nil
	case "distribution":
		return searcher.NewDistribution(seed), nil
	}

	evaluate, err := c.Evaluator.Build()
	if err != nil {
		return nil, err
	}
	updater, err := c.Updater.Build()
	if err != nil {
		return nil, err
	}

	switch c.Type {
	case "ucb":
		policy, err := c.Rollout.Build(factory, seed+1)
		if err != nil {
			return nil, fmt.Errorf("ucb rollout: %w", err)
		}
		constant := searcher.ExplorationConstant
		if c.ExplorationConstant != nil {
			constant = *c.ExplorationConstant
		}
		return searcher.NewUCB(evaluate, policy, updater, constant, c.ExplorationRandomFactor, seed), nil
	case "fixed_depth":
		if c.HorizonDepth < 1 {
			return nil, fmt.Errorf("fixed_depth sampler needs horizon_depth >= 1, got %d", c.HorizonDepth)
		}
		f := searcher.NewFixedDepth(c.HorizonDepth, evaluate, updater, seed)
		if c.FailureMultiplier != nil {
			f.FailureMultiplier = *c.FailureMultiplier
		}
		return f, nil
	case "greedy":
		g := searcher.NewGreedy(evaluate, seed)
		if c.FailureMultiplier != nil {
			g.BackwardsJumpFailureMultiplier = *c.FailureMultiplier
		}
		return g, nil
	default:
		return nil, fmt.Errorf("sampler %q: %w", c.Type, ErrUnknownType)
	}
}

// Options turns the configuration into searcher options, including a sampler
// built from c.Sampler.
func (c *Config) Options() ([]searcher.Option, error) {
	return c.OptionsWith(c.Sampler)
}

// OptionsWith is Options with another sampler, for experiment sweeps.
func (c *Config) OptionsWith(sc SamplerConfig) ([]searcher.Option, error) {
	factory, err := c.Game.GameFactory()
	if err != nil {
		return nil, err
	}
	sampler, err := sc.Build(factory, c.Seed)
	if err != nil {
		return nil, err
	}
	options := []searcher.Option{
		searcher.WithGame(factory),
		searcher.WithSampler(sampler),
		searcher.WithEpisodes(c.Episodes),
		searcher.WithDuration(c.Duration),
		searcher.WithSeed(c.Seed),
	}
	if c.Metrics {
		options = append(options, searcher.WithMetrics())
	}
	return options, nil
}

// Root creates an empty tree at the simulator's initial state. Without a tree
// generator the default one is used.
func (c *Config) Root() (*tree.Node, error) {
	factory, err := c.Game.GameFactory()
	if err != nil {
		return nil, err
	}
	generator, err := c.Tree.Build()
	if err != nil {
		return nil, fmt.Errorf("tree generator: %w", err)
	}
	if generator == nil {
		generator = action.DefaultTreeGenerator()
	}
	g := factory()
	g.Reset()
	return tree.NewRoot(g.CurrentState(), generator), nil
}
