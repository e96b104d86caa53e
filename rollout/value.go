package rollout

import (
	"fmt"

	"qwop/action"
	"qwop/game"
	"qwop/tree"
)

// ValueFunction rolls out by always taking the action a value function rates
// best, then scores the progress made, normalized by the timestep limit.
type ValueFunction struct {
	evaluate     tree.EvaluationFunction
	valueFn      tree.ValueFunction
	generator    action.Generator
	maxTimesteps int
	queue        *action.Queue
}

func NewValueFunction(evaluate tree.EvaluationFunction, valueFn tree.ValueFunction, generator action.Generator, maxTimesteps int) *ValueFunction {
	if generator == nil {
		generator = action.DefaultRolloutGenerator()
	}
	if maxTimesteps == 0 {
		maxTimesteps = DefaultHorizonTimesteps
	}
	return &ValueFunction{
		evaluate:     evaluate,
		valueFn:      valueFn,
		generator:    generator,
		maxTimesteps: maxTimesteps,
		queue:        action.NewQueue(),
	}
}

func (v *ValueFunction) Rollout(start *tree.Node, g game.Game) (float64, error) {
	if v.maxTimesteps < 1 {
		return 0, fmt.Errorf("limit of %d: %w", v.maxTimesteps, ErrTimestepLimit)
	}
	if err := checkStart(start); err != nil {
		return 0, err
	}

	node := start.RolloutNode(v.generator)
	timesteps := 0
	for !g.IsFailed() && timesteps < v.maxTimesteps {
		a, err := v.valueFn.MaximizingAction(node)
		if err != nil {
			return 0, fmt.Errorf("value function rollout at depth %d: %w", node.Depth(), err)
		}

		v.queue.Clear()
		v.queue.AddAction(a)
		for !v.queue.IsEmpty() && !g.IsFailed() && timesteps < v.maxTimesteps {
			cmd, err := v.queue.PollCommand()
			if err != nil {
				return 0, err
			}
			g.Step(cmd)
			timesteps++
		}
		node = node.AddBackwardsLinkedChild(a, g.CurrentState(), v.generator)
	}

	return (v.evaluate.Value(node) - v.evaluate.Value(start)) / (float64(v.maxTimesteps) / 40), nil
}

func (v *ValueFunction) Copy() Policy {
	return NewValueFunction(v.evaluate.Copy(), v.valueFn.Copy(), v.generator, v.maxTimesteps)
}
