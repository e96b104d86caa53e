package rollout

import (
	"fmt"

	"qwop/game"
	"qwop/tree"
)

// WeightWithValueFunction blends an inner rollout's score with the value
// function's estimate of the start node: (1-w)*rollout + w*value.
type WeightWithValueFunction struct {
	inner   Policy
	valueFn tree.ValueFunction
	weight  float64
}

func NewWeightWithValueFunction(inner Policy, valueFn tree.ValueFunction, weight float64) *WeightWithValueFunction {
	if weight < 0 || weight > 1 {
		panic(fmt.Sprintf("value function weight must be within [0, 1], got %v", weight))
	}
	return &WeightWithValueFunction{inner: inner, valueFn: valueFn, weight: weight}
}

func (w *WeightWithValueFunction) Rollout(start *tree.Node, g game.Game) (float64, error) {
	// Evaluated first, the inner rollout may move the simulator
	estimate := w.valueFn.Evaluate(start)
	score, err := w.inner.Rollout(start, g)
	if err != nil {
		return 0, err
	}
	return (1-w.weight)*score + w.weight*estimate, nil
}

func (w *WeightWithValueFunction) Copy() Policy {
	return NewWeightWithValueFunction(w.inner.Copy(), w.valueFn.Copy(), w.weight)
}
