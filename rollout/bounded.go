package rollout

import (
	"math"

	"qwop/action"
	"qwop/game"
	"qwop/tree"
)

// scorer is the part of a bounded rollout that differs between variants.
type scorer interface {
	start(n *tree.Node) float64
	accumulate(t int, before, after *tree.Node) float64
	end(n *tree.Node) float64
	final(total float64, start, end *tree.Node, timesteps int) float64
}

// bounded simulates with a controller until failure or a timestep limit and
// lets a scorer turn the trajectory into one number.
type bounded struct {
	stepper
	evaluate tree.EvaluationFunction
	scorer   scorer
	perStep  bool
}

func (b *bounded) Rollout(start *tree.Node, g game.Game) (float64, error) {
	total := b.scorer.start(start)

	var onStep func(int, *tree.Node, *tree.Node)
	if b.perStep {
		onStep = func(t int, before, after *tree.Node) {
			total += b.scorer.accumulate(t, before, after)
		}
	}
	end, timesteps, err := b.simulate(start, g, onStep)
	if err != nil {
		return 0, err
	}

	total += b.scorer.end(end)
	return b.scorer.final(total, start, end, timesteps), nil
}

func failureScale(end *tree.Node, multiplier float64) float64 {
	if end.IsFailed() {
		return multiplier
	}
	return 1
}

// DeltaScore scores the change in evaluation between the start and the end
// of the rollout.
type DeltaScore struct {
	bounded
	FailureMultiplier float64
}

func NewDeltaScore(evaluate tree.EvaluationFunction, generator action.Generator, controller tree.Controller, maxTimesteps int) *DeltaScore {
	d := &DeltaScore{FailureMultiplier: 1}
	d.bounded = bounded{stepper: newStepper(generator, controller, maxTimesteps), evaluate: evaluate, scorer: d}
	return d
}

func (d *DeltaScore) start(n *tree.Node) float64                     { return -d.evaluate.Value(n) }
func (d *DeltaScore) accumulate(int, *tree.Node, *tree.Node) float64 { return 0 }
func (d *DeltaScore) end(n *tree.Node) float64                       { return d.evaluate.Value(n) }

func (d *DeltaScore) final(total float64, _, end *tree.Node, _ int) float64 {
	return failureScale(end, d.FailureMultiplier) * total
}

func (d *DeltaScore) Copy() Policy {
	c := &DeltaScore{FailureMultiplier: d.FailureMultiplier}
	c.bounded = bounded{stepper: d.stepper.copy(), evaluate: d.evaluate.Copy(), scorer: c}
	return c
}

// EndScore scores the evaluation of where the rollout ended.
type EndScore struct {
	bounded
	FailureMultiplier float64
}

func NewEndScore(evaluate tree.EvaluationFunction, generator action.Generator, controller tree.Controller, maxTimesteps int) *EndScore {
	e := &EndScore{FailureMultiplier: 1}
	e.bounded = bounded{stepper: newStepper(generator, controller, maxTimesteps), evaluate: evaluate, scorer: e}
	return e
}

func (e *EndScore) start(*tree.Node) float64                       { return 0 }
func (e *EndScore) accumulate(int, *tree.Node, *tree.Node) float64 { return 0 }
func (e *EndScore) end(n *tree.Node) float64                       { return e.evaluate.Value(n) }

func (e *EndScore) final(total float64, _, end *tree.Node, _ int) float64 {
	return failureScale(end, e.FailureMultiplier) * total
}

func (e *EndScore) Copy() Policy {
	c := &EndScore{FailureMultiplier: e.FailureMultiplier}
	c.bounded = bounded{stepper: e.stepper.copy(), evaluate: e.evaluate.Copy(), scorer: c}
	return c
}

const (
	DefaultHorizonTimesteps = 200
	kernelCenter            = 0.5
	kernelSteepness         = 5.0
)

// DecayingHorizon sums per-timestep progress weighted by an s-curve that fades
// out towards the timestep limit.
type DecayingHorizon struct {
	bounded
}

func NewDecayingHorizon(evaluate tree.EvaluationFunction, generator action.Generator, controller tree.Controller, maxTimesteps int) *DecayingHorizon {
	if maxTimesteps == 0 {
		maxTimesteps = DefaultHorizonTimesteps
	}
	d := &DecayingHorizon{}
	d.bounded = bounded{stepper: newStepper(generator, controller, maxTimesteps), evaluate: evaluate, scorer: d, perStep: true}
	return d
}

// kernel maps [0, 1] to (0, 1), starting near 1 and dropping around the center.
func kernel(x float64) float64 {
	return -0.5*math.Tanh(kernelSteepness*(x-kernelCenter)) + 0.5
}

func (d *DecayingHorizon) start(*tree.Node) float64 { return 0 }

func (d *DecayingHorizon) accumulate(t int, before, after *tree.Node) float64 {
	x := 0.0
	if d.maxTimesteps > 1 {
		x = float64(t) / float64(d.maxTimesteps-1)
	}
	return kernel(x) * (d.evaluate.Value(after) - d.evaluate.Value(before))
}

func (d *DecayingHorizon) end(*tree.Node) float64 { return 0 }

func (d *DecayingHorizon) final(total float64, _, _ *tree.Node, _ int) float64 {
	return total
}

func (d *DecayingHorizon) Copy() Policy {
	c := &DecayingHorizon{}
	c.bounded = bounded{stepper: d.stepper.copy(), evaluate: d.evaluate.Copy(), scorer: c, perStep: true}
	return c
}
