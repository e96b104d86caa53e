package rollout

import (
	"fmt"

	"qwop/action"
	"qwop/game"
	"qwop/tree"
)

const DefaultMaxRollouts = 3

// MultiChildren tries up to MaxRollouts evenly spaced untried actions of the
// start node, rolls each one out with the controller and averages the end
// evaluations. Between tries the simulator is cold started at the start
// node's state when it supports snapshots, otherwise replayed from the root.
type MultiChildren struct {
	stepper
	evaluate    tree.EvaluationFunction
	MaxRollouts int
	ColdStart   bool
}

func NewMultiChildren(evaluate tree.EvaluationFunction, generator action.Generator, controller tree.Controller, maxTimesteps int) *MultiChildren {
	return &MultiChildren{
		stepper:     newStepper(generator, controller, maxTimesteps),
		evaluate:    evaluate,
		MaxRollouts: DefaultMaxRollouts,
		ColdStart:   true,
	}
}

func (m *MultiChildren) Rollout(start *tree.Node, g game.Game) (float64, error) {
	if err := checkStart(start); err != nil {
		return 0, err
	}
	untried := start.Untried()
	if len(untried) == 0 {
		return m.evaluate.Value(start), nil
	}

	tries := min(m.MaxRollouts, len(untried))
	total := 0.0
	for i := 0; i < tries; i++ {
		if i > 0 {
			if err := m.restore(start, g); err != nil {
				return 0, err
			}
		}

		a := untried[i*len(untried)/tries]
		m.queue.Clear()
		m.queue.AddAction(a)
		for !m.queue.IsEmpty() && !g.IsFailed() {
			cmd, err := m.queue.PollCommand()
			if err != nil {
				return 0, err
			}
			g.Step(cmd)
		}

		child := start.AddBackwardsLinkedChild(a, g.CurrentState(), nil)
		end, _, err := m.simulate(child, g, nil)
		if err != nil {
			return 0, fmt.Errorf("rolling out untried %s: %w", a, err)
		}
		total += m.evaluate.Value(end)
	}
	return total / float64(tries), nil
}

func (m *MultiChildren) restore(start *tree.Node, g game.Game) error {
	g.Reset()
	if snapshotter, ok := g.(game.Snapshotter); ok && m.ColdStart && start.State() != nil {
		return snapshotter.SetState(start.State())
	}

	m.queue.Clear()
	for _, a := range start.Sequence() {
		m.queue.AddAction(a)
	}
	for !m.queue.IsEmpty() {
		cmd, err := m.queue.PollCommand()
		if err != nil {
			return err
		}
		g.Step(cmd)
	}
	return nil
}

func (m *MultiChildren) Copy() Policy {
	return &MultiChildren{
		stepper:     m.stepper.copy(),
		evaluate:    m.evaluate.Copy(),
		MaxRollouts: m.MaxRollouts,
		ColdStart:   m.ColdStart,
	}
}
