package rollout

import (
	"errors"
	"fmt"

	"qwop/action"
	"qwop/game"
	"qwop/tree"
)

var (
	ErrFailedStart   = errors.New("rollout start node has already failed")
	ErrTimestepLimit = errors.New("rollout timestep limit must be at least one")
)

// Policy scores a freshly expanded node by simulating past it. The game must
// already be at the start node's state. Rollouts leave the game wherever the
// simulation ended; callers replay from the root before the next episode.
type Policy interface {
	Rollout(start *tree.Node, g game.Game) (float64, error)
	Copy() Policy
}

// checkStart rejects a tree node that has already failed. Rollout nodes made
// while rolling out may have failed; they are scored where they stand.
func checkStart(start *tree.Node) error {
	if start.IsFailed() && !start.IsBackwardsLinked() {
		return fmt.Errorf("rollout from depth %d: %w", start.Depth(), ErrFailedStart)
	}
	return nil
}

// stepper runs controller-chosen actions on backwards linked rollout nodes.
type stepper struct {
	generator    action.Generator
	controller   tree.Controller
	maxTimesteps int
	queue        *action.Queue
}

func newStepper(generator action.Generator, controller tree.Controller, maxTimesteps int) stepper {
	if generator == nil {
		generator = action.DefaultRolloutGenerator()
	}
	return stepper{
		generator:    generator,
		controller:   controller,
		maxTimesteps: maxTimesteps,
		queue:        action.NewQueue(),
	}
}

func (s stepper) copy() stepper {
	return newStepper(s.generator, s.controller.Copy(), s.maxTimesteps)
}

// simulate continues from start until the runner falls or the timestep limit
// is hit. onStep, when set, sees a single-timestep node before and after every
// physics step. It returns the last rollout node and the timesteps simulated.
func (s stepper) simulate(start *tree.Node, g game.Game, onStep func(t int, before, after *tree.Node)) (*tree.Node, int, error) {
	if s.maxTimesteps < 1 {
		return nil, 0, fmt.Errorf("limit of %d: %w", s.maxTimesteps, ErrTimestepLimit)
	}
	if err := checkStart(start); err != nil {
		return nil, 0, err
	}
	if start.IsFailed() {
		return start, 0, nil
	}

	node := start.RolloutNode(s.generator)
	timesteps := 0
	for !node.IsFailed() && !g.IsFailed() && timesteps < s.maxTimesteps {
		a, err := s.controller.Policy(node)
		if err != nil {
			return nil, timesteps, fmt.Errorf("choosing rollout action at depth %d: %w", node.Depth(), err)
		}

		s.queue.Clear()
		s.queue.AddAction(a)
		before := node
		for !s.queue.IsEmpty() && !g.IsFailed() && timesteps < s.maxTimesteps {
			cmd, err := s.queue.PollCommand()
			if err != nil {
				return nil, timesteps, err
			}
			state := g.Step(cmd)
			if onStep != nil {
				after := before.AddBackwardsLinkedChild(action.New(1, cmd), state, nil)
				onStep(timesteps, before, after)
				before = after
			}
			timesteps++
		}
		node = node.AddBackwardsLinkedChild(a, g.CurrentState(), s.generator)
	}
	return node, timesteps, nil
}
