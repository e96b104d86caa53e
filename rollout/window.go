package rollout

import (
	"fmt"
	"strings"

	"qwop/action"
	"qwop/game"
	"qwop/tree"
)

// Criteria combines the scores of a window of rollouts.
type Criteria int

const (
	Best Criteria = iota
	Worst
	Average
)

func (c Criteria) String() string {
	switch c {
	case Best:
		return "best"
	case Worst:
		return "worst"
	case Average:
		return "average"
	default:
		return fmt.Sprintf("criteria(%d)", int(c))
	}
}

func ParseCriteria(s string) (Criteria, error) {
	switch strings.ToLower(s) {
	case "", "best":
		return Best, nil
	case "worst":
		return Worst, nil
	case "average":
		return Average, nil
	}
	return Best, fmt.Errorf("unknown window criteria %q", s)
}

// Window rolls out the start node and its neighbours whose action lasts one
// timestep longer and, when possible, one shorter, then combines the scores.
// Neighbours are simulated by replaying from the root.
type Window struct {
	individual Policy
	criteria   Criteria
	queue      *action.Queue
}

func NewWindow(individual Policy, criteria Criteria) *Window {
	return &Window{individual: individual, criteria: criteria, queue: action.NewQueue()}
}

func (w *Window) Rollout(start *tree.Node, g game.Game) (float64, error) {
	mid, err := w.individual.Rollout(start, g)
	if err != nil {
		return 0, err
	}
	parent := start.Parent()
	if parent == nil {
		return mid, nil
	}

	middle := start.Action()
	neighbours := []action.Action{action.New(middle.Duration()+1, middle.Peek())}
	if middle.Duration() > 1 {
		neighbours = append(neighbours, action.New(middle.Duration()-1, middle.Peek()))
	}

	scores := []float64{mid}
	for _, a := range neighbours {
		g.Reset()
		w.queue.Clear()
		for _, prior := range parent.Sequence() {
			w.queue.AddAction(prior)
		}
		w.queue.AddAction(a)
		for !w.queue.IsEmpty() {
			cmd, err := w.queue.PollCommand()
			if err != nil {
				return 0, err
			}
			g.Step(cmd)
		}

		neighbour := parent.AddBackwardsLinkedChild(a, g.CurrentState(), nil)
		score, err := w.individual.Rollout(neighbour, g)
		if err != nil {
			return 0, fmt.Errorf("window rollout for %s: %w", a, err)
		}
		scores = append(scores, score)
	}

	return combine(scores, w.criteria), nil
}

func combine(scores []float64, criteria Criteria) float64 {
	result := scores[0]
	switch criteria {
	case Worst:
		for _, s := range scores[1:] {
			result = min(result, s)
		}
	case Average:
		for _, s := range scores[1:] {
			result += s
		}
		result /= float64(len(scores))
	default:
		for _, s := range scores[1:] {
			result = max(result, s)
		}
	}
	return result
}

func (w *Window) Copy() Policy {
	return NewWindow(w.individual.Copy(), w.criteria)
}
