package action

import (
	"errors"
	"fmt"

	"qwop/game"
)

var (
	ErrEmptyQueue           = errors.New("action queue is empty")
	ErrEmptySequence        = errors.New("cannot add an empty action sequence")
	ErrNothingToConsolidate = errors.New("actions have zero total duration")
)

// Queue flattens a list of actions into a per-timestep command stream. The
// first action added becomes current immediately; each following action is
// loaded when the poll after its predecessor's last timestep happens.
type Queue struct {
	all     []Action
	current *Drain
	pending []*Drain
}

func NewQueue(actions ...Action) *Queue {
	q := &Queue{}
	for _, a := range actions {
		q.AddAction(a)
	}
	return q
}

// AddAction appends a copy of a. Zero-duration actions are ignored.
func (q *Queue) AddAction(a Action) {
	if a.Duration() == 0 {
		return
	}
	q.all = append(q.all, a)
	if q.current == nil {
		q.current = a.Copy()
		return
	}
	q.pending = append(q.pending, a.Copy())
}

func (q *Queue) AddSequence(actions []Action) error {
	if len(actions) == 0 {
		return ErrEmptySequence
	}
	for _, a := range actions {
		q.AddAction(a)
	}
	return nil
}

func (q *Queue) IsEmpty() bool {
	return q.current == nil || (!q.current.HasNext() && len(q.pending) == 0)
}

func (q *Queue) PollCommand() (game.Command, error) {
	if q.IsEmpty() {
		return game.None, ErrEmptyQueue
	}
	if !q.current.HasNext() {
		q.current = q.pending[0]
		q.pending = q.pending[1:]
	}
	return q.current.Poll()
}

// PeekCommand reports the command the next poll would return.
func (q *Queue) PeekCommand() (game.Command, error) {
	if q.IsEmpty() {
		return game.None, ErrEmptyQueue
	}
	if !q.current.HasNext() {
		return q.pending[0].Peek(), nil
	}
	return q.current.Peek(), nil
}

// PeekThisAction returns the action currently being drained.
func (q *Queue) PeekThisAction() (Action, bool) {
	if q.current == nil {
		return Action{}, false
	}
	return q.current.Template(), true
}

// PeekNextAction returns the action queued after the current one.
func (q *Queue) PeekNextAction() (Action, bool) {
	if len(q.pending) == 0 {
		return Action{}, false
	}
	return q.pending[0].Template(), true
}

// CurrentActionIndex is the position, in Actions(), of the action being drained.
func (q *Queue) CurrentActionIndex() (int, error) {
	if q.IsEmpty() {
		return -1, ErrEmptyQueue
	}
	return len(q.all) - len(q.pending) - 1, nil
}

// RemainingTimesteps counts the commands left to poll.
func (q *Queue) RemainingTimesteps() int {
	if q.current == nil {
		return 0
	}
	total := q.current.Remaining()
	for _, d := range q.pending {
		total += d.Remaining()
	}
	return total
}

// TotalTimesteps counts every timestep added in this run, polled or not.
func (q *Queue) TotalTimesteps() int {
	total := 0
	for _, a := range q.all {
		total += a.Duration()
	}
	return total
}

// Actions returns the actions added in this run.
func (q *Queue) Actions() []Action {
	return append([]Action(nil), q.all...)
}

func (q *Queue) Clear() {
	q.all = nil
	q.current = nil
	q.pending = nil
}

// Reset re-queues this run's actions from the beginning.
func (q *Queue) Reset() {
	actions := q.Actions()
	q.Clear()
	for _, a := range actions {
		q.AddAction(a)
	}
}

// Split divides the run's actions at a timestep. The first queue holds the
// first timestep commands and the second the rest; an action straddling the
// boundary is cut in two.
func (q *Queue) Split(timestep int) (*Queue, *Queue, error) {
	total := q.TotalTimesteps()
	if timestep <= 0 || timestep >= total {
		return nil, nil, fmt.Errorf("cannot split a %d timestep queue at %d", total, timestep)
	}

	before, after := NewQueue(), NewQueue()
	elapsed := 0
	for _, a := range q.all {
		switch {
		case elapsed+a.Duration() <= timestep:
			before.AddAction(a)
		case elapsed >= timestep:
			after.AddAction(a)
		default:
			cut := timestep - elapsed
			before.AddAction(New(cut, a.Peek()))
			after.AddAction(New(a.Duration()-cut, a.Peek()))
		}
		elapsed += a.Duration()
	}
	return before, after, nil
}

// Consolidate drops zero-duration actions and merges adjacent actions sharing
// a command into one action with the summed duration.
func Consolidate(actions []Action) ([]Action, error) {
	consolidated := []Action{}
	for _, a := range actions {
		if a.Duration() == 0 {
			continue
		}
		last := len(consolidated) - 1
		if last >= 0 && consolidated[last].Peek() == a.Peek() {
			consolidated[last] = New(consolidated[last].Duration()+a.Duration(), a.Peek())
			continue
		}
		consolidated = append(consolidated, a)
	}

	if len(actions) > 0 && len(consolidated) == 0 {
		return nil, fmt.Errorf("consolidating %d actions: %w", len(actions), ErrNothingToConsolidate)
	}
	return consolidated, nil
}
