package action

import (
	"errors"
	"fmt"

	"golang.org/x/exp/rand"

	"qwop/game"
)

var ErrDuplicateAction = errors.New("action already in list")

// List is an ordered set of candidate actions with the distribution used to
// sample among them.
type List struct {
	actions []Action
	dist    Distribution
}

func NewList(dist Distribution, actions ...Action) (*List, error) {
	if dist == nil {
		dist = Equal{}
	}
	l := &List{dist: dist}
	for _, a := range actions {
		if err := l.Add(a); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// MakeList builds a list holding cmd at each of the given durations.
func MakeList(durations []int, cmd game.Command, dist Distribution) (*List, error) {
	actions := make([]Action, len(durations))
	for i, d := range durations {
		actions[i] = New(d, cmd)
	}
	return NewList(dist, actions...)
}

// Range returns the durations [from, to).
func Range(from, to int) []int {
	durations := make([]int, 0, to-from)
	for d := from; d < to; d++ {
		durations = append(durations, d)
	}
	return durations
}

func (l *List) Add(a Action) error {
	if l.Contains(a) {
		return fmt.Errorf("adding %s: %w", a, ErrDuplicateAction)
	}
	l.actions = append(l.actions, a)
	return nil
}

func (l *List) Contains(a Action) bool {
	for _, existing := range l.actions {
		if existing == a {
			return true
		}
	}
	return false
}

func (l *List) Len() int {
	return len(l.actions)
}

func (l *List) Actions() []Action {
	return append([]Action(nil), l.actions...)
}

func (l *List) Distribution() Distribution {
	return l.dist
}

// Random picks uniformly, ignoring the list's distribution.
func (l *List) Random(rng *rand.Rand) (Action, error) {
	return Equal{}.Sample(l.actions, rng)
}

// Sample picks according to the list's distribution.
func (l *List) Sample(rng *rand.Rand) (Action, error) {
	return l.dist.Sample(l.actions, rng)
}
