package action

import (
	"errors"
	"fmt"

	"qwop/game"
)

// Branch is the part of a tree node a Generator looks at.
type Branch interface {
	Depth() int
	Action() Action
}

// Generator produces the candidate actions for the children of a node. It is
// called once per node, at creation.
type Generator interface {
	Candidates(b Branch) *List
}

// Fixed offers the same candidates everywhere.
type Fixed struct {
	list *List
}

func NewFixed(list *List) *Fixed {
	return &Fixed{list: list}
}

func (f *Fixed) Candidates(Branch) *List {
	return f.list
}

// FixedSequence cycles through a list per tree depth, with optional per-depth
// exceptions.
type FixedSequence struct {
	repeated   []*List
	exceptions map[int]*List
}

func NewFixedSequence(repeated []*List, exceptions map[int]*List) (*FixedSequence, error) {
	if len(repeated) == 0 {
		return nil, errors.New("fixed sequence generator needs at least one repeated action list")
	}
	return &FixedSequence{repeated: repeated, exceptions: exceptions}, nil
}

func (f *FixedSequence) Candidates(b Branch) *List {
	depth := b.Depth()
	if list, ok := f.exceptions[depth]; ok {
		return list
	}
	return f.repeated[depth%len(f.repeated)]
}

// UniformNoRepeats offers every list except the one the branch's own action
// came from, so consecutive actions never share a command list. The merged
// candidates are sampled uniformly.
type UniformNoRepeats struct {
	lists []*List
}

func NewUniformNoRepeats(lists ...*List) *UniformNoRepeats {
	return &UniformNoRepeats{lists: lists}
}

func (u *UniformNoRepeats) Candidates(b Branch) *List {
	merged := &List{dist: Equal{}}
	for _, list := range u.lists {
		if b.Depth() > 0 && list.Contains(b.Action()) {
			continue
		}
		for _, a := range list.actions {
			if !merged.Contains(a) {
				merged.actions = append(merged.actions, a)
			}
		}
	}
	return merged
}

// DefaultTreeGenerator alternates between command families with uniformly
// sampled durations.
func DefaultTreeGenerator() *UniformNoRepeats {
	families := []struct {
		cmd      game.Command
		from, to int
	}{
		{game.None, 2, 15},
		{game.Q, 2, 10},
		{game.QP, 2, 30},
		{game.W, 2, 10},
		{game.WO, 2, 30},
		{game.O, 2, 10},
	}

	lists := make([]*List, 0, len(families))
	for _, f := range families {
		list, err := MakeList(Range(f.from, f.to), f.cmd, Equal{})
		if err != nil {
			panic(fmt.Sprintf("building default tree generator: %v", err))
		}
		lists = append(lists, list)
	}
	return NewUniformNoRepeats(lists...)
}

// DefaultRolloutGenerator follows the gait cycle none, WO, none, QP with
// normally distributed durations.
func DefaultRolloutGenerator() *FixedSequence {
	cycle := []struct {
		cmd          game.Command
		from, to     int
		mean, stdDev float64
	}{
		{game.None, 2, 20, 12, 5},
		{game.WO, 15, 30, 20, 5},
		{game.None, 2, 20, 12, 5},
		{game.QP, 15, 30, 20, 5},
	}

	lists := make([]*List, 0, len(cycle))
	for _, c := range cycle {
		list, err := MakeList(Range(c.from, c.to), c.cmd, Normal{Mean: c.mean, Stdev: c.stdDev})
		if err != nil {
			panic(fmt.Sprintf("building default rollout generator: %v", err))
		}
		lists = append(lists, list)
	}
	generator, err := NewFixedSequence(lists, nil)
	if err != nil {
		panic(err)
	}
	return generator
}
