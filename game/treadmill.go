package game

import "fmt"

// Treadmill is a deterministic stand-in for the physics simulator. The runner
// moves forward a fixed stride per command and falls once FailAfter timesteps
// have elapsed, or when one command is held for longer than MaxHold
// consecutive timesteps. A zero limit disables that rule.
type Treadmill struct {
	FailAfter int
	MaxHold   int

	state   TreadmillState
	last    Command
	holding int
}

// TreadmillState is the snapshot produced by a Treadmill.
type TreadmillState struct {
	X         float64
	Timesteps int
	Failed    bool
}

func (s TreadmillState) IsFailed() bool   { return s.Failed }
func (s TreadmillState) CenterX() float64 { return s.X }

func NewTreadmill(failAfter, maxHold int) *Treadmill {
	return &Treadmill{FailAfter: failAfter, MaxHold: maxHold}
}

// TreadmillFactory returns a Factory producing identically configured treadmills.
func TreadmillFactory(failAfter, maxHold int) Factory {
	return func() Game {
		return NewTreadmill(failAfter, maxHold)
	}
}

func stride(cmd Command) float64 {
	switch cmd {
	case WO, QP:
		return 1.0
	case None:
		return 0.25
	default:
		return 0.5
	}
}

func (t *Treadmill) Reset() {
	t.state = TreadmillState{}
	t.last = None
	t.holding = 0
}

func (t *Treadmill) Step(cmd Command) State {
	if t.state.Failed {
		return t.state
	}

	if cmd == t.last && t.state.Timesteps > 0 {
		t.holding++
	} else {
		t.holding = 1
	}
	t.last = cmd

	t.state.X += stride(cmd)
	t.state.Timesteps++
	if t.FailAfter > 0 && t.state.Timesteps >= t.FailAfter {
		t.state.Failed = true
	}
	if t.MaxHold > 0 && t.holding > t.MaxHold {
		t.state.Failed = true
	}
	return t.state
}

func (t *Treadmill) CurrentState() State {
	return t.state
}

func (t *Treadmill) IsFailed() bool {
	return t.state.Failed
}

func (t *Treadmill) Timesteps() int {
	return t.state.Timesteps
}

// SetState cold starts the treadmill at a snapshot. Hold tracking restarts.
func (t *Treadmill) SetState(s State) error {
	ts, ok := s.(TreadmillState)
	if !ok {
		return fmt.Errorf("cannot set treadmill to state of type %T", s)
	}
	t.state = ts
	t.last = None
	t.holding = 0
	return nil
}
