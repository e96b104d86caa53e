package action

import (
	"errors"
	"fmt"

	"qwop/game"
)

var ErrExhausted = errors.New("action has no timesteps remaining")

// Action is a run-length encoded control input: a command held for a number
// of timesteps. Actions are immutable values; equal command and duration means
// equal actions. Use Copy to get something that can be drained.
type Action struct {
	duration int
	command  game.Command
}

func New(duration int, cmd game.Command) Action {
	if duration < 0 {
		panic(fmt.Sprintf("action duration cannot be negative: %d", duration))
	}
	return Action{duration: duration, command: cmd}
}

func (a Action) Duration() int {
	return a.duration
}

// Peek returns the command without consuming anything.
func (a Action) Peek() game.Command {
	return a.command
}

func (a Action) Copy() *Drain {
	return &Drain{Action: a, remaining: a.duration}
}

func (a Action) String() string {
	return fmt.Sprintf("%s:%d", a.command, a.duration)
}

// Drain is a mutable copy of an Action that is consumed one timestep at a time.
type Drain struct {
	Action
	remaining int
}

func (d *Drain) Poll() (game.Command, error) {
	if d.remaining <= 0 {
		return game.None, fmt.Errorf("polling %s: %w", d.Action, ErrExhausted)
	}
	d.remaining--
	return d.command, nil
}

func (d *Drain) HasNext() bool {
	return d.remaining > 0
}

func (d *Drain) Remaining() int {
	return d.remaining
}

func (d *Drain) Template() Action {
	return d.Action
}

func (d *Drain) reset() {
	d.remaining = d.duration
}
