package game

// State is a snapshot of the runner after some number of timesteps.
// Implementations must be immutable once returned by a Game.
type State interface {
	IsFailed() bool
	CenterX() float64
}

// Game is a single simulator instance. It is not safe for concurrent use; every
// worker drives its own.
type Game interface {
	Reset()
	Step(cmd Command) State
	CurrentState() State
	IsFailed() bool
	Timesteps() int
}

// Snapshotter is implemented by simulators that can be forced into a stored
// state without replaying the actions that led there.
type Snapshotter interface {
	SetState(s State) error
}

// Factory creates independent simulator instances, one per worker.
type Factory func() Game
