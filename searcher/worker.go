package searcher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"qwop/action"
	"qwop/experiments/metrics"
	"qwop/game"
	"qwop/tree"
)

var errTreePolicyFailure = errors.New("runner fell while replaying the tree policy")

// Status is the state of a worker's finite state machine.
type Status int

const (
	StatusIdle Status = iota
	StatusInitialize
	StatusTreePolicyChoosing
	StatusTreePolicyExecuting
	StatusExpansionPolicyChoosing
	StatusExpansionPolicyExecuting
	StatusRolloutPolicy
	StatusEvaluateGame
)

var statusNames = [...]string{
	"idle",
	"initialize",
	"tree_policy_choosing",
	"tree_policy_executing",
	"expansion_policy_choosing",
	"expansion_policy_executing",
	"rollout_policy",
	"evaluate_game",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Worker drives one simulator through episodes on a shared tree. Physics runs
// one timestep per tick so a run can be cancelled between any two steps.
type Worker struct {
	id      int
	sampler Sampler
	game    game.Game
	root    *tree.Node
	metrics metrics.Collector

	status       Status
	queue        *action.Queue
	current      *tree.Node // Node the simulator is at
	target       *tree.Node
	targetAction action.Action
	held         *tree.Node // Node whose expansion rights this worker holds
	stopped      bool

	games     atomic.Int64
	timesteps atomic.Int64
}

func NewWorker(id int, sampler Sampler, g game.Game, root *tree.Node, collector metrics.Collector) *Worker {
	if collector == nil {
		collector = metrics.NewDummyCollector()
	}
	return &Worker{
		id:      id,
		sampler: sampler,
		game:    g,
		root:    root,
		metrics: collector,
		queue:   action.NewQueue(),
	}
}

func (w *Worker) Status() Status   { return w.status }
func (w *Worker) Games() int64     { return w.games.Load() }
func (w *Worker) Timesteps() int64 { return w.timesteps.Load() }

// Run repeats episodes until the context is done, claim refuses another
// episode, the root is fully explored or the sampler has nothing left.
// A jammed sampler ends the run with ErrJammed.
func (w *Worker) Run(ctx context.Context, claim func() bool) error {
	defer w.release()

	for {
		if w.status == StatusIdle {
			if w.stopped || ctx.Err() != nil || w.root.IsFullyExplored() || !claim() {
				return nil
			}
		} else if ctx.Err() != nil {
			return nil
		}

		if err := w.tick(); err != nil {
			log.Error().Err(err).Int("worker", w.id).Stringer("status", w.status).Msg("worker stopped")
			return err
		}
	}
}

func (w *Worker) changeStatus(status Status) {
	log.Trace().Int("worker", w.id).Stringer("from", w.status).Stringer("to", status).Int64("games", w.games.Load()).Msg("status")
	w.status = status
}

func (w *Worker) tick() error {
	switch w.status {
	case StatusIdle:
		w.changeStatus(StatusInitialize)

	case StatusInitialize:
		w.queue.Clear()
		w.game.Reset()
		w.current = w.root
		w.changeStatus(StatusTreePolicyChoosing)

	case StatusTreePolicyChoosing:
		if w.game.IsFailed() {
			return fmt.Errorf("choosing tree policy at depth %d: %w", w.current.Depth(), errTreePolicyFailure)
		}

		target := w.sampler.TreePolicy(w.current)
		if target == nil {
			if w.sampler.Jammed() {
				return fmt.Errorf("worker %d: %w", w.id, ErrJammed)
			}
			if w.sampler.Exhausted() {
				w.stopped = true
			}
			w.changeStatus(StatusIdle)
			return nil
		}

		w.held = target
		w.target = target
		w.queue.Clear()
		if target.Depth() > 0 {
			if err := w.queue.AddSequence(target.Sequence()); err != nil {
				return err
			}
		}
		w.changeStatus(StatusTreePolicyExecuting)

	case StatusTreePolicyExecuting:
		if err := w.executeNext(); err != nil {
			return err
		}
		if w.game.IsFailed() {
			return fmt.Errorf("replaying to depth %d: %w", w.target.Depth(), errTreePolicyFailure)
		}
		if !w.queue.IsEmpty() {
			return nil
		}

		w.current = w.target
		if w.current.UntriedCount() == 0 {
			// Only the rights holder expands, so nothing should have been
			// taken from under us; start over rather than expand nothing
			log.Debug().Int("worker", w.id).Int("depth", w.current.Depth()).Msg("tree policy target has nothing untried")
			w.release()
			w.changeStatus(StatusInitialize)
			return nil
		}
		w.sampler.TreePolicyActionDone(w.current)
		if w.sampler.TreePolicyGuard(w.current) {
			w.changeStatus(StatusExpansionPolicyChoosing)
		} else {
			w.changeStatus(StatusTreePolicyChoosing)
		}

	case StatusExpansionPolicyChoosing:
		if w.sampler.ExpansionPolicyGuard(w.current) {
			w.changeStatus(StatusRolloutPolicy)
			return nil
		}

		a, err := w.sampler.ExpansionPolicy(w.current)
		if err != nil {
			return err
		}
		w.targetAction = a
		w.queue.Clear()
		w.queue.AddAction(a)
		w.changeStatus(StatusExpansionPolicyExecuting)

	case StatusExpansionPolicyExecuting:
		if err := w.executeNext(); err != nil {
			return err
		}
		if !w.queue.IsEmpty() && !w.game.IsFailed() {
			return nil
		}
		return w.addExpandedChild()

	case StatusRolloutPolicy:
		if w.sampler.RolloutPolicyGuard(w.current) {
			w.changeStatus(StatusEvaluateGame)
			return nil
		}
		if err := w.sampler.RolloutPolicy(w.current, w.game); err != nil {
			return err
		}

	case StatusEvaluateGame:
		timesteps := w.game.Timesteps()
		w.games.Add(1)
		w.timesteps.Add(int64(timesteps))
		w.metrics.AddEpisode()
		w.metrics.AddTimesteps(timesteps)
		w.release()
		w.changeStatus(StatusIdle)

	default:
		return fmt.Errorf("worker %d in unknown status %s", w.id, w.status)
	}
	return nil
}

// addExpandedChild records the state the expansion action reached, which is
// short of the full action if the runner fell. When the sampler wants to keep
// expanding, the rights move to the new child; losing that race ends the
// episode.
func (w *Worker) addExpandedChild() error {
	var child *tree.Node
	var err error
	if remaining := w.queue.RemainingTimesteps(); remaining > 0 {
		executed := w.targetAction.Duration() - remaining
		child, err = w.current.AddInterruptedChild(w.targetAction, executed, w.game.CurrentState())
	} else {
		child, err = w.current.AddChild(w.targetAction, w.game.CurrentState())
	}
	if err != nil {
		return err
	}
	w.release()
	w.current = child
	w.sampler.ExpansionPolicyActionDone(child)

	if w.sampler.ExpansionPolicyGuard(child) {
		w.changeStatus(StatusExpansionPolicyChoosing)
		return nil
	}
	if child.UntriedCount() == 0 || !child.ReserveExpansionRights() {
		w.changeStatus(StatusEvaluateGame)
		return nil
	}
	w.held = child
	w.changeStatus(StatusExpansionPolicyChoosing)
	return nil
}

// executeNext runs one timestep of the queued actions.
func (w *Worker) executeNext() error {
	if w.queue.IsEmpty() {
		return nil
	}
	cmd, err := w.queue.PollCommand()
	if err != nil {
		return err
	}
	w.game.Step(cmd)
	return nil
}

func (w *Worker) release() {
	if w.held != nil {
		w.held.ReleaseExpansionRights()
		w.held = nil
	}
}
