package searcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"qwop/experiments/metrics"
	"qwop/game"
	"qwop/tree"
)

type Option func(mcts *MCTS)

type MCTS struct {
	goroutines int
	duration   time.Duration
	episodes   int
	seed       uint64
	sampler    Sampler
	factory    game.Factory
	metrics    metrics.Collector

	mu      sync.Mutex
	workers []*Worker
}

func WithDuration(duration time.Duration) Option {
	return func(m *MCTS) {
		if duration > 0 {
			m.duration = duration
		}
	}
}

func WithEpisodes(episodes int) Option {
	return func(m *MCTS) {
		if episodes > 0 {
			m.episodes = episodes
		}
	}
}

// WithSampler sets the prototype every worker copies its sampler from.
func WithSampler(sampler Sampler) Option {
	return func(m *MCTS) {
		if sampler != nil {
			m.sampler = sampler
		}
	}
}

// WithGame sets how each worker gets its own simulator.
func WithGame(factory game.Factory) Option {
	return func(m *MCTS) {
		if factory != nil {
			m.factory = factory
		}
	}
}

func WithMetrics() Option {
	return func(m *MCTS) {
		m.metrics = metrics.NewCollector()
	}
}

// WithSeed seeds the default sampler. Samplers passed to WithSampler carry
// their own seed.
func WithSeed(seed uint64) Option {
	return func(m *MCTS) {
		m.seed = seed
	}
}

func NewMCTS(goroutines int, options ...Option) *MCTS {
	m := &MCTS{ // Default values
		goroutines: goroutines,
		seed:       uint64(time.Now().UnixNano()),
		metrics:    metrics.NewDummyCollector(),
	}
	for _, option := range options {
		option(m)
	}
	if m.goroutines < 1 {
		panic("Must run at least one goroutine")
	}
	if m.episodes <= 0 && m.duration <= 0 {
		panic("Must specify search episodes or duration")
	}
	if m.factory == nil {
		panic("Must specify a game")
	}
	if m.sampler == nil {
		m.sampler = NewRandom(m.seed)
	}
	return m
}

// Search grows the tree below root until the episode budget is used, the
// duration passes, the context is done, the root is fully explored or every
// worker stops. Jammed workers are logged and counted but do not fail the
// search; any other worker error does.
func (m *MCTS) Search(ctx context.Context, root *tree.Node) (metrics.SearchMetric, error) {
	if m.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.duration)
		defer cancel()
	}

	var claimed atomic.Int64
	claim := func() bool {
		return m.episodes <= 0 || claimed.Add(1) <= int64(m.episodes)
	}

	m.metrics.Start(m.goroutines, fmt.Sprint(m.sampler))
	log.Info().Msgf("starting search with %d goroutines and %v sampler...", m.goroutines, m.sampler)

	workers := make([]*Worker, m.goroutines)
	group, ctx := errgroup.WithContext(ctx)
	for i := range workers {
		w := NewWorker(i, m.sampler.Copy(), m.factory(), root, m.metrics)
		workers[i] = w
		group.Go(func() error {
			err := w.Run(ctx, claim)
			if errors.Is(err, ErrJammed) {
				log.Warn().Int("worker", w.id).Msg("worker got jammed up, terminating it")
				m.metrics.AddJammed()
				return nil
			}
			return err
		})
	}
	m.mu.Lock()
	m.workers = workers
	m.mu.Unlock()

	err := group.Wait()

	nodes := 0
	root.Walk(func(*tree.Node) { nodes++ })
	m.metrics.SetTree(nodes, root.IsFullyExplored())
	metric := m.metrics.Complete()
	if err != nil {
		return metric, fmt.Errorf("search failed: %w", err)
	}

	var games, timesteps int64
	for _, w := range workers {
		games += w.Games()
		timesteps += w.Timesteps()
	}
	log.Info().Msgf("completed search: %d episodes, %d timesteps, %d nodes, fully explored %t",
		games, timesteps, nodes, root.IsFullyExplored())
	return metric, nil
}

// Workers returns the workers of the latest search.
func (m *MCTS) Workers() []*Worker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Worker(nil), m.workers...)
}
