package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog/log"

	"qwop/config"
	"qwop/experiments"
	"qwop/searcher"
)

const defaultConfig = `
duration: 2s
game:
  type: treadmill
  fail_after: 200
  max_hold: 40
sampler:
  type: random
`

func main() {
	path := flag.String("config", "", "YAML search configuration, built-in demo when empty")
	experiment := flag.String("experiment", "", "Experiment to run instead of a single search: samplers or throughput")
	goroutines := flag.Int("goroutines", 0, "Number of workers sharing the tree")
	episodes := flag.Int("episodes", 0, "Episode budget of the search")
	duration := flag.Duration("duration", 0, "Time budget of the search")
	sampler := flag.String("sampler", "", "Sampler: random, deterministic, distribution, ucb, fixed_depth or greedy")
	flag.Parse()

	c, err := load(*path)
	if err != nil {
		config.InitLogger("")
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if *goroutines > 0 {
		c.Goroutines = *goroutines
	}
	if *episodes > 0 {
		c.Episodes = *episodes
	}
	if *duration > 0 {
		c.Duration = *duration
	}
	if *sampler != "" {
		c.Sampler.Type = *sampler
	}
	config.InitLogger(c.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch *experiment {
	case "":
		err = runSearch(ctx, c)
	case "samplers":
		var dir string
		dir, err = experiments.RunSamplerExperiment(ctx, c)
		log.Info().Msgf("results stored in %s", dir)
	case "throughput":
		var dir string
		dir, err = experiments.RunThroughputExperiment(ctx, c)
		log.Info().Msgf("results stored in %s", dir)
	default:
		log.Fatal().Msgf("unknown experiment %q", *experiment)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed")
	}
}

func load(path string) (*config.Config, error) {
	if path == "" {
		return config.Parse([]byte(defaultConfig))
	}
	return config.Load(path)
}

func runSearch(ctx context.Context, c *config.Config) error {
	root, err := c.Root()
	if err != nil {
		return err
	}
	c.Metrics = true
	options, err := c.Options()
	if err != nil {
		return err
	}

	start := time.Now()
	metric, err := searcher.NewMCTS(c.Goroutines, options...).Search(ctx, root)
	if err != nil {
		return err
	}

	best := experiments.Furthest(root)
	log.Info().
		Str("sampler", metric.Sampler).
		Int("goroutines", metric.Goroutines).
		Int("episodes", metric.Episodes).
		Int("nodes", metric.Nodes).
		Float64("timesteps_per_second", metric.TimestepsPerSecond()).
		Dur("elapsed", time.Since(start)).
		Msg("search summary")
	log.Info().Msgf("furthest runner: depth %d, %d timesteps, fell %t, actions %v",
		best.Depth(), best.Timesteps(), best.IsFailed(), best.Sequence())
	return nil
}
