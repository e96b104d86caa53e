package experiments

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"qwop/config"
	"qwop/experiments/metrics"
	"qwop/searcher"
	"qwop/tree"
)

// sweep is one search configuration of an experiment.
type sweep struct {
	metrics.SearchConfig
	sampler config.SamplerConfig
}

// RunSamplerExperiment searches with every combination of the experiment's
// goroutine counts and samplers, Trials times each, and stores the results
// under the experiment's output directory. It returns that directory.
func RunSamplerExperiment(ctx context.Context, c *config.Config) (string, error) {
	goroutines := c.Experiment.Goroutines
	if len(goroutines) == 0 {
		goroutines = []int{c.Goroutines}
	}
	samplers := c.Experiment.Samplers
	if len(samplers) == 0 {
		samplers = []config.SamplerConfig{c.Sampler}
	}

	sweeps := []sweep{}
	for _, g := range goroutines {
		for _, s := range samplers {
			sweeps = append(sweeps, sweep{
				SearchConfig: metrics.SearchConfig{
					ID:         len(sweeps) + 1,
					Sampler:    s.Type,
					Goroutines: g,
					Duration:   c.Duration,
					Episodes:   c.Episodes,
					Seed:       c.Seed,
				},
				sampler: s,
			})
		}
	}

	name := c.Experiment.Name
	if name == "" {
		name = "samplers"
	}
	return runExperiment(ctx, name, c, sweeps)
}

func runExperiment(ctx context.Context, name string, c *config.Config, sweeps []sweep) (string, error) {
	searchRecords := []metrics.SearchRecord{}
	trajectoryRecords := []metrics.TrajectoryRecord{}

	log.Info().Msgf("starting %s experiment...", name)

	for si, s := range sweeps {
		log.Info().Msgf("starting config %d of %d: %+v...", si+1, len(sweeps), s.SearchConfig)

		for trial := 1; trial <= c.Experiment.Trials; trial++ {
			metric, best, err := runSearch(ctx, c, s, uint64(trial))
			if err != nil {
				return "", fmt.Errorf("config %d trial %d: %w", s.ID, trial, err)
			}
			searchRecords = append(searchRecords, metrics.SearchRecord{
				Config:       s.ID,
				Trial:        trial,
				SearchMetric: metric,
			})
			trajectoryRecords = append(trajectoryRecords, trajectoryOf(s.ID, trial, best))

			log.Info().Msgf("completed config %d trial %d: %d episodes, %.0f timesteps/s, best distance %.2f",
				s.ID, trial, metric.Episodes, metric.TimestepsPerSecond(), tree.Distance{}.Value(best))
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
		}
	}

	log.Info().Msgf("completed %s experiment", name)

	configs := make([]metrics.SearchConfig, len(sweeps))
	for i, s := range sweeps {
		configs[i] = s.SearchConfig
	}
	return store(c.Experiment.Output, name, configs, searchRecords, trajectoryRecords)
}

// runSearch runs one trial on a fresh tree. Trials of a config differ only in
// their seed.
func runSearch(ctx context.Context, c *config.Config, s sweep, trial uint64) (metrics.SearchMetric, *tree.Node, error) {
	trialConfig := *c
	trialConfig.Seed = c.Seed + trial
	trialConfig.Metrics = true

	root, err := trialConfig.Root()
	if err != nil {
		return metrics.SearchMetric{}, nil, err
	}
	options, err := trialConfig.OptionsWith(s.sampler)
	if err != nil {
		return metrics.SearchMetric{}, nil, err
	}

	metric, err := searcher.NewMCTS(s.Goroutines, options...).Search(ctx, root)
	if err != nil {
		return metric, nil, err
	}
	return metric, Furthest(root), nil
}

// Furthest returns the node below root, inclusive, whose runner got furthest.
func Furthest(root *tree.Node) *tree.Node {
	var distance tree.Distance
	best := root
	root.Walk(func(n *tree.Node) {
		if distance.Value(n) > distance.Value(best) {
			best = n
		}
	})
	return best
}

func trajectoryOf(config, trial int, n *tree.Node) metrics.TrajectoryRecord {
	sequence := n.Sequence()
	actions := make([]string, len(sequence))
	for i, a := range sequence {
		actions[i] = a.String()
	}
	return metrics.TrajectoryRecord{
		Config:    config,
		Trial:     trial,
		Distance:  tree.Distance{}.Value(n),
		Timesteps: n.Timesteps(),
		Failed:    n.IsFailed(),
		Actions:   strings.Join(actions, " "),
	}
}

func store(root, name string, configs []metrics.SearchConfig, searchRecords []metrics.SearchRecord, trajectoryRecords []metrics.TrajectoryRecord) (string, error) {
	writer, err := metrics.NewWriter(root, name)
	if err != nil {
		return "", fmt.Errorf("failed to create experiment writer: %w", err)
	}

	if err := writer.WriteSearchConfigs(configs); err != nil {
		return "", fmt.Errorf("failed to store search configs: %w", err)
	}
	log.Info().Msg("stored search configs")

	if err := writer.WriteSearchRecords(searchRecords); err != nil {
		return "", fmt.Errorf("failed to write search records: %w", err)
	}
	log.Info().Msg("stored search records")

	if err := writer.WriteTrajectoryRecords(trajectoryRecords); err != nil {
		return "", fmt.Errorf("failed to write trajectory records: %w", err)
	}
	log.Info().Msg("stored trajectory records")

	return writer.Dir(), nil
}
