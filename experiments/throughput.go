package experiments

import (
	"context"
	"time"

	"qwop/config"
	"qwop/experiments/metrics"
)

const ThroughputDuration = 2 * time.Second

var throughputGoroutines = []int{1, 2, 4, 8, 16, 32, 64, 128}

// RunThroughputExperiment measures simulated timesteps per second of the
// configured sampler as the number of goroutines grows. Every search runs for
// ThroughputDuration unless the configuration sets its own duration.
func RunThroughputExperiment(ctx context.Context, c *config.Config) (string, error) {
	duration := c.Duration
	if duration <= 0 {
		duration = ThroughputDuration
	}
	throughputConfig := *c
	throughputConfig.Duration = duration
	throughputConfig.Episodes = 0

	sweeps := make([]sweep, len(throughputGoroutines))
	for i, g := range throughputGoroutines {
		sweeps[i] = sweep{
			SearchConfig: metrics.SearchConfig{
				ID:         i + 1,
				Sampler:    c.Sampler.Type,
				Goroutines: g,
				Duration:   duration,
				Seed:       c.Seed,
			},
			sampler: c.Sampler,
		}
	}

	return runExperiment(ctx, "throughput", &throughputConfig, sweeps)
}
