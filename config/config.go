// Package config loads search configurations from YAML and turns them into
// searchers, samplers and rollout policies.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"qwop/game"
)

var (
	ErrUnknownType = errors.New("unknown component type")
	ErrNoBudget    = errors.New("search needs episodes or a duration")
)

// Config describes one search and, optionally, an experiment sweep around it.
type Config struct {
	LogLevel   string        `yaml:"log_level"`
	Goroutines int           `yaml:"goroutines"`
	Episodes   int           `yaml:"episodes"`
	Duration   time.Duration `yaml:"duration"`
	Seed       uint64        `yaml:"seed"`
	Metrics    bool          `yaml:"metrics"`

	Game       GameConfig       `yaml:"game"`
	Tree       GeneratorConfig  `yaml:"tree"`
	Sampler    SamplerConfig    `yaml:"sampler"`
	Experiment ExperimentConfig `yaml:"experiment"`
}

type GameConfig struct {
	Type      string `yaml:"type"` // treadmill
	FailAfter int    `yaml:"fail_after"`
	MaxHold   int    `yaml:"max_hold"`
}

// GeneratorConfig builds the candidate actions of new nodes. An empty type
// means the default generator of whoever uses it.
type GeneratorConfig struct {
	Type       string             `yaml:"type"` // fixed, fixed_sequence, uniform_no_repeats, default_tree, default_rollout
	Lists      []ListConfig       `yaml:"lists"`
	Exceptions map[int]ListConfig `yaml:"exceptions"`
}

// ListConfig is one command held for a set of durations. Durations wins over
// the [From, To) range when both are given.
type ListConfig struct {
	Command      game.Command       `yaml:"command"`
	Durations    []int              `yaml:"durations"`
	From         int                `yaml:"from"`
	To           int                `yaml:"to"`
	Distribution DistributionConfig `yaml:"distribution"`
}

type DistributionConfig struct {
	Type  string  `yaml:"type"` // equal, normal
	Mean  float64 `yaml:"mean"`
	Stdev float64 `yaml:"stdev"`
}

type EvaluatorConfig struct {
	Type  string  `yaml:"type"` // distance, velocity, constant
	Value float64 `yaml:"value"`
}

type UpdaterConfig struct {
	Type string `yaml:"type"` // average, hard_set, sum, top_n_children
	N    int    `yaml:"n"`
}

type RolloutConfig struct {
	Type              string          `yaml:"type"` // end_score, delta_score, decaying_horizon, multi_children, value_function, window, weighted
	MaxTimesteps      int             `yaml:"max_timesteps"`
	FailureMultiplier *float64        `yaml:"failure_multiplier"`
	Evaluator         EvaluatorConfig `yaml:"evaluator"`
	Generator         GeneratorConfig `yaml:"generator"`

	MaxRollouts int   `yaml:"max_rollouts"`
	ColdStart   *bool `yaml:"cold_start"`

	Criteria string         `yaml:"criteria"`
	Weight   float64        `yaml:"weight"`
	Inner    *RolloutConfig `yaml:"inner"`
}

type SamplerConfig struct {
	Type string `yaml:"type"` // random, deterministic, distribution, ucb, fixed_depth, greedy

	ExplorationConstant     *float64 `yaml:"exploration_constant"`
	ExplorationRandomFactor float64  `yaml:"exploration_random_factor"`
	HorizonDepth            int      `yaml:"horizon_depth"`
	FailureMultiplier       *float64 `yaml:"failure_multiplier"`

	Evaluator EvaluatorConfig `yaml:"evaluator"`
	Updater   UpdaterConfig   `yaml:"updater"`
	Rollout   RolloutConfig   `yaml:"rollout"`
}

// ExperimentConfig sweeps the search over goroutine counts and samplers,
// repeating each combination Trials times.
type ExperimentConfig struct {
	Name       string          `yaml:"name"`
	Output     string          `yaml:"output"`
	Trials     int             `yaml:"trials"`
	Goroutines []int           `yaml:"goroutines"`
	Samplers   []SamplerConfig `yaml:"samplers"`
}

// Load reads a YAML configuration and fills in defaults. Unknown keys are an
// error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var c Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) setDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Goroutines == 0 {
		c.Goroutines = 1
	}
	if c.Seed == 0 {
		c.Seed = uint64(time.Now().UnixNano())
	}
	if c.Game.Type == "" {
		c.Game.Type = "treadmill"
	}
	if c.Sampler.Type == "" {
		c.Sampler.Type = "random"
	}
	if c.Experiment.Trials == 0 {
		c.Experiment.Trials = 1
	}
	if c.Experiment.Output == "" {
		c.Experiment.Output = "data"
	}
}

func (c *Config) validate() error {
	if c.Goroutines < 1 {
		return fmt.Errorf("goroutines must be at least 1, got %d", c.Goroutines)
	}
	if c.Episodes <= 0 && c.Duration <= 0 {
		return ErrNoBudget
	}
	for _, g := range c.Experiment.Goroutines {
		if g < 1 {
			return fmt.Errorf("experiment goroutines must be at least 1, got %d", g)
		}
	}
	return nil
}
