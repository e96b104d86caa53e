package searcher

import "time"

// Hyperparameters for the samplers

const (
	MaxBackoff = 5000 * time.Millisecond // Longest wait before a worker counts as jammed
	MaxDepth   = 10000                   // Deeper expansions are assumed to be an endless action series
)

// UCB exploration
const (
	ExplorationConstant     = 1.0
	ExplorationRandomFactor = 0.0
)

// Greedy sample schedule and root jumps
const (
	SamplesAt0                     = 1000
	DepthN                         = 5
	SamplesAtN                     = 200
	SamplesAtInf                   = 75
	ForwardJump                    = 1
	BackwardsJump                  = 10
	BackwardsJumpMin               = 5
	BackwardsJumpFailureMultiplier = 1.5
)
