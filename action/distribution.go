package action

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrEmptyList      = errors.New("no actions to choose from")
	ErrNegativeStdev  = errors.New("standard deviation cannot be negative")
	ErrNoDistribution = errors.New("no distribution to sample with")
)

// Distribution picks one action from a set of candidates.
type Distribution interface {
	Sample(actions []Action, rng *rand.Rand) (Action, error)
}

// Equal samples every candidate with the same probability.
type Equal struct{}

func (Equal) Sample(actions []Action, rng *rand.Rand) (Action, error) {
	if len(actions) == 0 {
		return Action{}, ErrEmptyList
	}
	return actions[rng.Intn(len(actions))], nil
}

// Normal draws a duration from N(Mean, Stdev) and returns the candidate whose
// duration is closest to it. The earliest candidate wins ties.
type Normal struct {
	Mean  float64
	Stdev float64
}

func NewNormal(mean, stdev float64) (Normal, error) {
	if stdev < 0 {
		return Normal{}, fmt.Errorf("normal distribution with stdev %v: %w", stdev, ErrNegativeStdev)
	}
	return Normal{Mean: mean, Stdev: stdev}, nil
}

func (n Normal) Sample(actions []Action, rng *rand.Rand) (Action, error) {
	if len(actions) == 0 {
		return Action{}, ErrEmptyList
	}
	if n.Stdev < 0 {
		return Action{}, ErrNegativeStdev
	}

	target := n.Mean
	if n.Stdev > 0 {
		target = distuv.Normal{Mu: n.Mean, Sigma: n.Stdev, Src: rng}.Rand()
	}

	best := 0
	bestDistance := math.Inf(1)
	for i, a := range actions {
		if d := math.Abs(float64(a.Duration()) - target); d < bestDistance {
			bestDistance = d
			best = i
		}
	}
	return actions[best], nil
}

// ChooseSet samples once from the union of first and second and reports
// whether the sample came from first.
func ChooseSet(dist Distribution, first, second []Action, rng *rand.Rand) (bool, error) {
	if dist == nil {
		return false, ErrNoDistribution
	}
	union := make([]Action, 0, len(first)+len(second))
	union = append(union, first...)
	union = append(union, second...)
	if len(union) == 0 {
		return false, ErrEmptyList
	}

	sample, err := indexOf(dist, union, rng)
	if err != nil {
		return false, err
	}
	return sample < len(first), nil
}

func indexOf(dist Distribution, actions []Action, rng *rand.Rand) (int, error) {
	chosen, err := dist.Sample(actions, rng)
	if err != nil {
		return -1, err
	}
	for i, a := range actions {
		if a == chosen {
			return i, nil
		}
	}
	return -1, fmt.Errorf("distribution returned %s which is not a candidate", chosen)
}
