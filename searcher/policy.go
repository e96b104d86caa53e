package searcher

import "math"

type ucb struct {
	c         float64
	numerator float64
}

func newUCB(c float64, N int64) *ucb {
	if N == 0 {
		panic("N cannot be 0")
	}
	return &ucb{c: c, numerator: 2 * math.Log(float64(N))}
}

func (u ucb) evaluate(value float64, n int64) float64 {
	if n == 0 {
		panic("n cannot be 0")
	}
	// UCB = value + c*sqrt(2*ln(N)/n)
	return value + u.c*math.Sqrt(u.numerator/float64(n))
}
