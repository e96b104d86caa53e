package searcher

import (
	"math"

	"golang.org/x/exp/rand"

	"qwop/action"
	"qwop/tree"
)

// Greedy is a rolling horizon search. It samples below a current root with the
// Distribution tree policy, and after enough failed runs moves the root
// forward towards the best scoring leaf. When everything below the current
// root is explored it jumps back up, further each time it has to.
type Greedy struct {
	machine
	SamplesAt0                     int
	DepthN                         int
	SamplesAtN                     int
	SamplesAtInf                   int
	ForwardJump                    int
	BackwardsJump                  int
	BackwardsJumpMin               int
	BackwardsJumpFailureMultiplier float64

	evaluate     tree.EvaluationFunction
	distribution *Distribution
	currentRoot  *tree.Node
	samplesGoal  int
	samplesSoFar int
	rng          *rand.Rand
}

func NewGreedy(evaluate tree.EvaluationFunction, seed uint64) *Greedy {
	if evaluate == nil {
		panic("greedy sampler needs an evaluation function")
	}
	rng := rand.New(rand.NewSource(seed))
	return &Greedy{
		SamplesAt0:                     SamplesAt0,
		DepthN:                         DepthN,
		SamplesAtN:                     SamplesAtN,
		SamplesAtInf:                   SamplesAtInf,
		ForwardJump:                    ForwardJump,
		BackwardsJump:                  BackwardsJump,
		BackwardsJumpMin:               BackwardsJumpMin,
		BackwardsJumpFailureMultiplier: BackwardsJumpFailureMultiplier,
		evaluate:                       evaluate,
		distribution:                   NewDistribution(rng.Uint64()),
		rng:                            rng,
	}
}

// SamplesAtDepth is how many failed runs to collect below a root at depth d
// before moving on. It falls from SamplesAt0 through SamplesAtN at DepthN
// towards SamplesAtInf.
func (g *Greedy) SamplesAtDepth(d int) int {
	n := float64(g.DepthN)
	a := n * n * float64(g.SamplesAtN-g.SamplesAtInf) / float64(g.SamplesAt0-g.SamplesAtN)
	samples := a*float64(g.SamplesAt0-g.SamplesAtInf)/(float64(d*d)+a) + float64(g.SamplesAtInf)
	return int(math.Round(samples))
}

func (g *Greedy) chooseRoot(n *tree.Node) {
	g.currentRoot = n
	g.samplesGoal = g.SamplesAtDepth(n.Depth())
	g.samplesSoFar = 0
}

// CurrentRoot is the node sampling is currently focused below.
func (g *Greedy) CurrentRoot() *tree.Node {
	return g.currentRoot
}

func (g *Greedy) TreePolicy(start *tree.Node) *tree.Node {
	g.startEpisode()

	switch {
	case g.currentRoot == nil:
		g.chooseRoot(start)
	case isAncestor(g.currentRoot, start):
		g.chooseRoot(start)
	case start != g.currentRoot && !isAncestor(start, g.currentRoot):
		// Unrelated branches; the caller's start node wins
		g.chooseRoot(start)
	}

	if g.currentRoot.IsFullyExplored() {
		n := g.currentRoot
		for count := 0; !n.IsRoot() && (n.IsFullyExplored() || count < g.BackwardsJump); count++ {
			n = n.Parent()
		}
		g.BackwardsJump = int(float64(g.BackwardsJump) * g.BackwardsJumpFailureMultiplier)
		g.chooseRoot(n)
	}

	return g.distribution.TreePolicy(g.currentRoot)
}

func (g *Greedy) ExpansionPolicy(n *tree.Node) (action.Action, error) {
	if err := untried(n); err != nil {
		return action.Action{}, err
	}
	return n.UntriedRandom(g.rng)
}

func (g *Greedy) ExpansionPolicyActionDone(n *tree.Node) {
	if !n.IsFailed() && n.Depth() <= MaxDepth {
		return
	}
	g.finishExpansion(false)

	g.samplesSoFar++
	if g.samplesSoFar < g.samplesGoal {
		return
	}

	best, bestScore := g.currentRoot, math.Inf(-1)
	for _, leaf := range g.currentRoot.Leaves() {
		if score := g.evaluate.Value(leaf); score > bestScore {
			best, bestScore = leaf, score
		}
	}
	for best.Depth() > g.currentRoot.Depth()+g.ForwardJump {
		best = best.Parent()
	}
	g.BackwardsJump = max(g.BackwardsJump-1, g.BackwardsJumpMin)
	g.chooseRoot(best)
}

func (g *Greedy) Jammed() bool {
	return g.distribution.Jammed()
}

func (g *Greedy) Copy() Sampler {
	c := NewGreedy(g.evaluate.Copy(), g.rng.Uint64())
	c.SamplesAt0 = g.SamplesAt0
	c.DepthN = g.DepthN
	c.SamplesAtN = g.SamplesAtN
	c.SamplesAtInf = g.SamplesAtInf
	c.ForwardJump = g.ForwardJump
	c.BackwardsJump = g.BackwardsJump
	c.BackwardsJumpMin = g.BackwardsJumpMin
	c.BackwardsJumpFailureMultiplier = g.BackwardsJumpFailureMultiplier
	c.machine = g.fresh()
	c.distribution.machine = g.distribution.fresh()
	return c
}

func (g *Greedy) String() string {
	return "greedy"
}

// isAncestor reports whether a lies strictly above b.
func isAncestor(a, b *tree.Node) bool {
	for n := b.Parent(); n != nil; n = n.Parent() {
		if n == a {
			return true
		}
	}
	return false
}
