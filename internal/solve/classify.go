package solve

import (
	"math"

	"github.com/gman622/qroute/internal/dag"
)

// Strategy-selection thresholds for StrategyAuto. A problem must clear
// both the count and the density gate of a band to stay in it.
const (
	greedyMaxIntents      = 500
	greedyMaxDensity      = 0.01
	branchBoundMaxIntents = 50000
	branchBoundMaxDensity = 0.1

	// Below this many intents the quadratic denominator makes any
	// dependency at all look dense, so the density gates are skipped.
	densityMinIntents = 32
)

// Saturation caps for the difficulty signals. Each signal tops out at
// 1.0 once its raw value reaches the cap.
const (
	taskSaturation    = 100000.0
	densitySaturation = 0.1
	chainSaturation   = 10.0
)

// characteristics summarizes the shape of a routing problem: how many
// intents, how tangled the dependency graph is, and how deep its chains
// run. chooseStrategy reads it; Report surfaces the composite score.
type characteristics struct {
	Tasks    int
	Edges    int
	Density  float64 // edges over tasks squared
	AvgChain float64 // mean longest dependency chain, in intents
	Score    float64 // weighted difficulty in [0, 1]
}

// classify measures an acyclic dependency graph. The score blends three
// saturating signals: 0.4 task count, 0.4 density, 0.2 chain depth.
func classify(g *dag.DAG) characteristics {
	var c characteristics
	if g == nil || g.Len() == 0 {
		return c
	}

	n := g.Len()
	c.Tasks = n
	c.Edges = g.EdgeCount()
	c.Density = float64(c.Edges) / (float64(n) * float64(n))

	total := 0
	for _, l := range chainLengths(g) {
		total += l
	}
	c.AvgChain = float64(total) / float64(n)

	taskSignal := math.Min(float64(n)/taskSaturation, 1)
	densitySignal := math.Min(c.Density/densitySaturation, 1)
	chainSignal := math.Min(c.AvgChain/chainSaturation, 1)
	c.Score = 0.4*taskSignal + 0.4*densitySignal + 0.2*chainSignal
	return c
}

// chainLengths returns, per node, the number of intents on the longest
// chain that starts at the node and runs through its dependents. The
// graph must be acyclic.
func chainLengths(g *dag.DAG) map[string]int {
	memo := make(map[string]int, g.Len())
	var longest func(id string) int
	longest = func(id string) int {
		if l, ok := memo[id]; ok {
			return l
		}
		best := 0
		for _, next := range g.Dependents(id) {
			if l := longest(next); l > best {
				best = l
			}
		}
		memo[id] = 1 + best
		return 1 + best
	}
	for _, id := range g.Nodes() {
		longest(id)
	}
	return memo
}

// chooseStrategy picks the algorithm for StrategyAuto: greedy for small
// sparse problems, branch-and-bound up to medium size and moderate
// density, decomposition beyond that. A forced strategy wins outright.
func chooseStrategy(s Strategy, c characteristics) Strategy {
	if s != StrategyAuto {
		return s
	}
	density := c.Density
	if c.Tasks < densityMinIntents {
		density = 0
	}
	switch {
	case c.Tasks <= greedyMaxIntents && density <= greedyMaxDensity:
		return StrategyGreedy
	case c.Tasks <= branchBoundMaxIntents && density <= branchBoundMaxDensity:
		return StrategyBranchBound
	default:
		return StrategyDecompose
	}
}
