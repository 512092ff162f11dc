package cost

import (
	"fmt"

	"github.com/gman622/qroute/internal/intent"
)

// Assignment maps intent IDs to agent instance names.
type Assignment map[string]string

// DistinctAgents counts the distinct agent instances an assignment uses.
func (a Assignment) DistinctAgents() int {
	seen := make(map[string]bool, len(a))
	for _, name := range a {
		seen[name] = true
	}
	return len(seen)
}

// Breakdown itemizes the global objective.
type Breakdown struct {
	PairCost        float64 // token + overkill + latency across all pairs
	DeadlinePenalty float64
	AffinityBonus   float64 // subtracted from the total
	DepPenalty      float64 // quality-deficit charge across dependency edges
	Total           float64
}

// Objective computes the global objective of a complete assignment: the
// sum of pair costs and deadline penalties, minus the context-affinity
// bonus for every dependency edge whose two intents share an agent
// instance, plus the quality-deficit charge for every edge whose
// downstream intent runs on a weaker agent than its predecessor.
// waveOf maps intent IDs to their 0-based wave indexes.
//
// Returns an error if any intent is unassigned or priced infeasible;
// solvers establish feasibility before scoring.
func Objective(intents []intent.Intent, assign Assignment, waveOf map[string]int, m *Matrix) (Breakdown, error) {
	var b Breakdown

	byID := make(map[string]*intent.Intent, len(intents))
	for i := range intents {
		byID[intents[i].ID] = &intents[i]
	}

	for i := range intents {
		it := &intents[i]
		name, ok := assign[it.ID]
		if !ok {
			return Breakdown{}, fmt.Errorf("intent %s unassigned", it.ID)
		}
		c, ok := m.Cost(it.ID, name)
		if !ok {
			return Breakdown{}, fmt.Errorf("intent %s assigned to infeasible agent %s", it.ID, name)
		}
		b.PairCost += c

		wave, ok := waveOf[it.ID]
		if !ok {
			return Breakdown{}, fmt.Errorf("intent %s has no wave placement", it.ID)
		}
		b.DeadlinePenalty += DeadlinePenalty(it, wave, m.Params)

		for _, dep := range it.DependsOn {
			if _, ok := byID[dep]; !ok {
				continue
			}
			if assign[dep] == name {
				b.AffinityBonus += m.Params.ContextBonus
			} else if m.Quality(name) < m.Quality(assign[dep]) {
				b.DepPenalty += m.Params.DepQualityPenalty
			}
		}
	}

	b.Total = b.PairCost + b.DeadlinePenalty - b.AffinityBonus + b.DepPenalty
	return b, nil
}
