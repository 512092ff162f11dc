package solve

import (
	"sort"

	"github.com/gman622/qroute/internal/cost"
)

// greedy assigns intents hardest-first to the cheapest capable agent
// with remaining capacity. It is fast, deterministic, and serves as the
// feasibility oracle for the other strategies: when greedy cannot place
// an intent, the leftover set is reported as infeasible.
func (p *problem) greedy() (cost.Assignment, error) {
	order := solveOrder(p.intents)
	remaining := capacityMap(p.pool)
	assign := make(cost.Assignment, len(p.intents))

	var stuck []string
	for _, it := range order {
		placed := false
		for _, opt := range p.matrix.Options(it.ID) {
			if remaining[opt.Agent.Name] > 0 {
				assign[it.ID] = opt.Agent.Name
				remaining[opt.Agent.Name]--
				placed = true
				break
			}
		}
		if !placed {
			stuck = append(stuck, it.ID)
		}
	}

	if len(stuck) > 0 {
		sort.Strings(stuck)
		return nil, &InfeasibleError{Intents: stuck, Reason: "agent capacity exhausted"}
	}
	return assign, nil
}
