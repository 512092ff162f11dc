package cost

import (
	"sort"

	"github.com/gman622/qroute/internal/agent"
	"github.com/gman622/qroute/internal/intent"
)

// Option is one feasible agent choice for an intent, with its pair cost.
type Option struct {
	Agent *agent.Agent
	Cost  float64
}

// Matrix precomputes the feasible pairings for a set of intents against a
// pool, with per-pair costs. Options are kept sorted by ascending cost,
// then agent name, so iterating them is deterministic.
type Matrix struct {
	Params Params

	options map[string][]Option           // intent ID → sorted feasible options
	costs   map[string]map[string]float64 // intent ID → agent name → pair cost
	quality map[string]float64            // agent name → quality
}

// BuildMatrix prices every intent against every agent in the pool.
// Intents with no feasible agent at all still get an (empty) entry;
// Infeasible lists them.
func BuildMatrix(intents []intent.Intent, pool *agent.Pool, p Params) *Matrix {
	m := &Matrix{
		Params:  p,
		options: make(map[string][]Option, len(intents)),
		costs:   make(map[string]map[string]float64, len(intents)),
		quality: make(map[string]float64, len(pool.Agents)),
	}
	for j := range pool.Agents {
		m.quality[pool.Agents[j].Name] = pool.Agents[j].Quality
	}

	for i := range intents {
		it := &intents[i]
		var opts []Option
		byAgent := make(map[string]float64)
		for j := range pool.Agents {
			a := &pool.Agents[j]
			c, err := Pair(it, a, p)
			if err != nil {
				continue
			}
			opts = append(opts, Option{Agent: a, Cost: c})
			byAgent[a.Name] = c
		}
		sort.Slice(opts, func(x, y int) bool {
			if opts[x].Cost != opts[y].Cost {
				return opts[x].Cost < opts[y].Cost
			}
			return opts[x].Agent.Name < opts[y].Agent.Name
		})
		m.options[it.ID] = opts
		m.costs[it.ID] = byAgent
	}

	return m
}

// Options returns the feasible options for an intent, cheapest first.
func (m *Matrix) Options(id string) []Option {
	return m.options[id]
}

// Cost returns the pair cost for a specific intent-agent pairing.
func (m *Matrix) Cost(id, agentName string) (float64, bool) {
	c, ok := m.costs[id][agentName]
	return c, ok
}

// Quality returns the quality of the named agent, or zero for an agent
// outside the pool the matrix was built from.
func (m *Matrix) Quality(agentName string) float64 {
	return m.quality[agentName]
}

// MinCost returns the cheapest feasible pair cost for an intent, or zero
// when the intent has no feasible agent.
func (m *Matrix) MinCost(id string) float64 {
	opts := m.options[id]
	if len(opts) == 0 {
		return 0
	}
	return opts[0].Cost
}

// Infeasible returns the sorted IDs of intents with no feasible agent.
func (m *Matrix) Infeasible() []string {
	var ids []string
	for id, opts := range m.options {
		if len(opts) == 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
