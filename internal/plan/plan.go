// Package plan assembles wave partitioning, profile routing, and the
// assignment solver into a serializable execution plan: who runs what,
// in which wave, at what estimated cost.
package plan

import (
	"context"
	"fmt"

	"github.com/gman622/qroute/internal/agent"
	"github.com/gman622/qroute/internal/cost"
	"github.com/gman622/qroute/internal/dag"
	"github.com/gman622/qroute/internal/intent"
	"github.com/gman622/qroute/internal/profile"
	"github.com/gman622/qroute/internal/solve"
)

// Entry is one planned intent.
type Entry struct {
	ID              string            `json:"id"`
	Profile         profile.Profile   `json:"profile"`
	Model           string            `json:"model"`
	Agent           string            `json:"agent"`
	Workflow        string            `json:"workflow"`
	Complexity      intent.Complexity `json:"complexity"`
	EstimatedTokens int               `json:"estimated_tokens"`
	EstimatedCost   float64           `json:"estimated_cost"`
	DependsOn       []string          `json:"depends_on"`
	Wave            int               `json:"wave"`
}

// Wave is one parallel batch of planned intents.
type Wave struct {
	Wave          int     `json:"wave"`
	AgentsNeeded  int     `json:"agents_needed"`
	EstimatedCost float64 `json:"estimated_cost"`
	Intents       []Entry `json:"intents"`
}

// Plan is the serializable bundle handed to the executor.
type Plan struct {
	TotalIntents         int                     `json:"total_intents"`
	TotalWaves           int                     `json:"total_waves"`
	PeakParallelism      int                     `json:"peak_parallelism"`
	SerialDepth          int                     `json:"serial_depth"`
	BottleneckWave       int                     `json:"bottleneck_wave"`
	CriticalPath         []string                `json:"critical_path"`
	TotalEstimatedCost   float64                 `json:"total_estimated_cost"`
	TotalEstimatedTokens int                     `json:"total_estimated_tokens"`
	ProfileLoad          map[profile.Profile]int `json:"profile_load"`
	Waves                []Wave                  `json:"waves"`
	Solver               solve.Report            `json:"solver"`
}

// Build plans a backlog: it partitions the dependency graph into waves,
// routes every intent to a profile, solves the agent assignment, and
// derives the plan metrics. Estimated costs are pure token spend; the
// solver's soft penalties live in its report, not in the plan totals.
func Build(ctx context.Context, intents []intent.Intent, pool *agent.Pool, opts solve.Options) (*Plan, error) {
	p := &Plan{
		TotalIntents: len(intents),
		CriticalPath: []string{},
		ProfileLoad:  make(map[profile.Profile]int),
		Waves:        []Wave{},
	}
	if len(intents) == 0 {
		return p, nil
	}

	g, err := intent.GraphOf(intents)
	if err != nil {
		return nil, fmt.Errorf("building dependency graph: %w", err)
	}
	waves, err := g.Waves()
	if err != nil {
		return nil, err
	}

	sol, err := solve.Solve(ctx, intents, pool, opts)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*intent.Intent, len(intents))
	for i := range intents {
		byID[intents[i].ID] = &intents[i]
	}

	// Duration-weighted graph for the critical path: tokens over the
	// assigned agent's throughput.
	durations := dag.New()
	for i := range intents {
		it := &intents[i]
		a := pool.ByName(sol.Assignment[it.ID])
		if a == nil {
			return nil, fmt.Errorf("assignment references unknown agent %q for intent %s", sol.Assignment[it.ID], it.ID)
		}
		if err := durations.AddNode(it.ID, a.Duration(it.Tokens())); err != nil {
			return nil, err
		}
	}
	for i := range intents {
		it := &intents[i]
		for _, dep := range it.DependsOn {
			if err := durations.AddEdge(it.ID, dep); err != nil {
				return nil, err
			}
		}
	}
	critical, err := durations.CriticalPath()
	if err != nil {
		return nil, err
	}
	if critical != nil {
		p.CriticalPath = critical
	}

	p.TotalWaves = len(waves)
	p.SerialDepth = len(waves)
	p.Solver = sol.Report

	for w, ids := range waves {
		wave := Wave{Wave: w}
		seen := make(map[string]bool)
		for _, id := range ids {
			it := byID[id]
			name := sol.Assignment[id]
			a := pool.ByName(name)

			prof := profile.Route(it)
			entry := Entry{
				ID:              id,
				Profile:         prof,
				Model:           a.Type,
				Agent:           name,
				Workflow:        it.Workflow,
				Complexity:      it.Complexity,
				EstimatedTokens: it.Tokens(),
				EstimatedCost:   cost.TokenCost(it, a),
				DependsOn:       append([]string{}, it.DependsOn...),
				Wave:            w,
			}

			wave.Intents = append(wave.Intents, entry)
			wave.EstimatedCost += entry.EstimatedCost
			if !seen[name] {
				seen[name] = true
				wave.AgentsNeeded++
			}

			p.ProfileLoad[prof]++
			p.TotalEstimatedCost += entry.EstimatedCost
			p.TotalEstimatedTokens += entry.EstimatedTokens
		}
		p.Waves = append(p.Waves, wave)

		if len(ids) > p.PeakParallelism {
			p.PeakParallelism = len(ids)
		}
		if len(ids) > len(waves[p.BottleneckWave]) {
			p.BottleneckWave = w
		}
	}

	return p, nil
}

// Entry returns the planned entry for an intent id, or nil.
func (p *Plan) Entry(id string) *Entry {
	for wi := range p.Waves {
		for ii := range p.Waves[wi].Intents {
			if p.Waves[wi].Intents[ii].ID == id {
				return &p.Waves[wi].Intents[ii]
			}
		}
	}
	return nil
}

// IntentIDs returns every planned intent id in wave order.
func (p *Plan) IntentIDs() []string {
	var ids []string
	for _, w := range p.Waves {
		for _, e := range w.Intents {
			ids = append(ids, e.ID)
		}
	}
	return ids
}
