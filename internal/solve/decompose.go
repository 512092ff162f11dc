package solve

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gman622/qroute/internal/cost"
	"github.com/gman622/qroute/internal/intent"
)

// errUndecomposable signals a graph with a single connected component;
// the caller falls back to branch-and-bound.
var errUndecomposable = errors.New("dependency graph has a single connected component")

// errMergeConflict signals capacity conflicts that the merge repair
// could not untangle; the caller falls back to a whole-problem solve.
var errMergeConflict = errors.New("capacity conflict after component merge")

// componentWorkers bounds how many component solves run at once.
const componentWorkers = 8

// decompose splits the problem along connected components of the
// dependency graph, solves each independently in parallel, and merges.
// Components share no edges, so the only cross-component coupling is
// agent capacity; the merge repairs any overloads deterministically.
func (p *problem) decompose(ctx context.Context) (*Solution, error) {
	comps := p.graph.Components()
	if len(comps) <= 1 {
		return nil, errUndecomposable
	}

	byID := make(map[string]*intent.Intent, len(p.intents))
	for i := range p.intents {
		byID[p.intents[i].ID] = &p.intents[i]
	}

	slice := p.timeLimit() / time.Duration(len(comps))
	if slice < 50*time.Millisecond {
		slice = 50 * time.Millisecond
	}

	subOpts := p.opts
	subOpts.Strategy = StrategyAuto
	subOpts.TimeLimit = slice
	// The budget cap is a whole-problem term; components cannot see it.
	subOpts.BudgetCap = 0

	parts := make([]cost.Assignment, len(comps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(componentWorkers)
	for ci, comp := range comps {
		ci, comp := ci, comp
		g.Go(func() error {
			sub := make([]intent.Intent, 0, len(comp))
			for _, id := range comp {
				sub = append(sub, *byID[id])
			}
			sol, err := Solve(gctx, sub, p.pool, subOpts)
			if err != nil {
				return fmt.Errorf("component %d (%d intents): %w", ci, len(comp), err)
			}
			parts[ci] = sol.Assignment
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(cost.Assignment, len(p.intents))
	for _, part := range parts {
		for id, name := range part {
			merged[id] = name
		}
	}

	if err := p.repairCapacity(merged); err != nil {
		return nil, err
	}

	return p.finish(merged, Report{Strategy: StrategyDecompose})
}

// repairCapacity resolves per-agent overloads left by merging
// independently solved components: for each overloaded agent, the
// cheapest-to-move intents are shifted onto capable agents with slack.
// Agents are processed in name order and intents by (cost increase, id),
// so the repair is deterministic.
func (p *problem) repairCapacity(assign cost.Assignment) error {
	load := make(map[string]int, len(p.pool.Agents))
	for _, name := range assign {
		load[name]++
	}

	var overloaded []string
	for i := range p.pool.Agents {
		a := &p.pool.Agents[i]
		if load[a.Name] > a.Capacity {
			overloaded = append(overloaded, a.Name)
		}
	}
	sort.Strings(overloaded)

	var stuck []string
	for _, name := range overloaded {
		excess := load[name] - p.pool.ByName(name).Capacity

		type move struct {
			id    string
			delta float64
			to    string
		}
		var moves []move
		for i := range p.intents {
			it := &p.intents[i]
			if assign[it.ID] != name {
				continue
			}
			cur, _ := p.matrix.Cost(it.ID, name)
			// Options are sorted cheapest-first, so the first capable
			// agent with slack is this intent's best alternative.
			for _, opt := range p.matrix.Options(it.ID) {
				alt := opt.Agent.Name
				if alt == name || load[alt] >= p.pool.ByName(alt).Capacity {
					continue
				}
				moves = append(moves, move{id: it.ID, delta: opt.Cost - cur, to: alt})
				break
			}
		}
		sort.Slice(moves, func(i, j int) bool {
			if moves[i].delta != moves[j].delta {
				return moves[i].delta < moves[j].delta
			}
			return moves[i].id < moves[j].id
		})

		for _, mv := range moves {
			if excess == 0 {
				break
			}
			if load[mv.to] >= p.pool.ByName(mv.to).Capacity {
				continue
			}
			assign[mv.id] = mv.to
			load[name]--
			load[mv.to]++
			excess--
		}
		if excess > 0 {
			stuck = append(stuck, name)
		}
	}

	if len(stuck) > 0 {
		return fmt.Errorf("%w: %s", errMergeConflict, strings.Join(stuck, ", "))
	}
	return nil
}
