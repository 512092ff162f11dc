package solve

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/gman622/qroute/internal/cost"
	"github.com/gman622/qroute/internal/intent"
)

// errSearchTimeout signals that the time budget expired before any
// feasible assignment was found; the caller falls back to greedy.
var errSearchTimeout = errors.New("search time limit reached before a feasible assignment was found")

const objEpsilon = 1e-9

// branchBound runs depth-first branch-and-bound over the assignment
// space. Intents are expanded most-constrained-first, agents cheapest-
// first, and subtrees are pruned with an admissible lower bound: the
// cost so far, plus each unassigned intent's cheapest pair, minus the
// full context bonus for every edge that could still be collapsed onto
// one agent. The greedy solution seeds the incumbent so pruning starts
// immediately; on timeout the best incumbent is returned and the report
// marked non-optimal.
func (p *problem) branchBound(ctx context.Context) (*Solution, error) {
	s := &search{
		p:          p,
		ctx:        ctx,
		deadline:   time.Now().Add(p.timeLimit()),
		order:      p.searchOrder(),
		remaining:  capacityMap(p.pool),
		assign:     make(cost.Assignment, len(p.intents)),
		bonus:      p.opts.Params.ContextBonus,
		depPenalty: p.opts.Params.DepQualityPenalty,
		openEdges:  p.graph.EdgeCount(),
	}

	s.ids = make([]string, 0, len(p.intents))
	for i := range p.intents {
		s.ids = append(s.ids, p.intents[i].ID)
	}
	sort.Strings(s.ids)

	// Per-position constants: the deadline penalty is fixed by the wave
	// index regardless of agent choice.
	s.base = make([]float64, len(s.order))
	for i, it := range s.order {
		s.base[i] = cost.DeadlinePenalty(it, p.waveOf[it.ID], p.opts.Params)
	}
	s.minTail = make([]float64, len(s.order)+1)
	for i := len(s.order) - 1; i >= 0; i-- {
		s.minTail[i] = s.minTail[i+1] + p.matrix.MinCost(s.order[i].ID) + s.base[i]
	}

	// Seed the incumbent with the greedy solution.
	seed, seedErr := p.greedy()
	if seedErr == nil {
		breakdown, err := cost.Objective(p.intents, seed, p.waveOf, p.matrix)
		if err != nil {
			return nil, err
		}
		s.accept(seed, breakdown.Total+p.budgetPenalty(seed))
	}

	s.explore(0)

	if !s.haveBest {
		if s.timedOut {
			return nil, errSearchTimeout
		}
		if seedErr != nil {
			return nil, seedErr
		}
		return nil, &InfeasibleError{Intents: s.ids, Reason: "agent capacity exhausted"}
	}

	return p.finish(s.best, Report{
		Strategy: StrategyBranchBound,
		Optimal:  !s.timedOut,
		TimedOut: s.timedOut,
		Nodes:    s.nodes,
	})
}

// searchOrder expands intents with the fewest agent options first, then
// hardest-first, then by id.
func (p *problem) searchOrder() []*intent.Intent {
	order := solveOrder(p.intents)
	sort.SliceStable(order, func(i, j int) bool {
		return len(p.matrix.Options(order[i].ID)) < len(p.matrix.Options(order[j].ID))
	})
	return order
}

type search struct {
	p        *problem
	ctx      context.Context
	deadline time.Time

	order   []*intent.Intent
	base    []float64 // deadline penalty per order position
	minTail []float64 // lower bound on the cost of positions >= i
	ids     []string  // id-sorted, for the tie-break key

	remaining    map[string]int
	assign       cost.Assignment
	runningCost  float64
	runningSpend float64 // token spend, for the budget cap
	openEdges    int     // edges with at least one unassigned endpoint
	bonus        float64
	depPenalty   float64

	nodes    int64
	timedOut bool

	haveBest     bool
	best         cost.Assignment
	bestObj      float64
	bestDistinct int
	bestKey      string
}

func (s *search) explore(depth int) {
	if s.timedOut {
		return
	}
	s.nodes++
	if s.nodes%512 == 0 && (time.Now().After(s.deadline) || s.ctx.Err() != nil) {
		s.timedOut = true
		return
	}

	if depth == len(s.order) {
		obj := s.runningCost
		if limit := s.p.opts.BudgetCap; limit > 0 && s.runningSpend > limit {
			over := s.runningSpend - limit
			obj += over * over
		}
		s.accept(s.assign, obj)
		return
	}

	if s.haveBest {
		bound := s.runningCost + s.minTail[depth] - s.bonus*float64(s.openEdges)
		if bound > s.bestObj+objEpsilon {
			return
		}
	}

	it := s.order[depth]
	for _, opt := range s.p.matrix.Options(it.ID) {
		name := opt.Agent.Name
		if s.remaining[name] == 0 {
			continue
		}

		closed, gained, penalty := s.edgeDelta(it.ID, name)
		spend := float64(it.Tokens()) * opt.Agent.TokenRate

		s.assign[it.ID] = name
		s.remaining[name]--
		s.runningCost += opt.Cost + s.base[depth] - gained + penalty
		s.runningSpend += spend
		s.openEdges -= closed

		s.explore(depth + 1)

		s.openEdges += closed
		s.runningSpend -= spend
		s.runningCost -= opt.Cost + s.base[depth] - gained + penalty
		s.remaining[name]++
		delete(s.assign, it.ID)

		if s.timedOut {
			return
		}
	}
}

// edgeDelta reports, for assigning id to name, how many incident edges
// become fully assigned, how much context bonus those edges earn, and
// how much quality-deficit penalty they incur.
func (s *search) edgeDelta(id, name string) (closed int, gained, penalty float64) {
	q := s.p.matrix.Quality(name)
	for _, nb := range s.p.graph.Dependencies(id) {
		if prev, ok := s.assign[nb]; ok {
			closed++
			switch {
			case prev == name:
				gained += s.bonus
			case q < s.p.matrix.Quality(prev):
				penalty += s.depPenalty
			}
		}
	}
	for _, nb := range s.p.graph.Dependents(id) {
		if prev, ok := s.assign[nb]; ok {
			closed++
			switch {
			case prev == name:
				gained += s.bonus
			case s.p.matrix.Quality(prev) < q:
				penalty += s.depPenalty
			}
		}
	}
	return closed, gained, penalty
}

// accept installs a candidate if it beats the incumbent: lower
// objective first, then fewer distinct agents, then the lexicographically
// smaller agent sequence over id-sorted intents.
func (s *search) accept(assign cost.Assignment, obj float64) {
	distinct := assign.DistinctAgents()
	key := s.candidateKey(assign)

	if s.haveBest {
		switch {
		case obj < s.bestObj-objEpsilon:
		case obj > s.bestObj+objEpsilon:
			return
		case distinct < s.bestDistinct:
		case distinct > s.bestDistinct:
			return
		case key < s.bestKey:
		default:
			return
		}
	}

	best := make(cost.Assignment, len(assign))
	for k, v := range assign {
		best[k] = v
	}
	s.haveBest = true
	s.best = best
	s.bestObj = obj
	s.bestDistinct = distinct
	s.bestKey = key
}

func (s *search) candidateKey(assign cost.Assignment) string {
	var b strings.Builder
	for _, id := range s.ids {
		b.WriteString(assign[id])
		b.WriteByte(0)
	}
	return b.String()
}
