// Package solve binds intents to concrete agent instances at minimum
// cost, subject to capability, quality-floor, and capacity constraints.
//
// Three strategies cover the practical size range: a greedy pass for
// small problems, branch-and-bound with an admissible lower bound for
// medium ones, and connected-component decomposition for large sparse
// backlogs. Solve classifies the problem by intent count, dependency
// density, and chain depth to pick a strategy, and falls back down the
// ladder when a strategy cannot produce an assignment. All strategies
// are deterministic for identical inputs.
package solve

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gman622/qroute/internal/agent"
	"github.com/gman622/qroute/internal/cost"
	"github.com/gman622/qroute/internal/dag"
	"github.com/gman622/qroute/internal/intent"
)

// Strategy selects the solver algorithm.
type Strategy string

const (
	// StrategyAuto picks a strategy from the problem size.
	StrategyAuto        Strategy = ""
	StrategyGreedy      Strategy = "greedy"
	StrategyBranchBound Strategy = "branch-and-bound"
	StrategyDecompose   Strategy = "decompose"
)

// DefaultTimeLimit bounds branch-and-bound search when Options.TimeLimit
// is zero.
const DefaultTimeLimit = 10 * time.Second

// Options configure a solve.
type Options struct {
	Params cost.Params

	// TimeLimit caps wall-clock search time. Zero means DefaultTimeLimit.
	TimeLimit time.Duration

	// BudgetCap soft-caps total token spend in currency units: spend above
	// the cap incurs a quadratic objective penalty. Zero disables it.
	BudgetCap float64

	// QualityFloorOverride raises every intent's effective quality floor
	// to at least this value. Zero disables it.
	QualityFloorOverride float64

	// Strategy forces a specific algorithm; StrategyAuto picks one.
	Strategy Strategy

	// Seed is carried for reproducibility bookkeeping. The bundled
	// strategies are deterministic and do not consume randomness.
	Seed int64

	// Log receives debug-level solve diagnostics. Nil means no logging.
	Log *zap.Logger
}

// Report describes how a solution was obtained.
type Report struct {
	Strategy  Strategy       `json:"strategy"`
	Objective float64        `json:"objective"`
	Breakdown cost.Breakdown `json:"breakdown"`

	// Difficulty is the composite problem score in [0, 1] blending intent
	// count, dependency density, and chain depth.
	Difficulty float64 `json:"difficulty"`

	// Optimal is true when the search space was exhausted, false when the
	// result is merely the best feasible assignment found.
	Optimal bool `json:"optimal"`

	// TimedOut marks a search cut short by the time budget.
	TimedOut bool          `json:"timed_out,omitempty"`
	WallTime time.Duration `json:"wall_time"`

	// Nodes counts branch-and-bound search nodes explored.
	Nodes int64 `json:"nodes,omitempty"`
}

// Solution is a feasible assignment plus its report.
type Solution struct {
	Assignment cost.Assignment
	Report     Report
}

// Solve produces a minimum-cost assignment of intents to agent
// instances. It returns an *InfeasibleError when some intents cannot be
// served at all, and a *dag.CycleError when the dependency graph is
// cyclic.
func Solve(ctx context.Context, intents []intent.Intent, pool *agent.Pool, opts Options) (*Solution, error) {
	start := time.Now()

	if pool == nil || len(pool.Agents) == 0 {
		return nil, ErrEmptyPool
	}
	if len(intents) == 0 {
		return &Solution{
			Assignment: cost.Assignment{},
			Report:     Report{Strategy: chooseStrategy(opts.Strategy, characteristics{}), Optimal: true, WallTime: time.Since(start)},
		}, nil
	}

	eff := effectiveIntents(intents, opts.QualityFloorOverride)

	g, err := intent.GraphOf(eff)
	if err != nil {
		return nil, fmt.Errorf("building dependency graph: %w", err)
	}
	waves, err := g.Waves()
	if err != nil {
		return nil, err
	}
	waveOf := make(map[string]int, len(eff))
	for w, ids := range waves {
		for _, id := range ids {
			waveOf[id] = w
		}
	}

	m := cost.BuildMatrix(eff, pool, opts.Params)
	if ids := m.Infeasible(); len(ids) > 0 {
		return nil, &InfeasibleError{Intents: ids, Reason: "no capable agent"}
	}

	prob := &problem{
		intents: eff,
		pool:    pool,
		graph:   g,
		waveOf:  waveOf,
		matrix:  m,
		opts:    opts,
	}

	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	chars := classify(g)
	log.Debug("problem classified",
		zap.Int("intents", chars.Tasks),
		zap.Int("edges", chars.Edges),
		zap.Float64("density", chars.Density),
		zap.Float64("avg_chain", chars.AvgChain),
		zap.Float64("difficulty", chars.Score))

	var lastErr error
	for _, s := range fallbackChain(chooseStrategy(opts.Strategy, chars)) {
		sol, err := prob.run(ctx, s)
		if err == nil {
			sol.Report.Difficulty = chars.Score
			sol.Report.WallTime = time.Since(start)
			log.Debug("solve finished",
				zap.String("strategy", string(sol.Report.Strategy)),
				zap.Float64("objective", sol.Report.Objective),
				zap.Bool("optimal", sol.Report.Optimal),
				zap.Int64("nodes", sol.Report.Nodes),
				zap.Duration("wall_time", sol.Report.WallTime))
			return sol, nil
		}
		if IsInfeasible(err) {
			return nil, err
		}
		log.Debug("strategy failed, falling back",
			zap.String("strategy", string(s)),
			zap.Error(err))
		lastErr = err
	}
	return nil, lastErr
}

// problem carries the shared solve state across strategies.
type problem struct {
	intents []intent.Intent
	pool    *agent.Pool
	graph   *dag.DAG
	waveOf  map[string]int
	matrix  *cost.Matrix
	opts    Options
}

func (p *problem) run(ctx context.Context, s Strategy) (*Solution, error) {
	switch s {
	case StrategyGreedy:
		assign, err := p.greedy()
		if err != nil {
			return nil, err
		}
		return p.finish(assign, Report{Strategy: StrategyGreedy})
	case StrategyBranchBound:
		return p.branchBound(ctx)
	case StrategyDecompose:
		return p.decompose(ctx)
	default:
		return nil, fmt.Errorf("unknown solver strategy %q", s)
	}
}

// finish verifies an assignment against the hard constraints, evaluates
// it, and wraps it into a Solution. A constraint violation here is a
// strategy bug, not an input problem, and fails the solve outright.
func (p *problem) finish(assign cost.Assignment, report Report) (*Solution, error) {
	if problems := Verify(p.intents, p.pool, assign); len(problems) > 0 {
		return nil, fmt.Errorf("solver produced an invalid assignment: %s", strings.Join(problems, "; "))
	}
	breakdown, err := cost.Objective(p.intents, assign, p.waveOf, p.matrix)
	if err != nil {
		return nil, err
	}
	report.Breakdown = breakdown
	report.Objective = breakdown.Total + p.budgetPenalty(assign)
	return &Solution{Assignment: assign, Report: report}, nil
}

// budgetPenalty is the soft budget-cap term: quadratic in the spend above
// the cap so small overruns stay cheap and large ones dominate.
func (p *problem) budgetPenalty(assign cost.Assignment) float64 {
	if p.opts.BudgetCap <= 0 {
		return 0
	}
	over := p.tokenSpend(assign) - p.opts.BudgetCap
	if over <= 0 {
		return 0
	}
	return over * over
}

func (p *problem) tokenSpend(assign cost.Assignment) float64 {
	spend := 0.0
	for i := range p.intents {
		it := &p.intents[i]
		if a := p.pool.ByName(assign[it.ID]); a != nil {
			spend += cost.TokenCost(it, a)
		}
	}
	return spend
}

func (p *problem) timeLimit() time.Duration {
	if p.opts.TimeLimit > 0 {
		return p.opts.TimeLimit
	}
	return DefaultTimeLimit
}

// fallbackChain lists the strategies to try, strongest first. Greedy is
// the terminal fallback: if it cannot place every intent the problem is
// treated as infeasible.
func fallbackChain(s Strategy) []Strategy {
	switch s {
	case StrategyBranchBound:
		return []Strategy{StrategyBranchBound, StrategyGreedy}
	case StrategyDecompose:
		return []Strategy{StrategyDecompose, StrategyBranchBound, StrategyGreedy}
	default:
		return []Strategy{s}
	}
}

// effectiveIntents applies the quality-floor override, returning a copy
// so callers' intents stay untouched.
func effectiveIntents(intents []intent.Intent, override float64) []intent.Intent {
	eff := make([]intent.Intent, len(intents))
	copy(eff, intents)
	if override <= 0 {
		return eff
	}
	for i := range eff {
		if eff[i].Floor() < override {
			eff[i].QualityFloor = override
		}
	}
	return eff
}

// solveOrder returns intents hardest-first: descending complexity, then
// id for determinism.
func solveOrder(intents []intent.Intent) []*intent.Intent {
	out := make([]*intent.Intent, len(intents))
	for i := range intents {
		out[i] = &intents[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Complexity.Rank(), out[j].Complexity.Rank()
		if ri != rj {
			return ri > rj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func capacityMap(pool *agent.Pool) map[string]int {
	remaining := make(map[string]int, len(pool.Agents))
	for i := range pool.Agents {
		remaining[pool.Agents[i].Name] = pool.Agents[i].Capacity
	}
	return remaining
}
