package cost

import (
	"errors"
	"math"
	"testing"

	"github.com/gman622/qroute/internal/agent"
	"github.com/gman622/qroute/internal/intent"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func testAgent(name string, quality, rate, latency float64, capacity int, max intent.Complexity) agent.Agent {
	return agent.Agent{
		Name:         name,
		Type:         name,
		Quality:      quality,
		TokenRate:    rate,
		Latency:      latency,
		Capacity:     capacity,
		Capabilities: agent.TiersUpTo(max),
	}
}

func TestPair(t *testing.T) {
	t.Parallel()

	p := DefaultParams()
	it := &intent.Intent{ID: "a", Complexity: intent.Moderate, QualityFloor: 0.7, EstimatedTokens: 5000}

	t.Run("token plus overkill plus latency", func(t *testing.T) {
		t.Parallel()
		a := testAgent("claude", 0.95, 0.000020, 2.0, 25, intent.Epic)
		got, err := Pair(it, &a, p)
		if err != nil {
			t.Fatalf("Pair: %v", err)
		}
		token := 5000 * 0.000020                  // 0.1
		overkill := (0.95 - 0.7) * token * 2.0    // 0.05
		latency := 2.0 * 0.001                    // 0.002
		if want := token + overkill + latency; !almostEqual(got, want) {
			t.Errorf("Pair = %g, want %g", got, want)
		}
	})

	t.Run("no overkill at exactly the floor", func(t *testing.T) {
		t.Parallel()
		a := testAgent("exact", 0.7, 0.000010, 0, 5, intent.Epic)
		got, err := Pair(it, &a, p)
		if err != nil {
			t.Fatalf("Pair: %v", err)
		}
		if want := 5000 * 0.000010; !almostEqual(got, want) {
			t.Errorf("Pair = %g, want pure token cost %g", got, want)
		}
	})

	t.Run("free local agent costs only latency", func(t *testing.T) {
		t.Parallel()
		a := testAgent("local", 0.72, 0, 1.0, 2, intent.Moderate)
		got, err := Pair(it, &a, p)
		if err != nil {
			t.Fatalf("Pair: %v", err)
		}
		// Zero token cost zeroes the overkill term too.
		if want := 1.0 * 0.001; !almostEqual(got, want) {
			t.Errorf("Pair = %g, want %g", got, want)
		}
	})

	t.Run("quality under floor is infeasible", func(t *testing.T) {
		t.Parallel()
		a := testAgent("weak", 0.6, 0, 1.0, 2, intent.Epic)
		_, err := Pair(it, &a, p)
		if !errors.Is(err, ErrInfeasible) {
			t.Errorf("Pair = %v, want ErrInfeasible", err)
		}
	})

	t.Run("tier outside capabilities is infeasible", func(t *testing.T) {
		t.Parallel()
		a := testAgent("narrow", 0.99, 0, 1.0, 2, intent.Simple)
		_, err := Pair(it, &a, p)
		if !errors.Is(err, ErrInfeasible) {
			t.Errorf("Pair = %v, want ErrInfeasible", err)
		}
	})
}

func TestDeadlinePenalty(t *testing.T) {
	t.Parallel()

	p := DefaultParams()

	d := 2
	it := &intent.Intent{ID: "a", Complexity: intent.Simple, Deadline: &d}

	tests := []struct {
		wave int
		want float64
	}{
		{0, 0}, // completes at 0, due at 2
		{2, 0}, // exactly on time
		{3, 1}, // one unit late
		{5, 3},
	}
	for _, tt := range tests {
		if got := DeadlinePenalty(it, tt.wave, p); !almostEqual(got, tt.want) {
			t.Errorf("DeadlinePenalty(wave=%d) = %g, want %g", tt.wave, got, tt.want)
		}
	}

	noDeadline := &intent.Intent{ID: "b", Complexity: intent.Simple}
	if got := DeadlinePenalty(noDeadline, 99, p); got != 0 {
		t.Errorf("intent without deadline should never be late, got %g", got)
	}

	// Weight and wave duration scale the penalty.
	scaled := p
	scaled.DeadlineWeight = 2.0
	scaled.TimePerWave = 3.0
	if got := DeadlinePenalty(it, 1, scaled); !almostEqual(got, 2.0) {
		t.Errorf("scaled penalty = %g, want 2.0", got) // completes at 3, due 2, late 1, x2
	}
}

func TestBuildMatrix(t *testing.T) {
	t.Parallel()

	pool := agent.NewPool([]agent.Agent{
		testAgent("cheap", 0.6, 0.001, 0, 5, intent.Epic),
		testAgent("pricey", 0.95, 0.01, 0, 5, intent.Epic),
	})
	intents := []intent.Intent{
		{ID: "a", Complexity: intent.Trivial, QualityFloor: 0.5},
		{ID: "b", Complexity: intent.Simple, QualityFloor: 0.9}, // only pricey clears
		{ID: "c", Complexity: intent.Moderate, QualityFloor: 0.99}, // nobody clears
	}

	m := BuildMatrix(intents, pool, DefaultParams())

	aOpts := m.Options("a")
	if len(aOpts) != 2 {
		t.Fatalf("a has %d options, want 2", len(aOpts))
	}
	// Cheapest first: cheap = 500*0.001*(1+0.1*2) = 0.6; pricey = 500*0.01*(1+0.45*2) = 9.5.
	if aOpts[0].Agent.Name != "cheap" {
		t.Errorf("cheapest option for a = %s, want cheap", aOpts[0].Agent.Name)
	}
	if !almostEqual(m.MinCost("a"), 0.6) {
		t.Errorf("MinCost(a) = %g, want 0.6", m.MinCost("a"))
	}

	if opts := m.Options("b"); len(opts) != 1 || opts[0].Agent.Name != "pricey" {
		t.Errorf("options for b = %v, want only pricey", opts)
	}

	if got, ok := m.Cost("a", "pricey"); !ok || !almostEqual(got, 9.5) {
		t.Errorf("Cost(a, pricey) = %g/%v, want 9.5", got, ok)
	}
	if _, ok := m.Cost("b", "cheap"); ok {
		t.Error("infeasible pairing should not be priced")
	}

	inf := m.Infeasible()
	if len(inf) != 1 || inf[0] != "c" {
		t.Errorf("Infeasible = %v, want [c]", inf)
	}
}

func TestMatrixTieBreaksByName(t *testing.T) {
	t.Parallel()

	pool := agent.NewPool([]agent.Agent{
		testAgent("bravo", 0.8, 0.001, 0, 5, intent.Epic),
		testAgent("alpha", 0.8, 0.001, 0, 5, intent.Epic),
	})
	intents := []intent.Intent{{ID: "a", Complexity: intent.Trivial, QualityFloor: 0.5}}

	m := BuildMatrix(intents, pool, DefaultParams())
	opts := m.Options("a")
	if len(opts) != 2 || opts[0].Agent.Name != "alpha" {
		t.Errorf("equal-cost options should sort by name, got %v", opts)
	}
}

func TestObjective(t *testing.T) {
	t.Parallel()

	pool := agent.NewPool([]agent.Agent{
		testAgent("solo", 0.9, 0.001, 0, 5, intent.Epic),
		testAgent("other", 0.9, 0.001, 0, 5, intent.Epic),
	})
	d := 0
	intents := []intent.Intent{
		{ID: "a", Complexity: intent.Trivial, QualityFloor: 0.9},
		{ID: "b", Complexity: intent.Trivial, QualityFloor: 0.9, DependsOn: []string{"a"}, Deadline: &d},
	}
	m := BuildMatrix(intents, pool, DefaultParams())
	waveOf := map[string]int{"a": 0, "b": 1}

	t.Run("affinity bonus applies on shared agent", func(t *testing.T) {
		t.Parallel()
		assign := Assignment{"a": "solo", "b": "solo"}
		got, err := Objective(intents, assign, waveOf, m)
		if err != nil {
			t.Fatalf("Objective: %v", err)
		}
		pair := 2 * (500 * 0.001) // no overkill at exact floor
		if !almostEqual(got.PairCost, pair) {
			t.Errorf("PairCost = %g, want %g", got.PairCost, pair)
		}
		// b lands in wave 1 with a deadline of 0: one unit late.
		if !almostEqual(got.DeadlinePenalty, 1.0) {
			t.Errorf("DeadlinePenalty = %g, want 1.0", got.DeadlinePenalty)
		}
		if !almostEqual(got.AffinityBonus, 0.5) {
			t.Errorf("AffinityBonus = %g, want 0.5", got.AffinityBonus)
		}
		if !almostEqual(got.Total, pair+1.0-0.5) {
			t.Errorf("Total = %g", got.Total)
		}

		if assign.DistinctAgents() != 1 {
			t.Errorf("DistinctAgents = %d, want 1", assign.DistinctAgents())
		}
	})

	t.Run("deficit charged when downstream agent is weaker", func(t *testing.T) {
		t.Parallel()
		pool := agent.NewPool([]agent.Agent{
			testAgent("strong", 0.9, 0.001, 0, 5, intent.Epic),
			testAgent("weak", 0.6, 0.001, 0, 5, intent.Epic),
		})
		chain := []intent.Intent{
			{ID: "up", Complexity: intent.Trivial, QualityFloor: 0.5},
			{ID: "down", Complexity: intent.Trivial, QualityFloor: 0.5, DependsOn: []string{"up"}},
		}
		m := BuildMatrix(chain, pool, DefaultParams())
		waves := map[string]int{"up": 0, "down": 1}

		got, err := Objective(chain, Assignment{"up": "strong", "down": "weak"}, waves, m)
		if err != nil {
			t.Fatalf("Objective: %v", err)
		}
		if !almostEqual(got.DepPenalty, 100.0) {
			t.Errorf("DepPenalty = %g, want 100.0", got.DepPenalty)
		}

		// The other direction is free: escalating a chain is fine.
		got, err = Objective(chain, Assignment{"up": "weak", "down": "strong"}, waves, m)
		if err != nil {
			t.Fatalf("Objective: %v", err)
		}
		if got.DepPenalty != 0 {
			t.Errorf("DepPenalty = %g, want 0 for a stronger downstream agent", got.DepPenalty)
		}
	})

	t.Run("no bonus on split agents", func(t *testing.T) {
		t.Parallel()
		assign := Assignment{"a": "solo", "b": "other"}
		got, err := Objective(intents, assign, waveOf, m)
		if err != nil {
			t.Fatalf("Objective: %v", err)
		}
		if got.AffinityBonus != 0 {
			t.Errorf("AffinityBonus = %g, want 0", got.AffinityBonus)
		}
		if assign.DistinctAgents() != 2 {
			t.Errorf("DistinctAgents = %d, want 2", assign.DistinctAgents())
		}
	})

	t.Run("unassigned intent errors", func(t *testing.T) {
		t.Parallel()
		_, err := Objective(intents, Assignment{"a": "solo"}, waveOf, m)
		if err == nil {
			t.Fatal("expected error for unassigned intent")
		}
	})

	t.Run("infeasible pairing errors", func(t *testing.T) {
		t.Parallel()
		_, err := Objective(intents, Assignment{"a": "ghost", "b": "solo"}, waveOf, m)
		if err == nil {
			t.Fatal("expected error for unknown agent")
		}
	})
}
