package intent

import (
	"testing"
)

func TestComplexityRank(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tier Complexity
		want int
	}{
		{Trivial, 0},
		{Simple, 1},
		{Moderate, 2},
		{Complex, 3},
		{VeryComplex, 4},
		{Epic, 5},
		{Complexity("nonsense"), -1},
	}
	for _, tt := range tests {
		if got := tt.tier.Rank(); got != tt.want {
			t.Errorf("Rank(%q) = %d, want %d", tt.tier, got, tt.want)
		}
	}
}

func TestComplexityValid(t *testing.T) {
	t.Parallel()

	for _, tier := range Tiers {
		if !tier.Valid() {
			t.Errorf("tier %q should be valid", tier)
		}
	}
	if Complexity("heroic").Valid() {
		t.Error("unknown tier should not be valid")
	}
}

func TestTokensFallback(t *testing.T) {
	t.Parallel()

	explicit := Intent{Complexity: Moderate, EstimatedTokens: 777}
	if got := explicit.Tokens(); got != 777 {
		t.Errorf("explicit Tokens() = %d, want 777", got)
	}

	implicit := Intent{Complexity: Moderate}
	if got := implicit.Tokens(); got != 5000 {
		t.Errorf("tier-default Tokens() = %d, want 5000", got)
	}
}

func TestFloorFallback(t *testing.T) {
	t.Parallel()

	explicit := Intent{Complexity: Epic, QualityFloor: 0.5}
	if got := explicit.Floor(); got != 0.5 {
		t.Errorf("explicit Floor() = %g, want 0.5", got)
	}

	implicit := Intent{Complexity: Epic}
	if got := implicit.Floor(); got != 0.95 {
		t.Errorf("tier-default Floor() = %g, want 0.95", got)
	}
}

func TestPointsFallback(t *testing.T) {
	t.Parallel()

	explicit := Intent{Complexity: Trivial, StoryPoints: 8}
	if got := explicit.Points(); got != 8 {
		t.Errorf("explicit Points() = %d, want 8", got)
	}

	implicit := Intent{Complexity: Complex}
	if got := implicit.Points(); got != 5 {
		t.Errorf("tier-default Points() = %d, want 5", got)
	}
}

func TestBundleByIDAndIDs(t *testing.T) {
	t.Parallel()

	b := &Bundle{Intents: []Intent{
		{ID: "zeta", Complexity: Trivial},
		{ID: "alpha", Complexity: Simple},
	}}

	ids := b.IDs()
	if len(ids) != 2 || ids[0] != "alpha" || ids[1] != "zeta" {
		t.Errorf("IDs() = %v, want [alpha zeta]", ids)
	}

	byID := b.ByID()
	if byID["alpha"].Complexity != Simple {
		t.Errorf("ByID lookup returned wrong intent: %+v", byID["alpha"])
	}

	// Mutations through the map must be visible in the bundle.
	byID["alpha"].EstimatedTokens = 42
	if b.Intents[1].EstimatedTokens != 42 {
		t.Error("ByID should alias the bundle's backing slice")
	}
}

func TestBundleTotalTokens(t *testing.T) {
	t.Parallel()

	b := &Bundle{Intents: []Intent{
		{ID: "a", Complexity: Trivial},                        // 500
		{ID: "b", Complexity: Simple, EstimatedTokens: 2000},  // explicit
	}}
	if got := b.TotalTokens(); got != 2500 {
		t.Errorf("TotalTokens() = %d, want 2500", got)
	}
}
