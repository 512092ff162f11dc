package plan

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gman622/qroute/internal/agent"
	"github.com/gman622/qroute/internal/cost"
	"github.com/gman622/qroute/internal/intent"
	"github.com/gman622/qroute/internal/profile"
	"github.com/gman622/qroute/internal/solve"
)

func mkAgent(name string, quality, rate float64, capacity int, maxTier intent.Complexity) agent.Agent {
	return agent.Agent{
		Name:         name,
		Type:         name,
		Quality:      quality,
		TokenRate:    rate,
		Throughput:   600,
		Capacity:     capacity,
		Capabilities: agent.TiersUpTo(maxTier),
	}
}

func mkIntent(id string, c intent.Complexity, floor float64, deps ...string) intent.Intent {
	return intent.Intent{ID: id, Title: id, Complexity: c, QualityFloor: floor, DependsOn: deps}
}

func buildPlan(t *testing.T, intents []intent.Intent, pool *agent.Pool) *Plan {
	t.Helper()
	p, err := Build(context.Background(), intents, pool, solve.Options{Params: cost.Params{}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return p
}

func TestBuild_EmptyBacklog(t *testing.T) {
	t.Parallel()

	p := buildPlan(t, nil, agent.DefaultPool())

	if p.TotalIntents != 0 || p.TotalWaves != 0 || p.PeakParallelism != 0 {
		t.Errorf("empty backlog: got totals %d/%d/%d, want all zero",
			p.TotalIntents, p.TotalWaves, p.PeakParallelism)
	}
	if len(p.Waves) != 0 {
		t.Errorf("expected zero waves, got %d", len(p.Waves))
	}
	if len(p.CriticalPath) != 0 {
		t.Errorf("expected empty critical path, got %v", p.CriticalPath)
	}
}

func TestBuild_SingleIntent(t *testing.T) {
	t.Parallel()

	intents := []intent.Intent{mkIntent("solo", intent.Simple, 0.5)}
	pool := agent.NewPool([]agent.Agent{mkAgent("only", 0.9, 0.001, 5, intent.Epic)})

	p := buildPlan(t, intents, pool)

	if p.TotalWaves != 1 || p.SerialDepth != 1 || p.PeakParallelism != 1 {
		t.Errorf("single intent: waves=%d depth=%d peak=%d, want 1/1/1",
			p.TotalWaves, p.SerialDepth, p.PeakParallelism)
	}
	if diff := cmp.Diff([]string{"solo"}, p.CriticalPath); diff != "" {
		t.Errorf("critical path mismatch (-want +got):\n%s", diff)
	}
	e := p.Entry("solo")
	if e == nil {
		t.Fatal("Entry(solo) returned nil")
	}
	if e.Agent != "only" || e.Model != "only" || e.Wave != 0 {
		t.Errorf("entry = %+v, want agent/model 'only' in wave 0", e)
	}
}

func TestBuild_ChainOfThree(t *testing.T) {
	t.Parallel()

	intents := []intent.Intent{
		mkIntent("a", intent.Trivial, 0.5),
		mkIntent("b", intent.Simple, 0.5, "a"),
		mkIntent("c", intent.Moderate, 0.5, "b"),
	}
	pool := agent.NewPool([]agent.Agent{
		mkAgent("cheap", 0.6, 0.001, 5, intent.Epic),
		mkAgent("pricey", 0.95, 0.01, 5, intent.Epic),
	})

	p := buildPlan(t, intents, pool)

	if p.TotalWaves != 3 || p.PeakParallelism != 1 || p.SerialDepth != 3 {
		t.Errorf("chain: waves=%d peak=%d depth=%d, want 3/1/3",
			p.TotalWaves, p.PeakParallelism, p.SerialDepth)
	}
	if p.BottleneckWave != 0 {
		t.Errorf("bottleneck = %d, want 0 (ties go to the earliest wave)", p.BottleneckWave)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, p.CriticalPath); diff != "" {
		t.Errorf("critical path mismatch (-want +got):\n%s", diff)
	}
	if p.TotalEstimatedCost != 7.0 {
		t.Errorf("total cost = %v, want 7.0", p.TotalEstimatedCost)
	}
	if p.TotalEstimatedTokens != 7000 {
		t.Errorf("total tokens = %d, want 7000", p.TotalEstimatedTokens)
	}
	if got := p.ProfileLoad[profile.Implementer]; got != 3 {
		t.Errorf("implementer load = %d, want 3", got)
	}

	for wi, wantID := range []string{"a", "b", "c"} {
		w := p.Waves[wi]
		if len(w.Intents) != 1 || w.Intents[0].ID != wantID {
			t.Fatalf("wave %d = %+v, want single intent %q", wi, w.Intents, wantID)
		}
		if w.Intents[0].Agent != "cheap" {
			t.Errorf("wave %d assigned to %q, want cheap", wi, w.Intents[0].Agent)
		}
		if w.AgentsNeeded != 1 {
			t.Errorf("wave %d agents_needed = %d, want 1", wi, w.AgentsNeeded)
		}
	}
	if p.Waves[2].EstimatedCost != 5.0 {
		t.Errorf("wave 2 cost = %v, want 5.0", p.Waves[2].EstimatedCost)
	}
}

func TestBuild_DisconnectedSingleWave(t *testing.T) {
	t.Parallel()

	var intents []intent.Intent
	for _, id := range []string{"t1", "t2", "t3", "t4", "t5", "t6"} {
		intents = append(intents, mkIntent(id, intent.Trivial, 0.5))
	}
	pool := agent.NewPool([]agent.Agent{
		mkAgent("alpha", 0.8, 0.001, 3, intent.Epic),
		mkAgent("beta", 0.8, 0.001, 3, intent.Epic),
	})

	p := buildPlan(t, intents, pool)

	if p.TotalWaves != 1 || p.PeakParallelism != 6 {
		t.Errorf("disconnected: waves=%d peak=%d, want 1/6", p.TotalWaves, p.PeakParallelism)
	}
	if p.Waves[0].AgentsNeeded != 2 {
		t.Errorf("agents_needed = %d, want 2 (capacity 3 each)", p.Waves[0].AgentsNeeded)
	}
	if len(p.CriticalPath) != 1 {
		t.Errorf("critical path = %v, want a single intent", p.CriticalPath)
	}
}

// The critical path is measured in wall time, not hops: a single heavy
// intent outweighs a two-intent chain of light ones.
func TestBuild_CriticalPathWeighedByDuration(t *testing.T) {
	t.Parallel()

	intents := []intent.Intent{
		mkIntent("light-1", intent.Trivial, 0.5),
		mkIntent("light-2", intent.Trivial, 0.5, "light-1"),
		mkIntent("heavy", intent.Moderate, 0.5),
	}
	pool := agent.NewPool([]agent.Agent{mkAgent("worker", 0.9, 0.001, 5, intent.Epic)})

	p := buildPlan(t, intents, pool)

	// 5000 tokens beats 500 + 500 at equal throughput.
	if diff := cmp.Diff([]string{"heavy"}, p.CriticalPath); diff != "" {
		t.Errorf("critical path mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_BottleneckIsLargestWave(t *testing.T) {
	t.Parallel()

	intents := []intent.Intent{
		mkIntent("root", intent.Simple, 0.5),
		mkIntent("mid-1", intent.Simple, 0.5, "root"),
		mkIntent("mid-2", intent.Simple, 0.5, "root"),
		mkIntent("mid-3", intent.Simple, 0.5, "root"),
		mkIntent("tail", intent.Simple, 0.5, "mid-1"),
	}
	pool := agent.NewPool([]agent.Agent{mkAgent("worker", 0.9, 0.001, 10, intent.Epic)})

	p := buildPlan(t, intents, pool)

	if p.TotalWaves != 3 {
		t.Fatalf("waves = %d, want 3", p.TotalWaves)
	}
	if p.BottleneckWave != 1 {
		t.Errorf("bottleneck = %d, want 1 (the three-intent wave)", p.BottleneckWave)
	}
	if p.PeakParallelism != 3 {
		t.Errorf("peak = %d, want 3", p.PeakParallelism)
	}
}

func TestBuild_EntryCarriesIntentFields(t *testing.T) {
	t.Parallel()

	it := mkIntent("tagged", intent.Simple, 0.5)
	it.Tags = []string{"docs"}
	it.Workflow = "release-notes"
	dep := mkIntent("base", intent.Trivial, 0.5)
	it.DependsOn = []string{"base"}

	pool := agent.NewPool([]agent.Agent{mkAgent("gemini", 0.85, 0.001, 5, intent.Epic)})
	p := buildPlan(t, []intent.Intent{dep, it}, pool)

	e := p.Entry("tagged")
	if e == nil {
		t.Fatal("Entry(tagged) returned nil")
	}
	if e.Profile != profile.DocWriter {
		t.Errorf("profile = %s, want %s", e.Profile, profile.DocWriter)
	}
	if e.Workflow != "release-notes" {
		t.Errorf("workflow = %q, want release-notes", e.Workflow)
	}
	if diff := cmp.Diff([]string{"base"}, e.DependsOn); diff != "" {
		t.Errorf("depends_on mismatch (-want +got):\n%s", diff)
	}
	if e.Complexity != intent.Simple || e.EstimatedTokens != 1500 {
		t.Errorf("entry = %+v, want simple/1500", e)
	}

	base := p.Entry("base")
	if base.DependsOn == nil || len(base.DependsOn) != 0 {
		t.Errorf("base.DependsOn = %#v, want empty non-nil slice", base.DependsOn)
	}
}

func TestBuild_CycleFails(t *testing.T) {
	t.Parallel()

	intents := []intent.Intent{
		mkIntent("a", intent.Simple, 0.5, "b"),
		mkIntent("b", intent.Simple, 0.5, "a"),
	}
	pool := agent.NewPool([]agent.Agent{mkAgent("worker", 0.9, 0.001, 5, intent.Epic)})

	_, err := Build(context.Background(), intents, pool, solve.Options{})
	if err == nil {
		t.Fatal("expected cycle error, got nil")
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Errorf("error = %v, want mention of the cycle", err)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	intents := []intent.Intent{
		mkIntent("a", intent.Trivial, 0.5),
		mkIntent("b", intent.Simple, 0.5, "a"),
		mkIntent("c", intent.Moderate, 0.5, "b"),
	}
	pool := agent.NewPool([]agent.Agent{
		mkAgent("cheap", 0.6, 0.001, 5, intent.Epic),
		mkAgent("pricey", 0.95, 0.01, 5, intent.Epic),
	})
	p := buildPlan(t, intents, pool)

	path := filepath.Join(t.TempDir(), "plan.json")
	if err := Save(p, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(p, loaded); diff != "" {
		t.Errorf("plan did not survive the round trip (-want +got):\n%s", diff)
	}
}

func TestLoad_Missing(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error loading missing plan")
	}
}

func TestIntentIDs_WaveOrder(t *testing.T) {
	t.Parallel()

	intents := []intent.Intent{
		mkIntent("z-late", intent.Simple, 0.5, "a-early"),
		mkIntent("a-early", intent.Trivial, 0.5),
	}
	pool := agent.NewPool([]agent.Agent{mkAgent("worker", 0.9, 0.001, 5, intent.Epic)})
	p := buildPlan(t, intents, pool)

	if diff := cmp.Diff([]string{"a-early", "z-late"}, p.IntentIDs()); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}
