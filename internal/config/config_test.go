package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/gman622/qroute/internal/intent"
)

// resetViper clears all viper state between tests to avoid
// cross-contamination.
func resetViper() {
	viper.Reset()
}

func TestLoad_Defaults(t *testing.T) {
	resetViper()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"OverkillWeight", cfg.Solver.OverkillWeight, 2.0},
		{"LatencyWeight", cfg.Solver.LatencyWeight, 0.001},
		{"DeadlineWeight", cfg.Solver.DeadlineWeight, 1.0},
		{"ContextBonus", cfg.Solver.ContextBonus, 0.5},
		{"DepQualityPenalty", cfg.Solver.DepQualityPenalty, 100.0},
		{"BudgetCap", cfg.Solver.BudgetCap, 0.0},
		{"QualityFloorOverride", cfg.Solver.QualityFloorOverride, 0.0},
		{"TimeLimitSeconds", cfg.Solver.TimeLimitSeconds, 10.0},
		{"RandomSeed", cfg.Solver.RandomSeed, int64(42)},
		{"MaxWorkers", cfg.Executor.MaxWorkers, 8},
		{"MaxRetries", cfg.Executor.MaxRetries, 4},
		{"MinWaveQuality", cfg.Executor.MinWaveQuality, 0.70},
		{"SessionTimeoutSeconds", cfg.Executor.SessionTimeoutSeconds, 0.0},
		{"StrictWaves", cfg.Executor.StrictWaves, false},
		{"FailureRate", cfg.Sim.FailureRate, 0.15},
		{"QualityMean", cfg.Sim.QualityMean, 0.85},
		{"QualityStd", cfg.Sim.QualityStd, 0.08},
		{"JournalPath", cfg.Output.JournalPath, ".qroute/history.db"},
		{"TelemetryPath", cfg.Output.TelemetryPath, ""},
		{"Verbose", cfg.Verbose, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	resetViper()
	viper.SetEnvPrefix("QROUTE")
	viper.AutomaticEnv()

	os.Setenv("QROUTE_EXECUTOR.MAX_WORKERS", "3")
	defer os.Unsetenv("QROUTE_EXECUTOR.MAX_WORKERS")

	// Nested keys need explicit binding for env lookup.
	_ = viper.BindEnv("executor.max_workers", "QROUTE_EXECUTOR_MAX_WORKERS")
	os.Setenv("QROUTE_EXECUTOR_MAX_WORKERS", "3")
	defer os.Unsetenv("QROUTE_EXECUTOR_MAX_WORKERS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.Executor.MaxWorkers != 3 {
		t.Errorf("MaxWorkers = %d, want 3 from env", cfg.Executor.MaxWorkers)
	}
}

func TestLoad_SetOverrides(t *testing.T) {
	resetViper()

	viper.Set("solver.overkill_weight", 5.5)
	viper.Set("executor.strict_waves", true)
	viper.Set("profile_floors", map[string]any{"planner": 0.9})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.Solver.OverkillWeight != 5.5 {
		t.Errorf("OverkillWeight = %v, want 5.5", cfg.Solver.OverkillWeight)
	}
	if !cfg.Executor.StrictWaves {
		t.Error("StrictWaves should be true")
	}
	if cfg.ProfileFloors["planner"] != 0.9 {
		t.Errorf("ProfileFloors = %v, want planner 0.9", cfg.ProfileFloors)
	}
}

func TestValidate_Rejections(t *testing.T) {
	base := func() Config {
		resetViper()
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() returned unexpected error: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative overkill weight", func(c *Config) { c.Solver.OverkillWeight = -1 }},
		{"negative latency weight", func(c *Config) { c.Solver.LatencyWeight = -0.5 }},
		{"negative deadline weight", func(c *Config) { c.Solver.DeadlineWeight = -2 }},
		{"negative context bonus", func(c *Config) { c.Solver.ContextBonus = -0.1 }},
		{"negative dep quality penalty", func(c *Config) { c.Solver.DepQualityPenalty = -1 }},
		{"negative budget cap", func(c *Config) { c.Solver.BudgetCap = -10 }},
		{"floor override above one", func(c *Config) { c.Solver.QualityFloorOverride = 1.5 }},
		{"zero time limit", func(c *Config) { c.Solver.TimeLimitSeconds = 0 }},
		{"zero max workers", func(c *Config) { c.Executor.MaxWorkers = 0 }},
		{"negative max workers", func(c *Config) { c.Executor.MaxWorkers = -4 }},
		{"zero max retries", func(c *Config) { c.Executor.MaxRetries = 0 }},
		{"wave quality above one", func(c *Config) { c.Executor.MinWaveQuality = 1.2 }},
		{"negative session timeout", func(c *Config) { c.Executor.SessionTimeoutSeconds = -1 }},
		{"failure rate above one", func(c *Config) { c.Sim.FailureRate = 1.5 }},
		{"unknown profile floor", func(c *Config) { c.ProfileFloors = map[string]float64{"wizard": 0.9} }},
		{"profile floor above one", func(c *Config) { c.ProfileFloors = map[string]float64{"planner": 1.1} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("error %v should wrap ErrInvalid", err)
			}
		})
	}
}

func TestValidate_AcceptsKnownProfileFloors(t *testing.T) {
	resetViper()
	viper.Set("profile_floors", map[string]any{
		"planner":     0.9,
		"implementer": 0.75,
	})

	if _, err := Load(); err != nil {
		t.Fatalf("known profiles rejected: %v", err)
	}
}

func TestApplyProfileFloors(t *testing.T) {
	resetViper()
	viper.Set("profile_floors", map[string]any{"doc-writer": 0.9})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	intents := []intent.Intent{
		{ID: "docs", Tags: []string{"docs"}, QualityFloor: 0.6},
		{ID: "code", QualityFloor: 0.6},
		{ID: "high-docs", Tags: []string{"docs"}, QualityFloor: 0.95},
	}
	cfg.ApplyProfileFloors(intents)

	if intents[0].QualityFloor != 0.9 {
		t.Errorf("doc intent floor = %v, want raised to 0.9", intents[0].QualityFloor)
	}
	if intents[1].QualityFloor != 0.6 {
		t.Errorf("unrelated intent floor = %v, want untouched 0.6", intents[1].QualityFloor)
	}
	if intents[2].QualityFloor != 0.95 {
		t.Errorf("floors must never drop, got %v", intents[2].QualityFloor)
	}
}

func TestSolveOptions_Mapping(t *testing.T) {
	resetViper()
	viper.Set("solver.budget_cap", 12.5)
	viper.Set("solver.quality_floor_override", 0.8)
	viper.Set("solver.time_limit_seconds", 2.5)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	opts := cfg.SolveOptions()
	if opts.BudgetCap != 12.5 || opts.QualityFloorOverride != 0.8 {
		t.Errorf("opts = %+v", opts)
	}
	if opts.TimeLimit != 2500*time.Millisecond {
		t.Errorf("TimeLimit = %v, want 2.5s", opts.TimeLimit)
	}
	if opts.Params.OverkillWeight != 2.0 || opts.Params.TimePerWave != 1.0 {
		t.Errorf("Params = %+v", opts.Params)
	}
}

func TestSessionTimeout_Conversion(t *testing.T) {
	resetViper()
	viper.Set("executor.session_timeout_seconds", 90)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if got := cfg.SessionTimeout(); got != 90*time.Second {
		t.Errorf("SessionTimeout = %v, want 90s", got)
	}
}
