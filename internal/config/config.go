// Package config holds runtime configuration for a routing session:
// solver weights, executor bounds, and simulation knobs. Values come
// from .qroute.yaml, QROUTE_* env vars, and CLI flags, in ascending
// precedence.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/gman622/qroute/internal/cost"
	"github.com/gman622/qroute/internal/intent"
	"github.com/gman622/qroute/internal/profile"
	"github.com/gman622/qroute/internal/sim"
	"github.com/gman622/qroute/internal/solve"
	"github.com/gman622/qroute/internal/wave"
)

// ErrInvalid marks configuration that fails validation. All validation
// failures are fatal; a session never starts on a bad config.
var ErrInvalid = errors.New("invalid configuration")

// SolverConfig carries the cost-model weights and solver bounds.
type SolverConfig struct {
	OverkillWeight       float64 `mapstructure:"overkill_weight"`
	LatencyWeight        float64 `mapstructure:"latency_weight"`
	DeadlineWeight       float64 `mapstructure:"deadline_weight"`
	ContextBonus         float64 `mapstructure:"context_bonus"`
	DepQualityPenalty    float64 `mapstructure:"dep_quality_penalty"`
	BudgetCap            float64 `mapstructure:"budget_cap"`             // 0 disables the cap
	QualityFloorOverride float64 `mapstructure:"quality_floor_override"` // 0 disables the override
	TimeLimitSeconds     float64 `mapstructure:"time_limit_seconds"`
	RandomSeed           int64   `mapstructure:"random_seed"`
}

// ExecutorConfig bounds the wave executor.
type ExecutorConfig struct {
	MaxWorkers            int     `mapstructure:"max_workers"`
	MaxRetries            int     `mapstructure:"max_retries"`
	MinWaveQuality        float64 `mapstructure:"min_wave_quality"`
	SessionTimeoutSeconds float64 `mapstructure:"session_timeout_seconds"` // 0 disables the timeout
	StrictWaves           bool    `mapstructure:"strict_waves"`
}

// SimConfig tunes the simulated backend used by dry runs.
type SimConfig struct {
	FailureRate float64 `mapstructure:"failure_rate"`
	QualityMean float64 `mapstructure:"quality_mean"`
	QualityStd  float64 `mapstructure:"quality_std"`
}

// OutputConfig names where session records land. An empty telemetry
// path disables the event stream.
type OutputConfig struct {
	JournalPath   string `mapstructure:"journal_path"`
	TelemetryPath string `mapstructure:"telemetry_path"`
}

// Config is the full runtime configuration.
type Config struct {
	Solver   SolverConfig   `mapstructure:"solver"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Sim      SimConfig      `mapstructure:"sim"`
	Output   OutputConfig   `mapstructure:"output"`

	// ProfileFloors raises the quality floor of every intent routed to
	// the named profile. Keys must name known profiles.
	ProfileFloors map[string]float64 `mapstructure:"profile_floors"`

	Verbose bool `mapstructure:"verbose"`
}

// Load reads configuration from viper, applying defaults for anything
// not set by file, environment, or flags, then validates it.
func Load() (Config, error) {
	setDefaults()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("solver.overkill_weight", 2.0)
	viper.SetDefault("solver.latency_weight", 0.001)
	viper.SetDefault("solver.deadline_weight", 1.0)
	viper.SetDefault("solver.context_bonus", 0.5)
	viper.SetDefault("solver.dep_quality_penalty", 100.0)
	viper.SetDefault("solver.budget_cap", 0.0)
	viper.SetDefault("solver.quality_floor_override", 0.0)
	viper.SetDefault("solver.time_limit_seconds", solve.DefaultTimeLimit.Seconds())
	viper.SetDefault("solver.random_seed", 42)

	viper.SetDefault("executor.max_workers", wave.DefaultMaxWorkers)
	viper.SetDefault("executor.max_retries", wave.DefaultMaxRetries)
	viper.SetDefault("executor.min_wave_quality", 0.70)
	viper.SetDefault("executor.session_timeout_seconds", 0.0)
	viper.SetDefault("executor.strict_waves", false)

	viper.SetDefault("sim.failure_rate", sim.DefaultFailureRate)
	viper.SetDefault("sim.quality_mean", sim.DefaultQualityMean)
	viper.SetDefault("sim.quality_std", sim.DefaultQualityStd)

	viper.SetDefault("output.journal_path", ".qroute/history.db")
	viper.SetDefault("output.telemetry_path", "")

	viper.SetDefault("verbose", false)
}

// Validate rejects configurations the session must not start with.
func (c *Config) Validate() error {
	for name, w := range map[string]float64{
		"solver.overkill_weight":     c.Solver.OverkillWeight,
		"solver.latency_weight":      c.Solver.LatencyWeight,
		"solver.deadline_weight":     c.Solver.DeadlineWeight,
		"solver.context_bonus":       c.Solver.ContextBonus,
		"solver.dep_quality_penalty": c.Solver.DepQualityPenalty,
		"solver.budget_cap":          c.Solver.BudgetCap,
	} {
		if w < 0 {
			return fmt.Errorf("%w: %s must be non-negative, got %v", ErrInvalid, name, w)
		}
	}
	if f := c.Solver.QualityFloorOverride; f < 0 || f > 1 {
		return fmt.Errorf("%w: solver.quality_floor_override must be in [0, 1], got %v", ErrInvalid, f)
	}
	if c.Solver.TimeLimitSeconds <= 0 {
		return fmt.Errorf("%w: solver.time_limit_seconds must be positive, got %v", ErrInvalid, c.Solver.TimeLimitSeconds)
	}

	if c.Executor.MaxWorkers <= 0 {
		return fmt.Errorf("%w: executor.max_workers must be positive, got %d", ErrInvalid, c.Executor.MaxWorkers)
	}
	if c.Executor.MaxRetries <= 0 {
		return fmt.Errorf("%w: executor.max_retries must be positive, got %d", ErrInvalid, c.Executor.MaxRetries)
	}
	if q := c.Executor.MinWaveQuality; q <= 0 || q > 1 {
		return fmt.Errorf("%w: executor.min_wave_quality must be in (0, 1], got %v", ErrInvalid, q)
	}
	if c.Executor.SessionTimeoutSeconds < 0 {
		return fmt.Errorf("%w: executor.session_timeout_seconds must be non-negative, got %v", ErrInvalid, c.Executor.SessionTimeoutSeconds)
	}

	if r := c.Sim.FailureRate; r < 0 || r > 1 {
		return fmt.Errorf("%w: sim.failure_rate must be in [0, 1], got %v", ErrInvalid, r)
	}
	if c.Sim.QualityStd < 0 {
		return fmt.Errorf("%w: sim.quality_std must be non-negative, got %v", ErrInvalid, c.Sim.QualityStd)
	}

	for name, floor := range c.ProfileFloors {
		if !profile.Profile(name).Valid() {
			return fmt.Errorf("%w: profile_floors references unknown profile %q", ErrInvalid, name)
		}
		if floor < 0 || floor > 1 {
			return fmt.Errorf("%w: profile_floors.%s must be in [0, 1], got %v", ErrInvalid, name, floor)
		}
	}

	return nil
}

// ApplyProfileFloors raises each intent's quality floor to the
// configured floor of the profile it routes to. Floors only ever go up.
func (c *Config) ApplyProfileFloors(intents []intent.Intent) {
	if len(c.ProfileFloors) == 0 {
		return
	}
	for i := range intents {
		prof := profile.Route(&intents[i])
		if floor, ok := c.ProfileFloors[string(prof)]; ok && floor > intents[i].QualityFloor {
			intents[i].QualityFloor = floor
		}
	}
}

// CostParams maps the solver weights onto the cost model.
func (c *Config) CostParams() cost.Params {
	return cost.Params{
		OverkillWeight:    c.Solver.OverkillWeight,
		LatencyWeight:     c.Solver.LatencyWeight,
		DeadlineWeight:    c.Solver.DeadlineWeight,
		ContextBonus:      c.Solver.ContextBonus,
		DepQualityPenalty: c.Solver.DepQualityPenalty,
		TimePerWave:       1.0,
	}
}

// SolveOptions bundles everything the assignment solver reads.
func (c *Config) SolveOptions() solve.Options {
	return solve.Options{
		Params:               c.CostParams(),
		TimeLimit:            time.Duration(c.Solver.TimeLimitSeconds * float64(time.Second)),
		BudgetCap:            c.Solver.BudgetCap,
		QualityFloorOverride: c.Solver.QualityFloorOverride,
		Seed:                 c.Solver.RandomSeed,
	}
}

// SessionTimeout converts the configured seconds to a duration; zero
// means no timeout.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Executor.SessionTimeoutSeconds * float64(time.Second))
}

// SimBackendConfig maps the simulation knobs onto the simulated backend.
func (c *Config) SimBackendConfig() sim.Config {
	return sim.Config{
		FailureRate: c.Sim.FailureRate,
		QualityMean: c.Sim.QualityMean,
		QualityStd:  c.Sim.QualityStd,
		Seed:        c.Solver.RandomSeed,
	}
}
