package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gman622/qroute/internal/config"
	"github.com/gman622/qroute/internal/journal"
	"github.com/gman622/qroute/internal/plan"
	"github.com/gman622/qroute/internal/sim"
	"github.com/gman622/qroute/internal/solve"
	"github.com/gman622/qroute/internal/telemetry"
	"github.com/gman622/qroute/internal/wave"
)

var runCmd = &cobra.Command{
	Use:   "run [dir]",
	Short: "Plan a backlog and execute it wave by wave",
	Long: "run builds the plan and executes it: intents dispatch in parallel within\n" +
		"each wave, failures climb the retry/escalate/human ladder, and the session\n" +
		"ends with a verdict, a shift report, and a journal entry.",
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("simulate", true, "execute against the simulated backend")
	runCmd.Flags().Int("workers", 0, "max concurrent intents per wave (default from config)")
	runCmd.Flags().Int("max-retries", 0, "attempts per intent before the human flag (default from config)")
	runCmd.Flags().Bool("strict-gates", false, "abort the session when a wave fails its gate")
	runCmd.Flags().Int64("seed", 0, "simulation seed (default from config)")
	runCmd.Flags().Duration("timeout", 0, "session timeout (default from config)")
	runCmd.Flags().Bool("json", false, "write the execution result as JSON to stdout")
	runCmd.Flags().String("strategy", "", "force a solver strategy (greedy, branch-and-bound, decompose)")
	runCmd.Flags().String("agents", "", "agent pool file (default: built-in fleet)")
}

func runRun(cmd *cobra.Command, args []string) error {
	p := printer(cmd)
	cfg, err := config.Load()
	if err != nil {
		p.Error(err.Error())
		return err
	}
	applyRunFlags(cmd, &cfg)

	if simulate, _ := cmd.Flags().GetBool("simulate"); !simulate {
		err := errors.New("no live backend is configured; run with --simulate")
		p.Error(err.Error())
		return err
	}

	pool, err := loadPool(cmd)
	if err != nil {
		p.Error(err.Error())
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dir := intentDir(args)
	b, err := loadBacklog(dir, p)
	if err != nil {
		p.Error(err.Error())
		return err
	}
	cfg.ApplyProfileFloors(b.Intents)

	opts := cfg.SolveOptions()
	opts.Log = log
	if s, _ := cmd.Flags().GetString("strategy"); s != "" {
		opts.Strategy = solve.Strategy(s)
	}
	pl, err := plan.Build(ctx, b.Intents, pool, opts)
	if err != nil {
		p.Error(err.Error())
		return err
	}
	p.Plan(pl)

	sessionID := uuid.NewString()
	progress := p.Progress()

	var emitter *telemetry.Emitter
	if path := cfg.Output.TelemetryPath; path != "" {
		emitter, err = telemetry.NewEmitter(path)
		if err != nil {
			p.Error(err.Error())
			return err
		}
		defer emitter.Close()
		emit := emitter.Progress(sessionID)
		show := progress
		progress = func(event string, data map[string]any) {
			show(event, data)
			emit(event, data)
		}
	}

	simCfg := cfg.SimBackendConfig()
	simCfg.Pool = pool

	ex := &wave.Executor{
		Backend:        sim.New(simCfg),
		Pool:           pool,
		MaxRetries:     cfg.Executor.MaxRetries,
		MaxWorkers:     cfg.Executor.MaxWorkers,
		MinWaveQuality: cfg.Executor.MinWaveQuality,
		StrictWaves:    cfg.Executor.StrictWaves,
		SessionTimeout: cfg.SessionTimeout(),
		Progress:       progress,
		Log:            log,
		SessionID:      sessionID,
	}

	started := time.Now()
	res, runErr := ex.Run(ctx, pl, b.Intents)
	if res == nil {
		p.Error(runErr.Error())
		return runErr
	}

	metrics := telemetry.Compute(pl, b.Intents, pool, res)
	p.RunSummary(res, metrics)
	p.ShiftReport(pl, pool, res)

	if err := recordSession(cfg.Output.JournalPath, b.Manifest.Project.Name, started, pl, res); err != nil {
		p.Error(err.Error())
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		out := struct {
			Result  *wave.ExecutionResult `json:"result"`
			Metrics telemetry.Metrics     `json:"metrics"`
		}{res, metrics}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
	}

	return runErr
}

// applyRunFlags lets explicit CLI flags override the loaded config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("workers") {
		cfg.Executor.MaxWorkers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("max-retries") {
		cfg.Executor.MaxRetries, _ = cmd.Flags().GetInt("max-retries")
	}
	if cmd.Flags().Changed("strict-gates") {
		cfg.Executor.StrictWaves, _ = cmd.Flags().GetBool("strict-gates")
	}
	if cmd.Flags().Changed("seed") {
		cfg.Solver.RandomSeed, _ = cmd.Flags().GetInt64("seed")
	}
	if cmd.Flags().Changed("timeout") {
		d, _ := cmd.Flags().GetDuration("timeout")
		cfg.Executor.SessionTimeoutSeconds = d.Seconds()
	}
}

// recordSession journals a finished run. Journal faults are reported
// but never fail the session.
func recordSession(path, project string, started time.Time, pl *plan.Plan, res *wave.ExecutionResult) error {
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating journal directory: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	j, err := journal.Open(ctx, path)
	if err != nil {
		return err
	}
	defer j.Close()

	return j.Record(ctx, journal.Session{
		ID:          res.SessionID,
		Project:     project,
		StartedAt:   started.UTC(),
		Duration:    res.Duration,
		Intents:     pl.TotalIntents,
		Waves:       pl.TotalWaves,
		Passed:      res.Passed,
		Failed:      res.Failed,
		HumanReview: res.HumanReview,
		Verdict:     string(res.Review.Verdict),
		Score:       res.Review.Score,
		Cost:        res.TotalCost,
		Cancelled:   res.Cancelled,
	}, res.Results)
}
