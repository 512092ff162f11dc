package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/gman622/qroute/internal/agent"
	"github.com/gman622/qroute/internal/config"
	"github.com/gman622/qroute/internal/intent"
	"github.com/gman622/qroute/internal/plan"
	"github.com/gman622/qroute/internal/solve"
	"github.com/gman622/qroute/internal/ui"
)

var planCmd = &cobra.Command{
	Use:   "plan [dir]",
	Short: "Build an execution plan for an intent backlog",
	Long: "plan loads the backlog, routes every intent to a profile, solves the\n" +
		"agent assignment, and prints the wave-by-wave plan without executing it.",
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().Bool("json", false, "write the plan as JSON to stdout")
	planCmd.Flags().String("save", "", "write the plan to a file")
	planCmd.Flags().String("diff", "", "diff against a previously saved plan")
	planCmd.Flags().Bool("graph", false, "draw the dependency graph")
	planCmd.Flags().Bool("watch", false, "replan whenever the backlog changes")
	planCmd.Flags().String("strategy", "", "force a solver strategy (greedy, branch-and-bound, decompose)")
	planCmd.Flags().String("agents", "", "agent pool file (default: built-in fleet)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	p := printer(cmd)
	cfg, err := config.Load()
	if err != nil {
		p.Error(err.Error())
		return err
	}
	pool, err := loadPool(cmd)
	if err != nil {
		p.Error(err.Error())
		return err
	}

	dir := intentDir(args)
	pl, err := buildPlan(cmd.Context(), dir, cfg, pool, cmd, p)
	if err != nil {
		return err
	}
	if err := emitPlan(cmd, p, pl); err != nil {
		return err
	}

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		return watchPlan(dir, cfg, pool, cmd, p)
	}
	return nil
}

// buildPlan runs the full planning pipeline for one backlog state.
func buildPlan(ctx context.Context, dir string, cfg config.Config, pool *agent.Pool, cmd *cobra.Command, p *ui.Printer) (*plan.Plan, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := loadBacklog(dir, p)
	if err != nil {
		p.Error(err.Error())
		return nil, err
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
		return nil, err
	}
	return pl, nil
}

// emitPlan renders a built plan per the output flags.
func emitPlan(cmd *cobra.Command, p *ui.Printer, pl *plan.Plan) error {
	if diffPath, _ := cmd.Flags().GetString("diff"); diffPath != "" {
		old, err := plan.Load(diffPath)
		if err != nil {
			p.Error(err.Error())
			return err
		}
		p.PlanDiff(plan.Diff(old, pl))
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(pl); err != nil {
			return fmt.Errorf("encoding plan: %w", err)
		}
	} else {
		p.Plan(pl)
	}
	if graph, _ := cmd.Flags().GetBool("graph"); graph {
		p.PlanGraph(pl)
	}

	if savePath, _ := cmd.Flags().GetString("save"); savePath != "" {
		if err := plan.Save(pl, savePath); err != nil {
			p.Error(err.Error())
			return err
		}
		p.PlanSaved(savePath)
	}
	return nil
}

// watchPlan replans on every backlog change until interrupted. A broken
// intermediate state is reported and skipped, not fatal.
func watchPlan(dir string, cfg config.Config, pool *agent.Pool, cmd *cobra.Command, p *ui.Printer) error {
	w, err := intent.NewWatcher(dir)
	if err != nil {
		p.Error(err.Error())
		return err
	}
	if err := w.Start(); err != nil {
		p.Error(err.Error())
		return err
	}
	defer w.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p.Info("watching " + dir + " (ctrl-c to stop)")
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-w.Changes:
			if !ok {
				return nil
			}
			p.WatchReload(change.File)
			pl, err := buildPlan(ctx, dir, cfg, pool, cmd, p)
			if err != nil {
				continue
			}
			if err := emitPlan(cmd, p, pl); err != nil {
				return err
			}
		}
	}
}
