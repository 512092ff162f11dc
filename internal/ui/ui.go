// Package ui renders qroute's human-facing output: validation results,
// plan tables, live progress, and the end-of-session shift report. All
// output goes to a single writer (stderr by default) so stdout stays
// clean for JSON.
package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gman622/qroute/internal/agent"
	"github.com/gman622/qroute/internal/ansi"
	"github.com/gman622/qroute/internal/intent"
	"github.com/gman622/qroute/internal/journal"
	"github.com/gman622/qroute/internal/plan"
	"github.com/gman622/qroute/internal/telemetry"
	"github.com/gman622/qroute/internal/wave"
)

// Printer writes styled terminal output. The zero value is unusable;
// build one with New.
type Printer struct {
	out   io.Writer
	color bool
}

// New returns a Printer writing to stderr. Pass color=false for plain
// output (pipes, --no-color).
func New(color bool) *Printer {
	return &Printer{out: os.Stderr, color: color}
}

// NewWriter returns a Printer writing to w.
func NewWriter(w io.Writer, color bool) *Printer {
	return &Printer{out: w, color: color}
}

func (p *Printer) paint(code, s string) string {
	if !p.color {
		return s
	}
	return code + s + ansi.Reset
}

// Error prints an error line.
func (p *Printer) Error(msg string) {
	fmt.Fprintf(p.out, "%s %s\n", p.paint(ansi.Red+ansi.Bold, "error:"), msg)
}

// Info prints a dimmed informational line.
func (p *Printer) Info(msg string) {
	fmt.Fprintln(p.out, p.paint(ansi.Dim, msg))
}

// ValidationResult reports the outcome of validating a backlog.
func (p *Printer) ValidationResult(path string, count int, errs []intent.ValidationError) {
	if len(errs) == 0 {
		fmt.Fprintf(p.out, "%s %s — %d intent(s), no errors\n",
			p.paint(ansi.Green+ansi.Bold, "✓"), path, count)
		return
	}
	fmt.Fprintf(p.out, "%s %s — %d error(s):\n",
		p.paint(ansi.Red+ansi.Bold, "✗"), path, len(errs))
	for _, e := range errs {
		fmt.Fprintf(p.out, "  %s %s\n", p.paint(ansi.Red, "•"), e.Error())
	}
}

// Plan renders the wave table: one block per wave, one line per intent.
func (p *Printer) Plan(pl *plan.Plan) {
	fmt.Fprintf(p.out, "\n%s  %d intent(s) in %d wave(s), est. %.2f USD\n",
		p.paint(ansi.Bold+ansi.Cyan, "plan"),
		pl.TotalIntents, pl.TotalWaves, pl.TotalEstimatedCost)
	if pl.Solver.Strategy != "" {
		fmt.Fprintf(p.out, "%s\n", p.paint(ansi.Dim,
			fmt.Sprintf("  solver: %s, objective %.2f", pl.Solver.Strategy, pl.Solver.Objective)))
	}

	critical := make(map[string]bool, len(pl.CriticalPath))
	for _, id := range pl.CriticalPath {
		critical[id] = true
	}

	for _, w := range pl.Waves {
		fmt.Fprintf(p.out, "\n%s  %d agent(s), est. %.2f USD\n",
			p.paint(ansi.Bold+ansi.Magenta, fmt.Sprintf("wave %d", w.Wave)),
			w.AgentsNeeded, w.EstimatedCost)
		for _, e := range w.Intents {
			marker := " "
			if critical[e.ID] {
				marker = p.paint(ansi.Bold+ansi.Yellow, "*")
			}
			line := fmt.Sprintf("  %s %-24s %-16s %-10s %s", marker, e.ID,
				string(e.Profile), string(e.Complexity), e.Agent)
			if len(e.DependsOn) > 0 {
				line += p.paint(ansi.Dim, " after:"+strings.Join(e.DependsOn, ","))
			}
			fmt.Fprintln(p.out, line)
		}
	}
	if len(pl.CriticalPath) > 0 {
		fmt.Fprintf(p.out, "\n%s\n", p.paint(ansi.Dim,
			"  * critical path: "+strings.Join(pl.CriticalPath, " → ")))
	}
	fmt.Fprintln(p.out)
}

// PlanGraph draws the dependency graph between the plan's waves.
func (p *Printer) PlanGraph(pl *plan.Plan) {
	r := &GraphRenderer{Color: p.color}
	if out := r.Render(pl); out != "" {
		fmt.Fprintln(p.out, out)
	}
}

// PlanSaved confirms that a plan file was written.
func (p *Printer) PlanSaved(path string) {
	fmt.Fprintf(p.out, "%s plan written to %s\n", p.paint(ansi.Green, "✓"), path)
}

// PlanDiff renders the changes between a saved plan and a fresh one.
func (p *Printer) PlanDiff(changes []plan.Change) {
	if len(changes) == 0 {
		fmt.Fprintf(p.out, "%s plan unchanged\n", p.paint(ansi.Green, "✓"))
		return
	}
	fmt.Fprintf(p.out, "%s %d change(s):\n", p.paint(ansi.Yellow+ansi.Bold, "~"), len(changes))
	for _, c := range changes {
		symbol, color := "~", ansi.Yellow
		switch c.Kind {
		case plan.ChangeAdded:
			symbol, color = "+", ansi.Green
		case plan.ChangeRemoved:
			symbol, color = "-", ansi.Red
		}
		fmt.Fprintf(p.out, "  %s %-24s %s\n", p.paint(color, symbol), c.Subject, c.Detail)
	}
}

// WatchReload announces a backlog change picked up in watch mode.
func (p *Printer) WatchReload(path string) {
	fmt.Fprintf(p.out, "\n%s %s changed, replanning\n", p.paint(ansi.Cyan, "↻"), path)
}

// Progress returns a callback that narrates executor events, one line
// each. Safe to hand to an Executor directly.
func (p *Printer) Progress() wave.ProgressFunc {
	return func(event string, data map[string]any) {
		switch event {
		case wave.EventWaveStarted:
			fmt.Fprintf(p.out, "\n%s %v intent(s)\n",
				p.paint(ansi.Bold+ansi.Magenta, fmt.Sprintf("── wave %v ──", data["wave"])),
				data["intent_count"])
		case wave.EventWaveCompleted:
			symbol := p.paint(ansi.Green, "✓")
			if data["status"] != wave.WavePassed {
				symbol = p.paint(ansi.Red, "✗")
			}
			fmt.Fprintf(p.out, "%s wave %v %v (score %.1f)\n",
				symbol, data["wave"], data["status"], toFloat(data["score"]))
		case wave.EventIntentStarted:
			fmt.Fprintf(p.out, "%s %v %s\n", p.paint(ansi.Blue, "▶"), data["intent_id"],
				p.paint(ansi.Dim, fmt.Sprintf("%v on %v", data["profile"], data["model"])))
		case wave.EventIntentCompleted:
			if data["status"] == "passed" {
				fmt.Fprintf(p.out, "%s %v (score %.1f, attempt %v)\n",
					p.paint(ansi.Green, "✓"), data["intent_id"], toFloat(data["score"]), data["attempt"])
			} else {
				fmt.Fprintf(p.out, "%s %v failed (attempt %v)\n",
					p.paint(ansi.Yellow, "⚠"), data["intent_id"], data["attempt"])
			}
		case wave.EventIntentRetried:
			fmt.Fprintf(p.out, "%s %v retrying: %v\n",
				p.paint(ansi.Yellow, "↻"), data["intent_id"], data["reason"])
		case wave.EventIntentEscalated:
			fmt.Fprintf(p.out, "%s %v escalating %v → %v\n",
				p.paint(ansi.Yellow+ansi.Bold, "⬆"), data["intent_id"],
				data["from_model"], data["to_model"])
		case wave.EventIntentHumanReview:
			fmt.Fprintf(p.out, "%s %v flagged for human review after %v attempt(s)\n",
				p.paint(ansi.Red+ansi.Bold, "✋"), data["intent_id"], data["attempts"])
		}
	}
}

// RunSummary renders the session verdict and routing metrics.
func (p *Printer) RunSummary(res *wave.ExecutionResult, m telemetry.Metrics) {
	verdictColor := ansi.Green
	switch res.Review.Verdict {
	case "revise":
		verdictColor = ansi.Yellow
	case "rethink":
		verdictColor = ansi.Red
	}

	fmt.Fprintf(p.out, "\n%s %s %s\n",
		p.paint(ansi.Bold, "verdict:"),
		p.paint(verdictColor+ansi.Bold, string(res.Review.Verdict)),
		p.paint(ansi.Dim, fmt.Sprintf("(score %.1f)", res.Review.Score)))
	fmt.Fprintf(p.out, "  passed %d, failed %d, human review %d\n",
		res.Passed, res.Failed, res.HumanReview)
	fmt.Fprintf(p.out, "  retries %d, escalations %d, cost %.2f USD, took %s\n",
		res.Retries, res.Escalations, res.TotalCost, res.Duration.Round(time.Millisecond))
	if res.Incomplete {
		fmt.Fprintf(p.out, "  %s %s\n", p.paint(ansi.Red+ansi.Bold, "incomplete:"), res.Err)
	}

	if m.TotalChains > 0 {
		fmt.Fprintf(p.out, "  chains: %.0f%% coherent (%d/%d single-model)\n",
			m.ChainCoherence*100, m.ChainsSingleModel, m.TotalChains)
	}
	fmt.Fprintf(p.out, "  gates: %.0f%% intents, %.0f%% waves; overkill %.0f%%\n",
		m.Gate1PassRate*100, m.Gate2PassRate*100, m.OverkillPct*100)

	for _, risk := range res.Review.RiskItems {
		fmt.Fprintf(p.out, "  %s %s\n", p.paint(ansi.Yellow, "⚠"), risk)
	}
	for _, fb := range res.Review.Feedback {
		fmt.Fprintf(p.out, "  %s\n", p.paint(ansi.Dim, fb))
	}
}

// ShiftReport breaks the session down per agent: dispatches, passes,
// and spend, in pool order.
func (p *Printer) ShiftReport(pl *plan.Plan, pool *agent.Pool, res *wave.ExecutionResult) {
	type tally struct {
		dispatched int
		passed     int
		cost       float64
	}
	byAgent := make(map[string]*tally)
	for _, r := range res.Results {
		t := byAgent[r.Agent]
		if t == nil {
			t = &tally{}
			byAgent[r.Agent] = t
		}
		t.dispatched++
		if r.Status == agent.StatusCompleted {
			t.passed++
		}
		if e := pl.Entry(r.IntentID); e != nil {
			t.cost += e.EstimatedCost
		}
	}
	if len(byAgent) == 0 {
		return
	}

	names := make([]string, 0, len(byAgent))
	for _, a := range pool.Agents {
		if byAgent[a.Name] != nil {
			names = append(names, a.Name)
		}
	}
	// Escalations can land on agents outside the original staffing.
	var extras []string
	for name := range byAgent {
		if pool.ByName(name) == nil {
			extras = append(extras, name)
		}
	}
	sort.Strings(extras)
	names = append(names, extras...)

	fmt.Fprintf(p.out, "\n%s\n", p.paint(ansi.Bold, "shift report"))
	fmt.Fprintf(p.out, "  %-16s %10s %8s %10s\n", "agent", "dispatched", "passed", "cost USD")
	for _, name := range names {
		t := byAgent[name]
		fmt.Fprintf(p.out, "  %-16s %10d %8d %10.2f\n", name, t.dispatched, t.passed, t.cost)
	}
}

// AgentsTable lists the fleet.
func (p *Printer) AgentsTable(pool *agent.Pool) {
	fmt.Fprintf(p.out, "%s %d agent(s)\n", p.paint(ansi.Bold, "fleet:"), len(pool.Agents))
	fmt.Fprintf(p.out, "  %-16s %-10s %8s %10s %9s %6s\n",
		"name", "model", "quality", "rate", "capacity", "local")
	for _, a := range pool.Agents {
		local := ""
		if a.Local {
			local = "yes"
		}
		fmt.Fprintf(p.out, "  %-16s %-10s %8.2f %10.6f %9d %6s\n",
			a.Name, a.Type, a.Quality, a.TokenRate, a.Capacity, local)
	}
}

// History lists journalled sessions, newest first.
func (p *Printer) History(sessions []journal.Session) {
	if len(sessions) == 0 {
		p.Info("no sessions recorded")
		return
	}
	fmt.Fprintf(p.out, "  %-36s %-20s %-8s %6s %8s\n",
		"session", "started", "verdict", "score", "cost")
	for _, s := range sessions {
		verdict := s.Verdict
		if s.Cancelled {
			verdict += " (cancelled)"
		}
		fmt.Fprintf(p.out, "  %-36s %-20s %-8s %6.1f %8.2f\n",
			s.ID, s.StartedAt.Local().Format("2006-01-02 15:04:05"), verdict, s.Score, s.Cost)
	}
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	default:
		return 0
	}
}
