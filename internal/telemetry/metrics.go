package telemetry

import (
	"math"
	"sort"

	"github.com/gman622/qroute/internal/agent"
	"github.com/gman622/qroute/internal/intent"
	"github.com/gman622/qroute/internal/plan"
	"github.com/gman622/qroute/internal/wave"
)

// Metrics summarizes the routing quality of one session. Collected across
// runs with different weight configurations, these are the signals for
// tuning the cost model.
type Metrics struct {
	// Chain coherence: how often a workflow chain stays on one model.
	ChainCoherence    float64 `json:"chain_coherence"`
	ChainsSingleModel int     `json:"chains_single_model"`
	ChainsOneSwitch   int     `json:"chains_one_switch"`
	ChainsMultiSwitch int     `json:"chains_multi_switch"`
	TotalChains       int     `json:"total_chains"`
	AvgChainLength    float64 `json:"avg_chain_length"`

	TotalTokenCost   float64 `json:"total_token_cost"`
	AvgQuality       float64 `json:"avg_quality"`
	OverkillPct      float64 `json:"overkill_pct"`
	CostQualityRatio float64 `json:"cost_quality_ratio"`

	Gate1PassRate float64 `json:"gate_1_pass_rate"`
	Gate2PassRate float64 `json:"gate_2_pass_rate"`
	FinalScore    float64 `json:"final_score"`

	// Story-point velocity: points whose intents cleared the intent gate,
	// out of everything planned.
	PointsPlanned   int     `json:"points_planned"`
	PointsCompleted int     `json:"points_completed"`
	Velocity        float64 `json:"velocity"`
}

// Compute derives the session metrics from the plan, the backlog it was
// built from, the agent pool, and the execution outcome. res may be nil
// for plan-only sessions; the execution-side rates are then zero.
func Compute(p *plan.Plan, intents []intent.Intent, pool *agent.Pool, res *wave.ExecutionResult) Metrics {
	m := Metrics{TotalTokenCost: p.TotalEstimatedCost}

	floors := make(map[string]float64, len(intents))
	points := make(map[string]int, len(intents))
	for i := range intents {
		floors[intents[i].ID] = intents[i].Floor()
		points[intents[i].ID] = intents[i].Points()
		m.PointsPlanned += intents[i].Points()
	}

	chainMetrics(&m, p)
	overkill(&m, p, pool, floors)

	if res == nil {
		return m
	}

	for i := range res.Results {
		if res.Results[i].Status == agent.StatusCompleted {
			m.PointsCompleted += points[res.Results[i].IntentID]
		}
	}
	if m.PointsPlanned > 0 {
		m.Velocity = round4(float64(m.PointsCompleted) / float64(m.PointsPlanned))
	}

	if n := len(res.Results); n > 0 {
		total := 0.0
		for _, r := range res.Results {
			total += r.Quality
		}
		m.AvgQuality = round4(total / float64(n))
	}
	if m.AvgQuality > 0 {
		m.CostQualityRatio = round4(m.TotalTokenCost / m.AvgQuality)
	}

	if done := res.Passed + res.Failed; done > 0 {
		m.Gate1PassRate = round4(float64(res.Passed) / float64(done))
	}
	if len(res.Waves) > 0 {
		passed := 0
		for _, wr := range res.Waves {
			if wr.Status == wave.WavePassed {
				passed++
			}
		}
		m.Gate2PassRate = round4(float64(passed) / float64(len(res.Waves)))
	}
	m.FinalScore = res.Review.Score

	return m
}

// chainMetrics classifies every workflow chain by how many distinct
// models serve it: one model is coherent, two is a single hand-off, more
// is churn.
func chainMetrics(m *Metrics, p *plan.Plan) {
	byWorkflow := make(map[string][]*plan.Entry)
	for wi := range p.Waves {
		for ii := range p.Waves[wi].Intents {
			e := &p.Waves[wi].Intents[ii]
			if e.Workflow != "" {
				byWorkflow[e.Workflow] = append(byWorkflow[e.Workflow], e)
			}
		}
	}

	totalLength := 0
	names := make([]string, 0, len(byWorkflow))
	for name := range byWorkflow {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		chain := byWorkflow[name]
		if len(chain) <= 1 {
			continue
		}
		totalLength += len(chain)
		models := make(map[string]bool)
		for _, e := range chain {
			models[e.Model] = true
		}
		switch len(models) {
		case 1:
			m.ChainsSingleModel++
		case 2:
			m.ChainsOneSwitch++
		default:
			m.ChainsMultiSwitch++
		}
	}

	m.TotalChains = m.ChainsSingleModel + m.ChainsOneSwitch + m.ChainsMultiSwitch
	if m.TotalChains > 0 {
		m.ChainCoherence = round4(float64(m.ChainsSingleModel) / float64(m.TotalChains))
		m.AvgChainLength = round4(float64(totalLength) / float64(m.TotalChains))
	}
}

// overkill counts intents served by an agent whose quality clears the
// intent's floor with margin. Some surplus is unavoidable; the percentage
// shows how much quality the weights are buying beyond what was asked.
func overkill(m *Metrics, p *plan.Plan, pool *agent.Pool, floors map[string]float64) {
	total, over := 0, 0
	for wi := range p.Waves {
		for _, e := range p.Waves[wi].Intents {
			a := pool.ByName(e.Agent)
			if a == nil {
				continue
			}
			total++
			if a.Quality > floors[e.ID] {
				over++
			}
		}
	}
	if total > 0 {
		m.OverkillPct = round4(float64(over) / float64(total))
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
