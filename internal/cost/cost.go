// Package cost prices intent-agent pairings and assembles the global
// routing objective.
//
// The per-pair cost has three terms: the metered token cost, an overkill
// surcharge for routing easy work to agents far above its quality floor,
// and a latency term. Deadline penalties and the context-affinity bonus
// depend on the whole assignment (wave placement, shared agents), so they
// live in the objective layer rather than the pair cost.
package cost

import (
	"errors"

	"github.com/gman622/qroute/internal/agent"
	"github.com/gman622/qroute/internal/intent"
)

// ErrInfeasible marks an intent-agent pairing that is not allowed at any
// price: the agent's quality is under the intent's floor, or the intent's
// tier is outside the agent's capabilities. Infeasibility is a sentinel,
// never a large numeric cost.
var ErrInfeasible = errors.New("agent cannot take intent")

// Params weight the cost terms.
type Params struct {
	// OverkillWeight scales the surcharge for quality surplus over the floor.
	OverkillWeight float64
	// LatencyWeight converts agent latency into cost units.
	LatencyWeight float64
	// DeadlineWeight converts lateness into cost units.
	DeadlineWeight float64
	// ContextBonus is subtracted once per dependency edge whose two
	// intents land on the same agent instance.
	ContextBonus float64
	// DepQualityPenalty is charged once per dependency edge whose
	// downstream intent runs on a lower-quality agent than its
	// predecessor.
	DepQualityPenalty float64
	// TimePerWave converts a 0-based wave index into completion time in
	// the same units deadlines are expressed in.
	TimePerWave float64
}

// DefaultParams returns the standard weights.
func DefaultParams() Params {
	return Params{
		OverkillWeight:    2.0,
		LatencyWeight:     0.001,
		DeadlineWeight:    1.0,
		ContextBonus:      0.5,
		DepQualityPenalty: 100.0,
		TimePerWave:       1.0,
	}
}

// TokenCost is the metered cost of running an intent on an agent.
func TokenCost(it *intent.Intent, a *agent.Agent) float64 {
	return float64(it.Tokens()) * a.TokenRate
}

// Pair prices a single intent-agent pairing, or returns ErrInfeasible when
// the agent cannot take the intent at all.
func Pair(it *intent.Intent, a *agent.Agent, p Params) (float64, error) {
	if !a.CanAssign(it) {
		return 0, ErrInfeasible
	}

	token := TokenCost(it, a)

	surplus := a.Quality - it.Floor()
	if surplus < 0 {
		surplus = 0
	}
	overkill := surplus * token * p.OverkillWeight

	latency := a.Latency * p.LatencyWeight

	return token + overkill + latency, nil
}

// DeadlinePenalty prices late completion of a scheduled intent. Wave
// indexes are 0-based: an intent in wave w completes at w * TimePerWave;
// only the portion past the deadline is charged. Intents without a
// deadline are never late.
func DeadlinePenalty(it *intent.Intent, waveIndex int, p Params) float64 {
	if it.Deadline == nil {
		return 0
	}
	late := float64(waveIndex)*p.TimePerWave - float64(*it.Deadline)
	if late <= 0 {
		return 0
	}
	return late * p.DeadlineWeight
}
