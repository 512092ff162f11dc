package gate

import (
	"fmt"
	"math"

	"github.com/gman622/qroute/internal/agent"
)

// DefaultMinQuality is the Gate 2 quality bar a wave must clear before
// the next wave is released.
const DefaultMinQuality = 0.70

// ValidateWave is Gate 2: it passes only when every result in the wave
// completed, cleared minQuality, and passed its tests. The wave score is
// the mean of the per-intent Gate 1 scores.
func ValidateWave(results []agent.Result, minQuality float64) Report {
	if len(results) == 0 {
		return Report{
			Passed:          true,
			Score:           100.0,
			Recommendations: []string{"Wave is empty; nothing to validate"},
		}
	}

	var issues, recs []string
	total := 0.0

	for _, r := range results {
		total += ValidateIntent(r).Score

		if r.Status != agent.StatusCompleted {
			issues = append(issues,
				fmt.Sprintf("[%s] status is %q, expected %q", r.IntentID, r.Status, agent.StatusCompleted))
			switch r.Status {
			case agent.StatusFailed:
				recs = append(recs, fmt.Sprintf("[%s] %s", r.IntentID, Recommend(1)))
			case agent.StatusInProgress:
				recs = append(recs, fmt.Sprintf("[%s] Wait for execution to finish", r.IntentID))
			}
		}

		if r.Quality < minQuality {
			issues = append(issues,
				fmt.Sprintf("[%s] quality score %.2f below minimum %.2f", r.IntentID, r.Quality, minQuality))
			recs = append(recs,
				fmt.Sprintf("[%s] Retry with same agent or escalate to higher-quality agent", r.IntentID))
		}

		if !r.TestsPassed {
			issues = append(issues, fmt.Sprintf("[%s] tests did not pass", r.IntentID))
			recs = append(recs, fmt.Sprintf("[%s] Fix test failures before proceeding", r.IntentID))
		}
	}

	score := math.Round(total/float64(len(results))*100) / 100

	return Report{
		Passed:          len(issues) == 0,
		Score:           score,
		Issues:          issues,
		Recommendations: recs,
	}
}
