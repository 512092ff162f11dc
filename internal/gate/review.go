package gate

import (
	"fmt"
	"math"

	"github.com/gman622/qroute/internal/agent"
	"github.com/gman622/qroute/internal/profile"
)

// Verdict is the Gate 3 outcome for a whole session.
type Verdict string

const (
	VerdictShip    Verdict = "ship"
	VerdictRevise  Verdict = "revise"
	VerdictRethink Verdict = "rethink"
)

// Gate 3 verdict cutoffs: ship at or above ShipThreshold, revise down to
// ReviseThreshold, rethink below that.
const (
	ShipThreshold   = 85.0
	ReviseThreshold = 60.0
)

// Sub-score weights for the Gate 3 aggregate.
const (
	fitnessWeight   = 0.50
	coherenceWeight = 0.30
	docWeight       = 0.20
)

// Review is the Gate 3 outcome.
type Review struct {
	Verdict           Verdict  `json:"verdict"`
	Score             float64  `json:"score"`
	ProductionFitness float64  `json:"production_fitness"`
	Coherence         float64  `json:"coherence"`
	DocCoverage       float64  `json:"doc_coverage"`
	RiskItems         []string `json:"risk_items,omitempty"`
	Feedback          []string `json:"feedback,omitempty"`
	Partial           bool     `json:"partial,omitempty"`
}

// FinalReview is Gate 3: it scores the whole session on production
// fitness, architectural coherence, and documentation coverage, then
// renders a verdict. total is the number of intents the session planned;
// when fewer produced results the review is computed over what exists
// and marked partial. No results at all is a vacuous ship.
func FinalReview(results []agent.Result, total int) Review {
	if len(results) == 0 && total == 0 {
		return Review{
			Verdict:           VerdictShip,
			Score:             100,
			ProductionFitness: 100,
			Coherence:         100,
			DocCoverage:       100,
			Feedback:          []string{"No results to review"},
		}
	}

	var risks, feedback []string

	fitness, fitnessRisks, fitnessFeedback := productionFitness(results)
	risks = append(risks, fitnessRisks...)
	feedback = append(feedback, fitnessFeedback...)

	coherence := coherenceScore(results)

	docScore, docRisks, docFeedback := docCoverageScore(results)
	risks = append(risks, docRisks...)
	feedback = append(feedback, docFeedback...)

	score := round2(fitness*fitnessWeight + coherence*coherenceWeight + docScore*docWeight)

	review := Review{
		Score:             score,
		ProductionFitness: round2(fitness),
		Coherence:         round2(coherence),
		DocCoverage:       round2(docScore),
		RiskItems:         risks,
		Feedback:          feedback,
	}

	switch {
	case score >= ShipThreshold:
		review.Verdict = VerdictShip
	case score >= ReviseThreshold:
		review.Verdict = VerdictRevise
		if len(review.Feedback) == 0 {
			review.Feedback = []string{"Score is close to the ship threshold; address the risk items above"}
		}
	default:
		review.Verdict = VerdictRethink
		review.Feedback = append(review.Feedback,
			"Low overall score suggests the intent decomposition needs rework before re-executing")
	}

	if total > len(results) {
		review.Partial = true
		review.RiskItems = append(review.RiskItems,
			fmt.Sprintf("Final review covers %d of %d intents; the rest produced no results", len(results), total))
	}

	return review
}

// productionFitness averages quality over all results, halving the
// contribution of any result whose tests failed. Results that never
// completed contribute zero.
func productionFitness(results []agent.Result) (float64, []string, []string) {
	var risks, feedback []string
	if len(results) == 0 {
		return 0, risks, feedback
	}

	total := 0.0
	failingTests := 0
	for _, r := range results {
		q := r.Quality
		if r.Status != agent.StatusCompleted {
			q = 0
			msg := fmt.Sprintf("Intent %q has status %q", r.IntentID, r.Status)
			if r.ErrorMessage != "" {
				msg += ": " + r.ErrorMessage
			}
			risks = append(risks, msg)
		}
		if !r.TestsPassed {
			q *= 0.5
			if r.Status == agent.StatusCompleted {
				failingTests++
			}
		}
		total += q
	}

	if failingTests > 0 {
		risks = append(risks, fmt.Sprintf("%d completed intent(s) have failing tests", failingTests))
		feedback = append(feedback, "Fix all failing tests before shipping")
	}

	lowQuality := 0
	for _, r := range results {
		if r.Status == agent.StatusCompleted && r.Quality < 0.5 {
			lowQuality++
			risks = append(risks,
				fmt.Sprintf("Intent %q completed with low quality score %.2f", r.IntentID, r.Quality))
		}
	}
	if lowQuality > 0 {
		feedback = append(feedback, "Rework the low-quality intents or escalate them to stronger agents")
	}

	fitness := clampScore(total / float64(len(results)) * 100)
	return fitness, risks, feedback
}

// coherenceScore rewards a consistent quality level across the session:
// 100×(1−σ) over the quality scores, clamped to [0, 100]. A single
// result scores its own quality.
func coherenceScore(results []agent.Result) float64 {
	if len(results) == 0 {
		return 0
	}
	if len(results) == 1 {
		return clampScore(results[0].Quality * 100)
	}

	mean := 0.0
	for _, r := range results {
		mean += r.Quality
	}
	mean /= float64(len(results))

	variance := 0.0
	for _, r := range results {
		d := r.Quality - mean
		variance += d * d
	}
	variance /= float64(len(results) - 1)
	sigma := math.Sqrt(variance)

	return clampScore(100 * (1 - sigma))
}

// docCoverageScore blends the fraction of results carrying a
// documentation artifact with the mean quality of doc-writer results
// (neutral 0.5 when the session had none).
func docCoverageScore(results []agent.Result) (float64, []string, []string) {
	var risks, feedback []string
	if len(results) == 0 {
		return 0, risks, feedback
	}

	docCount := 0
	docQualityTotal := 0.0
	docResults := 0
	for _, r := range results {
		if hasDocArtifact(r.Artifacts) {
			docCount++
		}
		if r.Profile == profile.DocWriter {
			docQualityTotal += r.Quality
			docResults++
		}
	}

	fraction := float64(docCount) / float64(len(results))
	docQuality := 0.5
	if docResults > 0 {
		docQuality = docQualityTotal / float64(docResults)
	}

	if fraction < 0.1 {
		risks = append(risks,
			fmt.Sprintf("Only %d/%d intents produced documentation artifacts", docCount, len(results)))
		feedback = append(feedback, "Add documentation for the major changes in this session")
	}

	return clampScore(fraction*60 + docQuality*40), risks, feedback
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
