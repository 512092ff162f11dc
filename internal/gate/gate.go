// Package gate implements the three-level quality gate pipeline for agent
// output, plus the retry/escalation recommender:
//
//	Gate 1: per-intent validation   ValidateIntent(result)
//	Gate 2: per-wave validation     ValidateWave(results, minQuality)
//	Gate 3: final review            FinalReview(results, total)
//
// Gate 1 applies profile-specific success criteria; Gate 2 holds a wave to
// a minimum quality bar before the next wave starts; Gate 3 renders the
// ship/revise/rethink verdict over the whole session.
package gate

import (
	"fmt"
	"strings"

	"github.com/gman622/qroute/internal/agent"
	"github.com/gman622/qroute/internal/profile"
)

// Report is the outcome of a Gate 1 or Gate 2 check.
type Report struct {
	Passed          bool     `json:"passed"`
	Score           float64  `json:"score"` // 0-100
	Issues          []string `json:"issues,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// Recovery actions returned by Recommend.
const (
	ActionRetry       = "retry_same_agent"
	ActionEscalate    = "escalate_to_higher_agent"
	ActionHumanReview = "flag_for_human_review"
)

// Recommend returns the recovery action for a failed or below-threshold
// intent at the given 1-based attempt number: retry first, escalate next,
// then hand the intent to a human.
func Recommend(attempt int) string {
	if attempt <= 1 {
		return ActionRetry
	}
	if attempt == 2 {
		return ActionEscalate
	}
	return ActionHumanReview
}

// File suffixes that count as documentation artifacts.
var docExtensions = []string{".md", ".rst", ".txt", ".adoc", ".html", ".pdf"}

// Reference fragments that mark a plan/design artifact.
var planKeywords = []string{"plan", "design", "architecture", "roadmap", "proposal"}

func hasDocArtifact(artifacts []string) bool {
	for _, artifact := range artifacts {
		lower := strings.ToLower(artifact)
		for _, ext := range docExtensions {
			if strings.HasSuffix(lower, ext) {
				return true
			}
		}
	}
	return false
}

func hasPlanArtifact(artifacts []string) bool {
	for _, artifact := range artifacts {
		lower := strings.ToLower(artifact)
		for _, kw := range planKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// ValidateIntent is Gate 1: profile-specific validation of a single intent
// result. A failed or still-running result scores zero outright; otherwise
// the profile's rule decides.
func ValidateIntent(r agent.Result) Report {
	if r.Status == agent.StatusInProgress {
		return Report{
			Score:           0,
			Issues:          []string{"Intent is still in progress; cannot validate"},
			Recommendations: []string{"Wait for intent execution to complete"},
		}
	}

	if r.Status == agent.StatusFailed {
		msg := r.ErrorMessage
		if msg == "" {
			msg = "no error message provided"
		}
		return Report{
			Score:           0,
			Issues:          []string{fmt.Sprintf("Intent failed: %s", msg)},
			Recommendations: []string{Recommend(1)},
		}
	}

	check, ok := profileChecks[r.Profile]
	if !ok {
		return Report{
			Score:           0,
			Issues:          []string{fmt.Sprintf("Unknown profile %q", r.Profile)},
			Recommendations: []string{"Valid profiles: " + profileList()},
		}
	}

	report := check(r)

	if !report.Passed {
		for _, issue := range report.Issues {
			lower := strings.ToLower(issue)
			switch {
			case strings.Contains(lower, "tests"):
				report.Recommendations = append(report.Recommendations,
					"Fix failing tests before marking intent as completed")
			case strings.Contains(lower, "coverage"):
				report.Recommendations = append(report.Recommendations,
					"Add more tests to improve coverage delta")
			case strings.Contains(lower, "quality"):
				report.Recommendations = append(report.Recommendations,
					"Improve implementation quality or request review feedback")
			case strings.Contains(lower, "artifact"), strings.Contains(lower, "doc"), strings.Contains(lower, "plan"):
				report.Recommendations = append(report.Recommendations,
					"Ensure all required deliverables are produced and listed in artifacts")
			}
		}
	}

	return report
}

func profileList() string {
	names := make([]string, len(profile.All))
	for i, p := range profile.All {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

// profileChecks dispatches Gate 1 to the profile-specific rule.
var profileChecks = map[profile.Profile]func(agent.Result) Report{
	profile.BugInvestigator: checkBugInvestigator,
	profile.Implementer:     checkImplementer,
	profile.TestEngineer:    checkTestEngineer,
	profile.UnitTester:      checkUnitTester,
	profile.DocWriter:       checkDocWriter,
	profile.Planner:         checkPlanner,
	profile.Reviewer:        checkReviewer,
}

// checkBugInvestigator: the bug no longer reproduces and a regression test
// exists.
func checkBugInvestigator(r agent.Result) Report {
	var issues []string
	score := 0.0

	if r.Quality > 0 {
		score += 40
	} else {
		issues = append(issues, "Bug appears to still reproduce (quality score is 0)")
	}

	if r.TestsPassed {
		score += 40
	} else {
		issues = append(issues, "Regression tests did not pass or were not created")
	}

	if r.Status == agent.StatusCompleted {
		score += 10
	} else {
		issues = append(issues, statusIssue(r.Status))
	}

	if len(r.Artifacts) > 0 {
		score += 10
	} else {
		issues = append(issues, "No artifacts produced (expected PR link or branch name)")
	}

	return Report{Passed: len(issues) == 0, Score: score, Issues: issues}
}

// checkImplementer: the change builds and tests pass, quality clears the
// implementation floor.
func checkImplementer(r agent.Result) Report {
	var issues []string
	score := 0.0

	if r.TestsPassed {
		score += 35
	} else {
		issues = append(issues, "Tests did not pass (code may not compile or have errors)")
	}

	const floor = 0.7
	if r.Quality >= floor {
		bonus := (r.Quality - floor) / (1.0 - floor)
		if bonus > 1 {
			bonus = 1
		}
		score += 25 + 10*bonus
	} else {
		issues = append(issues, fmt.Sprintf("Quality score %.2f below floor %.2f", r.Quality, floor))
	}

	if r.Status == agent.StatusCompleted {
		score += 15
	} else {
		issues = append(issues, statusIssue(r.Status))
	}

	if len(r.Artifacts) > 0 {
		score += 15
	} else {
		issues = append(issues, "No artifacts produced (expected PR link or branch name)")
	}

	return Report{Passed: len(issues) == 0, Score: score, Issues: issues}
}

// checkTestEngineer: all tests pass and coverage holds or improves.
func checkTestEngineer(r agent.Result) Report {
	var issues []string
	score := 0.0

	if r.TestsPassed {
		score += 40
	} else {
		issues = append(issues, "Not all tests passed")
	}

	if r.CoverageDelta >= 0 {
		score += 30
		if r.CoverageDelta > 0 {
			bonus := r.CoverageDelta * 100
			if bonus > 10 {
				bonus = 10
			}
			score += bonus
		}
	} else {
		issues = append(issues, fmt.Sprintf("Coverage decreased by %.2f%%", -r.CoverageDelta*100))
	}

	if r.Quality >= 0.7 {
		score += 10
	} else {
		issues = append(issues, fmt.Sprintf("Quality score %.2f below 0.70 threshold", r.Quality))
	}

	if r.Status == agent.StatusCompleted {
		score += 10
	} else {
		issues = append(issues, statusIssue(r.Status))
	}

	return Report{Passed: len(issues) == 0, Score: clampScore(score), Issues: issues}
}

// checkUnitTester: coverage must actually increase.
func checkUnitTester(r agent.Result) Report {
	var issues []string
	score := 0.0

	if r.CoverageDelta > 0 {
		score += 40
		bonus := r.CoverageDelta * 200
		if bonus > 10 {
			bonus = 10
		}
		score += bonus
	} else {
		issues = append(issues, fmt.Sprintf("Coverage did not increase (delta: %+.2f%%)", r.CoverageDelta*100))
	}

	if r.TestsPassed {
		score += 30
	} else {
		issues = append(issues, "Tests did not pass")
	}

	if r.Status == agent.StatusCompleted {
		score += 10
	} else {
		issues = append(issues, statusIssue(r.Status))
	}

	if len(r.Artifacts) > 0 {
		score += 10
	} else {
		issues = append(issues, "No artifacts produced")
	}

	return Report{Passed: len(issues) == 0, Score: clampScore(score), Issues: issues}
}

// checkDocWriter: at least one artifact is a documentation file.
func checkDocWriter(r agent.Result) Report {
	var issues []string
	score := 0.0

	if hasDocArtifact(r.Artifacts) {
		score += 40
	} else {
		issues = append(issues,
			"No documentation artifact found (expected .md, .rst, .txt, .adoc, .html, or .pdf)")
	}

	if r.Quality >= 0.6 {
		bonus := r.Quality * 25
		if bonus > 25 {
			bonus = 25
		}
		score += bonus
	} else {
		issues = append(issues, fmt.Sprintf("Quality score %.2f below 0.60 threshold", r.Quality))
	}

	if r.Status == agent.StatusCompleted {
		score += 15
	} else {
		issues = append(issues, statusIssue(r.Status))
	}

	if len(r.Artifacts) > 0 {
		score += 10
	}
	if r.TestsPassed {
		score += 10
	}

	return Report{Passed: len(issues) == 0, Score: clampScore(score), Issues: issues}
}

// checkPlanner: the output includes a plan or design document.
func checkPlanner(r agent.Result) Report {
	var issues []string
	score := 0.0

	if hasPlanArtifact(r.Artifacts) {
		score += 40
	} else {
		issues = append(issues,
			"No plan/design artifact found (expected an artifact with 'plan', 'design', 'architecture', 'roadmap', or 'proposal' in the name)")
	}

	if r.Quality >= 0.7 {
		bonus := r.Quality * 25
		if bonus > 25 {
			bonus = 25
		}
		score += bonus
	} else {
		issues = append(issues, fmt.Sprintf("Quality score %.2f below 0.70 threshold", r.Quality))
	}

	if r.Status == agent.StatusCompleted {
		score += 15
	} else {
		issues = append(issues, statusIssue(r.Status))
	}

	if len(r.Artifacts) > 0 {
		score += 10
	}
	if r.TestsPassed {
		score += 10
	}

	return Report{Passed: len(issues) == 0, Score: clampScore(score), Issues: issues}
}

// checkReviewer: quality reflects review thoroughness; 0.80 is a full
// pass, 0.60 partial credit.
func checkReviewer(r agent.Result) Report {
	var issues []string
	score := 0.0

	switch {
	case r.Quality >= 0.8:
		score += 50
	case r.Quality >= 0.6:
		score += 30
		issues = append(issues,
			fmt.Sprintf("Review quality %.2f is acceptable but could be more thorough", r.Quality))
	default:
		issues = append(issues,
			fmt.Sprintf("Review quality %.2f is insufficient (below 0.60)", r.Quality))
	}

	if r.Status == agent.StatusCompleted {
		score += 20
	} else {
		issues = append(issues, statusIssue(r.Status))
	}

	if len(r.Artifacts) > 0 {
		score += 20
	} else {
		issues = append(issues, "No review artifacts produced (expected PR review link or comments)")
	}

	if r.TestsPassed {
		score += 10
	}

	return Report{Passed: len(issues) == 0, Score: clampScore(score), Issues: issues}
}

func statusIssue(s agent.Status) string {
	return fmt.Sprintf("Intent status is %q, expected %q", s, agent.StatusCompleted)
}

func clampScore(s float64) float64 {
	if s > 100 {
		return 100
	}
	if s < 0 {
		return 0
	}
	return s
}
