package agent

import (
	"context"

	"github.com/gman622/qroute/internal/intent"
	"github.com/gman622/qroute/internal/profile"
)

// Status is the terminal (or in-flight) state of one intent attempt.
type Status string

const (
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusInProgress  Status = "in_progress"
	StatusHumanReview Status = "human_review"
)

// Task describes one dispatch request: an intent bound to a profile and a
// concrete model, with artifacts from its dependency intents.
type Task struct {
	Intent  *intent.Intent
	Profile profile.Profile
	Model   string // model type to run, e.g. "claude"
	Agent   string // instance name, e.g. "claude-3"
	Attempt int    // 1-based attempt counter

	// PriorArtifacts are outputs of the intent's dependencies, handed to
	// the agent as working context.
	PriorArtifacts []string

	// Brief is a rendered markdown work order for the agent. Simulated
	// backends ignore it.
	Brief string
}

// Result is the outcome of one attempt at an intent.
type Result struct {
	IntentID      string          `json:"intent_id"`
	Profile       profile.Profile `json:"profile"`
	Model         string          `json:"model"`
	Agent         string          `json:"agent,omitempty"`
	Status        Status          `json:"status"`
	Quality       float64         `json:"quality_score"`
	TestsPassed   bool            `json:"tests_passed"`
	CoverageDelta float64         `json:"coverage_delta"`
	Artifacts     []string        `json:"artifacts,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	Attempt       int             `json:"attempt"`
	TokensUsed    int             `json:"tokens_used"`
}

// Backend executes intents on some substrate: real agent sessions in
// production, a simulator in tests and dry runs.
//
// Dispatch must honor ctx cancellation. A non-nil error means the backend
// itself broke (not the work); the executor converts it into a failed
// attempt and sends it through the normal retry path.
type Backend interface {
	Dispatch(ctx context.Context, task Task) (Result, error)
}
