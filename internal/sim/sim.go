// Package sim provides a controllable simulated execution backend:
// deterministic under a fixed seed, with tunable failure and quality
// distributions. It backs dry runs and executor tests where real agent
// sessions would be slow, expensive, or flaky.
package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gman622/qroute/internal/agent"
	"github.com/gman622/qroute/internal/profile"
)

// Defaults for a Backend built from a zero Config.
const (
	DefaultFailureRate = 0.15
	DefaultQualityMean = 0.85
	DefaultQualityStd  = 0.08
	DefaultSeed        = 42
)

// Config tunes the simulation.
type Config struct {
	// FailureRate is the probability of failure on a first attempt. The
	// effective rate drops as failure_rate/attempt on retries.
	FailureRate float64
	// QualityMean and QualityStd shape the quality distribution of
	// successful attempts.
	QualityMean float64
	QualityStd  float64
	// Seed fixes the random stream; identical seeds replay identical runs.
	Seed int64
	// Delay, when positive, sleeps a random slice of itself per dispatch
	// to mimic wall time. Zero keeps tests instant.
	Delay time.Duration
	// Pool, when set, adds a small quality bonus for pricier model types.
	Pool *agent.Pool

	// Exact, when true, skips the rate/attempt decay so FailureRate 1.0
	// fails every attempt.
	Exact bool
}

// Backend fabricates intent results instead of running agents.
type Backend struct {
	mu        sync.Mutex
	rng       *rand.Rand
	cfg       Config
	prCounter int
}

// New builds a simulated backend. Zero-value Config fields fall back to
// the package defaults; a FailureRate of exactly 0 is honored (use it
// for always-green runs).
func New(cfg Config) *Backend {
	if cfg.QualityMean == 0 {
		cfg.QualityMean = DefaultQualityMean
	}
	if cfg.QualityStd == 0 {
		cfg.QualityStd = DefaultQualityStd
	}
	if cfg.Seed == 0 {
		cfg.Seed = DefaultSeed
	}
	return &Backend{
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		cfg:       cfg,
		prCounter: 100,
	}
}

// NewDefault builds a backend with the stock failure rate.
func NewDefault() *Backend {
	return New(Config{FailureRate: DefaultFailureRate})
}

// Profile-appropriate artifact templates; {pr} and {id} are filled per
// dispatch.
var artifactTemplates = map[profile.Profile][]string{
	profile.BugInvestigator: {"PR #{pr}", "fix/{id}", "tests/regression/{id}_test.go"},
	profile.Implementer:     {"PR #{pr}", "feature/{id}", "internal/{id}/{id}.go"},
	profile.TestEngineer:    {"PR #{pr}", "tests/{id}_test.go", "coverage-report.html"},
	profile.UnitTester:      {"PR #{pr}", "tests/unit/{id}_test.go"},
	profile.DocWriter:       {"docs/{id}.md", "PR #{pr}", "docs/api/{id}-reference.md"},
	profile.Planner:         {"docs/design/{id}-plan.md", "PR #{pr}", "docs/architecture/{id}-rfc.md"},
	profile.Reviewer:        {"PR #{pr} review", "review-comments/{id}.md"},
}

var errorPools = map[profile.Profile][]string{
	profile.BugInvestigator: {
		"Could not reproduce bug in test environment",
		"Regression test timeout after 30s",
	},
	profile.Implementer: {
		"Build failed: type mismatch in interface",
		"Integration test failure in dependent module",
	},
	profile.TestEngineer: {
		"Flaky test detected: non-deterministic ordering",
		"Coverage tool crash on large file",
	},
	profile.UnitTester: {
		"Mock setup error: unexpected call sequence",
		"Assertion error in edge case test",
	},
	profile.DocWriter: {
		"Markdown lint errors in generated docs",
		"Broken internal links in API reference",
	},
	profile.Planner: {
		"Plan validation failed: circular dependency in proposed architecture",
		"Missing requirements traceability",
	},
	profile.Reviewer: {
		"Review blocked: PR has merge conflicts",
		"Static analysis found critical issues",
	},
}

// Dispatch simulates one attempt. Safe for concurrent use; the random
// stream is serialized so a fixed seed replays the same sequence of
// outcomes for the same sequence of calls.
func (b *Backend) Dispatch(ctx context.Context, task agent.Task) (agent.Result, error) {
	if task.Attempt < 1 {
		return agent.Result{}, fmt.Errorf("attempt must be >= 1, got %d", task.Attempt)
	}

	b.mu.Lock()
	outcome := b.roll(task)
	b.mu.Unlock()

	if b.cfg.Delay > 0 {
		select {
		case <-time.After(time.Duration(outcome.delayFrac * float64(b.cfg.Delay))):
		case <-ctx.Done():
			return agent.Result{}, ctx.Err()
		}
	}
	return outcome.result, nil
}

type rolled struct {
	result    agent.Result
	delayFrac float64
}

// roll produces the attempt outcome. Caller holds b.mu.
func (b *Backend) roll(task agent.Task) rolled {
	out := rolled{delayFrac: 0.2 + 0.8*b.rng.Float64()}

	// Retries are less likely to fail than first attempts.
	effective := b.cfg.FailureRate
	if !b.cfg.Exact {
		effective /= float64(task.Attempt)
	}

	id := task.Intent.ID
	if b.rng.Float64() < effective {
		out.result = agent.Result{
			IntentID:     id,
			Profile:      task.Profile,
			Model:        task.Model,
			Agent:        task.Agent,
			Status:       agent.StatusFailed,
			ErrorMessage: b.randomError(task.Profile),
			Attempt:      task.Attempt,
		}
		return out
	}

	quality := clamp01(b.rng.NormFloat64()*b.cfg.QualityStd + b.cfg.QualityMean)
	if b.cfg.Pool != nil {
		// Pricier models land slightly better results.
		quality = math.Min(1.0, quality+b.cfg.Pool.RateOf(task.Model)*1000)
	}

	b.prCounter++
	templates, ok := artifactTemplates[task.Profile]
	if !ok {
		templates = []string{"PR #{pr}"}
	}
	artifacts := make([]string, len(templates))
	for i, t := range templates {
		artifacts[i] = expand(t, b.prCounter, id)
	}

	var coverage float64
	switch task.Profile {
	case profile.TestEngineer, profile.UnitTester:
		coverage = math.Max(0.01, b.rng.NormFloat64()*0.02+0.05)
	case profile.BugInvestigator:
		coverage = math.Max(0, b.rng.NormFloat64()*0.01+0.02)
	}

	tokens := task.Intent.Tokens()
	out.result = agent.Result{
		IntentID:      id,
		Profile:       task.Profile,
		Model:         task.Model,
		Agent:         task.Agent,
		Status:        agent.StatusCompleted,
		Quality:       round4(quality),
		TestsPassed:   true,
		CoverageDelta: round4(coverage),
		Artifacts:     artifacts,
		Attempt:       task.Attempt,
		TokensUsed:    tokens + int(float64(tokens)*0.2*(b.rng.Float64()-0.5)),
	}
	return out
}

// randomError picks a failure message from the profile's pool. Caller
// holds b.mu.
func (b *Backend) randomError(p profile.Profile) string {
	pool, ok := errorPools[p]
	if !ok {
		return "Unexpected execution error"
	}
	return pool[b.rng.Intn(len(pool))]
}

func expand(template string, pr int, id string) string {
	out := strings.ReplaceAll(template, "{pr}", strconv.Itoa(pr))
	return strings.ReplaceAll(out, "{id}", id)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
