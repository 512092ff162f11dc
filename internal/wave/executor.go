// Package wave executes a plan wave by wave: intents within a wave run
// in parallel on a pluggable backend, failures climb a retry → escalate
// → human-flag ladder, and quality gates hold at the intent, wave, and
// session level.
package wave

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gman622/qroute/internal/agent"
	"github.com/gman622/qroute/internal/gate"
	"github.com/gman622/qroute/internal/intent"
	"github.com/gman622/qroute/internal/plan"
	"github.com/gman622/qroute/internal/profile"
)

// Defaults applied when the corresponding Executor field is zero.
const (
	DefaultMaxRetries = 4
	DefaultMaxWorkers = 8
)

// IntentState tracks one intent across its attempts.
type IntentState string

const (
	StatePending     IntentState = "pending"
	StateInFlight    IntentState = "in_flight"
	StatePassed      IntentState = "passed"
	StateFailing     IntentState = "failing"
	StateHumanReview IntentState = "human_review"
)

// Wave outcomes after its quality gate.
const (
	WavePassed = "passed"
	WaveFailed = "failed"
)

// IntentExecution is the full record of one intent: every attempt, the
// final result, and its last gate report.
type IntentExecution struct {
	IntentID   string          `json:"intent_id"`
	Profile    profile.Profile `json:"profile"`
	Model      string          `json:"model"`
	Agent      string          `json:"agent"`
	Attempts   []agent.Result  `json:"attempts"`
	Final      *agent.Result   `json:"final,omitempty"`
	Validation *gate.Report    `json:"validation,omitempty"`
	Status     IntentState     `json:"status"`
}

// WaveResult is the outcome of one wave.
type WaveResult struct {
	Wave       int                         `json:"wave"`
	Executions map[string]*IntentExecution `json:"executions"`
	Validation gate.Report                 `json:"validation"`
	Status     string                      `json:"status"`
	Duration   time.Duration               `json:"duration"`
}

// ExecutionResult is the complete outcome of a session. It is populated
// even when the session aborts early; Incomplete and Err say why.
type ExecutionResult struct {
	SessionID   string              `json:"session_id"`
	Waves       []WaveResult        `json:"waves"`
	Results     []agent.Result      `json:"results"`
	Review      gate.Review         `json:"review"`
	Artifacts   map[string][]string `json:"artifacts,omitempty"`
	TotalCost   float64             `json:"total_cost"`
	Duration    time.Duration       `json:"duration"`
	Passed      int                 `json:"passed"`
	Failed      int                 `json:"failed"`
	HumanReview int                 `json:"human_review"`
	Retries     int                 `json:"retries"`
	Escalations int                 `json:"escalations"`
	Cancelled   bool                `json:"cancelled,omitempty"`
	Incomplete  bool                `json:"incomplete,omitempty"`
	Err         string              `json:"error,omitempty"`
}

// Executor runs a plan against a backend. Configure the exported fields
// and call Run; zero fields fall back to defaults. An Executor is not
// safe for concurrent Runs.
type Executor struct {
	Backend agent.Backend
	Pool    *agent.Pool

	MaxRetries     int           // attempts per intent before the human flag
	MaxWorkers     int           // concurrent intents per wave
	MinWaveQuality float64       // wave gate threshold, 0 means the default 0.70
	StrictWaves    bool          // abort the session when a wave fails its gate
	SessionTimeout time.Duration // 0 means no timeout
	Progress       ProgressFunc  // optional event stream
	Log            *zap.Logger   // nil means no logging
	SessionID      string        // empty means a fresh UUID per Run
}

// session is the per-run state shared by the wave workers.
type session struct {
	backend    agent.Backend
	pool       *agent.Pool
	maxRetries int
	minQuality float64
	progress   ProgressFunc
	log        *zap.Logger

	sem       chan struct{}
	artifacts *ArtifactCollector
	byID      map[string]*intent.Intent

	mu          sync.Mutex
	retries     int
	escalations int
}

// Run executes the plan. Intents supply titles, bodies, and briefs for
// dispatch; entries missing from the slice are synthesized from the
// plan. The returned ExecutionResult is always complete: on session
// errors (cancellation, timeout, a strict wave failure) it carries the
// partial outcome alongside the returned error.
func (e *Executor) Run(ctx context.Context, p *plan.Plan, intents []intent.Intent) (*ExecutionResult, error) {
	if e.Backend == nil {
		return nil, errors.New("executor has no backend")
	}
	if e.Pool == nil {
		return nil, errors.New("executor has no agent pool")
	}

	if e.SessionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.SessionTimeout)
		defer cancel()
	}

	maxRetries := e.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	maxWorkers := e.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	minQuality := e.MinWaveQuality
	if minQuality <= 0 {
		minQuality = gate.DefaultMinQuality
	}

	log := e.Log
	if log == nil {
		log = zap.NewNop()
	}

	byID := make(map[string]*intent.Intent, len(intents))
	for i := range intents {
		byID[intents[i].ID] = &intents[i]
	}

	sessionID := e.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	s := &session{
		backend:    e.Backend,
		pool:       e.Pool,
		maxRetries: maxRetries,
		minQuality: minQuality,
		progress:   e.Progress,
		log:        log.With(zap.String("session", sessionID)),
		sem:        make(chan struct{}, maxWorkers),
		artifacts:  NewArtifactCollector(),
		byID:       byID,
	}

	s.log.Debug("session started",
		zap.Int("waves", len(p.Waves)),
		zap.Int("intents", p.TotalIntents),
		zap.Int("workers", maxWorkers))

	res := &ExecutionResult{SessionID: sessionID, Waves: []WaveResult{}, Results: []agent.Result{}}
	start := time.Now()
	var sessionErr error

	for wi := range p.Waves {
		if err := ctx.Err(); err != nil {
			sessionErr = err
			break
		}

		wr := s.runWave(ctx, &p.Waves[wi])
		res.Waves = append(res.Waves, wr)

		// Collect finals in plan order so reruns compare cleanly.
		for _, entry := range p.Waves[wi].Intents {
			ie := wr.Executions[entry.ID]
			if ie == nil {
				continue
			}
			if ie.Final != nil {
				res.Results = append(res.Results, *ie.Final)
			}
			if ie.Status == StateHumanReview {
				res.HumanReview++
			}
		}

		if wr.Status == WaveFailed && e.StrictWaves {
			sessionErr = fmt.Errorf("wave %d failed its quality gate (score %.1f)", wr.Wave, wr.Validation.Score)
			break
		}
	}
	if err := ctx.Err(); err != nil && sessionErr == nil {
		sessionErr = err
	}

	for i := range res.Results {
		r := &res.Results[i]
		if r.Status == agent.StatusCompleted {
			res.Passed++
		} else {
			res.Failed++
		}
		if entry := p.Entry(r.IntentID); entry != nil {
			res.TotalCost += entry.EstimatedCost
		}
	}

	// The final review runs best-effort even over an aborted session.
	res.Review = gate.FinalReview(res.Results, p.TotalIntents)
	res.Artifacts = s.artifacts.Snapshot()
	res.Duration = time.Since(start)
	s.mu.Lock()
	res.Retries, res.Escalations = s.retries, s.escalations
	s.mu.Unlock()

	if sessionErr != nil {
		res.Incomplete = true
		// A session timeout cancels in-flight work the same way an
		// interrupt does; both count as a cancelled session.
		res.Cancelled = errors.Is(sessionErr, context.Canceled) ||
			errors.Is(sessionErr, context.DeadlineExceeded)
		res.Err = sessionErr.Error()
	}

	s.log.Debug("session finished",
		zap.String("verdict", string(res.Review.Verdict)),
		zap.Int("passed", res.Passed),
		zap.Int("failed", res.Failed),
		zap.Bool("incomplete", res.Incomplete))

	s.emit(EventExecutionCompleted, map[string]any{
		"verdict":      string(res.Review.Verdict),
		"passed":       res.Passed,
		"failed":       res.Failed,
		"human_review": res.HumanReview,
	})

	return res, sessionErr
}

// runWave dispatches every intent in the wave concurrently (bounded by
// the worker semaphore), waits for all to settle, then applies the wave
// quality gate.
func (s *session) runWave(ctx context.Context, wp *plan.Wave) WaveResult {
	start := time.Now()
	wr := WaveResult{
		Wave:       wp.Wave,
		Executions: make(map[string]*IntentExecution, len(wp.Intents)),
	}

	s.emit(EventWaveStarted, map[string]any{
		"wave":         wp.Wave,
		"intent_count": len(wp.Intents),
	})

	execs := make([]*IntentExecution, len(wp.Intents))
	var wg sync.WaitGroup
	for i := range wp.Intents {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			select {
			case s.sem <- struct{}{}:
			case <-ctx.Done():
				return // cancelled before dispatch; the intent stays pending
			}
			defer func() { <-s.sem }()
			execs[i] = s.runIntent(ctx, &wp.Intents[i])
		}(i)
	}
	wg.Wait()

	var finals []agent.Result
	for i, ie := range execs {
		if ie == nil {
			entry := &wp.Intents[i]
			ie = &IntentExecution{
				IntentID: entry.ID,
				Profile:  entry.Profile,
				Model:    entry.Model,
				Agent:    entry.Agent,
				Status:   StatePending,
			}
		}
		wr.Executions[ie.IntentID] = ie
		if ie.Final != nil {
			finals = append(finals, *ie.Final)
		}
	}

	wr.Validation = gate.ValidateWave(finals, s.minQuality)
	wr.Status = WavePassed
	if !wr.Validation.Passed {
		wr.Status = WaveFailed
	}
	wr.Duration = time.Since(start)

	s.log.Debug("wave settled",
		zap.Int("wave", wp.Wave),
		zap.String("status", wr.Status),
		zap.Float64("score", wr.Validation.Score),
		zap.Duration("duration", wr.Duration))

	s.emit(EventWaveCompleted, map[string]any{
		"wave":     wp.Wave,
		"status":   wr.Status,
		"score":    wr.Validation.Score,
		"duration": round3(wr.Duration.Seconds()),
	})

	return wr
}

// runIntent walks one intent up the retry ladder until it passes its
// gate, gets flagged for a human, or runs out of attempts.
func (s *session) runIntent(ctx context.Context, entry *plan.Entry) *IntentExecution {
	it := s.intentFor(entry)
	ie := &IntentExecution{
		IntentID: entry.ID,
		Profile:  entry.Profile,
		Model:    entry.Model,
		Agent:    entry.Agent,
		Status:   StateInFlight,
	}

	s.emit(EventIntentStarted, map[string]any{
		"intent_id": entry.ID,
		"profile":   string(entry.Profile),
		"model":     ie.Model,
		"wave":      entry.Wave,
	})

	flagged := false
	for attempt := 1; attempt <= s.maxRetries && !flagged; attempt++ {
		preds := s.artifacts.ForDependencies(entry.DependsOn)
		task := agent.Task{
			Intent:         it,
			Profile:        entry.Profile,
			Model:          ie.Model,
			Agent:          ie.Agent,
			Attempt:        attempt,
			PriorArtifacts: preds,
			Brief:          Brief(entry, it, preds),
		}

		res, err := s.backend.Dispatch(ctx, task)
		if err != nil {
			// Backend faults ride the normal ladder as failed attempts.
			res = agent.Result{
				IntentID:     entry.ID,
				Profile:      entry.Profile,
				Model:        ie.Model,
				Agent:        ie.Agent,
				Status:       agent.StatusFailed,
				ErrorMessage: err.Error(),
				Attempt:      attempt,
			}
		}
		ie.Attempts = append(ie.Attempts, res)

		v := gate.ValidateIntent(res)
		if v.Passed {
			ie.Final = &ie.Attempts[len(ie.Attempts)-1]
			ie.Validation = &v
			ie.Status = StatePassed
			s.artifacts.Record(entry.ID, res.Artifacts)
			s.emit(EventIntentCompleted, map[string]any{
				"intent_id": entry.ID,
				"status":    "passed",
				"score":     v.Score,
				"attempt":   attempt,
			})
			return ie
		}

		ie.Status = StateFailing
		s.emit(EventIntentCompleted, map[string]any{
			"intent_id": entry.ID,
			"status":    "failed",
			"score":     v.Score,
			"attempt":   attempt,
		})

		if attempt >= s.maxRetries || ctx.Err() != nil {
			break
		}

		switch gate.Recommend(attempt) {
		case gate.ActionRetry:
			reason := "validation failed"
			if len(v.Issues) > 0 {
				reason = v.Issues[0]
			}
			s.count(&s.retries)
			s.emit(EventIntentRetried, map[string]any{
				"intent_id": entry.ID,
				"attempt":   attempt + 1,
				"model":     ie.Model,
				"reason":    reason,
			})
		case gate.ActionEscalate:
			next := s.pool.NextStrongerModel(entry.Profile, ie.Model)
			s.count(&s.escalations)
			s.log.Debug("escalating intent",
				zap.String("intent", entry.ID),
				zap.String("from", ie.Model),
				zap.String("to", next))
			s.emit(EventIntentEscalated, map[string]any{
				"intent_id":  entry.ID,
				"from_model": ie.Model,
				"to_model":   next,
				"attempt":    attempt + 1,
			})
			ie.Model = next
			ie.Agent = s.instanceOf(next, ie.Agent)
		default:
			flagged = true
		}
	}

	// Retries exhausted or flagged: hand the intent to a human, keeping
	// whatever the last attempt produced.
	if n := len(ie.Attempts); n > 0 {
		ie.Final = &ie.Attempts[n-1]
		v := gate.ValidateIntent(*ie.Final)
		ie.Validation = &v
		s.artifacts.Record(entry.ID, ie.Final.Artifacts)
	}
	ie.Status = StateHumanReview

	lastErr := "no result"
	if ie.Final != nil {
		lastErr = ie.Final.ErrorMessage
	}
	s.emit(EventIntentHumanReview, map[string]any{
		"intent_id":  entry.ID,
		"attempts":   len(ie.Attempts),
		"last_error": lastErr,
	})

	return ie
}

// intentFor resolves the backing intent, synthesizing one from the plan
// entry when the backlog was not supplied.
func (s *session) intentFor(e *plan.Entry) *intent.Intent {
	if it, ok := s.byID[e.ID]; ok {
		return it
	}
	return &intent.Intent{
		ID:              e.ID,
		Title:           e.ID,
		Complexity:      e.Complexity,
		EstimatedTokens: e.EstimatedTokens,
		DependsOn:       append([]string{}, e.DependsOn...),
		Workflow:        e.Workflow,
	}
}

// instanceOf picks an instance of the given model type, keeping the
// current name when the pool has none.
func (s *session) instanceOf(model, current string) string {
	if as := s.pool.ByType(model); len(as) > 0 {
		return as[0].Name
	}
	return current
}

func (s *session) emit(event string, data map[string]any) {
	if s.progress == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress(event, data)
}

func (s *session) count(counter *int) {
	s.mu.Lock()
	*counter++
	s.mu.Unlock()
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
