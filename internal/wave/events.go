package wave

// Progress event names. Every event carries a flat payload map; the
// executor serializes callbacks so consumers see one ordered stream.
const (
	EventWaveStarted        = "wave_started"
	EventWaveCompleted      = "wave_completed"
	EventIntentStarted      = "intent_started"
	EventIntentCompleted    = "intent_completed"
	EventIntentRetried      = "intent_retried"
	EventIntentEscalated    = "intent_escalated"
	EventIntentHumanReview  = "intent_human_review"
	EventExecutionCompleted = "execution_completed"
)

// ProgressFunc receives progress events during a run. Callbacks are
// invoked under the executor's lock: they never race each other, and
// slow callbacks slow the run.
type ProgressFunc func(event string, data map[string]any)
