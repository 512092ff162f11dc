package wave

import "sync"

// ArtifactCollector accumulates artifacts across waves so later intents
// can see what their dependencies produced. Safe for concurrent use.
type ArtifactCollector struct {
	mu       sync.Mutex
	byIntent map[string][]string
}

// NewArtifactCollector returns an empty collector.
func NewArtifactCollector() *ArtifactCollector {
	return &ArtifactCollector{byIntent: make(map[string][]string)}
}

// Record appends artifacts for an intent.
func (c *ArtifactCollector) Record(intentID string, artifacts []string) {
	if len(artifacts) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byIntent[intentID] = append(c.byIntent[intentID], artifacts...)
}

// ForIntent returns a copy of the artifacts recorded for one intent.
func (c *ArtifactCollector) ForIntent(intentID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.byIntent[intentID]...)
}

// ForDependencies flattens the artifacts of the given intents, in the
// order the ids are listed.
func (c *ArtifactCollector) ForDependencies(depIDs []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, id := range depIDs {
		out = append(out, c.byIntent[id]...)
	}
	return out
}

// Snapshot copies the full intent → artifacts map.
func (c *ArtifactCollector) Snapshot() map[string][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]string, len(c.byIntent))
	for id, arts := range c.byIntent {
		out[id] = append([]string(nil), arts...)
	}
	return out
}
