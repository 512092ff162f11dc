package agent

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/gman622/qroute/internal/intent"
)

// ErrNoAgents is returned when a pool file declares no agents.
var ErrNoAgents = errors.New("agent pool file declares no agents")

// poolFile is the on-disk agents.toml shape.
type poolFile struct {
	Agents []agentEntry `toml:"agents"`
}

type agentEntry struct {
	Name       string  `toml:"name"`
	Model      string  `toml:"model"`
	Quality    float64 `toml:"quality"`
	TokenRate  float64 `toml:"token_rate"`
	Latency    float64 `toml:"latency"`
	Throughput float64 `toml:"throughput"`
	Capacity   int     `toml:"capacity"`
	Local      bool    `toml:"local"`

	// Capabilities lists tiers explicitly; MaxTier is the shorthand for
	// "everything up to and including this tier". Exactly one is required.
	Capabilities []string `toml:"capabilities,omitempty"`
	MaxTier      string   `toml:"max_tier,omitempty"`
}

// LoadPool reads a TOML fleet definition. Every entry needs a unique
// name, a quality in [0, 1], a positive capacity, and a capability set.
func LoadPool(path string) (*Pool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading agent pool: %w", err)
	}

	var pf poolFile
	if err := toml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing agent pool %s: %w", path, err)
	}
	if len(pf.Agents) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoAgents)
	}

	seen := make(map[string]bool, len(pf.Agents))
	agents := make([]Agent, 0, len(pf.Agents))
	for i, e := range pf.Agents {
		if e.Name == "" {
			return nil, fmt.Errorf("%s: agent %d has no name", path, i)
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("%s: duplicate agent name %q", path, e.Name)
		}
		seen[e.Name] = true
		if e.Quality < 0 || e.Quality > 1 {
			return nil, fmt.Errorf("%s: agent %q quality %v outside [0, 1]", path, e.Name, e.Quality)
		}
		if e.Capacity <= 0 {
			return nil, fmt.Errorf("%s: agent %q capacity must be positive, got %d", path, e.Name, e.Capacity)
		}

		caps, err := capabilitiesOf(e)
		if err != nil {
			return nil, fmt.Errorf("%s: agent %q: %w", path, e.Name, err)
		}

		model := e.Model
		if model == "" {
			model = e.Name
		}
		agents = append(agents, Agent{
			Name:         e.Name,
			Type:         model,
			Quality:      e.Quality,
			TokenRate:    e.TokenRate,
			Latency:      e.Latency,
			Throughput:   e.Throughput,
			Capacity:     e.Capacity,
			Capabilities: caps,
			Local:        e.Local,
		})
	}

	return NewPool(agents), nil
}

func capabilitiesOf(e agentEntry) (map[intent.Complexity]bool, error) {
	switch {
	case len(e.Capabilities) > 0 && e.MaxTier != "":
		return nil, errors.New("set capabilities or max_tier, not both")
	case e.MaxTier != "":
		tier := intent.Complexity(e.MaxTier)
		if !tier.Valid() {
			return nil, fmt.Errorf("unknown max_tier %q", e.MaxTier)
		}
		return TiersUpTo(tier), nil
	case len(e.Capabilities) > 0:
		caps := make(map[intent.Complexity]bool, len(e.Capabilities))
		for _, name := range e.Capabilities {
			tier := intent.Complexity(name)
			if !tier.Valid() {
				return nil, fmt.Errorf("unknown capability tier %q", name)
			}
			caps[tier] = true
		}
		return caps, nil
	default:
		return nil, errors.New("no capabilities declared")
	}
}
