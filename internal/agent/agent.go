// Package agent models the execution fleet: agent types with quality,
// cost, latency, and capacity characteristics, plus the backend interface
// used to dispatch intents to them.
//
// The default fleet mixes metered cloud agents (high quality, per-token
// cost) with free local agents (lower quality, capability-limited). The
// solver assigns intents to individual agent instances; capacity is
// enforced per instance across the whole session.
package agent

import (
	"sort"
	"strconv"

	"github.com/gman622/qroute/internal/intent"
	"github.com/gman622/qroute/internal/profile"
)

// Agent is a single dispatchable instance of a model.
type Agent struct {
	Name         string  // instance name, e.g. "claude-3"
	Type         string  // model name, e.g. "claude"
	Quality      float64 // expected output quality in [0, 1]
	TokenRate    float64 // USD per token; zero for local models
	Latency      float64 // dispatch latency in seconds
	Throughput   float64 // tokens per minute
	Capacity     int     // max intents this instance takes per session
	Capabilities map[intent.Complexity]bool
	Local        bool
}

// defaultThroughput stands in when an agent is built without a
// throughput figure, so duration estimates stay finite.
const defaultThroughput = 500.0

// Duration estimates minutes of work for a token count at this agent's
// throughput.
func (a *Agent) Duration(tokens int) float64 {
	tp := a.Throughput
	if tp <= 0 {
		tp = defaultThroughput
	}
	return float64(tokens) / tp
}

// CanAssign reports whether the agent may take the intent at all: the
// intent's tier must be within the agent's capabilities and the agent's
// quality must clear the intent's floor.
func (a *Agent) CanAssign(it *intent.Intent) bool {
	return a.Capabilities[it.Complexity] && a.Quality >= it.Floor()
}

// TiersUpTo returns the capability set covering every tier from trivial
// through max inclusive.
func TiersUpTo(max intent.Complexity) map[intent.Complexity]bool {
	caps := make(map[intent.Complexity]bool, len(intent.Tiers))
	for _, tier := range intent.Tiers {
		if tier.Rank() <= max.Rank() {
			caps[tier] = true
		}
	}
	return caps
}

// Cloud fleet shape: each cloud model runs this many concurrent instances,
// each instance taking at most this many intents per session.
const (
	CloudInstances = 10
	CloudCapacity  = 25
	CloudLatency   = 2.0
)

type modelSpec struct {
	typ        string
	rate       float64
	quality    float64
	throughput float64
	maxTier    intent.Complexity
	// local-only fields
	capacity int
	latency  float64
}

var cloudModels = []modelSpec{
	{typ: "claude", rate: 0.000020, quality: 0.95, throughput: 400, maxTier: intent.Epic},
	{typ: "gpt5.2", rate: 0.000030, quality: 0.92, throughput: 350, maxTier: intent.VeryComplex},
	{typ: "gemini", rate: 0.000005, quality: 0.88, throughput: 800, maxTier: intent.Complex},
	{typ: "kimi2.5", rate: 0.000002, quality: 0.85, throughput: 700, maxTier: intent.Complex},
}

var localModels = []modelSpec{
	{typ: "llama3.2-1b", quality: 0.40, throughput: 1500, maxTier: intent.Simple, capacity: 3, latency: 0.5},
	{typ: "llama3.2-3b", quality: 0.55, throughput: 1200, maxTier: intent.Moderate, capacity: 2, latency: 0.8},
	{typ: "llama3.1-8b", quality: 0.65, throughput: 900, maxTier: intent.Moderate, capacity: 2, latency: 1.2},
	{typ: "codellama-7b", quality: 0.70, throughput: 950, maxTier: intent.Moderate, capacity: 2, latency: 1.0},
	{typ: "mistral-7b", quality: 0.60, throughput: 1000, maxTier: intent.Moderate, capacity: 2, latency: 1.0},
	{typ: "phi3-mini", quality: 0.45, throughput: 1600, maxTier: intent.Simple, capacity: 4, latency: 0.3},
	{typ: "qwen2-7b", quality: 0.65, throughput: 950, maxTier: intent.Moderate, capacity: 2, latency: 1.1},
	{typ: "deepseek-coder", quality: 0.72, throughput: 900, maxTier: intent.Moderate, capacity: 2, latency: 1.0},
}

// Pool is a fixed fleet of agent instances.
type Pool struct {
	Agents []Agent

	byName map[string]*Agent
	byType map[string][]*Agent
}

// NewPool builds a pool from explicit agents, preserving their order.
func NewPool(agents []Agent) *Pool {
	p := &Pool{
		Agents: agents,
		byName: make(map[string]*Agent, len(agents)),
		byType: make(map[string][]*Agent),
	}
	for i := range p.Agents {
		a := &p.Agents[i]
		p.byName[a.Name] = a
		p.byType[a.Type] = append(p.byType[a.Type], a)
	}
	return p
}

// DefaultPool builds the standard fleet: ten instances of each cloud
// model plus one instance of each local model. Instance order (and hence
// name order) is deterministic.
func DefaultPool() *Pool {
	var agents []Agent
	for _, spec := range cloudModels {
		caps := TiersUpTo(spec.maxTier)
		for i := 0; i < CloudInstances; i++ {
			agents = append(agents, Agent{
				Name:         spec.typ + "-" + strconv.Itoa(i),
				Type:         spec.typ,
				Quality:      spec.quality,
				TokenRate:    spec.rate,
				Latency:      CloudLatency,
				Throughput:   spec.throughput,
				Capacity:     CloudCapacity,
				Capabilities: caps,
			})
		}
	}
	for _, spec := range localModels {
		agents = append(agents, Agent{
			Name:         spec.typ,
			Type:         spec.typ,
			Quality:      spec.quality,
			Latency:      spec.latency,
			Throughput:   spec.throughput,
			Capacity:     spec.capacity,
			Capabilities: TiersUpTo(spec.maxTier),
			Local:        true,
		})
	}
	return NewPool(agents)
}

// ByName returns the agent instance with the given name, or nil.
func (p *Pool) ByName(name string) *Agent {
	return p.byName[name]
}

// ByType returns every instance of the given model type.
func (p *Pool) ByType(typ string) []*Agent {
	return p.byType[typ]
}

// Types returns the distinct model types in the pool, sorted.
func (p *Pool) Types() []string {
	types := make([]string, 0, len(p.byType))
	for typ := range p.byType {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// QualityOf returns the expected quality of a model type, or zero for an
// unknown type.
func (p *Pool) QualityOf(typ string) float64 {
	if as := p.byType[typ]; len(as) > 0 {
		return as[0].Quality
	}
	return 0
}

// RateOf returns the per-token cost of a model type, or zero for an
// unknown type.
func (p *Pool) RateOf(typ string) float64 {
	if as := p.byType[typ]; len(as) > 0 {
		return as[0].TokenRate
	}
	return 0
}

// CheapestFor returns the cheapest candidate model for a profile, by token
// rate, preferring earlier ladder entries on ties.
func (p *Pool) CheapestFor(prof profile.Profile) string {
	ladder := profile.Models(prof)
	best := ladder[0]
	bestRate := p.RateOf(best)
	for _, typ := range ladder[1:] {
		if rate := p.RateOf(typ); rate < bestRate {
			best, bestRate = typ, rate
		}
	}
	return best
}

// EscalationLadder returns a profile's candidate models ordered by
// ascending quality, for walking upward on retry escalation. Ties break
// by ladder position.
func (p *Pool) EscalationLadder(prof profile.Profile) []string {
	ladder := profile.Models(prof)
	sort.SliceStable(ladder, func(i, j int) bool {
		return p.QualityOf(ladder[i]) < p.QualityOf(ladder[j])
	})
	return ladder
}

// NextStrongerModel returns the next model above current on the profile's
// escalation ladder. At the top (or for an unknown current model) it
// returns the strongest candidate.
func (p *Pool) NextStrongerModel(prof profile.Profile, current string) string {
	ladder := p.EscalationLadder(prof)
	for i, typ := range ladder {
		if typ == current && i+1 < len(ladder) {
			return ladder[i+1]
		}
	}
	return ladder[len(ladder)-1]
}
