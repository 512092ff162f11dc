// Package intent defines the workload model for the router: complexity
// tiers, quality floors, token estimates, and the on-disk bundle format
// (an intents.toml manifest plus markdown files with +++ TOML frontmatter,
// one intent per file).
package intent

import "sort"

// Complexity classifies how demanding an intent is. Tiers are ordered;
// agents declare which tiers they can take on.
type Complexity string

const (
	Trivial     Complexity = "trivial"
	Simple      Complexity = "simple"
	Moderate    Complexity = "moderate"
	Complex     Complexity = "complex"
	VeryComplex Complexity = "very-complex"
	Epic        Complexity = "epic"
)

// Tiers lists all complexity tiers from lightest to heaviest.
var Tiers = []Complexity{Trivial, Simple, Moderate, Complex, VeryComplex, Epic}

var tierRank = map[Complexity]int{
	Trivial:     0,
	Simple:      1,
	Moderate:    2,
	Complex:     3,
	VeryComplex: 4,
	Epic:        5,
}

// Valid reports whether c names a known tier.
func (c Complexity) Valid() bool {
	_, ok := tierRank[c]
	return ok
}

// Rank returns the tier's position in Tiers (0 = trivial), or -1 for an
// unknown tier. Useful for ordering intents hardest-first.
func (c Complexity) Rank() int {
	r, ok := tierRank[c]
	if !ok {
		return -1
	}
	return r
}

// TokenEstimates maps each tier to its default token estimate, used when
// an intent does not declare estimated_tokens itself.
var TokenEstimates = map[Complexity]int{
	Trivial:     500,
	Simple:      1500,
	Moderate:    5000,
	Complex:     12000,
	VeryComplex: 25000,
	Epic:        60000,
}

// TierPoints maps each tier onto the Fibonacci story-point scale, used
// when an intent does not declare story_points itself.
var TierPoints = map[Complexity]int{
	Trivial:     1,
	Simple:      2,
	Moderate:    3,
	Complex:     5,
	VeryComplex: 8,
	Epic:        13,
}

var defaultFloors = map[Complexity]float64{
	Trivial:     0.40,
	Simple:      0.50,
	Moderate:    0.70,
	Complex:     0.85,
	VeryComplex: 0.90,
	Epic:        0.95,
}

// DefaultQualityFloor returns the minimum acceptable output quality for a
// tier, used when neither the intent nor the bundle defaults set a floor.
func DefaultQualityFloor(c Complexity) float64 {
	return defaultFloors[c]
}

// Intent is a single unit of work to be routed to an agent. Tags drive
// profile selection; Complexity and QualityFloor constrain which agents
// may take it; DependsOn induces the wave ordering.
type Intent struct {
	ID              string     `toml:"id" json:"id"`
	Title           string     `toml:"title" json:"title"`
	Complexity      Complexity `toml:"complexity" json:"complexity"`
	QualityFloor    float64    `toml:"quality_floor,omitempty" json:"quality_floor"`
	EstimatedTokens int        `toml:"estimated_tokens,omitempty" json:"estimated_tokens"`
	StoryPoints     int        `toml:"story_points,omitempty" json:"story_points,omitempty"`
	Tags            []string   `toml:"tags,omitempty" json:"tags,omitempty"`
	Stage           string     `toml:"stage,omitempty" json:"stage,omitempty"`
	DependsOn       []string   `toml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Deadline        *int       `toml:"deadline,omitempty" json:"deadline,omitempty"`
	Workflow        string     `toml:"workflow,omitempty" json:"workflow,omitempty"`

	// Body is the markdown description following the frontmatter.
	Body string `toml:"-" json:"-"`
	// SourceFile is the .md file this intent was parsed from.
	SourceFile string `toml:"-" json:"-"`
}

// Tokens returns the explicit token estimate, falling back to the tier
// default when the intent does not set one.
func (it *Intent) Tokens() int {
	if it.EstimatedTokens > 0 {
		return it.EstimatedTokens
	}
	return TokenEstimates[it.Complexity]
}

// Floor returns the explicit quality floor, falling back to the tier
// default when the intent does not set one.
func (it *Intent) Floor() float64 {
	if it.QualityFloor > 0 {
		return it.QualityFloor
	}
	return DefaultQualityFloor(it.Complexity)
}

// Points returns the explicit story-point weight, falling back to the
// tier's Fibonacci default when the intent does not set one.
func (it *Intent) Points() int {
	if it.StoryPoints > 0 {
		return it.StoryPoints
	}
	return TierPoints[it.Complexity]
}

// Manifest is the parsed intents.toml.
type Manifest struct {
	Project  Project  `toml:"project"`
	Defaults Defaults `toml:"defaults"`
}

// Project holds bundle-level identity fields.
type Project struct {
	Name        string `toml:"name"`
	Description string `toml:"description,omitempty"`
}

// Defaults are applied to zero-valued intent fields at parse time.
type Defaults struct {
	QualityFloor float64  `toml:"quality_floor,omitempty"`
	Tags         []string `toml:"tags,omitempty"`
	Workflow     string   `toml:"workflow,omitempty"`
}

// Bundle is a fully parsed intent directory.
type Bundle struct {
	Dir      string
	Manifest Manifest
	Intents  []Intent
}

// ByID returns a lookup map over the bundle's intents. The pointers alias
// the bundle's backing slice.
func (b *Bundle) ByID() map[string]*Intent {
	m := make(map[string]*Intent, len(b.Intents))
	for i := range b.Intents {
		m[b.Intents[i].ID] = &b.Intents[i]
	}
	return m
}

// IDs returns the bundle's intent IDs in sorted order.
func (b *Bundle) IDs() []string {
	ids := make([]string, 0, len(b.Intents))
	for i := range b.Intents {
		ids = append(ids, b.Intents[i].ID)
	}
	sort.Strings(ids)
	return ids
}

// TotalTokens sums the token estimates across the bundle.
func (b *Bundle) TotalTokens() int {
	total := 0
	for i := range b.Intents {
		total += b.Intents[i].Tokens()
	}
	return total
}
