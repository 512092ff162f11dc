// Package profile maps intents onto agent profiles.
//
// Routing is tag-driven: an ordered rule table inspects an intent's tags
// (case-insensitive, with hyphenated tags matched both whole and split into
// their parts) and its complexity tier, and the first matching rule wins.
// Routing is a pure function of the intent.
package profile

import (
	"strings"

	"github.com/gman622/qroute/internal/intent"
)

// Profile names a class of agent specialized for one kind of work.
type Profile string

const (
	Reviewer        Profile = "reviewer"
	BugInvestigator Profile = "bug-investigator"
	UnitTester      Profile = "unit-tester"
	TestEngineer    Profile = "test-engineer"
	DocWriter       Profile = "doc-writer"
	Planner         Profile = "planner"
	Implementer     Profile = "implementer"
)

// All lists every profile the router can produce.
var All = []Profile{
	Reviewer,
	BugInvestigator,
	UnitTester,
	TestEngineer,
	DocWriter,
	Planner,
	Implementer,
}

// Valid reports whether p names a known profile.
func (p Profile) Valid() bool {
	for _, known := range All {
		if p == known {
			return true
		}
	}
	return false
}

// Trigger terms per rule. Hyphenated terms (root-cause, api-docs,
// user-guide) only match a whole tag, never a split part.
var (
	reviewTerms      = terms("verify", "review")
	bugTerms         = terms("reproduce", "diagnose", "fix", "hotfix", "root-cause")
	unitTestTerms    = terms("test", "testing", "unit", "integration", "regression")
	integrationTerms = terms("test", "testing", "integration", "regression")
	docTerms         = terms("docs", "document", "api-docs", "user-guide")
	planningTerms    = terms("analysis", "analyze", "requirements", "research", "design")
)

func terms(ss ...string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

// Route selects the profile for an intent. Rules are checked in priority
// order; the first match wins:
//
//  1. verification and review work → reviewer
//  2. bug reproduction, diagnosis, and fixes → bug-investigator
//  3. test work on trivial or simple intents → unit-tester
//  4. other test and integration work → test-engineer
//  5. documentation work → doc-writer
//  6. analysis and design work, and every epic → planner
//  7. everything else → implementer
func Route(it *intent.Intent) Profile {
	tt := tagTerms(it.Tags)

	switch {
	case hasAny(tt, reviewTerms):
		return Reviewer
	case hasAny(tt, bugTerms):
		return BugInvestigator
	case hasAny(tt, unitTestTerms) && (it.Complexity == intent.Trivial || it.Complexity == intent.Simple):
		return UnitTester
	case hasAny(tt, integrationTerms):
		return TestEngineer
	case hasAny(tt, docTerms):
		return DocWriter
	case hasAny(tt, planningTerms) || it.Complexity == intent.Epic:
		return Planner
	default:
		return Implementer
	}
}

// RouteAll routes every intent in a bundle, returning id → profile.
func RouteAll(b *intent.Bundle) map[string]Profile {
	out := make(map[string]Profile, len(b.Intents))
	for i := range b.Intents {
		out[b.Intents[i].ID] = Route(&b.Intents[i])
	}
	return out
}

// tagTerms expands tags into the set of matchable terms: each tag lowered
// whole, plus each hyphen-separated part.
func tagTerms(tags []string) map[string]bool {
	tt := make(map[string]bool, len(tags)*2)
	for _, tag := range tags {
		lower := strings.ToLower(tag)
		tt[lower] = true
		for _, part := range strings.Split(lower, "-") {
			if part != "" {
				tt[part] = true
			}
		}
	}
	return tt
}

func hasAny(have, want map[string]bool) bool {
	// Iterate the smaller set.
	if len(want) < len(have) {
		for term := range want {
			if have[term] {
				return true
			}
		}
		return false
	}
	for term := range have {
		if want[term] {
			return true
		}
	}
	return false
}

// modelLadders lists the candidate models per profile. Heavyweight
// reasoning profiles stay on the strongest models; mechanical profiles
// admit cheap local models too.
var modelLadders = map[Profile][]string{
	Planner:         {"claude", "gpt5.2"},
	BugInvestigator: {"claude", "gpt5.2"},
	Reviewer:        {"claude", "gpt5.2"},
	Implementer:     {"claude", "gpt5.2", "gemini", "kimi2.5"},
	TestEngineer:    {"claude", "gpt5.2", "gemini"},
	UnitTester:      {"gemini", "kimi2.5", "codellama-7b", "llama3.1-8b"},
	DocWriter:       {"gemini", "kimi2.5", "gpt5.2"},
}

// Models returns the candidate model names for a profile. The returned
// slice is a copy. Unknown profiles get the cheapest general-purpose
// candidate.
func Models(p Profile) []string {
	ladder, ok := modelLadders[p]
	if !ok {
		return []string{"gemini"}
	}
	out := make([]string, len(ladder))
	copy(out, ladder)
	return out
}
