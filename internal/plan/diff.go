package plan

import (
	"fmt"
	"sort"
)

// Change kinds, in the order Diff reports them.
const (
	ChangeAdded     = "added"
	ChangeRemoved   = "removed"
	ChangeMoved     = "moved"
	ChangeRestaffed = "restaffed"
	ChangeWaves     = "waves"
)

// Change is one difference between two plans.
type Change struct {
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
	Detail  string `json:"detail"`
}

// Diff compares two plans entry by entry and reports intents that were
// added or removed, intents that moved to another wave, and intents
// re-staffed to a different agent or model. A change in total wave count
// is reported once at the end. Output order is deterministic: kinds in
// declaration order, subjects sorted within each kind.
func Diff(old, new *Plan) []Change {
	oldEntries := entriesByID(old)
	newEntries := entriesByID(new)

	var added, removed, moved, restaffed []Change

	for id, e := range newEntries {
		prev, ok := oldEntries[id]
		if !ok {
			added = append(added, Change{
				Kind:    ChangeAdded,
				Subject: id,
				Detail:  fmt.Sprintf("wave %d, %s on %s", e.Wave, e.Model, e.Agent),
			})
			continue
		}
		if prev.Wave != e.Wave {
			moved = append(moved, Change{
				Kind:    ChangeMoved,
				Subject: id,
				Detail:  fmt.Sprintf("wave %d -> %d", prev.Wave, e.Wave),
			})
		}
		if prev.Agent != e.Agent || prev.Model != e.Model {
			restaffed = append(restaffed, Change{
				Kind:    ChangeRestaffed,
				Subject: id,
				Detail:  fmt.Sprintf("%s (%s) -> %s (%s)", prev.Agent, prev.Model, e.Agent, e.Model),
			})
		}
	}
	for id, e := range oldEntries {
		if _, ok := newEntries[id]; !ok {
			removed = append(removed, Change{
				Kind:    ChangeRemoved,
				Subject: id,
				Detail:  fmt.Sprintf("was wave %d on %s", e.Wave, e.Agent),
			})
		}
	}

	var changes []Change
	for _, group := range [][]Change{added, removed, moved, restaffed} {
		sort.Slice(group, func(i, j int) bool { return group[i].Subject < group[j].Subject })
		changes = append(changes, group...)
	}

	if old.TotalWaves != new.TotalWaves {
		changes = append(changes, Change{
			Kind:    ChangeWaves,
			Subject: "plan",
			Detail:  fmt.Sprintf("%d waves -> %d", old.TotalWaves, new.TotalWaves),
		})
	}

	return changes
}

func entriesByID(p *Plan) map[string]*Entry {
	entries := make(map[string]*Entry)
	if p == nil {
		return entries
	}
	for wi := range p.Waves {
		for ii := range p.Waves[wi].Intents {
			e := &p.Waves[wi].Intents[ii]
			entries[e.ID] = e
		}
	}
	return entries
}
