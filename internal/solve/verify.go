package solve

import (
	"fmt"
	"sort"

	"github.com/gman622/qroute/internal/agent"
	"github.com/gman622/qroute/internal/cost"
	"github.com/gman622/qroute/internal/intent"
)

// Verify checks an assignment against the hard constraints and returns
// human-readable violations, empty when the assignment is sound. Intents
// are reported in input order, overloads in agent-name order.
func Verify(intents []intent.Intent, pool *agent.Pool, assign cost.Assignment) []string {
	var problems []string
	load := make(map[string]int, len(pool.Agents))

	for i := range intents {
		it := &intents[i]
		name, ok := assign[it.ID]
		if !ok {
			problems = append(problems, fmt.Sprintf("Intent %s not assigned", it.ID))
			continue
		}
		a := pool.ByName(name)
		if a == nil {
			problems = append(problems, fmt.Sprintf("Intent %s assigned to unknown agent %s", it.ID, name))
			continue
		}
		load[name]++
		if !a.Capabilities[it.Complexity] {
			problems = append(problems, fmt.Sprintf("Intent %s assigned to incapable agent %s", it.ID, name))
		}
		if a.Quality < it.Floor() {
			problems = append(problems, fmt.Sprintf("Intent %s quality requirement not met by %s", it.ID, name))
		}
	}

	names := make([]string, 0, len(load))
	for name := range load {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if a := pool.ByName(name); load[name] > a.Capacity {
			problems = append(problems, fmt.Sprintf("Agent %s overloaded: %d > %d", name, load[name], a.Capacity))
		}
	}

	return problems
}
