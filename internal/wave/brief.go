package wave

import (
	"fmt"
	"strings"

	"github.com/gman622/qroute/internal/intent"
	"github.com/gman622/qroute/internal/plan"
)

// Brief renders the markdown work order handed to an agent alongside a
// dispatch: what to do, in which wave, and what its dependencies left
// behind.
func Brief(e *plan.Entry, it *intent.Intent, predecessors []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Agent Todo: %s\n\n", e.ID)
	fmt.Fprintf(&b, "**Profile:** %s\n", e.Profile)
	fmt.Fprintf(&b, "**Model:** %s\n", e.Model)
	fmt.Fprintf(&b, "**Wave:** %d\n", e.Wave)
	fmt.Fprintf(&b, "**Complexity:** %s\n", e.Complexity)

	b.WriteString("\n## Task\n\n")
	if it != nil && it.Title != "" && it.Title != e.ID {
		fmt.Fprintf(&b, "%s\n", it.Title)
	} else {
		fmt.Fprintf(&b, "Execute intent `%s` as part of wave %d.\n", e.ID, e.Wave)
	}
	if it != nil && it.Body != "" {
		fmt.Fprintf(&b, "\n%s\n", strings.TrimSpace(it.Body))
	}

	if len(e.DependsOn) > 0 {
		b.WriteString("\n**Dependencies:** ")
		b.WriteString(strings.Join(e.DependsOn, ", "))
		b.WriteString("\n")
	}

	if len(predecessors) > 0 {
		b.WriteString("\n## Predecessor Artifacts\n\n")
		for _, art := range predecessors {
			fmt.Fprintf(&b, "- %s\n", art)
		}
	}

	if e.Workflow != "" {
		b.WriteString("\n## Workflow\n\n")
		fmt.Fprintf(&b, "%s\n", e.Workflow)
	}

	return b.String()
}
