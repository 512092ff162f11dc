package solve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gman622/qroute/internal/cost"
)

// ErrEmptyPool is returned when the agent pool has no agents.
var ErrEmptyPool = errors.New("agent pool is empty")

// InfeasibleError reports that no assignment can satisfy the hard
// constraints, naming the intents that cannot be placed. It unwraps to
// cost.ErrInfeasible.
type InfeasibleError struct {
	// Intents lists the offending intent ids, sorted.
	Intents []string
	// Reason is the shared cause: "no capable agent" when nothing in the
	// pool covers an intent's tier and floor, "agent capacity exhausted"
	// when the pool is capable but too small.
	Reason string
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("no feasible assignment (%s): %s", e.Reason, strings.Join(e.Intents, ", "))
}

func (e *InfeasibleError) Unwrap() error { return cost.ErrInfeasible }

// IsInfeasible reports whether err stems from solver infeasibility.
func IsInfeasible(err error) bool {
	return errors.Is(err, cost.ErrInfeasible)
}
