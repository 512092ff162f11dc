// Package dag provides a directed acyclic graph engine for modeling intent
// dependencies. It supports topological sorting, wave partitioning, cycle
// detection with path reporting, weighted critical-path analysis, and
// connected-component decomposition.
package dag

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrCycle is returned when the graph contains a dependency cycle.
var ErrCycle = errors.New("dependency cycle detected")

// ErrNodeNotFound is returned when an operation references a non-existent node.
var ErrNodeNotFound = errors.New("node not found")

// ErrDuplicateNode is returned when adding a node that already exists.
var ErrDuplicateNode = errors.New("duplicate node")

// ErrSelfEdge is returned when an edge would create a self-loop.
var ErrSelfEdge = errors.New("self-referencing edge")

// CycleError reports a dependency cycle with the actual path through it.
// It unwraps to ErrCycle so callers can match with errors.Is.
type CycleError struct {
	// Path lists the node IDs along the cycle in dependency order,
	// with the first node repeated at the end.
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return ErrCycle.Error()
	}
	return fmt.Sprintf("%v: %s", ErrCycle, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// Node represents an intent in the DAG.
type Node struct {
	ID string

	// Weight is the estimated duration of the node, used by CriticalPath.
	// Nodes default to weight 1 so an unweighted graph measures path
	// length in hops.
	Weight float64
}

// DAG represents a directed graph of intents. Edges point from a node to
// its dependencies: if A depends on B, there is an edge from A to B.
// Cycles are tolerated at construction time and reported by Sort, Waves,
// and FindCycle, so callers can surface the offending path to users.
type DAG struct {
	nodes map[string]*Node
	// adjacency maps nodeID → set of dependency IDs (forward edges).
	adjacency map[string]map[string]bool
	// reverse maps nodeID → set of dependent IDs (backward edges).
	reverse map[string]map[string]bool
}

// New creates an empty DAG.
func New() *DAG {
	return &DAG{
		nodes:     make(map[string]*Node),
		adjacency: make(map[string]map[string]bool),
		reverse:   make(map[string]map[string]bool),
	}
}

// AddNode adds a node with the given ID and duration weight. Returns
// ErrDuplicateNode if a node with that ID already exists. A non-positive
// weight is normalized to 1.
func (d *DAG) AddNode(id string, weight float64) error {
	if _, exists := d.nodes[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, id)
	}
	if weight <= 0 {
		weight = 1
	}
	d.nodes[id] = &Node{ID: id, Weight: weight}
	d.adjacency[id] = make(map[string]bool)
	d.reverse[id] = make(map[string]bool)
	return nil
}

// AddEdge adds a dependency edge: from depends on to. Both nodes must
// already exist. Self-loops are rejected immediately; longer cycles are
// deferred to Sort/Waves so the full cycle path can be reported.
func (d *DAG) AddEdge(from, to string) error {
	if from == to {
		return fmt.Errorf("%w: %s", ErrSelfEdge, from)
	}
	if _, ok := d.nodes[from]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, from)
	}
	if _, ok := d.nodes[to]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, to)
	}
	d.adjacency[from][to] = true
	d.reverse[to][from] = true
	return nil
}

// Node returns the node with the given ID, or nil if not found.
func (d *DAG) Node(id string) *Node {
	return d.nodes[id]
}

// Has reports whether a node with the given ID exists.
func (d *DAG) Has(id string) bool {
	_, ok := d.nodes[id]
	return ok
}

// Nodes returns all node IDs in the DAG, sorted alphabetically.
func (d *DAG) Nodes() []string {
	ids := make([]string, 0, len(d.nodes))
	for id := range d.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of nodes in the DAG.
func (d *DAG) Len() int {
	return len(d.nodes)
}

// Dependencies returns the direct dependency IDs of a node, sorted.
func (d *DAG) Dependencies(id string) []string {
	deps := make([]string, 0, len(d.adjacency[id]))
	for dep := range d.adjacency[id] {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	return deps
}

// Dependents returns the direct dependent IDs of a node, sorted.
func (d *DAG) Dependents(id string) []string {
	deps := make([]string, 0, len(d.reverse[id]))
	for dep := range d.reverse[id] {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	return deps
}

// EdgeCount returns the total number of dependency edges.
func (d *DAG) EdgeCount() int {
	var n int
	for _, deps := range d.adjacency {
		n += len(deps)
	}
	return n
}

// Sort returns node IDs in a valid topological order (dependencies come
// before dependents), alphabetical within each depth for determinism.
// Returns a *CycleError if the graph contains a cycle.
func (d *DAG) Sort() ([]string, error) {
	inDegree := make(map[string]int, len(d.nodes))
	for id := range d.nodes {
		inDegree[id] = len(d.adjacency[id])
	}

	queue := d.zeroDegreeNodes(inDegree)
	sort.Strings(queue)

	sorted := make([]string, 0, len(d.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, id)

		var freed []string
		for dependent := range d.reverse[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				freed = append(freed, dependent)
			}
		}
		if len(freed) > 0 {
			sort.Strings(freed)
			queue = append(queue, freed...)
		}
	}

	if len(sorted) != len(d.nodes) {
		return nil, &CycleError{Path: d.FindCycle()}
	}
	return sorted, nil
}

// Waves partitions the DAG into dependency waves using Kahn's algorithm.
// Wave 0 contains nodes with no dependencies, wave 1 contains nodes whose
// dependencies are all in wave 0, and so on. IDs within each wave are
// sorted alphabetically. Returns a *CycleError if a cycle prevents all
// nodes from being placed.
func (d *DAG) Waves() ([][]string, error) {
	inDegree := make(map[string]int, len(d.nodes))
	for id := range d.nodes {
		inDegree[id] = len(d.adjacency[id])
	}

	current := d.zeroDegreeNodes(inDegree)

	var waves [][]string
	placed := 0
	for len(current) > 0 {
		sort.Strings(current)
		waves = append(waves, current)
		placed += len(current)

		var next []string
		for _, id := range current {
			for dependent := range d.reverse[id] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		current = next
	}

	if placed != len(d.nodes) {
		return nil, &CycleError{Path: d.FindCycle()}
	}
	return waves, nil
}

// FindCycle returns the IDs along one dependency cycle, in dependency
// order with the first node repeated at the end, or nil if the graph is
// acyclic. Traversal order is deterministic.
func (d *DAG) FindCycle() []string {
	const (
		white = 0 // unvisited
		grey  = 1 // on the current DFS stack
		black = 2 // fully explored
	)
	color := make(map[string]int, len(d.nodes))
	parent := make(map[string]string, len(d.nodes))

	var found []string
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		for _, dep := range d.Dependencies(id) {
			switch color[dep] {
			case grey:
				// Back edge: walk parents from id back to dep.
				cycle := []string{dep}
				for cur := id; cur != dep; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				// Reverse into dependency order and close the loop.
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				found = append(cycle, cycle[0])
				return true
			case white:
				parent[dep] = id
				if visit(dep) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for _, id := range d.Nodes() {
		if color[id] == white && visit(id) {
			return found
		}
	}
	return nil
}

// CriticalPath returns the dependency chain with the largest total node
// weight, in dependency-first order. When two chains tie, the one whose
// endpoint sorts first alphabetically wins. Returns an error if the graph
// contains a cycle, and nil for an empty graph.
func (d *DAG) CriticalPath() ([]string, error) {
	order, err := d.Sort()
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return nil, nil
	}

	// dist[v] = weight of the heaviest chain ending at v.
	dist := make(map[string]float64, len(order))
	prev := make(map[string]string, len(order))
	for _, id := range order {
		dist[id] = d.nodes[id].Weight
	}

	for _, v := range order {
		for _, dep := range d.Dependents(v) {
			candidate := dist[v] + d.nodes[dep].Weight
			if candidate > dist[dep] {
				dist[dep] = candidate
				prev[dep] = v
			}
		}
	}

	// Scan endpoints in ID order with a strict comparison so the
	// alphabetically-first endpoint wins ties.
	var endNode string
	maxDist := -1.0
	for _, id := range d.Nodes() {
		if dist[id] > maxDist {
			maxDist = dist[id]
			endNode = id
		}
	}

	var path []string
	for cur := endNode; ; {
		path = append(path, cur)
		next, ok := prev[cur]
		if !ok {
			break
		}
		cur = next
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// zeroDegreeNodes returns IDs from the in-degree map that have zero value.
func (d *DAG) zeroDegreeNodes(inDegree map[string]int) []string {
	var result []string
	for id, deg := range inDegree {
		if deg == 0 {
			result = append(result, id)
		}
	}
	return result
}
