package dag

import "sort"

// unionFind is a disjoint-set structure with path compression and union
// by rank, used to group nodes into connected components.
type unionFind struct {
	parent map[string]string
	rank   map[string]int
}

func newUnionFind() *unionFind {
	return &unionFind{
		parent: make(map[string]string),
		rank:   make(map[string]int),
	}
}

func (uf *unionFind) add(x string) {
	if _, ok := uf.parent[x]; ok {
		return
	}
	uf.parent[x] = x
	uf.rank[x] = 0
}

func (uf *unionFind) find(x string) string {
	if uf.parent[x] != x {
		uf.parent[x] = uf.find(uf.parent[x]) // path compression
	}
	return uf.parent[x]
}

func (uf *unionFind) union(x, y string) {
	rx, ry := uf.find(x), uf.find(y)
	if rx == ry {
		return
	}
	switch {
	case uf.rank[rx] < uf.rank[ry]:
		uf.parent[rx] = ry
	case uf.rank[rx] > uf.rank[ry]:
		uf.parent[ry] = rx
	default:
		uf.parent[ry] = rx
		uf.rank[rx]++
	}
}

// Components partitions the DAG into connected components, treating
// edges as undirected. Nodes in different components share no dependency
// relationship, so each component can be solved or executed in
// isolation. Components are ordered largest first, ties broken by the
// alphabetically-smallest member; member IDs within each component are
// sorted alphabetically.
func (d *DAG) Components() [][]string {
	if len(d.nodes) == 0 {
		return nil
	}

	uf := newUnionFind()
	for id := range d.nodes {
		uf.add(id)
	}
	for from, deps := range d.adjacency {
		for to := range deps {
			uf.union(from, to)
		}
	}

	groups := make(map[string][]string)
	for id := range d.nodes {
		root := uf.find(id)
		groups[root] = append(groups[root], id)
	}

	components := make([][]string, 0, len(groups))
	for _, members := range groups {
		sort.Strings(members)
		components = append(components, members)
	}
	sort.Slice(components, func(i, j int) bool {
		if len(components[i]) != len(components[j]) {
			return len(components[i]) > len(components[j])
		}
		return components[i][0] < components[j][0]
	})
	return components
}
