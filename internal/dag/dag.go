// Package dag models how templates depend on each other.
// Edges point from a dependency to its dependents: a parent template to the
// templates extending it, and a macro file to the templates importing it.
package dag

import (
	"fmt"
	"slices"
	"sort"
)

// EdgeKind says why one template depends on another.
type EdgeKind int

const (
	// Extends links a parent template to a child template.
	Extends EdgeKind = iota
	// Imports links a macro file to a template that imports it.
	Imports
)

func (k EdgeKind) String() string {
	if k == Imports {
		return "imports"
	}
	return "extends"
}

// Node represents a template in the graph.
type Node struct {
	// ID is the template name
	ID string
	// Data holds arbitrary node data
	Data any
}

// Edge is a dependency between two templates.
type Edge struct {
	From string
	To   string
	Kind EdgeKind
}

// Graph is a dependency graph of templates. Import edges may form cycles;
// extends edges never do once a registry has resolved.
type Graph struct {
	nodes    map[string]*Node
	children map[string][]string // dependency -> dependents
	parents  map[string][]string // dependent -> dependencies
	kinds    map[[2]string]EdgeKind
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
		kinds:    make(map[[2]string]EdgeKind),
	}
}

// AddNode adds a node, replacing the data of an existing one.
func (g *Graph) AddNode(id string, data any) {
	if n, ok := g.nodes[id]; ok {
		n.Data = data
		return
	}
	g.nodes[id] = &Node{ID: id, Data: data}
}

// AddEdge records that to depends on from. Adding the same pair twice keeps
// the first kind.
func (g *Graph) AddEdge(from, to string, kind EdgeKind) error {
	if _, ok := g.nodes[from]; !ok {
		return fmt.Errorf("node %q does not exist", from)
	}
	if _, ok := g.nodes[to]; !ok {
		return fmt.Errorf("node %q does not exist", to)
	}
	if from == to {
		return fmt.Errorf("self-loop detected: %s", from)
	}

	key := [2]string{from, to}
	if _, dup := g.kinds[key]; dup {
		return nil
	}
	g.kinds[key] = kind
	g.children[from] = append(g.children[from], to)
	g.parents[to] = append(g.parents[to], from)
	return nil
}

// Node returns a node by ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Parents returns the direct dependencies of id.
func (g *Graph) Parents(id string) []string {
	return g.parents[id]
}

// Children returns the direct dependents of id.
func (g *Graph) Children(id string) []string {
	return g.children[id]
}

// Nodes returns all nodes sorted by ID.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// Edges returns all edges sorted by endpoints.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, len(g.kinds))
	for key, kind := range g.kinds {
		edges = append(edges, Edge{From: key[0], To: key[1], Kind: kind})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.kinds) }

func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasCycle reports whether the graph contains a cycle, along with one cycle
// path starting and ending at the same node.
func (g *Graph) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	via := make(map[string]string)

	var cycle []string
	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		onStack[id] = true

		for _, next := range g.children[id] {
			if !visited[next] {
				via[next] = id
				if dfs(next) {
					return true
				}
			} else if onStack[next] {
				cycle = []string{next}
				for cur := id; cur != next; cur = via[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, next)
				slices.Reverse(cycle)
				return true
			}
		}

		onStack[id] = false
		return false
	}

	for _, id := range g.sortedIDs() {
		if !visited[id] && dfs(id) {
			return true, cycle
		}
	}
	return false, nil
}

// TopologicalSort returns node IDs with dependencies before dependents.
func (g *Graph) TopologicalSort() ([]string, error) {
	if cyclic, path := g.HasCycle(); cyclic {
		return nil, fmt.Errorf("cycle detected: %v", path)
	}

	visited := make(map[string]bool)
	var order []string

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, p := range g.parents[id] {
			visit(p)
		}
		order = append(order, id)
	}

	for _, id := range g.sortedIDs() {
		visit(id)
	}
	return order, nil
}

// Levels groups nodes by dependency depth. Level 0 holds templates that
// depend on nothing; a template sits one level below its deepest dependency.
func (g *Graph) Levels() ([][]string, error) {
	if cyclic, path := g.HasCycle(); cyclic {
		return nil, fmt.Errorf("cycle detected: %v", path)
	}

	assigned := make(map[string]int)
	var level func(id string) int
	level = func(id string) int {
		if l, ok := assigned[id]; ok {
			return l
		}
		l := 0
		for _, p := range g.parents[id] {
			l = max(l, level(p)+1)
		}
		assigned[id] = l
		return l
	}

	var levels [][]string
	for _, id := range g.sortedIDs() {
		l := level(id)
		for len(levels) <= l {
			levels = append(levels, nil)
		}
		levels[l] = append(levels[l], id)
	}
	return levels, nil
}

// Level returns the dependency depth of a single node, or -1 if the node is
// unknown or the graph is cyclic.
func (g *Graph) Level(id string) int {
	levels, err := g.Levels()
	if err != nil {
		return -1
	}
	for l, ids := range levels {
		if slices.Contains(ids, id) {
			return l
		}
	}
	return -1
}

// Affected returns the given nodes plus everything that transitively
// depends on them. Unknown IDs are ignored.
func (g *Graph) Affected(changed []string) []string {
	seen := make(map[string]bool)
	var mark func(id string)
	mark = func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, c := range g.children[id] {
			mark(c)
		}
	}
	for _, id := range changed {
		if _, ok := g.nodes[id]; ok {
			mark(id)
		}
	}
	return sortedKeys(seen)
}

// Upstream returns everything id transitively depends on.
func (g *Graph) Upstream(id string) []string {
	seen := make(map[string]bool)
	var mark func(id string)
	mark = func(id string) {
		for _, p := range g.parents[id] {
			if !seen[p] {
				seen[p] = true
				mark(p)
			}
		}
	}
	mark(id)
	delete(seen, id)
	return sortedKeys(seen)
}

// Roots returns nodes without dependencies.
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.sortedIDs() {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Leaves returns nodes nothing depends on.
func (g *Graph) Leaves() []string {
	var leaves []string
	for _, id := range g.sortedIDs() {
		if len(g.children[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
