package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// site builds:
//
//	base.html -> layout.html -> page.html
//	                         -> about.html
//	macros.html -> page.html (import)
func site(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph()
	for _, id := range []string{"base.html", "layout.html", "page.html", "about.html", "macros.html"} {
		g.AddNode(id, nil)
	}
	require.NoError(t, g.AddEdge("base.html", "layout.html", Extends))
	require.NoError(t, g.AddEdge("layout.html", "page.html", Extends))
	require.NoError(t, g.AddEdge("layout.html", "about.html", Extends))
	require.NoError(t, g.AddEdge("macros.html", "page.html", Imports))
	return g
}

func TestGraph_AddEdge(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", 1)
	g.AddNode("b", 2)

	require.NoError(t, g.AddEdge("a", "b", Extends))
	require.NoError(t, g.AddEdge("a", "b", Imports), "duplicate edges are ignored")
	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, []Edge{{From: "a", To: "b", Kind: Extends}}, g.Edges())

	assert.Error(t, g.AddEdge("a", "missing", Extends))
	assert.Error(t, g.AddEdge("missing", "a", Extends))
	assert.Error(t, g.AddEdge("a", "a", Imports))

	g.AddNode("a", 10)
	n, ok := g.Node("a")
	require.True(t, ok)
	assert.Equal(t, 10, n.Data)
	assert.Equal(t, 2, g.Len())
}

func TestGraph_Neighbours(t *testing.T) {
	g := site(t)

	assert.Equal(t, []string{"page.html", "about.html"}, g.Children("layout.html"))
	assert.Equal(t, []string{"layout.html", "macros.html"}, g.Parents("page.html"))
	assert.Equal(t, []string{"base.html", "macros.html"}, g.Roots())
	assert.Equal(t, []string{"about.html", "page.html"}, g.Leaves())
}

func TestGraph_Levels(t *testing.T) {
	g := site(t)

	levels, err := g.Levels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"base.html", "macros.html"},
		{"layout.html"},
		{"about.html", "page.html"},
	}, levels)

	assert.Equal(t, 2, g.Level("page.html"))
	assert.Equal(t, -1, g.Level("nope"))
}

func TestGraph_TopologicalSort(t *testing.T) {
	order, err := site(t).TopologicalSort()
	require.NoError(t, err)

	index := make(map[string]int)
	for i, id := range order {
		index[id] = i
	}
	assert.Less(t, index["base.html"], index["layout.html"])
	assert.Less(t, index["layout.html"], index["page.html"])
	assert.Less(t, index["macros.html"], index["page.html"])
	assert.Len(t, order, 5)
}

func TestGraph_Cycle(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"a", "b", "c"} {
		g.AddNode(id, nil)
	}
	require.NoError(t, g.AddEdge("a", "b", Imports))
	require.NoError(t, g.AddEdge("b", "c", Imports))
	require.NoError(t, g.AddEdge("c", "a", Imports))

	cyclic, path := g.HasCycle()
	require.True(t, cyclic)
	assert.Equal(t, []string{"a", "b", "c", "a"}, path)

	_, err := g.TopologicalSort()
	assert.ErrorContains(t, err, "cycle detected")
	_, err = g.Levels()
	assert.Error(t, err)

	// Affected still terminates on cyclic graphs.
	assert.Equal(t, []string{"a", "b", "c"}, g.Affected([]string{"b"}))
}

func TestGraph_Affected(t *testing.T) {
	g := site(t)

	tests := []struct {
		name    string
		changed []string
		want    []string
	}{
		{"root change", []string{"base.html"}, []string{"about.html", "base.html", "layout.html", "page.html"}},
		{"macro file", []string{"macros.html"}, []string{"macros.html", "page.html"}},
		{"leaf", []string{"about.html"}, []string{"about.html"}},
		{"unknown ignored", []string{"ghost.html"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Affected(tt.changed))
		})
	}
}

func TestGraph_Upstream(t *testing.T) {
	g := site(t)
	assert.Equal(t, []string{"base.html", "layout.html", "macros.html"}, g.Upstream("page.html"))
	assert.Empty(t, g.Upstream("base.html"))
}

func TestEdgeKind_String(t *testing.T) {
	assert.Equal(t, "extends", Extends.String())
	assert.Equal(t, "imports", Imports.String())
}
