package graph

import (
	"errors"
	"fmt"
	"sort"

	gonumgraph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// ErrDegreeZero is returned when a computation needs to divide by the degree
// of a node that has no neighbours.
var ErrDegreeZero = errors.New("node has degree zero")

// Graph is an immutable undirected simple graph over dense node indices
// 0..NumNodes()-1. Original node identifiers are kept for reporting.
// A Graph is safe to share between goroutines.
type Graph struct {
	ids   []string
	index map[string]int
	adj   [][]int
	edges int
}

// NumNodes returns the number of nodes
func (g *Graph) NumNodes() int {
	return len(g.adj)
}

// NumEdges returns the number of undirected edges
func (g *Graph) NumEdges() int {
	return g.edges
}

// Degree returns the number of neighbours of v
func (g *Graph) Degree(v int) int {
	return len(g.adj[v])
}

// Neighbors returns the neighbours of v in ascending index order.
// The returned slice must not be modified.
func (g *Graph) Neighbors(v int) []int {
	return g.adj[v]
}

// ID returns the original identifier of v
func (g *Graph) ID(v int) string {
	return g.ids[v]
}

// Index returns the dense index of the node with the given identifier
func (g *Graph) Index(id string) (int, bool) {
	v, ok := g.index[id]
	return v, ok
}

// Validate returns ErrDegreeZero if any node has no neighbours
func (g *Graph) Validate() error {
	for v := range g.adj {
		if len(g.adj[v]) == 0 {
			return fmt.Errorf("%w: %s", ErrDegreeZero, g.ids[v])
		}
	}
	return nil
}

// Builder accumulates nodes and edges and produces a Graph.
// Self loops are dropped and parallel edges collapse into one.
type Builder struct {
	g     *simple.UndirectedGraph
	ids   []string
	index map[string]int
	edges int
}

// NewBuilder creates an empty graph builder
func NewBuilder() *Builder {
	return &Builder{
		g:     simple.NewUndirectedGraph(),
		index: make(map[string]int),
	}
}

// AddNode registers id and returns its dense index. Registering an existing
// id is a no-op.
func (b *Builder) AddNode(id string) int {
	if v, ok := b.index[id]; ok {
		return v
	}
	v := len(b.ids)
	b.ids = append(b.ids, id)
	b.index[id] = v
	b.g.AddNode(simple.Node(int64(v)))
	return v
}

// AddEdge adds an undirected edge between u and v, registering either
// endpoint if needed. It reports whether a new edge was added.
func (b *Builder) AddEdge(u, v string) bool {
	ui := b.AddNode(u)
	vi := b.AddNode(v)
	if ui == vi {
		return false
	}
	if b.g.HasEdgeBetween(int64(ui), int64(vi)) {
		return false
	}
	b.g.SetEdge(b.g.NewEdge(simple.Node(int64(ui)), simple.Node(int64(vi))))
	b.edges++
	return true
}

// Build freezes the accumulated graph
func (b *Builder) Build() *Graph {
	n := len(b.ids)
	adj := make([][]int, n)
	for v := 0; v < n; v++ {
		adj[v] = neighborIndices(b.g.From(int64(v)))
	}

	ids := make([]string, n)
	copy(ids, b.ids)
	index := make(map[string]int, n)
	for id, v := range b.index {
		index[id] = v
	}

	return &Graph{
		ids:   ids,
		index: index,
		adj:   adj,
		edges: b.edges,
	}
}

func neighborIndices(it gonumgraph.Nodes) []int {
	size := it.Len()
	if size < 0 {
		size = 0
	}
	out := make([]int, 0, size)
	for it.Next() {
		out = append(out, int(it.Node().ID()))
	}
	sort.Ints(out)
	return out
}

// FromEdges builds a graph over integer identifiers 0..max, so that every
// node's dense index equals its identifier. It is mostly useful in tests.
func FromEdges(edges [][2]int) *Graph {
	b := NewBuilder()
	hi := -1
	for _, e := range edges {
		if e[0] > hi {
			hi = e[0]
		}
		if e[1] > hi {
			hi = e[1]
		}
	}
	for v := 0; v <= hi; v++ {
		b.AddNode(fmt.Sprint(v))
	}
	for _, e := range edges {
		b.AddEdge(fmt.Sprint(e[0]), fmt.Sprint(e[1]))
	}
	return b.Build()
}
