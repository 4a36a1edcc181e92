package graph

import "fmt"

// Node is the per-node experiment record
type Node struct {
	IsEgo                bool
	Z                    uint8
	Y                    float64
	TreatedNeighborRatio float64
}

// State holds the mutable per-node records for one experiment over a shared
// Graph. Each concurrent task must own its State; the Graph may be shared.
type State struct {
	graph *Graph
	Nodes []Node
}

// NewState creates a zeroed state over g
func NewState(g *Graph) *State {
	return &State{
		graph: g,
		Nodes: make([]Node, g.NumNodes()),
	}
}

// Graph returns the underlying graph
func (s *State) Graph() *Graph {
	return s.graph
}

// Clone copies the node records. The adjacency is shared.
func (s *State) Clone() *State {
	nodes := make([]Node, len(s.Nodes))
	copy(nodes, s.Nodes)
	return &State{graph: s.graph, Nodes: nodes}
}

// ResetTreatment sets z = 0 on every node
func (s *State) ResetTreatment() {
	for i := range s.Nodes {
		s.Nodes[i].Z = 0
	}
}

// SetEgos clears every ego flag and marks the given nodes as egos
func (s *State) SetEgos(egos []int) {
	for i := range s.Nodes {
		s.Nodes[i].IsEgo = false
	}
	for _, v := range egos {
		s.Nodes[v].IsEgo = true
	}
}

// Egos returns the ego nodes in ascending order
func (s *State) Egos() []int {
	var out []int
	for v := range s.Nodes {
		if s.Nodes[v].IsEgo {
			out = append(out, v)
		}
	}
	return out
}

// NeighborTreatedFraction returns the fraction of v's neighbours with z = 1
func (s *State) NeighborTreatedFraction(v int) (float64, error) {
	nbrs := s.graph.Neighbors(v)
	if len(nbrs) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrDegreeZero, s.graph.ID(v))
	}
	sum := 0
	for _, n := range nbrs {
		sum += int(s.Nodes[n].Z)
	}
	return float64(sum) / float64(len(nbrs)), nil
}

// UpdateTreatedNeighborRatios zeroes every ratio and recomputes it for egos
// over their raw graph neighbourhood.
func (s *State) UpdateTreatedNeighborRatios(egos []int) error {
	for i := range s.Nodes {
		s.Nodes[i].TreatedNeighborRatio = 0
	}
	for _, v := range egos {
		r, err := s.NeighborTreatedFraction(v)
		if err != nil {
			return err
		}
		s.Nodes[v].TreatedNeighborRatio = r
	}
	return nil
}

// MeanTreatedNeighborRatio averages the diagnostic ratio over egos.
// It returns 0 when there are no egos.
func (s *State) MeanTreatedNeighborRatio() float64 {
	sum, n := 0.0, 0
	for _, node := range s.Nodes {
		if node.IsEgo {
			sum += node.TreatedNeighborRatio
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// TreatedCount returns the number of nodes with z = 1
func (s *State) TreatedCount() int {
	n := 0
	for _, node := range s.Nodes {
		n += int(node.Z)
	}
	return n
}
