// Package graph holds the mutable directed-graph builder fed to the encoder.
package graph

import (
	"errors"
	"fmt"
	"slices"
)

var ErrInvalidGraph = errors.New("invalid graph")

// Graph represents a directed graph as sorted successor lists
type Graph struct {
	NumNodes       int     `json:"num_nodes"`
	Successors     [][]int `json:"-"` // successors[i] = sorted, duplicate-free targets of node i
	AllowSelfLoops bool    `json:"allow_self_loops"`
}

// NewGraph creates a new graph with n nodes
func NewGraph(numNodes int) *Graph {
	return &Graph{
		NumNodes:       numNodes,
		Successors:     make([][]int, numNodes),
		AllowSelfLoops: true,
	}
}

// AddEdge adds the arc u -> v. Lists are not kept sorted until Normalize.
func (g *Graph) AddEdge(u, v int) error {
	if u < 0 || u >= g.NumNodes || v < 0 || v >= g.NumNodes {
		return fmt.Errorf("%w: node index out of range: u=%d, v=%d, numNodes=%d", ErrInvalidGraph, u, v, g.NumNodes)
	}
	if u == v && !g.AllowSelfLoops {
		return fmt.Errorf("%w: self-loop on node %d", ErrInvalidGraph, u)
	}
	g.Successors[u] = append(g.Successors[u], v)
	return nil
}

// AddSuccessors appends several targets to node u
func (g *Graph) AddSuccessors(u int, targets ...int) error {
	for _, v := range targets {
		if err := g.AddEdge(u, v); err != nil {
			return err
		}
	}
	return nil
}

// Normalize sorts every successor list and removes duplicates
func (g *Graph) Normalize() {
	for i, succ := range g.Successors {
		slices.Sort(succ)
		g.Successors[i] = slices.Compact(succ)
	}
}

// Outdegree returns the number of successors of node u
func (g *Graph) Outdegree(u int) int {
	if u < 0 || u >= g.NumNodes {
		return 0
	}
	return len(g.Successors[u])
}

// NumArcs returns the total number of arcs
func (g *Graph) NumArcs() int64 {
	var total int64
	for _, succ := range g.Successors {
		total += int64(len(succ))
	}
	return total
}

// Clone creates a deep copy of the graph
func (g *Graph) Clone() *Graph {
	clone := NewGraph(g.NumNodes)
	clone.AllowSelfLoops = g.AllowSelfLoops
	for i := 0; i < g.NumNodes; i++ {
		clone.Successors[i] = slices.Clone(g.Successors[i])
	}
	return clone
}

// Equal reports whether both graphs have the same nodes and successor lists
func (g *Graph) Equal(other *Graph) bool {
	if g.NumNodes != other.NumNodes {
		return false
	}
	for i := 0; i < g.NumNodes; i++ {
		if !slices.Equal(g.Successors[i], other.Successors[i]) {
			return false
		}
	}
	return true
}

// Validate checks graph consistency
func (g *Graph) Validate() error {
	if g.NumNodes < 0 {
		return fmt.Errorf("%w: negative number of nodes", ErrInvalidGraph)
	}
	if len(g.Successors) != g.NumNodes {
		return fmt.Errorf("%w: %d successor lists for %d nodes", ErrInvalidGraph, len(g.Successors), g.NumNodes)
	}

	for i := 0; i < g.NumNodes; i++ {
		prev := -1
		for _, v := range g.Successors[i] {
			if v < 0 || v >= g.NumNodes {
				return fmt.Errorf("%w: invalid successor %d for node %d", ErrInvalidGraph, v, i)
			}
			if v <= prev {
				return fmt.Errorf("%w: successors of node %d not strictly increasing at %d", ErrInvalidGraph, i, v)
			}
			if v == i && !g.AllowSelfLoops {
				return fmt.Errorf("%w: self-loop on node %d", ErrInvalidGraph, i)
			}
			prev = v
		}
	}

	return nil
}
