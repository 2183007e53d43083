package codec

import (
	"github.com/gilchrisn/graph-codec-bench/pkg/graph"
)

// Resolver picks, node by node, between direct encoding and a reference to
// one of the previous WindowSize nodes of the same partition. Nodes must be
// resolved in increasing order starting at lo.
type Resolver struct {
	params Parameters
	lo, hi int
	next   int
	depth  []int // reference chain length of each resolved node, indexed by node-lo
}

func NewResolver(p Parameters, lo, hi int) *Resolver {
	return &Resolver{
		params: p,
		lo:     lo,
		hi:     hi,
		next:   lo,
		depth:  make([]int, hi-lo),
	}
}

// Resolve returns the cheapest record for node. Candidates are tried from the
// closest predecessor outwards and only a strictly cheaper one replaces the
// current choice, so ties keep the closer reference or direct encoding.
func (r *Resolver) Resolve(g *graph.Graph, node int) (Record, error) {
	if node != r.next || node >= r.hi {
		return Record{}, &EncodingError{Node: node, Reason: "nodes resolved out of order"}
	}
	r.next++

	p := r.params
	succ := g.Successors[node]
	best := BuildRecord(node, succ, 0, nil, p)
	if len(succ) == 0 || p.WindowSize == 0 || p.MaxRefCount == 0 {
		return best, nil
	}
	bestCost := best.Cost(p)

	for ref := 1; ref <= p.WindowSize; ref++ {
		j := node - ref
		if j < r.lo {
			break
		}
		if r.depth[j-r.lo] >= p.MaxRefCount || len(g.Successors[j]) == 0 {
			continue
		}
		cand := BuildRecord(node, succ, ref, g.Successors[j], p)
		if cost := cand.Cost(p); cost < bestCost {
			best, bestCost = cand, cost
		}
	}

	if best.Reference > 0 {
		r.depth[node-r.lo] = r.depth[node-best.Reference-r.lo] + 1
	}
	return best, nil
}

// Depth returns the reference chain length of an already resolved node.
func (r *Resolver) Depth(node int) int {
	return r.depth[node-r.lo]
}
