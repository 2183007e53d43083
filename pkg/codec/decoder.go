package codec

import (
	"fmt"
	"io"

	"github.com/gilchrisn/graph-codec-bench/pkg/bitio"
)

// Decoder reads records sequentially from the start of a stream, keeping the
// last WindowSize lists around to resolve references. A reference never
// reaches before node 0, so at most numNodes lists are kept.
type Decoder struct {
	r        *bitio.Reader
	params   Parameters
	numNodes int
	next     int
	window   [][]int
}

func NewDecoder(r *bitio.Reader, numNodes int, p Parameters) *Decoder {
	return &Decoder{
		r:        r,
		params:   p,
		numNodes: numNodes,
		window:   make([][]int, min(p.WindowSize, numNodes)+1),
	}
}

// Node returns the ID of the record the next call to Next will decode.
func (d *Decoder) Node() int { return d.next }

// Position returns the bit offset of the next record.
func (d *Decoder) Position() uint64 { return d.r.Position() }

// Next decodes the next record and its successor list. It returns io.EOF
// after the last node.
func (d *Decoder) Next() (Record, []int, error) {
	if d.next >= d.numNodes {
		return Record{}, nil, io.EOF
	}
	node := d.next
	rec, succ, err := ReadRecord(d.r, node, d.numNodes, d.params, d.reference(node))
	if err != nil {
		return rec, nil, err
	}
	d.window[node%len(d.window)] = succ
	d.next++
	return rec, succ, nil
}

func (d *Decoder) reference(node int) ReferenceFunc {
	return func(ref int) ([]int, error) {
		if ref <= 0 || ref > d.params.WindowSize || ref > node {
			return nil, fmt.Errorf("%w: reference %d outside window", bitio.ErrMalformedStream, ref)
		}
		return d.window[(node-ref)%len(d.window)], nil
	}
}
