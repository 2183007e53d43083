package store

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/gilchrisn/graph-codec-bench/pkg/bitio"
	"github.com/gilchrisn/graph-codec-bench/pkg/codec"
	"github.com/gilchrisn/graph-codec-bench/pkg/graph"
)

// NodeSuccessors is one element of a sequential iteration.
type NodeSuccessors struct {
	Node       int
	Successors []int
}

// Open loads the store saved under basename and checks that the header, the
// stream and the offsets agree. Any mismatch is a *CorruptStoreError.
func Open(basename string) (*Store, error) {
	propsPath := basename + PropertiesExtension
	raw, err := os.ReadFile(propsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("opening store %s: %w", basename, err)
		}
		return nil, &CorruptStoreError{Path: propsPath, Reason: "unreadable header", Err: err}
	}
	header, err := ParseHeader(raw)
	if err != nil {
		return nil, &CorruptStoreError{Path: propsPath, Reason: "invalid header", Err: err}
	}

	graphPath := basename + GraphExtension
	data, err := os.ReadFile(graphPath)
	if err != nil {
		return nil, &CorruptStoreError{Path: graphPath, Reason: "unreadable stream", Err: err}
	}
	if uint64(len(data)) != (header.GraphBits+7)/8 {
		return nil, &CorruptStoreError{Path: graphPath, Reason: fmt.Sprintf("stream has %d bytes, header declares %d bits", len(data), header.GraphBits)}
	}
	if checksum(data) != header.GraphChecksum {
		return nil, &CorruptStoreError{Path: graphPath, Reason: "stream checksum mismatch"}
	}

	offsetsPath := basename + OffsetsExtension
	offsetsData, err := os.ReadFile(offsetsPath)
	if err != nil {
		return nil, &CorruptStoreError{Path: offsetsPath, Reason: "unreadable offsets", Err: err}
	}
	if checksum(offsetsData) != header.OffsetsChecksum {
		return nil, &CorruptStoreError{Path: offsetsPath, Reason: "offsets checksum mismatch"}
	}
	// every offset takes at least one bit
	if uint64(header.Nodes)+1 > uint64(len(offsetsData))*8 {
		return nil, &CorruptStoreError{Path: offsetsPath, Reason: fmt.Sprintf("too short for %d nodes", header.Nodes)}
	}
	offsets, err := decodeOffsets(offsetsData, header.Nodes+1)
	if err != nil {
		return nil, &CorruptStoreError{Path: offsetsPath, Reason: "invalid offsets", Err: err}
	}
	if offsets[0] != 0 || offsets[header.Nodes] != header.GraphBits {
		return nil, &CorruptStoreError{Path: offsetsPath, Reason: "offsets do not span the stream"}
	}
	for i := 1; i <= header.Nodes; i++ {
		if offsets[i] <= offsets[i-1] {
			return nil, &CorruptStoreError{Path: offsetsPath, Reason: fmt.Sprintf("empty record for node %d", i-1)}
		}
	}

	return &Store{
		header:      header,
		data:        data,
		offsets:     offsets,
		offsetsData: offsetsData,
	}, nil
}

// SuccessorsOf decodes the successor list of node through the offsets index,
// following its reference chain.
func (s *Store) SuccessorsOf(node int) ([]int, error) {
	if node < 0 || node >= s.header.Nodes {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrNodeOutOfRange, node, s.header.Nodes)
	}
	return s.successors(node, 0)
}

func (s *Store) successors(node, depth int) ([]int, error) {
	if depth > s.header.Params.MaxRefCount {
		return nil, &CorruptStoreError{Reason: fmt.Sprintf("reference chain longer than %d at node %d", s.header.Params.MaxRefCount, node)}
	}

	r := bitio.NewReader(s.data, s.header.GraphBits)
	if err := r.Seek(s.offsets[node]); err != nil {
		return nil, err
	}
	_, succ, err := codec.ReadRecord(r, node, s.header.Nodes, s.header.Params, func(ref int) ([]int, error) {
		return s.successors(node-ref, depth+1)
	})
	if err != nil {
		return nil, err
	}
	if r.Position() != s.offsets[node+1] {
		return nil, &CorruptStoreError{Reason: fmt.Sprintf("record of node %d ends at bit %d, index says %d", node, r.Position(), s.offsets[node+1])}
	}
	return succ, nil
}

// Iterate decodes the store sequentially. The sequence stops after the first
// error; call Iterate again to restart from node 0.
func (s *Store) Iterate() iter.Seq2[NodeSuccessors, error] {
	return func(yield func(NodeSuccessors, error) bool) {
		err := s.records(func(rec codec.Record, succ []int) bool {
			return yield(NodeSuccessors{Node: rec.Node, Successors: succ}, nil)
		})
		if err != nil {
			yield(NodeSuccessors{}, err)
		}
	}
}

// records feeds every decoded record to fn until fn returns false.
func (s *Store) records(fn func(codec.Record, []int) bool) error {
	dec := codec.NewDecoder(bitio.NewReader(s.data, s.header.GraphBits), s.header.Nodes, s.header.Params)
	for {
		node := dec.Node()
		if node < s.header.Nodes && dec.Position() != s.offsets[node] {
			return &CorruptStoreError{Reason: fmt.Sprintf("record of node %d starts at bit %d, index says %d", node, dec.Position(), s.offsets[node])}
		}
		rec, succ, err := dec.Next()
		if errors.Is(err, io.EOF) {
			if end := s.offsets[s.header.Nodes]; dec.Position() != end {
				return &CorruptStoreError{Reason: fmt.Sprintf("last record ends at bit %d, index says %d", dec.Position(), end)}
			}
			return nil
		}
		if err != nil {
			return err
		}
		if !fn(rec, succ) {
			return nil
		}
	}
}

// Graph decodes the whole store into a builder graph.
func (s *Store) Graph() (*graph.Graph, error) {
	g := graph.NewGraph(s.header.Nodes)
	for ns, err := range s.Iterate() {
		if err != nil {
			return nil, err
		}
		g.Successors[ns.Node] = ns.Successors
	}
	return g, nil
}
