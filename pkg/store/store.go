// Package store persists encoded graphs as three files per basename: the
// record bit stream (.graph), the gamma-coded record offsets (.offsets) and a
// properties header (.properties) that is written last.
package store

import (
	"errors"
	"fmt"

	"github.com/gilchrisn/graph-codec-bench/pkg/codec"
)

var (
	ErrCorruptStore   = errors.New("corrupt store")
	ErrNodeOutOfRange = errors.New("node out of range")
)

// CorruptStoreError reports a store whose files disagree with each other or
// with the header.
type CorruptStoreError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CorruptStoreError) Error() string {
	msg := "corrupt store: " + e.Reason
	if e.Path != "" {
		msg = fmt.Sprintf("corrupt store %s: %s", e.Path, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CorruptStoreError) Unwrap() error { return e.Err }

func (e *CorruptStoreError) Is(target error) bool { return target == ErrCorruptStore }

// Store is an immutable encoded graph. All read methods are safe for
// concurrent use.
type Store struct {
	header      Header
	data        []byte
	offsets     []uint64
	offsetsData []byte
}

// Header returns a copy of the store metadata.
func (s *Store) Header() Header { return s.header }

func (s *Store) NumNodes() int { return s.header.Nodes }

func (s *Store) NumArcs() int64 { return s.header.Arcs }

func (s *Store) Parameters() codec.Parameters { return s.header.Params }

// Bits returns the length of the record stream in bits.
func (s *Store) Bits() uint64 { return s.header.GraphBits }

// recordBits returns the encoded size of node's record.
func (s *Store) recordBits(node int) uint64 {
	return s.offsets[node+1] - s.offsets[node]
}
