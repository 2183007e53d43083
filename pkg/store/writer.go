package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gilchrisn/graph-codec-bench/pkg/codec"
	"github.com/gilchrisn/graph-codec-bench/pkg/graph"
	"github.com/gilchrisn/graph-codec-bench/pkg/partition"
)

const DefaultGenerator = "graph-codec-bench"

// Options control an encode run.
type Options struct {
	Threads   int // 0 means 1
	Logger    zerolog.Logger
	Generator string
}

// Encode compresses g in memory.
func Encode(ctx context.Context, g *graph.Graph, p codec.Parameters, opts Options) (*Store, error) {
	threads := opts.Threads
	if threads == 0 {
		threads = 1
	}
	generator := opts.Generator
	if generator == "" {
		generator = DefaultGenerator
	}

	res, err := partition.Encode(ctx, g, p, threads, opts.Logger)
	if err != nil {
		return nil, err
	}

	offsetsData, err := encodeOffsets(res.Offsets)
	if err != nil {
		return nil, &codec.EncodingError{Node: -1, Reason: "encoding offsets", Err: err}
	}
	data := res.Stream.Bytes()

	return &Store{
		header: Header{
			FormatVersion:   FormatVersion,
			Nodes:           g.NumNodes,
			Arcs:            g.NumArcs(),
			Params:          p,
			Partitions:      res.Partitions,
			GraphBits:       res.Stream.Len(),
			GraphChecksum:   checksum(data),
			OffsetsChecksum: checksum(offsetsData),
			StoreID:         uuid.New().String(),
			Generator:       generator,
		},
		data:        data,
		offsets:     res.Offsets,
		offsetsData: offsetsData,
	}, nil
}

// Write encodes g and saves it under basename.
func Write(ctx context.Context, basename string, g *graph.Graph, p codec.Parameters, opts Options) (*Store, error) {
	s, err := Encode(ctx, g, p, opts)
	if err != nil {
		return nil, err
	}
	if err := s.Save(basename); err != nil {
		return nil, err
	}

	opts.Logger.Info().
		Str("basename", basename).
		Int("nodes", s.header.Nodes).
		Int64("arcs", s.header.Arcs).
		Uint64("bits", s.header.GraphBits).
		Str("store_id", s.header.StoreID).
		Msg("Store written")
	return s, nil
}

// Save writes the three store files. Any existing header is removed first and
// the new one is renamed into place only after the stream and offsets are on
// disk, so an interrupted save never leaves a header describing other data.
func (s *Store) Save(basename string) error {
	propsPath := basename + PropertiesExtension
	if err := os.Remove(propsPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing old header: %w", err)
	}
	if dir := filepath.Dir(basename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	if err := os.WriteFile(basename+GraphExtension, s.data, 0o644); err != nil {
		return fmt.Errorf("writing graph stream: %w", err)
	}
	if err := os.WriteFile(basename+OffsetsExtension, s.offsetsData, 0o644); err != nil {
		return fmt.Errorf("writing offsets: %w", err)
	}

	header, err := s.header.Marshal()
	if err != nil {
		return fmt.Errorf("encoding header: %w", err)
	}
	tmp := propsPath + ".tmp"
	if err := os.WriteFile(tmp, header, 0o644); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := os.Rename(tmp, propsPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("installing header: %w", err)
	}
	return nil
}
