// Package partition splits the node range into contiguous chunks and encodes
// them concurrently, one worker per chunk.
package partition

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gilchrisn/graph-codec-bench/pkg/bitio"
	"github.com/gilchrisn/graph-codec-bench/pkg/codec"
	"github.com/gilchrisn/graph-codec-bench/pkg/graph"
)

var ErrInvalidThreads = errors.New("thread count must be positive")

// Range is the half-open node interval [Lo, Hi).
type Range struct {
	Lo int `json:"lo"`
	Hi int `json:"hi"`
}

func (r Range) Len() int { return r.Hi - r.Lo }

// Split divides [0, n) into parts contiguous ranges whose sizes differ by at
// most one, larger ranges first. Empty ranges are dropped.
func Split(n, parts int) []Range {
	if n <= 0 || parts <= 0 {
		return nil
	}
	if parts > n {
		parts = n
	}

	ranges := make([]Range, 0, parts)
	size, extra := n/parts, n%parts
	lo := 0
	for i := 0; i < parts; i++ {
		hi := lo + size
		if i < extra {
			hi++
		}
		ranges = append(ranges, Range{Lo: lo, Hi: hi})
		lo = hi
	}
	return ranges
}

// PartitionStats describes one encoded range.
type PartitionStats struct {
	Range     Range  `json:"range"`
	Bits      uint64 `json:"bits"`
	RuntimeMS int64  `json:"runtime_ms"`
}

// Statistics aggregates an encode run
type Statistics struct {
	Partitions   []PartitionStats `json:"partitions"`
	RuntimeMS    int64            `json:"runtime_ms"`
	MemoryPeakMB int64            `json:"memory_peak_mb"`
}

// Result holds the concatenated stream and global offsets.
type Result struct {
	Stream     *bitio.Writer
	Offsets    []uint64 // len NumNodes+1; the last entry is the stream length
	Partitions int
	Statistics Statistics
}

type partial struct {
	writer  *bitio.Writer
	offsets []uint64
	stats   PartitionStats
}

// Encode splits g into threads ranges and encodes them on a pool of threads
// workers. Each worker owns its writer; the results are concatenated in range
// order. The first failing range cancels the others and its error is returned.
func Encode(ctx context.Context, g *graph.Graph, p codec.Parameters, threads int, logger zerolog.Logger) (*Result, error) {
	if threads < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidThreads, threads)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}

	startTime := time.Now()
	ranges := Split(g.NumNodes, threads)
	parts := make([]partial, len(ranges))

	logger.Info().
		Int("nodes", g.NumNodes).
		Int64("arcs", g.NumArcs()).
		Int("threads", threads).
		Int("partitions", len(ranges)).
		Msg("Starting encode")

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(threads)
	for i, r := range ranges {
		eg.Go(func() error {
			partStart := time.Now()
			w := bitio.NewWriter(uint64(r.Len()) * 32)
			offsets, err := codec.EncodeRange(egCtx, g, r.Lo, r.Hi, p, w)
			if err != nil {
				return fmt.Errorf("partition %d [%d,%d): %w", i, r.Lo, r.Hi, err)
			}
			parts[i] = partial{
				writer:  w,
				offsets: offsets,
				stats: PartitionStats{
					Range:     r,
					Bits:      w.Len(),
					RuntimeMS: time.Since(partStart).Milliseconds(),
				},
			}
			logger.Debug().
				Int("partition", i).
				Int("lo", r.Lo).
				Int("hi", r.Hi).
				Uint64("bits", w.Len()).
				Msg("Partition encoded")
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	result := &Result{
		Stream:     bitio.NewWriter(totalBits(parts)),
		Offsets:    make([]uint64, 0, g.NumNodes+1),
		Partitions: len(ranges),
	}
	for _, part := range parts {
		base := result.Stream.Len()
		for _, off := range part.offsets {
			result.Offsets = append(result.Offsets, base+off)
		}
		result.Stream.Append(part.writer)
		result.Statistics.Partitions = append(result.Statistics.Partitions, part.stats)
	}
	result.Offsets = append(result.Offsets, result.Stream.Len())
	result.Statistics.RuntimeMS = time.Since(startTime).Milliseconds()
	result.Statistics.MemoryPeakMB = getMemoryUsage()

	logger.Info().
		Uint64("bits", result.Stream.Len()).
		Int64("runtime_ms", result.Statistics.RuntimeMS).
		Msg("Encode completed")

	return result, nil
}

func totalBits(parts []partial) uint64 {
	var total uint64
	for _, part := range parts {
		total += part.writer.Len()
	}
	return total
}

// getMemoryUsage returns current memory usage in MB
func getMemoryUsage() int64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return int64(m.Alloc / 1024 / 1024)
}
