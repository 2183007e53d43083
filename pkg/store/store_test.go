package store

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/gilchrisn/graph-codec-bench/pkg/bitio"
	"github.com/gilchrisn/graph-codec-bench/pkg/codec"
	"github.com/gilchrisn/graph-codec-bench/pkg/graph"
)

func webLikeGraph(n int, seed int64) *graph.Graph {
	rng := rand.New(rand.NewSource(seed))
	g := graph.NewGraph(n)
	for u := 0; u < n; u++ {
		if u > 0 && rng.Intn(2) == 0 {
			for _, v := range g.Successors[u-1] {
				if rng.Intn(5) > 0 {
					_ = g.AddEdge(u, v)
				}
			}
		}
		base := rng.Intn(n)
		for k := rng.Intn(4); k > 0; k-- {
			if base+k < n {
				_ = g.AddEdge(u, base+k)
			}
		}
		if rng.Intn(4) == 0 {
			_ = g.AddEdge(u, rng.Intn(n))
		}
		g.Normalize()
	}
	return g
}

func writeStore(t *testing.T, g *graph.Graph, p codec.Parameters, threads int) string {
	t.Helper()
	basename := filepath.Join(t.TempDir(), "graphs", "test")
	_, err := Write(context.Background(), basename, g, p, Options{Threads: threads, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return basename
}

func TestWriteOpenRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		threads int
		mutate  func(p *codec.Parameters)
	}{
		{"defaults single thread", 1, func(p *codec.Parameters) {}},
		{"defaults four threads", 4, func(p *codec.Parameters) {}},
		{"no references", 2, func(p *codec.Parameters) { p.WindowSize = 0 }},
		{"no intervals", 3, func(p *codec.Parameters) { p.MinIntervalSize = 0 }},
		{"long chains", 1, func(p *codec.Parameters) { p.WindowSize = 16; p.MaxRefCount = 8 }},
		{"custom codes", 2, func(p *codec.Parameters) {
			p.Codes.Outdegree = bitio.Gamma
			p.Codes.Reference = bitio.Gamma
			p.Codes.Residuals = bitio.Delta
			p.ZetaK = 5
		}},
	}

	g := webLikeGraph(600, 1)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := codec.DefaultParameters()
			tt.mutate(&p)
			basename := writeStore(t, g, p, tt.threads)

			s, err := Open(basename)
			require.NoError(t, err)
			require.Equal(t, g.NumNodes, s.NumNodes())
			require.Equal(t, g.NumArcs(), s.NumArcs())
			require.Equal(t, p, s.Parameters())
			require.Equal(t, tt.threads, s.Header().Partitions)

			decoded, err := s.Graph()
			require.NoError(t, err)
			require.True(t, g.Equal(decoded))

			for node := 0; node < g.NumNodes; node++ {
				succ, err := s.SuccessorsOf(node)
				require.NoError(t, err)
				require.Equal(t, g.Successors[node], succ, "node %d", node)
			}
		})
	}
}

func TestThreadCountsDecodeIdentically(t *testing.T) {
	g := webLikeGraph(1000, 2)
	p := codec.DefaultParameters()

	one, err := Open(writeStore(t, g, p, 1))
	require.NoError(t, err)
	four, err := Open(writeStore(t, g, p, 4))
	require.NoError(t, err)

	a, err := one.Graph()
	require.NoError(t, err)
	b, err := four.Graph()
	require.NoError(t, err)
	require.True(t, a.Equal(b))
	require.True(t, g.Equal(a))
}

func TestConcurrentRandomAccess(t *testing.T) {
	g := webLikeGraph(400, 3)
	s, err := Open(writeStore(t, g, codec.DefaultParameters(), 2))
	require.NoError(t, err)

	var eg errgroup.Group
	for w := 0; w < 8; w++ {
		eg.Go(func() error {
			rng := rand.New(rand.NewSource(int64(w)))
			for i := 0; i < 200; i++ {
				node := rng.Intn(g.NumNodes)
				succ, err := s.SuccessorsOf(node)
				if err != nil {
					return err
				}
				if !slices.Equal(succ, g.Successors[node]) {
					return &CorruptStoreError{Reason: "mismatch"}
				}
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
}

func TestIterateRestartable(t *testing.T) {
	g := webLikeGraph(50, 4)
	s, err := Encode(context.Background(), g, codec.DefaultParameters(), Options{Logger: zerolog.Nop()})
	require.NoError(t, err)

	seen := 0
	for ns, err := range s.Iterate() {
		require.NoError(t, err)
		require.Equal(t, seen, ns.Node)
		seen++
		if seen == 10 {
			break
		}
	}
	require.Equal(t, 10, seen)

	seen = 0
	for ns, err := range s.Iterate() {
		require.NoError(t, err)
		require.Equal(t, g.Successors[ns.Node], ns.Successors)
		seen++
	}
	require.Equal(t, g.NumNodes, seen)
}

func TestWindowLargerThanGraph(t *testing.T) {
	g := webLikeGraph(20, 12)
	p := codec.DefaultParameters()
	p.WindowSize = codec.MaxWindowSize
	p.MaxRefCount = 20

	s, err := Encode(context.Background(), g, p, Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	back, err := s.Graph()
	require.NoError(t, err)
	require.True(t, g.Equal(back))

	basename := filepath.Join(t.TempDir(), "wide")
	require.NoError(t, s.Save(basename))
	opened, err := Open(basename)
	require.NoError(t, err)
	require.Equal(t, codec.MaxWindowSize, opened.Parameters().WindowSize)
	back, err = opened.Graph()
	require.NoError(t, err)
	require.True(t, g.Equal(back))
	for node := range g.NumNodes {
		succ, err := opened.SuccessorsOf(node)
		require.NoError(t, err)
		require.Equal(t, g.Successors[node], succ)
	}
}

func TestTrailingBitsAfterLastRecord(t *testing.T) {
	g := webLikeGraph(30, 13)
	s, err := Encode(context.Background(), g, codec.DefaultParameters(), Options{Logger: zerolog.Nop()})
	require.NoError(t, err)

	// claim one extra zero byte as part of the last record
	padded := *s
	padded.header.GraphBits = uint64(len(s.data)+1) * 8
	padded.data = append(slices.Clone(s.data), 0)
	padded.offsets = slices.Clone(s.offsets)
	padded.offsets[g.NumNodes] = padded.header.GraphBits

	_, err = padded.Graph()
	require.ErrorIs(t, err, ErrCorruptStore)
	_, err = ComputeStats(&padded)
	require.ErrorIs(t, err, ErrCorruptStore)
	_, err = padded.SuccessorsOf(g.NumNodes - 1)
	require.ErrorIs(t, err, ErrCorruptStore)
	_, err = padded.SuccessorsOf(0)
	require.NoError(t, err)
}

func TestSuccessorsOfOutOfRange(t *testing.T) {
	s, err := Encode(context.Background(), webLikeGraph(5, 5), codec.DefaultParameters(), Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	_, err = s.SuccessorsOf(5)
	require.ErrorIs(t, err, ErrNodeOutOfRange)
	_, err = s.SuccessorsOf(-1)
	require.ErrorIs(t, err, ErrNodeOutOfRange)
}

func TestOpenCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(t *testing.T, basename string)
	}{
		{"wrong version tag", func(t *testing.T, basename string) {
			replaceInFile(t, basename+PropertiesExtension, FormatVersion, "bvgraph-go/0")
		}},
		{"missing key", func(t *testing.T, basename string) {
			replaceInFile(t, basename+PropertiesExtension, "zetak", "zetakay")
		}},
		{"bad compression flags", func(t *testing.T, basename string) {
			replaceInFile(t, basename+PropertiesExtension, "RESIDUALS_ZETA", "RESIDUALS_RICE")
		}},
		{"flipped stream bit", func(t *testing.T, basename string) {
			data, err := os.ReadFile(basename + GraphExtension)
			require.NoError(t, err)
			data[len(data)/2] ^= 0x10
			require.NoError(t, os.WriteFile(basename+GraphExtension, data, 0o644))
		}},
		{"truncated stream", func(t *testing.T, basename string) {
			data, err := os.ReadFile(basename + GraphExtension)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(basename+GraphExtension, data[:len(data)-1], 0o644))
		}},
		{"oversized window", func(t *testing.T, basename string) {
			replaceInFile(t, basename+PropertiesExtension, "windowsize = 7", "windowsize = 1099511627776")
		}},
		{"missing offsets", func(t *testing.T, basename string) {
			require.NoError(t, os.Remove(basename+OffsetsExtension))
		}},
		{"tampered offsets", func(t *testing.T, basename string) {
			data, err := os.ReadFile(basename + OffsetsExtension)
			require.NoError(t, err)
			data[0] ^= 0xff
			require.NoError(t, os.WriteFile(basename+OffsetsExtension, data, 0o644))
		}},
	}

	g := webLikeGraph(200, 6)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			basename := writeStore(t, g, codec.DefaultParameters(), 2)
			tt.corrupt(t, basename)

			s, err := Open(basename)
			require.Nil(t, s)
			require.ErrorIs(t, err, ErrCorruptStore)
			var cse *CorruptStoreError
			require.ErrorAs(t, err, &cse)
		})
	}
}

func TestOpenMissingStore(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nothing"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestSaveReplacesHeaderLast(t *testing.T) {
	g := webLikeGraph(100, 7)
	basename := writeStore(t, g, codec.DefaultParameters(), 1)
	first, err := Open(basename)
	require.NoError(t, err)

	other := webLikeGraph(80, 8)
	s, err := Write(context.Background(), basename, other, codec.DefaultParameters(), Options{Threads: 2, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NotEqual(t, first.Header().StoreID, s.Header().StoreID)

	reopened, err := Open(basename)
	require.NoError(t, err)
	decoded, err := reopened.Graph()
	require.NoError(t, err)
	require.True(t, other.Equal(decoded))

	_, err = os.Stat(basename + PropertiesExtension + ".tmp")
	require.True(t, os.IsNotExist(err))
}

func TestHeaderRoundTrip(t *testing.T) {
	p := codec.DefaultParameters()
	p.Codes.Blocks = bitio.Zeta
	h := Header{
		FormatVersion:   FormatVersion,
		Nodes:           12,
		Arcs:            34,
		Params:          p,
		Partitions:      3,
		GraphBits:       999,
		GraphChecksum:   checksum([]byte("graph")),
		OffsetsChecksum: checksum([]byte("offsets")),
		StoreID:         "3f1c0c55-1111-4c2a-9d1e-000000000001",
		Generator:       DefaultGenerator,
	}
	raw, err := h.Marshal()
	require.NoError(t, err)
	require.Contains(t, string(raw), "BLOCKS_ZETA")

	parsed, err := ParseHeader(raw)
	require.NoError(t, err)
	require.Equal(t, h, parsed)
}

func TestOffsetsRoundTrip(t *testing.T) {
	offsets := []uint64{0, 1, 5, 5000, 5001, 1 << 33}
	data, err := encodeOffsets(offsets)
	require.NoError(t, err)
	got, err := decodeOffsets(data, len(offsets))
	require.NoError(t, err)
	require.Equal(t, offsets, got)

	_, err = encodeOffsets([]uint64{0, 10, 9})
	require.Error(t, err)
	_, err = decodeOffsets(data, len(offsets)+8)
	require.ErrorIs(t, err, bitio.ErrMalformedStream)
}

func TestComputeStats(t *testing.T) {
	g := graph.NewGraph(6)
	require.NoError(t, g.AddSuccessors(0, 1, 2, 3, 4))
	require.NoError(t, g.AddSuccessors(1, 1, 2, 3, 4))
	require.NoError(t, g.AddSuccessors(2, 0, 5))
	g.Normalize()

	s, err := Encode(context.Background(), g, codec.DefaultParameters(), Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	st, err := ComputeStats(s)
	require.NoError(t, err)

	require.Equal(t, 6, st.Nodes)
	require.Equal(t, int64(10), st.Arcs)
	require.Equal(t, 4, st.MaxOutdegree)
	require.InDelta(t, 10.0/6.0, st.MeanOutdegree, 1e-9)
	require.InDelta(t, float64(st.GraphBits)/10, st.BitsPerLink, 1e-9)
	require.InDelta(t, float64(st.GraphBits)/6, st.BitsPerNode, 1e-9)
	require.InDelta(t, 1.0/6.0, st.ReferencedFraction, 1e-9)
	require.Equal(t, 1, st.MaxChainDepth)
	require.InDelta(t, 1.0, st.CopiedArcFraction+st.IntervalArcFraction+st.ResidualArcFraction, 1e-9)

	asJSON, err := json.Marshal(st)
	require.NoError(t, err)
	require.Contains(t, string(asJSON), `"bits_per_link"`)

	var buf bytes.Buffer
	require.NoError(t, yaml.NewEncoder(&buf).Encode(st))
	var back Stats
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	require.Equal(t, *st, back)
}

func TestComputeStatsEmpty(t *testing.T) {
	s, err := Encode(context.Background(), graph.NewGraph(0), codec.DefaultParameters(), Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	st, err := ComputeStats(s)
	require.NoError(t, err)
	require.Zero(t, st.Nodes)
	require.Zero(t, st.BitsPerLink)
}

func replaceInFile(t *testing.T, path, old, new string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), old)
	require.NoError(t, os.WriteFile(path, bytes.Replace(data, []byte(old), []byte(new), 1), 0o644))
}
