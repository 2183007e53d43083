package partition

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/graph-codec-bench/pkg/bitio"
	"github.com/gilchrisn/graph-codec-bench/pkg/codec"
	"github.com/gilchrisn/graph-codec-bench/pkg/graph"
)

func randomGraph(n int, seed int64) *graph.Graph {
	rng := rand.New(rand.NewSource(seed))
	g := graph.NewGraph(n)
	for u := 0; u < n; u++ {
		for k := rng.Intn(8); k > 0; k-- {
			v := u + rng.Intn(40) - 20
			if v >= 0 && v < n {
				_ = g.AddEdge(u, v)
			}
		}
	}
	g.Normalize()
	return g
}

func decode(t *testing.T, res *Result, n int, p codec.Parameters) *graph.Graph {
	t.Helper()
	dec := codec.NewDecoder(bitio.NewReader(res.Stream.Bytes(), res.Stream.Len()), n, p)
	out := graph.NewGraph(n)
	for {
		require.Equal(t, res.Offsets[dec.Node()], dec.Position())
		rec, succ, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		out.Successors[rec.Node] = succ
	}
	return out
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		parts int
		want  []Range
	}{
		{"even", 8, 4, []Range{{0, 2}, {2, 4}, {4, 6}, {6, 8}}},
		{"remainder goes first", 10, 4, []Range{{0, 3}, {3, 6}, {6, 8}, {8, 10}}},
		{"single", 5, 1, []Range{{0, 5}}},
		{"more parts than nodes", 3, 8, []Range{{0, 1}, {1, 2}, {2, 3}}},
		{"empty graph", 0, 4, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Split(tt.n, tt.parts))
		})
	}
}

func TestEncodeThreadIndependence(t *testing.T) {
	g := randomGraph(2000, 42)
	p := codec.DefaultParameters()

	one, err := Encode(context.Background(), g, p, 1, zerolog.Nop())
	require.NoError(t, err)
	four, err := Encode(context.Background(), g, p, 4, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, 1, one.Partitions)
	require.Equal(t, 4, four.Partitions)
	require.Len(t, four.Statistics.Partitions, 4)

	require.True(t, g.Equal(decode(t, one, g.NumNodes, p)))
	require.True(t, g.Equal(decode(t, four, g.NumNodes, p)))
}

func TestEncodeDeterministic(t *testing.T) {
	g := randomGraph(1500, 7)
	p := codec.DefaultParameters()

	a, err := Encode(context.Background(), g, p, 3, zerolog.Nop())
	require.NoError(t, err)
	b, err := Encode(context.Background(), g, p, 3, zerolog.Nop())
	require.NoError(t, err)

	require.Equal(t, a.Stream.Len(), b.Stream.Len())
	require.Equal(t, a.Stream.Bytes(), b.Stream.Bytes())
	require.Equal(t, a.Offsets, b.Offsets)
}

func TestEncodeOffsets(t *testing.T) {
	g := randomGraph(100, 3)
	res, err := Encode(context.Background(), g, codec.DefaultParameters(), 3, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, res.Offsets, g.NumNodes+1)
	require.Equal(t, uint64(0), res.Offsets[0])
	require.Equal(t, res.Stream.Len(), res.Offsets[g.NumNodes])
	for i := 1; i < len(res.Offsets); i++ {
		require.Greater(t, res.Offsets[i], res.Offsets[i-1])
	}
}

func TestEncodeEmptyGraph(t *testing.T) {
	res, err := Encode(context.Background(), graph.NewGraph(0), codec.DefaultParameters(), 4, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, res.Offsets)
	require.Zero(t, res.Stream.Len())
}

func TestEncodeErrors(t *testing.T) {
	g := randomGraph(50, 1)

	_, err := Encode(context.Background(), g, codec.DefaultParameters(), 0, zerolog.Nop())
	require.ErrorIs(t, err, ErrInvalidThreads)

	bad := codec.DefaultParameters()
	bad.ZetaK = 9
	_, err = Encode(context.Background(), g, bad, 2, zerolog.Nop())
	require.ErrorIs(t, err, codec.ErrInvalidParameters)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Encode(ctx, g, codec.DefaultParameters(), 2, zerolog.Nop())
	require.ErrorIs(t, err, context.Canceled)

	// a residual that does not fit the fixed width fails its partition
	narrow := codec.DefaultParameters()
	narrow.Codes.Residuals = bitio.Fixed
	narrow.FixedWidth = 2
	far := graph.NewGraph(50)
	require.NoError(t, far.AddEdge(30, 49))
	_, err = Encode(context.Background(), far, narrow, 2, zerolog.Nop())
	require.ErrorIs(t, err, codec.ErrInvalidParameters)
	require.NotErrorIs(t, err, codec.ErrEncoding)
}
