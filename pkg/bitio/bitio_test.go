package bitio

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func bitString(w *Writer) string {
	var sb strings.Builder
	r := NewReader(w.Bytes(), w.Len())
	for r.Position() < r.Size() {
		bit, _ := r.ReadBit()
		if bit == 1 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

func TestKnownCodewords(t *testing.T) {
	tests := []struct {
		name string
		code Code
		v    uint64
		want string
	}{
		{"unary 0", Code{Kind: Unary}, 0, "1"},
		{"unary 3", Code{Kind: Unary}, 3, "0001"},
		{"gamma 0", Code{Kind: Gamma}, 0, "1"},
		{"gamma 1", Code{Kind: Gamma}, 1, "010"},
		{"gamma 2", Code{Kind: Gamma}, 2, "011"},
		{"gamma 3", Code{Kind: Gamma}, 3, "00100"},
		{"delta 0", Code{Kind: Delta}, 0, "1"},
		{"delta 1", Code{Kind: Delta}, 1, "0100"},
		{"delta 3", Code{Kind: Delta}, 3, "01100"},
		{"zeta3 0", Code{Kind: Zeta, Param: 3}, 0, "100"},
		{"fixed 5 in 4 bits", Code{Kind: Fixed, Param: 4}, 5, "0101"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter(0)
			n, err := w.WriteCode(tt.code, tt.v)
			require.NoError(t, err)
			require.Equal(t, len(tt.want), n)
			require.Equal(t, tt.want, bitString(w))
			require.Equal(t, len(tt.want), CodeLength(tt.code, tt.v))
		})
	}
}

func TestRoundTripAllCodes(t *testing.T) {
	codes := []Code{
		{Kind: Unary},
		{Kind: Gamma},
		{Kind: Delta},
		{Kind: Zeta, Param: 1},
		{Kind: Zeta, Param: 2},
		{Kind: Zeta, Param: 3},
		{Kind: Zeta, Param: 7},
		{Kind: Fixed, Param: 20},
	}
	rng := rand.New(rand.NewSource(7))

	for _, c := range codes {
		t.Run(c.String(), func(t *testing.T) {
			values := []uint64{0, 1, 2, 3, 7, 8, 63, 64, 1000}
			limit := uint64(1 << 20)
			if c.Kind == Unary {
				limit = 300
			}
			for i := 0; i < 500; i++ {
				values = append(values, uint64(rng.Int63n(int64(limit))))
			}
			if c.Kind != Unary && c.Kind != Fixed {
				values = append(values, MaxValue, MaxValue-1, 1<<40)
			}

			w := NewWriter(0)
			total := 0
			for _, v := range values {
				if c.Kind == Unary && v > 300 {
					continue
				}
				n, err := w.WriteCode(c, v)
				require.NoError(t, err)
				require.Equal(t, CodeLength(c, v), n)
				total += n
			}
			require.Equal(t, uint64(total), w.Len())

			r := NewReader(w.Bytes(), w.Len())
			for _, v := range values {
				if c.Kind == Unary && v > 300 {
					continue
				}
				got, err := r.ReadCode(c)
				require.NoError(t, err)
				require.Equal(t, v, got)
			}
			require.Equal(t, w.Len(), r.Position())
		})
	}
}

func TestZetaOneMatchesGamma(t *testing.T) {
	for v := uint64(0); v < 5000; v++ {
		g := NewWriter(0)
		z := NewWriter(0)
		_, err := g.WriteGamma(v)
		require.NoError(t, err)
		_, err = z.WriteZeta(v, 1)
		require.NoError(t, err)
		require.Equal(t, g.Len(), z.Len(), "value %d", v)
		require.Equal(t, g.Bytes(), z.Bytes(), "value %d", v)
	}
}

func TestMinimalBinary(t *testing.T) {
	for b := uint64(1); b < 70; b++ {
		w := NewWriter(0)
		for v := uint64(0); v < b; v++ {
			_, err := w.WriteMinimalBinary(v, b)
			require.NoError(t, err)
		}
		r := NewReader(w.Bytes(), w.Len())
		for v := uint64(0); v < b; v++ {
			got, err := r.ReadMinimalBinary(b)
			require.NoError(t, err)
			require.Equal(t, v, got)
		}
	}

	_, err := NewWriter(0).WriteMinimalBinary(5, 5)
	require.ErrorIs(t, err, ErrValueOutOfRange)
}

func TestValueOutOfRange(t *testing.T) {
	w := NewWriter(0)
	_, err := w.WriteGamma(MaxValue + 1)
	require.ErrorIs(t, err, ErrValueOutOfRange)
	_, err = w.WriteZeta(MaxValue+1, 3)
	require.ErrorIs(t, err, ErrValueOutOfRange)
	_, err = w.WriteBits(16, 4)
	require.ErrorIs(t, err, ErrValueOutOfRange)
	require.Equal(t, -1, CodeLength(Code{Kind: Fixed, Param: 4}, 16))
	require.Zero(t, w.Len())
}

func TestTruncatedStream(t *testing.T) {
	tests := []struct {
		name string
		code Code
		v    uint64
	}{
		{"gamma", Code{Kind: Gamma}, 1000},
		{"delta", Code{Kind: Delta}, 1000},
		{"zeta", Code{Kind: Zeta, Param: 3}, 1000},
		{"unary", Code{Kind: Unary}, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter(0)
			_, err := w.WriteCode(tt.code, tt.v)
			require.NoError(t, err)

			r := NewReader(w.Bytes(), w.Len()-1)
			_, err = r.ReadCode(tt.code)
			require.ErrorIs(t, err, ErrMalformedStream)

			var mse *MalformedStreamError
			require.True(t, errors.As(err, &mse))
			require.Equal(t, uint64(0), mse.Offset)
		})
	}
}

func TestOversizedGammaPrefix(t *testing.T) {
	// 80 zero bits then a one: no valid gamma code has a prefix this long
	data := make([]byte, 11)
	data[10] = 0x80
	r := NewReader(data, 88)
	_, err := r.ReadGamma()
	require.ErrorIs(t, err, ErrMalformedStream)
}

func TestAppendUnaligned(t *testing.T) {
	a := NewWriter(0)
	_, err := a.WriteGamma(5)
	require.NoError(t, err)
	b := NewWriter(0)
	for v := uint64(0); v < 40; v++ {
		_, err := b.WriteDelta(v * 13)
		require.NoError(t, err)
	}
	before := a.Len()
	a.Append(b)
	require.Equal(t, before+b.Len(), a.Len())

	r := NewReader(a.Bytes(), a.Len())
	got, err := r.ReadGamma()
	require.NoError(t, err)
	require.Equal(t, uint64(5), got)
	require.Equal(t, before, r.Position())
	for v := uint64(0); v < 40; v++ {
		got, err := r.ReadDelta()
		require.NoError(t, err)
		require.Equal(t, v*13, got)
	}
}

func TestSeek(t *testing.T) {
	w := NewWriter(0)
	offsets := make([]uint64, 0, 10)
	for v := uint64(0); v < 10; v++ {
		offsets = append(offsets, w.Len())
		_, err := w.WriteZeta(v*v, 3)
		require.NoError(t, err)
	}
	r := NewReader(w.Bytes(), w.Len())
	for i := 9; i >= 0; i-- {
		require.NoError(t, r.Seek(offsets[i]))
		got, err := r.ReadZeta(3)
		require.NoError(t, err)
		require.Equal(t, uint64(i*i), got)
	}
	require.ErrorIs(t, r.Seek(w.Len()+1), ErrMalformedStream)
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{Unary, Gamma, Delta, Zeta, Fixed} {
		got, err := ParseKind(strings.ToLower(k.String()))
		require.NoError(t, err)
		require.Equal(t, k, got)
	}
	_, err := ParseKind("golomb")
	require.ErrorIs(t, err, ErrUnknownCode)
}
