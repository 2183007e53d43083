// Package bitio implements MSB-first bit streams and the instantaneous integer
// codes used by the graph codec: unary, Elias gamma and delta, Boldi-Vigna
// zeta_k and fixed-width binary.
//
// Bit numbering follows WebGraph: the first bit of a stream is the most
// significant bit of its first byte. Gamma, delta and zeta codes encode x+1 so
// that zero is representable.
package bitio

import (
	"fmt"
	"math/bits"
)

// MaxValue is the largest integer any code in this package will encode.
// It keeps every shift in the zeta and minimal binary codes inside 64 bits.
const MaxValue uint64 = 1<<48 - 1

// Writer accumulates bits in a growable byte slice.
type Writer struct {
	buf  []byte
	bits uint64
}

// NewWriter returns a writer with room for roughly sizeHint bits.
func NewWriter(sizeHint uint64) *Writer {
	return &Writer{buf: make([]byte, 0, (sizeHint+7)/8)}
}

// Len returns the number of bits written so far.
func (w *Writer) Len() uint64 { return w.bits }

// Bytes returns the written bits padded with zeros to a whole byte. The slice
// aliases the writer's buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Reset empties the writer but keeps its buffer.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
	w.bits = 0
}

// WriteBit appends a single bit (any non-zero value is a one).
func (w *Writer) WriteBit(bit uint) {
	if w.bits%8 == 0 {
		w.buf = append(w.buf, 0)
	}
	if bit != 0 {
		w.buf[w.bits/8] |= 0x80 >> (w.bits % 8)
	}
	w.bits++
}

// WriteBits appends the n low bits of v, most significant first.
func (w *Writer) WriteBits(v uint64, n int) (int, error) {
	if n < 0 || n > 64 {
		return 0, fmt.Errorf("%w: bit width %d", ErrValueOutOfRange, n)
	}
	if n < 64 && v>>uint(n) != 0 {
		return 0, fmt.Errorf("%w: %d does not fit in %d bits", ErrValueOutOfRange, v, n)
	}
	w.writeBits(v, n)
	return n, nil
}

func (w *Writer) writeBits(v uint64, n int) {
	for n > 0 {
		free := 8 - int(w.bits%8)
		if free == 8 {
			w.buf = append(w.buf, 0)
		}
		take := free
		if n < take {
			take = n
		}
		chunk := byte((v >> uint(n-take)) & (uint64(1)<<uint(take) - 1))
		w.buf[w.bits/8] |= chunk << uint(free-take)
		w.bits += uint64(take)
		n -= take
	}
}

// writeZeros appends n zero bits without touching them one at a time.
func (w *Writer) writeZeros(n uint64) {
	w.bits += n
	need := int((w.bits + 7) / 8)
	for len(w.buf) < need {
		w.buf = append(w.buf, 0)
	}
}

// WriteUnary writes v as v zeros followed by a one.
func (w *Writer) WriteUnary(v uint64) (int, error) {
	if v > MaxValue {
		return 0, fmt.Errorf("%w: unary %d", ErrValueOutOfRange, v)
	}
	w.writeZeros(v)
	w.WriteBit(1)
	return int(v) + 1, nil
}

// WriteGamma writes v with the Elias gamma code of v+1.
func (w *Writer) WriteGamma(v uint64) (int, error) {
	if v > MaxValue {
		return 0, fmt.Errorf("%w: gamma %d", ErrValueOutOfRange, v)
	}
	x := v + 1
	n := bits.Len64(x) - 1
	w.writeZeros(uint64(n))
	w.WriteBit(1)
	w.writeBits(x, n)
	return 2*n + 1, nil
}

// WriteDelta writes v with the Elias delta code of v+1.
func (w *Writer) WriteDelta(v uint64) (int, error) {
	if v > MaxValue {
		return 0, fmt.Errorf("%w: delta %d", ErrValueOutOfRange, v)
	}
	x := v + 1
	n := bits.Len64(x) - 1
	written, err := w.WriteGamma(uint64(n))
	if err != nil {
		return written, err
	}
	w.writeBits(x, n)
	return written + n, nil
}

// WriteMinimalBinary writes v, which must be smaller than b, using the
// truncated binary code for the interval [0, b).
func (w *Writer) WriteMinimalBinary(v, b uint64) (int, error) {
	if b == 0 || v >= b {
		return 0, fmt.Errorf("%w: minimal binary %d in [0,%d)", ErrValueOutOfRange, v, b)
	}
	log2b := bits.Len64(b) - 1
	m := uint64(1)<<uint(log2b+1) - b
	if v < m {
		w.writeBits(v, log2b)
		return log2b, nil
	}
	w.writeBits(v+m, log2b+1)
	return log2b + 1, nil
}

// WriteZeta writes v with the zeta_k code of v+1.
func (w *Writer) WriteZeta(v uint64, k uint) (int, error) {
	if k == 0 {
		return 0, fmt.Errorf("%w: zeta shrinking factor must be positive", ErrValueOutOfRange)
	}
	if v > MaxValue {
		return 0, fmt.Errorf("%w: zeta %d", ErrValueOutOfRange, v)
	}
	x := v + 1
	h := uint(bits.Len64(x)-1) / k
	left := uint64(1) << (h * k)
	written, err := w.WriteUnary(uint64(h))
	if err != nil {
		return written, err
	}
	n, err := w.WriteMinimalBinary(x-left, left<<k-left)
	return written + n, err
}

// WriteCode writes v using code c.
func (w *Writer) WriteCode(c Code, v uint64) (int, error) {
	switch c.Kind {
	case Unary:
		return w.WriteUnary(v)
	case Gamma:
		return w.WriteGamma(v)
	case Delta:
		return w.WriteDelta(v)
	case Zeta:
		return w.WriteZeta(v, c.Param)
	case Fixed:
		return w.WriteBits(v, int(c.Param))
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownCode, c.Kind)
}

// Append concatenates the bits of other onto w. Bit offsets recorded against
// other shift by the length w had before the call.
func (w *Writer) Append(other *Writer) {
	if w.bits%8 == 0 {
		w.buf = append(w.buf[:w.bits/8], other.buf...)
		w.bits += other.bits
		return
	}
	full := other.bits / 8
	for i := uint64(0); i < full; i++ {
		w.writeBits(uint64(other.buf[i]), 8)
	}
	if rem := int(other.bits % 8); rem > 0 {
		w.writeBits(uint64(other.buf[full]>>uint(8-rem)), rem)
	}
}
