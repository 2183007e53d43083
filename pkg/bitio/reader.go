package bitio

import (
	"fmt"
	"math/bits"
)

// Reader decodes codes from a fixed bit slice. It never reads past sizeBits,
// even when data carries padding.
type Reader struct {
	data []byte
	size uint64
	pos  uint64
}

// NewReader returns a reader over the first sizeBits bits of data.
func NewReader(data []byte, sizeBits uint64) *Reader {
	if max := uint64(len(data)) * 8; sizeBits > max {
		sizeBits = max
	}
	return &Reader{data: data, size: sizeBits}
}

// Position returns the offset of the next bit to be read.
func (r *Reader) Position() uint64 { return r.pos }

// Size returns the number of readable bits.
func (r *Reader) Size() uint64 { return r.size }

// Seek moves the read position to an absolute bit offset.
func (r *Reader) Seek(pos uint64) error {
	if pos > r.size {
		return malformed(pos, "", fmt.Sprintf("seek beyond end of stream (%d bits)", r.size))
	}
	r.pos = pos
	return nil
}

// ReadBit reads one bit.
func (r *Reader) ReadBit() (uint, error) {
	if r.pos >= r.size {
		return 0, malformed(r.pos, "", "unexpected end of stream")
	}
	bit := uint(r.data[r.pos/8]>>(7-r.pos%8)) & 1
	r.pos++
	return bit, nil
}

// ReadBits reads n bits as an unsigned integer, most significant first.
func (r *Reader) ReadBits(n int) (uint64, error) {
	if n < 0 || n > 64 {
		return 0, fmt.Errorf("%w: bit width %d", ErrValueOutOfRange, n)
	}
	if r.size-r.pos < uint64(n) {
		return 0, malformed(r.pos, "", fmt.Sprintf("need %d bits, %d left", n, r.size-r.pos))
	}
	var v uint64
	for n > 0 {
		off := int(r.pos % 8)
		avail := 8 - off
		take := avail
		if n < take {
			take = n
		}
		b := uint64(r.data[r.pos/8]>>uint(avail-take)) & (uint64(1)<<uint(take) - 1)
		v = v<<uint(take) | b
		r.pos += uint64(take)
		n -= take
	}
	return v, nil
}

// ReadUnary counts zeros up to the terminating one.
func (r *Reader) ReadUnary() (uint64, error) {
	start := r.pos
	var n uint64
	for {
		if r.pos >= r.size {
			return 0, malformed(start, Unary.String(), "unterminated unary code")
		}
		// whole zero bytes at byte boundaries
		if r.pos%8 == 0 && r.size-r.pos >= 8 && r.data[r.pos/8] == 0 {
			r.pos += 8
			n += 8
			continue
		}
		bit := r.data[r.pos/8] >> (7 - r.pos%8) & 1
		r.pos++
		if bit == 1 {
			break
		}
		n++
	}
	if n > MaxValue {
		return 0, malformed(start, Unary.String(), "value exceeds maximum")
	}
	return n, nil
}

func (r *Reader) readGammaCode(name string) (uint64, error) {
	start := r.pos
	n, err := r.ReadUnary()
	if err != nil {
		return 0, relabel(err, start, name)
	}
	if n > 63 {
		return 0, malformed(start, name, fmt.Sprintf("length prefix %d too large", n))
	}
	low, err := r.ReadBits(int(n))
	if err != nil {
		return 0, relabel(err, start, name)
	}
	x := uint64(1)<<n | low
	if x-1 > MaxValue {
		return 0, malformed(start, name, "value exceeds maximum")
	}
	return x - 1, nil
}

// ReadGamma reads an Elias gamma code and returns x-1.
func (r *Reader) ReadGamma() (uint64, error) {
	return r.readGammaCode(Gamma.String())
}

// ReadDelta reads an Elias delta code and returns x-1.
func (r *Reader) ReadDelta() (uint64, error) {
	start := r.pos
	n, err := r.readGammaCode(Delta.String())
	if err != nil {
		return 0, err
	}
	if n > 63 {
		return 0, malformed(start, Delta.String(), fmt.Sprintf("length prefix %d too large", n))
	}
	low, err := r.ReadBits(int(n))
	if err != nil {
		return 0, relabel(err, start, Delta.String())
	}
	x := uint64(1)<<n | low
	if x-1 > MaxValue {
		return 0, malformed(start, Delta.String(), "value exceeds maximum")
	}
	return x - 1, nil
}

// ReadMinimalBinary reads a value in [0, b) written by WriteMinimalBinary.
func (r *Reader) ReadMinimalBinary(b uint64) (uint64, error) {
	if b == 0 {
		return 0, fmt.Errorf("%w: minimal binary bound 0", ErrValueOutOfRange)
	}
	log2b := bits.Len64(b) - 1
	m := uint64(1)<<uint(log2b+1) - b
	x, err := r.ReadBits(log2b)
	if err != nil {
		return 0, err
	}
	if x < m {
		return x, nil
	}
	bit, err := r.ReadBit()
	if err != nil {
		return 0, err
	}
	return (x<<1 | uint64(bit)) - m, nil
}

// ReadZeta reads a zeta_k code and returns x-1.
func (r *Reader) ReadZeta(k uint) (uint64, error) {
	if k == 0 {
		return 0, fmt.Errorf("%w: zeta shrinking factor must be positive", ErrValueOutOfRange)
	}
	name := Code{Kind: Zeta, Param: k}.String()
	start := r.pos
	h, err := r.ReadUnary()
	if err != nil {
		return 0, relabel(err, start, name)
	}
	if (h+1)*uint64(k) >= 64 {
		return 0, malformed(start, name, fmt.Sprintf("prefix %d too large", h))
	}
	left := uint64(1) << (uint(h) * k)
	v, err := r.ReadMinimalBinary(left<<k - left)
	if err != nil {
		return 0, relabel(err, start, name)
	}
	x := v + left
	if x-1 > MaxValue {
		return 0, malformed(start, name, "value exceeds maximum")
	}
	return x - 1, nil
}

// ReadCode reads one value encoded with c.
func (r *Reader) ReadCode(c Code) (uint64, error) {
	switch c.Kind {
	case Unary:
		return r.ReadUnary()
	case Gamma:
		return r.ReadGamma()
	case Delta:
		return r.ReadDelta()
	case Zeta:
		return r.ReadZeta(c.Param)
	case Fixed:
		return r.ReadBits(int(c.Param))
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownCode, c.Kind)
}

// relabel rewrites a low-level malformed error so it names the code being read.
func relabel(err error, start uint64, code string) error {
	if m, ok := err.(*MalformedStreamError); ok {
		return &MalformedStreamError{Offset: start, Code: code, Reason: m.Reason}
	}
	return err
}
