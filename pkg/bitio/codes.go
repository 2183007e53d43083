package bitio

import (
	"fmt"
	"math/bits"
	"strings"
)

// Kind identifies an instantaneous integer code.
type Kind int

const (
	Unary Kind = iota
	Gamma
	Delta
	Zeta
	Fixed
)

var kindNames = map[Kind]string{
	Unary: "UNARY",
	Gamma: "GAMMA",
	Delta: "DELTA",
	Zeta:  "ZETA",
	Fixed: "FIXED",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind accepts the names produced by String, case-insensitively.
func ParseKind(s string) (Kind, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == upper {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCode, s)
}

// Code is a Kind plus its parameter: the shrinking factor k for Zeta, the bit
// width for Fixed. Other kinds ignore Param.
type Code struct {
	Kind  Kind
	Param uint
}

func (c Code) String() string {
	switch c.Kind {
	case Zeta, Fixed:
		return fmt.Sprintf("%s(%d)", c.Kind, c.Param)
	}
	return c.Kind.String()
}

// CodeLength returns the number of bits code c spends on v, or -1 when v
// cannot be represented.
func CodeLength(c Code, v uint64) int {
	if v > MaxValue {
		return -1
	}
	switch c.Kind {
	case Unary:
		return int(v) + 1
	case Gamma:
		return gammaLength(v)
	case Delta:
		n := bits.Len64(v+1) - 1
		return gammaLength(uint64(n)) + n
	case Zeta:
		if c.Param == 0 {
			return -1
		}
		return zetaLength(v, c.Param)
	case Fixed:
		if c.Param < 64 && v>>c.Param != 0 {
			return -1
		}
		return int(c.Param)
	}
	return -1
}

func gammaLength(v uint64) int {
	return 2*(bits.Len64(v+1)-1) + 1
}

func zetaLength(v uint64, k uint) int {
	x := v + 1
	h := uint(bits.Len64(x)-1) / k
	left := uint64(1) << (h * k)
	b := left<<k - left
	log2b := bits.Len64(b) - 1
	m := uint64(1)<<uint(log2b+1) - b
	n := int(h) + 1 + log2b
	if x-left >= m {
		n++
	}
	return n
}
