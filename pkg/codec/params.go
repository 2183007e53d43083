// Package codec turns successor lists into BV-style node records: copy
// blocks against a nearby reference list, intervals of consecutive IDs and
// gap-coded residuals.
package codec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gilchrisn/graph-codec-bench/pkg/bitio"
)

var ErrInvalidParameters = errors.New("invalid compression parameters")

const (
	DefaultWindowSize      = 7
	DefaultMaxRefCount     = 3
	DefaultMinIntervalSize = 2
	DefaultZetaK           = 3
	DefaultFixedWidth      = 32

	// MaxWindowSize bounds WindowSize. The decoder never keeps more lists
	// than there are nodes, whatever the window.
	MaxWindowSize = 1 << 30
)

// Codes selects the instantaneous code used for each record field.
type Codes struct {
	Outdegree  bitio.Kind
	Reference  bitio.Kind
	BlockCount bitio.Kind
	Blocks     bitio.Kind
	Intervals  bitio.Kind
	Residuals  bitio.Kind
}

// Parameters are fixed for one encode pass and persisted with the store.
type Parameters struct {
	WindowSize      int
	MaxRefCount     int
	MinIntervalSize int // 0 disables interval extraction
	ZetaK           int
	FixedWidth      int
	Codes           Codes
}

func DefaultCodes() Codes {
	return Codes{
		Outdegree:  bitio.Delta,
		Reference:  bitio.Unary,
		BlockCount: bitio.Gamma,
		Blocks:     bitio.Gamma,
		Intervals:  bitio.Gamma,
		Residuals:  bitio.Zeta,
	}
}

func DefaultParameters() Parameters {
	return Parameters{
		WindowSize:      DefaultWindowSize,
		MaxRefCount:     DefaultMaxRefCount,
		MinIntervalSize: DefaultMinIntervalSize,
		ZetaK:           DefaultZetaK,
		FixedWidth:      DefaultFixedWidth,
		Codes:           DefaultCodes(),
	}
}

// Validate checks parameter ranges
func (p Parameters) Validate() error {
	if p.WindowSize < 0 || p.WindowSize > MaxWindowSize {
		return fmt.Errorf("%w: window size must be in 0..%d, got %d", ErrInvalidParameters, MaxWindowSize, p.WindowSize)
	}
	if p.MaxRefCount < 0 {
		return fmt.Errorf("%w: max ref count %d is negative", ErrInvalidParameters, p.MaxRefCount)
	}
	if p.MinIntervalSize < 0 {
		return fmt.Errorf("%w: min interval size %d is negative", ErrInvalidParameters, p.MinIntervalSize)
	}
	if p.ZetaK < 1 || p.ZetaK > 7 {
		return fmt.Errorf("%w: zeta k must be in 1..7, got %d", ErrInvalidParameters, p.ZetaK)
	}
	if p.FixedWidth < 1 || p.FixedWidth > 63 {
		return fmt.Errorf("%w: fixed width must be in 1..63, got %d", ErrInvalidParameters, p.FixedWidth)
	}
	for _, f := range p.Codes.fields() {
		if _, ok := validKinds[*f.kind]; !ok {
			return fmt.Errorf("%w: unknown code %d for %s", ErrInvalidParameters, int(*f.kind), f.flag)
		}
	}
	return nil
}

var validKinds = map[bitio.Kind]struct{}{
	bitio.Unary: {}, bitio.Gamma: {}, bitio.Delta: {}, bitio.Zeta: {}, bitio.Fixed: {},
}

// Code resolves a kind to a concrete code, filling in zeta k or the fixed width.
func (p Parameters) Code(k bitio.Kind) bitio.Code {
	switch k {
	case bitio.Zeta:
		return bitio.Code{Kind: k, Param: uint(p.ZetaK)}
	case bitio.Fixed:
		return bitio.Code{Kind: k, Param: uint(p.FixedWidth)}
	}
	return bitio.Code{Kind: k}
}

type codeField struct {
	flag string
	kind *bitio.Kind
}

func (c *Codes) fields() []codeField {
	return []codeField{
		{"OUTDEGREES", &c.Outdegree},
		{"REFERENCES", &c.Reference},
		{"BLOCK_COUNT", &c.BlockCount},
		{"BLOCKS", &c.Blocks},
		{"INTERVALS", &c.Intervals},
		{"RESIDUALS", &c.Residuals},
	}
}

// CompressionFlags renders the code selection as FIELD_CODE terms joined by '|',
// e.g. "OUTDEGREES_DELTA|REFERENCES_UNARY|...".
func (c Codes) CompressionFlags() string {
	fields := c.fields()
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		terms = append(terms, f.flag+"_"+f.kind.String())
	}
	return strings.Join(terms, "|")
}

// ParseCompressionFlags applies FIELD_CODE terms to a copy of base. Fields not
// mentioned keep their value from base. An empty string yields base.
func ParseCompressionFlags(s string, base Codes) (Codes, error) {
	out := base
	fields := out.fields()
	for _, term := range strings.Split(s, "|") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		matched := false
		for _, f := range fields {
			rest, ok := strings.CutPrefix(term, f.flag+"_")
			if !ok {
				continue
			}
			kind, err := bitio.ParseKind(rest)
			if err != nil {
				return base, fmt.Errorf("%w: compression flag %q: %v", ErrInvalidParameters, term, err)
			}
			*f.kind = kind
			matched = true
			break
		}
		if !matched {
			return base, fmt.Errorf("%w: unknown compression flag %q", ErrInvalidParameters, term)
		}
	}
	return out, nil
}
