package store

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/magiconair/properties"
	"lukechampine.com/blake3"

	"github.com/gilchrisn/graph-codec-bench/pkg/bitio"
	"github.com/gilchrisn/graph-codec-bench/pkg/codec"
)

// FormatVersion tags every header. Readers reject any other value.
const FormatVersion = "bvgraph-go/1"

const (
	GraphExtension      = ".graph"
	OffsetsExtension    = ".offsets"
	PropertiesExtension = ".properties"
)

const (
	keyFormatVersion     = "formatversion"
	keyNodes             = "nodes"
	keyArcs              = "arcs"
	keyWindowSize        = "windowsize"
	keyMaxRefCount       = "maxrefcount"
	keyMinIntervalLength = "minintervallength"
	keyZetaK             = "zetak"
	keyFixedWidth        = "fixedwidth"
	keyCompressionFlags  = "compressionflags"
	keyPartitions        = "partitions"
	keyGraphBits         = "graphbits"
	keyGraphChecksum     = "graphchecksum"
	keyOffsetsChecksum   = "offsetschecksum"
	keyStoreID           = "storeid"
	keyGenerator         = "generator"
)

// Header is the self-describing metadata persisted in <basename>.properties.
type Header struct {
	FormatVersion   string
	Nodes           int
	Arcs            int64
	Params          codec.Parameters
	Partitions      int
	GraphBits       uint64
	GraphChecksum   string
	OffsetsChecksum string
	StoreID         string
	Generator       string
}

// Marshal renders the header as key = value lines.
func (h Header) Marshal() ([]byte, error) {
	p := properties.NewProperties()
	p.DisableExpansion = true
	entries := []struct{ key, value string }{
		{keyFormatVersion, h.FormatVersion},
		{keyNodes, strconv.Itoa(h.Nodes)},
		{keyArcs, strconv.FormatInt(h.Arcs, 10)},
		{keyWindowSize, strconv.Itoa(h.Params.WindowSize)},
		{keyMaxRefCount, strconv.Itoa(h.Params.MaxRefCount)},
		{keyMinIntervalLength, strconv.Itoa(h.Params.MinIntervalSize)},
		{keyZetaK, strconv.Itoa(h.Params.ZetaK)},
		{keyFixedWidth, strconv.Itoa(h.Params.FixedWidth)},
		{keyCompressionFlags, h.Params.Codes.CompressionFlags()},
		{keyPartitions, strconv.Itoa(h.Partitions)},
		{keyGraphBits, strconv.FormatUint(h.GraphBits, 10)},
		{keyGraphChecksum, h.GraphChecksum},
		{keyOffsetsChecksum, h.OffsetsChecksum},
		{keyStoreID, h.StoreID},
		{keyGenerator, h.Generator},
	}
	for _, e := range entries {
		if _, _, err := p.Set(e.key, e.value); err != nil {
			return nil, fmt.Errorf("setting %s: %w", e.key, err)
		}
	}

	var buf bytes.Buffer
	buf.WriteString("# BV graph store header\n")
	if _, err := p.Write(&buf, properties.UTF8); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseHeader reads a header written by Marshal. Unknown keys are ignored;
// missing or malformed ones are errors, as is a different format version.
func ParseHeader(data []byte) (Header, error) {
	loader := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := loader.LoadBytes(data)
	if err != nil {
		return Header{}, fmt.Errorf("parsing properties: %w", err)
	}

	var h Header
	h.FormatVersion, err = requireString(p, keyFormatVersion)
	if err != nil {
		return h, err
	}
	if h.FormatVersion != FormatVersion {
		return h, fmt.Errorf("unsupported format version %q (want %q)", h.FormatVersion, FormatVersion)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{keyNodes, &h.Nodes},
		{keyWindowSize, &h.Params.WindowSize},
		{keyMaxRefCount, &h.Params.MaxRefCount},
		{keyMinIntervalLength, &h.Params.MinIntervalSize},
		{keyZetaK, &h.Params.ZetaK},
		{keyFixedWidth, &h.Params.FixedWidth},
		{keyPartitions, &h.Partitions},
	}
	for _, f := range ints {
		s, err := requireString(p, f.key)
		if err != nil {
			return h, err
		}
		if *f.dst, err = strconv.Atoi(s); err != nil {
			return h, fmt.Errorf("key %s: %w", f.key, err)
		}
	}
	if h.Nodes < 0 {
		return h, fmt.Errorf("key %s: negative node count", keyNodes)
	}

	s, err := requireString(p, keyArcs)
	if err != nil {
		return h, err
	}
	if h.Arcs, err = strconv.ParseInt(s, 10, 64); err != nil {
		return h, fmt.Errorf("key %s: %w", keyArcs, err)
	}
	if s, err = requireString(p, keyGraphBits); err != nil {
		return h, err
	}
	if h.GraphBits, err = strconv.ParseUint(s, 10, 64); err != nil {
		return h, fmt.Errorf("key %s: %w", keyGraphBits, err)
	}

	flags, err := requireString(p, keyCompressionFlags)
	if err != nil {
		return h, err
	}
	if h.Params.Codes, err = codec.ParseCompressionFlags(flags, codec.DefaultCodes()); err != nil {
		return h, err
	}
	if err := h.Params.Validate(); err != nil {
		return h, err
	}

	if h.GraphChecksum, err = requireString(p, keyGraphChecksum); err != nil {
		return h, err
	}
	if h.OffsetsChecksum, err = requireString(p, keyOffsetsChecksum); err != nil {
		return h, err
	}
	h.StoreID, _ = p.Get(keyStoreID)
	h.Generator, _ = p.Get(keyGenerator)
	return h, nil
}

func requireString(p *properties.Properties, key string) (string, error) {
	v, ok := p.Get(key)
	if !ok {
		return "", fmt.Errorf("missing key %s", key)
	}
	return v, nil
}

// checksum is the hex BLAKE3-256 digest of data.
func checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// encodeOffsets writes the first offset and then the gaps between
// consecutive offsets as gamma codes.
func encodeOffsets(offsets []uint64) ([]byte, error) {
	w := bitio.NewWriter(uint64(len(offsets)) * 8)
	var prev uint64
	for i, off := range offsets {
		if off < prev {
			return nil, fmt.Errorf("offset %d decreases (%d < %d)", i, off, prev)
		}
		if _, err := w.WriteGamma(off - prev); err != nil {
			return nil, fmt.Errorf("offset %d: %w", i, err)
		}
		prev = off
	}
	return w.Bytes(), nil
}

// decodeOffsets reads count offsets written by encodeOffsets.
func decodeOffsets(data []byte, count int) ([]uint64, error) {
	r := bitio.NewReader(data, uint64(len(data))*8)
	offsets := make([]uint64, count)
	var prev uint64
	for i := range offsets {
		gap, err := r.ReadGamma()
		if err != nil {
			return nil, fmt.Errorf("offset %d: %w", i, err)
		}
		prev += gap
		offsets[i] = prev
	}
	if rest := r.Size() - r.Position(); rest >= 8 {
		return nil, fmt.Errorf("%d trailing bits after %d offsets", rest, count)
	}
	return offsets, nil
}
