// Package parser imports and exports graphs as plain edge lists: whitespace
// separated text or little-endian uint32 pairs, optionally zstd-compressed.
package parser

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/gilchrisn/graph-codec-bench/pkg/graph"
)

var (
	ErrUnknownFormat     = errors.New("unknown edge list format")
	ErrMalformedEdgeList = errors.New("malformed edge list")
)

// Format identifies an edge list encoding.
type Format int

const (
	FormatText Format = iota
	FormatBinary
)

const zstdSuffix = ".zst"

// maxNodeID keeps binary and text inputs to the same ID range.
const maxNodeID = math.MaxUint32 - 1

// DetectFormat derives the format from the file name. A trailing .zst marks
// the content as zstd-compressed.
func DetectFormat(path string) (Format, bool, error) {
	name := strings.ToLower(filepath.Base(path))
	compressed := strings.HasSuffix(name, zstdSuffix)
	name = strings.TrimSuffix(name, zstdSuffix)

	switch filepath.Ext(name) {
	case ".tsv", ".txt", ".edgelist", ".edges":
		return FormatText, compressed, nil
	case ".bin":
		return FormatBinary, compressed, nil
	}
	return 0, false, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// ReadEdgeList loads a graph from path. The node count is the largest ID plus
// one; successor lists come back sorted and without duplicates.
func ReadEdgeList(path string) (*graph.Graph, error) {
	format, compressed, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var r io.Reader = file
	if compressed {
		decoder, err := zstd.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer decoder.Close()
		r = decoder
	}

	g, err := Decode(r, format)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return g, nil
}

// Decode reads an edge list in the given format.
func Decode(r io.Reader, format Format) (*graph.Graph, error) {
	var (
		edges [][2]int
		err   error
	)
	switch format {
	case FormatText:
		edges, err = decodeText(r)
	case FormatBinary:
		edges, err = decodeBinary(r)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, err
	}
	return buildGraph(edges), nil
}

func decodeText(r io.Reader) ([][2]int, error) {
	var edges [][2]int
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "%") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: line %d: expected two node IDs", ErrMalformedEdgeList, lineNo)
		}
		from, err := parseNodeID(parts[0])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedEdgeList, lineNo, err)
		}
		to, err := parseNodeID(parts[1])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedEdgeList, lineNo, err)
		}
		edges = append(edges, [2]int{from, to})
	}

	return edges, scanner.Err()
}

func parseNodeID(s string) (int, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid node ID %q", s)
	}
	if id > maxNodeID {
		return 0, fmt.Errorf("node ID %d too large", id)
	}
	return int(id), nil
}

func decodeBinary(r io.Reader) ([][2]int, error) {
	var edges [][2]int
	br := bufio.NewReader(r)
	var pair [8]byte
	for i := 0; ; i++ {
		_, err := io.ReadFull(br, pair[:])
		if errors.Is(err, io.EOF) {
			return edges, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: truncated pair %d", ErrMalformedEdgeList, i)
		}
		if err != nil {
			return nil, err
		}
		from := binary.LittleEndian.Uint32(pair[0:4])
		to := binary.LittleEndian.Uint32(pair[4:8])
		if from > maxNodeID || to > maxNodeID {
			return nil, fmt.Errorf("%w: pair %d: node ID too large", ErrMalformedEdgeList, i)
		}
		edges = append(edges, [2]int{int(from), int(to)})
	}
}

func buildGraph(edges [][2]int) *graph.Graph {
	n := 0
	for _, e := range edges {
		n = max(n, e[0]+1, e[1]+1)
	}

	outdegree := make([]int, n)
	for _, e := range edges {
		outdegree[e[0]]++
	}
	g := graph.NewGraph(n)
	for u, d := range outdegree {
		if d > 0 {
			g.Successors[u] = make([]int, 0, d)
		}
	}
	for _, e := range edges {
		g.Successors[e[0]] = append(g.Successors[e[0]], e[1])
	}
	g.Normalize()
	return g
}

// WriteEdgeList saves g to path in the format implied by its extension.
func WriteEdgeList(g *graph.Graph, path string) (err error) {
	format, compressed, err := DetectFormat(path)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	var w io.Writer = file
	var encoder *zstd.Encoder
	if compressed {
		encoder, err = zstd.NewWriter(file)
		if err != nil {
			return fmt.Errorf("creating zstd encoder: %w", err)
		}
		w = encoder
	}

	if err := Encode(w, g, format); err != nil {
		if encoder != nil {
			encoder.Close()
		}
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if encoder != nil {
		if err := encoder.Close(); err != nil {
			return fmt.Errorf("finishing zstd stream: %w", err)
		}
	}
	return nil
}

// Encode writes every arc of g to w, in node order.
func Encode(w io.Writer, g *graph.Graph, format Format) error {
	bw := bufio.NewWriter(w)
	var pair [8]byte
	for u, succ := range g.Successors {
		for _, v := range succ {
			var err error
			switch format {
			case FormatText:
				_, err = fmt.Fprintf(bw, "%d\t%d\n", u, v)
			case FormatBinary:
				binary.LittleEndian.PutUint32(pair[0:4], uint32(u))
				binary.LittleEndian.PutUint32(pair[4:8], uint32(v))
				_, err = bw.Write(pair[:])
			default:
				return fmt.Errorf("%w: %d", ErrUnknownFormat, format)
			}
			if err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}
