package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gilchrisn/graph-codec-bench/pkg/graph"
	"github.com/gilchrisn/graph-codec-bench/pkg/parser"
	"github.com/gilchrisn/graph-codec-bench/pkg/store"
)

const (
	inputAuto  = "auto"
	inputStore = "store"
	inputTSV   = "tsv"
	inputBin   = "bin"
)

// edgeListSuffixes lists the candidate extensions per input format, in the
// order they are tried.
var edgeListSuffixes = map[string][]string{
	inputTSV: {".tsv", ".tsv.zst", ".txt", ".txt.zst"},
	inputBin: {".bin", ".bin.zst"},
}

type encodeFlags struct {
	threads         int
	windowSize      int
	zetaK           int
	minIntervalSize int
	maxRefCount     int
	inputFormat     string
}

func newEncodeCmd(a *app) *cobra.Command {
	f := &encodeFlags{}
	cmd := &cobra.Command{
		Use:   "encode [flags] <input-basename> <output-basename>",
		Short: "Compress a graph into a store and time it",
		Long: `Compresses a graph and writes <output-basename>.graph, .offsets and .properties.

The input is an existing store (<input-basename>.properties) or an edge list
(<input-basename>.tsv, .txt or .bin, each optionally .zst compressed). With
--input-format auto a store is preferred, then the edge lists in that order.

Only the encode and write step is timed.`,
		Args: positional("input basename", "output basename"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEncode(cmd, f, args[0], args[1])
		},
	}

	cmd.Flags().IntVar(&f.threads, "threads", 1, "Number of partitions encoded in parallel")
	cmd.Flags().IntVar(&f.windowSize, "window-size", 0, "Reference window size (default from config)")
	cmd.Flags().IntVar(&f.zetaK, "zeta-k", 0, "Shrinking factor k of the residual zeta code (default from config)")
	cmd.Flags().IntVar(&f.minIntervalSize, "min-interval-size", 0, "Minimum interval length, 0 disables intervals (default from config)")
	cmd.Flags().IntVar(&f.maxRefCount, "max-ref-count", 0, "Maximum reference chain length (default from config)")
	cmd.Flags().StringVar(&f.inputFormat, "input-format", inputAuto, "Input format: auto, store, tsv or bin")
	return cmd
}

func (a *app) runEncode(cmd *cobra.Command, f *encodeFlags, input, output string) error {
	flags := cmd.Flags()
	overrides := []struct {
		flag  string
		key   string
		value int
	}{
		{"threads", "performance.threads", f.threads},
		{"window-size", "compression.window_size", f.windowSize},
		{"zeta-k", "compression.zeta_k", f.zetaK},
		{"min-interval-size", "compression.min_interval_size", f.minIntervalSize},
		{"max-ref-count", "compression.max_ref_count", f.maxRefCount},
	}
	for _, o := range overrides {
		if flags.Changed(o.flag) {
			a.cfg.Set(o.key, o.value)
		}
	}

	params, err := a.cfg.Parameters()
	if err != nil {
		return &ArgumentError{Msg: err.Error()}
	}
	threads := a.cfg.Threads()
	if threads < 1 {
		return argumentErrorf("threads must be positive, got %d", threads)
	}
	path, isStore, err := resolveInput(input, f.inputFormat)
	if err != nil {
		return err
	}

	g, err := loadGraph(path, isStore)
	if err != nil {
		return err
	}
	a.logger.Info().
		Str("input", path).
		Int("nodes", g.NumNodes).
		Int64("arcs", g.NumArcs()).
		Msg("Graph loaded")

	start := time.Now()
	if _, err := store.Write(cmd.Context(), output, g, params, store.Options{
		Threads: threads,
		Logger:  a.logger,
	}); err != nil {
		return fmt.Errorf("encoding %s: %w", input, err)
	}
	elapsed := time.Since(start)

	fmt.Fprintln(cmd.OutOrStdout(), elapsed.Nanoseconds())
	return nil
}

// resolveInput finds the file behind an input basename. It reports whether
// the result is a store basename rather than an edge list path.
func resolveInput(input, format string) (string, bool, error) {
	var candidates []string
	switch format {
	case inputAuto:
		if exists(input + store.PropertiesExtension) {
			return input, true, nil
		}
		candidates = append(append(candidates, edgeListSuffixes[inputTSV]...), edgeListSuffixes[inputBin]...)
	case inputStore:
		if exists(input + store.PropertiesExtension) {
			return input, true, nil
		}
		return "", false, argumentErrorf("no store found at %s", input)
	case inputTSV, inputBin:
		candidates = edgeListSuffixes[format]
	default:
		return "", false, argumentErrorf("unknown input format %q", format)
	}

	for _, suffix := range candidates {
		if exists(input + suffix) {
			return input + suffix, false, nil
		}
	}
	// the basename may already carry its extension
	if _, _, err := parser.DetectFormat(input); err == nil && exists(input) {
		return input, false, nil
	}
	return "", false, argumentErrorf("no %s input found for %s", format, input)
}

func loadGraph(path string, isStore bool) (*graph.Graph, error) {
	if !isStore {
		return parser.ReadEdgeList(path)
	}
	s, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	return s.Graph()
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
