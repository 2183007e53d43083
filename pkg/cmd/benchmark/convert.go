package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gilchrisn/graph-codec-bench/pkg/parser"
	"github.com/gilchrisn/graph-codec-bench/pkg/store"
)

func newConvertCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "convert <basename> <edge-list-path>",
		Short: "Export a store as an edge list",
		Long: `Writes every arc of a store to an edge list. The extension selects the
format: .tsv, .txt, .edgelist or .edges for text, .bin for little-endian uint32
pairs. A trailing .zst compresses the output.`,
		Args: positional("basename", "edge list path"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConvert(args[0], args[1])
		},
	}
}

func (a *app) runConvert(basename, path string) error {
	if _, _, err := parser.DetectFormat(path); err != nil {
		return &ArgumentError{Msg: err.Error()}
	}

	s, err := store.Open(basename)
	if err != nil {
		return err
	}
	g, err := s.Graph()
	if err != nil {
		return fmt.Errorf("decoding %s: %w", basename, err)
	}
	if err := parser.WriteEdgeList(g, path); err != nil {
		return err
	}

	a.logger.Info().
		Str("basename", basename).
		Str("output", path).
		Int64("arcs", g.NumArcs()).
		Msg("Edge list written")
	return nil
}
