package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gilchrisn/graph-codec-bench/pkg/store"
)

func newStatsCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "stats <basename>",
		Short: "Print compression statistics of a store",
		Args:  positional("basename"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStats(cmd, args[0], format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml or json")
	return cmd
}

func (a *app) runStats(cmd *cobra.Command, basename, format string) error {
	if format != "yaml" && format != "json" {
		return argumentErrorf("unknown output format %q", format)
	}

	s, err := store.Open(basename)
	if err != nil {
		return err
	}
	st, err := store.ComputeStats(s)
	if err != nil {
		return fmt.Errorf("computing statistics for %s: %w", basename, err)
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(st); err != nil {
		return err
	}
	return enc.Close()
}
