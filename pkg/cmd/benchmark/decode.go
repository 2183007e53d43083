package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gilchrisn/graph-codec-bench/pkg/store"
)

var ErrRecodeMismatch = errors.New("recoded graph differs from the original")

func newDecodeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <input-basename>",
		Short: "Open a store, decode every successor list and time it",
		Args:  positional("input basename"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDecode(cmd, args[0])
		},
	}
}

func (a *app) runDecode(cmd *cobra.Command, basename string) error {
	start := time.Now()
	s, err := store.Open(basename)
	if err != nil {
		return err
	}
	var arcs int64
	for ns, err := range s.Iterate() {
		if err != nil {
			return fmt.Errorf("decoding %s: %w", basename, err)
		}
		arcs += int64(len(ns.Successors))
	}
	elapsed := time.Since(start)

	a.logger.Info().
		Str("basename", basename).
		Int("nodes", s.NumNodes()).
		Int64("arcs", arcs).
		Dur("elapsed", elapsed).
		Msg("Decode completed")

	fmt.Fprintln(cmd.OutOrStdout(), elapsed.Nanoseconds())
	return nil
}

func newRecodeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recode <basename>",
		Short: "Decode a store, re-encode it in memory and check the result",
		Long: `Decodes a store, encodes the graph again in memory with the configured
parameters, decodes that copy and compares both graphs. Exits non-zero when
they differ.`,
		Args: positional("basename"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRecode(cmd, args[0])
		},
	}
}

func (a *app) runRecode(cmd *cobra.Command, basename string) error {
	params, err := a.cfg.Parameters()
	if err != nil {
		return &ArgumentError{Msg: err.Error()}
	}

	s, err := store.Open(basename)
	if err != nil {
		return err
	}
	original, err := s.Graph()
	if err != nil {
		return fmt.Errorf("decoding %s: %w", basename, err)
	}

	recoded, err := store.Encode(cmd.Context(), original, params, store.Options{
		Threads: a.cfg.Threads(),
		Logger:  a.logger,
	})
	if err != nil {
		return fmt.Errorf("re-encoding %s: %w", basename, err)
	}
	back, err := recoded.Graph()
	if err != nil {
		return fmt.Errorf("decoding re-encoded %s: %w", basename, err)
	}

	if !original.Equal(back) {
		return fmt.Errorf("%w: %s", ErrRecodeMismatch, basename)
	}

	a.logger.Info().
		Str("basename", basename).
		Uint64("stored_bits", s.Bits()).
		Uint64("recoded_bits", recoded.Bits()).
		Msg("Recode verified")
	fmt.Fprintf(cmd.OutOrStdout(), "equal\t%d\t%d\n", s.Bits(), recoded.Bits())
	return nil
}
