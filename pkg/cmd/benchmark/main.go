// Package main provides the benchmark CLI: it times encoding and decoding of
// compressed graph stores.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gilchrisn/graph-codec-bench/pkg/config"
)

// ArgumentError reports bad command line input. No work has been done when
// one is returned.
type ArgumentError struct {
	Msg string
}

func (e *ArgumentError) Error() string { return e.Msg }

func argumentErrorf(format string, args ...interface{}) error {
	return &ArgumentError{Msg: fmt.Sprintf(format, args...)}
}

// app holds state shared by the subcommands of one invocation.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "benchmark",
		Short: "Benchmark graph compression",
		Long: `Encodes graphs into compressed stores and times encoding and decoding.

Timed commands print the elapsed nanoseconds as a single line on stdout.
Logs go to stderr.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return argumentErrorf("unknown command %q", args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return argumentErrorf("missing command")
		},
		PersistentPreRunE: a.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Configuration file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &ArgumentError{Msg: err.Error()}
	})

	root.AddCommand(
		newEncodeCmd(a),
		newDecodeCmd(a),
		newRecodeCmd(a),
		newConvertCmd(a),
		newStatsCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	a.cfg = config.NewConfig()
	if a.configPath != "" {
		if err := a.cfg.LoadFromFile(a.configPath); err != nil {
			return &ArgumentError{Msg: err.Error()}
		}
	}
	if cmd.Flags().Changed("log-level") {
		a.cfg.Set("logging.level", a.logLevel)
	}
	a.cfg.SetLogOutput(cmd.ErrOrStderr())
	a.logger = a.cfg.CreateLogger()
	return nil
}

// positional checks that exactly the named arguments are present.
func positional(names ...string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < len(names) {
			return argumentErrorf("missing %s", names[len(args)])
		}
		if len(args) > len(names) {
			return argumentErrorf("unexpected argument %q", args[len(names)])
		}
		return nil
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	if args == nil {
		// cobra falls back to os.Args on nil
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}

	fmt.Fprintln(stderr, "Error:", err)
	var argErr *ArgumentError
	if errors.As(err, &argErr) {
		fmt.Fprint(stderr, cmd.UsageString())
	}
	return 1
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
