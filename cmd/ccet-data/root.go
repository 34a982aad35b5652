package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ccet-data",
		Short:         "Parse CCET budget workbooks and load them into the climate budget database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withCode(exitUsage, err)
	})

	f := cmd.PersistentFlags()
	f.StringVar(&a.opts.sheets, "sheets", "", "Sheet table file, YAML or TOML (default: CCET_SHEETS_CONFIG or built-in table)")
	f.StringVar(&a.opts.format, "format", "text", "Summary format: text|json")
	f.IntVar(&a.opts.errors, "errors", 0, "Print the first N import errors (default: ERROR_SAMPLE)")
	f.IntVar(&a.opts.sample, "sample", 0, "Print the first N parsed records (default: RECORD_SAMPLE)")

	cmd.AddCommand(newParseCmd(a))
	cmd.AddCommand(newImportCmd(a))
	cmd.AddCommand(newRunCmd(a))
	cmd.AddCommand(newMigrateCmd(a))
	cmd.AddCommand(newSnapshotCmd(a))
	return cmd
}

// execute runs one command line and releases what setup acquired.
func execute(ctx context.Context, a *app, args []string, out io.Writer) error {
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(out)
	defer a.close()
	return cmd.ExecuteContext(ctx)
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := execute(ctx, &app{}, os.Args[1:], os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(exitCode(err))
	}
}

// exactArgs is cobra.ExactArgs with a usage exit code.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return withCode(exitUsage, cobra.ExactArgs(n)(cmd, args))
	}
}

func rangeArgs(minArgs, maxArgs int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return withCode(exitUsage, cobra.RangeArgs(minArgs, maxArgs)(cmd, args))
	}
}
