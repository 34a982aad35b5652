package main

import (
	"context"

	"github.com/spf13/cobra"
)

type runOptions struct {
	snap    snapshotFlags
	dryRun  bool
	migrate bool
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run <workbook>",
		Short: "Parse a workbook and import it in one pass",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), a, args[0], opts)
		},
	}
	bindSnapshotFlags(cmd, &opts.snap)
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Parse only; do not touch the database")
	cmd.Flags().BoolVar(&opts.migrate, "migrate", false, "Apply pending schema migrations first")
	return cmd
}

func runPipeline(ctx context.Context, a *app, path string, opts runOptions) error {
	table, err := a.sheetTable()
	if err != nil {
		return err
	}
	res, err := a.parseWorkbook(ctx, path, table)
	if err != nil {
		return err
	}

	report := a.newReport(statusImported)
	report.Parse = newParseReport(path, res)
	report.Sample = firstN(res.Records, a.opts.sample)
	if !opts.snap.skip {
		if report.SnapshotKey, err = a.writeSnapshot(ctx, opts.snap.key, res.Records); err != nil {
			return err
		}
	}

	if opts.dryRun {
		report.Status = statusDryRun
	} else if report.Import, err = a.importRecords(ctx, res.Records, table, opts.migrate); err != nil {
		return err
	}
	report.FinishedAt = timeNow()
	return a.emit(report)
}
