package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/carlo-ubqty/araw-sub000/modules/ccet/parser"
)

func newImportCmd(a *app) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "import <snapshot-key>",
		Short: "Import a stored snapshot into the database",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportSnapshot(cmd.Context(), a, args[0], migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply pending schema migrations first")
	return cmd
}

func runImportSnapshot(ctx context.Context, a *app, key string, migrate bool) error {
	table, err := a.sheetTable()
	if err != nil {
		return err
	}
	records, err := a.readSnapshot(ctx, key)
	if err != nil {
		return err
	}

	report := a.newReport(statusImported)
	report.SnapshotKey = key
	report.Parse = &parseReport{Summary: parser.Summarize(records)}
	report.Sample = firstN(records, a.opts.sample)
	if report.Import, err = a.importRecords(ctx, records, table, migrate); err != nil {
		return err
	}
	report.FinishedAt = timeNow()
	return a.emit(report)
}
