package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newParseCmd(a *app) *cobra.Command {
	var snap snapshotFlags
	cmd := &cobra.Command{
		Use:   "parse <workbook>",
		Short: "Parse a workbook, write a snapshot and print the parse summary",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd.Context(), a, args[0], snap)
		},
	}
	bindSnapshotFlags(cmd, &snap)
	return cmd
}

func bindSnapshotFlags(cmd *cobra.Command, snap *snapshotFlags) {
	cmd.Flags().StringVar(&snap.key, "snapshot", "", "Snapshot key (default: snapshots/ccet_<timestamp>_<run id>.json)")
	cmd.Flags().BoolVar(&snap.skip, "no-snapshot", false, "Do not write a snapshot")
}

func runParse(ctx context.Context, a *app, path string, snap snapshotFlags) error {
	table, err := a.sheetTable()
	if err != nil {
		return err
	}
	res, err := a.parseWorkbook(ctx, path, table)
	if err != nil {
		return err
	}

	report := a.newReport(statusParsed)
	report.Parse = newParseReport(path, res)
	report.Sample = firstN(res.Records, a.opts.sample)
	if !snap.skip {
		if report.SnapshotKey, err = a.writeSnapshot(ctx, snap.key, res.Records); err != nil {
			return err
		}
	}
	report.FinishedAt = timeNow()
	return a.emit(report)
}
