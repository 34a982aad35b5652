package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/carlo-ubqty/araw-sub000/modules/ccet/infrastructure/persistence"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|status]",
		Short:     "Apply or inspect the database schema migrations",
		Args:      rangeArgs(0, 1),
		ValidArgs: []string{"up", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}
			return runMigrate(cmd.Context(), a, action)
		},
	}
}

type migrateReport struct {
	Action   string                        `json:"action"`
	Dialect  persistence.Dialect           `json:"dialect"`
	Applied  []int64                       `json:"applied,omitempty"`
	Statuses []persistence.MigrationStatus `json:"statuses,omitempty"`
}

func runMigrate(ctx context.Context, a *app, action string) error {
	if action != "up" && action != "status" {
		return withCode(exitUsage, errors.Errorf("unknown migrate action %q (expected up|status)", action))
	}
	db, err := a.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.close()

	report := migrateReport{Action: action, Dialect: db.dialect}
	switch action {
	case "up":
		if report.Applied, err = a.migrateUp(ctx, db); err != nil {
			return err
		}
	case "status":
		if report.Statuses, err = persistence.MigrationsStatus(ctx, db.conn, db.dialect); err != nil {
			return withCode(exitDB, err)
		}
	}

	if a.opts.format == "json" {
		return writeJSONLine(a.out, report)
	}
	return renderMigrate(a.out, report)
}

func renderMigrate(w io.Writer, r migrateReport) error {
	var err error
	switch r.Action {
	case "up":
		if len(r.Applied) == 0 {
			_, err = fmt.Fprintf(w, "%s schema is up to date\n", r.Dialect)
		} else {
			_, err = fmt.Fprintf(w, "%s: applied migrations %v\n", r.Dialect, r.Applied)
		}
	default:
		for _, s := range r.Statuses {
			state := "pending"
			if s.Applied {
				state = "applied " + s.AppliedAt.Format("2006-01-02 15:04:05")
			}
			if _, err = fmt.Fprintf(w, "%05d  %-28s %s\n", s.Version, s.Path, state); err != nil {
				break
			}
		}
	}
	return errors.Wrap(err, "write migrate summary")
}
