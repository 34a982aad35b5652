package main

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/carlo-ubqty/araw-sub000/modules/ccet/infrastructure/persistence"
	"github.com/carlo-ubqty/araw-sub000/modules/ccet/parser"
	"github.com/carlo-ubqty/araw-sub000/modules/ccet/services"
	"github.com/carlo-ubqty/araw-sub000/pkg/blob"
	"github.com/carlo-ubqty/araw-sub000/pkg/configuration"
	"github.com/carlo-ubqty/araw-sub000/pkg/metrics"
)

type globalOptions struct {
	sheets string
	format string
	errors int
	sample int
}

// app carries what every subcommand shares for one invocation.
type app struct {
	opts globalOptions

	cfg       *configuration.Configuration
	log       *logrus.Entry
	metrics   *metrics.Recorder
	runID     uuid.UUID
	startedAt time.Time
	out       io.Writer
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := configuration.Load(configuration.DefaultEnvFiles)
	if err != nil {
		return withCode(exitUsage, err)
	}
	a.cfg = cfg
	a.runID = uuid.New()
	a.startedAt = timeNow()
	a.log = cfg.Logger().WithField("run_id", a.runID.String())
	a.metrics = metrics.New()
	a.out = cmd.OutOrStdout()

	flags := cmd.Flags()
	if !flags.Changed("sheets") {
		a.opts.sheets = cfg.Import.SheetsConfig
	}
	if !flags.Changed("errors") {
		a.opts.errors = cfg.Import.ErrorSample
	}
	if !flags.Changed("sample") {
		a.opts.sample = cfg.Import.RecordSample
	}
	a.opts.format = strings.ToLower(strings.TrimSpace(a.opts.format))
	switch {
	case a.opts.format != "text" && a.opts.format != "json":
		return withCode(exitUsage, errors.Errorf("invalid --format %q (expected text|json)", a.opts.format))
	case a.opts.errors < 0 || a.opts.sample < 0:
		return withCode(exitUsage, errors.New("--errors and --sample must not be negative"))
	}
	return nil
}

// close writes the metrics textfile and releases the log file.
func (a *app) close() {
	if a.cfg == nil {
		return
	}
	if err := a.metrics.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
		a.log.WithError(err).Warn("metrics textfile not written")
	}
	a.cfg.Unload()
	a.cfg = nil
}

func (a *app) sheetTable() (parser.SheetTable, error) {
	t, err := parser.LoadSheetTable(a.opts.sheets)
	if err != nil {
		return parser.SheetTable{}, withCode(exitUsage, err)
	}
	return t, nil
}

func (a *app) sectorResolver(table parser.SheetTable) (services.SectorResolver, error) {
	imp := a.cfg.Import
	r, err := services.NewSectorResolver(imp.SectorStrategy, imp.SectorCode, imp.SectorName, table.Sectors)
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	return r, nil
}

func (a *app) store(ctx context.Context) (blob.Store, error) {
	s, err := blob.Open(ctx, a.cfg.Snapshot.BlobConfig())
	if err != nil {
		return nil, withCode(exitUsage, errors.Wrap(err, "open snapshot store"))
	}
	return s, nil
}

type database struct {
	conn    *sqlx.DB
	dialect persistence.Dialect
	repo    *persistence.BudgetRepository
}

func (d *database) close() { _ = d.conn.Close() }

func (a *app) openDatabase(ctx context.Context) (*database, error) {
	db := a.cfg.Database
	dialect, err := persistence.ParseDialect(db.Driver)
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	a.log.WithFields(logrus.Fields{"driver": dialect, "dsn": db.Redacted()}).Debug("connecting to database")
	conn, err := persistence.Open(ctx, dialect, db.ConnectionString(), db.ConnectTimeout)
	if err != nil {
		return nil, withCode(exitDB, err)
	}
	return &database{
		conn:    conn,
		dialect: dialect,
		repo:    persistence.NewBudgetRepository(conn, dialect),
	}, nil
}
