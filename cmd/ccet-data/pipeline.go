package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/carlo-ubqty/araw-sub000/modules/ccet/domain/budget"
	"github.com/carlo-ubqty/araw-sub000/modules/ccet/infrastructure/persistence"
	"github.com/carlo-ubqty/araw-sub000/modules/ccet/parser"
	"github.com/carlo-ubqty/araw-sub000/modules/ccet/services"
	"github.com/carlo-ubqty/araw-sub000/modules/ccet/snapshot"
	"github.com/carlo-ubqty/araw-sub000/pkg/eventbus"
	"github.com/carlo-ubqty/araw-sub000/pkg/workbook"
)

type snapshotFlags struct {
	key  string
	skip bool
}

func (a *app) parseWorkbook(ctx context.Context, path string, table parser.SheetTable) (parser.WorkbookResult, error) {
	wb, err := workbook.Open(path)
	if err != nil {
		return parser.WorkbookResult{}, withCode(exitInput, err)
	}
	defer func() { _ = wb.Close() }()

	start := time.Now()
	res, err := parser.New(a.log.WithField("workbook", path)).ParseWorkbook(ctx, wb, table.Sheets)
	if err != nil {
		if ctx.Err() != nil {
			return parser.WorkbookResult{}, err
		}
		return parser.WorkbookResult{}, withCode(exitInput, err)
	}
	a.metrics.StageDuration("parse", time.Since(start).Seconds())
	for _, s := range res.Sheets {
		a.metrics.Rows(s.Sheet, "emitted", s.Emitted)
		a.metrics.Rows(s.Sheet, string(parser.SkipMissingIdentity), s.Skipped.MissingIdentity)
		a.metrics.Rows(s.Sheet, string(parser.SkipSubtotal), s.Skipped.Subtotal)
		a.metrics.Rows(s.Sheet, string(parser.SkipZeroValue), s.Skipped.ZeroValue)
	}
	return res, nil
}

// writeSnapshot stores records and returns the key used. An empty key gets
// the run's default name.
func (a *app) writeSnapshot(ctx context.Context, key string, records []budget.ParsedProjectRecord) (string, error) {
	store, err := a.store(ctx)
	if err != nil {
		return "", err
	}
	if key == "" {
		key = snapshot.DefaultKey(a.startedAt, a.runID)
	}
	info, err := snapshot.Write(ctx, store, key, records)
	if err != nil {
		return "", err
	}
	a.log.WithFields(logrus.Fields{"key": info.Key, "driver": store.Driver(), "bytes": info.Size}).Info("snapshot written")
	return info.Key, nil
}

func (a *app) readSnapshot(ctx context.Context, key string) ([]budget.ParsedProjectRecord, error) {
	store, err := a.store(ctx)
	if err != nil {
		return nil, err
	}
	records, err := snapshot.Read(ctx, store, key)
	if err != nil {
		return nil, withCode(exitInput, err)
	}
	return records, nil
}

func (a *app) importRecords(ctx context.Context, records []budget.ParsedProjectRecord, table parser.SheetTable, migrate bool) (*importReport, error) {
	sectors, err := a.sectorResolver(table)
	if err != nil {
		return nil, err
	}
	db, err := a.openDatabase(ctx)
	if err != nil {
		return nil, err
	}
	defer db.close()

	if migrate {
		if _, err := a.migrateUp(ctx, db); err != nil {
			return nil, err
		}
	}

	stats, err := services.NewImportRun(db.repo, services.Options{
		Sectors: sectors,
		Logger:  a.log,
		Metrics: a.metrics,
		Events:  a.importEvents(),
	}).Import(ctx, records)
	if err != nil {
		return nil, errors.Wrap(err, "import interrupted")
	}

	report := newImportReport(stats, a.opts.errors)
	if counts, err := db.repo.Counts(ctx); err != nil {
		a.log.WithError(err).Warn("table counts unavailable")
	} else {
		report.TableCounts = &counts
	}
	return report, nil
}

// importEvents logs progress every ProgressEvery records. Nil when that is
// turned off.
func (a *app) importEvents() eventbus.EventBus {
	every := a.cfg.Import.ProgressEvery
	if every <= 0 {
		return nil
	}
	bus := eventbus.New(a.log)
	bus.Subscribe(func(e *services.RecordImported) {
		if done := e.Index + 1; done%every == 0 || done == e.Total {
			a.log.WithFields(logrus.Fields{"done": done, "total": e.Total}).Info("import progress")
		}
	})
	bus.Subscribe(func(e *services.RecordFailed) {
		if done := e.Index + 1; done == e.Total {
			a.log.WithFields(logrus.Fields{"done": done, "total": e.Total}).Info("import progress")
		}
	})
	return bus
}

func (a *app) migrateUp(ctx context.Context, db *database) ([]int64, error) {
	applied, err := persistence.MigrateUp(ctx, db.conn, db.dialect)
	if err != nil {
		return nil, withCode(exitDB, err)
	}
	if len(applied) > 0 {
		a.log.WithField("versions", applied).Info("migrations applied")
	}
	return applied, nil
}
