package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/carlo-ubqty/araw-sub000/modules/ccet/domain/budget"
	"github.com/carlo-ubqty/araw-sub000/pkg/eventbus"
	"github.com/carlo-ubqty/araw-sub000/pkg/logging"
	"github.com/carlo-ubqty/araw-sub000/pkg/metrics"
)

const (
	MaxProjectNameLength = 500

	FundSourceGovernmentBudget = "Government Budget"
	FundTypePublic             = "Public"
)

// Entity kinds, as counted in metrics.
const (
	kindDepartment = "department"
	kindAgency     = "agency"
	kindSector     = "sector"
	kindProject    = "project"
)

// RecordError is a failed record. The run carries on past it.
type RecordError struct {
	PapID string
	Key   string
	Err   error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("pap %s: %v", e.PapID, e.Err)
}

func (e RecordError) Unwrap() error { return e.Err }

// ImportStats reports what a run wrote.
type ImportStats struct {
	Processed          int           `json:"processed"`
	Succeeded          int           `json:"succeeded"`
	DepartmentsCreated int           `json:"departmentsCreated"`
	AgenciesCreated    int           `json:"agenciesCreated"`
	SectorsCreated     int           `json:"sectorsCreated"`
	ProjectsCreated    int           `json:"projectsCreated"`
	InvestmentsCreated int           `json:"investmentsCreated"`
	InvestmentsUpdated int           `json:"investmentsUpdated"`
	Errors             []RecordError `json:"-"`
}

type Options struct {
	// Sectors defaults to FixedSector{Code: DefaultSectorCode}.
	Sectors SectorResolver
	Logger  *logrus.Entry
	Metrics *metrics.Recorder
	// Events receives RecordImported, RecordFailed and ImportFinished.
	Events eventbus.EventBus
}

// ImportRun persists one batch of parsed records. Each run owns its identity
// caches; construct a new one per invocation. Not safe for concurrent use.
type ImportRun struct {
	repo    budget.Repository
	sectors SectorResolver
	logger  *logrus.Entry
	metrics *metrics.Recorder
	events  eventbus.EventBus

	departments map[string]int64
	agencies    map[string]int64
	sectorIDs   map[string]int64
	projects    map[string]int64

	stats ImportStats
}

func NewImportRun(repo budget.Repository, opts Options) *ImportRun {
	sectors := opts.Sectors
	if sectors == nil {
		sectors = FixedSector{}
	}
	return &ImportRun{
		repo:        repo,
		sectors:     sectors,
		logger:      logging.OrNop(opts.Logger),
		metrics:     opts.Metrics,
		events:      opts.Events,
		departments: make(map[string]int64),
		agencies:    make(map[string]int64),
		sectorIDs:   make(map[string]int64),
		projects:    make(map[string]int64),
	}
}

func (r *ImportRun) Stats() ImportStats { return r.stats }

// Import writes records in order. A failing record is captured in the
// stats and does not stop the run; the returned error is reserved for
// cancellation.
func (r *ImportRun) Import(ctx context.Context, records []budget.ParsedProjectRecord) (ImportStats, error) {
	start := time.Now()
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return r.stats, err
		}
		r.stats.Processed++
		updated := r.stats.InvestmentsUpdated
		if err := r.ImportRecord(ctx, rec); err != nil {
			if ctx.Err() != nil {
				return r.stats, ctx.Err()
			}
			recErr := RecordError{PapID: rec.PapID, Key: rec.Key(), Err: err}
			r.stats.Errors = append(r.stats.Errors, recErr)
			r.metrics.Record(false)
			r.logger.WithError(err).WithFields(logrus.Fields{
				"pap_id":      rec.PapID,
				"fiscal_year": rec.FiscalYear,
				"data_type":   rec.DataType,
			}).Warn("record import failed")
			r.publish(&RecordFailed{Index: i, Total: len(records), Err: recErr})
			continue
		}
		r.stats.Succeeded++
		r.metrics.Record(true)
		r.publish(&RecordImported{
			Index:   i,
			Total:   len(records),
			Key:     rec.Key(),
			Updated: r.stats.InvestmentsUpdated > updated,
		})
	}
	elapsed := time.Since(start)
	r.metrics.StageDuration("import", elapsed.Seconds())
	r.publish(&ImportFinished{Stats: r.stats, Duration: elapsed})

	r.logger.WithFields(logrus.Fields{
		"processed":           r.stats.Processed,
		"errors":              len(r.stats.Errors),
		"investments_created": r.stats.InvestmentsCreated,
		"investments_updated": r.stats.InvestmentsUpdated,
	}).Info("import finished")
	return r.stats, nil
}

func (r *ImportRun) publish(event any) {
	if r.events != nil {
		r.events.Publish(event)
	}
}

// ImportRecord resolves the record's entities and upserts its investment
// fact.
func (r *ImportRun) ImportRecord(ctx context.Context, rec budget.ParsedProjectRecord) error {
	deptID, err := r.department(ctx, rec)
	if err != nil {
		return errors.Wrap(err, "resolve department")
	}
	agencyID, err := r.agency(ctx, deptID, rec)
	if err != nil {
		return errors.Wrap(err, "resolve agency")
	}
	sectorID, err := r.sector(ctx, rec)
	if err != nil {
		return errors.Wrap(err, "resolve sector")
	}
	projectID, err := r.project(ctx, deptID, agencyID, sectorID, rec)
	if err != nil {
		return errors.Wrap(err, "resolve project")
	}
	if err := r.upsertInvestment(ctx, projectID, agencyID, rec); err != nil {
		return errors.Wrap(err, "upsert investment")
	}
	return nil
}

// resolve is the cache → lookup → create sequence shared by every entity.
func (r *ImportRun) resolve(
	ctx context.Context,
	kind string,
	cache map[string]int64,
	key string,
	find func(context.Context) (int64, error),
	create func(context.Context) (int64, error),
) (int64, bool, error) {
	if id, ok := cache[key]; ok {
		r.metrics.Entity(kind, "cached")
		return id, false, nil
	}
	id, err := find(ctx)
	switch {
	case err == nil:
		cache[key] = id
		r.metrics.Entity(kind, "found")
		return id, false, nil
	case !errors.Is(err, budget.ErrNotFound):
		return 0, false, errors.Wrapf(err, "find %s %q", kind, key)
	}
	id, err = create(ctx)
	if err != nil {
		return 0, false, errors.Wrapf(err, "create %s %q", kind, key)
	}
	cache[key] = id
	r.metrics.Entity(kind, "created")
	r.logger.WithFields(logrus.Fields{"kind": kind, "code": key, "id": id}).Debug("entity created")
	return id, true, nil
}

func (r *ImportRun) department(ctx context.Context, rec budget.ParsedProjectRecord) (int64, error) {
	code := rec.DepartmentID
	id, created, err := r.resolve(ctx, kindDepartment, r.departments, code,
		func(ctx context.Context) (int64, error) { return r.repo.FindDepartmentID(ctx, code) },
		func(ctx context.Context) (int64, error) {
			return r.repo.CreateDepartment(ctx, budget.Department{
				Code: code,
				Name: orDefault(rec.DepartmentName, "Department "+code),
			})
		})
	if created {
		r.stats.DepartmentsCreated++
	}
	return id, err
}

func (r *ImportRun) agency(ctx context.Context, deptID int64, rec budget.ParsedProjectRecord) (int64, error) {
	key := rec.DepartmentID + "-" + rec.AgencyID
	id, created, err := r.resolve(ctx, kindAgency, r.agencies, key,
		func(ctx context.Context) (int64, error) { return r.repo.FindAgencyID(ctx, deptID, rec.AgencyID) },
		func(ctx context.Context) (int64, error) {
			return r.repo.CreateAgency(ctx, budget.Agency{
				DepartmentID: deptID,
				Code:         rec.AgencyID,
				Name:         orDefault(rec.AgencyName, "Agency "+rec.AgencyID),
			})
		})
	if created {
		r.stats.AgenciesCreated++
	}
	return id, err
}

// anySectorKey caches the pick of the existing-sector strategy. Sector codes
// are never empty, so it cannot collide.
const anySectorKey = ""

func (r *ImportRun) sector(ctx context.Context, rec budget.ParsedProjectRecord) (int64, error) {
	s, ok := r.sectors.Sector(rec)
	if !ok {
		if id, cached := r.sectorIDs[anySectorKey]; cached {
			r.metrics.Entity(kindSector, "cached")
			return id, nil
		}
		id, err := r.repo.AnySectorID(ctx)
		if errors.Is(err, budget.ErrNotFound) {
			return 0, ErrNoSector
		}
		if err != nil {
			return 0, errors.Wrap(err, "pick existing sector")
		}
		r.sectorIDs[anySectorKey] = id
		r.metrics.Entity(kindSector, "found")
		return id, nil
	}
	id, created, err := r.resolve(ctx, kindSector, r.sectorIDs, s.Code,
		func(ctx context.Context) (int64, error) { return r.repo.FindSectorID(ctx, s.Code) },
		func(ctx context.Context) (int64, error) { return r.repo.CreateSector(ctx, s) })
	if created {
		r.stats.SectorsCreated++
	}
	return id, err
}

func (r *ImportRun) project(ctx context.Context, deptID, agencyID, sectorID int64, rec budget.ParsedProjectRecord) (int64, error) {
	id, created, err := r.resolve(ctx, kindProject, r.projects, rec.PapID,
		func(ctx context.Context) (int64, error) { return r.repo.FindProjectID(ctx, rec.PapID) },
		func(ctx context.Context) (int64, error) {
			return r.repo.CreateProject(ctx, budget.Project{
				Code:         rec.PapID,
				Name:         truncateRunes(rec.PapName, MaxProjectNameLength),
				Description:  rec.TypologyDescription,
				DepartmentID: deptID,
				AgencyID:     agencyID,
				SectorID:     sectorID,
				Status:       budget.MapStatus(rec.Status),
				StartDate:    time.Date(rec.FiscalYear, time.January, 1, 0, 0, 0, 0, time.UTC),
				EndDate:      time.Date(rec.FiscalYear, time.December, 31, 0, 0, 0, 0, time.UTC),
			})
		})
	if created {
		r.stats.ProjectsCreated++
	}
	return id, err
}

func (r *ImportRun) upsertInvestment(ctx context.Context, projectID, agencyID int64, rec budget.ParsedProjectRecord) error {
	key := budget.InvestmentKey{ProjectID: projectID, FiscalYear: rec.FiscalYear, DataType: rec.DataType}
	climate := budget.DeriveClimateType(rec.AdaptationAmount, rec.MitigationAmount)

	id, err := r.repo.FindInvestmentID(ctx, key)
	switch {
	case err == nil:
		if err := r.repo.UpdateInvestment(ctx, id, budget.InvestmentUpdate{
			AgencyID:         agencyID,
			Amount:           rec.TotalAmount,
			AdaptationAmount: rec.AdaptationAmount,
			MitigationAmount: rec.MitigationAmount,
			ClimateType:      climate,
		}); err != nil {
			return err
		}
		r.stats.InvestmentsUpdated++
		r.metrics.Investment("updated")
		return nil
	case !errors.Is(err, budget.ErrNotFound):
		return err
	}

	if _, err := r.repo.CreateInvestment(ctx, budget.Investment{
		Key:              key,
		AgencyID:         agencyID,
		Amount:           rec.TotalAmount,
		AdaptationAmount: rec.AdaptationAmount,
		MitigationAmount: rec.MitigationAmount,
		ClimateType:      climate,
		FundSource:       FundSourceGovernmentBudget,
		FundType:         FundTypePublic,
		Notes:            investmentNotes(rec),
	}); err != nil {
		return err
	}
	r.stats.InvestmentsCreated++
	r.metrics.Investment("created")
	return nil
}

// investmentNotes keeps the raw sheet breakdown on the fact row for audits.
func investmentNotes(rec budget.ParsedProjectRecord) string {
	typology := strings.TrimSpace(rec.TypologyCode + " " + rec.TypologyDescription)
	return fmt.Sprintf("MOOE: %s; CO: %s; Typology: %s; Source: %s %d",
		rec.MOOE.String(), rec.CapitalOutlay.String(), orDefault(typology, "-"), rec.DataType, rec.FiscalYear)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
