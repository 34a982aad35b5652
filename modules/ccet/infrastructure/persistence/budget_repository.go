package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/carlo-ubqty/araw-sub000/modules/ccet/domain/budget"
)

const (
	selectDepartmentIDQuery = `SELECT id FROM departments WHERE code = ?`
	insertDepartmentQuery   = `INSERT INTO departments (code, name) VALUES (?, ?)`

	selectAgencyIDQuery = `SELECT id FROM agencies WHERE department_id = ? AND code = ?`
	insertAgencyQuery   = `INSERT INTO agencies (department_id, code, name) VALUES (?, ?, ?)`

	selectSectorIDQuery    = `SELECT id FROM sectors WHERE code = ?`
	selectAnySectorIDQuery = `SELECT id FROM sectors ORDER BY id LIMIT 1`
	insertSectorQuery      = `INSERT INTO sectors (code, name) VALUES (?, ?)`

	selectProjectIDQuery = `SELECT id FROM projects WHERE code = ?`
	insertProjectQuery   = `INSERT INTO projects (
		code, name, description, department_id, agency_id, sector_id, status, start_date, end_date
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectInvestmentIDQuery = `SELECT id FROM investments WHERE project_id = ? AND fiscal_year = ? AND data_type = ?`
	updateInvestmentQuery   = `UPDATE investments SET
		agency_id = ?, amount = ?, adaptation_amount = ?, mitigation_amount = ?, climate_type = ?, updated_at = ?
	WHERE id = ?`
	insertInvestmentQuery = `INSERT INTO investments (
		project_id, agency_id, fiscal_year, data_type, amount, adaptation_amount, mitigation_amount,
		climate_type, fund_source, fund_type, notes
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	countsQuery = `SELECT
		(SELECT COUNT(*) FROM departments) AS departments,
		(SELECT COUNT(*) FROM agencies) AS agencies,
		(SELECT COUNT(*) FROM sectors) AS sectors,
		(SELECT COUNT(*) FROM projects) AS projects,
		(SELECT COUNT(*) FROM investments) AS investments`
)

// BudgetRepository implements budget.Repository over sqlx. Every statement
// runs on its own; there is no surrounding transaction.
type BudgetRepository struct {
	db      *sqlx.DB
	dialect Dialect
	now     func() time.Time
}

func NewBudgetRepository(db *sqlx.DB, dialect Dialect) *BudgetRepository {
	return &BudgetRepository{db: db, dialect: dialect, now: time.Now}
}

var _ budget.Repository = (*BudgetRepository)(nil)

func (r *BudgetRepository) findID(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, r.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, budget.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *BudgetRepository) insert(ctx context.Context, query string, args ...any) (int64, error) {
	q := r.db.Rebind(query)
	if r.dialect.returningID() {
		var id int64
		if err := r.db.QueryRowxContext(ctx, q+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *BudgetRepository) FindDepartmentID(ctx context.Context, code string) (int64, error) {
	id, err := r.findID(ctx, selectDepartmentIDQuery, code)
	return id, wrapUnlessNotFound(err, "select department")
}

func (r *BudgetRepository) CreateDepartment(ctx context.Context, d budget.Department) (int64, error) {
	id, err := r.insert(ctx, insertDepartmentQuery, d.Code, d.Name)
	return id, errors.Wrap(err, "insert department")
}

func (r *BudgetRepository) FindAgencyID(ctx context.Context, departmentID int64, code string) (int64, error) {
	id, err := r.findID(ctx, selectAgencyIDQuery, departmentID, code)
	return id, wrapUnlessNotFound(err, "select agency")
}

func (r *BudgetRepository) CreateAgency(ctx context.Context, a budget.Agency) (int64, error) {
	id, err := r.insert(ctx, insertAgencyQuery, a.DepartmentID, a.Code, a.Name)
	return id, errors.Wrap(err, "insert agency")
}

func (r *BudgetRepository) FindSectorID(ctx context.Context, code string) (int64, error) {
	id, err := r.findID(ctx, selectSectorIDQuery, code)
	return id, wrapUnlessNotFound(err, "select sector")
}

func (r *BudgetRepository) AnySectorID(ctx context.Context) (int64, error) {
	id, err := r.findID(ctx, selectAnySectorIDQuery)
	return id, wrapUnlessNotFound(err, "select any sector")
}

func (r *BudgetRepository) CreateSector(ctx context.Context, s budget.Sector) (int64, error) {
	id, err := r.insert(ctx, insertSectorQuery, s.Code, s.Name)
	return id, errors.Wrap(err, "insert sector")
}

func (r *BudgetRepository) FindProjectID(ctx context.Context, code string) (int64, error) {
	id, err := r.findID(ctx, selectProjectIDQuery, code)
	return id, wrapUnlessNotFound(err, "select project")
}

func (r *BudgetRepository) CreateProject(ctx context.Context, p budget.Project) (int64, error) {
	id, err := r.insert(ctx, insertProjectQuery,
		p.Code, p.Name, nullString(p.Description), p.DepartmentID, p.AgencyID, p.SectorID,
		string(p.Status), dateOnly(p.StartDate), dateOnly(p.EndDate),
	)
	return id, errors.Wrap(err, "insert project")
}

func (r *BudgetRepository) FindInvestmentID(ctx context.Context, key budget.InvestmentKey) (int64, error) {
	id, err := r.findID(ctx, selectInvestmentIDQuery, key.ProjectID, key.FiscalYear, string(key.DataType))
	return id, wrapUnlessNotFound(err, "select investment")
}

func (r *BudgetRepository) UpdateInvestment(ctx context.Context, id int64, u budget.InvestmentUpdate) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(updateInvestmentQuery),
		u.AgencyID, u.Amount, u.AdaptationAmount, u.MitigationAmount, string(u.ClimateType), r.now().UTC(), id,
	)
	return errors.Wrap(err, "update investment")
}

func (r *BudgetRepository) CreateInvestment(ctx context.Context, inv budget.Investment) (int64, error) {
	id, err := r.insert(ctx, insertInvestmentQuery,
		inv.Key.ProjectID, inv.AgencyID, inv.Key.FiscalYear, string(inv.Key.DataType),
		inv.Amount, inv.AdaptationAmount, inv.MitigationAmount,
		string(inv.ClimateType), inv.FundSource, inv.FundType, nullString(inv.Notes),
	)
	return id, errors.Wrap(err, "insert investment")
}

func (r *BudgetRepository) Counts(ctx context.Context) (budget.TableCounts, error) {
	var c budget.TableCounts
	if err := r.db.QueryRowxContext(ctx, countsQuery).Scan(
		&c.Departments, &c.Agencies, &c.Sectors, &c.Projects, &c.Investments,
	); err != nil {
		return budget.TableCounts{}, errors.Wrap(err, "count rows")
	}
	return c, nil
}

func wrapUnlessNotFound(err error, msg string) error {
	if err == nil || errors.Is(err, budget.ErrNotFound) {
		return err
	}
	return errors.Wrap(err, msg)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// dateOnly renders a DATE parameter the same way on every driver.
func dateOnly(t time.Time) string {
	return t.Format(time.DateOnly)
}
