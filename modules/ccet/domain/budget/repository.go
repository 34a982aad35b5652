package budget

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("not found")

type Department struct {
	Code string
	Name string
}

type Agency struct {
	DepartmentID int64
	Code         string
	Name         string
}

type Sector struct {
	Code string
	Name string
}

type Project struct {
	Code         string
	Name         string
	Description  string
	DepartmentID int64
	AgencyID     int64
	SectorID     int64
	Status       ProjectStatus
	StartDate    time.Time
	EndDate      time.Time
}

// InvestmentKey is the natural key of an investment fact.
type InvestmentKey struct {
	ProjectID  int64
	FiscalYear int
	DataType   DataType
}

type Investment struct {
	Key              InvestmentKey
	AgencyID         int64
	Amount           decimal.Decimal
	AdaptationAmount decimal.Decimal
	MitigationAmount decimal.Decimal
	ClimateType      ClimateType
	FundSource       string
	FundType         string
	Notes            string
}

// InvestmentUpdate is what an upsert refreshes on an existing fact.
type InvestmentUpdate struct {
	AgencyID         int64
	Amount           decimal.Decimal
	AdaptationAmount decimal.Decimal
	MitigationAmount decimal.Decimal
	ClimateType      ClimateType
}

type TableCounts struct {
	Departments int64 `json:"departments"`
	Agencies    int64 `json:"agencies"`
	Sectors     int64 `json:"sectors"`
	Projects    int64 `json:"projects"`
	Investments int64 `json:"investments"`
}

// Repository is the persistent store the import stage writes to. Find*
// methods return ErrNotFound when no row matches.
type Repository interface {
	FindDepartmentID(ctx context.Context, code string) (int64, error)
	CreateDepartment(ctx context.Context, d Department) (int64, error)

	FindAgencyID(ctx context.Context, departmentID int64, code string) (int64, error)
	CreateAgency(ctx context.Context, a Agency) (int64, error)

	FindSectorID(ctx context.Context, code string) (int64, error)
	AnySectorID(ctx context.Context) (int64, error)
	CreateSector(ctx context.Context, s Sector) (int64, error)

	FindProjectID(ctx context.Context, code string) (int64, error)
	CreateProject(ctx context.Context, p Project) (int64, error)

	FindInvestmentID(ctx context.Context, key InvestmentKey) (int64, error)
	UpdateInvestment(ctx context.Context, id int64, u InvestmentUpdate) error
	CreateInvestment(ctx context.Context, inv Investment) (int64, error)

	Counts(ctx context.Context) (TableCounts, error)
}

// SectorRule maps records whose typology code starts with TypologyPrefix to
// a sector. The source sheets carry no reliable sector code of their own.
type SectorRule struct {
	TypologyPrefix string `yaml:"typology_prefix" toml:"typology_prefix" json:"typologyPrefix" validate:"required"`
	Code           string `yaml:"code" toml:"code" json:"code" validate:"required"`
	Name           string `yaml:"name" toml:"name" json:"name"`
}
