package budget

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// DataType tags which budget document a figure comes from.
type DataType string

const (
	DataTypeGAA    DataType = "GAA"
	DataTypeActual DataType = "Actual"
	DataTypeNEP    DataType = "NEP"
)

var ErrInvalidDataType = errors.New("invalid data type")

func ParseDataType(v string) (DataType, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "GAA":
		return DataTypeGAA, nil
	case "ACTUAL":
		return DataTypeActual, nil
	case "NEP":
		return DataTypeNEP, nil
	default:
		return "", errors.Wrapf(ErrInvalidDataType, "%q (expected GAA|Actual|NEP)", v)
	}
}

func (t DataType) Valid() bool {
	switch t {
	case DataTypeGAA, DataTypeActual, DataTypeNEP:
		return true
	}
	return false
}

// ParsedProjectRecord is one normalized PAP row of a budget sheet.
// Build it with NewRecord; TotalAmount is fixed at construction.
type ParsedProjectRecord struct {
	DepartmentID        string          `json:"departmentId" validate:"required"`
	DepartmentName      string          `json:"departmentName"`
	AgencyID            string          `json:"agencyId"`
	AgencyName          string          `json:"agencyName"`
	PapID               string          `json:"papId" validate:"required"`
	PapName             string          `json:"papName" validate:"required"`
	TypologyCode        string          `json:"typologyCode"`
	TypologyDescription string          `json:"typologyDescription"`
	FiscalYear          int             `json:"fiscalYear" validate:"min=1900,max=2200"`
	DataType            DataType        `json:"dataType" validate:"oneof=GAA Actual NEP"`
	MOOE                decimal.Decimal `json:"mooe"`
	CapitalOutlay       decimal.Decimal `json:"capitalOutlay"`
	TotalAmount         decimal.Decimal `json:"totalAmount"`
	AdaptationAmount    decimal.Decimal `json:"adaptationAmount"`
	MitigationAmount    decimal.Decimal `json:"mitigationAmount"`
	Status              string          `json:"status"`
}

// RecordInput carries the extracted fields of a row before the record is sealed.
type RecordInput struct {
	DepartmentID        string
	DepartmentName      string
	AgencyID            string
	AgencyName          string
	PapID               string
	PapName             string
	TypologyCode        string
	TypologyDescription string
	FiscalYear          int
	DataType            DataType
	MOOE                decimal.Decimal
	CapitalOutlay       decimal.Decimal
	AdaptationAmount    decimal.Decimal
	MitigationAmount    decimal.Decimal
	Status              string
}

func NewRecord(in RecordInput) ParsedProjectRecord {
	return ParsedProjectRecord{
		DepartmentID:        in.DepartmentID,
		DepartmentName:      in.DepartmentName,
		AgencyID:            in.AgencyID,
		AgencyName:          in.AgencyName,
		PapID:               in.PapID,
		PapName:             in.PapName,
		TypologyCode:        in.TypologyCode,
		TypologyDescription: in.TypologyDescription,
		FiscalYear:          in.FiscalYear,
		DataType:            in.DataType,
		MOOE:                in.MOOE,
		CapitalOutlay:       in.CapitalOutlay,
		TotalAmount:         in.MOOE.Add(in.CapitalOutlay),
		AdaptationAmount:    in.AdaptationAmount,
		MitigationAmount:    in.MitigationAmount,
		Status:              in.Status,
	}
}

var ErrInvalidRecord = errors.New("invalid record")

var validate = sync.OnceValue(func() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
})

// Validate checks a record read back from outside the parser, e.g. a snapshot.
func (r ParsedProjectRecord) Validate() error {
	if err := validate().Struct(r); err != nil {
		return errors.Wrapf(ErrInvalidRecord, "pap %q: %v", r.PapID, err)
	}
	if !r.TotalAmount.Equal(r.MOOE.Add(r.CapitalOutlay)) {
		return errors.Wrapf(ErrInvalidRecord, "pap %q: totalAmount %s != mooe %s + capitalOutlay %s",
			r.PapID, r.TotalAmount, r.MOOE, r.CapitalOutlay)
	}
	return nil
}

// Key is the natural key of the fact row the record feeds.
func (r ParsedProjectRecord) Key() string {
	return fmt.Sprintf("%s/%d/%s", r.PapID, r.FiscalYear, r.DataType)
}
