package parser

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/carlo-ubqty/araw-sub000/modules/ccet/domain/budget"
)

// SheetSpec names one sheet to parse and the figures it holds.
type SheetSpec struct {
	Sheet      string          `yaml:"sheet" toml:"sheet" json:"sheet" validate:"required"`
	FiscalYear int             `yaml:"fiscal_year" toml:"fiscal_year" json:"fiscalYear" validate:"min=1900,max=2200"`
	DataType   budget.DataType `yaml:"data_type" toml:"data_type" json:"dataType" validate:"oneof=GAA Actual NEP"`
	Layout     *Layout         `yaml:"layout,omitempty" toml:"layout,omitempty" json:"layout,omitempty"`
}

// EffectiveLayout is the sheet's layout with defaults filled in.
func (s SheetSpec) EffectiveLayout() Layout {
	if s.Layout == nil {
		return DefaultLayout()
	}
	return s.Layout.WithDefaults()
}

// SheetTable is the external configuration of a pipeline run: which sheets
// to read, and how typology codes map to sectors.
type SheetTable struct {
	Sheets  []SheetSpec         `yaml:"sheets" toml:"sheets" json:"sheets" validate:"required,min=1,dive"`
	Sectors []budget.SectorRule `yaml:"sectors,omitempty" toml:"sectors,omitempty" json:"sectors,omitempty" validate:"dive"`
}

var ErrInvalidSheetTable = errors.New("invalid sheet table")

// DefaultSheetTable reproduces the sheet naming convention of the CCET
// workbooks received so far.
func DefaultSheetTable() SheetTable {
	return SheetTable{
		Sheets: []SheetSpec{
			{Sheet: "2025 (GAA)", FiscalYear: 2025, DataType: budget.DataTypeGAA},
			{Sheet: "2025 (NEP)", FiscalYear: 2025, DataType: budget.DataTypeNEP},
			{Sheet: "2024 (GAA)", FiscalYear: 2024, DataType: budget.DataTypeGAA},
			{Sheet: "2024 (NEP)", FiscalYear: 2024, DataType: budget.DataTypeNEP},
			{Sheet: "2024 (Actual)", FiscalYear: 2024, DataType: budget.DataTypeActual},
			{Sheet: "2023 (GAA)", FiscalYear: 2023, DataType: budget.DataTypeGAA},
			{Sheet: "2023 (Actual)", FiscalYear: 2023, DataType: budget.DataTypeActual},
		},
	}
}

var tableValidator = sync.OnceValue(func() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
})

// LoadSheetTable reads a YAML (.yaml/.yml) or TOML (.toml) sheet table.
// An empty path yields DefaultSheetTable.
func LoadSheetTable(path string) (SheetTable, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultSheetTable(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return SheetTable{}, errors.Wrapf(err, "read sheet table %s", path)
	}
	return ParseSheetTable(b, filepath.Ext(path))
}

// ParseSheetTable decodes a sheet table; ext selects the format.
func ParseSheetTable(b []byte, ext string) (SheetTable, error) {
	var t SheetTable
	switch strings.ToLower(ext) {
	case ".toml":
		if _, err := toml.NewDecoder(bytes.NewReader(b)).Decode(&t); err != nil {
			return SheetTable{}, errors.Wrapf(ErrInvalidSheetTable, "toml: %v", err)
		}
	case ".yaml", ".yml", "":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&t); err != nil {
			return SheetTable{}, errors.Wrapf(ErrInvalidSheetTable, "yaml: %v", err)
		}
	default:
		return SheetTable{}, errors.Wrapf(ErrInvalidSheetTable, "unsupported format %q", ext)
	}

	if err := tableValidator().Struct(t); err != nil {
		return SheetTable{}, errors.Wrapf(ErrInvalidSheetTable, "%v", err)
	}
	seen := make(map[string]struct{}, len(t.Sheets))
	for _, s := range t.Sheets {
		if _, dup := seen[s.Sheet]; dup {
			return SheetTable{}, errors.Wrapf(ErrInvalidSheetTable, "sheet %q listed twice", s.Sheet)
		}
		seen[s.Sheet] = struct{}{}
	}
	return t, nil
}
