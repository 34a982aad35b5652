package parser

import (
	"github.com/shopspring/decimal"

	"github.com/carlo-ubqty/araw-sub000/modules/ccet/domain/budget"
)

// SkipReason names why a data row produced no record.
type SkipReason string

const (
	SkipMissingIdentity SkipReason = "missing_identity"
	SkipSubtotal        SkipReason = "subtotal"
	SkipZeroValue       SkipReason = "zero_value"
)

// SkipCounts counts skipped rows by reason.
type SkipCounts struct {
	MissingIdentity int `json:"missingIdentity"`
	Subtotal        int `json:"subtotal"`
	ZeroValue       int `json:"zeroValue"`
}

func (c SkipCounts) Total() int {
	return c.MissingIdentity + c.Subtotal + c.ZeroValue
}

func (c SkipCounts) add(o SkipCounts) SkipCounts {
	return SkipCounts{
		MissingIdentity: c.MissingIdentity + o.MissingIdentity,
		Subtotal:        c.Subtotal + o.Subtotal,
		ZeroValue:       c.ZeroValue + o.ZeroValue,
	}
}

// SheetStatus is the per-sheet outcome.
type SheetStatus string

const (
	SheetParsed  SheetStatus = "parsed"
	SheetMissing SheetStatus = "missing"
)

// SheetStats describes how one sheet was read.
type SheetStats struct {
	Sheet          string          `json:"sheet"`
	FiscalYear     int             `json:"fiscalYear"`
	DataType       budget.DataType `json:"dataType"`
	Status         SheetStatus     `json:"status"`
	HeaderRow      int             `json:"headerRow,omitempty"`
	HeaderDetected bool            `json:"headerDetected,omitempty"`
	Multiplier     int64           `json:"multiplier,omitempty"`
	RowsScanned    int             `json:"rowsScanned"`
	Emitted        int             `json:"emitted"`
	Skipped        SkipCounts      `json:"skipped"`
	// Strategies counts, per money field, which column strategy produced
	// the value of each emitted record.
	Strategies   map[string]map[Strategy]int `json:"strategies,omitempty"`
	LabelColumns map[string]int              `json:"labelColumns,omitempty"`
}

func newSheetStats(spec SheetSpec, headerRow int, detected bool, multiplier decimal.Decimal) SheetStats {
	return SheetStats{
		Sheet:          spec.Sheet,
		FiscalYear:     spec.FiscalYear,
		DataType:       spec.DataType,
		Status:         SheetParsed,
		HeaderRow:      headerRow,
		HeaderDetected: detected,
		Multiplier:     multiplier.IntPart(),
		Strategies:     make(map[string]map[Strategy]int, len(moneyFields)),
		LabelColumns:   make(map[string]int),
	}
}

func (s *SheetStats) skip(reason SkipReason) {
	switch reason {
	case SkipMissingIdentity:
		s.Skipped.MissingIdentity++
	case SkipSubtotal:
		s.Skipped.Subtotal++
	case SkipZeroValue:
		s.Skipped.ZeroValue++
	}
}

func (s *SheetStats) recordStrategies(fs fieldStrategies) {
	for f, st := range fs {
		m, ok := s.Strategies[string(f)]
		if !ok {
			m = make(map[Strategy]int, 4)
			s.Strategies[string(f)] = m
		}
		m[st]++
	}
}
