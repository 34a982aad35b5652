// Package parser turns CCET budget sheets into normalized project records.
package parser

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/carlo-ubqty/araw-sub000/modules/ccet/domain/budget"
	"github.com/carlo-ubqty/araw-sub000/pkg/logging"
	"github.com/carlo-ubqty/araw-sub000/pkg/workbook"
)

const (
	// HeaderScanRows is how many leading rows are searched for the header.
	HeaderScanRows = 20
	// DefaultHeaderRow is assumed when no header marker is found.
	DefaultHeaderRow = 7

	unknownStatus = "Unknown"
)

var (
	headerMarkers    = []string{"DEPARTMENT", "UACS", "Department"}
	thousandsMarker  = "thousand pesos"
	subtotalMarker   = "total"
	thousandMultiple = decimal.NewFromInt(1000)
)

// Parser extracts records from sheets. It holds no per-sheet state and can be
// reused across sheets and runs.
type Parser struct {
	logger *logrus.Entry
}

func New(logger *logrus.Entry) *Parser {
	return &Parser{logger: logging.OrNop(logger)}
}

// SheetResult is the output of one sheet.
type SheetResult struct {
	Records []budget.ParsedProjectRecord
	Stats   SheetStats
}

// ParseSheet scans one sheet into records, in row order. Malformed rows are
// skipped and counted, never reported as errors; the only error is context
// cancellation.
func (p *Parser) ParseSheet(ctx context.Context, sheet *workbook.Sheet, spec SheetSpec) (SheetResult, error) {
	layout := spec.EffectiveLayout()
	log := p.logger.WithFields(logrus.Fields{
		"sheet":       sheet.Name(),
		"fiscal_year": spec.FiscalYear,
		"data_type":   spec.DataType,
	})

	headerRow, detected := detectHeaderRow(sheet, layout.DepartmentID)
	dataStart := headerRow + 1
	multiplier := detectMultiplier(sheet, dataStart, layout.DepartmentID)

	stats := newSheetStats(spec, headerRow, detected, multiplier)

	labels := resolveLabels(sheet, headerRow, layout)
	labelCols := make(map[Field]int, len(labels))
	for f, m := range labels {
		if len(m.Ambiguous) > 0 {
			log.WithFields(logrus.Fields{"field": f, "columns": m.Ambiguous}).
				Warn("ambiguous header label, using fixed column positions")
			continue
		}
		labelCols[f] = m.Column
		stats.LabelColumns[string(f)] = m.Column
	}

	log.WithFields(logrus.Fields{
		"header_row":      headerRow,
		"header_detected": detected,
		"multiplier":      multiplier.IntPart(),
		"rows":            sheet.RowCount(),
	}).Debug("sheet layout resolved")

	var records []budget.ParsedProjectRecord
	for row := dataStart; row <= sheet.RowCount(); row++ {
		if (row-dataStart)%500 == 0 {
			if err := ctx.Err(); err != nil {
				return SheetResult{}, err
			}
		}
		stats.RowsScanned++

		rec, reason, strategies := extractRow(sheet, row, spec, layout, labelCols, multiplier)
		if reason != "" {
			stats.skip(reason)
			continue
		}
		stats.recordStrategies(strategies)
		if log.Logger.IsLevelEnabled(logrus.DebugLevel) {
			log.WithFields(logrus.Fields{
				"row":        row,
				"pap_id":     rec.PapID,
				"strategies": strategies,
			}).Debug("row extracted")
		}
		records = append(records, rec)
	}
	stats.Emitted = len(records)

	log.WithFields(logrus.Fields{
		"emitted": stats.Emitted,
		"skipped": stats.Skipped.Total(),
	}).Info("sheet parsed")

	return SheetResult{Records: records, Stats: stats}, nil
}

// detectHeaderRow returns the first of the leading rows whose department
// column carries a header marker, or DefaultHeaderRow.
func detectHeaderRow(sheet *workbook.Sheet, col int) (int, bool) {
	last := HeaderScanRows
	if sheet.RowCount() < last {
		last = sheet.RowCount()
	}
	for row := 1; row <= last; row++ {
		text := sheet.Cell(row, col).Text()
		for _, marker := range headerMarkers {
			if strings.Contains(text, marker) {
				return row, true
			}
		}
	}
	return DefaultHeaderRow, false
}

// detectMultiplier is 1000 when any row above the data mentions thousand
// pesos, else 1.
func detectMultiplier(sheet *workbook.Sheet, dataStart, col int) decimal.Decimal {
	for row := 1; row < dataStart; row++ {
		if strings.Contains(strings.ToLower(sheet.Cell(row, col).Text()), thousandsMarker) {
			return thousandMultiple
		}
	}
	return decimal.NewFromInt(1)
}

type fieldStrategies map[Field]Strategy

func extractRow(
	sheet *workbook.Sheet,
	row int,
	spec SheetSpec,
	layout Layout,
	labelCols map[Field]int,
	multiplier decimal.Decimal,
) (budget.ParsedProjectRecord, SkipReason, fieldStrategies) {
	text := func(col int) string { return sheet.Cell(row, col).Text() }

	deptID := text(layout.DepartmentID)
	papID := text(layout.PapID)
	papName := text(layout.PapName)
	if deptID == "" || papID == "" || papName == "" {
		return budget.ParsedProjectRecord{}, SkipMissingIdentity, nil
	}
	if strings.Contains(strings.ToLower(papName), subtotalMarker) {
		return budget.ParsedProjectRecord{}, SkipSubtotal, nil
	}

	strategies := make(fieldStrategies, len(moneyFields))
	amount := func(f Field) decimal.Decimal {
		v, s := readAmount(sheet, row, layout.rule(f), labelCols[f], multiplier)
		strategies[f] = s
		return v
	}
	mooe := amount(FieldMOOE)
	capitalOutlay := amount(FieldCapitalOutlay)
	adaptation := amount(FieldAdaptation)
	mitigation := amount(FieldMitigation)

	total := mooe.Add(capitalOutlay)
	if total.IsZero() && adaptation.IsZero() && mitigation.IsZero() {
		return budget.ParsedProjectRecord{}, SkipZeroValue, nil
	}

	typologyCode := text(layout.TypologyCode)
	if adaptation.IsZero() && mitigation.IsZero() && total.IsPositive() {
		switch {
		case strings.HasPrefix(typologyCode, "A"):
			adaptation = total
		case strings.HasPrefix(typologyCode, "M"):
			mitigation = total
		}
	}

	status := text(layout.Status)
	if status == "" {
		status = unknownStatus
	}

	rec := budget.NewRecord(budget.RecordInput{
		DepartmentID:        deptID,
		DepartmentName:      text(layout.DepartmentName),
		AgencyID:            text(layout.AgencyID),
		AgencyName:          text(layout.AgencyName),
		PapID:               papID,
		PapName:             papName,
		TypologyCode:        typologyCode,
		TypologyDescription: text(layout.TypologyDescription),
		FiscalYear:          spec.FiscalYear,
		DataType:            spec.DataType,
		MOOE:                mooe,
		CapitalOutlay:       capitalOutlay,
		AdaptationAmount:    adaptation,
		MitigationAmount:    mitigation,
		Status:              status,
	})
	return rec, "", strategies
}

// readAmount takes the first numeric cell among the label column, the
// primary column and the fallback column, scaled by multiplier. Anything
// non-numeric reads as zero.
func readAmount(sheet *workbook.Sheet, row int, rule ColumnRule, labelCol int, multiplier decimal.Decimal) (decimal.Decimal, Strategy) {
	try := []struct {
		col int
		s   Strategy
	}{
		{labelCol, StrategyLabel},
		{rule.Primary, StrategyPrimary},
		{rule.Fallback, StrategyFallback},
	}
	for _, t := range try {
		if t.col <= 0 {
			continue
		}
		if n, ok := sheet.Cell(row, t.col).Number(); ok {
			return decimal.NewFromFloat(n).Mul(multiplier), t.s
		}
	}
	return decimal.Zero, StrategyNone
}
