package parser

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/carlo-ubqty/araw-sub000/modules/ccet/domain/budget"
	"github.com/carlo-ubqty/araw-sub000/pkg/workbook"
)

// SheetSource is the part of a workbook the parser reads.
type SheetSource interface {
	Sheet(name string) (*workbook.Sheet, bool, error)
}

// WorkbookResult is the concatenated output of every configured sheet.
type WorkbookResult struct {
	Records []budget.ParsedProjectRecord
	Sheets  []SheetStats
}

// Skipped sums the skip counts of all sheets.
func (r WorkbookResult) Skipped() SkipCounts {
	var total SkipCounts
	for _, s := range r.Sheets {
		total = total.add(s.Skipped)
	}
	return total
}

// MissingSheets lists configured sheets absent from the workbook.
func (r WorkbookResult) MissingSheets() []string {
	var out []string
	for _, s := range r.Sheets {
		if s.Status == SheetMissing {
			out = append(out, s.Sheet)
		}
	}
	return out
}

// ParseWorkbook parses every sheet of specs in order and concatenates the
// records. Absent sheets are logged and reported as missing.
func (p *Parser) ParseWorkbook(ctx context.Context, wb SheetSource, specs []SheetSpec) (WorkbookResult, error) {
	var out WorkbookResult
	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return WorkbookResult{}, err
		}
		sheet, ok, err := wb.Sheet(spec.Sheet)
		if err != nil {
			return WorkbookResult{}, errors.Wrapf(err, "sheet %q", spec.Sheet)
		}
		if !ok {
			p.logger.WithField("sheet", spec.Sheet).Warn("sheet not found in workbook, skipping")
			out.Sheets = append(out.Sheets, SheetStats{
				Sheet:      spec.Sheet,
				FiscalYear: spec.FiscalYear,
				DataType:   spec.DataType,
				Status:     SheetMissing,
			})
			continue
		}

		res, err := p.ParseSheet(ctx, sheet, spec)
		if err != nil {
			return WorkbookResult{}, err
		}
		out.Records = append(out.Records, res.Records...)
		out.Sheets = append(out.Sheets, res.Stats)
	}

	p.logger.WithFields(logrus.Fields{
		"records": len(out.Records),
		"sheets":  len(out.Sheets),
		"missing": len(out.MissingSheets()),
	}).Info("workbook parsed")
	return out, nil
}
