package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/carlo-ubqty/araw-sub000/modules/ccet/parser"
)

const currencyCode = "PHP"

func writeJSONLine(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "json encode")
	}
	return nil
}

func (a *app) emit(r *runReport) error {
	if a.opts.format == "json" {
		return writeJSONLine(a.out, r)
	}
	return renderText(a.out, r)
}

// peso formats an amount in pesos, rounded to centavos.
func peso(d decimal.Decimal) string {
	return money.New(d.Shift(2).Round(0).IntPart(), currencyCode).Display()
}

func renderText(w io.Writer, r *runReport) error {
	// Years go through strconv so the printer does not group their digits.
	p := message.NewPrinter(language.English)
	var b strings.Builder

	p.Fprintf(&b, "Run %s: %s\n", r.RunID, r.Status)
	if pr := r.Parse; pr != nil {
		if pr.Workbook != "" {
			p.Fprintf(&b, "Workbook: %s\n", pr.Workbook)
		}
		for _, s := range pr.Sheets {
			if s.Status == parser.SheetMissing {
				p.Fprintf(&b, "  %-16s missing\n", s.Sheet)
				continue
			}
			p.Fprintf(&b, "  %-16s FY%s %-6s header row %d  scanned %d  emitted %d  skipped %d\n",
				s.Sheet, strconv.Itoa(s.FiscalYear), s.DataType, s.HeaderRow, s.RowsScanned, s.Emitted, s.Skipped.Total())
		}

		sum := pr.Summary
		p.Fprintf(&b, "Parsed records: %d\n", sum.Records)
		for _, g := range sum.Groups {
			p.Fprintf(&b, "  FY%s %-6s %8d records  total %s  adaptation %s  mitigation %s\n",
				strconv.Itoa(g.FiscalYear), g.DataType, g.Records, peso(g.Total), peso(g.Adaptation), peso(g.Mitigation))
		}
		p.Fprintf(&b, "  All             %8d records  total %s  adaptation %s  mitigation %s\n",
			sum.Records, peso(sum.Total), peso(sum.Adaptation), peso(sum.Mitigation))
		sk := pr.Skipped
		p.Fprintf(&b, "Skipped rows: %d (missing identity %d, subtotal %d, zero value %d)\n",
			sk.Total(), sk.MissingIdentity, sk.Subtotal, sk.ZeroValue)
	}
	if r.SnapshotKey != "" {
		p.Fprintf(&b, "Snapshot: %s\n", r.SnapshotKey)
	}
	if ir := r.Import; ir != nil {
		p.Fprintf(&b, "Import: processed %d, succeeded %d, failed %d\n", ir.Processed, ir.Succeeded, ir.Failed)
		p.Fprintf(&b, "  created: departments %d, agencies %d, sectors %d, projects %d, investments %d\n",
			ir.DepartmentsCreated, ir.AgenciesCreated, ir.SectorsCreated, ir.ProjectsCreated, ir.InvestmentsCreated)
		p.Fprintf(&b, "  updated: investments %d\n", ir.InvestmentsUpdated)
		if c := ir.TableCounts; c != nil {
			p.Fprintf(&b, "  rows now: departments %d, agencies %d, sectors %d, projects %d, investments %d\n",
				c.Departments, c.Agencies, c.Sectors, c.Projects, c.Investments)
		}
		if len(ir.ErrorSample) > 0 {
			p.Fprintf(&b, "Errors (first %d of %d):\n", len(ir.ErrorSample), ir.Failed)
			for _, e := range ir.ErrorSample {
				fmt.Fprintf(&b, "  %s\n", e)
			}
		}
	}
	if len(r.Sample) > 0 {
		p.Fprintf(&b, "Sample records (first %d):\n", len(r.Sample))
		for _, rec := range r.Sample {
			fmt.Fprintf(&b, "  %s %s | %s | MOOE %s  CO %s  total %s  adaptation %s  mitigation %s\n",
				rec.Key(), rec.PapName, rec.Status,
				peso(rec.MOOE), peso(rec.CapitalOutlay), peso(rec.TotalAmount),
				peso(rec.AdaptationAmount), peso(rec.MitigationAmount))
		}
	}

	_, err := io.WriteString(w, b.String())
	return errors.Wrap(err, "write summary")
}
