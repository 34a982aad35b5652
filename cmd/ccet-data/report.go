package main

import (
	"time"

	"github.com/carlo-ubqty/araw-sub000/modules/ccet/domain/budget"
	"github.com/carlo-ubqty/araw-sub000/modules/ccet/parser"
	"github.com/carlo-ubqty/araw-sub000/modules/ccet/services"
)

const (
	statusParsed   = "parsed"
	statusImported = "imported"
	statusDryRun   = "dry_run"
)

type parseReport struct {
	Workbook      string              `json:"workbook"`
	Sheets        []parser.SheetStats `json:"sheets"`
	MissingSheets []string            `json:"missingSheets,omitempty"`
	Skipped       parser.SkipCounts   `json:"skipped"`
	Summary       parser.Summary      `json:"summary"`
}

type importReport struct {
	services.ImportStats
	Failed      int                 `json:"failed"`
	ErrorSample []string            `json:"errors,omitempty"`
	TableCounts *budget.TableCounts `json:"tableCounts,omitempty"`
}

type runReport struct {
	Status      string                       `json:"status"`
	RunID       string                       `json:"runId"`
	StartedAt   time.Time                    `json:"startedAt"`
	FinishedAt  time.Time                    `json:"finishedAt"`
	SnapshotKey string                       `json:"snapshotKey,omitempty"`
	Parse       *parseReport                 `json:"parse,omitempty"`
	Import      *importReport                `json:"import,omitempty"`
	Sample      []budget.ParsedProjectRecord `json:"sample,omitempty"`
}

func timeNow() time.Time { return time.Now().UTC() }

func (a *app) newReport(status string) *runReport {
	return &runReport{
		Status:    status,
		RunID:     a.runID.String(),
		StartedAt: a.startedAt,
	}
}

func newParseReport(path string, res parser.WorkbookResult) *parseReport {
	return &parseReport{
		Workbook:      path,
		Sheets:        res.Sheets,
		MissingSheets: res.MissingSheets(),
		Skipped:       res.Skipped(),
		Summary:       parser.Summarize(res.Records),
	}
}

func newImportReport(stats services.ImportStats, errorSample int) *importReport {
	r := &importReport{ImportStats: stats, Failed: len(stats.Errors)}
	for i, e := range stats.Errors {
		if i >= errorSample {
			break
		}
		r.ErrorSample = append(r.ErrorSample, e.Error())
	}
	return r
}

func firstN(records []budget.ParsedProjectRecord, n int) []budget.ParsedProjectRecord {
	if n <= 0 || len(records) == 0 {
		return nil
	}
	return records[:min(n, len(records))]
}
