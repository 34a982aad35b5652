package parser

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/carlo-ubqty/araw-sub000/modules/ccet/domain/budget"
)

// Group is the aggregate of one fiscal year and data type.
type Group struct {
	FiscalYear int             `json:"fiscalYear"`
	DataType   budget.DataType `json:"dataType"`
	Records    int             `json:"records"`
	Total      decimal.Decimal `json:"total"`
	Adaptation decimal.Decimal `json:"adaptation"`
	Mitigation decimal.Decimal `json:"mitigation"`
}

// Summary totals a record set for the run report.
type Summary struct {
	Records    int             `json:"records"`
	Total      decimal.Decimal `json:"total"`
	Adaptation decimal.Decimal `json:"adaptation"`
	Mitigation decimal.Decimal `json:"mitigation"`
	Groups     []Group         `json:"groups"`
}

// Summarize groups records by fiscal year (newest first) and data type.
func Summarize(records []budget.ParsedProjectRecord) Summary {
	type key struct {
		fy int
		dt budget.DataType
	}
	groups := make(map[key]*Group)
	s := Summary{Records: len(records)}
	for _, r := range records {
		k := key{r.FiscalYear, r.DataType}
		g, ok := groups[k]
		if !ok {
			g = &Group{FiscalYear: r.FiscalYear, DataType: r.DataType}
			groups[k] = g
		}
		g.Records++
		g.Total = g.Total.Add(r.TotalAmount)
		g.Adaptation = g.Adaptation.Add(r.AdaptationAmount)
		g.Mitigation = g.Mitigation.Add(r.MitigationAmount)

		s.Total = s.Total.Add(r.TotalAmount)
		s.Adaptation = s.Adaptation.Add(r.AdaptationAmount)
		s.Mitigation = s.Mitigation.Add(r.MitigationAmount)
	}

	s.Groups = make([]Group, 0, len(groups))
	for _, g := range groups {
		s.Groups = append(s.Groups, *g)
	}
	sort.Slice(s.Groups, func(i, j int) bool {
		if s.Groups[i].FiscalYear != s.Groups[j].FiscalYear {
			return s.Groups[i].FiscalYear > s.Groups[j].FiscalYear
		}
		return s.Groups[i].DataType < s.Groups[j].DataType
	})
	return s
}
