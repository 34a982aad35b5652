package parser

import (
	"regexp"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/carlo-ubqty/araw-sub000/pkg/workbook"
)

// Field names a money column the parser extracts.
type Field string

const (
	FieldMOOE          Field = "mooe"
	FieldCapitalOutlay Field = "capital_outlay"
	FieldAdaptation    Field = "adaptation"
	FieldMitigation    Field = "mitigation"
)

var moneyFields = []Field{FieldMOOE, FieldCapitalOutlay, FieldAdaptation, FieldMitigation}

// Strategy records which column a money value was taken from.
type Strategy string

const (
	StrategyLabel    Strategy = "label"
	StrategyPrimary  Strategy = "primary"
	StrategyFallback Strategy = "fallback"
	StrategyNone     Strategy = "none"
)

// ColumnRule locates one money field. Columns are 1-based. The primary column
// is tried first and the fallback second; only numeric cells are accepted.
// When Labels are set and exactly one header cell matches, that column is
// tried before both.
type ColumnRule struct {
	Primary  int      `yaml:"primary" toml:"primary" json:"primary" validate:"min=0"`
	Fallback int      `yaml:"fallback" toml:"fallback" json:"fallback" validate:"min=0"`
	Labels   []string `yaml:"labels,omitempty" toml:"labels,omitempty" json:"labels,omitempty"`
}

// Layout maps a sheet's columns to record fields.
//
// The fixed money positions are tuned to the sheet layouts of the fiscal
// years seen so far (MOOE 11→9, CO 14→12, adaptation 28→24, mitigation
// 29→27). An unseen layout can silently read the wrong column; override the
// layout per sheet in the sheet table, or give header labels.
type Layout struct {
	DepartmentID        int `yaml:"department_id" toml:"department_id" json:"departmentId" validate:"min=0"`
	DepartmentName      int `yaml:"department_name" toml:"department_name" json:"departmentName" validate:"min=0"`
	AgencyID            int `yaml:"agency_id" toml:"agency_id" json:"agencyId" validate:"min=0"`
	AgencyName          int `yaml:"agency_name" toml:"agency_name" json:"agencyName" validate:"min=0"`
	PapID               int `yaml:"pap_id" toml:"pap_id" json:"papId" validate:"min=0"`
	PapName             int `yaml:"pap_name" toml:"pap_name" json:"papName" validate:"min=0"`
	TypologyCode        int `yaml:"typology_code" toml:"typology_code" json:"typologyCode" validate:"min=0"`
	TypologyDescription int `yaml:"typology_description" toml:"typology_description" json:"typologyDescription" validate:"min=0"`
	Status              int `yaml:"status" toml:"status" json:"status" validate:"min=0"`

	MOOE          ColumnRule `yaml:"mooe" toml:"mooe" json:"mooe"`
	CapitalOutlay ColumnRule `yaml:"capital_outlay" toml:"capital_outlay" json:"capitalOutlay"`
	Adaptation    ColumnRule `yaml:"adaptation" toml:"adaptation" json:"adaptation"`
	Mitigation    ColumnRule `yaml:"mitigation" toml:"mitigation" json:"mitigation"`

	// LabelMinColumn keeps label matching out of the identity columns.
	LabelMinColumn int `yaml:"label_min_column" toml:"label_min_column" json:"labelMinColumn" validate:"min=0"`
}

func DefaultLayout() Layout {
	return Layout{
		DepartmentID:        1,
		DepartmentName:      2,
		AgencyID:            3,
		AgencyName:          4,
		PapID:               5,
		PapName:             6,
		TypologyCode:        7,
		TypologyDescription: 8,
		Status:              18,
		MOOE:                ColumnRule{Primary: 11, Fallback: 9},
		CapitalOutlay:       ColumnRule{Primary: 14, Fallback: 12},
		Adaptation:          ColumnRule{Primary: 28, Fallback: 24},
		Mitigation:          ColumnRule{Primary: 29, Fallback: 27},
		LabelMinColumn:      9,
	}
}

// WithDefaults fills every unset position from DefaultLayout, so a sheet
// table only has to spell out the columns that differ.
func (l Layout) WithDefaults() Layout {
	d := DefaultLayout()
	orInt := func(v, def int) int {
		if v == 0 {
			return def
		}
		return v
	}
	orRule := func(r, def ColumnRule) ColumnRule {
		if r.Primary == 0 && r.Fallback == 0 {
			r.Primary, r.Fallback = def.Primary, def.Fallback
		}
		return r
	}
	return Layout{
		DepartmentID:        orInt(l.DepartmentID, d.DepartmentID),
		DepartmentName:      orInt(l.DepartmentName, d.DepartmentName),
		AgencyID:            orInt(l.AgencyID, d.AgencyID),
		AgencyName:          orInt(l.AgencyName, d.AgencyName),
		PapID:               orInt(l.PapID, d.PapID),
		PapName:             orInt(l.PapName, d.PapName),
		TypologyCode:        orInt(l.TypologyCode, d.TypologyCode),
		TypologyDescription: orInt(l.TypologyDescription, d.TypologyDescription),
		Status:              orInt(l.Status, d.Status),
		MOOE:                orRule(l.MOOE, d.MOOE),
		CapitalOutlay:       orRule(l.CapitalOutlay, d.CapitalOutlay),
		Adaptation:          orRule(l.Adaptation, d.Adaptation),
		Mitigation:          orRule(l.Mitigation, d.Mitigation),
		LabelMinColumn:      orInt(l.LabelMinColumn, d.LabelMinColumn),
	}
}

func (l Layout) rule(f Field) ColumnRule {
	switch f {
	case FieldMOOE:
		return l.MOOE
	case FieldCapitalOutlay:
		return l.CapitalOutlay
	case FieldAdaptation:
		return l.Adaptation
	default:
		return l.Mitigation
	}
}

// maxFuzzyDistance bounds the edit distance accepted in the fuzzy pass.
const maxFuzzyDistance = 2

// labelMatch is the outcome of header-label resolution for one field.
type labelMatch struct {
	Column    int
	Ambiguous []int
}

// resolveLabels finds, for each field with labels, the single header cell
// naming it. Exact (normalized, whole-word) containment is tried first and a
// fuzzy pass second. Zero or several matching columns leave the field on its
// fixed positions.
func resolveLabels(sheet *workbook.Sheet, headerRow int, layout Layout) map[Field]labelMatch {
	out := make(map[Field]labelMatch)

	header := sheet.Row(headerRow)
	type headerCell struct {
		col      int
		norm     string
		squashed string
	}
	var cells []headerCell
	for i, c := range header {
		col := i + 1
		if col < layout.LabelMinColumn {
			continue
		}
		norm := normalizeLabel(c.Text())
		if norm == "" {
			continue
		}
		cells = append(cells, headerCell{col: col, norm: norm, squashed: strings.ReplaceAll(norm, " ", "")})
	}
	if len(cells) == 0 {
		return out
	}

	for _, f := range moneyFields {
		labels := layout.rule(f).Labels
		if len(labels) == 0 {
			continue
		}

		matched := map[int]struct{}{}
		for _, label := range labels {
			nl := normalizeLabel(label)
			if nl == "" {
				continue
			}
			for _, hc := range cells {
				if strings.Contains(" "+hc.norm+" ", " "+nl+" ") {
					matched[hc.col] = struct{}{}
				}
			}
		}

		if len(matched) == 0 {
			targets := make([]string, len(cells))
			for i, hc := range cells {
				targets[i] = hc.squashed
			}
			for _, label := range labels {
				sl := strings.ReplaceAll(normalizeLabel(label), " ", "")
				if sl == "" {
					continue
				}
				for _, rank := range fuzzy.RankFindNormalizedFold(sl, targets) {
					if rank.Distance <= maxFuzzyDistance {
						matched[cells[rank.OriginalIndex].col] = struct{}{}
					}
				}
			}
		}

		switch len(matched) {
		case 0:
		case 1:
			for col := range matched {
				out[f] = labelMatch{Column: col}
			}
		default:
			cols := make([]int, 0, len(matched))
			for col := range matched {
				cols = append(cols, col)
			}
			sort.Ints(cols)
			out[f] = labelMatch{Ambiguous: cols}
		}
	}
	return out
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonAlnum.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}
