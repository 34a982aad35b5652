package workbook

import (
	"strconv"
	"strings"
	"time"
)

// Kind is the resolved type of a cell value.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	default:
		return "null"
	}
}

// Cell is a single cell value after formula and rich-text resolution.
type Cell struct {
	kind Kind
	num  float64
	str  string
	date time.Time
}

func NullCell() Cell { return Cell{} }

func NumberCell(v float64) Cell { return Cell{kind: KindNumber, num: v} }

func StringCell(v string) Cell {
	if v == "" {
		return Cell{}
	}
	return Cell{kind: KindString, str: v}
}

func DateCell(v time.Time) Cell { return Cell{kind: KindDate, date: v} }

func (c Cell) Kind() Kind { return c.kind }

func (c Cell) IsNull() bool { return c.kind == KindNull }

// Number returns the numeric value. Only number cells are accepted; a string
// that happens to look like a number is not.
func (c Cell) Number() (float64, bool) {
	if c.kind != KindNumber {
		return 0, false
	}
	return c.num, true
}

func (c Cell) Date() (time.Time, bool) {
	if c.kind != KindDate {
		return time.Time{}, false
	}
	return c.date, true
}

// Text renders any cell as trimmed text. Null cells render as "".
func (c Cell) Text() string {
	switch c.kind {
	case KindNumber:
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	case KindString:
		return strings.TrimSpace(c.str)
	case KindDate:
		return c.date.Format("2006-01-02")
	default:
		return ""
	}
}
