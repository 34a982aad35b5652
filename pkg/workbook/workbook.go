// Package workbook opens spreadsheet documents and exposes their sheets as
// row/column grids of resolved cell values.
package workbook

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

var (
	ErrFileNotFound = errors.New("workbook: file not found")
	ErrUnreadable   = errors.New("workbook: unreadable spreadsheet")
)

// Workbook is an opened spreadsheet document.
type Workbook struct {
	file *excelize.File
	path string
}

// Open opens the spreadsheet at path.
func Open(path string) (*Workbook, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrFileNotFound, "%s", path)
		}
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrUnreadable, "%s: %v", path, err)
	}
	return &Workbook{file: f, path: path}, nil
}

// OpenReader opens a spreadsheet from an in-memory stream.
func OpenReader(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrapf(ErrUnreadable, "%v", err)
	}
	return &Workbook{file: f}, nil
}

func (w *Workbook) Path() string { return w.path }

func (w *Workbook) SheetNames() []string {
	return w.file.GetSheetList()
}

// Sheet loads the named sheet. ok is false (with a nil error) when the
// workbook has no sheet by that name.
func (w *Workbook) Sheet(name string) (*Sheet, bool, error) {
	if idx, err := w.file.GetSheetIndex(name); err != nil || idx < 0 {
		return nil, false, nil
	}

	raw, err := w.file.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, false, errors.Wrapf(err, "read sheet %q", name)
	}

	dates := w.dateStyles()
	rows := make([][]Cell, len(raw))
	for r, values := range raw {
		cells := make([]Cell, len(values))
		for c, v := range values {
			if v == "" {
				continue
			}
			ref, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, false, errors.Wrapf(err, "sheet %q", name)
			}
			typ, err := w.file.GetCellType(name, ref)
			if err != nil {
				return nil, false, errors.Wrapf(err, "sheet %q cell %s", name, ref)
			}
			cell := resolveCell(typ, v)
			if cell.Kind() == KindNumber {
				isDate, err := dates.isDate(name, ref)
				if err != nil {
					return nil, false, errors.Wrapf(err, "sheet %q cell %s", name, ref)
				}
				if isDate {
					cell = dateFromSerial(cell.num, dates.date1904)
				}
			}
			cells[c] = cell
		}
		rows[r] = cells
	}
	return &Sheet{name: name, rows: rows}, true, nil
}

// dateStyles remembers, per style id, whether the style formats a number as
// a date. Spreadsheets store dates as serial numbers plus such a style.
type dateStyles struct {
	file     *excelize.File
	date1904 bool
	byStyle  map[int]bool
}

func (w *Workbook) dateStyles() *dateStyles {
	d := &dateStyles{file: w.file, byStyle: make(map[int]bool)}
	if props, err := w.file.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		d.date1904 = *props.Date1904
	}
	return d
}

func (d *dateStyles) isDate(sheet, ref string) (bool, error) {
	id, err := d.file.GetCellStyle(sheet, ref)
	if err != nil {
		return false, err
	}
	if isDate, ok := d.byStyle[id]; ok {
		return isDate, nil
	}
	style, err := d.file.GetStyle(id)
	if err != nil {
		return false, err
	}
	isDate := false
	if style != nil {
		isDate = builtinDateFormats[style.NumFmt]
		if style.CustomNumFmt != nil {
			isDate = isDateFormatCode(*style.CustomNumFmt)
		}
	}
	d.byStyle[id] = isDate
	return isDate, nil
}

// builtinDateFormats are the built-in number format ids that render dates or
// times, including the East Asian locale variants.
var builtinDateFormats = func() map[int]bool {
	m := make(map[int]bool)
	for _, r := range [][2]int{{14, 22}, {27, 36}, {45, 47}, {50, 58}} {
		for id := r[0]; id <= r[1]; id++ {
			m[id] = true
		}
	}
	return m
}()

// isDateFormatCode reports whether a custom format code uses date or time
// tokens outside quoted literals, escapes and bracketed modifiers. Elapsed
// time sections such as [h] count as time.
func isDateFormatCode(code string) bool {
	section, _, _ := strings.Cut(code, ";")
	for i := 0; i < len(section); i++ {
		switch ch := section[i]; ch {
		case '"':
			if end := strings.IndexByte(section[i+1:], '"'); end >= 0 {
				i += end + 1
			} else {
				return false
			}
		case '\\', '_', '*':
			i++
		case '[':
			end := strings.IndexByte(section[i:], ']')
			if end < 0 {
				return false
			}
			inner := strings.ToLower(section[i+1 : i+end])
			if inner != "" && strings.Trim(inner, "hms") == "" {
				return true
			}
			i += end
		default:
			switch ch | 0x20 {
			case 'y', 'm', 'd', 'h', 's':
				return true
			}
		}
	}
	return false
}

func dateFromSerial(serial float64, date1904 bool) Cell {
	t, err := excelize.ExcelDateToTime(serial, date1904)
	if err != nil {
		return NumberCell(serial)
	}
	return DateCell(t)
}

func (w *Workbook) Close() error {
	return w.file.Close()
}

// resolveCell maps an excelize raw value to a Cell. Formula cells arrive with
// their cached result; shared and inline strings (including rich text runs)
// arrive already flattened.
func resolveCell(typ excelize.CellType, raw string) Cell {
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		if n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return NumberCell(n)
		}
		return StringCell(raw)
	case excelize.CellTypeBool:
		switch raw {
		case "1":
			return StringCell("TRUE")
		case "0":
			return StringCell("FALSE")
		}
		return StringCell(raw)
	case excelize.CellTypeDate:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return DateCell(t)
			}
		}
		return StringCell(raw)
	default:
		// formula string results, shared/inline strings, error values
		return StringCell(raw)
	}
}
