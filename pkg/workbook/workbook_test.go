package workbook

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFixture(t *testing.T) string {
	t.Helper()

	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })

	_, err := f.NewSheet("2024 (GAA)")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("2024 (GAA)", "A1", "In Thousand Pesos"))
	require.NoError(t, f.SetCellValue("2024 (GAA)", "A2", "DEPARTMENT"))
	require.NoError(t, f.SetCellValue("2024 (GAA)", "K3", 200))
	require.NoError(t, f.SetCellValue("2024 (GAA)", "L3", 12.5))
	require.NoError(t, f.SetCellValue("2024 (GAA)", "M3", "120"))
	require.NoError(t, f.SetCellValue("2024 (GAA)", "N3", true))
	require.NoError(t, f.SetCellRichText("2024 (GAA)", "F3", []excelize.RichTextRun{
		{Text: "Build "},
		{Text: "a dike", Font: &excelize.Font{Bold: true}},
	}))

	path := filepath.Join(t.TempDir(), "ccet.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestOpen_ResolvesCellKinds(t *testing.T) {
	t.Parallel()

	wb, err := Open(writeFixture(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = wb.Close() })

	sheet, ok, err := wb.Sheet("2024 (GAA)")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, sheet.RowCount())

	require.Equal(t, "In Thousand Pesos", sheet.Cell(1, 1).Text())
	require.Equal(t, KindString, sheet.Cell(2, 1).Kind())

	n, ok := sheet.Cell(3, 11).Number()
	require.True(t, ok)
	require.Equal(t, 200.0, n)

	n, ok = sheet.Cell(3, 12).Number()
	require.True(t, ok)
	require.Equal(t, 12.5, n)

	// text that looks numeric stays text
	_, ok = sheet.Cell(3, 13).Number()
	require.False(t, ok)
	require.Equal(t, "120", sheet.Cell(3, 13).Text())

	require.Equal(t, "TRUE", sheet.Cell(3, 14).Text())
	require.Equal(t, "Build a dike", sheet.Cell(3, 6).Text())

	require.True(t, sheet.Cell(3, 2).IsNull())
	require.True(t, sheet.Cell(99, 99).IsNull())
}

func TestSheet_MissingIsNotAnError(t *testing.T) {
	t.Parallel()

	wb, err := Open(writeFixture(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = wb.Close() })

	sheet, ok, err := wb.Sheet("2031 (NEP)")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, sheet)
}

func TestOpen_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "missing.xlsx"))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrFileNotFound))
}

func TestOpen_Unreadable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "garbage.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip container"), 0o644))

	_, err := Open(path)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnreadable))
}

func TestResolveCell(t *testing.T) {
	t.Parallel()

	cases := []struct {
		typ  excelize.CellType
		raw  string
		kind Kind
		text string
	}{
		{excelize.CellTypeUnset, "42", KindNumber, "42"},
		{excelize.CellTypeNumber, "1.5", KindNumber, "1.5"},
		{excelize.CellTypeUnset, "n/a", KindString, "n/a"},
		{excelize.CellTypeFormula, "Subtotal", KindString, "Subtotal"},
		{excelize.CellTypeDate, "2024-01-31T00:00:00Z", KindDate, "2024-01-31"},
		{excelize.CellTypeError, "#DIV/0!", KindString, "#DIV/0!"},
		{excelize.CellTypeSharedString, "", KindNull, ""},
	}
	for _, tc := range cases {
		got := resolveCell(tc.typ, tc.raw)
		require.Equal(t, tc.kind, got.Kind(), "raw=%q", tc.raw)
		require.Equal(t, tc.text, got.Text(), "raw=%q", tc.raw)
	}
}

func TestSheet_DateFormattedNumbersAreDates(t *testing.T) {
	t.Parallel()

	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })

	const name = "2024 (GAA)"
	_, err := f.NewSheet(name)
	require.NoError(t, err)

	require.NoError(t, f.SetCellValue(name, "A1", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)))

	isoDate := "yyyy-mm-dd"
	isoStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &isoDate})
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue(name, "B1", 45322))
	require.NoError(t, f.SetCellStyle(name, "B1", "B1", isoStyle))

	builtinStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue(name, "C1", 45322))
	require.NoError(t, f.SetCellStyle(name, "C1", "C1", builtinStyle))

	days := `"Days: "0`
	daysStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &days})
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue(name, "D1", 45322))
	require.NoError(t, f.SetCellStyle(name, "D1", "D1", daysStyle))

	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue(name, "E1", 1234.5))
	require.NoError(t, f.SetCellStyle(name, "E1", "E1", moneyStyle))

	path := filepath.Join(t.TempDir(), "dates.xlsx")
	require.NoError(t, f.SaveAs(path))

	wb, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = wb.Close() })

	sheet, ok, err := wb.Sheet(name)
	require.NoError(t, err)
	require.True(t, ok)

	want := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	for col := 1; col <= 3; col++ {
		cell := sheet.Cell(1, col)
		require.Equal(t, KindDate, cell.Kind(), "col %d", col)
		got, ok := cell.Date()
		require.True(t, ok)
		require.True(t, want.Equal(got), "col %d: %s", col, got)
		_, ok = cell.Number()
		require.False(t, ok, "col %d", col)
	}

	// quoted literals do not make a format a date format
	n, ok := sheet.Cell(1, 4).Number()
	require.True(t, ok)
	require.Equal(t, 45322.0, n)

	n, ok = sheet.Cell(1, 5).Number()
	require.True(t, ok)
	require.Equal(t, 1234.5, n)
}

func TestIsDateFormatCode(t *testing.T) {
	t.Parallel()

	for code, want := range map[string]bool{
		"yyyy-mm-dd":          true,
		"d-mmm":               true,
		"[h]:mm":              true,
		"[$-409]mmmm d, yyyy": true,
		"hh:mm AM/PM":         true,
		"#,##0.00":            false,
		`"Total: "0`:          false,
		"General":             false,
		"[Red]0.00":           false,
		`0.00\d`:              false,
		"#,##0;[Red]-#,##0":   false,
		"0.00E+00":            false,
	} {
		require.Equal(t, want, isDateFormatCode(code), code)
	}
}

// writeFormulaFixture saves a workbook whose first sheet holds formula cells
// with cached results, the way Excel stores them after a recalculation.
func writeFormulaFixture(t *testing.T) string {
	t.Helper()

	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "placeholder"))

	var saved bytes.Buffer
	require.NoError(t, f.Write(&saved))

	src, err := zip.NewReader(bytes.NewReader(saved.Bytes()), int64(saved.Len()))
	require.NoError(t, err)

	sheetData := regexp.MustCompile(`(?s)<sheetData>.*</sheetData>|<sheetData/>`)
	formulas := `<sheetData><row r="1">` +
		`<c r="A1"><f>50+50</f><v>100</v></c>` +
		`<c r="B1" t="str"><f>"a"&amp;"b"</f><v>ab</v></c>` +
		`<c r="C1" t="e"><f>1/0</f><v>#DIV/0!</v></c>` +
		`<c r="D1"><f>SUM(A1:A1)</f></c>` +
		`</row></sheetData>`

	var out bytes.Buffer
	dst := zip.NewWriter(&out)
	for _, entry := range src.File {
		r, err := entry.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(r)
		require.NoError(t, err)
		require.NoError(t, r.Close())

		if entry.Name == "xl/worksheets/sheet1.xml" {
			require.True(t, sheetData.Match(body))
			body = sheetData.ReplaceAll(body, []byte(formulas))
		}
		w, err := dst.Create(entry.Name)
		require.NoError(t, err)
		_, err = w.Write(body)
		require.NoError(t, err)
	}
	require.NoError(t, dst.Close())

	path := filepath.Join(t.TempDir(), "formulas.xlsx")
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o644))
	return path
}

func TestSheet_FormulaCellsUseCachedResult(t *testing.T) {
	t.Parallel()

	wb, err := Open(writeFormulaFixture(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = wb.Close() })

	sheet, ok, err := wb.Sheet("Sheet1")
	require.NoError(t, err)
	require.True(t, ok)

	numeric := sheet.Cell(1, 1)
	require.Equal(t, KindNumber, numeric.Kind())
	n, ok := numeric.Number()
	require.True(t, ok)
	require.Equal(t, 100.0, n)

	text := sheet.Cell(1, 2)
	require.Equal(t, KindString, text.Kind())
	require.Equal(t, "ab", text.Text())

	require.Equal(t, KindString, sheet.Cell(1, 3).Kind())
	require.Equal(t, "#DIV/0!", sheet.Cell(1, 3).Text())

	// a formula without a cached value reads as empty
	require.True(t, sheet.Cell(1, 4).IsNull())
}
