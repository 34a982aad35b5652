package workbook

// Sheet is a loaded worksheet. Rows and columns are addressed 1-based, the
// way spreadsheet users count them.
type Sheet struct {
	name string
	rows [][]Cell
}

// NewSheet builds a sheet from already resolved cells; rows[0] is row 1.
func NewSheet(name string, rows [][]Cell) *Sheet {
	return &Sheet{name: name, rows: rows}
}

func (s *Sheet) Name() string { return s.name }

// RowCount is the number of the last populated row.
func (s *Sheet) RowCount() int { return len(s.rows) }

// Row returns the cells of a row; nil when out of range.
func (s *Sheet) Row(row int) []Cell {
	if row < 1 || row > len(s.rows) {
		return nil
	}
	return s.rows[row-1]
}

// Cell returns the cell at (row, col). Out of range positions are null.
func (s *Sheet) Cell(row, col int) Cell {
	r := s.Row(row)
	if col < 1 || col > len(r) {
		return NullCell()
	}
	return r[col-1]
}
