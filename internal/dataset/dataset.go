// Package dataset is the in-memory tabular model shared by every cleaning module.
// A Dataset is immutable: all operators return a new Dataset and leave the
// receiver untouched so earlier snapshots stay valid for audit and undo.
package dataset

import (
	"fmt"

	"github.com/KaramelBytes/surveyloom-cli/internal/apperr"
)

// layout is the immutable column set shared by datasets with identical columns.
type layout struct {
	columns []Column
	index   map[string]int
}

func newLayout(cols []Column) (*layout, error) {
	l := &layout{columns: make([]Column, len(cols)), index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if c.Name == "" {
			return nil, apperr.New(apperr.InvalidParameter, "column %d has an empty name", i+1)
		}
		if _, dup := l.index[c.Name]; dup {
			return nil, apperr.New(apperr.InvalidParameter, "duplicate column name").WithColumn(c.Name)
		}
		if c.Type == "" {
			c.Type = TypeText
		}
		if c.Role == "" {
			c.Role = RoleResponse
		}
		if !c.Type.Valid() {
			return nil, apperr.New(apperr.InvalidParameter, "unknown column type %q", c.Type).WithColumn(c.Name)
		}
		if !c.Role.Valid() {
			return nil, apperr.New(apperr.InvalidParameter, "unknown column role %q", c.Role).WithColumn(c.Name)
		}
		l.columns[i] = c
		l.index[c.Name] = i
	}
	return l, nil
}

// Row is one respondent. Index is the row's position in the originally
// ingested dataset and survives filtering, so it doubles as a stable identity.
type Row struct {
	Index  int
	cells  []Cell
	layout *layout
}

// Cell returns the named cell.
func (r Row) Cell(name string) (Cell, bool) {
	i, ok := r.layout.index[name]
	if !ok {
		return Cell{}, false
	}
	return r.cells[i], true
}

// Cells returns a copy of the row's cells in column order.
func (r Row) Cells() []Cell {
	out := make([]Cell, len(r.cells))
	copy(out, r.cells)
	return out
}

// Value returns the typed value of the named cell, or nil for a missing cell.
func (r Row) Value(name string) (any, error) {
	i, ok := r.layout.index[name]
	if !ok {
		return nil, apperr.New(apperr.UnknownColumn, "no such column").WithColumn(name)
	}
	c := r.cells[i]
	if !c.Valid {
		return nil, nil
	}
	col := r.layout.columns[i]
	v, err := Coerce(c.Raw, col.Type)
	if err != nil {
		return nil, mismatch(col, c.Raw, err)
	}
	return v, nil
}

// Float returns the numeric value of the named cell. ok is false for a missing
// cell. Columns whose declared type is not numeric fail with UnsupportedColumnType.
func (r Row) Float(name string) (x float64, ok bool, err error) {
	i, found := r.layout.index[name]
	if !found {
		return 0, false, apperr.New(apperr.UnknownColumn, "no such column").WithColumn(name)
	}
	col := r.layout.columns[i]
	if !col.Type.Numeric() {
		return 0, false, apperr.New(apperr.UnsupportedColumnType, "column is %s, not numeric", col.Type).WithColumn(name)
	}
	c := r.cells[i]
	if !c.Valid {
		return 0, false, nil
	}
	v, err := Coerce(c.Raw, col.Type)
	if err != nil {
		return 0, false, mismatch(col, c.Raw, err)
	}
	return v.(float64), true, nil
}

// Dataset is an ordered column set plus ordered rows.
type Dataset struct {
	layout *layout
	rows   []Row
}

// New builds a Dataset from column definitions and raw records. Short records
// are padded with explicit missing cells; records wider than the header fail.
func New(columns []Column, records [][]string) (*Dataset, error) {
	l, err := newLayout(columns)
	if err != nil {
		return nil, err
	}
	d := &Dataset{layout: l, rows: make([]Row, len(records))}
	for i, rec := range records {
		if len(rec) > len(columns) {
			return nil, apperr.New(apperr.InvalidParameter, "row %d has %d cells, header has %d", i+1, len(rec), len(columns))
		}
		cells := make([]Cell, len(columns))
		for j := range cells {
			if j < len(rec) {
				cells[j] = Text(rec[j])
			}
		}
		d.rows[i] = Row{Index: i, cells: cells, layout: l}
	}
	return d, nil
}

// FromHeader builds a Dataset whose columns are untyped text/response columns.
// Schema configuration later assigns real types and roles.
func FromHeader(header []string, records [][]string) (*Dataset, error) {
	cols := make([]Column, len(header))
	for i, h := range header {
		cols[i] = Column{Name: h, Type: TypeText, Role: RoleResponse}
	}
	return New(cols, records)
}

// Columns returns a copy of the column definitions.
func (d *Dataset) Columns() []Column {
	out := make([]Column, len(d.layout.columns))
	copy(out, d.layout.columns)
	return out
}

// Header returns the column names in order.
func (d *Dataset) Header() []string {
	out := make([]string, len(d.layout.columns))
	for i, c := range d.layout.columns {
		out[i] = c.Name
	}
	return out
}

// Column looks up a column definition by name.
func (d *Dataset) Column(name string) (Column, bool) {
	i, ok := d.layout.index[name]
	if !ok {
		return Column{}, false
	}
	return d.layout.columns[i], true
}

// HasColumn reports whether the dataset contains the named column.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.layout.index[name]
	return ok
}

// ColumnsByRole returns the names of columns with the given role, in column order.
func (d *Dataset) ColumnsByRole(roles ...Role) []string {
	var out []string
	for _, c := range d.layout.columns {
		for _, r := range roles {
			if c.Role == r {
				out = append(out, c.Name)
				break
			}
		}
	}
	return out
}

// Len is the row count.
func (d *Dataset) Len() int { return len(d.rows) }

// Row returns the i-th row (0-based, current order).
func (d *Dataset) Row(i int) Row { return d.rows[i] }

// Rows returns the rows in order. Rows are values and do not alias the dataset.
func (d *Dataset) Rows() []Row {
	out := make([]Row, len(d.rows))
	copy(out, d.rows)
	return out
}

// Cell returns the cell at row i, column name.
func (d *Dataset) Cell(i int, name string) (Cell, error) {
	if i < 0 || i >= len(d.rows) {
		return Cell{}, apperr.New(apperr.InvalidParameter, "row %d out of range", i)
	}
	c, ok := d.rows[i].Cell(name)
	if !ok {
		return Cell{}, apperr.New(apperr.UnknownColumn, "no such column").WithColumn(name)
	}
	return c, nil
}

// Value returns the typed value at row i, column name. See Row.Value.
func (d *Dataset) Value(i int, name string) (any, error) {
	if i < 0 || i >= len(d.rows) {
		return nil, apperr.New(apperr.InvalidParameter, "row %d out of range", i)
	}
	return d.rows[i].Value(name)
}

// Select returns a new Dataset with only the named columns, in the given order,
// keeping row order.
func (d *Dataset) Select(names ...string) (*Dataset, error) {
	cols := make([]Column, len(names))
	idx := make([]int, len(names))
	for k, n := range names {
		i, ok := d.layout.index[n]
		if !ok {
			return nil, apperr.New(apperr.UnknownColumn, "cannot select").WithColumn(n)
		}
		cols[k] = d.layout.columns[i]
		idx[k] = i
	}
	l, err := newLayout(cols)
	if err != nil {
		return nil, err
	}
	out := &Dataset{layout: l, rows: make([]Row, len(d.rows))}
	for r, row := range d.rows {
		cells := make([]Cell, len(idx))
		for k, i := range idx {
			cells[k] = row.cells[i]
		}
		out.rows[r] = Row{Index: row.Index, cells: cells, layout: l}
	}
	return out, nil
}

// Filter returns a new Dataset with the rows for which keep returns true,
// preserving column and row order.
func (d *Dataset) Filter(keep func(Row) bool) *Dataset {
	out := &Dataset{layout: d.layout, rows: make([]Row, 0, len(d.rows))}
	for _, row := range d.rows {
		if keep(row) {
			out.rows = append(out.rows, row)
		}
	}
	return out
}

// Edit replaces one cell. Row is the current 0-based position.
type Edit struct {
	Row    int
	Column string
	Value  Cell
}

// Apply returns a new Dataset with the edits applied. Only edited rows are copied.
func (d *Dataset) Apply(edits []Edit) (*Dataset, error) {
	out := &Dataset{layout: d.layout, rows: make([]Row, len(d.rows))}
	copy(out.rows, d.rows)
	copied := make(map[int]bool)
	for _, e := range edits {
		if e.Row < 0 || e.Row >= len(out.rows) {
			return nil, apperr.New(apperr.InvalidParameter, "edit row %d out of range", e.Row)
		}
		j, ok := d.layout.index[e.Column]
		if !ok {
			return nil, apperr.New(apperr.UnknownColumn, "cannot edit").WithColumn(e.Column)
		}
		if !copied[e.Row] {
			out.rows[e.Row].cells = out.rows[e.Row].Cells()
			copied[e.Row] = true
		}
		out.rows[e.Row].cells[j] = e.Value
	}
	return out, nil
}

// Configure returns a new Dataset with types and roles from specs applied.
// Columns not named in specs keep their current definition.
func (d *Dataset) Configure(specs map[string]ColumnSpec) (*Dataset, error) {
	for name := range specs {
		if !d.HasColumn(name) {
			return nil, apperr.New(apperr.UnknownColumn, "schema references a column not in the dataset").WithColumn(name)
		}
	}
	cols := d.Columns()
	for i, c := range cols {
		spec, ok := specs[c.Name]
		if !ok {
			continue
		}
		if spec.Type != "" {
			cols[i].Type = spec.Type
		}
		if spec.Role != "" {
			cols[i].Role = spec.Role
		}
	}
	l, err := newLayout(cols)
	if err != nil {
		return nil, err
	}
	out := &Dataset{layout: l, rows: make([]Row, len(d.rows))}
	for i, row := range d.rows {
		out.rows[i] = Row{Index: row.Index, cells: row.cells, layout: l}
	}
	return out, nil
}

// Records renders the rows as raw strings (missing cells as "").
func (d *Dataset) Records() [][]string {
	out := make([][]string, len(d.rows))
	for i, row := range d.rows {
		rec := make([]string, len(row.cells))
		for j, c := range row.cells {
			rec[j] = c.String()
		}
		out[i] = rec
	}
	return out
}

// Indices returns each row's original index, in current order.
func (d *Dataset) Indices() []int {
	out := make([]int, len(d.rows))
	for i, row := range d.rows {
		out[i] = row.Index
	}
	return out
}

// MissingCount returns how many cells of the named column are missing.
func (d *Dataset) MissingCount(name string) (int, error) {
	j, ok := d.layout.index[name]
	if !ok {
		return 0, apperr.New(apperr.UnknownColumn, "no such column").WithColumn(name)
	}
	n := 0
	for _, row := range d.rows {
		if !row.cells[j].Valid {
			n++
		}
	}
	return n, nil
}

// Floats extracts the numeric values of a column. present[i] is false where
// row i is missing.
func (d *Dataset) Floats(name string) (vals []float64, present []bool, err error) {
	vals = make([]float64, len(d.rows))
	present = make([]bool, len(d.rows))
	for i, row := range d.rows {
		x, ok, err := row.Float(name)
		if err != nil {
			return nil, nil, err
		}
		vals[i], present[i] = x, ok
	}
	return vals, present, nil
}

func (d *Dataset) String() string {
	return fmt.Sprintf("Dataset(%d rows x %d columns)", len(d.rows), len(d.layout.columns))
}
