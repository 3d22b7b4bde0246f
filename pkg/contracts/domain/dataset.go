package domain

import (
	"fmt"
	"strings"
)

// Schema is an ordered, duplicate-free list of field names.
type Schema struct {
	fields []string
	index  map[string]int
}

// NewSchema builds a schema from an ordered field list.
func NewSchema(fields ...string) (*Schema, error) {
	s := &Schema{
		fields: make([]string, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if strings.TrimSpace(f) == "" {
			return nil, fmt.Errorf("field %d has an empty name", i)
		}
		if _, dup := s.index[f]; dup {
			return nil, fmt.Errorf("duplicate field %q", f)
		}
		s.fields[i] = f
		s.index[f] = i
	}
	return s, nil
}

// Fields returns a copy of the ordered field names.
func (s *Schema) Fields() []string {
	out := make([]string, len(s.fields))
	copy(out, s.fields)
	return out
}

// Len returns the number of fields.
func (s *Schema) Len() int { return len(s.fields) }

// Index returns the position of name.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Has reports whether name is declared.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Rename returns a schema with from renamed to to, keeping its position.
func (s *Schema) Rename(from, to string) (*Schema, error) {
	i, ok := s.index[from]
	if !ok {
		return nil, fmt.Errorf("field %q not declared", from)
	}
	fields := s.Fields()
	fields[i] = to
	return NewSchema(fields...)
}

// Extend returns a schema with names appended.
func (s *Schema) Extend(names ...string) (*Schema, error) {
	return NewSchema(append(s.Fields(), names...)...)
}

// Dataset is an immutable, column-oriented table of records sharing one
// schema. Every transforming operation returns a new Dataset; columns that
// are not touched are shared between versions and never written to.
type Dataset struct {
	schema *Schema
	cols   [][]Value
	n      int
}

// NewDataset builds a dataset from row-oriented values. Rows shorter than the
// schema are padded with Null; longer rows are rejected.
func NewDataset(schema *Schema, rows [][]Value) (*Dataset, error) {
	width := schema.Len()
	cols := make([][]Value, width)
	for c := range cols {
		cols[c] = make([]Value, len(rows))
	}
	for r, row := range rows {
		if len(row) > width {
			return nil, fmt.Errorf("row %d has %d cells, schema declares %d fields", r, len(row), width)
		}
		for c, v := range row {
			cols[c][r] = v
		}
	}
	return &Dataset{schema: schema, cols: cols, n: len(rows)}, nil
}

// Schema returns the dataset schema.
func (d *Dataset) Schema() *Schema { return d.schema }

// Len returns the number of records.
func (d *Dataset) Len() int { return d.n }

// Fields is shorthand for Schema().Fields().
func (d *Dataset) Fields() []string { return d.schema.Fields() }

// Record returns a read-only view of record i.
func (d *Dataset) Record(i int) Record {
	return Record{ds: d, row: i}
}

// Column returns a copy of the named column.
func (d *Dataset) Column(name string) ([]Value, error) {
	i, ok := d.schema.Index(name)
	if !ok {
		return nil, fmt.Errorf("field %q not declared", name)
	}
	out := make([]Value, d.n)
	copy(out, d.cols[i])
	return out, nil
}

// Value returns the cell at (row, field). Undeclared fields yield Null.
func (d *Dataset) Value(row int, field string) Value {
	i, ok := d.schema.Index(field)
	if !ok || row < 0 || row >= d.n {
		return Null()
	}
	return d.cols[i][row]
}

// WithColumn returns a new dataset with field appended.
func (d *Dataset) WithColumn(field string, values []Value) (*Dataset, error) {
	if len(values) != d.n {
		return nil, fmt.Errorf("column %q has %d values, dataset has %d records", field, len(values), d.n)
	}
	schema, err := d.schema.Extend(field)
	if err != nil {
		return nil, err
	}
	cols := make([][]Value, len(d.cols), len(d.cols)+1)
	copy(cols, d.cols)
	return &Dataset{schema: schema, cols: append(cols, cloneValues(values)), n: d.n}, nil
}

// ReplaceColumn returns a new dataset where field holds values.
func (d *Dataset) ReplaceColumn(field string, values []Value) (*Dataset, error) {
	i, ok := d.schema.Index(field)
	if !ok {
		return nil, fmt.Errorf("field %q not declared", field)
	}
	if len(values) != d.n {
		return nil, fmt.Errorf("column %q has %d values, dataset has %d records", field, len(values), d.n)
	}
	cols := make([][]Value, len(d.cols))
	copy(cols, d.cols)
	cols[i] = cloneValues(values)
	return &Dataset{schema: d.schema, cols: cols, n: d.n}, nil
}

// Rename returns a new dataset with from renamed to to.
func (d *Dataset) Rename(from, to string) (*Dataset, error) {
	schema, err := d.schema.Rename(from, to)
	if err != nil {
		return nil, err
	}
	return &Dataset{schema: schema, cols: d.cols, n: d.n}, nil
}

// Select returns a new dataset restricted to fields, in the given order.
func (d *Dataset) Select(fields ...string) (*Dataset, error) {
	schema, err := NewSchema(fields...)
	if err != nil {
		return nil, err
	}
	cols := make([][]Value, len(fields))
	for j, f := range fields {
		i, ok := d.schema.Index(f)
		if !ok {
			return nil, fmt.Errorf("field %q not declared", f)
		}
		cols[j] = d.cols[i]
	}
	return &Dataset{schema: schema, cols: cols, n: d.n}, nil
}

// Rows returns a row-oriented copy of the data.
func (d *Dataset) Rows() [][]Value {
	rows := make([][]Value, d.n)
	for r := range rows {
		row := make([]Value, len(d.cols))
		for c := range d.cols {
			row[c] = d.cols[c][r]
		}
		rows[r] = row
	}
	return rows
}

// Split returns the dataset in split orientation: a column manifest, a row
// index and row-oriented data.
func (d *Dataset) Split() SplitFrame {
	index := make([]int, d.n)
	for i := range index {
		index[i] = i
	}
	return SplitFrame{Columns: d.Fields(), Index: index, Data: d.Rows()}
}

// SplitFrame is the serialized form of a dataset sent to chart collaborators.
type SplitFrame struct {
	Columns []string  `json:"columns"`
	Index   []int     `json:"index"`
	Data    [][]Value `json:"data"`
}

// Record is a read-only view of one dataset row.
type Record struct {
	ds  *Dataset
	row int
}

// Get returns the value of field, or Null when the field is not declared.
func (r Record) Get(field string) Value { return r.ds.Value(r.row, field) }

// Index returns the record position in its dataset.
func (r Record) Index() int { return r.row }

// Values returns a copy of the record in schema order.
func (r Record) Values() []Value {
	out := make([]Value, len(r.ds.cols))
	for c := range r.ds.cols {
		out[c] = r.ds.cols[c][r.row]
	}
	return out
}

// Table is raw tabular input: ordered column names and rows of cells as
// produced by an upload decoder.
type Table struct {
	Columns []string
	Rows    [][]Value
}

// Dataset converts the table into a dataset with the column order as schema.
func (t *Table) Dataset() (*Dataset, error) {
	schema, err := NewSchema(t.Columns...)
	if err != nil {
		return nil, err
	}
	return NewDataset(schema, t.Rows)
}

func cloneValues(values []Value) []Value {
	out := make([]Value, len(values))
	copy(out, values)
	return out
}
