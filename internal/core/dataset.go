package core

// dataset.go defines ParsedDataset, the normalized in-memory form of one
// uploaded tabular file.
//
// Datasets are built once by the parsing layer through NewParsedDataset and
// are read-only afterwards: fields are unexported and accessors never hand out
// the internal row maps, so rules cannot mutate what other rules will see.

import (
	"fmt"
	"strings"
)

// ColumnType is the inferred scalar type of a column.
type ColumnType string

const (
	TypeString  ColumnType = "string"
	TypeInteger ColumnType = "integer"
	TypeDouble  ColumnType = "double"
	TypeBoolean ColumnType = "boolean"
	TypeDate    ColumnType = "date"
)

// DatatypeNumeric is the expected-type label satisfied by integer and
// double columns alike.
const DatatypeNumeric = "numeric"

// ParseColumnType converts a type label into a ColumnType.
func ParseColumnType(s string) (ColumnType, bool) {
	switch ColumnType(strings.ToLower(strings.TrimSpace(s))) {
	case TypeString:
		return TypeString, true
	case TypeInteger:
		return TypeInteger, true
	case TypeDouble:
		return TypeDouble, true
	case TypeBoolean:
		return TypeBoolean, true
	case TypeDate:
		return TypeDate, true
	default:
		return "", false
	}
}

// Column is one named, typed column in declaration order.
type Column struct {
	Name string
	Type ColumnType
}

// Row maps column names to cell values. Rows may be sparse.
type Row map[string]Value

// DatasetSpec carries the parser output used to build a ParsedDataset.
type DatasetSpec struct {
	Name    string
	Domain  string
	Format  string
	Columns []Column
	Rows    []Row
}

// ParsedDataset is an immutable tabular dataset.
type ParsedDataset struct {
	name    string
	domain  string
	format  string
	columns []Column
	index   map[string]int
	rows    []Row
}

// NewParsedDataset validates spec and builds a dataset from it.
// The name and domain are upper-cased. Every key used in a row must be a
// declared column, and column names must be unique.
func NewParsedDataset(spec DatasetSpec) (*ParsedDataset, error) {
	name := strings.ToUpper(strings.TrimSpace(spec.Name))
	if name == "" {
		return nil, fmt.Errorf("dataset name is required")
	}

	ds := &ParsedDataset{
		name:    name,
		domain:  strings.ToUpper(strings.TrimSpace(spec.Domain)),
		format:  spec.Format,
		columns: make([]Column, len(spec.Columns)),
		index:   make(map[string]int, len(spec.Columns)),
		rows:    make([]Row, len(spec.Rows)),
	}

	for i, col := range spec.Columns {
		if col.Name == "" {
			return nil, fmt.Errorf("dataset %s: column %d has no name", name, i+1)
		}
		if _, dup := ds.index[col.Name]; dup {
			return nil, fmt.Errorf("dataset %s: duplicate column %q", name, col.Name)
		}
		ds.index[col.Name] = i
		ds.columns[i] = col
	}

	for i, row := range spec.Rows {
		copied := make(Row, len(row))
		for key, val := range row {
			if _, ok := ds.index[key]; !ok {
				return nil, fmt.Errorf("dataset %s: row %d references undeclared column %q", name, i+1, key)
			}
			copied[key] = val
		}
		ds.rows[i] = copied
	}

	return ds, nil
}

// Name returns the normalized dataset name.
func (d *ParsedDataset) Name() string { return d.name }

// Domain returns the SDTM domain code, or "" if none was inferred.
func (d *ParsedDataset) Domain() string { return d.domain }

// Format returns the source format label (csv, xpt, parquet), if known.
func (d *ParsedDataset) Format() string { return d.format }

// RowCount returns the number of rows.
func (d *ParsedDataset) RowCount() int { return len(d.rows) }

// ColumnCount returns the number of declared columns.
func (d *ParsedDataset) ColumnCount() int { return len(d.columns) }

// Columns returns a copy of the ordered column list.
func (d *ParsedDataset) Columns() []Column {
	out := make([]Column, len(d.columns))
	copy(out, d.columns)
	return out
}

// ColumnNames returns the column names in declaration order.
func (d *ParsedDataset) ColumnNames() []string {
	out := make([]string, len(d.columns))
	for i, c := range d.columns {
		out[i] = c.Name
	}
	return out
}

// HasColumn reports whether a column with exactly this name exists.
func (d *ParsedDataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// ColumnType returns the inferred type of a column.
func (d *ParsedDataset) ColumnType(name string) (ColumnType, bool) {
	i, ok := d.index[name]
	if !ok {
		return "", false
	}
	return d.columns[i].Type, true
}

// Value returns the cell at (row, column). Missing cells are null.
// Rows are 0-based here; findings report them 1-based.
func (d *ParsedDataset) Value(row int, column string) Value {
	if row < 0 || row >= len(d.rows) {
		return Null()
	}
	return d.rows[row][column]
}

// Row returns a copy of one row.
func (d *ParsedDataset) Row(i int) Row {
	if i < 0 || i >= len(d.rows) {
		return nil
	}
	out := make(Row, len(d.rows[i]))
	for k, v := range d.rows[i] {
		out[k] = v
	}
	return out
}

// Descriptor summarizes the dataset for run summaries and reports.
func (d *ParsedDataset) Descriptor() DatasetDescriptor {
	return DatasetDescriptor{
		Name:        d.name,
		Domain:      d.domain,
		Format:      d.format,
		RowCount:    len(d.rows),
		ColumnCount: len(d.columns),
	}
}

// IsDomain reports whether the dataset belongs to the given domain code.
func (d *ParsedDataset) IsDomain(code string) bool {
	return d.domain != "" && strings.EqualFold(d.domain, code)
}
