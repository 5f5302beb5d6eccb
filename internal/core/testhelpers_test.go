package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// newDataset builds a dataset whose column types are inferred from the
// first non-null value seen for each column.
func newDataset(t *testing.T, name, domain string, columns []string, rows ...Row) *ParsedDataset {
	t.Helper()
	cols := make([]Column, len(columns))
	for i, c := range columns {
		cols[i] = Column{Name: c, Type: TypeString}
		for _, r := range rows {
			if typ, ok := r[c].ColumnType(); ok {
				cols[i].Type = typ
				break
			}
		}
	}
	ds, err := NewParsedDataset(DatasetSpec{Name: name, Domain: domain, Columns: cols, Rows: rows})
	require.NoError(t, err)
	return ds
}
