package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParsedDataset(t *testing.T) {
	t.Run("normalizes name and domain", func(t *testing.T) {
		ds, err := NewParsedDataset(DatasetSpec{Name: " dm ", Domain: "dm", Columns: []Column{{Name: "STUDYID", Type: TypeString}}})
		require.NoError(t, err)
		assert.Equal(t, "DM", ds.Name())
		assert.Equal(t, "DM", ds.Domain())
		assert.Equal(t, 0, ds.RowCount())
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := NewParsedDataset(DatasetSpec{})
		assert.Error(t, err)
	})

	t.Run("rejects duplicate column", func(t *testing.T) {
		_, err := NewParsedDataset(DatasetSpec{
			Name:    "DM",
			Columns: []Column{{Name: "A"}, {Name: "A"}},
		})
		assert.ErrorContains(t, err, "duplicate column")
	})

	t.Run("rejects row keys outside declared columns", func(t *testing.T) {
		_, err := NewParsedDataset(DatasetSpec{
			Name:    "DM",
			Columns: []Column{{Name: "A"}},
			Rows:    []Row{{"A": Text("1"), "B": Text("2")}},
		})
		assert.ErrorContains(t, err, "undeclared column")
	})

	t.Run("sparse rows read as null", func(t *testing.T) {
		ds, err := NewParsedDataset(DatasetSpec{
			Name:    "DM",
			Columns: []Column{{Name: "A"}, {Name: "B"}},
			Rows:    []Row{{"A": Text("1")}},
		})
		require.NoError(t, err)
		assert.True(t, ds.Value(0, "B").IsNull())
		assert.True(t, ds.Value(5, "A").IsNull())
	})
}

func TestParsedDatasetIsImmutable(t *testing.T) {
	rows := []Row{{"A": Text("x")}}
	ds, err := NewParsedDataset(DatasetSpec{Name: "DM", Columns: []Column{{Name: "A"}}, Rows: rows})
	require.NoError(t, err)

	rows[0]["A"] = Text("mutated")
	assert.Equal(t, "x", ds.Value(0, "A").String())

	row := ds.Row(0)
	row["A"] = Text("mutated")
	assert.Equal(t, "x", ds.Value(0, "A").String())

	cols := ds.Columns()
	cols[0].Name = "Z"
	assert.True(t, ds.HasColumn("A"))
}

func TestValueString(t *testing.T) {
	tests := []struct {
		name string
		val  Value
		want string
	}{
		{"null", Null(), ""},
		{"text", Text("M"), "M"},
		{"integer", Integer(42), "42"},
		{"double", Double(1.5), "1.5"},
		{"whole double", Double(3), "3"},
		{"boolean", Boolean(true), "true"},
		{"date", Date(time.Date(2024, 3, 9, 15, 4, 0, 0, time.UTC)), "2024-03-09"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.val.String())
		})
	}
}

func TestValueEmptiness(t *testing.T) {
	assert.True(t, Null().IsEmpty())
	assert.True(t, Text("").IsEmpty())
	assert.False(t, Text(" ").IsEmpty())
	assert.False(t, Integer(0).IsEmpty())

	_, ok := Null().ColumnType()
	assert.False(t, ok)

	typ, ok := Double(2).ColumnType()
	assert.True(t, ok)
	assert.Equal(t, TypeDouble, typ)
}

func TestParseColumnType(t *testing.T) {
	typ, ok := ParseColumnType(" Integer ")
	assert.True(t, ok)
	assert.Equal(t, TypeInteger, typ)

	_, ok = ParseColumnType("decimal")
	assert.False(t, ok)
}
