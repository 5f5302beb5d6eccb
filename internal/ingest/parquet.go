package ingest

import (
	"bytes"
	"context"
	"fmt"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"

	"github.com/JonMunkholm/sdtm/internal/core"
)

const parquetBatchSize = 1024

// parseParquet reads a whole Parquet file through Arrow. Column types come
// from the Arrow schema.
func parseParquet(ctx context.Context, data []byte) (*table, error) {
	rdr, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("malformed parquet: %w", err)
	}
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{BatchSize: parquetBatchSize}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("malformed parquet: %w", err)
	}

	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	defer tbl.Release()

	nrows := int(tbl.NumRows())
	out := &table{
		types: make(map[string]core.ColumnType, tbl.NumCols()),
		rows:  make([]core.Row, nrows),
	}
	for i := range out.rows {
		out.rows[i] = make(core.Row)
	}

	schema := tbl.Schema()
	for c := 0; c < int(tbl.NumCols()); c++ {
		field := schema.Field(c)
		out.columns = append(out.columns, field.Name)
		if typ, ok := arrowColumnType(field.Type); ok {
			out.types[field.Name] = typ
		}

		offset := 0
		for _, chunk := range tbl.Column(c).Data().Chunks() {
			for i := 0; i < chunk.Len(); i++ {
				if v := arrowValue(chunk, i); !v.IsNull() {
					out.rows[offset+i][field.Name] = v
				}
			}
			offset += chunk.Len()
		}
	}

	// Match CSV: rows with no values are dropped.
	rows := out.rows[:0]
	for _, r := range out.rows {
		if len(r) > 0 {
			rows = append(rows, r)
		}
	}
	out.rows = rows

	return out, nil
}

func arrowColumnType(dt arrow.DataType) (core.ColumnType, bool) {
	switch dt.ID() {
	case arrow.STRING, arrow.LARGE_STRING, arrow.BINARY:
		return core.TypeString, true
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return core.TypeInteger, true
	case arrow.FLOAT32, arrow.FLOAT64:
		return core.TypeDouble, true
	case arrow.BOOL:
		return core.TypeBoolean, true
	case arrow.DATE32, arrow.DATE64, arrow.TIMESTAMP:
		return core.TypeDate, true
	case arrow.DICTIONARY:
		return arrowColumnType(dt.(*arrow.DictionaryType).ValueType)
	default:
		return "", false
	}
}

func arrowValue(arr arrow.Array, i int) core.Value {
	if arr.IsNull(i) {
		return core.Null()
	}

	switch a := arr.(type) {
	case *array.String:
		return textOrNull(a.Value(i))
	case *array.LargeString:
		return textOrNull(a.Value(i))
	case *array.Binary:
		return textOrNull(string(a.Value(i)))
	case *array.Int8:
		return core.Integer(int64(a.Value(i)))
	case *array.Int16:
		return core.Integer(int64(a.Value(i)))
	case *array.Int32:
		return core.Integer(int64(a.Value(i)))
	case *array.Int64:
		return core.Integer(a.Value(i))
	case *array.Uint8:
		return core.Integer(int64(a.Value(i)))
	case *array.Uint16:
		return core.Integer(int64(a.Value(i)))
	case *array.Uint32:
		return core.Integer(int64(a.Value(i)))
	case *array.Uint64:
		return core.Integer(int64(a.Value(i)))
	case *array.Float32:
		return core.Double(float64(a.Value(i)))
	case *array.Float64:
		return core.Double(a.Value(i))
	case *array.Boolean:
		return core.Boolean(a.Value(i))
	case *array.Date32:
		return core.Date(a.Value(i).ToTime())
	case *array.Date64:
		return core.Date(a.Value(i).ToTime())
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return core.Date(a.Value(i).ToTime(unit))
	case *array.Dictionary:
		return arrowValue(a.Dictionary(), a.GetValueIndex(i))
	default:
		return textOrNull(arr.ValueStr(i))
	}
}

func textOrNull(s string) core.Value {
	if s == "" {
		return core.Null()
	}
	return core.Text(s)
}
