package ingest

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sdtm/internal/core"
)

type xptTestVar struct {
	name    string
	numeric bool
	length  int
	format  string
}

// record pads s with spaces to one 80-byte header record.
func record(s string) []byte {
	b := bytes.Repeat([]byte(" "), xptRecordLen)
	copy(b, s)
	return b
}

func floatToIBM(f float64) []byte {
	out := make([]byte, 8)
	if f == 0 {
		return out
	}
	var sign byte
	if f < 0 {
		sign = 0x80
		f = -f
	}
	exp := 0
	for f >= 1 {
		f /= 16
		exp++
	}
	for f < 1.0/16 {
		f *= 16
		exp--
	}
	mantissa := uint64(f * math.Exp2(56))
	binary.BigEndian.PutUint64(out, mantissa)
	out[0] = sign | byte(exp+64)
	return out
}

// buildXPT assembles a single-member transport file. Cells are []byte
// already sized to each variable's length.
func buildXPT(vars []xptTestVar, rows [][][]byte) []byte {
	var buf bytes.Buffer
	buf.Write(record(xptLibraryHeader + "000000000000000000000000000000"))
	buf.Write(record("SAS     SAS     SASLIB  9.4"))
	buf.Write(record("01JAN24:00:00:00"))

	member := record(xptMemberHeader + "000000000000000001600000000140")
	copy(member[74:78], "0140")
	buf.Write(member)
	buf.Write(record(xptDescHeader + "000000000000000000000000000000"))
	buf.Write(record("SAS     DM      SASDATA 9.4"))
	buf.Write(record("01JAN24:00:00:00"))

	ns := record(xptNamestrHeader + "000000")
	copy(ns[54:58], fmt.Sprintf("%04d", len(vars)))
	buf.Write(ns)

	pos := 0
	var names bytes.Buffer
	for i, v := range vars {
		rec := make([]byte, 140)
		if v.numeric {
			binary.BigEndian.PutUint16(rec[0:2], 1)
		} else {
			binary.BigEndian.PutUint16(rec[0:2], 2)
		}
		binary.BigEndian.PutUint16(rec[4:6], uint16(v.length))
		binary.BigEndian.PutUint16(rec[6:8], uint16(i+1))
		copy(rec[8:16], fmt.Sprintf("%-8s", v.name))
		copy(rec[16:56], bytes.Repeat([]byte(" "), 40))
		copy(rec[56:64], fmt.Sprintf("%-8s", v.format))
		binary.BigEndian.PutUint32(rec[84:88], uint32(pos))
		pos += v.length
		names.Write(rec)
	}
	for names.Len()%xptRecordLen != 0 {
		names.WriteByte(' ')
	}
	buf.Write(names.Bytes())

	buf.Write(record(xptObsHeader + "000000000000000000000000000000"))
	var obs bytes.Buffer
	for _, row := range rows {
		for _, cell := range row {
			obs.Write(cell)
		}
	}
	for obs.Len()%xptRecordLen != 0 {
		obs.WriteByte(' ')
	}
	buf.Write(obs.Bytes())
	return buf.Bytes()
}

func char(s string, n int) []byte {
	return []byte(fmt.Sprintf("%-*s", n, s))
}

func missing() []byte {
	b := make([]byte, 8)
	b[0] = '.'
	return b
}

func TestIBMFloatRoundTrip(t *testing.T) {
	for _, f := range []float64{1, -1, 34, 0.5, 170.25, 22000, -3.75} {
		got, ok := ibmToFloat(floatToIBM(f))
		require.True(t, ok)
		assert.InDelta(t, f, got, 1e-9, "value %v", f)
	}

	got, ok := ibmToFloat(make([]byte, 8))
	assert.True(t, ok)
	assert.Zero(t, got)

	_, ok = ibmToFloat(missing())
	assert.False(t, ok, ". is missing")
	special := make([]byte, 8)
	special[0] = 'C'
	_, ok = ibmToFloat(special)
	assert.False(t, ok, ".C is missing")
}

func TestParse_XPT(t *testing.T) {
	vars := []xptTestVar{
		{name: "STUDYID", length: 8},
		{name: "USUBJID", length: 8},
		{name: "AGE", numeric: true, length: 8},
		{name: "WEIGHT", numeric: true, length: 8},
		{name: "BRTHDT", numeric: true, length: 8, format: "DATE9"},
	}
	rows := [][][]byte{
		{char("S1", 8), char("S1-001", 8), floatToIBM(34), floatToIBM(70.5), floatToIBM(0)},
		{char("S1", 8), char("S1-002", 8), missing(), floatToIBM(82), floatToIBM(366)},
	}

	ds, err := Parse(context.Background(), "dm.xpt", buildXPT(vars, rows))
	require.NoError(t, err)

	assert.Equal(t, "DM", ds.Name())
	assert.Equal(t, "xpt", ds.Format())
	assert.Equal(t, 2, ds.RowCount(), "trailing padding is not a row")
	assert.Equal(t, []string{"STUDYID", "USUBJID", "AGE", "WEIGHT", "BRTHDT"}, ds.ColumnNames())

	age, ok := ds.Value(0, "AGE").AsInteger()
	require.True(t, ok)
	assert.Equal(t, int64(34), age)
	assert.True(t, ds.Value(1, "AGE").IsNull(), "SAS missing")

	w, ok := ds.Value(0, "WEIGHT").AsDouble()
	require.True(t, ok)
	assert.Equal(t, 70.5, w)

	d, ok := ds.Value(1, "BRTHDT").AsDate()
	require.True(t, ok)
	assert.Equal(t, time.Date(1961, 1, 1, 0, 0, 0, 0, time.UTC), d)

	typ, _ := ds.ColumnType("BRTHDT")
	assert.Equal(t, core.TypeDate, typ)
	typ, _ = ds.ColumnType("USUBJID")
	assert.Equal(t, core.TypeString, typ)
	typ, _ = ds.ColumnType("WEIGHT")
	assert.Equal(t, core.TypeDouble, typ)
}

func TestParse_XPTMalformed(t *testing.T) {
	good := buildXPT([]xptTestVar{{name: "A", length: 8}}, nil)

	withNamestrLen := func(n string) []byte {
		// Exact-size copy so out-of-record reads cannot borrow spare capacity.
		data := make([]byte, len(good))
		copy(data, good)
		copy(data[xptMemberOffset+74:xptMemberOffset+78], n)
		return data
	}

	tests := []struct {
		name    string
		data    []byte
		wantErr string
	}{
		{name: "not a transport file", data: []byte("not a transport file"), wantErr: "malformed xpt"},
		{name: "truncated namestr records", data: good[:xptNamesOffset+40], wantErr: "malformed xpt"},
		{name: "short namestr length", data: withNamestrLen("0010"), wantErr: "invalid namestr length 10"},
		{name: "odd namestr length", data: withNamestrLen("0100"), wantErr: "invalid namestr length 100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() {
				_, err = Parse(context.Background(), "dm.xpt", tt.data)
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
