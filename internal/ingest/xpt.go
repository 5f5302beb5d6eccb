package ingest

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/JonMunkholm/sdtm/internal/core"
)

// SAS transport v5 layout. Every header is an 80-byte record.
const (
	xptRecordLen = 80

	xptLibraryHeader = "HEADER RECORD*******LIBRARY HEADER RECORD!!!!!!!"
	xptMemberHeader  = "HEADER RECORD*******MEMBER  HEADER RECORD!!!!!!!"
	xptDescHeader    = "HEADER RECORD*******DSCRPTR HEADER RECORD!!!!!!!"
	xptNamestrHeader = "HEADER RECORD*******NAMESTR HEADER RECORD!!!!!!!"
	xptObsHeader     = "HEADER RECORD*******OBS     HEADER RECORD!!!!!!!"

	xptMemberOffset  = 3 * xptRecordLen
	xptDescOffset    = 4 * xptRecordLen
	xptNamestrOffset = 7 * xptRecordLen
	xptNamesOffset   = 8 * xptRecordLen
)

// sasEpoch is day zero for SAS date values.
var sasEpoch = time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)

// sasDateFormats mark numeric variables that hold day counts.
var sasDateFormats = []string{"DATE", "YYMMDD", "E8601DA", "MMDDYY", "DDMMYY"}

type xptVariable struct {
	name    string
	numeric bool
	length  int
	offset  int
	format  string
}

func (v xptVariable) isDate() bool {
	if !v.numeric {
		return false
	}
	for _, f := range sasDateFormats {
		if strings.HasPrefix(v.format, f) {
			return true
		}
	}
	return false
}

// parseXPT reads the first member of a SAS transport v5 file.
func parseXPT(ctx context.Context, data []byte) (*table, error) {
	if len(data) < xptNamesOffset || !bytes.HasPrefix(data, []byte(xptLibraryHeader)) {
		return nil, fmt.Errorf("malformed xpt: missing library header")
	}
	if !bytes.HasPrefix(data[xptMemberOffset:], []byte(xptMemberHeader)) {
		return nil, fmt.Errorf("malformed xpt: missing member header")
	}
	if !bytes.HasPrefix(data[xptDescOffset:], []byte(xptDescHeader)) {
		return nil, fmt.Errorf("malformed xpt: missing descriptor header")
	}
	if !bytes.HasPrefix(data[xptNamestrOffset:], []byte(xptNamestrHeader)) {
		return nil, fmt.Errorf("malformed xpt: missing namestr header")
	}

	nsLen := atoiField(data[xptMemberOffset+74 : xptMemberOffset+78])
	if nsLen <= 0 {
		nsLen = 140
	}
	// 136 is the VAX/VMS variant; the fields read below end at byte 88.
	if nsLen != 140 && nsLen != 136 {
		return nil, fmt.Errorf("malformed xpt: invalid namestr length %d", nsLen)
	}
	nvars := atoiField(data[xptNamestrOffset+54 : xptNamestrOffset+58])
	if nvars <= 0 {
		return nil, fmt.Errorf("malformed xpt: no variables")
	}

	namesEnd := xptNamesOffset + nvars*nsLen
	if namesEnd > len(data) {
		return nil, fmt.Errorf("malformed xpt: truncated namestr records")
	}

	vars := make([]xptVariable, nvars)
	rowLen := 0
	for i := range vars {
		rec := data[xptNamesOffset+i*nsLen : xptNamesOffset+(i+1)*nsLen]
		v := xptVariable{
			numeric: binary.BigEndian.Uint16(rec[0:2]) == 1,
			length:  int(binary.BigEndian.Uint16(rec[4:6])),
			name:    strings.ToUpper(strings.TrimSpace(string(rec[8:16]))),
			format:  strings.ToUpper(strings.TrimSpace(string(rec[56:64]))),
			offset:  int(binary.BigEndian.Uint32(rec[84:88])),
		}
		if v.name == "" {
			return nil, fmt.Errorf("malformed xpt: variable %d has no name", i+1)
		}
		if end := v.offset + v.length; end > rowLen {
			rowLen = end
		}
		vars[i] = v
	}

	obsStart := padTo(namesEnd, xptRecordLen)
	if obsStart+xptRecordLen > len(data) || !bytes.HasPrefix(data[obsStart:], []byte(xptObsHeader)) {
		return nil, fmt.Errorf("malformed xpt: missing observation header")
	}
	obs := data[obsStart+xptRecordLen:]
	if i := bytes.Index(obs, []byte(xptMemberHeader)); i >= 0 {
		obs = obs[:i]
	}

	tbl := &table{types: make(map[string]core.ColumnType, nvars)}
	for _, v := range vars {
		tbl.columns = append(tbl.columns, v.name)
		switch {
		case !v.numeric:
			tbl.types[v.name] = core.TypeString
		case v.isDate():
			tbl.types[v.name] = core.TypeDate
		}
	}

	if rowLen == 0 {
		return tbl, nil
	}
	for start := 0; start+rowLen <= len(obs); start += rowLen {
		rec := obs[start : start+rowLen]
		// The last record is blank-padded to a full 80 bytes.
		if len(obs)-start < xptRecordLen && isBlank(rec) {
			break
		}
		if len(tbl.rows)%1000 == 999 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		row := make(core.Row, nvars)
		for _, v := range vars {
			if val := xptValue(v, rec[v.offset:v.offset+v.length]); !val.IsNull() {
				row[v.name] = val
			}
		}
		tbl.rows = append(tbl.rows, row)
	}

	return tbl, nil
}

func xptValue(v xptVariable, raw []byte) core.Value {
	if !v.numeric {
		s := strings.TrimRight(string(raw), " \x00")
		if s == "" {
			return core.Null()
		}
		return core.Text(s)
	}

	f, ok := ibmToFloat(raw)
	if !ok {
		return core.Null()
	}
	if v.isDate() {
		return core.Date(sasEpoch.AddDate(0, 0, int(f)))
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return core.Integer(int64(f))
	}
	return core.Double(f)
}

// ibmToFloat decodes an IBM System/360 hexadecimal float, as stored by SAS
// transport files (truncated to the variable length). ok is false for SAS
// missing values.
func ibmToFloat(raw []byte) (float64, bool) {
	if len(raw) < 2 {
		return 0, false
	}
	if isSASMissing(raw) {
		return 0, false
	}

	var buf [8]byte
	copy(buf[:], raw)
	if bytes.Equal(buf[:], make([]byte, 8)) {
		return 0, true
	}

	sign := 1.0
	if buf[0]&0x80 != 0 {
		sign = -1
	}
	exp := int(buf[0]&0x7f) - 64

	var mantissa uint64
	for _, b := range buf[1:] {
		mantissa = mantissa<<8 | uint64(b)
	}
	return sign * math.Ldexp(float64(mantissa), 4*exp-56), true
}

// isSASMissing matches '.', '_' and '.A'-'.Z' encodings: the marker byte
// followed by zero bytes.
func isSASMissing(raw []byte) bool {
	c := raw[0]
	if c != '.' && c != '_' && (c < 'A' || c > 'Z') {
		return false
	}
	for _, b := range raw[1:] {
		if b != 0 {
			return false
		}
	}
	return true
}

// atoiField parses a space-padded decimal header field.
func atoiField(b []byte) int {
	n := 0
	for _, c := range bytes.TrimSpace(b) {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func padTo(n, multiple int) int {
	if r := n % multiple; r != 0 {
		return n + multiple - r
	}
	return n
}

func isBlank(b []byte) bool {
	for _, c := range b {
		if c != ' ' {
			return false
		}
	}
	return true
}
