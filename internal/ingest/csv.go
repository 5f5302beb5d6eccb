package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/JonMunkholm/sdtm/internal/core"
)

// Numbers with leading zeros (subject ids like "007") stay text.
var numberPattern = regexp.MustCompile(`^[+-]?(?:0|[1-9][0-9]*)(?:\.[0-9]+)?(?:[eE][+-]?[0-9]+)?$|^[+-]?\.[0-9]+$`)

// parseCSV reads a header row followed by data rows. Input is decoded as
// UTF-8 with any BOM removed; invalid bytes become U+FFFD. Rows with no
// non-empty cell are skipped.
func parseCSV(ctx context.Context, data []byte) (*table, error) {
	decoded := transform.NewReader(bytes.NewReader(data), unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	r := csv.NewReader(decoded)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.Comma = sniffDelimiter(data)

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("invalid csv header: %w", err)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("COLUMN%d", i+1)
		}
		columns[i] = h
	}

	tbl := &table{columns: columns}
	line := 1
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("invalid csv at line %d: %w", line, err)
		}
		if line%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		row := make(core.Row, len(columns))
		for i, cell := range record {
			if i >= len(columns) {
				break
			}
			if v := typedCell(cell); !v.IsNull() {
				row[columns[i]] = v
			}
		}
		if len(row) == 0 {
			continue
		}
		tbl.rows = append(tbl.rows, row)
	}

	return tbl, nil
}

// typedCell converts CSV text into a typed value: numbers and true/false
// are typed, blanks are null, everything else stays text.
func typedCell(s string) core.Value {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return core.Null()
	}

	switch {
	case strings.EqualFold(trimmed, "true"):
		return core.Boolean(true)
	case strings.EqualFold(trimmed, "false"):
		return core.Boolean(false)
	}

	if numberPattern.MatchString(trimmed) {
		if !strings.ContainsAny(trimmed, ".eE") {
			if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
				return core.Integer(i)
			}
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return core.Double(f)
		}
	}

	return core.Text(s)
}

// sniffDelimiter picks tab for tab-separated text exports, comma otherwise.
func sniffDelimiter(data []byte) rune {
	first := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		first = data[:i]
	}
	if bytes.IndexByte(first, '\t') >= 0 && bytes.IndexByte(first, ',') < 0 {
		return '\t'
	}
	return ','
}
