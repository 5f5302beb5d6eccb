// Package ingest turns uploaded dataset files into core.ParsedDataset values.
//
// Supported formats are CSV/TXT, SAS transport (XPT v5) and Parquet. Each
// parser produces named columns and sparse rows of typed cells; this file
// then normalizes the dataset name, infers the SDTM domain and column types,
// and builds the immutable dataset.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/JonMunkholm/sdtm/internal/core"
)

// Format identifies a dataset file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatXPT     Format = "xpt"
	FormatParquet Format = "parquet"
)

// typeSampleSize is how many non-empty values are inspected per column.
const typeSampleSize = 10

// table is the raw parser output.
type table struct {
	columns []string
	// types holds types fixed by the file's own metadata (XPT formats,
	// Parquet schema). Columns absent here are inferred from values.
	types map[string]core.ColumnType
	rows  []core.Row
}

type parseFunc func(ctx context.Context, data []byte) (*table, error)

var parsers = map[Format]parseFunc{
	FormatCSV:     parseCSV,
	FormatXPT:     parseXPT,
	FormatParquet: parseParquet,
}

// InferFormat maps a file name to its format by extension.
func InferFormat(filename string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xpt":
		return FormatXPT, nil
	case ".parquet", ".pq":
		return FormatParquet, nil
	default:
		return "", &core.UnsupportedFormatError{FileName: filename, Extension: ext}
	}
}

// Supported reports whether filename has a recognized extension.
func Supported(filename string) bool {
	_, err := InferFormat(filename)
	return err == nil
}

// Parse decodes one file into a dataset.
func Parse(ctx context.Context, filename string, data []byte) (*core.ParsedDataset, error) {
	format, err := InferFormat(filename)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: empty file", filename)
	}

	tbl, err := parsers[format](ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	name := NormalizeName(filename)
	cols := make([]core.Column, len(tbl.columns))
	for i, c := range tbl.columns {
		typ, ok := tbl.types[c]
		if !ok {
			typ = guessType(tbl.rows, c)
		}
		cols[i] = core.Column{Name: c, Type: typ}
	}

	ds, err := core.NewParsedDataset(core.DatasetSpec{
		Name:    name,
		Domain:  InferDomain(name, tbl.rows),
		Format:  string(format),
		Columns: cols,
		Rows:    tbl.rows,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: malformed dataset: %w", filename, err)
	}
	return ds, nil
}

var (
	whitespace = regexp.MustCompile(`\s+`)
	nameChars  = regexp.MustCompile(`[^A-Za-z0-9_]`)
)

// NormalizeName strips the extension, replaces whitespace runs with "_",
// drops other punctuation and upper-cases the result.
func NormalizeName(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = whitespace.ReplaceAllString(base, "_")
	base = nameChars.ReplaceAllString(base, "")
	return strings.ToUpper(base)
}

// ============================================================================
// Domain inference
// ============================================================================

// knownDomains are the SDTM domain codes recognized in file names.
var knownDomains = map[string]bool{
	// Special purpose
	"DM": true, "CO": true, "SE": true, "SV": true, "SM": true,
	// Events
	"AE": true, "CE": true, "DS": true, "MH": true, "DV": true,
	// Interventions
	"CM": true, "EX": true, "SU": true, "PR": true, "EC": true, "ML": true,
	// Findings
	"LB": true, "VS": true, "EG": true, "PE": true, "QS": true, "SC": true,
	"MS": true, "PC": true, "PP": true, "FA": true, "IS": true, "DD": true,
	"MB": true, "MI": true, "RS": true, "TR": true, "TU": true,
	// Trial design
	"TA": true, "TE": true, "TI": true, "TS": true, "TV": true,
	// Relationship
	"RELREC": true, "RELSPEC": true, "RELSUB": true, "SUPPQUAL": true,
}

var suppName = regexp.MustCompile(`^SUPP([A-Z]{2})$`)

// IsKnownDomain reports whether code is a recognized SDTM domain.
func IsKnownDomain(code string) bool {
	return knownDomains[strings.ToUpper(code)]
}

// InferDomain picks the SDTM domain for a dataset. A DOMAIN column holding
// one non-empty value wins. Otherwise the normalized name is matched against
// known codes, SUPPxx names keep their full name, and anything else falls
// back to its first two characters.
func InferDomain(name string, rows []core.Row) string {
	if d := uniformDomainColumn(rows); d != "" {
		return d
	}

	name = strings.ToUpper(name)
	if suppName.MatchString(name) {
		return name
	}
	if knownDomains[name] {
		return name
	}
	if len(name) >= 2 && knownDomains[name[:2]] {
		return name[:2]
	}
	if len(name) > 2 {
		return name[:2]
	}
	return name
}

func uniformDomainColumn(rows []core.Row) string {
	domain := ""
	for _, row := range rows {
		v, ok := row["DOMAIN"]
		if !ok || v.IsEmpty() {
			continue
		}
		s := strings.ToUpper(strings.TrimSpace(v.String()))
		if domain == "" {
			domain = s
			continue
		}
		if s != domain {
			return ""
		}
	}
	return domain
}

// ============================================================================
// Type inference
// ============================================================================

// guessType inspects the first non-empty values of a column. Uniform kinds
// give that type, a mix of integers and doubles gives double, and anything
// else is string.
func guessType(rows []core.Row, column string) core.ColumnType {
	var seen core.ColumnType
	sampled := 0
	for _, row := range rows {
		if sampled == typeSampleSize {
			break
		}
		v := row[column]
		if v.IsEmpty() {
			continue
		}
		sampled++
		typ, _ := v.ColumnType()
		switch {
		case seen == "":
			seen = typ
		case seen == typ:
		case isNumeric(seen) && isNumeric(typ):
			seen = core.TypeDouble
		default:
			return core.TypeString
		}
	}
	if seen == "" {
		return core.TypeString
	}
	return seen
}

func isNumeric(t core.ColumnType) bool {
	return t == core.TypeInteger || t == core.TypeDouble
}
