package standards

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/sdtm/internal/core"
)

var listSplit = regexp.MustCompile(`[,;]+`)

// Sheet and header names accepted in implementation guide workbooks.
var (
	domainSheets   = []string{"Domains", "Domain Metadata"}
	variableSheets = []string{"Variables", "Variable Metadata"}

	hdrDomain      = []string{"Domain", "DOMAIN", "Dataset Name"}
	hdrKeys        = []string{"Key Variables", "KEYVARIABLES", "Keys"}
	hdrStructure   = []string{"Structure", "STRUCTURE"}
	hdrRole        = []string{"Role", "ROLE"}
	hdrClass       = []string{"Class", "CLASS"}
	hdrDescription = []string{"Description", "DESCRIPTION", "Comment"}
	hdrVariable    = []string{"Variable Name", "VARIABLE", "Variable"}
	hdrType        = []string{"Type", "TYPE", "Data Type"}
	hdrCore        = []string{"Core", "CORE"}
	hdrCodelist    = []string{"Controlled Terms, Codelist", "Codelist", "CT", "Controlled Terms or Format"}
	hdrLength      = []string{"Length", "LENGTH"}
	hdrOrigin      = []string{"Origin", "ORIGIN"}

	hdrCode   = []string{"Code", "CDISC Submission Value", "Submission Value"}
	hdrCTList = []string{"Codelist", "Codelist Name", "Codelist Code"}
	hdrDecode = []string{"Decode", "Code Meaning", "CDISC Definition"}
)

// XLSXSource reads an implementation guide workbook with domain and
// variable metadata sheets.
type XLSXSource struct {
	Path string
}

func (s XLSXSource) Load(_ context.Context, summary core.StandardSummary) (*core.StandardDefinition, error) {
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer f.Close()
	return ParseWorkbook(f, summary)
}

// ParseWorkbook extracts domains and variables from an open workbook.
// Missing sheets yield empty lists.
func ParseWorkbook(f *excelize.File, summary core.StandardSummary) (*core.StandardDefinition, error) {
	def := &core.StandardDefinition{StandardSummary: summary}

	if sheet := findSheet(f, domainSheets); sheet != "" {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		for _, rec := range records(rows) {
			domain := rec.get(hdrDomain)
			if domain == "" {
				continue
			}
			def.Domains = append(def.Domains, core.DomainRule{
				Domain:       domain,
				KeyVariables: splitList(rec.get(hdrKeys)),
				Structure:    rec.get(hdrStructure),
				Role:         rec.get(hdrRole),
				Class:        rec.get(hdrClass),
				Comment:      rec.get(hdrDescription),
			})
		}
	}

	if sheet := findSheet(f, variableSheets); sheet != "" {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		for _, rec := range records(rows) {
			domain, variable := rec.get(hdrDomain), rec.get(hdrVariable)
			if domain == "" || variable == "" {
				continue
			}
			length, _ := strconv.Atoi(rec.get(hdrLength))
			def.Variables = append(def.Variables, core.VariableRule{
				Domain:                domain,
				Variable:              variable,
				Datatype:              rec.get(hdrType),
				Required:              strings.EqualFold(rec.get(hdrCore), "REQ"),
				Length:                length,
				ControlledTerminology: splitList(rec.get(hdrCodelist)),
				Origin:                rec.get(hdrOrigin),
				Comment:               rec.get(hdrDescription),
			})
		}
	}

	normalize(def)
	return def, nil
}

// TerminologySource reads a controlled terminology workbook. Each row of
// the first sheet with a Code and Codelist becomes a VariableRule keyed by
// (codelist, code) whose permitted values are its decodes.
type TerminologySource struct {
	Path string
}

func (s TerminologySource) Load(_ context.Context, summary core.StandardSummary) (*core.StandardDefinition, error) {
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer f.Close()
	return ParseTerminology(f, summary)
}

// ParseTerminology extracts codelist rules from the first sheet.
func ParseTerminology(f *excelize.File, summary core.StandardSummary) (*core.StandardDefinition, error) {
	def := &core.StandardDefinition{StandardSummary: summary}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return def, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	index := make(map[string]int)
	for _, rec := range records(rows) {
		code, list := rec.get(hdrCode), rec.get(hdrCTList)
		if code == "" || list == "" {
			continue
		}
		key := strings.ToUpper(list) + "." + strings.ToUpper(code)
		decode := rec.get(hdrDecode)

		if i, ok := index[key]; ok {
			if decode != "" {
				def.Variables[i].ControlledTerminology = append(def.Variables[i].ControlledTerminology, decode)
			}
			continue
		}
		rule := core.VariableRule{Domain: list, Variable: code}
		if decode != "" {
			rule.ControlledTerminology = []string{decode}
		}
		index[key] = len(def.Variables)
		def.Variables = append(def.Variables, rule)
	}

	normalize(def)
	return def, nil
}

// ============================================================================
// Sheet helpers
// ============================================================================

func findSheet(f *excelize.File, names []string) string {
	for _, sheet := range f.GetSheetList() {
		for _, n := range names {
			if strings.EqualFold(strings.TrimSpace(sheet), n) {
				return sheet
			}
		}
	}
	return ""
}

// record is one data row addressed by header name.
type record struct {
	header map[string]int
	cells  []string
}

func (r record) get(aliases []string) string {
	for _, a := range aliases {
		if i, ok := r.header[strings.ToLower(a)]; ok && i < len(r.cells) {
			if v := strings.TrimSpace(r.cells[i]); v != "" {
				return v
			}
		}
	}
	return ""
}

// records treats the first row as the header.
func records(rows [][]string) []record {
	if len(rows) == 0 {
		return nil
	}
	header := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := header[key]; !dup {
			header[key] = i
		}
	}
	out := make([]record, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		out = append(out, record{header: header, cells: cells})
	}
	return out
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range listSplit.Split(s, -1) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
