package core

// checks.go holds the rule categories shared by code rules and the
// metadata-driven dataset check. Each constructor returns a self-contained
// Rule; the unexported helpers are the pure scans both paths reuse.

import (
	"fmt"
	"strconv"
	"strings"
)

const keyDelimiter = "|"

// RequireDomain fails when no input dataset belongs to domain.
// message should name the standard the domain is mandated by.
func RequireDomain(id, domain, message, reference string, severity Severity) Rule {
	domain = strings.ToUpper(domain)
	return Rule{
		ID:        id,
		Title:     domain + " domain must be present",
		Severity:  severity,
		Reference: reference,
		Apply: func(datasets []*ParsedDataset) ([]Finding, error) {
			if len(datasetsFor(datasets, domain)) > 0 {
				return nil, nil
			}
			return []Finding{{
				Domain:   domain,
				Severity: severity,
				Message:  message,
			}}, nil
		},
	}
}

// RequireVariables emits one error per dataset of domain listing every
// missing variable. An absent domain produces nothing.
func RequireVariables(id, domain string, variables []string, reference, recommendation string) Rule {
	domain = strings.ToUpper(domain)
	return Rule{
		ID:             id,
		Title:          domain + " required variables",
		Severity:       SeverityError,
		Reference:      reference,
		Recommendation: recommendation,
		Apply: func(datasets []*ParsedDataset) ([]Finding, error) {
			var out []Finding
			for _, ds := range datasetsFor(datasets, domain) {
				missing := missingColumns(ds, variables)
				if len(missing) == 0 {
					continue
				}
				out = append(out, Finding{
					Domain:   domain,
					Variable: strings.Join(missing, ","),
					Severity: SeverityError,
					Message:  "Missing required variables: " + strings.Join(missing, ", "),
				})
			}
			return out, nil
		},
	}
}

// OptionalVariables emits one warning per missing expected variable.
func OptionalVariables(id, domain string, variables []string, reference string) Rule {
	domain = strings.ToUpper(domain)
	return Rule{
		ID:        id,
		Title:     domain + " expected variables",
		Severity:  SeverityWarning,
		Reference: reference,
		Apply: func(datasets []*ParsedDataset) ([]Finding, error) {
			var out []Finding
			for _, ds := range datasetsFor(datasets, domain) {
				for _, v := range missingColumns(ds, variables) {
					out = append(out, Finding{
						Domain:   domain,
						Variable: v,
						Severity: SeverityWarning,
						Message:  fmt.Sprintf("Expected variable %s is not present.", v),
					})
				}
			}
			return out, nil
		},
	}
}

// UniqueKey flags repeated key tuples, one error per dataset listing the
// 1-based row numbers of every repeat. First occurrences are never flagged.
func UniqueKey(id, domain string, keys []string, reference, recommendation string) Rule {
	domain = strings.ToUpper(domain)
	return Rule{
		ID:             id,
		Title:          domain + " uniqueness",
		Severity:       SeverityError,
		Reference:      reference,
		Recommendation: recommendation,
		Apply: func(datasets []*ParsedDataset) ([]Finding, error) {
			if len(keys) == 0 {
				return nil, fmt.Errorf("no key variables declared for %s", domain)
			}
			var out []Finding
			for _, ds := range datasetsFor(datasets, domain) {
				rows := duplicateRows(ds, keys)
				if len(rows) == 0 {
					continue
				}
				out = append(out, Finding{
					Domain:   domain,
					Variable: strings.Join(keys, ","),
					Severity: SeverityError,
					Message: fmt.Sprintf("Duplicate records detected for keys %s at rows %s",
						strings.Join(keys, ", "), joinInts(rows)),
				})
			}
			return out, nil
		},
	}
}

// Datatype warns when a present column's observed type does not contain
// the expected type label. DatatypeNumeric accepts integer or double.
func Datatype(id, domain, variable, expected, reference string) Rule {
	domain = strings.ToUpper(domain)
	return Rule{
		ID:        id,
		Title:     domain + "." + variable + " datatype",
		Severity:  SeverityWarning,
		Reference: reference,
		Apply: func(datasets []*ParsedDataset) ([]Finding, error) {
			var out []Finding
			for _, ds := range datasetsFor(datasets, domain) {
				observed, ok := ds.ColumnType(variable)
				if !ok || datatypeMatches(observed, expected) {
					continue
				}
				out = append(out, Finding{
					Domain:   domain,
					Variable: variable,
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("Variable %s is %s but expected %s.", variable, observed, expected),
				})
			}
			return out, nil
		},
	}
}

// ControlledTerminology emits one error per dataset listing the distinct
// values of variable outside allowed, in first-seen order. Empty values are
// exempt.
func ControlledTerminology(id, domain, variable string, allowed []string, reference, recommendation string) Rule {
	domain = strings.ToUpper(domain)
	return Rule{
		ID:             id,
		Title:          domain + "." + variable + " controlled terminology",
		Severity:       SeverityError,
		Reference:      reference,
		Recommendation: recommendation,
		Apply: func(datasets []*ParsedDataset) ([]Finding, error) {
			var out []Finding
			for _, ds := range datasetsFor(datasets, domain) {
				if !ds.HasColumn(variable) {
					continue
				}
				invalid := invalidTerms(ds, variable, allowed)
				if len(invalid) == 0 {
					continue
				}
				out = append(out, Finding{
					Domain:   domain,
					Variable: variable,
					Severity: SeverityError,
					Message:  ctMessage(invalid),
				})
			}
			return out, nil
		},
	}
}

// UppercaseVariables emits one info finding per dataset whose column names
// are not all uppercase. Row count is irrelevant.
func UppercaseVariables(id, reference, recommendation string) Rule {
	return Rule{
		ID:             id,
		Title:          "Variable names must be uppercase",
		Severity:       SeverityInfo,
		Reference:      reference,
		Recommendation: recommendation,
		Apply: func(datasets []*ParsedDataset) ([]Finding, error) {
			var out []Finding
			for _, ds := range datasets {
				if ds == nil {
					continue
				}
				violations := lowercaseColumns(ds)
				if len(violations) == 0 {
					continue
				}
				out = append(out, Finding{
					Domain:   domainOrName(ds),
					Variable: strings.Join(violations, ", "),
					Severity: SeverityInfo,
					Message:  "Variables should be uppercase: " + strings.Join(violations, ", "),
				})
			}
			return out, nil
		},
	}
}

// ============================================================================
// Scans
// ============================================================================

func missingColumns(ds *ParsedDataset, variables []string) []string {
	var missing []string
	for _, v := range variables {
		if !ds.HasColumn(v) {
			missing = append(missing, v)
		}
	}
	return missing
}

func duplicateRows(ds *ParsedDataset, keys []string) []int {
	seen := make(map[string]struct{}, ds.RowCount())
	var dups []int
	parts := make([]string, len(keys))
	for i := 0; i < ds.RowCount(); i++ {
		for k, key := range keys {
			parts[k] = ds.Value(i, key).String()
		}
		joined := strings.Join(parts, keyDelimiter)
		if _, ok := seen[joined]; ok {
			dups = append(dups, i+1)
			continue
		}
		seen[joined] = struct{}{}
	}
	return dups
}

func invalidTerms(ds *ParsedDataset, variable string, allowed []string) []string {
	permitted := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		permitted[a] = struct{}{}
	}
	reported := make(map[string]struct{})
	var invalid []string
	for i := 0; i < ds.RowCount(); i++ {
		val := ds.Value(i, variable)
		if val.IsEmpty() {
			continue
		}
		s := val.String()
		if _, ok := permitted[s]; ok {
			continue
		}
		if _, ok := reported[s]; ok {
			continue
		}
		reported[s] = struct{}{}
		invalid = append(invalid, s)
	}
	return invalid
}

// datatypeMatches is a case-insensitive substring test, so labels like
// "Char" or "integer" tolerate variants of the observed type.
func datatypeMatches(observed ColumnType, expected string) bool {
	if expected == "" {
		return true
	}
	if strings.EqualFold(expected, DatatypeNumeric) {
		return observed == TypeInteger || observed == TypeDouble
	}
	return strings.Contains(strings.ToLower(string(observed)), strings.ToLower(expected))
}

func lowercaseColumns(ds *ParsedDataset) []string {
	var out []string
	for _, name := range ds.ColumnNames() {
		if name != strings.ToUpper(name) {
			out = append(out, name)
		}
	}
	return out
}

func domainOrName(ds *ParsedDataset) string {
	if ds.Domain() != "" {
		return ds.Domain()
	}
	return ds.Name()
}

func ctMessage(invalid []string) string {
	return fmt.Sprintf("Found %d value(s) not in controlled terminology: %s.", len(invalid), strings.Join(invalid, ", "))
}

func joinInts(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}
