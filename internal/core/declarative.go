package core

import (
	"context"
	"fmt"
	"strings"
)

// DeclarativeSource derives rules from a loaded StandardDefinition instead
// of from registered code. Unknown standard ids fail with the loader's
// *UnknownStandardError.
type DeclarativeSource struct {
	Loader DefinitionLoader
}

// RulesFor implements RuleSource.
func (s DeclarativeSource) RulesFor(ctx context.Context, standardID string) ([]Rule, error) {
	if s.Loader == nil {
		return nil, &UnknownStandardError{StandardID: standardID}
	}
	def, err := s.Loader.Load(ctx, standardID)
	if err != nil {
		return nil, err
	}
	return DefinitionRules(def), nil
}

// DefinitionRules wraps the metadata checks for def as a single rule that
// checks each input dataset in order.
func DefinitionRules(def *StandardDefinition) []Rule {
	id := "META-" + strings.ToUpper(def.ID)
	return []Rule{{
		ID:        id,
		Title:     def.Label() + " metadata checks",
		Severity:  SeverityError,
		Reference: def.Label(),
		Apply: func(datasets []*ParsedDataset) ([]Finding, error) {
			var out []Finding
			for _, ds := range datasets {
				if ds == nil {
					continue
				}
				out = append(out, checkAgainstDefinition(ds, def)...)
			}
			return out, nil
		},
	}}
}

// checkAgainstDefinition performs the domain catalog, key variable, and
// per-variable presence, datatype, and terminology checks for one dataset.
func checkAgainstDefinition(ds *ParsedDataset, def *StandardDefinition) []Finding {
	var out []Finding
	label := def.Label()

	dom, found := def.FindDomain(ds.Domain())
	if ds.Domain() == "" {
		found = false
	}

	if !found {
		domain := ds.Domain()
		if domain == "" {
			domain = "Unknown"
		}
		out = append(out, Finding{
			Domain:        domain,
			Severity:      SeverityError,
			Message:       fmt.Sprintf("Dataset domain %s is not defined in %s.", domainOrName(ds), label),
			RuleReference: label + " domain catalog",
		})
	} else {
		for _, key := range dom.KeyVariables {
			if ds.HasColumn(key) {
				continue
			}
			out = append(out, Finding{
				Domain:        dom.Domain,
				Variable:      key,
				Severity:      SeverityError,
				Message:       fmt.Sprintf("Key variable %s is missing from dataset %s.", key, ds.Name()),
				RuleReference: "Key variables for " + dom.Domain,
			})
		}
	}

	if ds.Domain() == "" {
		return out
	}

	for _, rule := range def.VariablesFor(ds.Domain()) {
		ref := rule.Domain + "." + rule.Variable
		observed, present := ds.ColumnType(rule.Variable)

		if !present {
			if rule.Required {
				out = append(out, Finding{
					Domain:        rule.Domain,
					Variable:      rule.Variable,
					Severity:      SeverityError,
					Message:       fmt.Sprintf("Required variable %s is missing.", rule.Variable),
					RuleReference: ref + " core requirement",
				})
			} else {
				out = append(out, Finding{
					Domain:        rule.Domain,
					Variable:      rule.Variable,
					Severity:      SeverityWarning,
					Message:       fmt.Sprintf("Expected variable %s is not present.", rule.Variable),
					RuleReference: ref + " optional variable",
				})
			}
			continue
		}

		if !datatypeMatches(observed, rule.Datatype) {
			out = append(out, Finding{
				Domain:        rule.Domain,
				Variable:      rule.Variable,
				Severity:      SeverityWarning,
				Message:       fmt.Sprintf("Variable %s is %s but expected %s.", rule.Variable, observed, rule.Datatype),
				RuleReference: ref + " datatype",
			})
		}

		if len(rule.ControlledTerminology) > 0 {
			if invalid := invalidTerms(ds, rule.Variable, rule.ControlledTerminology); len(invalid) > 0 {
				out = append(out, Finding{
					Domain:        rule.Domain,
					Variable:      rule.Variable,
					Severity:      SeverityError,
					Message:       ctMessage(invalid),
					RuleReference: ref + " controlled terminology",
				})
			}
		}
	}

	return out
}
