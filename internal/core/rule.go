package core

import (
	"context"
	"fmt"
)

// ApplyFunc evaluates a rule over the full input dataset set. It must be
// deterministic: same datasets in, same findings out, in the same order.
//
// Findings returned by an ApplyFunc need only Domain, Variable, Severity and
// Message. The engine stamps ID, RuleID and StandardID, and fills
// RuleReference and Recommendation from the rule when left empty.
type ApplyFunc func(datasets []*ParsedDataset) ([]Finding, error)

// Rule is one executable compliance rule.
type Rule struct {
	ID             string
	Title          string
	Severity       Severity
	Reference      string
	Recommendation string
	Apply          ApplyFunc
}

// RuleSource resolves the ordered rule list for a standard.
//
// Registry (code rules) and DeclarativeSource (metadata-driven rules) are the
// two implementations; Layered picks between them by standard id.
type RuleSource interface {
	RulesFor(ctx context.Context, standardID string) ([]Rule, error)
}

// DefinitionLoader resolves a standard id into its definition. It fails with
// *UnknownStandardError when the id has no source.
type DefinitionLoader interface {
	Load(ctx context.Context, standardID string) (*StandardDefinition, error)
}

// RuleSourceFunc adapts a function to RuleSource.
type RuleSourceFunc func(ctx context.Context, standardID string) ([]Rule, error)

func (f RuleSourceFunc) RulesFor(ctx context.Context, standardID string) ([]Rule, error) {
	return f(ctx, standardID)
}

// Layered serves ids that have registered code rules from Registry and
// every other id from Fallback. Registry membership is checked per call, so
// rule sets registered later are picked up.
type Layered struct {
	Registry *Registry
	Fallback RuleSource
}

func (l Layered) RulesFor(ctx context.Context, standardID string) ([]Rule, error) {
	if l.Registry != nil && l.Registry.Has(standardID) {
		return l.Registry.RulesFor(ctx, standardID)
	}
	if l.Fallback == nil {
		return nil, nil
	}
	return l.Fallback.RulesFor(ctx, standardID)
}

func (r Rule) validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	if r.Apply == nil {
		return fmt.Errorf("rule %s: apply function is required", r.ID)
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("rule %s: invalid severity %q", r.ID, r.Severity)
	}
	return nil
}

// datasetsFor returns every dataset with the given domain, in input order.
func datasetsFor(datasets []*ParsedDataset, domain string) []*ParsedDataset {
	var out []*ParsedDataset
	for _, ds := range datasets {
		if ds != nil && ds.IsDomain(domain) {
			out = append(out, ds)
		}
	}
	return out
}
