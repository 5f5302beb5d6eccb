package core

import (
	"fmt"
	"strings"
	"time"
)

// StandardSummary is the catalog entry for a standard.
type StandardSummary struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Group       string `json:"group" yaml:"group"` // SDTM, SDTMIG, DefineXML, Terminology
	Description string `json:"description,omitempty" yaml:"description"`
	Source      string `json:"source,omitempty" yaml:"source"`
}

// Label renders "<name> v<version>" for messages and references.
func (s StandardSummary) Label() string {
	if s.Version == "" {
		return s.Name
	}
	return s.Name + " v" + s.Version
}

// DomainRule describes one domain in a standard's catalog.
type DomainRule struct {
	Domain       string   `json:"domain" yaml:"domain"`
	KeyVariables []string `json:"keyVariables,omitempty" yaml:"keyVariables"`
	Structure    string   `json:"structure,omitempty" yaml:"structure"`
	Role         string   `json:"role,omitempty" yaml:"role"`
	Class        string   `json:"class,omitempty" yaml:"class"`
	Comment      string   `json:"comment,omitempty" yaml:"comment"`
}

// VariableRule describes one (domain, variable) requirement.
type VariableRule struct {
	Domain                string   `json:"domain" yaml:"domain"`
	Variable              string   `json:"variable" yaml:"variable"`
	Datatype              string   `json:"datatype,omitempty" yaml:"datatype"`
	Required              bool     `json:"required" yaml:"required"`
	Length                int      `json:"length,omitempty" yaml:"length"`
	ControlledTerminology []string `json:"controlledTerminology,omitempty" yaml:"controlledTerminology"`
	Origin                string   `json:"origin,omitempty" yaml:"origin"`
	Comment               string   `json:"comment,omitempty" yaml:"comment"`
}

// StandardDefinition is a resolved standard: catalog metadata plus its
// domain catalog and variable rules, both in source order.
type StandardDefinition struct {
	StandardSummary
	Domains   []DomainRule   `json:"domains"`
	Variables []VariableRule `json:"variables"`
}

// FindDomain returns the domain rule for code, matched case-insensitively.
func (d *StandardDefinition) FindDomain(code string) (DomainRule, bool) {
	for _, dom := range d.Domains {
		if strings.EqualFold(dom.Domain, code) {
			return dom, true
		}
	}
	return DomainRule{}, false
}

// VariablesFor returns the variable rules targeting a domain, in source order.
func (d *StandardDefinition) VariablesFor(domain string) []VariableRule {
	var out []VariableRule
	for _, v := range d.Variables {
		if strings.EqualFold(v.Domain, domain) {
			out = append(out, v)
		}
	}
	return out
}

// Validate enforces one VariableRule per (domain, variable) pair.
func (d *StandardDefinition) Validate() error {
	seen := make(map[string]bool, len(d.Variables))
	for _, v := range d.Variables {
		key := strings.ToUpper(v.Domain) + "." + strings.ToUpper(v.Variable)
		if seen[key] {
			return &DuplicateVariableRuleError{StandardID: d.ID, Domain: v.Domain, Variable: v.Variable}
		}
		seen[key] = true
	}
	return nil
}

// Severity classifies a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityError, SeverityWarning, SeverityInfo:
		return true
	}
	return false
}

// Finding is one reported compliance issue. Findings are values: they are
// produced by rule evaluation and never modified afterwards.
type Finding struct {
	ID             string   `json:"id"`
	RuleID         string   `json:"ruleId,omitempty"`
	Domain         string   `json:"domain"`
	Variable       string   `json:"variable,omitempty"`
	Severity       Severity `json:"severity"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation,omitempty"`
	RuleReference  string   `json:"ruleReference,omitempty"`
	StandardID     string   `json:"standardId"`
}

// Counts is the severity fold over a run's findings.
// Info findings only count toward Total.
type Counts struct {
	Total    int `json:"total"`
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
}

// Tally folds findings into Counts.
func Tally(findings []Finding) Counts {
	var c Counts
	for _, f := range findings {
		c.Total++
		switch f.Severity {
		case SeverityError:
			c.Errors++
		case SeverityWarning:
			c.Warnings++
		}
	}
	return c
}

// DatasetDescriptor summarizes one input dataset of a run.
type DatasetDescriptor struct {
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	Format      string `json:"format,omitempty"`
	RowCount    int    `json:"rowCount"`
	ColumnCount int    `json:"columnCount"`
}

// RunSummary is the result of one compliance run. It owns its findings and
// is handed to renderers and persistence as a finished value.
type RunSummary struct {
	ID           string              `json:"id"`
	StandardID   string              `json:"standardId"`
	DatasetNames []string            `json:"datasetNames"`
	Datasets     []DatasetDescriptor `json:"datasets"`
	StartedAt    time.Time           `json:"startedAt"`
	CompletedAt  time.Time           `json:"completedAt"`
	Findings     []Finding           `json:"findings"`
	Summary      Counts              `json:"summary"`
}

// FindingsBySeverity returns the findings with the given severity, in order.
func (s *RunSummary) FindingsBySeverity(sev Severity) []Finding {
	var out []Finding
	for _, f := range s.Findings {
		if f.Severity == sev {
			out = append(out, f)
		}
	}
	return out
}

// Duration is the time spent applying rules.
func (s *RunSummary) Duration() time.Duration {
	return s.CompletedAt.Sub(s.StartedAt)
}

// String is a one-line description for logs.
func (s *RunSummary) String() string {
	return fmt.Sprintf("run %s (%s): %d findings, %d errors, %d warnings",
		s.ID, s.StandardID, s.Summary.Total, s.Summary.Errors, s.Summary.Warnings)
}
