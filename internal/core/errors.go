package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks against the typed errors below.
var (
	ErrUnknownStandard   = errors.New("unknown standard")
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
	ErrRuleEvaluation    = errors.New("rule evaluation failed")
	ErrPersistence       = errors.New("persistence failed")
	ErrDuplicateVariable = errors.New("duplicate variable rule")
	ErrRunNotFound       = errors.New("run not found")
	ErrNoDatasets        = errors.New("no file provided")
)

// UnknownStandardError is returned by the loader when a standard id has no
// registered source. No partial result accompanies it.
type UnknownStandardError struct {
	StandardID string
}

func (e *UnknownStandardError) Error() string {
	return fmt.Sprintf("unknown standard %q", e.StandardID)
}

func (e *UnknownStandardError) Is(target error) bool { return target == ErrUnknownStandard }

// UnsupportedFormatError is returned by the parsing layer for files whose
// extension or content is not a recognized dataset format.
type UnsupportedFormatError struct {
	FileName  string
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Extension == "" {
		return fmt.Sprintf("unsupported dataset format for %s", e.FileName)
	}
	return fmt.Sprintf("unsupported dataset format %q for %s", e.Extension, e.FileName)
}

func (e *UnsupportedFormatError) Is(target error) bool { return target == ErrUnsupportedFormat }

// RuleEvaluationError wraps a failure raised by a rule's Apply. It aborts
// the run: no findings are returned alongside it.
type RuleEvaluationError struct {
	RuleID string
	Err    error
}

func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("rule evaluation failed: %s: %v", e.RuleID, e.Err)
}

func (e *RuleEvaluationError) Unwrap() error { return e.Err }

func (e *RuleEvaluationError) Is(target error) bool { return target == ErrRuleEvaluation }

// PersistenceError reports a failed persistence callback. The summary it
// accompanies is still valid.
type PersistenceError struct {
	RunID string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed for run %s: %v", e.RunID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// DuplicateVariableRuleError is returned when a standard declares more than
// one rule for the same (domain, variable) pair.
type DuplicateVariableRuleError struct {
	StandardID string
	Domain     string
	Variable   string
}

func (e *DuplicateVariableRuleError) Error() string {
	return fmt.Sprintf("standard %s: duplicate variable rule %s.%s", e.StandardID, e.Domain, e.Variable)
}

func (e *DuplicateVariableRuleError) Is(target error) bool { return target == ErrDuplicateVariable }
