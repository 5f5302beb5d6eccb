// Package core provides the compliance rule engine for SDTM datasets.
//
// This package holds the domain model and evaluation logic independent of
// any transport, parser, or storage. Web handlers, the CLI, and tests use it
// without modification.
//
// # Architecture
//
// The package is organized around a few concepts:
//
//   - ParsedDataset: an immutable table of typed [Value] cells produced by
//     the ingest layer.
//   - StandardDefinition: a domain catalog plus variable rules, resolved by a
//     [DefinitionLoader].
//   - Rule: an executable check over the full dataset set. Rules come from a
//     [RuleSource]: either the [Registry] of code rules or a
//     [DeclarativeSource] derived from a standard's metadata.
//   - Engine: applies rules in order and returns a [RunSummary].
//
// # Rule Registry
//
// Code rules are registered at init time per standard id:
//
//	core.Register("sdtmig-v4-3",
//	    core.RequireDomain("SDTMIG43-DM-001", "DM", msg, "SDTMIG 4.3 §5", core.SeverityError),
//	    core.UniqueKey("SDTMIG43-DM-003", "DM", []string{"STUDYID", "USUBJID"}, ref, rec),
//	)
//
// A standard id with no registrations yields no rules and an empty run.
//
// # Ordering
//
// Findings follow rule registration order. Within a rule, datasets are
// visited in input order and rows in row order. Finding ids are
// "<rule id>-<nnn>", so identical inputs produce identical output.
//
// # Failure Policy
//
// A rule that returns an error or panics aborts the run with a
// [RuleEvaluationError]; no partial summary is returned. A failing
// persistence callback returns the summary together with a
// [PersistenceError].
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with [MapError]. See
// error_messages.go for the code table.
package core
