package core

// engine.go orchestrates a compliance run: resolve rules, apply them in
// order, stamp findings, fold counts, and hand the summary to persistence.
//
// Evaluation is a synchronous in-memory fold. Datasets and the standard are
// fully materialized before Run is called; the engine performs no I/O while
// rules execute. Callers that need a deadline wrap the whole call in a
// context timeout, which is checked between rules.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JonMunkholm/sdtm/internal/logging"
)

// PersistFunc receives each finished summary. A returned error surfaces to
// the caller as *PersistenceError alongside the still-valid summary.
type PersistFunc func(ctx context.Context, summary *RunSummary) error

// Engine applies rules to datasets. It holds no per-run state and is safe
// for concurrent use.
type Engine struct {
	source  RuleSource
	now     func() time.Time
	newID   func() string
	persist PersistFunc
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides run id generation.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// WithPersist installs a persistence callback.
func WithPersist(fn PersistFunc) Option {
	return func(e *Engine) { e.persist = fn }
}

// WithLogger sets a base logger. Without it, the request-scoped logger from
// the run context is used.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// NewEngine creates an engine over a rule source.
func NewEngine(source RuleSource, opts ...Option) *Engine {
	e := &Engine{
		source: source,
		now:    time.Now,
		newID:  uuid.NewString,
		tracer: otel.Tracer("github.com/JonMunkholm/sdtm/internal/core"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run resolves the rules registered for standardID and applies them.
// An unregistered standard yields an empty summary, not an error.
func (e *Engine) Run(ctx context.Context, datasets []*ParsedDataset, standardID string) (*RunSummary, error) {
	var rules []Rule
	if e.source != nil {
		var err error
		rules, err = e.source.RulesFor(ctx, standardID)
		if err != nil {
			return nil, err
		}
	}
	return e.apply(ctx, datasets, standardID, rules)
}

// RunDefinition applies the metadata-driven checks of an already loaded
// definition, bypassing the rule source.
func (e *Engine) RunDefinition(ctx context.Context, datasets []*ParsedDataset, def *StandardDefinition) (*RunSummary, error) {
	if def == nil {
		return nil, fmt.Errorf("standard definition is required")
	}
	return e.apply(ctx, datasets, def.ID, DefinitionRules(def))
}

// CheckDataset runs the metadata-driven checks against a single dataset.
func (e *Engine) CheckDataset(ctx context.Context, dataset *ParsedDataset, def *StandardDefinition) (*RunSummary, error) {
	if dataset == nil {
		return nil, ErrNoDatasets
	}
	return e.RunDefinition(ctx, []*ParsedDataset{dataset}, def)
}

func (e *Engine) apply(ctx context.Context, datasets []*ParsedDataset, standardID string, rules []Rule) (*RunSummary, error) {
	runID := e.newID()
	logger := e.runLogger(ctx, runID, standardID)

	ctx, span := e.tracer.Start(ctx, "compliance.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("standard.id", standardID),
		attribute.Int("datasets", len(datasets)),
		attribute.Int("rules", len(rules)),
	))
	defer span.End()

	startedAt := e.now().UTC()
	findings := make([]Finding, 0)

	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "run cancelled")
			return nil, err
		}

		out, err := e.applyRule(ctx, rule, datasets)
		if err != nil {
			logger.Error("rule evaluation failed", "rule_id", rule.ID, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "rule evaluation failed")
			return nil, err
		}

		for i, f := range out {
			findings = append(findings, stamp(f, rule, standardID, i+1))
		}
		logger.Debug("rule applied", "rule_id", rule.ID, "findings", len(out))
	}

	completedAt := e.now().UTC()

	summary := &RunSummary{
		ID:           runID,
		StandardID:   standardID,
		DatasetNames: make([]string, 0, len(datasets)),
		Datasets:     make([]DatasetDescriptor, 0, len(datasets)),
		StartedAt:    startedAt,
		CompletedAt:  completedAt,
		Findings:     findings,
		Summary:      Tally(findings),
	}
	for _, ds := range datasets {
		if ds == nil {
			continue
		}
		summary.DatasetNames = append(summary.DatasetNames, ds.Name())
		summary.Datasets = append(summary.Datasets, ds.Descriptor())
	}

	span.SetAttributes(
		attribute.Int("findings.total", summary.Summary.Total),
		attribute.Int("findings.errors", summary.Summary.Errors),
	)
	logger.Info("compliance run completed",
		"findings", summary.Summary.Total,
		"errors", summary.Summary.Errors,
		"warnings", summary.Summary.Warnings,
		"duration_ms", summary.Duration().Milliseconds(),
	)

	if e.persist != nil {
		if err := e.persist(ctx, summary); err != nil {
			logger.Warn("persist run failed", "error", err)
			span.RecordError(err)
			return summary, &PersistenceError{RunID: runID, Err: err}
		}
	}

	return summary, nil
}

// applyRule invokes one rule, converting returned errors and panics into
// *RuleEvaluationError.
func (e *Engine) applyRule(ctx context.Context, rule Rule, datasets []*ParsedDataset) (out []Finding, err error) {
	_, span := e.tracer.Start(ctx, "compliance.rule", trace.WithAttributes(
		attribute.String("rule.id", rule.ID),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &RuleEvaluationError{RuleID: rule.ID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if rule.Apply == nil {
		return nil, &RuleEvaluationError{RuleID: rule.ID, Err: fmt.Errorf("rule has no apply function")}
	}

	out, err = rule.Apply(datasets)
	if err != nil {
		return nil, &RuleEvaluationError{RuleID: rule.ID, Err: err}
	}
	return out, nil
}

func (e *Engine) runLogger(ctx context.Context, runID, standardID string) *slog.Logger {
	if e.logger != nil {
		return e.logger.With("run_id", runID, "standard_id", standardID)
	}
	return logging.ForRun(ctx, runID, standardID)
}

// stamp fills the engine-owned fields of a finding. seq is the 1-based
// position of the finding within its rule's output.
func stamp(f Finding, rule Rule, standardID string, seq int) Finding {
	f.ID = fmt.Sprintf("%s-%03d", rule.ID, seq)
	f.RuleID = rule.ID
	f.StandardID = standardID
	if f.Severity == "" {
		f.Severity = rule.Severity
	}
	if f.RuleReference == "" {
		f.RuleReference = rule.Reference
	}
	if f.Recommendation == "" {
		f.Recommendation = rule.Recommendation
	}
	return f
}
