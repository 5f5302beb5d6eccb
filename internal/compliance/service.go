// Package compliance orchestrates a compliance run end to end: uploaded
// files are parsed into datasets, the standard's rules are resolved, the
// engine applies them and the summary is persisted.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/sdtm/internal/core"
	"github.com/JonMunkholm/sdtm/internal/ingest"
	"github.com/JonMunkholm/sdtm/internal/logging"
	"github.com/JonMunkholm/sdtm/internal/metrics"
	"github.com/JonMunkholm/sdtm/internal/standards"
	"github.com/JonMunkholm/sdtm/internal/store"
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultRunTimeout  = 10 * time.Minute
	DefaultStandardID  = "sdtmig-v4-3"
	DefaultMaxFileSize = 50 << 20
	DefaultMaxFiles    = 50
)

// Upload is one uploaded file.
type Upload struct {
	Name string
	Data []byte
}

// Options configures a Service. Loader and Store are required.
type Options struct {
	Registry *core.Registry
	Loader   *standards.Loader
	Store    store.Store
	Limiter  *RunLimiter
	Metrics  *metrics.Metrics

	RunTimeout      time.Duration
	DefaultStandard string
	MaxFileSize     int64
	MaxFiles        int

	// EngineOptions are appended after the service's own options, so tests
	// can pin the clock and run ids.
	EngineOptions []core.Option
}

// Service runs compliance checks and serves stored results.
type Service struct {
	registry *core.Registry
	loader   *standards.Loader
	store    store.Store
	limiter  *RunLimiter
	metrics  *metrics.Metrics
	engine   *core.Engine

	runTimeout      time.Duration
	defaultStandard string
	maxFileSize     int64
	maxFiles        int
}

// NewService wires the engine to the registry, the loader and the store.
//
// Standards with registered code rules run those rules; every other id is
// checked declaratively against its loaded definition, so ids unknown to
// both fail with *core.UnknownStandardError.
func NewService(opts Options) (*Service, error) {
	if opts.Loader == nil {
		return nil, fmt.Errorf("compliance service requires a standards loader")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("compliance service requires a store")
	}
	if opts.Registry == nil {
		opts.Registry = core.DefaultRegistry()
	}
	if opts.Limiter == nil {
		opts.Limiter = NewRunLimiter(DefaultMaxConcurrentRuns, DefaultMaxWait)
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = DefaultRunTimeout
	}
	if opts.DefaultStandard == "" {
		opts.DefaultStandard = DefaultStandardID
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = DefaultMaxFiles
	}

	s := &Service{
		registry:        opts.Registry,
		loader:          opts.Loader,
		store:           opts.Store,
		limiter:         opts.Limiter,
		metrics:         opts.Metrics,
		runTimeout:      opts.RunTimeout,
		defaultStandard: opts.DefaultStandard,
		maxFileSize:     opts.MaxFileSize,
		maxFiles:        opts.MaxFiles,
	}

	engineOpts := append([]core.Option{core.WithPersist(opts.Store.Save)}, opts.EngineOptions...)
	s.engine = core.NewEngine(s.ruleSource(), engineOpts...)
	return s, nil
}

// ruleSource routes registered ids to code rules and the rest to the
// definition-driven checks.
func (s *Service) ruleSource() core.RuleSource {
	return core.Layered{
		Registry: s.registry,
		Fallback: core.DeclarativeSource{Loader: instrumentedLoader{s}},
	}
}

type instrumentedLoader struct{ s *Service }

func (l instrumentedLoader) Load(ctx context.Context, id string) (*core.StandardDefinition, error) {
	def, err := l.s.loader.Load(ctx, id)
	l.s.metrics.ObserveDefinitionLoad(id, err)
	return def, err
}

// DefaultStandard is the id used when a request names none.
func (s *Service) DefaultStandard() string { return s.defaultStandard }

// Limiter exposes the run limiter for health reporting and shutdown.
func (s *Service) Limiter() *RunLimiter { return s.limiter }

// ============================================================================
// Runs
// ============================================================================

// Run parses uploads and applies the rules for standardID. An empty
// standardID uses the default standard.
func (s *Service) Run(ctx context.Context, standardID string, uploads []Upload) (*core.RunSummary, error) {
	standardID = s.standardOrDefault(standardID)
	return s.withSlot(ctx, standardID, func(ctx context.Context) (*core.RunSummary, error) {
		datasets, err := s.ParseUploads(ctx, uploads)
		if err != nil {
			return nil, err
		}
		return s.engine.Run(ctx, datasets, standardID)
	})
}

// RunDatasets applies the rules for standardID to already parsed datasets.
func (s *Service) RunDatasets(ctx context.Context, standardID string, datasets []*core.ParsedDataset) (*core.RunSummary, error) {
	standardID = s.standardOrDefault(standardID)
	return s.withSlot(ctx, standardID, func(ctx context.Context) (*core.RunSummary, error) {
		return s.engine.Run(ctx, datasets, standardID)
	})
}

// Check runs the definition-driven checks of standardID against one file.
func (s *Service) Check(ctx context.Context, standardID string, upload Upload) (*core.RunSummary, error) {
	standardID = s.standardOrDefault(standardID)
	return s.withSlot(ctx, standardID, func(ctx context.Context) (*core.RunSummary, error) {
		datasets, err := s.ParseUploads(ctx, []Upload{upload})
		if err != nil {
			return nil, err
		}
		def, err := instrumentedLoader{s}.Load(ctx, standardID)
		if err != nil {
			return nil, err
		}
		return s.engine.CheckDataset(ctx, datasets[0], def)
	})
}

// withSlot holds a limiter slot and the run timeout around fn, and records
// the outcome.
func (s *Service) withSlot(ctx context.Context, standardID string, fn func(context.Context) (*core.RunSummary, error)) (*core.RunSummary, error) {
	start := time.Now()
	logger := logging.WithFields(ctx, "standard_id", standardID)

	if err := s.limiter.Acquire(ctx); err != nil {
		s.metrics.ObserveRun(standardID, metrics.OutcomeRejected, nil, start)
		logger.Warn("compliance run rejected", "error", err, "active", s.limiter.Active())
		return nil, err
	}
	defer s.limiter.Release()
	s.metrics.RunStarted()
	defer s.metrics.RunFinished()

	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	summary, err := fn(ctx)
	s.metrics.ObserveRun(standardID, outcome(err), summary, start)
	if err != nil {
		logRunError(logger, err)
	}
	return summary, err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, core.ErrRuleEvaluation):
		return metrics.OutcomeRuleError
	case errors.Is(err, core.ErrPersistence):
		return metrics.OutcomePersistError
	default:
		return metrics.OutcomeFailed
	}
}

func logRunError(logger *slog.Logger, err error) {
	msg := core.MapError(err)
	logger.Debug("compliance run failed", "error", err, "code", msg.Code)
}

func (s *Service) standardOrDefault(id string) string {
	if id == "" {
		return s.defaultStandard
	}
	return id
}

// ParseUploads parses every upload in order, enforcing file count and size
// limits. The first failure aborts.
func (s *Service) ParseUploads(ctx context.Context, uploads []Upload) ([]*core.ParsedDataset, error) {
	if len(uploads) == 0 {
		return nil, core.ErrNoDatasets
	}
	if len(uploads) > s.maxFiles {
		return nil, fmt.Errorf("too many files: %d (max %d)", len(uploads), s.maxFiles)
	}

	datasets := make([]*core.ParsedDataset, 0, len(uploads))
	for _, u := range uploads {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if int64(len(u.Data)) > s.maxFileSize {
			return nil, fmt.Errorf("%s: file too large (%d bytes, max %d)", u.Name, len(u.Data), s.maxFileSize)
		}
		ds, err := ingest.Parse(ctx, u.Name, u.Data)
		if err != nil {
			return nil, err
		}
		s.metrics.ObserveDataset(ds)
		datasets = append(datasets, ds)
	}
	return datasets, nil
}

// ============================================================================
// Queries
// ============================================================================

// GetRun returns a stored summary or an error wrapping core.ErrRunNotFound.
func (s *Service) GetRun(ctx context.Context, id string) (*core.RunSummary, error) {
	return s.store.Get(ctx, id)
}

// ListRuns returns stored summaries, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]*core.RunSummary, error) {
	return s.store.List(ctx, limit)
}

// Standards lists the catalog.
func (s *Service) Standards() []core.StandardSummary {
	return s.loader.Catalog().List()
}

// Definition loads the full definition for id.
func (s *Service) Definition(ctx context.Context, id string) (*core.StandardDefinition, error) {
	return instrumentedLoader{s}.Load(ctx, id)
}

// Ping checks the run store, for the health endpoint.
func (s *Service) Ping(ctx context.Context) error {
	return store.Ping(ctx, s.store)
}

// Drain waits for in-flight runs, for graceful shutdown.
func (s *Service) Drain(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
