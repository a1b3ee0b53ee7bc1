package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bestsellers/internal/bestseller"
	"bestsellers/internal/logger"

	"github.com/google/uuid"
)

var (
	// ErrValidationFailed is returned when the gate is on and the report has violations.
	ErrValidationFailed = errors.New("validation failed")
	// ErrRunInProgress is returned when Run is called while another run is active.
	ErrRunInProgress = errors.New("ingest run already in progress")
)

type Config struct {
	// Gate stops the run before loading when validation finds violations.
	Gate bool
	// DryRun fetches, transforms and validates without touching the database.
	DryRun bool
	// ExportDir enables a Parquet snapshot of every loaded table.
	ExportDir string
}

type Fetcher interface {
	Fetch(ctx context.Context) (bestseller.EnrichedTable, error)
}

type Transformer interface {
	Transform(ctx context.Context, in bestseller.EnrichedTable) (bestseller.BookTable, error)
}

type Validator interface {
	Validate(ctx context.Context, table bestseller.BookTable) bestseller.ValidationReport
}

type BookLoader interface {
	InsertBooks(ctx context.Context, rows []bestseller.BookRecord) (int64, error)
}

type Auditor interface {
	Refresh(ctx context.Context) error
}

// Exporter writes a snapshot of the table to dir and returns its path.
type Exporter func(ctx context.Context, dir string, table bestseller.BookTable) (string, error)

// Deps groups the stages of a run. Loader, Auditor and Runs may be nil for dry runs.
type Deps struct {
	Fetcher     Fetcher
	Transformer Transformer
	Validator   Validator
	Loader      BookLoader
	Auditor     Auditor
	Runs        Repository
	Export      Exporter
}

type Service struct {
	deps Deps
	cfg  Config
	now  func() time.Time
	mu   sync.Mutex
}

func NewService(deps Deps, cfg Config) *Service {
	return &Service{deps: deps, cfg: cfg, now: time.Now}
}

// Run executes fetch, transform, validate, load and audit once. The returned Run is
// populated even when err is non-nil, as far as the pipeline got.
func (s *Service) Run(ctx context.Context) (run *Run, err error) {
	if !s.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.mu.Unlock()

	run = &Run{
		ID:        uuid.NewString(),
		Status:    StatusRunning,
		StartedAt: s.now().UTC(),
		DryRun:    s.cfg.DryRun,
	}
	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{
		"run_id":  run.ID,
		"dry_run": run.DryRun,
	})
	ctx = logger.WithContext(ctx, log)

	track := !s.cfg.DryRun && s.deps.Runs != nil
	if track {
		if cErr := s.deps.Runs.CreateRun(ctx, run); cErr != nil {
			return run, fmt.Errorf("create ingest run: %w", cErr)
		}
	}

	defer func() {
		now := s.now().UTC()
		run.FinishedAt = &now
		if err != nil && run.Error == "" {
			run.Error = err.Error()
		}

		if run.Error != "" {
			run.Status = StatusFailed
		} else {
			run.Status = StatusCompleted
		}
		if track {
			// The run's own context may be cancelled; the final status should still land.
			updateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if updateErr := s.deps.Runs.UpdateRun(updateCtx, run); updateErr != nil {
				log.Error().Err(updateErr).Msg("failed to update ingest run")
			}
		}

		event := log.Info()
		if run.Status == StatusFailed {
			event = log.Error().Str("error", run.Error)
		}
		event.
			Str("status", run.Status).
			Int("listed", run.BooksListed).
			Int("enriched", run.BooksEnriched).
			Int("skipped", run.BooksSkipped).
			Int64("loaded", run.BooksLoaded).
			Int("violations", run.Violations).
			Int("warnings", run.Warnings).
			Dur("elapsed", now.Sub(run.StartedAt)).
			Msg("ingest run finished")
	}()

	enriched, err := s.deps.Fetcher.Fetch(ctx)
	if err != nil {
		return run, err
	}
	run.ListName = enriched.ListName
	run.ListPublishedDate = enriched.ListPublishedDate
	run.BooksListed = enriched.Listed
	run.BooksEnriched = len(enriched.Rows)
	run.BooksSkipped = len(enriched.Skipped)

	table, err := s.deps.Transformer.Transform(ctx, enriched)
	if err != nil {
		return run, err
	}
	run.Warnings = len(table.Warnings)

	report := s.deps.Validator.Validate(ctx, table)
	run.Violations = len(report.Violations)
	if s.cfg.Gate && !report.OK() {
		return run, fmt.Errorf("%w: %d violation(s), first: %s", ErrValidationFailed, len(report.Violations), report.Violations[0].Message)
	}

	if s.cfg.DryRun {
		log.Info().Int("rows", len(table.Rows)).Msg("dry run, skipping load")
		return run, nil
	}

	run.BooksLoaded, err = s.deps.Loader.InsertBooks(ctx, table.Rows)
	if err != nil {
		return run, fmt.Errorf("load books: %w", err)
	}
	log.Info().Int64("rows", run.BooksLoaded).Msg("loaded books")

	if s.deps.Auditor != nil {
		if err := s.deps.Auditor.Refresh(ctx); err != nil {
			return run, fmt.Errorf("refresh audit: %w", err)
		}
	}

	if s.deps.Export != nil && s.cfg.ExportDir != "" {
		path, err := s.deps.Export(ctx, s.cfg.ExportDir, table)
		if err != nil {
			// The rows are already committed; a missing snapshot does not fail the run.
			log.Warn().Err(err).Msg("snapshot export failed")
		}
		run.ExportPath = path
	}
	return run, nil
}

// LastRun reports the most recent tracked run, or nil.
func (s *Service) LastRun(ctx context.Context) (*Run, error) {
	if s.deps.Runs == nil {
		return nil, nil
	}
	return s.deps.Runs.LastRun(ctx)
}
