package app

import (
	"context"
	"fmt"
	"time"

	"bestsellers/internal/bestseller"
	"bestsellers/internal/config"
	"bestsellers/internal/export"
	"bestsellers/internal/ingest"
	"bestsellers/internal/logger"
	"bestsellers/internal/platform/nytimes"
	"bestsellers/internal/platform/openlibrary"
	"bestsellers/internal/platform/retry"
	"bestsellers/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Options adjust a single process. ExportDir overrides the configured one when set.
// ReadOnly processes only query stored runs and audits, so they need no API key.
type Options struct {
	DryRun    bool
	ReadOnly  bool
	ExportDir string
}

// App holds the wired pipeline and the connections it owns.
type App struct {
	Service *ingest.Service
	Audits  *store.AuditPG
	Pool    *pgxpool.Pool
	Redis   *redis.Client
}

// New connects to the database (unless dry-running) and to Redis when configured.
// A Redis outage only disables the detail cache. A missing API key fails before
// any connection is made.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	log := logger.FromContext(ctx)
	a := &App{}

	if !opts.ReadOnly {
		if err := cfg.RequireAPIKey(); err != nil {
			return nil, err
		}
	}

	mode, err := bestseller.ParseCoercionMode(cfg.CoercionMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfigMissing, err)
	}

	var details bestseller.DetailFetcher = openlibrary.NewClient(cfg.APIURLs.OpenLibrary, cfg.UserAgent, cfg.RequestsPerSecond)
	if cfg.RedisURL != "" && !opts.ReadOnly {
		rdb, err := store.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("detail cache disabled")
		} else {
			a.Redis = rdb
			details = openlibrary.NewCachedClient(
				openlibrary.NewClient(cfg.APIURLs.OpenLibrary, cfg.UserAgent, cfg.RequestsPerSecond),
				store.NewDetailCacheRedis(rdb),
				cfg.DetailCacheTTL,
			)
		}
	}

	lists := nytimes.NewClient(cfg.APIURLs.NYTimes, cfg.NYTimesAPIKey, cfg.UserAgent, cfg.RequestsPerSecond)
	policy := retry.Policy{Attempts: cfg.RetryAttempts, InitialDelay: cfg.RetryInitialDelay}

	deps := ingest.Deps{
		Fetcher:     bestseller.NewAggregator(lists, details, policy),
		Transformer: bestseller.NewTransformer(mode, time.Now),
		Validator:   bestseller.NewValidator(cfg.ExpectedRows),
		Export:      export.WriteParquet,
	}

	if !opts.DryRun {
		pool, err := store.OpenPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			a.Close()
			return nil, err
		}
		log.Info().Str("dsn", store.RedactDSN(cfg.DatabaseDSN)).Msg("database connection OK")
		a.Pool = pool
		a.Audits = store.NewAuditPG(pool)
		deps.Loader = store.NewBookPG(pool)
		deps.Auditor = a.Audits
		deps.Runs = ingest.NewPostgresRepo(pool)
	}

	exportDir := cfg.ExportDir
	if opts.ExportDir != "" {
		exportDir = opts.ExportDir
	}
	a.Service = ingest.NewService(deps, ingest.Config{
		Gate:      cfg.ValidationGate,
		DryRun:    opts.DryRun,
		ExportDir: exportDir,
	})
	return a, nil
}

func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}
