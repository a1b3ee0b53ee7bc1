package main

import (
	"context"
	"flag"
	"path/filepath"
	"sort"

	"bestsellers/internal/config"
	"bestsellers/internal/export"
	"bestsellers/internal/logger"
	"bestsellers/internal/store"
)

// seed replays Parquet snapshots written by `pipeline run --export` into the books
// table, e.g. to fill a fresh development database without calling the APIs.
func main() {
	var (
		pattern = flag.String("files", "snapshots/books-*.parquet", "Glob of snapshot files to load, oldest first")
		audit   = flag.Bool("audit", true, "Refresh books_audit after loading")
	)
	flag.Parse()

	log := logger.New()
	ctx := logger.WithContext(context.Background(), log)

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	files, err := filepath.Glob(*pattern)
	if err != nil {
		log.Fatal().Err(err).Str("pattern", *pattern).Msg("bad glob")
	}
	if len(files) == 0 {
		log.Fatal().Str("pattern", *pattern).Msg("no snapshot files matched")
	}
	// Snapshot names embed the load instant, so lexical order is load order.
	sort.Strings(files)

	pool, err := store.OpenPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot connect to database")
	}
	defer pool.Close()

	books := store.NewBookPG(pool)
	var total int64
	for _, f := range files {
		table, err := export.ReadParquet(f)
		if err != nil {
			log.Fatal().Err(err).Msg("cannot read snapshot")
		}
		n, err := books.InsertBooks(ctx, table.Rows)
		if err != nil {
			log.Fatal().Err(err).Str("file", f).Msg("failed to insert books")
		}
		total += n
		log.Info().Str("file", f).Int64("rows", n).Msg("loaded snapshot")
	}

	if *audit {
		if err := store.NewAuditPG(pool).Refresh(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to refresh audit")
		}
	}

	var count int64
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM books").Scan(&count); err != nil {
		log.Warn().Err(err).Msg("cannot count books")
	}
	log.Info().Int64("inserted", total).Int64("total", count).Msg("seed complete")
}
