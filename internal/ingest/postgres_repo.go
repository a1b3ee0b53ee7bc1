package ingest

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	CreateRun(ctx context.Context, run *Run) error
	UpdateRun(ctx context.Context, run *Run) error
	LastRun(ctx context.Context) (*Run, error)
}

type PostgresRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) CreateRun(ctx context.Context, run *Run) error {
	const sql = `
		INSERT INTO ingest_runs (id, started_at, status)
		VALUES ($1, $2, $3)`

	_, err := r.db.Exec(ctx, sql, run.ID, run.StartedAt, run.Status)
	return err
}

func (r *PostgresRepo) UpdateRun(ctx context.Context, run *Run) error {
	const sql = `
		UPDATE ingest_runs SET
			finished_at = $1,
			status = $2,
			list_name = $3,
			list_published_date = $4,
			books_listed = $5,
			books_enriched = $6,
			books_skipped = $7,
			books_loaded = $8,
			violations = $9,
			warnings = $10,
			error = $11
		WHERE id = $12`

	_, err := r.db.Exec(ctx, sql,
		run.FinishedAt, run.Status, run.ListName, run.ListPublishedDate,
		run.BooksListed, run.BooksEnriched, run.BooksSkipped, run.BooksLoaded,
		run.Violations, run.Warnings, run.Error, run.ID)
	return err
}

// LastRun returns the most recently started run, or nil when there is none.
func (r *PostgresRepo) LastRun(ctx context.Context) (*Run, error) {
	const sql = `
		SELECT id, started_at, finished_at, status, list_name, list_published_date,
			books_listed, books_enriched, books_skipped, books_loaded, violations, warnings, error
		FROM ingest_runs
		ORDER BY started_at DESC
		LIMIT 1`

	var run Run
	err := r.db.QueryRow(ctx, sql).Scan(
		&run.ID, &run.StartedAt, &run.FinishedAt, &run.Status, &run.ListName, &run.ListPublishedDate,
		&run.BooksListed, &run.BooksEnriched, &run.BooksSkipped, &run.BooksLoaded,
		&run.Violations, &run.Warnings, &run.Error)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
