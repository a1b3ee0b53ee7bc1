package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditSummary is one day of data quality counters over the books table.
type AuditSummary struct {
	IngestionDate         time.Time `json:"ingestion_date"`
	TotalRows             int       `json:"total_rows"`
	MissingRank           int       `json:"missing_rank"`
	MissingISBN13         int       `json:"missing_isbn13"`
	MissingISBN10         int       `json:"missing_isbn10"`
	MissingPublishedDate  int       `json:"missing_published_date"`
	NegativeWeight        int       `json:"negative_weight"`
	NegativeNumberOfPages int       `json:"negative_number_of_pages"`
	UniqueRanks           int       `json:"unique_ranks"`
	DuplicateRanks        int       `json:"duplicate_ranks"`
	InvalidISBN13Length   int       `json:"invalid_isbn13_length"`
	InvalidISBN10Length   int       `json:"invalid_isbn10_length"`
	InvalidDates          int       `json:"invalid_dates"`
}

type AuditPG struct {
	db *pgxpool.Pool
}

func NewAuditPG(db *pgxpool.Pool) *AuditPG {
	return &AuditPG{db: db}
}

// Refresh recomputes the counters for every ingestion day and upserts them.
func (r *AuditPG) Refresh(ctx context.Context) error {
	const query = `
	WITH aggregated AS (
		SELECT
			DATE(ingested_at) AS ingestion_date,
			COUNT(*) AS total_rows,
			COUNT(*) FILTER (WHERE rank IS NULL) AS missing_rank,
			COUNT(*) FILTER (WHERE primary_isbn13 IS NULL) AS missing_isbn13,
			COUNT(*) FILTER (WHERE primary_isbn10 IS NULL) AS missing_isbn10,
			COUNT(*) FILTER (WHERE list_published_date IS NULL) AS missing_published_date,
			COUNT(*) FILTER (WHERE weight < 0) AS negative_weight,
			COUNT(*) FILTER (WHERE number_of_pages < 0) AS negative_number_of_pages,
			COUNT(DISTINCT rank) AS unique_ranks,
			COUNT(rank) - COUNT(DISTINCT rank) AS duplicate_ranks,
			COUNT(*) FILTER (WHERE LENGTH(primary_isbn13) <> 13) AS invalid_isbn13_length,
			COUNT(*) FILTER (WHERE LENGTH(primary_isbn10) <> 10) AS invalid_isbn10_length,
			COUNT(*) FILTER (WHERE list_published_date::TEXT !~ '^\d{4}-\d{2}-\d{2}$') AS invalid_dates
		FROM books
		GROUP BY ingestion_date
	)
	INSERT INTO books_audit (
		ingestion_date, total_rows, missing_rank, missing_isbn13, missing_isbn10,
		missing_published_date, negative_weight, negative_number_of_pages,
		unique_ranks, duplicate_ranks, invalid_isbn13_length, invalid_isbn10_length, invalid_dates
	)
	SELECT * FROM aggregated
	ON CONFLICT (ingestion_date) DO UPDATE SET
		total_rows = EXCLUDED.total_rows,
		missing_rank = EXCLUDED.missing_rank,
		missing_isbn13 = EXCLUDED.missing_isbn13,
		missing_isbn10 = EXCLUDED.missing_isbn10,
		missing_published_date = EXCLUDED.missing_published_date,
		negative_weight = EXCLUDED.negative_weight,
		negative_number_of_pages = EXCLUDED.negative_number_of_pages,
		unique_ranks = EXCLUDED.unique_ranks,
		duplicate_ranks = EXCLUDED.duplicate_ranks,
		invalid_isbn13_length = EXCLUDED.invalid_isbn13_length,
		invalid_isbn10_length = EXCLUDED.invalid_isbn10_length,
		invalid_dates = EXCLUDED.invalid_dates
	`
	_, err := r.db.Exec(ctx, query)
	return err
}

// List returns the most recent audit days first.
func (r *AuditPG) List(ctx context.Context, limit int) ([]AuditSummary, error) {
	if limit <= 0 {
		limit = 30
	}
	const query = `
	SELECT ingestion_date, total_rows, missing_rank, missing_isbn13, missing_isbn10,
		missing_published_date, negative_weight, negative_number_of_pages,
		unique_ranks, duplicate_ranks, invalid_isbn13_length, invalid_isbn10_length, invalid_dates
	FROM books_audit
	ORDER BY ingestion_date DESC
	LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[AuditSummary])
}
