package store

import (
	"context"
	"fmt"

	"bestsellers/internal/bestseller"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookPG struct {
	db *pgxpool.Pool
}

func NewBookPG(db *pgxpool.Pool) *BookPG {
	return &BookPG{db: db}
}

// InsertBooks appends the rows to the books table in one COPY. Either every row is
// stored or none is.
func (r *BookPG) InsertBooks(ctx context.Context, rows []bestseller.BookRecord) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"books"}, bestseller.Columns, bookRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy books: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

func bookRows(rows []bestseller.BookRecord) pgx.CopyFromSource {
	return pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		return rows[i].Values(), nil
	})
}
