package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bestsellers/internal/bestseller"
	"bestsellers/internal/logger"

	"cloud.google.com/go/civil"
	"github.com/parquet-go/parquet-go"
)

// BookRow is the Parquet layout of the books table. Pointer columns are nullable.
// A zero list_published_date is written as null.
type BookRow struct {
	PrimaryISBN13     *string   `parquet:"primary_isbn13"`
	PrimaryISBN10     *string   `parquet:"primary_isbn10"`
	Title             *string   `parquet:"title"`
	Author            *string   `parquet:"author"`
	Publisher         *string   `parquet:"publisher"`
	Description       *string   `parquet:"description"`
	ListPublishedDate int32     `parquet:"list_published_date,optional,date"`
	Rank              *int64    `parquet:"rank"`
	WeeksOnList       *int64    `parquet:"weeks_on_list"`
	NumberOfPages     *int64    `parquet:"number_of_pages"`
	Weight            *float64  `parquet:"weight"`
	CoverSmall        *string   `parquet:"cover_small"`
	CoverLarge        *string   `parquet:"cover_large"`
	URL               *string   `parquet:"url"`
	AmazonBuyLink     *string   `parquet:"amazon_buy_link"`
	AppleBuyLink      *string   `parquet:"apple_buy_link"`
	BookShopBuyLink   *string   `parquet:"book_shop_buy_link"`
	IngestedAt        time.Time `parquet:"ingested_at,timestamp(microsecond)"`
}

var epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

func toRow(r bestseller.BookRecord) BookRow {
	row := BookRow{
		PrimaryISBN13:   r.PrimaryISBN13,
		PrimaryISBN10:   r.PrimaryISBN10,
		Title:           r.Title,
		Author:          r.Author,
		Publisher:       r.Publisher,
		Description:     r.Description,
		Rank:            r.Rank,
		WeeksOnList:     r.WeeksOnList,
		NumberOfPages:   r.NumberOfPages,
		Weight:          r.Weight,
		CoverSmall:      r.CoverSmall,
		CoverLarge:      r.CoverLarge,
		URL:             r.URL,
		AmazonBuyLink:   r.AmazonBuyLink,
		AppleBuyLink:    r.AppleBuyLink,
		BookShopBuyLink: r.BookShopBuyLink,
		IngestedAt:      r.IngestedAt.UTC(),
	}
	if r.ListPublishedDate != nil {
		row.ListPublishedDate = int32(r.ListPublishedDate.In(time.UTC).Sub(epoch) / (24 * time.Hour))
	}
	return row
}

func fromRow(row BookRow) bestseller.BookRecord {
	rec := bestseller.BookRecord{
		PrimaryISBN13:   row.PrimaryISBN13,
		PrimaryISBN10:   row.PrimaryISBN10,
		Title:           row.Title,
		Author:          row.Author,
		Publisher:       row.Publisher,
		Description:     row.Description,
		Rank:            row.Rank,
		WeeksOnList:     row.WeeksOnList,
		NumberOfPages:   row.NumberOfPages,
		Weight:          row.Weight,
		CoverSmall:      row.CoverSmall,
		CoverLarge:      row.CoverLarge,
		URL:             row.URL,
		AmazonBuyLink:   row.AmazonBuyLink,
		AppleBuyLink:    row.AppleBuyLink,
		BookShopBuyLink: row.BookShopBuyLink,
		IngestedAt:      row.IngestedAt.UTC(),
	}
	if row.ListPublishedDate != 0 {
		d := civil.DateOf(epoch.AddDate(0, 0, int(row.ListPublishedDate)))
		rec.ListPublishedDate = &d
	}
	return rec
}

// FileName names a snapshot after the load instant, e.g. books-20240527T090000Z.parquet.
func FileName(ingestedAt time.Time) string {
	return "books-" + ingestedAt.UTC().Format("20060102T150405Z") + ".parquet"
}

// WriteParquet writes the table to dir and returns the file path. Nothing is written for
// an empty table.
func WriteParquet(ctx context.Context, dir string, table bestseller.BookTable) (string, error) {
	if len(table.Rows) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	rows := make([]BookRow, len(table.Rows))
	for i, r := range table.Rows {
		rows[i] = toRow(r)
	}

	path := filepath.Join(dir, FileName(table.Rows[0].IngestedAt))
	if err := parquet.WriteFile(path, rows); err != nil {
		return "", fmt.Errorf("write parquet: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().Str("path", path).Int("rows", len(rows)).Msg("exported snapshot")
	return path, nil
}

// ReadParquet loads a snapshot written by WriteParquet.
func ReadParquet(path string) (bestseller.BookTable, error) {
	rows, err := parquet.ReadFile[BookRow](path)
	if err != nil {
		return bestseller.BookTable{}, fmt.Errorf("read parquet %s: %w", path, err)
	}
	table := bestseller.BookTable{
		Columns: append([]string(nil), bestseller.Columns...),
		Rows:    make([]bestseller.BookRecord, len(rows)),
	}
	for i, row := range rows {
		table.Rows[i] = fromRow(row)
	}
	return table, nil
}
